package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"ropatopia/internal/auth"
	"ropatopia/internal/backend"
)

const claudeFailureText = "Error generating content. Please try again."

type ContentKind string

const (
	ContentOK     ContentKind = "content"
	ContentFailed ContentKind = "error"
)

// ContentResult is the outcome of a free-form generate request. A failed
// result still carries the placeholder text shown in place of content.
type ContentResult struct {
	Kind    ContentKind `json:"kind"`
	Content string      `json:"content"`
	Reason  string      `json:"reason,omitempty"`
}

type ClaudeService struct {
	gateway *Gateway
	logger  *slog.Logger
}

func NewClaudeService(gateway *Gateway, logger *slog.Logger) *ClaudeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClaudeService{gateway: gateway, logger: logger}
}

// Generate sends prompt to /claude/generate. Only ErrUnauthorized and a blank
// prompt are returned as errors; other failures become a ContentFailed result.
func (s *ClaudeService) Generate(ctx context.Context, sess *auth.Session, prompt string) (ContentResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return ContentResult{}, invalid("Please enter a prompt.")
	}

	resp, err := s.gateway.For(sess).Claude.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			return ContentResult{}, err
		}
		s.logger.Error("claude generate failed", "client", sess.ID, "error", err)
		return ContentResult{Kind: ContentFailed, Content: claudeFailureText, Reason: err.Error()}, nil
	}
	if len(resp.Content) == 0 {
		s.logger.Warn("claude response has no content", "client", sess.ID)
		return ContentResult{Kind: ContentFailed, Content: claudeFailureText, Reason: "response has no content"}, nil
	}
	if text := resp.Content[0].Text; text != "" {
		return ContentResult{Kind: ContentOK, Content: text}, nil
	}
	return ContentResult{Kind: ContentOK, Content: string(resp.Raw)}, nil
}
