package app

import (
	"context"
	"log/slog"
	"strings"

	"ropatopia/internal/auth"
	"ropatopia/internal/model"
)

type QuestionnaireService struct {
	gateway    *Gateway
	workspaces *Registry[*Questionnaire]
	cache      ChatCache
	logger     *slog.Logger
}

func NewQuestionnaireService(gateway *Gateway, workspaces *Registry[*Questionnaire], cache ChatCache, logger *slog.Logger) *QuestionnaireService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuestionnaireService{gateway: gateway, workspaces: workspaces, cache: cache, logger: logger}
}

// Workspace returns the client's questionnaire for a session, loading it on
// first use.
func (s *QuestionnaireService) Workspace(ctx context.Context, sess *auth.Session, sessionID string) (*Questionnaire, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidInput
	}
	w, _ := s.workspaces.GetOrCreate(WorkspaceKey(sess.ID, sessionID), func() *Questionnaire {
		return NewQuestionnaire(sess.ID, sessionID, s.gateway.For(sess), s.cache, s.logger)
	})
	if err := w.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// Generate runs a single free-standing generate_pia request.
func (s *QuestionnaireService) Generate(ctx context.Context, sess *auth.Session, req model.RetrieveRequest) (*model.RetrieveResponse, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, invalid("Question text is required.")
	}
	if req.Feedback != nil && strings.TrimSpace(*req.Feedback) == "" {
		req.Feedback = nil
	}
	return s.gateway.For(sess).PIA.Generate(ctx, req)
}
