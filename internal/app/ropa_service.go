package app

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"ropatopia/internal/auth"
	"ropatopia/internal/model"
)

const deleteRopaSessionPrompt = "Do you want to delete this ROPA session?"

type RopaService struct {
	gateway    *Gateway
	workspaces *Registry[*RopaQuestionnaire]
	logger     *slog.Logger
}

func NewRopaService(gateway *Gateway, workspaces *Registry[*RopaQuestionnaire], logger *slog.Logger) *RopaService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RopaService{gateway: gateway, workspaces: workspaces, logger: logger}
}

// FilterRopaSessions keeps the ROPA sessions whose domain, jurisdiction or
// status contains term, ignoring case.
func FilterRopaSessions(sessions []model.RopaSession, term string) []model.RopaSession {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return sessions
	}
	out := make([]model.RopaSession, 0, len(sessions))
	for _, s := range sessions {
		if strings.Contains(strings.ToLower(s.Domain), term) ||
			strings.Contains(strings.ToLower(s.Jurisdiction), term) ||
			strings.Contains(strings.ToLower(string(s.Status)), term) {
			out = append(out, s)
		}
	}
	return out
}

func (s *RopaService) List(ctx context.Context, sess *auth.Session, term string) ([]model.RopaSession, error) {
	sessions, err := s.gateway.For(sess).Ropa.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	return FilterRopaSessions(sessions, term), nil
}

func (s *RopaService) Delete(ctx context.Context, sess *auth.Session, sessionID string, confirmer Confirmer) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidInput
	}
	err := confirmThen(ctx, confirmer, deleteRopaSessionPrompt,
		func() error { return s.gateway.For(sess).Ropa.DeleteSession(ctx, sessionID) },
		Notice{Kind: NoticeSuccess, Title: "Deleted!", Message: "The ROPA session has been deleted."},
		Notice{Kind: NoticeError, Title: "Error!", Message: "Failed to delete the ROPA session."},
	)
	if err != nil {
		if err != ErrNotConfirmed {
			s.logger.Error("delete ropa session failed", "client", sess.ID, "session", sessionID, "error", err)
		}
		return err
	}
	s.workspaces.Drop(WorkspaceKey(sess.ID, sessionID))
	return nil
}

// Workspace returns the client's answer workspace for a ROPA session, loading
// unanswered questions the first time.
func (s *RopaService) Workspace(ctx context.Context, sess *auth.Session, sessionID string) (*RopaQuestionnaire, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidInput
	}
	w, _ := s.workspaces.GetOrCreate(WorkspaceKey(sess.ID, sessionID), func() *RopaQuestionnaire {
		return NewRopaQuestionnaire(sessionID, s.gateway.For(sess).Ropa, s.logger)
	})
	if err := w.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// GenerateDocument returns the backend response carrying the ROPA document.
// The caller streams and closes its body.
func (s *RopaService) GenerateDocument(ctx context.Context, sess *auth.Session, sessionID string) (*http.Response, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidInput
	}
	return s.gateway.For(sess).Ropa.GenerateDocument(ctx, sessionID)
}
