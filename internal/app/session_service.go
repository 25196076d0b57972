package app

import (
	"context"
	"log/slog"
	"strings"

	"ropatopia/internal/auth"
	"ropatopia/internal/model"
)

const (
	deleteSessionPrompt = "Are you sure you want to delete this session?"
)

type SessionService struct {
	gateway    *Gateway
	workspaces *Registry[*Questionnaire]
	cache      ChatCache
	logger     *slog.Logger
}

func NewSessionService(gateway *Gateway, workspaces *Registry[*Questionnaire], cache ChatCache, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{gateway: gateway, workspaces: workspaces, cache: cache, logger: logger}
}

// FilterSessions keeps the sessions whose company name or any processing
// activity contains term, ignoring case. An empty term keeps everything.
func FilterSessions(sessions []model.Session, term string) []model.Session {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return sessions
	}
	out := make([]model.Session, 0, len(sessions))
	for _, s := range sessions {
		if strings.Contains(strings.ToLower(s.CompanyName), term) {
			out = append(out, s)
			continue
		}
		for _, a := range s.ProcessingActivities {
			if strings.Contains(strings.ToLower(a), term) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func (s *SessionService) List(ctx context.Context, sess *auth.Session, term string) ([]model.Session, error) {
	sessions, err := s.gateway.For(sess).Sessions.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	return FilterSessions(sessions, term), nil
}

func (s *SessionService) Get(ctx context.Context, sess *auth.Session, sessionID string) (*model.SessionDetail, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidInput
	}
	return s.gateway.For(sess).Sessions.Get(ctx, sessionID)
}

func (s *SessionService) Delete(ctx context.Context, sess *auth.Session, sessionID string, confirmer Confirmer) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidInput
	}
	err := confirmThen(ctx, confirmer, deleteSessionPrompt,
		func() error { return s.gateway.For(sess).Sessions.Delete(ctx, sessionID) },
		Notice{Kind: NoticeSuccess, Title: "Deleted!", Message: "The session has been deleted."},
		Notice{Kind: NoticeError, Title: "Error!", Message: "Failed to delete the session."},
	)
	if err != nil {
		if err != ErrNotConfirmed {
			s.logger.Error("delete session failed", "client", sess.ID, "session", sessionID, "error", err)
		}
		return err
	}
	if s.workspaces != nil {
		s.workspaces.Drop(WorkspaceKey(sess.ID, sessionID))
	}
	if s.cache != nil {
		_ = s.cache.DeleteHistory(ctx, sess.ID, sessionID)
	}
	return nil
}
