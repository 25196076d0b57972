package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"ropatopia/internal/backend"
	"ropatopia/internal/model"
)

type SessionRepository struct {
	caller backend.Caller
	logger *slog.Logger
}

func NewSessionRepository(caller backend.Caller, logger *slog.Logger) *SessionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionRepository{caller: caller, logger: logger}
}

// FetchAll lists sessions. Entries missing a string session_id, a string
// company_name or a processing_activities list are dropped.
func (r *SessionRepository) FetchAll(ctx context.Context) ([]model.Session, error) {
	resp, err := r.caller.Call(ctx, "/sessions", backend.RequestOptions{Method: http.MethodGet}, true)
	if err != nil {
		return nil, err
	}
	items, err := readList(resp, "sessions", "data")
	if err != nil {
		return nil, err
	}

	sessions := make([]model.Session, 0, len(items))
	for _, item := range items {
		if !validSessionShape(item) {
			continue
		}
		var s model.Session
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		sessions = append(sessions, s)
	}
	if len(sessions) != len(items) {
		r.logger.Warn("some sessions had invalid structure", "received", len(items), "kept", len(sessions))
	}
	return sessions, nil
}

func validSessionShape(item json.RawMessage) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil {
		return false
	}
	return jsonKind(fields["session_id"]) == '"' &&
		jsonKind(fields["company_name"]) == '"' &&
		jsonKind(fields["processing_activities"]) == '['
}

func jsonKind(raw json.RawMessage) byte {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b
		}
	}
	return 0
}

func (r *SessionRepository) Create(ctx context.Context, batchID string, activities []string, company string) (string, error) {
	resp, err := r.caller.Call(ctx, "/session", backend.RequestOptions{
		Method: http.MethodPost,
		JSON: model.CreateSessionRequest{
			BatchID:              batchID,
			ProcessingActivities: activities,
			Company:              company,
		},
	}, true)
	if err != nil {
		return "", err
	}
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := backend.DecodeJSON(resp, &out); err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", backend.ErrMalformedResponse
	}
	return out.SessionID, nil
}

func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*model.SessionDetail, error) {
	resp, err := r.caller.Call(ctx, "/session/"+url.PathEscape(sessionID), backend.RequestOptions{Method: http.MethodGet}, true)
	if err != nil {
		return nil, err
	}
	var detail model.SessionDetail
	if err := backend.DecodeJSON(resp, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	resp, err := r.caller.Call(ctx, "/session/"+url.PathEscape(sessionID), backend.RequestOptions{Method: http.MethodDelete}, true)
	if err != nil {
		return err
	}
	return backend.Discard(resp)
}
