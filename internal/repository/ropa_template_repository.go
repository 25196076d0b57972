package repository

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"ropatopia/internal/backend"
	"ropatopia/internal/model"
)

type RopaTemplateRepository struct {
	caller backend.Caller
}

func NewRopaTemplateRepository(caller backend.Caller) *RopaTemplateRepository {
	return &RopaTemplateRepository{caller: caller}
}

func (r *RopaTemplateRepository) PreliminaryQuestions(ctx context.Context) (*model.PreliminaryQuestions, error) {
	resp, err := r.caller.Call(ctx, "/ropa/preliminary-questions", backend.RequestOptions{Method: http.MethodGet}, true)
	if err != nil {
		return nil, err
	}
	var out model.PreliminaryQuestions
	if err := backend.DecodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartSession sends the preliminary answers keyed by field id.
func (r *RopaTemplateRepository) StartSession(ctx context.Context, answers map[string]string) (string, error) {
	resp, err := r.caller.Call(ctx, "/ropa/start-session", backend.RequestOptions{
		Method: http.MethodPost,
		JSON:   answers,
	}, true)
	if err != nil {
		return "", err
	}
	var out model.StartSessionResponse
	if err := backend.DecodeJSON(resp, &out); err != nil {
		return "", err
	}
	if out.Data.SessionID == "" {
		return "", backend.ErrMalformedResponse
	}
	return out.Data.SessionID, nil
}

func (r *RopaTemplateRepository) ListSessions(ctx context.Context) ([]model.RopaSession, error) {
	resp, err := r.caller.Call(ctx, "/ropa/sessions", backend.RequestOptions{Method: http.MethodGet}, true)
	if err != nil {
		return nil, err
	}
	items, err := readList(resp, "sessions", "data")
	if err != nil {
		return nil, err
	}
	return decodeItems[model.RopaSession](items)
}

func (r *RopaTemplateRepository) DeleteSession(ctx context.Context, sessionID string) error {
	resp, err := r.caller.Call(ctx, "/ropa/session/"+url.PathEscape(sessionID), backend.RequestOptions{Method: http.MethodDelete}, true)
	if err != nil {
		return err
	}
	return backend.Discard(resp)
}

func (r *RopaTemplateRepository) Questions(ctx context.Context, sessionID string, answeredOnly bool) (*model.RopaQuestionsResponse, error) {
	resp, err := r.caller.Call(ctx, "/ropa/session/"+url.PathEscape(sessionID)+"/questions", backend.RequestOptions{
		Method: http.MethodGet,
		Query:  url.Values{"answered_only": {strconv.FormatBool(answeredOnly)}},
	}, true)
	if err != nil {
		return nil, err
	}
	var out model.RopaQuestionsResponse
	if err := backend.DecodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *RopaTemplateRepository) SaveAnswer(ctx context.Context, answer model.RopaAnswer) error {
	resp, err := r.caller.Call(ctx, "/ropa/save-answer", backend.RequestOptions{
		Method: http.MethodPost,
		JSON:   answer,
	}, true)
	if err != nil {
		return err
	}
	return backend.Discard(resp)
}

func (r *RopaTemplateRepository) SessionStatus(ctx context.Context, sessionID string) (*model.RopaSessionStatus, error) {
	resp, err := r.caller.Call(ctx, "/ropa/session-status", backend.RequestOptions{
		Method: http.MethodPost,
		JSON:   map[string]string{"session_id": sessionID},
	}, true)
	if err != nil {
		return nil, err
	}
	var out model.RopaSessionStatus
	if err := backend.DecodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *RopaTemplateRepository) RemoveQuestion(ctx context.Context, sessionID, questionID string) error {
	resp, err := r.caller.Call(ctx, "/ropa/remove-question", backend.RequestOptions{
		Method: http.MethodDelete,
		Query:  url.Values{"session_id": {sessionID}, "question_id": {questionID}},
	}, true)
	if err != nil {
		return err
	}
	return backend.Discard(resp)
}

func (r *RopaTemplateRepository) AddQuestion(ctx context.Context, payload model.RopaAddQuestionPayload) error {
	resp, err := r.caller.Call(ctx, "/ropa/add-question", backend.RequestOptions{
		Method: http.MethodPost,
		JSON:   payload,
	}, true)
	if err != nil {
		return err
	}
	return backend.Discard(resp)
}

// GenerateDocument returns the backend response with its body unread so the
// document can be streamed. The caller closes the body.
func (r *RopaTemplateRepository) GenerateDocument(ctx context.Context, sessionID string) (*http.Response, error) {
	resp, err := r.caller.Call(ctx, "/ropa/generate-document", backend.RequestOptions{
		Method: http.MethodPost,
		JSON:   map[string]string{"session_id": sessionID},
	}, true)
	if err != nil {
		return nil, err
	}
	if err := backend.ExpectOK(resp); err != nil {
		return nil, err
	}
	return resp, nil
}
