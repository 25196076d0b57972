package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"ropatopia/internal/backend"
	"ropatopia/internal/model"
)

type ClaudeRepository struct {
	caller backend.Caller
}

func NewClaudeRepository(caller backend.Caller) *ClaudeRepository {
	return &ClaudeRepository{caller: caller}
}

func (r *ClaudeRepository) Generate(ctx context.Context, message string) (*model.ClaudeResponse, error) {
	resp, err := r.caller.Call(ctx, "/claude/generate", backend.RequestOptions{
		Method: http.MethodPost,
		JSON:   model.ClaudeRequest{Message: message},
	}, true)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := backend.DecodeJSON(resp, &raw); err != nil {
		return nil, err
	}
	out := model.ClaudeResponse{Raw: raw}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrMalformedResponse, err)
	}
	return &out, nil
}
