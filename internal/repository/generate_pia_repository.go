package repository

import (
	"context"
	"net/http"

	"ropatopia/internal/backend"
	"ropatopia/internal/model"
)

type GeneratePIARepository struct {
	caller backend.Caller
}

func NewGeneratePIARepository(caller backend.Caller) *GeneratePIARepository {
	return &GeneratePIARepository{caller: caller}
}

func (r *GeneratePIARepository) Generate(ctx context.Context, req model.RetrieveRequest) (*model.RetrieveResponse, error) {
	resp, err := r.caller.Call(ctx, "/generate_pia", backend.RequestOptions{
		Method: http.MethodPost,
		JSON:   req,
	}, true)
	if err != nil {
		return nil, err
	}
	var out model.RetrieveResponse
	if err := backend.DecodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BulkGenerate accepts both {"results": [..]} and a bare list in reply.
func (r *GeneratePIARepository) BulkGenerate(ctx context.Context, req model.BulkRetrieveRequest) ([]model.RetrieveResponse, error) {
	resp, err := r.caller.Call(ctx, "/bulk_generate_pia", backend.RequestOptions{
		Method: http.MethodPost,
		JSON:   req,
	}, true)
	if err != nil {
		return nil, err
	}
	items, err := readList(resp, "results")
	if err != nil {
		return nil, err
	}
	return decodeItems[model.RetrieveResponse](items)
}
