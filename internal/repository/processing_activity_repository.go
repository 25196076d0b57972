package repository

import (
	"context"
	"net/http"
	"net/url"

	"ropatopia/internal/backend"
)

type ProcessingActivityRepository struct {
	caller backend.Caller
}

func NewProcessingActivityRepository(caller backend.Caller) *ProcessingActivityRepository {
	return &ProcessingActivityRepository{caller: caller}
}

func (r *ProcessingActivityRepository) FetchByBatchID(ctx context.Context, batchID string) ([]string, error) {
	resp, err := r.caller.Call(ctx, "/list/processing_activities", backend.RequestOptions{
		Method: http.MethodGet,
		Query:  url.Values{"batch_id": {batchID}},
	}, true)
	if err != nil {
		return nil, err
	}
	items, err := readList(resp, "processing_activities")
	if err != nil {
		return nil, err
	}
	return decodeItems[string](items)
}
