package repository

import (
	"context"
	"net/http"
	"net/url"

	"ropatopia/internal/backend"
	"ropatopia/internal/model"
)

type KnowledgeRepository struct {
	caller backend.Caller
}

func NewKnowledgeRepository(caller backend.Caller) *KnowledgeRepository {
	return &KnowledgeRepository{caller: caller}
}

func knowledgePath(sessionID string, rest ...string) string {
	p := "/session/" + url.PathEscape(sessionID) + "/knowledge"
	for _, r := range rest {
		p += "/" + url.PathEscape(r)
	}
	return p
}

func (r *KnowledgeRepository) List(ctx context.Context, sessionID string) ([]model.KnowledgeItem, error) {
	resp, err := r.caller.Call(ctx, knowledgePath(sessionID), backend.RequestOptions{Method: http.MethodGet}, true)
	if err != nil {
		return nil, err
	}
	items, err := readList(resp, "knowledge_items")
	if err != nil {
		return nil, err
	}
	return decodeItems[model.KnowledgeItem](items)
}

func (r *KnowledgeRepository) AddText(ctx context.Context, sessionID string, payload model.KnowledgeText) (*model.KnowledgeItem, error) {
	resp, err := r.caller.Call(ctx, knowledgePath(sessionID, "text"), backend.RequestOptions{
		Method: http.MethodPost,
		JSON:   payload,
	}, true)
	if err != nil {
		return nil, err
	}
	return decodeKnowledgeItem(resp)
}

func (r *KnowledgeRepository) AddFile(ctx context.Context, sessionID string, file FileUpload) (*model.KnowledgeItem, error) {
	resp, err := r.caller.Call(ctx, knowledgePath(sessionID, "file"), backend.RequestOptions{
		Method: http.MethodPost,
		Multipart: &backend.MultipartBody{Files: []backend.FilePart{{
			Field:       "file",
			Filename:    file.Filename,
			ContentType: file.ContentType,
			Reader:      file.Reader,
		}}},
	}, true)
	if err != nil {
		return nil, err
	}
	return decodeKnowledgeItem(resp)
}

func (r *KnowledgeRepository) UpdateText(ctx context.Context, sessionID, knowledgeID string, payload model.KnowledgeText) (*model.KnowledgeItem, error) {
	resp, err := r.caller.Call(ctx, knowledgePath(sessionID, knowledgeID), backend.RequestOptions{
		Method: http.MethodPut,
		JSON:   payload,
	}, true)
	if err != nil {
		return nil, err
	}
	return decodeKnowledgeItem(resp)
}

func (r *KnowledgeRepository) Delete(ctx context.Context, sessionID, knowledgeID string) error {
	resp, err := r.caller.Call(ctx, knowledgePath(sessionID, knowledgeID), backend.RequestOptions{Method: http.MethodDelete}, true)
	if err != nil {
		return err
	}
	return backend.Discard(resp)
}

func decodeKnowledgeItem(resp *http.Response) (*model.KnowledgeItem, error) {
	var item model.KnowledgeItem
	if err := backend.DecodeJSON(resp, &item); err != nil {
		return nil, err
	}
	return &item, nil
}
