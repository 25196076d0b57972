package repository

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"ropatopia/internal/backend"
	"ropatopia/internal/model"
)

var supportedExtensions = []string{".csv", ".xlsx", ".pdf"}

type IngestionRepository struct {
	caller backend.Caller
}

func NewIngestionRepository(caller backend.Caller) *IngestionRepository {
	return &IngestionRepository{caller: caller}
}

// IngestFile uploads a CSV, XLSX or PDF and returns the batch id the backend
// assigned to it.
func (r *IngestionRepository) IngestFile(ctx context.Context, file FileUpload, company, sheetName, template string) (string, error) {
	resp, err := r.caller.Call(ctx, "/ingest-file", backend.RequestOptions{
		Method: http.MethodPost,
		Multipart: &backend.MultipartBody{
			Files: []backend.FilePart{{
				Field:       "file",
				Filename:    file.Filename,
				ContentType: file.ContentType,
				Reader:      file.Reader,
			}},
			Fields: []backend.FormField{
				{Name: "company", Value: company},
				{Name: "sheet_name", Value: sheetName},
				{Name: "template_type", Value: template},
			},
		},
	}, true)
	if err != nil {
		return "", err
	}
	var out struct {
		BatchID string `json:"batch_id"`
	}
	if err := backend.DecodeJSON(resp, &out); err != nil {
		return "", err
	}
	if out.BatchID == "" {
		return "", backend.ErrMalformedResponse
	}
	return out.BatchID, nil
}

func (r *IngestionRepository) ListBatches(ctx context.Context) ([]model.Batch, error) {
	resp, err := r.caller.Call(ctx, "/ropa", backend.RequestOptions{Method: http.MethodGet}, true)
	if err != nil {
		return nil, err
	}
	items, err := readList(resp, "batches", "data")
	if err != nil {
		return nil, err
	}
	return decodeItems[model.Batch](items)
}

func IsFileTypeSupported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, s := range supportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

func ValidateFileSize(size int64, maxSizeMB int) bool {
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	return size <= int64(maxSizeMB)*1024*1024
}
