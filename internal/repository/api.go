package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"ropatopia/internal/backend"
)

// FileUpload is a file forwarded to the backend as a multipart part.
type FileUpload struct {
	Filename    string
	ContentType string
	Reader      io.Reader
}

// readList decodes a list the backend may send bare or wrapped in an object,
// e.g. [..], {"sessions": [..]} or {"data": {"sessions": [..]}}.
func readList(resp *http.Response, keys ...string) ([]json.RawMessage, error) {
	if err := backend.ExpectOK(resp); err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read backend response failed: %w", err)
	}
	return unwrapList(raw, keys...)
}

func unwrapList(raw []byte, keys ...string) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", backend.ErrMalformedResponse, err)
		}
		return items, nil
	}
	if len(raw) > 0 && raw[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", backend.ErrMalformedResponse, err)
		}
		for _, k := range keys {
			if inner, ok := obj[k]; ok {
				return unwrapList(inner, keys...)
			}
		}
	}
	if string(raw) == "null" {
		return nil, nil
	}
	return nil, fmt.Errorf("%w: expected a list", backend.ErrMalformedResponse)
}

func decodeItems[T any](items []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", backend.ErrMalformedResponse, err)
		}
		out = append(out, v)
	}
	return out, nil
}
