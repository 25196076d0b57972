package backend

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const maxErrorBody = 4 << 10

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend responded %s", e.Status)
	}
	return fmt.Sprintf("backend responded %s: %s", e.Status, e.Body)
}

// ExpectOK returns a *StatusError for any non-2xx response and closes its body.
// 2xx responses are left untouched.
func ExpectOK(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(raw),
	}
}

// DecodeJSON checks the status and decodes the body into v, closing it.
func DecodeJSON(resp *http.Response, v any) error {
	if err := ExpectOK(resp); err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// Discard checks the status and drops the body.
func Discard(resp *http.Response) error {
	if err := ExpectOK(resp); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}
