package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"ropatopia/internal/backend"
)

func TestClaudeGenerate_ReturnsFirstText(t *testing.T) {
	h := newHarness(t)
	var sent map[string]string
	h.backend.handle("/claude/generate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&sent)
		respondJSON(w, http.StatusOK, `{"content":[{"type":"text","text":"Draft policy"},{"type":"text","text":"ignored"}]}`)
	})
	svc := NewClaudeService(h.gateway, nil)

	res, err := svc.Generate(context.Background(), h.sess, "Write a retention policy")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Kind != ContentOK || res.Content != "Draft policy" {
		t.Errorf("result = %+v", res)
	}
	if sent["message"] != "Write a retention policy" {
		t.Errorf("payload = %v", sent)
	}
}

func TestClaudeGenerate_EmptyTextFallsBackToRawBody(t *testing.T) {
	h := newHarness(t)
	body := `{"content":[{"type":"text","text":""}],"id":"msg_1"}`
	h.backend.handle("/claude/generate", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, body)
	})
	res, err := NewClaudeService(h.gateway, nil).Generate(context.Background(), h.sess, "hi")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Kind != ContentOK || res.Content != body {
		t.Errorf("result = %+v", res)
	}
}

func TestClaudeGenerate_FailuresAreTagged(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"detail":"boom"}`},
		{name: "no content", status: http.StatusOK, body: `{"content":[]}`},
		{name: "malformed", status: http.StatusOK, body: `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.backend.handle("/claude/generate", func(w http.ResponseWriter, r *http.Request) {
				respondJSON(w, tt.status, tt.body)
			})
			res, err := NewClaudeService(h.gateway, nil).Generate(context.Background(), h.sess, "hi")
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if res.Kind != ContentFailed || res.Content != "Error generating content. Please try again." || res.Reason == "" {
				t.Errorf("result = %+v", res)
			}
		})
	}
}

func TestClaudeGenerate_UnauthorizedPropagates(t *testing.T) {
	h := newHarness(t)
	h.backend.handle("/claude/generate", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusUnauthorized, `{"detail":"expired"}`)
	})
	_, err := NewClaudeService(h.gateway, nil).Generate(context.Background(), h.sess, "hi")
	if !errors.Is(err, backend.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if h.sess.Authenticated() {
		t.Error("session still authenticated after 401")
	}
}

func TestClaudeGenerate_BlankPromptSkipsBackend(t *testing.T) {
	h := newHarness(t)
	_, err := NewClaudeService(h.gateway, nil).Generate(context.Background(), h.sess, "   ")
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Message != "Please enter a prompt." {
		t.Fatalf("err = %v", err)
	}
	if h.backend.total() != 0 {
		t.Errorf("backend was called %d times", h.backend.total())
	}
}
