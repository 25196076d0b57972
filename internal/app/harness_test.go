package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"ropatopia/internal/auth"
	"ropatopia/internal/backend"
)

type fakeBackend struct {
	mux  *http.ServeMux
	mu   sync.Mutex
	hits map[string]int
}

func (b *fakeBackend) handle(path string, h http.HandlerFunc) {
	b.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits[path]++
		b.mu.Unlock()
		h(w, r)
	})
}

func (b *fakeBackend) count(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[path]
}

func (b *fakeBackend) total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, v := range b.hits {
		n += v
	}
	return n
}

type harness struct {
	backend *fakeBackend
	gateway *Gateway
	manager *auth.Manager
	sess    *auth.Session
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fb := &fakeBackend{mux: http.NewServeMux(), hits: make(map[string]int)}
	srv := httptest.NewServer(fb.mux)
	t.Cleanup(srv.Close)

	store, err := auth.NewTokenStore(auth.StoreTypeMemory)
	if err != nil {
		t.Fatalf("NewTokenStore: %v", err)
	}
	manager := auth.NewManager(store)
	sess := manager.Session("client-1")
	if err := sess.Authenticate(context.Background(), "tok"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	return &harness{
		backend: fb,
		gateway: NewGateway(backend.NewClient(srv.URL, 5*time.Second, nil), nil),
		manager: manager,
		sess:    sess,
	}
}

func (h *harness) token(t *testing.T) string {
	t.Helper()
	tok, err := h.sess.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	return tok
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	switch body := v.(type) {
	case string:
		_, _ = io.WriteString(w, body)
	default:
		_ = json.NewEncoder(w).Encode(body)
	}
}

func fileHeader(t *testing.T, name, contentType string, data []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, name))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("ReadForm: %v", err)
	}
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

type recordingConfirmer struct {
	answer  bool
	prompts []string
	notices []Notice
}

func (c *recordingConfirmer) Confirm(_ context.Context, prompt string) bool {
	c.prompts = append(c.prompts, prompt)
	return c.answer
}

func (c *recordingConfirmer) Notify(_ context.Context, n Notice) {
	c.notices = append(c.notices, n)
}
