package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

type fakeTokens struct {
	token   string
	cleared int
}

func (f *fakeTokens) AccessToken(context.Context) (string, error) { return f.token, nil }

func (f *fakeTokens) ClearAuth(context.Context) error {
	f.cleared++
	f.token = ""
	return nil
}

func newTestConn(t *testing.T, h http.HandlerFunc, tokens TokenProvider) *Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, nil).Bind(tokens)
}

func TestCall_AttachesBearerWhenAuthRequired(t *testing.T) {
	var gotAuth, gotType string
	conn := newTestConn(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}, &fakeTokens{token: "abc"})

	resp, err := conn.Call(context.Background(), "/sessions", RequestOptions{}, true)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	resp.Body.Close()
	if gotAuth != "Bearer abc" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer abc")
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotType)
	}
}

func TestCall_NoTokenProceedsUnauthenticated(t *testing.T) {
	var gotAuth string
	conn := newTestConn(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}, &fakeTokens{})

	resp, err := conn.Call(context.Background(), "/sessions", RequestOptions{}, true)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	resp.Body.Close()
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty", gotAuth)
	}
}

func TestCall_PublicCallSkipsToken(t *testing.T) {
	var gotAuth string
	conn := newTestConn(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}, &fakeTokens{token: "abc"})

	resp, err := conn.Call(context.Background(), "/auth/register", RequestOptions{Method: http.MethodPost, JSON: map[string]string{"a": "b"}}, false)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	resp.Body.Close()
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty for public call", gotAuth)
	}
}

func TestCall_MultipartLeavesBoundaryHeader(t *testing.T) {
	var gotType, gotCompany, gotFile string
	conn := newTestConn(t, func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		gotCompany = r.FormValue("company")
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer f.Close()
		raw, _ := io.ReadAll(f)
		gotFile = string(raw)
	}, &fakeTokens{token: "abc"})

	body := &MultipartBody{
		Fields: []FormField{{Name: "company", Value: "Acme"}},
		Files:  []FilePart{{Field: "file", Filename: "ropa.csv", ContentType: "text/csv", Reader: strings.NewReader("a,b")}},
	}
	resp, err := conn.Call(context.Background(), "/ingest-file", RequestOptions{Method: http.MethodPost, Multipart: body}, true)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	resp.Body.Close()
	if !strings.HasPrefix(gotType, "multipart/form-data; boundary=") {
		t.Errorf("Content-Type = %q, want multipart with boundary", gotType)
	}
	if gotCompany != "Acme" || gotFile != "a,b" {
		t.Errorf("got company=%q file=%q", gotCompany, gotFile)
	}
}

func TestCall_FormEncoded(t *testing.T) {
	var gotType, gotUser string
	conn := newTestConn(t, func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		_ = r.ParseForm()
		gotUser = r.PostForm.Get("username")
	}, nil)

	resp, err := conn.Call(context.Background(), "/auth/jwt/login", RequestOptions{
		Method: http.MethodPost,
		Form:   url.Values{"username": {"ada"}, "password": {"pw"}},
	}, false)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	resp.Body.Close()
	if gotType != "application/x-www-form-urlencoded" || gotUser != "ada" {
		t.Errorf("got type=%q username=%q", gotType, gotUser)
	}
}

func TestCall_UnauthorizedClearsAuth(t *testing.T) {
	tokens := &fakeTokens{token: "expired"}
	conn := newTestConn(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, tokens)

	resp, err := conn.Call(context.Background(), "/sessions", RequestOptions{}, true)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if resp != nil {
		t.Errorf("resp = %v, want nil", resp)
	}
	if tokens.cleared != 1 || tokens.token != "" {
		t.Errorf("cleared=%d token=%q, want cleared once", tokens.cleared, tokens.token)
	}
}

func TestCall_UnauthorizedOnPublicCallIsPassedThrough(t *testing.T) {
	tokens := &fakeTokens{token: "keep"}
	conn := newTestConn(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, tokens)

	resp, err := conn.Call(context.Background(), "/auth/jwt/login", RequestOptions{Method: http.MethodPost}, false)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if tokens.cleared != 0 {
		t.Errorf("tokens cleared on public call")
	}
}

func TestDecodeJSON_StatusAndShape(t *testing.T) {
	conn := newTestConn(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.Error(w, "nope", http.StatusNotFound)
		case "/garbage":
			_, _ = w.Write([]byte("<html>"))
		default:
			_, _ = w.Write([]byte(`{"batch_id":"b1"}`))
		}
	}, nil)
	ctx := context.Background()

	resp, err := conn.Call(ctx, "/missing", RequestOptions{}, false)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var out struct {
		BatchID string `json:"batch_id"`
	}
	var statusErr *StatusError
	if err := DecodeJSON(resp, &out); !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("DecodeJSON(404) err = %v, want StatusError 404", err)
	}

	resp, _ = conn.Call(ctx, "/garbage", RequestOptions{}, false)
	if err := DecodeJSON(resp, &out); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("DecodeJSON(garbage) err = %v, want ErrMalformedResponse", err)
	}

	resp, _ = conn.Call(ctx, "/ok", RequestOptions{}, false)
	if err := DecodeJSON(resp, &out); err != nil || out.BatchID != "b1" {
		t.Errorf("DecodeJSON(ok) = %v, %q", err, out.BatchID)
	}
}
