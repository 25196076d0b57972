package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ropatopia/internal/auth"
	"ropatopia/internal/backend"
	"ropatopia/internal/bootstrap"
	"ropatopia/internal/config"
	"ropatopia/internal/model"
)

const testClientID = "0b8f3f63-3c1e-4f4b-a0a1-7f5f3b2b9c10"

type testEnv struct {
	router  *gin.Engine
	clients *auth.Manager

	mu   sync.Mutex
	hits map[string]int
	mux  *nethttp.ServeMux
}

func (e *testEnv) handle(pattern string, h nethttp.HandlerFunc) {
	e.mux.HandleFunc(pattern, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		e.mu.Lock()
		e.hits[pattern]++
		e.mu.Unlock()
		h(w, r)
	})
}

func (e *testEnv) count(pattern string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hits[pattern]
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	env := &testEnv{hits: make(map[string]int), mux: nethttp.NewServeMux()}
	srv := httptest.NewServer(env.mux)
	t.Cleanup(srv.Close)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&model.BulkJob{}); err != nil {
		t.Fatal(err)
	}

	store, err := auth.NewTokenStore(auth.StoreTypeMemory)
	if err != nil {
		t.Fatal(err)
	}
	env.clients = auth.NewManager(store)

	cfg := &config.Config{
		App:    config.AppConfig{Name: "ropatopia", GinMode: gin.TestMode, WebDir: t.TempDir()},
		Auth:   config.AuthConfig{CookieName: "ropatopia_client"},
		Upload: config.UploadConfig{MaxSizeMB: 50},
	}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := bootstrap.Assemble(cfg, quiet, db, backend.NewClient(srv.URL, 5*time.Second, quiet), env.clients, nil)
	env.router = NewRouter(app)
	return env
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	if err := e.clients.Session(testClientID).Authenticate(context.Background(), "tok"); err != nil {
		t.Fatal(err)
	}
}

func (e *testEnv) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.AddCookie(&nethttp.Cookie{Name: "ropatopia_client", Value: testClientID})
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var out envelope
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func writeJSON(w nethttp.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestLoginThenStatus(t *testing.T) {
	env := newTestEnv(t)
	env.handle("/auth/jwt/login", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeJSON(w, nethttp.StatusOK, `{"access_token":"tok-1","token_type":"bearer"}`)
	})

	w := env.do(nethttp.MethodPost, "/api/v1/auth/login", `{"username":"ann","password":"pw"}`)
	if w.Code != nethttp.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body.String())
	}
	tok, _ := env.clients.Session(testClientID).AccessToken(context.Background())
	if tok != "tok-1" {
		t.Errorf("stored token = %q", tok)
	}

	var st struct {
		State string `json:"state"`
	}
	_ = json.Unmarshal(decode(t, env.do(nethttp.MethodGet, "/api/v1/auth/status", "")).Data, &st)
	if st.State != "authenticated" {
		t.Errorf("state = %s", st.State)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.handle("/auth/jwt/login", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeJSON(w, nethttp.StatusBadRequest, `{"detail":"LOGIN_BAD_CREDENTIALS"}`)
	})
	w := env.do(nethttp.MethodPost, "/api/v1/auth/login", `{"username":"ann","password":"bad"}`)
	if w.Code != nethttp.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	if msg := decode(t, w).Message; msg != "Wrong username or password" {
		t.Errorf("message = %q", msg)
	}
}

func TestProtectedRouteWithoutToken(t *testing.T) {
	env := newTestEnv(t)
	env.handle("/sessions", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeJSON(w, nethttp.StatusOK, `[]`)
	})

	w := env.do(nethttp.MethodGet, "/api/v1/sessions", "")
	if w.Code != nethttp.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	var data struct {
		Redirect string `json:"redirect"`
	}
	_ = json.Unmarshal(decode(t, w).Data, &data)
	if data.Redirect != "/login" {
		t.Errorf("redirect = %q", data.Redirect)
	}
	if env.count("/sessions") != 0 {
		t.Error("backend called without a token")
	}
}

func TestBackend401ClearsTokenAndRedirects(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	env.handle("/sessions", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusUnauthorized)
	})

	w := env.do(nethttp.MethodGet, "/api/v1/sessions", "", "Accept", "text/html")
	if w.Code != nethttp.StatusFound || w.Header().Get("Location") != "/login" {
		t.Fatalf("status = %d, location = %q", w.Code, w.Header().Get("Location"))
	}
	if env.clients.Session(testClientID).Authenticated() {
		t.Error("token kept after backend 401")
	}
}

func TestSessionsSearch(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	env.handle("/sessions", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeJSON(w, nethttp.StatusOK, `{"sessions":[
			{"session_id":"1","company_name":"Acme","processing_activities":["Payroll"]},
			{"session_id":"2","company_name":"Globex","processing_activities":["Marketing"]}
		]}`)
	})

	w := env.do(nethttp.MethodGet, "/api/v1/sessions?q=payroll", "")
	if w.Code != nethttp.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var sessions []model.Session
	_ = json.Unmarshal(decode(t, w).Data, &sessions)
	if len(sessions) != 1 || sessions[0].SessionID != "1" {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestDeleteSessionNeedsConfirmation(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	env.handle("/session/s1", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusNoContent)
	})

	w := env.do(nethttp.MethodDelete, "/api/v1/sessions/s1", "")
	if w.Code != nethttp.StatusPreconditionRequired {
		t.Fatalf("unconfirmed status = %d", w.Code)
	}
	if env.count("/session/s1") != 0 {
		t.Fatal("deleted without confirmation")
	}

	w = env.do(nethttp.MethodDelete, "/api/v1/sessions/s1?confirm=true", "")
	if w.Code != nethttp.StatusOK || env.count("/session/s1") != 1 {
		t.Fatalf("confirmed status = %d, calls = %d", w.Code, env.count("/session/s1"))
	}
	if !strings.Contains(w.Body.String(), "The session has been deleted.") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestUploadRejectsTextFile(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	env.handle("/ingest-file", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeJSON(w, nethttp.StatusOK, `{"batch_id":"b1"}`)
	})

	body := "--XYZ\r\n" +
		"Content-Disposition: form-data; name=\"company\"\r\n\r\nAcme\r\n" +
		"--XYZ\r\n" +
		"Content-Disposition: form-data; name=\"file\"; filename=\"notes.txt\"\r\n" +
		"Content-Type: text/plain\r\n\r\nhello\r\n" +
		"--XYZ--\r\n"
	req := httptest.NewRequest(nethttp.MethodPost, "/api/v1/uploads", strings.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=XYZ")
	req.AddCookie(&nethttp.Cookie{Name: "ropatopia_client", Value: testClientID})
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != nethttp.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if msg := decode(t, w).Message; msg != "Only PDF, XLSX, and CSV files are allowed." {
		t.Errorf("message = %q", msg)
	}
	if env.count("/ingest-file") != 0 {
		t.Error("rejected file reached the backend")
	}
}

func TestActivitiesFallback(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	w := env.do(nethttp.MethodGet, "/api/v1/activities", "")
	var list struct {
		Activities []string `json:"activities"`
		Fallback   bool     `json:"fallback"`
	}
	_ = json.Unmarshal(decode(t, w).Data, &list)
	if !list.Fallback || len(list.Activities) != 4 {
		t.Errorf("list = %+v", list)
	}
}

func TestQuestionnaireEditGate(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	env.handle("/session/s1", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeJSON(w, nethttp.StatusOK, `{"session_id":"s1","company_name":"Acme","processing_activities":[],
			"chats":[{"question_id":"q1","question":"What?","answer":"A","updated_at":"2024-05-01T09:00:00Z"}]}`)
	})

	w := env.do(nethttp.MethodPut, "/api/v1/sessions/s1/questionnaire/questions/q1", `{"question":"Edited"}`)
	if w.Code != nethttp.StatusConflict {
		t.Fatalf("edit outside edit mode = %d", w.Code)
	}
	if w := env.do(nethttp.MethodPost, "/api/v1/sessions/s1/questionnaire/edit", `{"editing":true}`); w.Code != nethttp.StatusOK {
		t.Fatalf("enter edit = %d", w.Code)
	}
	w = env.do(nethttp.MethodPut, "/api/v1/sessions/s1/questionnaire/questions/q1", `{"question":"Edited"}`)
	if w.Code != nethttp.StatusOK || !strings.Contains(w.Body.String(), `"q1"`) {
		t.Fatalf("edit = %d: %s", w.Code, w.Body.String())
	}

	w = env.do(nethttp.MethodGet, "/api/v1/sessions/s1/questionnaire/download", "")
	if w.Code != nethttp.StatusOK || !strings.Contains(w.Header().Get("Content-Disposition"), "questions_and_answers.xlsx") {
		t.Errorf("download = %d, %v", w.Code, w.Header())
	}
}

func TestJobsRunInProcess(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	env.handle("/bulk_generate_pia", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeJSON(w, nethttp.StatusOK, `[{"question_id":"","answer":"done"}]`)
	})

	w := env.do(nethttp.MethodPost, "/api/v1/jobs", `{"batch_id":"b1","processing_activity":["Payroll"],"queries":["Q1"]}`)
	if w.Code != nethttp.StatusOK {
		t.Fatalf("create = %d: %s", w.Code, w.Body.String())
	}
	var job struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(decode(t, w).Data, &job)

	deadline := time.Now().Add(3 * time.Second)
	for {
		var got struct {
			Status string `json:"status"`
		}
		_ = json.Unmarshal(decode(t, env.do(nethttp.MethodGet, "/api/v1/jobs/"+job.ID, "")).Data, &got)
		if got.Status == string(model.BulkJobDone) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job still %s", got.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if w := env.do(nethttp.MethodGet, "/api/v1/jobs/unknown", ""); w.Code != nethttp.StatusNotFound {
		t.Errorf("unknown job = %d", w.Code)
	}
}

func TestClaudeGenerate(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	env.handle("/claude/generate", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeJSON(w, nethttp.StatusOK, `{"content":[{"type":"text","text":"A short privacy notice."}]}`)
	})

	w := env.do(nethttp.MethodPost, "/api/v1/claude/generate", `{"message":"Write a privacy notice"}`)
	if w.Code != nethttp.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var result struct {
		Kind    string `json:"kind"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(decode(t, w).Data, &result); err != nil {
		t.Fatal(err)
	}
	if result.Kind != "content" || result.Content != "A short privacy notice." {
		t.Errorf("result = %+v", result)
	}

	w = env.do(nethttp.MethodPost, "/api/v1/claude/generate", `{"message":" "}`)
	if w.Code != nethttp.StatusBadRequest || decode(t, w).Message != "Please enter a prompt." {
		t.Errorf("blank prompt: %d %s", w.Code, w.Body.String())
	}
	if n := env.count("/claude/generate"); n != 1 {
		t.Errorf("backend calls = %d, want 1", n)
	}
}
