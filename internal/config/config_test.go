package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upload.MaxSizeMB != 50 || cfg.Auth.CookieName != "ropatopia_client" || cfg.Database.Driver != "sqlite" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.BackendTimeout() != 120*time.Second {
		t.Errorf("BackendTimeout = %v", cfg.BackendTimeout())
	}
}

func TestLoad_TOMLThenEnv(t *testing.T) {
	path := writeFile(t, "config.toml", `
[app]
port = 9090

[backend]
base_url = "https://api.example.test"

[redis]
enabled = true
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("APP_PORT", "7070")
	t.Setenv("RABBITMQ_ENABLED", "true")
	t.Setenv("UPLOAD_MAX_SIZE_MB", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Port != 7070 {
		t.Errorf("port = %d, env should win", cfg.App.Port)
	}
	if cfg.Backend.BaseURL != "https://api.example.test" || !cfg.Redis.Enabled {
		t.Errorf("file values lost: %+v", cfg)
	}
	if !cfg.RabbitMQ.Enabled {
		t.Error("RABBITMQ_ENABLED ignored")
	}
	if cfg.Upload.MaxSizeMB != 50 {
		t.Errorf("bad int override applied: %d", cfg.Upload.MaxSizeMB)
	}
	if cfg.HTTPAddr() != "0.0.0.0:7070" {
		t.Errorf("HTTPAddr = %s", cfg.HTTPAddr())
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
auth:
  token_store: redis
  session_idle_minutes: 30
database:
  driver: mysql
mysql:
  user: app
  db: ropa
`)
	t.Setenv("CONFIG_FILE", path)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.TokenStore != "redis" || cfg.SessionIdle() != 30*time.Minute {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	want := "app:@tcp(127.0.0.1:3306)/ropa?parseTime=true&loc=Local&charset=utf8mb4"
	if got := cfg.MySQLDSN(); got != want {
		t.Errorf("MySQLDSN = %s", got)
	}
}

func TestLoad_BadFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeFile(t, "config.toml", "[app\nport ="))
	if _, err := Load(); err == nil {
		t.Fatal("expected decode error")
	}
}
