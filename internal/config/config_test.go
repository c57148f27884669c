package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// staticToken is a test double for the token file.
type staticToken struct {
	value string
	err   error
}

func (m staticToken) ServerToken() (string, error) {
	return m.value, m.err
}

var noToken = staticToken{err: errors.New("no token file")}

func writeTempConfig(t *testing.T, content string) *settingsFile {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return readSettings(path)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

// TestDefaults verifies all default values are applied when loading an empty config file.
func TestDefaults(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, `{}`)

	cfg, err := loadFrom(b, noToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Gateway.BaseURL != "http://localhost:8000" {
		t.Errorf("Gateway.BaseURL = %q", cfg.Gateway.BaseURL)
	}
	if d, _ := cfg.Gateway.TimeoutDuration(); d.Seconds() != 60 {
		t.Errorf("Gateway.Timeout = %v, want 60s", d)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.Server.Token != "" {
		t.Errorf("Server.Token = %q, want empty", cfg.Server.Token)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Ingest.Concurrency != 4 {
		t.Errorf("Ingest.Concurrency = %d, want 4", cfg.Ingest.Concurrency)
	}
	if !strings.HasSuffix(cfg.Storage.DataDir, "tonegate") {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
}

// TestFileParsing verifies that all fields are read from the JSON file.
func TestFileParsing(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, `{
		"gateway.base_url": "https://tone.example.com/api",
		"gateway.timeout": "15s",
		"server.port": 5000,
		"storage.data_dir": "/tmp/tonegate-test",
		"log.level": "debug",
		"ingest.concurrency": "8",
		"ingest.company_id": "acme",
		"server.token": "ignored-in-file"
	}`)

	cfg, err := loadFrom(b, noToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Gateway.BaseURL != "https://tone.example.com/api" {
		t.Errorf("Gateway.BaseURL = %q", cfg.Gateway.BaseURL)
	}
	if cfg.Gateway.Timeout != "15s" {
		t.Errorf("Gateway.Timeout = %q", cfg.Gateway.Timeout)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Storage.DataDir != "/tmp/tonegate-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Ingest.Concurrency != 8 {
		t.Errorf("Ingest.Concurrency = %d, want 8", cfg.Ingest.Concurrency)
	}
	if cfg.Ingest.CompanyID != "acme" {
		t.Errorf("Ingest.CompanyID = %q", cfg.Ingest.CompanyID)
	}
	if cfg.Server.Token != "" {
		t.Errorf("secret read from config file: %q", cfg.Server.Token)
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, `{"gateway.base_url": "http://file:8000", "server.port": 5000}`)

	t.Setenv("TONEGATE_GATEWAY_BASE_URL", "http://env:9000")
	t.Setenv("TONEGATE_SERVER_PORT", "not-a-number")
	t.Setenv("TONEGATE_SERVER_TOKEN", "env-token")

	cfg, err := loadFrom(b, staticToken{value: "file-token"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Gateway.BaseURL != "http://env:9000" {
		t.Errorf("Gateway.BaseURL = %q, want env value", cfg.Gateway.BaseURL)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want file value when env is unparseable", cfg.Server.Port)
	}
	if cfg.Server.Token != "env-token" {
		t.Errorf("Server.Token = %q, want env-token", cfg.Server.Token)
	}
}

// TestTokenFileFallback verifies the token file is consulted when no token is in env.
func TestTokenFileFallback(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, `{}`)

	cfg, err := loadFrom(b, staticToken{value: "stored-secret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Token != "stored-secret" {
		t.Errorf("Server.Token = %q, want %q", cfg.Server.Token, "stored-secret")
	}
}

// TestInvalidValues verifies a clear error for unusable settings.
func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"base url", `{"gateway.base_url": "not a url"}`, "gateway.base_url"},
		{"timeout", `{"gateway.timeout": "soon"}`, "gateway.timeout"},
		{"port", `{"server.port": 70000}`, "server.port"},
		{"concurrency", `{"ingest.concurrency": 0}`, "ingest.concurrency"},
		{"fractional int", `{"server.port": 80.5}`, "server.port"},
		{"wrong type", `{"log.level": 3}`, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := loadFrom(writeTempConfig(t, tt.content), noToken)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

// TestSetKeyAndShowAll verifies writes land in the right file and the token stays masked.
func TestSetKeyAndShowAll(t *testing.T) {
	clearEnv(t)
	f := writeTempConfig(t, `{}`)
	tokens := tokenFile{path: filepath.Join(t.TempDir(), "server_token")}

	if err := setKey(f, tokens, "ingest.concurrency", "6"); err != nil {
		t.Fatalf("setKey: %v", err)
	}
	if err := setKey(f, tokens, "ingest.concurrency", "six"); err == nil {
		t.Error("expected error for non-integer value")
	}
	if err := setKey(f, tokens, "no.such.key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
	if err := setKey(f, tokens, "server.token", "s3cret"); err != nil {
		t.Fatalf("setting token: %v", err)
	}

	reloaded := readSettings(f.path)
	cfg, err := loadFrom(reloaded, tokens)
	if err != nil {
		t.Fatalf("loadFrom: %v", err)
	}
	if cfg.Ingest.Concurrency != 6 {
		t.Errorf("Ingest.Concurrency = %d, want 6", cfg.Ingest.Concurrency)
	}
	if cfg.Server.Token != "s3cret" {
		t.Errorf("Server.Token = %q, want value from token file", cfg.Server.Token)
	}
	if _, ok := reloaded.values["server.token"]; ok {
		t.Error("token written to config file")
	}
	if info, err := os.Stat(tokens.path); err != nil || info.Mode().Perm() != 0o600 {
		t.Errorf("token file mode = %v, %v; want 0600", info, err)
	}

	for _, ki := range ShowAll(cfg) {
		if ki.Key == "server.token" && ki.Value != "(set)" {
			t.Errorf("server.token shown as %q", ki.Value)
		}
	}
	if len(ValidKeys()) != len(specs) {
		t.Errorf("ValidKeys = %v", ValidKeys())
	}
}

// TestMalformedFileFallsBackToDefaults verifies a broken config.json does not block startup.
func TestMalformedFileFallsBackToDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := loadFrom(writeTempConfig(t, `{not json`), noToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want default", cfg.Server.Port)
	}
}
