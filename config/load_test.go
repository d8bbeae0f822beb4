package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const minimalConfig = `
env: paper
alpaca:
  apiKey: foo
  apiSecret: bar
`

func TestLoadFillsDefaults(t *testing.T) {
	path := writeTempConfig(t, minimalConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Env != "paper" || cfg.Alpaca.APIKey != "foo" {
		t.Fatalf("unexpected cfg values: %+v", cfg)
	}
	if cfg.Trading.KellyFraction != 0.10 {
		t.Errorf("expected default kelly 0.10, got %v", cfg.Trading.KellyFraction)
	}
	if cfg.Trading.OpenAt != "15:45" || cfg.Trading.CloseAt != "09:45" {
		t.Errorf("unexpected default windows: %+v", cfg.Trading)
	}
	if cfg.Chase.OpenWait() != 30*time.Second || cfg.Chase.CloseWait() != 60*time.Second {
		t.Errorf("unexpected default chase waits: %+v", cfg.Chase)
	}
	if cfg.Alpaca.BaseURL == "" || cfg.Alpaca.StreamURL == "" {
		t.Errorf("expected default endpoints: %+v", cfg.Alpaca)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, minimalConfig)
	t.Setenv("CT_ALPACA_API_KEY", "env-key")
	t.Setenv("CT_ALPACA_API_SECRET", "env-secret")
	cfg, err := LoadWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Alpaca.APIKey != "env-key" || cfg.Alpaca.APISecret != "env-secret" {
		t.Fatalf("env overrides not applied: %+v", cfg.Alpaca)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	if err := Validate(AppConfig{}); err == nil {
		t.Fatal("expected error for empty config")
	}

	path := writeTempConfig(t, `
env: paper
alpaca:
  apiKey: foo
  apiSecret: bar
trading:
  kellyFraction: 1.5
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for kellyFraction > 1")
	}

	path = writeTempConfig(t, `
env: paper
alpaca:
  apiKey: foo
  apiSecret: bar
trading:
  openAt: "25:99"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed openAt")
	}
}
