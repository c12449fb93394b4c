package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadSessionConfigDefaults(t *testing.T) {
	cfg := EmptySessionConfig()
	if got := cfg.GetResendTimeout(); got != 1*time.Second {
		t.Errorf("GetResendTimeout() = %v, want 1s", got)
	}
	if got := cfg.GetResendMaxAttempts(); got != 3 {
		t.Errorf("GetResendMaxAttempts() = %d, want 3", got)
	}
	if got := cfg.GetUIBridgeChunkSize(); got != 1024 {
		t.Errorf("GetUIBridgeChunkSize() = %d, want 1024", got)
	}
	if got := cfg.GetUIBridgeAddr(); got != "127.0.0.1:7900" {
		t.Errorf("GetUIBridgeAddr() = %q, want 127.0.0.1:7900", got)
	}
}

func TestLoadSessionConfigPartialOverride(t *testing.T) {
	path := writeConfigFile(t, `{"resend_timeout": "2s", "resend_max_attempts": 5}`)
	cfg, err := LoadSessionConfig(path)
	if err != nil {
		t.Fatalf("LoadSessionConfig: %v", err)
	}
	if got := cfg.GetResendTimeout(); got != 2*time.Second {
		t.Errorf("GetResendTimeout() = %v, want 2s", got)
	}
	if got := cfg.GetResendMaxAttempts(); got != 5 {
		t.Errorf("GetResendMaxAttempts() = %d, want 5", got)
	}
	// Unspecified fields still fall back to defaults.
	if got := cfg.GetAckDrainThreshold(); got != 32 {
		t.Errorf("GetAckDrainThreshold() = %d, want 32", got)
	}
}

func TestLoadSessionConfigRejectsBadExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.txt")
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadSessionConfig(path); err == nil {
		t.Fatal("expected error for non-.json extension")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []string{
		`{"resend_timeout": "not-a-duration"}`,
		`{"resend_max_attempts": 0}`,
		`{"ui_bridge_chunk_size": 10}`,
	}
	for _, body := range cases {
		var cfg SessionConfig
		if err := json.Unmarshal([]byte(body), &cfg); err != nil {
			t.Fatalf("unmarshal %s: %v", body, err)
		}
		if err := cfg.Validate(); err == nil {
			t.Errorf("Validate() with %s: expected error", body)
		}
	}
}
