// Package config tests for TOML loading.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoad_MissingFileUsesDefaults verifies pure defaults for a missing
// config.
func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DataDir != "data" {
		t.Errorf("DataDir = %q, want data", cfg.DataDir)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.PollInterval != 15*time.Second {
		t.Errorf("PollInterval = %v, want 15s", cfg.PollInterval)
	}
}

// TestLoad_ParsesAllSections verifies a full config file.
func TestLoad_ParsesAllSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tripcore.toml")
	content := `
[remote]
project_id = "sgt-logistica"
api_key = "key-123"
endpoint = "http://localhost:8080"
poll_interval_seconds = 5

[storage]
data_dir = "/var/lib/tripcore"

[probe]
url = "https://example.com/generate_204"
interval_seconds = 10

[sync]
max_attempts = 5
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ProjectID != "sgt-logistica" || cfg.APIKey != "key-123" {
		t.Errorf("remote = %q/%q", cfg.ProjectID, cfg.APIKey)
	}
	if cfg.Endpoint != "http://localhost:8080" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if cfg.DataDir != "/var/lib/tripcore" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.ProbeURL == "" || cfg.ProbeInterval != 10*time.Second {
		t.Errorf("probe = %q %v", cfg.ProbeURL, cfg.ProbeInterval)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d", cfg.MaxAttempts)
	}
}

// TestLoad_RejectsMalformedTOML verifies parse errors surface.
func TestLoad_RejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	os.WriteFile(path, []byte("[remote\nbroken"), 0644)

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
