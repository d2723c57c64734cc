// Package config loads the core's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures everything the core needs to wire itself up. The mobile
// shell writes this file once at install time.
type Config struct {
	// ProjectID is the Firebase project backing the remote store.
	ProjectID string
	// APIKey authenticates REST calls against the remote store.
	APIKey string
	// Endpoint overrides the remote endpoint (emulators, tests).
	Endpoint string
	// DataDir holds the on-device SQLite database.
	DataDir string
	// ProbeURL, when set, enables the HTTP reachability probe.
	ProbeURL string
	// ProbeInterval is the probe cadence.
	ProbeInterval time.Duration
	// PollInterval is the remote subscription polling cadence.
	PollInterval time.Duration
	// MaxAttempts bounds per-mutation retries during a drain.
	MaxAttempts int
}

const (
	defaultDataDir       = "data"
	defaultProbeInterval = 30 * time.Second
	defaultPollInterval  = 15 * time.Second
	defaultMaxAttempts   = 3
)

// Load parses the config at path, falling back to defaults for anything
// missing. A missing file yields pure defaults.
func Load(path string) (Config, error) {
	cfg := Config{
		DataDir:       defaultDataDir,
		ProbeInterval: defaultProbeInterval,
		PollInterval:  defaultPollInterval,
		MaxAttempts:   defaultMaxAttempts,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}

	var raw struct {
		Remote struct {
			ProjectID           string `toml:"project_id"`
			APIKey              string `toml:"api_key"`
			Endpoint            string `toml:"endpoint"`
			PollIntervalSeconds int    `toml:"poll_interval_seconds"`
		} `toml:"remote"`
		Storage struct {
			DataDir string `toml:"data_dir"`
		} `toml:"storage"`
		Probe struct {
			URL             string `toml:"url"`
			IntervalSeconds int    `toml:"interval_seconds"`
		} `toml:"probe"`
		Sync struct {
			MaxAttempts int `toml:"max_attempts"`
		} `toml:"sync"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.ProjectID = raw.Remote.ProjectID
	cfg.APIKey = raw.Remote.APIKey
	cfg.Endpoint = raw.Remote.Endpoint
	if raw.Remote.PollIntervalSeconds > 0 {
		cfg.PollInterval = time.Duration(raw.Remote.PollIntervalSeconds) * time.Second
	}
	if raw.Storage.DataDir != "" {
		cfg.DataDir = raw.Storage.DataDir
	}
	cfg.ProbeURL = raw.Probe.URL
	if raw.Probe.IntervalSeconds > 0 {
		cfg.ProbeInterval = time.Duration(raw.Probe.IntervalSeconds) * time.Second
	}
	if raw.Sync.MaxAttempts > 0 {
		cfg.MaxAttempts = raw.Sync.MaxAttempts
	}

	return cfg, nil
}
