// Package logging tests for structured JSON logging.
package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
)

// newTestLogger builds an isolated logger writing into buf.
func newTestLogger(buf *bytes.Buffer, level LogLevel) *Logger {
	return &Logger{out: buf, minLevel: level}
}

// TestInit verifies logger initialization.
func TestInit(t *testing.T) {
	global = nil
	once = *new(sync.Once)

	var buf bytes.Buffer
	Init(&buf, LevelInfo)

	logger := Get()
	if logger == nil {
		t.Fatal("Get() returned nil after Init()")
	}
	if logger.out != &buf {
		t.Error("Init() did not set output writer correctly")
	}
	if logger.minLevel != LevelInfo {
		t.Errorf("minLevel = %v, want LevelInfo", logger.minLevel)
	}
}

// TestInit_idempotent verifies Init is idempotent.
func TestInit_idempotent(t *testing.T) {
	global = nil
	once = *new(sync.Once)

	var buf1, buf2 bytes.Buffer
	Init(&buf1, LevelInfo)
	first := Get()

	Init(&buf2, LevelDebug)
	if Get() != first {
		t.Error("second Init() replaced the global logger")
	}
	if Get().out != &buf1 {
		t.Error("second Init() changed the output writer")
	}
}

// TestLogger_JSONOutput verifies entries are valid JSON with expected keys.
func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, LevelDebug)

	logger.Info("drain complete", map[string]any{"committed": 3})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry.Level != "INFO" {
		t.Errorf("level = %s, want INFO", entry.Level)
	}
	if entry.Message != "drain complete" {
		t.Errorf("message = %q", entry.Message)
	}
	if entry.Context["committed"] != float64(3) {
		t.Errorf("context committed = %v, want 3", entry.Context["committed"])
	}
	if entry.Timestamp == "" {
		t.Error("timestamp missing")
	}
}

// TestLogger_LevelFiltering verifies entries below minLevel are dropped.
func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, LevelWarn)

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")
	logger.Error("kept too", errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d entries, want 2: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "boom") {
		t.Errorf("error entry missing cause: %s", lines[1])
	}
}

// TestLogger_WithComponent verifies the component stamp.
func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf, LevelDebug).WithComponent("queue")

	logger.Info("enqueued mutation")

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry.Component != "queue" {
		t.Errorf("component = %q, want queue", entry.Component)
	}
}

// TestMergeContext verifies multiple context maps merge with later keys
// winning.
func TestMergeContext(t *testing.T) {
	merged := mergeContext(
		map[string]any{"a": 1, "b": 1},
		map[string]any{"b": 2},
	)
	if merged["a"] != 1 || merged["b"] != 2 {
		t.Errorf("merged = %v", merged)
	}

	if mergeContext() != nil {
		t.Error("empty merge should be nil")
	}
}
