package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerWritesJSON(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelInfo)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger.Info("release started", "bump", "minor")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	var entry map[string]any
	line := strings.TrimSpace(string(data))
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "release started" {
		t.Errorf("expected msg field, got %v", entry["msg"])
	}
	if entry["bump"] != "minor" {
		t.Errorf("expected bump attribute, got %v", entry["bump"])
	}
}

func TestChildLoggerAttributes(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	child := logger.WithRelease("rel-1").WithPackage("core").WithPhase("Publishing")
	child.Debug("publishing package")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["release_id"] != "rel-1" || entry["package"] != "core" || entry["phase"] != "Publishing" {
		t.Errorf("expected persistent attributes, got %v", entry)
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelError)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger.Info("should be filtered")
	logger.Error("should appear")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	content := string(data)
	if strings.Contains(content, "should be filtered") {
		t.Error("INFO message should have been filtered at ERROR level")
	}
	if !strings.Contains(content, "should appear") {
		t.Error("ERROR message should have been logged")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	logger := NewNopLogger()
	if err := logger.Close(); err != nil {
		t.Fatalf("Close on nop logger: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
