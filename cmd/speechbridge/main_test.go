package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Ali-AlHumidi/speechbridge/internal/config"
)

func TestInitLoggerJSONFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "speechbridge.log")

	logger, closer := initLogger(config.LoggingConfig{Level: "warn", Format: "json", Output: logFile})
	logger.Info("dropped")
	logger.Warn("kept", "target", "es")
	closer.Close()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line at warn level, got %d: %q", len(lines), data)
	}

	var record map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("Expected JSON output: %v", err)
	}
	if record["msg"] != "kept" || record["target"] != "es" {
		t.Errorf("Unexpected record %v", record)
	}
}

func TestInitLoggerTextFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "speechbridge.log")

	logger, closer := initLogger(config.LoggingConfig{Level: "info", Format: "text", Output: logFile})
	logger.Debug("hidden")
	logger.Info("Session finished", "frames", 42)
	closer.Close()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Error("Expected debug records to be filtered at info level")
	}
	if !strings.Contains(out, "Session finished") || !strings.Contains(out, "frames=42") {
		t.Errorf("Unexpected text output %q", out)
	}
}

func TestDeviceLabel(t *testing.T) {
	if got := deviceLabel(""); got != "default" {
		t.Errorf("Expected default, got %s", got)
	}
	if got := deviceLabel("BlackHole 2ch"); got != "BlackHole 2ch" {
		t.Errorf("Expected the device name, got %s", got)
	}
}
