package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetupLoggerWithWritersFansOut(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("molecule finished", "identifier", "water")
	logger.Debug("suppressed")

	if !strings.Contains(stderr.String(), "molecule finished") {
		t.Errorf("stderr output missing message: %q", stderr.String())
	}
	if strings.Contains(stderr.String(), "suppressed") {
		t.Error("debug record leaked through info level")
	}

	var record map[string]any
	if err := json.Unmarshal(file.Bytes(), &record); err != nil {
		t.Fatalf("file output is not JSON: %v\n%s", err, file.String())
	}
	if record["msg"] != "molecule finished" || record["identifier"] != "water" {
		t.Errorf("unexpected JSON record: %v", record)
	}
}

func TestSetupLoggerCreatesFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "thermopipe.log")
	logger, cleanup := SetupLogger(Logging{
		LogFile:      logFile,
		ConsoleLevel: "ERROR",
		FileLevel:    "DEBUG",
	})
	logger.Debug("only the file sees this")
	if err := cleanup(); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("log file not created: %v", err)
	}
	if !strings.Contains(string(content), "only the file sees this") {
		t.Errorf("log file missing record: %q", content)
	}
}
