package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/meow-stack/promptchain/internal/config"
)

func TestNewForRun(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Paths: config.PathsConfig{
			LogsDir: filepath.Join(dir, "nested", "logs"),
		},
		Logging: config.LoggingConfig{
			Level:  config.LogLevelInfo,
			Format: config.LogFormatJSON,
		},
	}

	logger, closer, err := NewForRun(cfg, dir, "run-123")
	if err != nil {
		t.Fatalf("NewForRun failed: %v", err)
	}
	logger.Info("step started", "step_index", 0)
	closer.Close()

	data, err := os.ReadFile(filepath.Join(dir, "nested", "logs", "run-123.log"))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, data)
	}
	if entry["run_id"] != "run-123" {
		t.Errorf("run_id = %v, want run-123", entry["run_id"])
	}
}

func TestNewForRun_SharedFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Paths: config.PathsConfig{LogsDir: "logs"},
		Logging: config.LoggingConfig{
			Level:  config.LogLevelDebug,
			Format: config.LogFormatJSON,
			File:   "shared/chain.log",
		},
	}

	for _, runID := range []string{"run-a", "run-b"} {
		logger, closer, err := NewForRun(cfg, dir, runID)
		if err != nil {
			t.Fatalf("NewForRun failed: %v", err)
		}
		logger.Debug("step sent")
		if err := closer.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}

	shared, err := os.ReadFile(filepath.Join(dir, "shared", "chain.log"))
	if err != nil {
		t.Fatalf("Failed to read shared log: %v", err)
	}
	if !strings.Contains(string(shared), `"run_id":"run-a"`) || !strings.Contains(string(shared), `"run_id":"run-b"`) {
		t.Errorf("shared log missing a run: %s", shared)
	}

	own, err := os.ReadFile(filepath.Join(dir, "logs", "run-b.log"))
	if err != nil {
		t.Fatalf("Failed to read run log: %v", err)
	}
	if strings.Contains(string(own), "run-a") {
		t.Errorf("run log contains another run's entries: %s", own)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input config.LogLevel
		want  slog.Level
	}{
		{config.LogLevelDebug, slog.LevelDebug},
		{config.LogLevelInfo, slog.LevelInfo},
		{config.LogLevelWarn, slog.LevelWarn},
		{config.LogLevelError, slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%s) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewHandler_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(config.LogFormatText, &buf, slog.LevelInfo))

	logger.Info("test", "key", "value")

	if !strings.Contains(buf.String(), "key=value") {
		t.Errorf("output should contain 'key=value': %s", buf.String())
	}
}

func TestContextHelpers(t *testing.T) {
	tests := []struct {
		name   string
		enrich func(*slog.Logger) *slog.Logger
		want   map[string]any
	}{
		{
			name:   "run",
			enrich: func(l *slog.Logger) *slog.Logger { return WithRun(l, "run-001") },
			want:   map[string]any{"run_id": "run-001"},
		},
		{
			name:   "prompt",
			enrich: func(l *slog.Logger) *slog.Logger { return WithPrompt(l, "p-1", "Research") },
			want:   map[string]any{"prompt_id": "p-1", "prompt_name": "Research"},
		},
		{
			name:   "step",
			enrich: func(l *slog.Logger) *slog.Logger { return WithStep(l, 2, "s-3") },
			want:   map[string]any{"step_index": float64(2), "step_id": "s-3"},
		},
		{
			name:   "component",
			enrich: func(l *slog.Logger) *slog.Logger { return WithComponent(l, "executor") },
			want:   map[string]any{"component": "executor"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))
			tt.enrich(logger).Info("test")

			var result map[string]any
			if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
				t.Fatalf("JSON unmarshal failed: %v", err)
			}
			for k, v := range tt.want {
				if result[k] != v {
					t.Errorf("%s = %v, want %v", k, result[k], v)
				}
			}
		})
	}
}
