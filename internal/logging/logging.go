// Package logging provides structured logging for promptchain.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/meow-stack/promptchain/internal/config"
)

// NewForRun creates a logger that writes to <logs_dir>/<runID>.log, and
// also to the shared log file when one is configured. The terminal stays
// free for progress output.
func NewForRun(cfg *config.Config, baseDir, runID string) (*slog.Logger, io.Closer, error) {
	file, err := openAppend(filepath.Join(cfg.LogsDir(baseDir), runID+".log"))
	if err != nil {
		return nil, nil, err
	}
	files := multiCloser{file}
	var w io.Writer = file

	if cfg.Logging.File != "" {
		shared, err := openAppend(cfg.LogFile(baseDir))
		if err != nil {
			file.Close()
			return nil, nil, err
		}
		files = append(files, shared)
		w = io.MultiWriter(file, shared)
	}

	handler := newHandler(cfg.Logging.Format, w, parseLevel(cfg.Logging.Level))
	return slog.New(handler).With("run_id", runID), files, nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}

// NewForTest creates a silent logger for tests.
func NewForTest() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func parseLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(format config.LogFormat, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatText {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// WithComponent tags a logger with the component that owns it.
func WithComponent(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("component", name)
}

// WithRun returns a logger with run context.
func WithRun(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}

// WithPrompt returns a logger with chain prompt context.
func WithPrompt(logger *slog.Logger, promptID, promptName string) *slog.Logger {
	return logger.With("prompt_id", promptID, "prompt_name", promptName)
}

// WithStep returns a logger with step context. index is 0-based.
func WithStep(logger *slog.Logger, index int, stepID string) *slog.Logger {
	return logger.With("step_index", index, "step_id", stepID)
}
