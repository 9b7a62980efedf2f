package command

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joeycumines/npc-planner/internal/config"
)

// logConfig holds resolved logging configuration for a command run.
type logConfig struct {
	level   slog.Level
	logFile io.WriteCloser // nil if no file logging
}

// resolveLogConfig resolves log configuration from flags and settings. Flag
// values take precedence when non-empty. The caller must Close the returned
// logFile when non-nil.
func resolveLogConfig(flagPath, flagLevel string, settings config.Settings) (logConfig, error) {
	lc := logConfig{level: settings.LogLevel}

	if flagLevel != "" {
		if err := lc.level.UnmarshalText([]byte(flagLevel)); err != nil {
			return lc, fmt.Errorf("invalid log level: %s", flagLevel)
		}
	}

	logPath := flagPath
	if logPath == "" {
		logPath = settings.LogFile
	}
	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			return lc, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return lc, fmt.Errorf("failed to open log file %s: %w", logPath, err)
		}
		lc.logFile = f
	}

	return lc, nil
}

// logger returns a JSON logger on the log file when one is configured,
// otherwise a text logger on stderr.
func (lc logConfig) logger(stderr io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lc.level}
	if lc.logFile != nil {
		return slog.New(slog.NewJSONHandler(lc.logFile, opts))
	}
	return slog.New(slog.NewTextHandler(stderr, opts))
}

func (lc logConfig) Close() error {
	if lc.logFile == nil {
		return nil
	}
	return lc.logFile.Close()
}
