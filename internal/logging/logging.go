package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"beacon-bridge.klederson.com/internal/config"
)

// New builds the process logger. Development builds get a colored tint
// handler, production gets JSON. The returned closer releases the log file
// when one was opened.
func New(opts config.Options, version, appName string, fallback io.Writer) (*slog.Logger, func() error, error) {
	w, closer, err := openOutput(opts.LogFile, fallback)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output: %w", err)
	}
	return newWithWriter(w, opts, version, appName), closer, nil
}

func newWithWriter(w io.Writer, opts config.Options, version, appName string) *slog.Logger {
	if opts.AppEnv == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      opts.LogLevel,
			AddSource:  opts.LogLevel <= slog.LevelDebug,
			TimeFormat: time.Kitchen,
			NoColor:    w != os.Stderr && w != os.Stdout,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: opts.LogLevel,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", opts.AppEnv,
	)
}

func openOutput(path string, fallback io.Writer) (io.Writer, func() error, error) {
	noop := func() error { return nil }
	if path == "" {
		if fallback == nil {
			fallback = io.Discard
		}
		return fallback, noop, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
