// Package logger configures the process-wide zerolog logger from LoggingConfig.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"revline/internal/config"
)

// Setup installs the global logger and returns a function that releases the output.
func Setup(cfg config.LoggingConfig, service string) (func() error, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out, closeFn, err := openOutput(cfg.OutputPath)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(cfg.Format, "text") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Str("service", service).Logger()
	return closeFn, nil
}

func openOutput(path string) (io.Writer, func() error, error) {
	noop := func() error { return nil }
	switch path {
	case "", "stdout":
		return os.Stdout, noop, nil
	case "stderr":
		return os.Stderr, noop, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output %s: %w", path, err)
	}
	return f, f.Close, nil
}
