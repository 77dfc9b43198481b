// Package logging configures structured logging for the chat service.
//
// The service logs through the standard library slog package. This
// package owns handler construction: level parsing from the
// environment, JSON versus text output, optional file logging, and the
// service attribute stamped on every record.
//
// # Basic Usage
//
//	logger, closer, err := logging.Setup(logging.FromEnv("brandchat"))
//	if err != nil { ... }
//	defer closer()
//	slog.SetDefault(logger)
//
// # Security Considerations
//
// Nothing here redacts sensitive data. Callers must keep customer
// messages, API keys, and tokens out of log attributes.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// =============================================================================
// Configuration
// =============================================================================

// Config controls handler construction. The zero value logs Info and
// above to stderr as text.
type Config struct {
	// Level is the minimum level, one of "debug", "info", "warn",
	// "error". Unknown values fall back to info.
	Level string

	// Service is stamped on every record as the "service" attribute.
	Service string

	// JSON switches output from text lines to JSON records.
	JSON bool

	// LogDir, when set, additionally writes records to
	// {service}_{date}.log inside the directory, created if needed.
	LogDir string
}

// FromEnv builds a Config from LOG_LEVEL, LOG_FORMAT, and LOG_DIR.
func FromEnv(service string) Config {
	return Config{
		Level:   os.Getenv("LOG_LEVEL"),
		Service: service,
		JSON:    strings.EqualFold(os.Getenv("LOG_FORMAT"), "json"),
		LogDir:  os.Getenv("LOG_DIR"),
	}
}

// ParseLevel maps a level name to its slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// Setup
// =============================================================================

// Setup builds a logger from the config.
//
// # Outputs
//
//   - *slog.Logger: Ready to install via slog.SetDefault.
//   - func(): Closes the log file if one was opened. Always non-nil.
//   - error: Non-nil only when the log directory or file cannot be
//     created; stderr logging never fails.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	out := io.Writer(os.Stderr)
	closer := func() {}

	if cfg.LogDir != "" {
		file, err := openLogFile(cfg.LogDir, cfg.Service)
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(os.Stderr, file)
		closer = func() { _ = file.Close() }
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler)
	if cfg.Service != "" {
		logger = logger.With("service", cfg.Service)
	}
	return logger, closer, nil
}

func openLogFile(dir, service string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory %s: %w", dir, err)
	}
	if service == "" {
		service = "brandchat"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().UTC().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", name, err)
	}
	return file, nil
}
