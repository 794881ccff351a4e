// Package logging builds the *slog.Logger shared by all apicheck components.
//
// Records are rendered by charmbracelet/log, which implements slog.Handler.
// Components take a *slog.Logger through their options and fall back to
// Nop() when none is given.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// Format is the log output format
type Format string

// Output formats
const (
	FormatText   Format = "text"
	FormatJSON   Format = "json"
	FormatLogfmt Format = "logfmt"
)

// Config holds logging configuration
type Config struct {
	// Level is one of debug, info, warn, error
	Level string

	// Format is text, json or logfmt
	Format Format

	// Output defaults to os.Stderr
	Output io.Writer

	// File, when set, receives a copy of every record
	File string
}

// DefaultConfig returns the configuration used when nothing is configured
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: FormatText,
		Output: os.Stderr,
	}
}

// New creates a logger from cfg. The returned closer releases the log file,
// if one was opened, and is never nil.
func New(cfg Config) (*slog.Logger, io.Closer, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	level, err := charmlog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	formatter, err := formatterFor(cfg.Format)
	if err != nil {
		return nil, nil, err
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = io.MultiWriter(out, f)
		closer = f
	}

	handler := charmlog.NewWithOptions(out, charmlog.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})

	return slog.New(handler), closer, nil
}

// Nop returns a logger that discards everything
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatLogfmt:
		return f, nil
	default:
		return "", fmt.Errorf("invalid log format '%s': must be 'text', 'json' or 'logfmt'", s)
	}
}

func formatterFor(format Format) (charmlog.Formatter, error) {
	f, err := ParseFormat(string(format))
	if err != nil {
		return 0, err
	}
	switch f {
	case FormatJSON:
		return charmlog.JSONFormatter, nil
	case FormatLogfmt:
		return charmlog.LogfmtFormatter, nil
	default:
		return charmlog.TextFormatter, nil
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
