// Package log builds the structured logger threaded through the runtime,
// its workers, and the state tracker. Grounded on
// streamspace-dev-streamspace's internal/logger package: a root logger
// built once at process start and per-component children obtained via
// Log.With().Str("component", name).Logger(), here generalized from that
// repo's fixed HTTP/WebSocket/Security/... set to an arbitrary name per
// caller. Library: github.com/rs/zerolog, the same one streamspace uses
// for this concern.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Format selects the logger's output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config controls the root logger's level and encoding.
type Config struct {
	Level  zerolog.Level
	Format Format
}

// New builds a *zerolog.Logger writing to stderr per cfg. Format text
// gets zerolog's human-readable ConsoleWriter; anything else (including
// an empty Format) gets newline-delimited JSON, zerolog's native wire
// format.
func New(cfg Config) *zerolog.Logger {
	var w io.Writer = os.Stderr
	if cfg.Format == FormatText {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	l := zerolog.New(w).Level(cfg.Level).With().Timestamp().Logger()
	return &l
}

// Component returns a logger with a "component" field set, the
// convention every runtime worker and the state tracker use to tag their
// log lines.
func Component(base *zerolog.Logger, name string) *zerolog.Logger {
	l := base.With().Str("component", name).Logger()
	return &l
}
