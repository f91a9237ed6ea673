package conf

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the root logger. format is "console" or "json"; an
// unknown level falls back to info.
func NewLogger(level, format string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime, NoColor: true}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Logger builds the root logger from the configuration. DEBUG forces the
// debug level.
func (c *Config) Logger(w io.Writer) zerolog.Logger {
	level := c.Log.Level
	if c.Debug {
		level = "debug"
	}
	return NewLogger(level, c.Log.Format, w)
}
