package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvLogLevel  = "GATEWAY_LOG_LEVEL"
	EnvLogFormat = "GATEWAY_LOG_FORMAT"
)

// Config selects the level and output encoding of a logger.
type Config struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console | json
}

// New builds the process logger for app, honouring environment overrides.
func New(app string, cfg Config) zerolog.Logger {
	return NewWithWriter(os.Stdout, app, cfg)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, app string, cfg Config) zerolog.Logger {
	applyEnvOverrides(&cfg)
	out := w
	if !strings.EqualFold(strings.TrimSpace(cfg.Format), "json") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	lvl, _ := parseLevel(cfg.Level)
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("app", app).Logger()
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Format = v
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}
