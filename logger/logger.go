package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger settings
type Config struct {
	// Level is one of trace, debug, info, warn, error, fatal, panic.
	// Unknown values fall back to info
	Level string

	// JSON switches from the human readable console output to json
	JSON bool

	// Out defaults to os.Stdout
	Out io.Writer
}

// ParseLevel converts level to a zerolog level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "panic":
		return zerolog.PanicLevel
	case "fatal":
		return zerolog.FatalLevel
	case "error":
		return zerolog.ErrorLevel
	case "warn":
		return zerolog.WarnLevel
	case "debug":
		return zerolog.DebugLevel
	case "trace":
		return zerolog.TraceLevel
	}
	return zerolog.InfoLevel
}

// NewLogger instantiate zerolog configuration
func NewLogger(config Config) *zerolog.Logger {
	out := config.Out
	if out == nil {
		out = os.Stdout
	}

	if !config.JSON {
		output := zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: time.RFC3339}
		output.FormatLevel = func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("| %s |", i))
		}
		output.FormatMessage = func(i interface{}) string {
			return fmt.Sprintf("%s", i)
		}
		out = output
	}

	logger := zerolog.New(out).Level(ParseLevel(config.Level)).With().Timestamp().Caller().Logger()
	return &logger
}
