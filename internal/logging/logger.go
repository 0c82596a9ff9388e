// Package logging builds the hclog loggers used by the command line tools.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
)

// DefaultLevel is used when neither a flag nor the environment sets one.
const DefaultLevel = "info"

// NewLogger creates a logger writing to output, or stderr when nil.
// ICOGEN_JSON_LOG=1 switches to JSON lines.
func NewLogger(name, level string, output io.Writer) hclog.Logger {
	if output == nil {
		output = os.Stderr
	}
	jsonFormat := os.Getenv("ICOGEN_JSON_LOG") == "1"
	if !jsonFormat {
		output = NewPrefixWriter("icogen ", output)
	}
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		lvl = hclog.LevelFromString(DefaultLevel)
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      lvl,
		JSONFormat: jsonFormat,
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z",
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// LevelFromEnv returns ICOGEN_LOG_LEVEL, or DefaultLevel.
func LevelFromEnv() string {
	if level := os.Getenv("ICOGEN_LOG_LEVEL"); level != "" {
		return level
	}
	return DefaultLevel
}
