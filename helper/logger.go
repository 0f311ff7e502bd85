package helper

import (
	"fmt"
	"os"
	"strings"

	"github.com/phuslu/log"
)

var Log log.Logger = log.Logger{
	Level: log.InfoLevel,
	Writer: &log.ConsoleWriter{
		Writer:      os.Stdout,
		ColorOutput: true,
	},
}

var LogLevels = []string{"trace", "debug", "info", "warn", "error", "fatal"}

// SetupLogger reconfigures the global logger. format is "console" or "json".
func SetupLogger(level, format string) error {
	if !validLevel(level) {
		return fmt.Errorf("unknown log level %q", level)
	}

	var writer log.Writer
	switch strings.ToLower(format) {
	case "", "console":
		writer = &log.ConsoleWriter{Writer: os.Stdout, ColorOutput: true}
	case "json":
		writer = &log.IOWriter{Writer: os.Stdout}
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	Log = log.Logger{
		Level:  log.ParseLevel(strings.ToLower(level)),
		Writer: writer,
	}
	return nil
}

func validLevel(level string) bool {
	for _, l := range LogLevels {
		if strings.EqualFold(l, level) {
			return true
		}
	}
	return false
}
