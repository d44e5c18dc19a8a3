package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

var (
	mu            sync.RWMutex
	defaultLevel  = levelFromEnv()
	jsonFormat    = os.Getenv("LOG_FORMAT") == "json"
	output        io.Writer = os.Stderr
	defaultLogger hclog.Logger
)

func levelFromEnv() hclog.Level {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		return parseLevel(lvl)
	}
	return hclog.Info
}

func parseLevel(level string) hclog.Level {
	lvl := hclog.LevelFromString(strings.ToLower(strings.TrimSpace(level)))
	if lvl == hclog.NoLevel {
		return hclog.Info
	}
	return lvl
}

// Configure applies the logging section of the configuration. It affects loggers
// created after the call and resets the package default logger.
func Configure(level, format string) {
	mu.Lock()
	defer mu.Unlock()

	if level != "" {
		defaultLevel = parseLevel(level)
	}
	jsonFormat = strings.EqualFold(format, "json")
	defaultLogger = nil
}

// SetOutput redirects every logger created afterwards. Mostly useful in tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	defaultLogger = nil
}

// New creates a named structured logger
func New(name string) hclog.Logger {
	mu.RLock()
	defer mu.RUnlock()

	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      defaultLevel,
		JSONFormat: jsonFormat,
		Output:     output,
	})
}

// Default returns the process wide logger used by the package helpers
func Default() hclog.Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	l = New("mediatags")
	mu.Lock()
	if defaultLogger == nil {
		defaultLogger = l
	}
	l = defaultLogger
	mu.Unlock()
	return l
}

// OrNull returns l, or a logger that discards everything when l is nil
func OrNull(l hclog.Logger) hclog.Logger {
	if l == nil {
		return hclog.NewNullLogger()
	}
	return l
}

// Info logs informational messages with key/value pairs
func Info(msg string, args ...interface{}) {
	Default().Info(msg, args...)
}

// Warn logs warning messages
func Warn(msg string, args ...interface{}) {
	Default().Warn(msg, args...)
}

// Error logs error messages
func Error(msg string, args ...interface{}) {
	Default().Error(msg, args...)
}

// Debug logs debug messages
func Debug(msg string, args ...interface{}) {
	Default().Debug(msg, args...)
}
