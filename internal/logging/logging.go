// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// NewLogger creates a logrus.Logger writing to stderr.
//
// level: debug, info, warn, error (unrecognized values fall back to info)
// format: "text" (human-readable) or "json" (structured)
func NewLogger(level, format string) *logrus.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewLoggerWithWriter creates a logger writing to w.
func NewLoggerWithWriter(level, format string, w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(ParseLevel(level))

	switch strings.ToLower(format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}

// ParseLevel converts a string log level to a logrus.Level.
// Returns logrus.InfoLevel for unrecognized values.
func ParseLevel(s string) logrus.Level {
	level, err := logrus.ParseLevel(strings.TrimSpace(s))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
