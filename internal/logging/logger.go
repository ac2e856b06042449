package logging

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds the process-wide logger. Components derive their own entry via
// ForSubsystem so every line carries where it came from.
func New(level string) *logrus.Logger {
	logger := logrus.New()

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return logger
}

// ForSubsystem returns an entry tagged with the subsystem name.
func ForSubsystem(logger *logrus.Logger, name string) *logrus.Entry {
	return logger.WithField("subsystem", name)
}

// Truncate truncates a string to maxLen and adds ellipsis.
// Newlines are flattened so message bodies stay on one log line.
func Truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
