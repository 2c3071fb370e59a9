// Package logger provides structured logging for the simulator.
// Every state change the engine makes should be traceable through this.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus logger with the small surface the engine needs.
type Logger struct {
	log *logrus.Logger
}

// NewLogger creates a new logger instance writing to stdout.
func NewLogger() *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return &Logger{log: l}
}

// NewSilentLogger creates a logger that discards everything. Used in tests
// and in batch mode where per-tick output would drown the summary.
func NewSilentLogger() *Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return &Logger{log: l}
}

// SetOutput redirects log output.
func (l *Logger) SetOutput(w io.Writer) {
	l.log.SetOutput(w)
}

// SetLevel adjusts verbosity ("debug", "info", "warn", "error").
func (l *Logger) SetLevel(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.log.SetLevel(parsed)
}

// Info logs informational messages.
func (l *Logger) Info(msg string) {
	l.log.Info(msg)
}

// Infof logs formatted informational messages.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log.Infof(format, args...)
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string) {
	l.log.Warn(msg)
}

// Warnf logs formatted warning messages.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log.Warnf(format, args...)
}

// Error logs error messages.
func (l *Logger) Error(msg string) {
	l.log.Error(msg)
}

// Errorf logs formatted error messages.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log.Errorf(format, args...)
}

// Event logs a simulation event with actor context for the run's audit trail.
func (l *Logger) Event(eventType string, actorID string, details string) {
	l.log.WithFields(logrus.Fields{
		"event": eventType,
		"actor": actorID,
	}).Info(details)
}
