package engine

import (
	"log"
	"os"

	"github.com/cockroachdb/redact"
)

// Logger is modeled directly on pebble's base.Logger: the three verbs a
// storage adapter needs. Fatalf logs the line and then exits the process.
// The codec's own invariant violations (e.g. metadata access on a type
// that has none) panic directly and are not logged through a Logger.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// defaultLogger writes through the standard library logger, formatting with
// redact.Sprintf: arguments that have not been explicitly marked safe are
// wrapped in redaction markers, and their contents are still printed
// between those markers.
type defaultLogger struct {
	*log.Logger
}

// NewDefaultLogger returns a Logger writing to stderr with redaction
// markers applied to every formatted line.
func NewDefaultLogger() Logger {
	return &defaultLogger{Logger: log.New(os.Stderr, "", log.LstdFlags)}
}

func (l *defaultLogger) Infof(format string, args ...interface{}) {
	l.Printf("INFO: %s", redact.Sprintf(format, args...))
}

func (l *defaultLogger) Errorf(format string, args ...interface{}) {
	l.Printf("ERROR: %s", redact.Sprintf(format, args...))
}

func (l *defaultLogger) Fatalf(format string, args ...interface{}) {
	l.Printf("FATAL: %s", redact.Sprintf(format, args...))
	os.Exit(1)
}
