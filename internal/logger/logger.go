// Package logger provides a lightweight, centralized logging facility
// with configurable verbosity levels.
//
// Verbosity levels (in increasing order):
//
//	Error < Info < Debug < Trace
//
// Output always goes to standard error so that the JSON document written
// to standard output stays clean for the consuming process.
//
// Example usage:
//
//	logger.SetVerbosity(2) // Debug
//	logger.Infof("fetching chain for %s", symbol)
//	logger.Debugf("spot=%f expiries=%d", spot, n)
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Level represents a logging verbosity level.
// Higher values mean more verbose logging.
type Level int

const (
	Error Level = iota // Error logs only critical failures.
	Info               // Info logs high-level application progress.
	Debug              // Debug logs detailed diagnostic information.
	Trace              // Trace logs very fine-grained execution details.
)

// base is the process logger. Fields attached with WithField are carried
// by entry.
var (
	base  = logrus.New()
	entry = logrus.NewEntry(base)
)

func init() {
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
	})
	SetVerbosity(int(Info))
}

// SetVerbosity sets the global logging verbosity.
// Values outside the known range are clamped.
func SetVerbosity(v int) {
	switch {
	case v <= int(Error):
		base.SetLevel(logrus.ErrorLevel)
	case v == int(Info):
		base.SetLevel(logrus.InfoLevel)
	case v == int(Debug):
		base.SetLevel(logrus.DebugLevel)
	default:
		base.SetLevel(logrus.TraceLevel)
	}
}

// SetFormat switches between "text" (default) and "json" output.
func SetFormat(format string) {
	if format == "json" {
		base.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
	})
}

// SetOutput redirects log output. Tests use it to capture diagnostics.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// WithField attaches a field to every subsequent log line, e.g. a run id.
func WithField(key string, value any) {
	entry = entry.WithField(key, value)
}

// Reset drops all fields attached with WithField.
func Reset() {
	entry = logrus.NewEntry(base)
}

// Errorf logs an error-level message.
// Use this for failures that require attention.
func Errorf(format string, args ...any) {
	entry.Errorf(format, args...)
}

// Infof logs an informational message.
// Use this for major lifecycle events.
func Infof(format string, args ...any) {
	entry.Infof(format, args...)
}

// Debugf logs debugging information.
func Debugf(format string, args ...any) {
	entry.Debugf(format, args...)
}

// Tracef logs very detailed execution traces.
// Use this sparingly due to high volume.
func Tracef(format string, args ...any) {
	entry.Tracef(format, args...)
}
