// Package zlog provides structured logging shared by the supervisor and
// every worker process.
//
// It wraps logrus the way datawire-dlib and nabbar-golib do: a package-level
// logger configured once at startup, with pid/role fields attached to every
// line, rather than a bare fmt.Println sink.
package zlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var base = logrus.New()

func init() {
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	base.SetLevel(logrus.InfoLevel)
}

// Logger is a field-scoped handle; Server, workers, and the supervisor each
// hold their own so every line they emit is tagged consistently.
type Logger struct {
	entry *logrus.Entry
}

// New returns a Logger tagged with role (e.g. "supervisor", "worker") and
// the current process id.
func New(role string) *Logger {
	return &Logger{entry: base.WithFields(logrus.Fields{
		"role": role,
		"pid":  os.Getpid(),
	})}
}

// With returns a derived Logger carrying an additional field, e.g.
// log.With("fd", connFD).
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// SetOutputFile redirects every Logger sharing this base logger to path.
// Used by cmd/zeushttpd to honor the log_file directive.
func SetOutputFile(path string) error {
	if path == "" || path == "stderr" {
		base.SetOutput(os.Stderr)
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	base.SetOutput(f)
	return nil
}

func (l *Logger) Debug(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...any) { l.entry.Errorf(format, args...) }

// Fatal logs at fatal level and terminates the process, matching the
// original ZLOG_FATAL contract (exit code 1).
func (l *Logger) Fatal(format string, args ...any) { l.entry.Fatalf(format, args...) }
