// Package klog wraps logrus with the fields every kernel-context log line
// carries, replacing the teacher's direct fmt.Printf console writes (fine
// for bare-metal boot/device logging, not for a subsystem embedded in an
// ordinary process).
package klog

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is a thin wrapper that is safe to use even when nil (New(nil)
// yields a logger that discards everything), so components that only log
// in rare paths don't need a nil check at every call site.
type Logger struct {
	entry *logrus.Entry
}

// New builds a Logger around base, or around a logrus.Logger that discards
// its output if base is nil. Fields are attached once and carried on every
// subsequent line.
func New(base *logrus.Logger, fields logrus.Fields) *Logger {
	if base == nil {
		base = logrus.New()
		base.SetOutput(io.Discard)
	}
	return &Logger{entry: base.WithFields(fields)}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.entry.Debugf(format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.entry.Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.entry.Warnf(format, args...)
}
