// Package loggingx contains utilities for use with dodeca logging.
package loggingx

import (
	"fmt"
	"strings"

	"github.com/dogmatiq/dodeca/logging"
)

// WithPrefix returns a logger that adds a prefix to each message logged to
// target.
//
// The prefix is built from f and v in the same manner as fmt.Sprintf().
func WithPrefix(target logging.Logger, f string, v ...any) logging.Logger {
	prefix := fmt.Sprintf(f, v...)

	return &prefixed{
		target: target,
		prefix: prefix,
		// prefix becomes part of a format string, so any literal % it
		// contains has to be escaped.
		format: strings.ReplaceAll(prefix, "%", "%%"),
	}
}

// prefixed is a logging.Logger that adds a prefix to each message.
type prefixed struct {
	target logging.Logger
	prefix string
	format string
}

func (l *prefixed) Log(f string, v ...any) {
	l.target.Log(l.format+f, v...)
}

func (l *prefixed) LogString(s string) {
	l.target.LogString(l.prefix + s)
}

func (l *prefixed) Debug(f string, v ...any) {
	l.target.Debug(l.format+f, v...)
}

func (l *prefixed) DebugString(s string) {
	l.target.DebugString(l.prefix + s)
}

func (l *prefixed) IsDebug() bool {
	return l.target.IsDebug()
}
