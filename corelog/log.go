// Package corelog is the process-wide logging facade used by every package
// in this module. It mirrors rclone's fs.Infof/fs.Debugf/fs.Errorf style: a
// small set of package-level functions that take an "object" (anything that
// can describe where the log line came from) plus a printf-style message, so
// call sites never import logrus directly.
package corelog

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Level controls the minimum severity that reaches the underlying logger.
type Level int

const (
	LevelError Level = iota
	LevelInfo
	LevelDebug
)

var std = logrus.New()

// SetLevel adjusts the process-wide verbosity, driven by the -v/-vv flags.
func SetLevel(l Level) {
	switch l {
	case LevelDebug:
		std.SetLevel(logrus.DebugLevel)
	case LevelInfo:
		std.SetLevel(logrus.InfoLevel)
	default:
		std.SetLevel(logrus.ErrorLevel)
	}
}

// SetOutput lets tests capture log output.
func SetOutput(w interface{ Write([]byte) (int, error) }) {
	std.SetOutput(w)
}

func describe(object interface{}) string {
	if object == nil {
		return "-"
	}
	if s, ok := object.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", object)
}

// Infof logs an informational line scoped to object.
func Infof(object interface{}, format string, args ...interface{}) {
	std.WithField("src", describe(object)).Infof(format, args...)
}

// Debugf logs a debug line scoped to object.
func Debugf(object interface{}, format string, args ...interface{}) {
	std.WithField("src", describe(object)).Debugf(format, args...)
}

// Errorf logs an error line scoped to object. It never panics or returns an
// error itself — per spec §7 the pipeline has no exceptions, only (bool,
// message) propagation, and logging is the terminal sink for that message.
func Errorf(object interface{}, format string, args ...interface{}) {
	std.WithField("src", describe(object)).Errorf(format, args...)
}

// Logf is the teacher's catch-all "notice" level between Info and Error.
func Logf(object interface{}, format string, args ...interface{}) {
	std.WithField("src", describe(object)).Warnf(format, args...)
}
