// Package logruslog adapts a logrus entry to pagecache.Logger.
package logruslog

import (
	"github.com/goforj/pagecache"
	"github.com/sirupsen/logrus"
)

// Logger forwards backend diagnostics to E. Quiet drops debug and info
// entries like a Backend without Config.Debug does.
type Logger struct {
	E     *logrus.Entry
	Quiet bool
}

// New wraps e for a backend built from cfg.
func New(e *logrus.Entry, cfg pagecache.Config) Logger {
	return Logger{E: e, Quiet: !cfg.Debug}
}

func (l Logger) Debug(msg string, f pagecache.Fields) {
	if !l.Quiet {
		l.E.WithFields(logrus.Fields(f)).Debug(msg)
	}
}

func (l Logger) Info(msg string, f pagecache.Fields) {
	if !l.Quiet {
		l.E.WithFields(logrus.Fields(f)).Info(msg)
	}
}

func (l Logger) Warn(msg string, f pagecache.Fields) { l.E.WithFields(logrus.Fields(f)).Warn(msg) }

func (l Logger) Error(msg string, f pagecache.Fields) { l.E.WithFields(logrus.Fields(f)).Error(msg) }
