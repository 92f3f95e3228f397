// Package zaplog adapts a zap logger to pagecache.Logger.
package zaplog

import (
	"sort"

	"github.com/goforj/pagecache"
	"go.uber.org/zap"
)

// Logger forwards backend diagnostics to L. With Quiet set only warnings
// and errors are forwarded, the same cut a Backend applies when
// Config.Debug is off.
type Logger struct {
	L     *zap.Logger
	Quiet bool
}

// New wraps l for a backend built from cfg.
func New(l *zap.Logger, cfg pagecache.Config) Logger {
	return Logger{L: l, Quiet: !cfg.Debug}
}

func (z Logger) Debug(msg string, f pagecache.Fields) {
	if !z.Quiet {
		z.L.Debug(msg, fields(f)...)
	}
}

func (z Logger) Info(msg string, f pagecache.Fields) {
	if !z.Quiet {
		z.L.Info(msg, fields(f)...)
	}
}

func (z Logger) Warn(msg string, f pagecache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f pagecache.Fields) { z.L.Error(msg, fields(f)...) }

// fields sorts by key so syslog lines render the same way every time.
func fields(f pagecache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		switch v := f[k].(type) {
		case string:
			out = append(out, zap.String(k, v))
		case error:
			out = append(out, zap.NamedError(k, v))
		default:
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}
