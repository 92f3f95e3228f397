package zaplog

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// SyslogWriter is the subset of *syslog.Writer the core writes through.
type SyslogWriter interface {
	Debug(m string) error
	Info(m string) error
	Warning(m string) error
	Err(m string) error
}

type syslogCore struct {
	zapcore.LevelEnabler
	enc zapcore.Encoder
	out SyslogWriter
}

// NewSyslogCore returns a core that writes one syslog message per entry at
// the matching syslog severity. Time and level are left to syslog.
func NewSyslogCore(w SyslogWriter, enab zapcore.LevelEnabler) zapcore.Core {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		ConsoleSeparator: " ",
	})
	return &syslogCore{LevelEnabler: enab, enc: enc, out: w}
}

func (c *syslogCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &syslogCore{LevelEnabler: c.LevelEnabler, enc: c.enc.Clone(), out: c.out}
	for _, f := range fields {
		f.AddTo(clone.enc)
	}
	return clone
}

func (c *syslogCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *syslogCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	msg := strings.TrimSuffix(buf.String(), "\n")
	buf.Free()

	switch {
	case ent.Level >= zapcore.ErrorLevel:
		return c.out.Err(msg)
	case ent.Level == zapcore.WarnLevel:
		return c.out.Warning(msg)
	case ent.Level == zapcore.InfoLevel:
		return c.out.Info(msg)
	default:
		return c.out.Debug(msg)
	}
}

func (c *syslogCore) Sync() error { return nil }
