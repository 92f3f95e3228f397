//go:build !windows && !plan9

package zaplog

import (
	"log/syslog"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewSyslog returns a zap logger writing to the local syslog daemon under tag
// with the user facility.
func NewSyslog(tag string, enab zapcore.LevelEnabler) (*zap.Logger, error) {
	w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_USER, tag)
	if err != nil {
		return nil, err
	}
	return zap.New(NewSyslogCore(w, enab)), nil
}
