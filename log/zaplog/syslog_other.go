//go:build windows || plan9

package zaplog

import (
	"errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewSyslog is not available on this platform.
func NewSyslog(string, zapcore.LevelEnabler) (*zap.Logger, error) {
	return nil, errors.New("zaplog: syslog is not supported on this platform")
}
