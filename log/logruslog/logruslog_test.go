package logruslog

import (
	"context"
	"testing"

	"github.com/goforj/pagecache"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func TestLoggerThroughBackend(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)

	b := pagecache.New(context.Background(), pagecache.Config{Log: true},
		pagecache.WithLogger(Logger{E: logrus.NewEntry(base)}))
	b.Log("dropped without debug", pagecache.LevelInfo)
	b.Log("cache is cold", pagecache.LevelWarn)

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	require.Equal(t, logrus.WarnLevel, entry.Level)
	require.Equal(t, "pagecache with memory cache is cold", entry.Message)
	require.Equal(t, "memory", entry.Data["driver"])
}

func TestQuietDropsDebugAndInfo(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(logrus.NewEntry(base), pagecache.Config{})

	l.Debug("d", nil)
	l.Info("i", nil)
	l.Error("e", pagecache.Fields{"driver": "redis"})

	require.Len(t, hook.AllEntries(), 1)
	require.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	require.Equal(t, "redis", hook.LastEntry().Data["driver"])

	verbose := New(logrus.NewEntry(base), pagecache.Config{Debug: true})
	verbose.Info("i", nil)
	require.Len(t, hook.AllEntries(), 2)
}
