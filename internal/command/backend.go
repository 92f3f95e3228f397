package command

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goforj/pagecache"
	"github.com/goforj/pagecache/log/logruslog"
	"github.com/goforj/pagecache/log/zaplog"
	"github.com/goforj/pagecache/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// session is one backend plus what the command needs to report on it.
type session struct {
	backend  *pagecache.Backend
	registry *prometheus.Registry
	out      io.Writer
	closers  []func()
}

func (s *session) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// withBackend builds the backend from the global flags, runs fn and tears
// everything down again.
func withBackend(ctx context.Context, cmd *cli.Command, opts []pagecache.Option, fn func(*session) error) error {
	cfg, err := configFromFlags(cmd)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	s := &session{out: cmd.Root().Writer}
	if s.out == nil {
		s.out = os.Stdout
	}
	defer s.close()

	logger, err := buildLogger(cmd.String("logger"), cfg, cmd.Root().ErrWriter)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	s.closers = append(s.closers, logger.sync)
	opts = append(opts, pagecache.WithLogger(logger.Logger))

	if cmd.Bool("metrics") {
		s.registry = prometheus.NewRegistry()
		opts = append(opts, pagecache.WithObserver(metrics.New(s.registry)))
	}

	s.backend = pagecache.New(ctx, cfg, opts...)
	s.closers = append(s.closers, func() {
		_ = s.backend.Close()
		_ = pagecache.ClosePersistent()
	})
	if !s.backend.Alive() {
		return cli.Exit(fmt.Sprintf("%s backend is not alive", s.backend.Driver()), 1)
	}

	err = fn(s)
	if s.registry != nil {
		if merr := renderMetrics(s.out, s.registry); merr != nil && err == nil {
			err = merr
		}
	}
	return err
}

type sink struct {
	pagecache.Logger
	sync func()
}

func buildLogger(kind string, cfg pagecache.Config, errOut io.Writer) (sink, error) {
	if errOut == nil {
		errOut = os.Stderr
	}
	level := zapcore.WarnLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}
	switch kind {
	case "logrus":
		l := logrus.New()
		l.SetOutput(errOut)
		l.SetLevel(logrus.DebugLevel)
		return sink{Logger: logruslog.New(logrus.NewEntry(l), cfg), sync: func() {}}, nil
	case "syslog":
		l, err := zaplog.NewSyslog("pagecache", level)
		if err != nil {
			return sink{}, fmt.Errorf("open syslog: %w", err)
		}
		return sink{Logger: zaplog.New(l, cfg), sync: func() { _ = l.Sync() }}, nil
	default:
		enc := zap.NewDevelopmentEncoderConfig()
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(errOut), level)
		l := zap.New(core)
		return sink{Logger: zaplog.New(l, cfg), sync: func() { _ = l.Sync() }}, nil
	}
}
