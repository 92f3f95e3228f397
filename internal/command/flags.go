package command

import (
	"strings"

	"github.com/goforj/pagecache"
	"github.com/urfave/cli/v3"
)

const envPrefix = "PAGECACHE_"

func env(name string) cli.ValueSourceChain {
	return cli.NewValueSourceChain(cli.EnvVar(envPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))))
}

// GlobalFlags configure the backend every command runs against. Flags left
// unset fall back to the --config file, then to the library defaults.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML configuration file", Sources: env("config")},
		&cli.StringFlag{Name: "driver", Aliases: []string{"d"}, Usage: "memory, memcached, memcache, redis or null", Sources: env("driver")},
		&cli.StringFlag{Name: "hosts", Usage: "comma separated host:port list", Sources: env("hosts")},
		&cli.IntFlag{Name: "expire", Usage: "entry TTL in seconds", Sources: env("expire")},
		&cli.BoolFlag{Name: "persistent", Usage: "share connections process-wide", Sources: env("persistent")},
		&cli.IntFlag{Name: "invalidation-method", Usage: "0 flushes on clear, 1 deletes one page", Sources: env("invalidation-method")},
		&cli.BoolFlag{Name: "debug", Usage: "log every level", Sources: env("debug")},
		&cli.BoolFlag{Name: "log", Usage: "enable logging", Sources: env("log")},
		&cli.StringFlag{Name: "prefix-meta", Usage: "meta key prefix", Sources: env("prefix-meta")},
		&cli.StringFlag{Name: "prefix-data", Usage: "data key prefix", Sources: env("prefix-data")},
		&cli.IntFlag{Name: "pool-size", Usage: "idle connections per server", Sources: env("pool-size")},
		&cli.DurationFlag{Name: "dial-timeout", Usage: "networked dial timeout", Sources: env("dial-timeout")},
		&cli.StringFlag{
			Name:    "logger",
			Usage:   "log sink: zap, logrus or syslog",
			Value:   "zap",
			Sources: env("logger"),
			Validator: func(v string) error {
				switch v {
				case "zap", "logrus", "syslog":
					return nil
				}
				return cli.Exit("unknown logger "+v, 2)
			},
		},
		&cli.BoolFlag{Name: "metrics", Usage: "print operation metrics after the command", Sources: env("metrics")},
	}
}

func requestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "host", Usage: "request host"},
		&cli.StringFlag{Name: "uri", Usage: "request path and query", Value: "/"},
		&cli.BoolFlag{Name: "https", Usage: "request arrived over TLS"},
		&cli.StringFlag{Name: "forwarded-proto", Usage: "X-Forwarded-Proto header value"},
	}
}

func requestFromFlags(cmd *cli.Command) pagecache.Request {
	req := pagecache.Request{
		ForwardedProto: cmd.String("forwarded-proto"),
		Host:           cmd.String("host"),
		URI:            cmd.String("uri"),
	}
	if cmd.Bool("https") {
		req.HTTPS = "on"
	}
	return req
}

// configFromFlags layers explicitly set flags over the --config file.
func configFromFlags(cmd *cli.Command) (pagecache.Config, error) {
	var cfg pagecache.Config
	if path := cmd.String("config"); path != "" {
		loaded, err := pagecache.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if cmd.IsSet("driver") {
		cfg.Driver = pagecache.Driver(cmd.String("driver"))
	}
	if cmd.IsSet("hosts") {
		cfg.Hosts = cmd.String("hosts")
	}
	if cmd.IsSet("expire") {
		cfg.Expire = int(cmd.Int("expire"))
	}
	if cmd.IsSet("persistent") {
		cfg.Persistent = cmd.Bool("persistent")
	}
	if cmd.IsSet("invalidation-method") {
		cfg.InvalidationMethod = pagecache.InvalidationMethod(cmd.Int("invalidation-method"))
	}
	if cmd.IsSet("debug") {
		cfg.Debug = cmd.Bool("debug")
	}
	if cmd.IsSet("log") {
		cfg.Log = cmd.Bool("log")
	}
	if cmd.IsSet("prefix-meta") {
		cfg.PrefixMeta = cmd.String("prefix-meta")
	}
	if cmd.IsSet("prefix-data") {
		cfg.PrefixData = cmd.String("prefix-data")
	}
	if cmd.IsSet("pool-size") {
		cfg.PoolSize = int(cmd.Int("pool-size"))
	}
	if cmd.IsSet("dial-timeout") {
		cfg.DialTimeout = cmd.Duration("dial-timeout")
	}
	return cfg, nil
}
