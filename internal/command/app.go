// Package command implements the pagecachectl commands.
package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/goforj/pagecache"
	"github.com/urfave/cli/v3"
)

// InitApp builds the root command.
func InitApp() *cli.Command {
	app := &cli.Command{
		Name:  "pagecachectl",
		Usage: "inspect and maintain a page cache backend",
		Flags: GlobalFlags(),
		Commands: []*cli.Command{
			getCommand(),
			setCommand(),
			clearCommand(),
			flushCommand(),
			statusCommand(),
			serversCommand(),
			keyCommand(),
		},
	}

	// Make sure flags are sorted for the --help text.
	for _, cmd := range app.Commands {
		sort.Slice(cmd.Flags, func(i, j int) bool {
			return cmd.Flags[i].Names()[0] < cmd.Flags[j].Names()[0]
		})
	}
	return app
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "print the entry stored under KEY",
		ArgsUsage: "KEY",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			key := cmd.Args().First()
			if key == "" {
				return cli.Exit("missing KEY", 2)
			}
			return withBackend(ctx, cmd, nil, func(s *session) error {
				body, ok := s.backend.GetCtx(ctx, key)
				if !ok {
					return cli.Exit("miss", 1)
				}
				_, err := s.out.Write(body)
				return err
			})
		},
	}
}

func setCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "store VALUE (or stdin) under KEY",
		ArgsUsage: "KEY [VALUE]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			key := cmd.Args().Get(0)
			if key == "" {
				return cli.Exit("missing KEY", 2)
			}
			var body []byte
			if cmd.Args().Len() > 1 {
				body = []byte(cmd.Args().Get(1))
			} else {
				raw, err := io.ReadAll(os.Stdin)
				if err != nil {
					return err
				}
				body = raw
			}
			return withBackend(ctx, cmd, nil, func(s *session) error {
				if !s.backend.SetCtx(ctx, key, body) {
					return cli.Exit("set failed", 1)
				}
				fmt.Fprintf(s.out, "stored %s under %s\n", sizeOf(body), key)
				return nil
			})
		},
	}
}

func clearCommand() *cli.Command {
	flags := append([]cli.Flag{
		&cli.StringFlag{Name: "id", Usage: "identifier of the page to invalidate"},
		&cli.StringFlag{Name: "path", Usage: "host and path the identifier resolves to, e.g. example.com/2024/05/hello/"},
	}, requestFlags()...)
	return &cli.Command{
		Name:  "clear",
		Usage: "invalidate one page, or everything under full-flush invalidation",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.String("path")
			resolver := pagecache.PermalinkResolver(func(context.Context, string) (string, error) {
				return path, nil
			})
			opts := []pagecache.Option{pagecache.WithPathResolver(resolver)}
			return withBackend(ctx, cmd, opts, func(s *session) error {
				if !s.backend.ClearCtx(ctx, requestFromFlags(cmd), cmd.String("id")) {
					return cli.Exit("clear refused or failed", 1)
				}
				fmt.Fprintln(s.out, "cleared")
				return nil
			})
		},
	}
}

func flushCommand() *cli.Command {
	return &cli.Command{
		Name:  "flush",
		Usage: "empty the whole cache",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withBackend(ctx, cmd, nil, func(s *session) error {
				if !s.backend.FlushCtx(ctx) {
					return cli.Exit("flush failed", 1)
				}
				fmt.Fprintln(s.out, "flushed")
				return nil
			})
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "probe every server",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withBackend(ctx, cmd, nil, func(s *session) error {
				status, ok := s.backend.StatusCtx(ctx)
				if !ok {
					return cli.Exit("status unavailable", 1)
				}
				renderStatus(s.out, status)
				return nil
			})
		},
	}
}

func serversCommand() *cli.Command {
	return &cli.Command{
		Name:  "servers",
		Usage: "list the parsed server pool without connecting",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := configFromFlags(cmd)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			renderServers(cmd.Root().Writer, pagecache.ParseServers(cfg.Hosts))
			return nil
		},
	}
}

func keyCommand() *cli.Command {
	return &cli.Command{
		Name:      "key",
		Usage:     "print the cache key of a request",
		ArgsUsage: "[SUFFIX]",
		Flags:     requestFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			suffix := cmd.Args().First()
			if suffix == "" {
				suffix = "meta"
			}
			b := pagecache.New(ctx, pagecache.Config{Driver: pagecache.DriverNull})
			fmt.Fprintln(cmd.Root().Writer, b.Key(requestFromFlags(cmd), suffix))
			return nil
		},
	}
}
