package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goforj/pagecache/internal/command"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	app := command.InitApp()
	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
