package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/numeria/internal/authctl"
	"github.com/dmitrijs2005/numeria/internal/flagx"
	"github.com/dmitrijs2005/numeria/internal/server/config"
)

func main() {
	cmd, _, rest := flagx.SplitSubcommand(os.Args[1:])
	if cmd == "" {
		fmt.Fprintln(os.Stderr, authctl.ErrUsage)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(rest)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()
	app, err := authctl.NewApp(ctx, cfg, os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Run(ctx, cmd, rest); err != nil {
		fmt.Fprintln(os.Stderr, err)
		app.Close()
		os.Exit(1)
	}
}
