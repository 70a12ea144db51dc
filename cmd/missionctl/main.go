// Package main is the operator CLI: migrations and super-admin bootstrap.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/missoes/backend/config"
	"github.com/missoes/backend/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(cli.Deps{
		LoadConfig:  config.Load,
		NewMigrator: cli.NewDSNMigrator,
		NewGranter:  cli.NewPoolGranter,
	})
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
