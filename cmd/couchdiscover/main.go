package main

import (
	"context"
	"os"

	"github.com/Lord-Y/couchdiscover/cmd/couchdiscover/commands"
	"github.com/Lord-Y/couchdiscover/logger"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := cli.Command{
		Name:                  "couchdiscover",
		Usage:                 "Bootstrap a couchdb 2 cluster from a kubernetes statefulset",
		Description:           "Run next to each couchdb pod to enable, join and finish the cluster",
		EnableShellCompletion: true,
		DefaultCommand:        "run",
		Commands: []*cli.Command{
			commands.Run(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.NewLogger(logger.Config{}).Fatal().Err(err).Msg("Error occured while executing the program")
	}
}
