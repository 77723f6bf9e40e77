package main

import (
	"context"
	"os"

	"github.com/approvio/approvio/pkg/cmd"
	"github.com/approvio/approvio/pkg/delegation"
	"github.com/approvio/approvio/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	logger := log.WithModule("approvio-sweeper")

	command := &cli.Command{
		Name:                  "approvio-sweeper",
		Usage:                 "Deactivate expired delegations on a schedule",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron schedule for delegation sweeps",
				Value:   "@hourly",
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Approvio Sweeper")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			delegationRegistry := delegation.NewRegistry(persistence.Delegations(), logger)

			sweeper := NewSweeperManager(delegationRegistry, command.String("schedule"), logger)

			err := sweeper.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start sweeper", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
