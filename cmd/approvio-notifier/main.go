package main

import (
	"context"
	"os"

	"github.com/approvio/approvio/pkg/cmd"
	"github.com/approvio/approvio/pkg/log"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "approvio-notifier",
		Usage:                 "Consume workflow lifecycle events and deliver notifications",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "notifier-id",
				Aliases: []string{"id"},
				Usage:   "Custom notifier ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("NOTIFIER_ID"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus provider (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
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

			notifierID := command.String("notifier-id")
			if notifierID == "" {
				notifierID = "notifier-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("approvio-notifier").With("notifierId", notifierID)

			logger.InfoContext(ctx, "Initializing Approvio Notifier")

			eventBus := cmd.NewEventBus(command.String("event-bus"), "approvio-notifier", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			notifier := NewNotifierManager(notifierID, eventBus, logger)

			err := notifier.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start notifier", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
