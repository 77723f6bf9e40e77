// Package main provides the Approvio delegation sweeper.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/approvio/approvio/pkg/delegation"
	"github.com/robfig/cron/v3"
)

// SweeperManager periodically deactivates delegations whose validity window
// has passed, keeping delegation lookups cheap and audit state accurate.
type SweeperManager struct {
	logger      *slog.Logger
	delegations *delegation.Registry
	schedule    string
	cron        *cron.Cron
}

func NewSweeperManager(delegations *delegation.Registry, schedule string, logger *slog.Logger) *SweeperManager {
	return &SweeperManager{
		logger:      logger.With("module", "approvio-sweeper"),
		delegations: delegations,
		schedule:    schedule,
		cron:        cron.New(),
	}
}

func (s *SweeperManager) Start(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Starting sweeper", "schedule", s.schedule)

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.sweep(ctx)
	})
	if err != nil {
		return err
	}

	// One sweep at startup so a long downtime doesn't leave stale windows
	// active until the next tick.
	s.sweep(ctx)

	s.cron.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	s.logger.InfoContext(ctx, "Shutting down sweeper...")

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	return nil
}

func (s *SweeperManager) sweep(ctx context.Context) {
	deactivated, err := s.delegations.DeactivateExpired(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to deactivate expired delegations", "error", err)

		return
	}

	if deactivated > 0 {
		s.logger.InfoContext(ctx, "Deactivated expired delegations", "count", deactivated)
	}
}
