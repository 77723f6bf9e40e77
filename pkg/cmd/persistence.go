// Package cmd provides shared construction helpers for the approvio binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/approvio/approvio/pkg/persistence"
	"github.com/approvio/approvio/pkg/persistence/file"
	"github.com/approvio/approvio/pkg/persistence/postgresql"
)

// NewPersistence creates a persistence layer from a database URL. The URL
// scheme selects the provider; anything unrecognized falls back to the
// file-based store with the URL as root directory.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to initialize PostgreSQL persistence", "error", err)
			panic(err)
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parseProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}
