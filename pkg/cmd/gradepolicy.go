package cmd

import (
	"context"
	"log/slog"

	"github.com/approvio/approvio/pkg/gradepolicy"
	"github.com/approvio/approvio/pkg/persistence"
	"github.com/approvio/approvio/pkg/web"
)

// NewGradePolicyStore selects where grade approval configs live. A Redis URL
// routes reference data to Redis; otherwise the persistence layer's repository
// is used.
func NewGradePolicyStore(ctx context.Context, logger *slog.Logger, redisURL string, p persistence.Persistence) web.GradePolicyStore {
	if redisURL == "" {
		return p.GradePolicies()
	}

	store, err := gradepolicy.NewRedisStore(redisURL)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to connect to Redis grade policy store", "error", err)
		panic(err)
	}

	return store
}
