package cmd

import (
	"context"
	"log/slog"

	"github.com/approvio/approvio/pkg/directory"
)

// NewDirectory creates the employee directory. A non-empty seed path loads an
// organizational snapshot from JSON; otherwise the directory starts empty and
// is populated programmatically.
func NewDirectory(ctx context.Context, logger *slog.Logger, seedPath string) directory.Directory {
	if seedPath == "" {
		logger.WarnContext(ctx, "No directory seed file configured, starting with an empty directory")

		return directory.NewMemory()
	}

	dir, err := directory.NewFromFile(seedPath)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load directory seed file", "path", seedPath, "error", err)
		panic(err)
	}

	return dir
}
