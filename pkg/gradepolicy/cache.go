package gradepolicy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/approvio/approvio/pkg/models"
)

// Store is the backing store the cache refreshes from. The persistence
// GradePolicyRepository satisfies it directly; a Redis-backed store is
// provided in this package for deployments keeping reference data there.
type Store interface {
	List(ctx context.Context) ([]*models.GradeApprovalConfig, error)
}

// snapshot is an immutable view of the full grade policy. Readers always see
// either the old or the new snapshot, never a partial refresh.
type snapshot struct {
	configs map[string]*models.GradeApprovalConfig
}

// Cache holds per-grade approval policy in memory. It is read-mostly and
// mutated only by an explicit Refresh; there is no automatic invalidation, so
// Refresh must be called after any out-of-band edit to grade policy.
type Cache struct {
	store    Store
	logger   *slog.Logger
	snapshot atomic.Pointer[snapshot]
}

// NewCache creates a cache over the given store. The cache starts empty;
// callers load it with Refresh.
func NewCache(store Store, logger *slog.Logger) *Cache {
	cache := &Cache{
		store:  store,
		logger: logger,
	}
	cache.snapshot.Store(&snapshot{configs: make(map[string]*models.GradeApprovalConfig)})

	return cache
}

// Refresh reloads the whole cache from the backing store and swaps the
// snapshot atomically.
func (c *Cache) Refresh(ctx context.Context) error {
	configs, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh grade policy cache: %w", err)
	}

	next := &snapshot{configs: make(map[string]*models.GradeApprovalConfig, len(configs))}
	for _, config := range configs {
		next.configs[config.GradeCode] = config
	}

	c.snapshot.Store(next)
	c.logger.InfoContext(ctx, "Grade policy cache refreshed", "grades", len(configs))

	return nil
}

// Size returns the number of configured grades in the current snapshot.
func (c *Cache) Size() int {
	return len(c.snapshot.Load().configs)
}

// MaxApprovalLevel returns the maximum approval level for a grade: the
// workflow-type override when one exists, else the grade's general maximum.
// An entirely unconfigured grade gets the conservative top-level default;
// that is a policy gap, not an error, and is logged as a warning.
func (c *Cache) MaxApprovalLevel(gradeCode string, workflowType models.WorkflowType) string {
	config, ok := c.snapshot.Load().configs[gradeCode]
	if !ok {
		c.logger.Warn("No approval policy configured for grade, using default",
			"grade", gradeCode, "default", DefaultMaxApprovalLevel)

		return DefaultMaxApprovalLevel
	}

	if workflowType != "" {
		if override, ok := config.TypeOverrides[workflowType]; ok {
			return override
		}
	}

	return config.MaxApprovalLevel
}

// RequiredLevelForAmount returns the approval level required for the given
// amount: thresholds are sorted descending by amount and the first one the
// amount meets or exceeds wins. With no matching or configured threshold the
// grade's general maximum applies.
func (c *Cache) RequiredLevelForAmount(gradeCode string, amount float64) string {
	config, ok := c.snapshot.Load().configs[gradeCode]
	if !ok || len(config.Thresholds) == 0 {
		return c.MaxApprovalLevel(gradeCode, "")
	}

	thresholds := make([]models.AmountThreshold, len(config.Thresholds))
	copy(thresholds, config.Thresholds)
	sort.Slice(thresholds, func(i, j int) bool {
		return thresholds[i].Amount > thresholds[j].Amount
	})

	for _, threshold := range thresholds {
		if amount >= threshold.Amount {
			return threshold.RequiredLevel
		}
	}

	return c.MaxApprovalLevel(gradeCode, "")
}

// CanApprove reports whether an approver's grade covers the target grade's
// required approval level for the given workflow type. Both levels are
// resolved to numeric ranks from the fixed grade table.
func (c *Cache) CanApprove(approverGrade, targetGrade string, workflowType models.WorkflowType) bool {
	requiredRank := LevelRank(c.MaxApprovalLevel(targetGrade, workflowType))
	approverRank := LevelRank(c.MaxApprovalLevel(approverGrade, workflowType))

	return requiredRank <= approverRank
}
