package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/approvio/approvio/pkg/models"
	"github.com/approvio/approvio/pkg/persistence"
)

// GradePolicyRepository handles grade approval config database operations.
// The grade code is the primary key, so Save is an upsert.
type GradePolicyRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewGradePolicyRepository creates a new grade policy repository.
func NewGradePolicyRepository(db *sql.DB, logger *slog.Logger) *GradePolicyRepository {
	return &GradePolicyRepository{db: db, logger: logger}
}

const gradePolicyColumns = `
	grade_code
  , max_approval_level
  , type_overrides
  , thresholds
  , updated_at
`

func (r *GradePolicyRepository) Save(ctx context.Context, config *models.GradeApprovalConfig) error {
	overridesJSON, err := json.Marshal(config.TypeOverrides)
	if err != nil {
		return fmt.Errorf("failed to marshal type overrides: %w", err)
	}

	thresholdsJSON, err := json.Marshal(config.Thresholds)
	if err != nil {
		return fmt.Errorf("failed to marshal thresholds: %w", err)
	}

	query := `
		INSERT INTO grade_policies (grade_code, max_approval_level, type_overrides, thresholds, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (grade_code) DO UPDATE SET
			max_approval_level = EXCLUDED.max_approval_level,
			type_overrides = EXCLUDED.type_overrides,
			thresholds = EXCLUDED.thresholds,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		config.GradeCode,
		config.MaxApprovalLevel,
		overridesJSON,
		thresholdsJSON,
		config.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert grade policy: %w", err)
	}

	return nil
}

func (r *GradePolicyRepository) ByGradeCode(ctx context.Context, gradeCode string) (*models.GradeApprovalConfig, error) {
	query := `SELECT ` + gradePolicyColumns + ` FROM grade_policies WHERE grade_code = $1`

	config, err := scanGradePolicy(r.db.QueryRowContext(ctx, query, gradeCode))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", persistence.ErrGradePolicyNotFound, gradeCode)
		}

		return nil, fmt.Errorf("failed to scan grade policy: %w", err)
	}

	return config, nil
}

func (r *GradePolicyRepository) List(ctx context.Context) ([]*models.GradeApprovalConfig, error) {
	query := `SELECT ` + gradePolicyColumns + ` FROM grade_policies ORDER BY grade_code ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query grade policies: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	configs := make([]*models.GradeApprovalConfig, 0)

	for rows.Next() {
		config, err := scanGradePolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grade policy: %w", err)
		}

		configs = append(configs, config)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating grade policies: %w", err)
	}

	return configs, nil
}

func scanGradePolicy(row scanner) (*models.GradeApprovalConfig, error) {
	var (
		config         models.GradeApprovalConfig
		overridesJSON  []byte
		thresholdsJSON []byte
	)

	err := row.Scan(
		&config.GradeCode,
		&config.MaxApprovalLevel,
		&overridesJSON,
		&thresholdsJSON,
		&config.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = unmarshalJSONColumn(overridesJSON, &config.TypeOverrides, "type_overrides")
	if err != nil {
		return nil, err
	}

	err = unmarshalJSONColumn(thresholdsJSON, &config.Thresholds, "thresholds")
	if err != nil {
		return nil, err
	}

	return &config, nil
}
