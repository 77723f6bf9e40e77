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

// DefinitionRepository handles workflow definition database operations.
type DefinitionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDefinitionRepository creates a new definition repository.
func NewDefinitionRepository(db *sql.DB, logger *slog.Logger) *DefinitionRepository {
	return &DefinitionRepository{db: db, logger: logger}
}

const definitionColumns = `
	id
  , name
  , workflow_type
  , department
  , stages
  , version
  , active
  , created_at
  , updated_at
`

func (r *DefinitionRepository) Save(ctx context.Context, definition *models.WorkflowDefinition) error {
	stagesJSON, err := json.Marshal(definition.Stages)
	if err != nil {
		return fmt.Errorf("failed to marshal stages: %w", err)
	}

	query := `
		INSERT INTO workflow_definitions (id, name, workflow_type, department, stages, version, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		definition.ID,
		definition.Name,
		string(definition.WorkflowType),
		definition.Department,
		stagesJSON,
		definition.Version,
		definition.Active,
		definition.CreatedAt,
		definition.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert workflow definition: %w", err)
	}

	return nil
}

func (r *DefinitionRepository) Update(ctx context.Context, definition *models.WorkflowDefinition) error {
	stagesJSON, err := json.Marshal(definition.Stages)
	if err != nil {
		return fmt.Errorf("failed to marshal stages: %w", err)
	}

	query := `
		UPDATE workflow_definitions
		SET name = $2, workflow_type = $3, department = $4, stages = $5, version = $6, active = $7, updated_at = $8
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		definition.ID,
		definition.Name,
		string(definition.WorkflowType),
		definition.Department,
		stagesJSON,
		definition.Version,
		definition.Active,
		definition.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow definition: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %s", persistence.ErrDefinitionNotFound, definition.ID)
	}

	return nil
}

func (r *DefinitionRepository) ByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM workflow_definitions WHERE id = $1`

	definition, err := scanDefinition(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", persistence.ErrDefinitionNotFound, id)
		}

		return nil, fmt.Errorf("failed to scan workflow definition: %w", err)
	}

	return definition, nil
}

func (r *DefinitionRepository) ByTypeAndDepartment(ctx context.Context, workflowType models.WorkflowType, department string) ([]*models.WorkflowDefinition, error) {
	query := `
		SELECT ` + definitionColumns + `
		FROM workflow_definitions
		WHERE workflow_type = $1 AND department = $2
		ORDER BY version DESC
	`

	return r.query(ctx, query, string(workflowType), department)
}

func (r *DefinitionRepository) List(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM workflow_definitions ORDER BY created_at ASC`

	return r.query(ctx, query)
}

func (r *DefinitionRepository) query(ctx context.Context, query string, args ...any) ([]*models.WorkflowDefinition, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow definitions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	definitions := make([]*models.WorkflowDefinition, 0)

	for rows.Next() {
		definition, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow definition: %w", err)
		}

		definitions = append(definitions, definition)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflow definitions: %w", err)
	}

	return definitions, nil
}

func scanDefinition(row scanner) (*models.WorkflowDefinition, error) {
	var (
		definition   models.WorkflowDefinition
		workflowType string
		stagesJSON   []byte
	)

	err := row.Scan(
		&definition.ID,
		&definition.Name,
		&workflowType,
		&definition.Department,
		&stagesJSON,
		&definition.Version,
		&definition.Active,
		&definition.CreatedAt,
		&definition.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	definition.WorkflowType = models.WorkflowType(workflowType)

	err = json.Unmarshal(stagesJSON, &definition.Stages)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal stages: %w", err)
	}

	return &definition, nil
}
