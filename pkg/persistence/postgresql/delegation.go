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

// DelegationRepository handles delegation database operations.
type DelegationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDelegationRepository creates a new delegation repository.
func NewDelegationRepository(db *sql.DB, logger *slog.Logger) *DelegationRepository {
	return &DelegationRepository{db: db, logger: logger}
}

const delegationColumns = `
	id
  , delegator_id
  , delegate_id
  , workflow_types
  , start_date
  , end_date
  , active
  , revoked_by
  , revoked_at
  , constraints
  , created_at
  , updated_at
`

func (r *DelegationRepository) Save(ctx context.Context, delegation *models.Delegation) error {
	typesJSON, constraintsJSON, err := marshalDelegationFields(delegation)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO delegations (
			id, delegator_id, delegate_id, workflow_types, start_date, end_date,
			active, revoked_by, revoked_at, constraints, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.db.ExecContext(ctx, query,
		delegation.ID,
		delegation.DelegatorID,
		delegation.DelegateID,
		typesJSON,
		delegation.StartDate,
		delegation.EndDate,
		delegation.Active,
		nullString(delegation.RevokedBy),
		delegation.RevokedAt,
		constraintsJSON,
		delegation.CreatedAt,
		delegation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert delegation: %w", err)
	}

	return nil
}

func (r *DelegationRepository) Update(ctx context.Context, delegation *models.Delegation) error {
	typesJSON, constraintsJSON, err := marshalDelegationFields(delegation)
	if err != nil {
		return err
	}

	query := `
		UPDATE delegations
		SET delegator_id = $2, delegate_id = $3, workflow_types = $4,
			start_date = $5, end_date = $6, active = $7, revoked_by = $8,
			revoked_at = $9, constraints = $10, updated_at = $11
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		delegation.ID,
		delegation.DelegatorID,
		delegation.DelegateID,
		typesJSON,
		delegation.StartDate,
		delegation.EndDate,
		delegation.Active,
		nullString(delegation.RevokedBy),
		delegation.RevokedAt,
		constraintsJSON,
		delegation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update delegation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %s", persistence.ErrDelegationNotFound, delegation.ID)
	}

	return nil
}

func (r *DelegationRepository) ByID(ctx context.Context, id string) (*models.Delegation, error) {
	query := `SELECT ` + delegationColumns + ` FROM delegations WHERE id = $1`

	delegation, err := scanDelegation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", persistence.ErrDelegationNotFound, id)
		}

		return nil, fmt.Errorf("failed to scan delegation: %w", err)
	}

	return delegation, nil
}

func (r *DelegationRepository) ByDelegator(ctx context.Context, delegatorID string) ([]*models.Delegation, error) {
	query := `
		SELECT ` + delegationColumns + `
		FROM delegations
		WHERE delegator_id = $1
		ORDER BY created_at ASC
	`

	return r.query(ctx, query, delegatorID)
}

func (r *DelegationRepository) ByDelegate(ctx context.Context, delegateID string) ([]*models.Delegation, error) {
	query := `
		SELECT ` + delegationColumns + `
		FROM delegations
		WHERE delegate_id = $1
		ORDER BY created_at ASC
	`

	return r.query(ctx, query, delegateID)
}

func (r *DelegationRepository) List(ctx context.Context) ([]*models.Delegation, error) {
	query := `SELECT ` + delegationColumns + ` FROM delegations ORDER BY created_at ASC`

	return r.query(ctx, query)
}

func (r *DelegationRepository) query(ctx context.Context, query string, args ...any) ([]*models.Delegation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query delegations: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	delegations := make([]*models.Delegation, 0)

	for rows.Next() {
		delegation, err := scanDelegation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delegation: %w", err)
		}

		delegations = append(delegations, delegation)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating delegations: %w", err)
	}

	return delegations, nil
}

func marshalDelegationFields(delegation *models.Delegation) ([]byte, []byte, error) {
	typesJSON, err := json.Marshal(delegation.WorkflowTypes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal workflow types: %w", err)
	}

	constraintsJSON, err := json.Marshal(delegation.Constraints)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal constraints: %w", err)
	}

	return typesJSON, constraintsJSON, nil
}

func scanDelegation(row scanner) (*models.Delegation, error) {
	var (
		delegation      models.Delegation
		typesJSON       []byte
		constraintsJSON []byte
		revokedBy       sql.NullString
	)

	err := row.Scan(
		&delegation.ID,
		&delegation.DelegatorID,
		&delegation.DelegateID,
		&typesJSON,
		&delegation.StartDate,
		&delegation.EndDate,
		&delegation.Active,
		&revokedBy,
		&delegation.RevokedAt,
		&constraintsJSON,
		&delegation.CreatedAt,
		&delegation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	delegation.RevokedBy = revokedBy.String

	err = unmarshalJSONColumn(typesJSON, &delegation.WorkflowTypes, "workflow_types")
	if err != nil {
		return nil, err
	}

	err = unmarshalJSONColumn(constraintsJSON, &delegation.Constraints, "constraints")
	if err != nil {
		return nil, err
	}

	return &delegation, nil
}
