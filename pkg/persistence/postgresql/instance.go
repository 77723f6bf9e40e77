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

// InstanceRepository handles workflow instance database operations. Updates
// perform a compare-and-swap on the instance revision.
type InstanceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewInstanceRepository creates a new instance repository.
func NewInstanceRepository(db *sql.DB, logger *slog.Logger) *InstanceRepository {
	return &InstanceRepository{db: db, logger: logger}
}

const instanceColumns = `
	id
  , workflow_type
  , definition_id
  , definition_version
  , requester_id
  , current_approver_id
  , status
  , payload
  , context
  , chain
  , history
  , current_stage
  , total_stages
  , revision
  , metadata
  , completed_at
  , cancelled_by
  , cancel_reason
  , cancelled_at
  , created_at
  , updated_at
`

func (r *InstanceRepository) Save(ctx context.Context, instance *models.WorkflowInstance) error {
	fields, err := marshalInstanceFields(instance)
	if err != nil {
		return err
	}

	instance.Revision = 1

	query := `
		INSERT INTO workflow_instances (
			id, workflow_type, definition_id, definition_version, requester_id,
			current_approver_id, status, payload, context, chain, history,
			current_stage, total_stages, revision, metadata, completed_at,
			cancelled_by, cancel_reason, cancelled_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		instance.ID,
		string(instance.WorkflowType),
		instance.DefinitionID,
		instance.DefinitionVersion,
		instance.RequesterID,
		nullString(instance.CurrentApproverID),
		string(instance.Status),
		fields.payload,
		fields.context,
		fields.chain,
		fields.history,
		instance.CurrentStage,
		instance.TotalStages,
		instance.Revision,
		fields.metadata,
		instance.CompletedAt,
		nullString(instance.CancelledBy),
		nullString(instance.CancelReason),
		instance.CancelledAt,
		instance.CreatedAt,
		instance.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert workflow instance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %s", persistence.ErrAlreadyExists, instance.ID)
	}

	return nil
}

// Update writes the instance back only if the stored revision still matches
// the revision the caller read, then bumps it.
func (r *InstanceRepository) Update(ctx context.Context, instance *models.WorkflowInstance) error {
	fields, err := marshalInstanceFields(instance)
	if err != nil {
		return err
	}

	query := `
		UPDATE workflow_instances
		SET current_approver_id = $2, status = $3, payload = $4, chain = $5,
			history = $6, current_stage = $7, revision = revision + 1,
			metadata = $8, completed_at = $9, cancelled_by = $10,
			cancel_reason = $11, cancelled_at = $12, updated_at = $13
		WHERE id = $1 AND revision = $14
	`

	result, err := r.db.ExecContext(ctx, query,
		instance.ID,
		nullString(instance.CurrentApproverID),
		string(instance.Status),
		fields.payload,
		fields.chain,
		fields.history,
		instance.CurrentStage,
		fields.metadata,
		instance.CompletedAt,
		nullString(instance.CancelledBy),
		nullString(instance.CancelReason),
		instance.CancelledAt,
		instance.UpdatedAt,
		instance.Revision,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow instance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		exists, err := r.exists(ctx, instance.ID)
		if err != nil {
			return err
		}

		if !exists {
			return fmt.Errorf("%w: %s", persistence.ErrInstanceNotFound, instance.ID)
		}

		return fmt.Errorf("%w: instance %s read at revision %d",
			persistence.ErrRevisionConflict, instance.ID, instance.Revision)
	}

	instance.Revision++

	return nil
}

func (r *InstanceRepository) ByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE id = $1`

	instance, err := scanInstance(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", persistence.ErrInstanceNotFound, id)
		}

		return nil, fmt.Errorf("failed to scan workflow instance: %w", err)
	}

	return instance, nil
}

func (r *InstanceRepository) PendingByApprover(ctx context.Context, approverID string) ([]*models.WorkflowInstance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM workflow_instances
		WHERE status = $1 AND current_approver_id = $2
		ORDER BY created_at DESC
	`

	return r.query(ctx, query, string(models.InstanceStatusInProgress), approverID)
}

func (r *InstanceRepository) DelegatedTo(ctx context.Context, delegateID string) ([]*models.WorkflowInstance, error) {
	// The delegated entry is the one at index current_stage-1 in the chain.
	query := `
		SELECT ` + instanceColumns + `
		FROM workflow_instances
		WHERE status = $1
		  AND current_stage >= 1
		  AND chain -> (current_stage - 1) ->> 'status' = $2
		  AND chain -> (current_stage - 1) ->> 'delegated_to' = $3
		ORDER BY created_at DESC
	`

	return r.query(ctx, query,
		string(models.InstanceStatusInProgress),
		string(models.ChainEntryDelegated),
		delegateID,
	)
}

func (r *InstanceRepository) ByRequester(ctx context.Context, requesterID string, opts persistence.ListInstancesOptions) ([]*models.WorkflowInstance, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE requester_id = $1`
	args := []any{requesterID}

	if opts.Status != nil {
		args = append(args, string(*opts.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	if opts.WorkflowType != nil {
		args = append(args, string(*opts.WorkflowType))
		query += fmt.Sprintf(" AND workflow_type = $%d", len(args))
	}

	args = append(args, opts.Limit, opts.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	return r.query(ctx, query, args...)
}

func (r *InstanceRepository) exists(ctx context.Context, id string) (bool, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM workflow_instances WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check workflow instance existence: %w", err)
	}

	return exists, nil
}

func (r *InstanceRepository) query(ctx context.Context, query string, args ...any) ([]*models.WorkflowInstance, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow instances: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	instances := make([]*models.WorkflowInstance, 0)

	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow instance: %w", err)
		}

		instances = append(instances, instance)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflow instances: %w", err)
	}

	return instances, nil
}

type instanceJSONFields struct {
	payload  []byte
	context  []byte
	chain    []byte
	history  []byte
	metadata []byte
}

func marshalInstanceFields(instance *models.WorkflowInstance) (*instanceJSONFields, error) {
	payloadJSON, err := json.Marshal(instance.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	contextJSON, err := json.Marshal(instance.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal context: %w", err)
	}

	chainJSON, err := json.Marshal(instance.Chain)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chain: %w", err)
	}

	historyJSON, err := json.Marshal(instance.History)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history: %w", err)
	}

	metadataJSON, err := json.Marshal(instance.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	return &instanceJSONFields{
		payload:  payloadJSON,
		context:  contextJSON,
		chain:    chainJSON,
		history:  historyJSON,
		metadata: metadataJSON,
	}, nil
}

func scanInstance(row scanner) (*models.WorkflowInstance, error) {
	var (
		instance          models.WorkflowInstance
		workflowType      string
		status            string
		currentApproverID sql.NullString
		cancelledBy       sql.NullString
		cancelReason      sql.NullString
		payloadJSON       []byte
		contextJSON       []byte
		chainJSON         []byte
		historyJSON       []byte
		metadataJSON      []byte
	)

	err := row.Scan(
		&instance.ID,
		&workflowType,
		&instance.DefinitionID,
		&instance.DefinitionVersion,
		&instance.RequesterID,
		&currentApproverID,
		&status,
		&payloadJSON,
		&contextJSON,
		&chainJSON,
		&historyJSON,
		&instance.CurrentStage,
		&instance.TotalStages,
		&instance.Revision,
		&metadataJSON,
		&instance.CompletedAt,
		&cancelledBy,
		&cancelReason,
		&instance.CancelledAt,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	instance.WorkflowType = models.WorkflowType(workflowType)
	instance.Status = models.InstanceStatus(status)
	instance.CurrentApproverID = currentApproverID.String
	instance.CancelledBy = cancelledBy.String
	instance.CancelReason = cancelReason.String

	err = unmarshalJSONColumn(payloadJSON, &instance.Payload, "payload")
	if err != nil {
		return nil, err
	}

	err = unmarshalJSONColumn(contextJSON, &instance.Context, "context")
	if err != nil {
		return nil, err
	}

	err = unmarshalJSONColumn(chainJSON, &instance.Chain, "chain")
	if err != nil {
		return nil, err
	}

	err = unmarshalJSONColumn(historyJSON, &instance.History, "history")
	if err != nil {
		return nil, err
	}

	err = unmarshalJSONColumn(metadataJSON, &instance.Metadata, "metadata")
	if err != nil {
		return nil, err
	}

	return &instance, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
