// Package definitions provides the workflow definition registry: versioned
// approval templates keyed by (workflow type, department) with a department
// wildcard fallback.
package definitions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/approvio/approvio/pkg/models"
	"github.com/approvio/approvio/pkg/persistence"
	"github.com/google/uuid"
)

var (
	// ErrDefinitionActive indicates an attempt to mutate an active definition.
	// Active definitions are immutable; create and activate a new version instead.
	ErrDefinitionActive = errors.New("active workflow definition cannot be updated")

	// ErrUnknownWorkflowType indicates a workflow type outside the closed set.
	ErrUnknownWorkflowType = errors.New("unknown workflow type")
)

// Registry resolves and administers workflow definitions.
type Registry struct {
	definitions persistence.DefinitionRepository
	logger      *slog.Logger
}

// NewRegistry creates a definition registry over the given repository.
func NewRegistry(definitions persistence.DefinitionRepository, logger *slog.Logger) *Registry {
	return &Registry{
		definitions: definitions,
		logger:      logger,
	}
}

// ActiveDefinition returns the single active definition for the (type,
// department) pair: an exact department match is preferred over the ALL
// wildcard, and within a scope the highest version wins. Workflow creation
// cannot proceed without a template, so absence is surfaced as an error.
func (r *Registry) ActiveDefinition(ctx context.Context, workflowType models.WorkflowType, department string) (*models.WorkflowDefinition, error) {
	if department != models.DepartmentAll {
		definition, err := r.activeInScope(ctx, workflowType, department)
		if err != nil {
			return nil, err
		}

		if definition != nil {
			return definition, nil
		}
	}

	definition, err := r.activeInScope(ctx, workflowType, models.DepartmentAll)
	if err != nil {
		return nil, err
	}

	if definition == nil {
		return nil, fmt.Errorf("%w: type=%s department=%s",
			persistence.ErrActiveDefinitionNotFound, workflowType, department)
	}

	return definition, nil
}

func (r *Registry) activeInScope(ctx context.Context, workflowType models.WorkflowType, department string) (*models.WorkflowDefinition, error) {
	siblings, err := r.definitions.ByTypeAndDepartment(ctx, workflowType, department)
	if err != nil {
		return nil, fmt.Errorf("failed to load definitions for %s/%s: %w", workflowType, department, err)
	}

	var active *models.WorkflowDefinition

	for _, definition := range siblings {
		if !definition.Active {
			continue
		}

		if active == nil || definition.Version > active.Version {
			active = definition
		}
	}

	return active, nil
}

// Create validates and persists a new inactive definition. The version is one
// past the highest existing version for the (type, department) pair.
func (r *Registry) Create(ctx context.Context, definition *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	err := r.validate(definition)
	if err != nil {
		return nil, err
	}

	siblings, err := r.definitions.ByTypeAndDepartment(ctx, definition.WorkflowType, definition.Department)
	if err != nil {
		return nil, fmt.Errorf("failed to load sibling definitions: %w", err)
	}

	version := 1
	for _, sibling := range siblings {
		if sibling.Version >= version {
			version = sibling.Version + 1
		}
	}

	now := time.Now().UTC()

	definition.ID = uuid.New().String()
	definition.Version = version
	definition.Active = false
	definition.CreatedAt = now
	definition.UpdatedAt = now

	err = r.definitions.Save(ctx, definition)
	if err != nil {
		return nil, fmt.Errorf("failed to save definition: %w", err)
	}

	r.logger.InfoContext(ctx, "Workflow definition created",
		"definition_id", definition.ID,
		"workflow_type", definition.WorkflowType,
		"department", definition.Department,
		"version", definition.Version)

	return definition, nil
}

// Update replaces the stages and name of an inactive definition. Active
// definitions are immutable: supersede them by activating a newer version.
func (r *Registry) Update(ctx context.Context, definition *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	stored, err := r.definitions.ByID(ctx, definition.ID)
	if err != nil {
		return nil, err
	}

	if stored.Active {
		return nil, ErrDefinitionActive
	}

	err = r.validate(definition)
	if err != nil {
		return nil, err
	}

	stored.Name = definition.Name
	stored.Stages = definition.Stages
	stored.UpdatedAt = time.Now().UTC()

	err = r.definitions.Update(ctx, stored)
	if err != nil {
		return nil, fmt.Errorf("failed to update definition %s: %w", definition.ID, err)
	}

	return stored, nil
}

// Activate marks the definition active and deactivates every other definition
// sharing its (type, department) pair, preserving the at-most-one-active
// invariant.
func (r *Registry) Activate(ctx context.Context, definitionID string) (*models.WorkflowDefinition, error) {
	definition, err := r.definitions.ByID(ctx, definitionID)
	if err != nil {
		return nil, err
	}

	siblings, err := r.definitions.ByTypeAndDepartment(ctx, definition.WorkflowType, definition.Department)
	if err != nil {
		return nil, fmt.Errorf("failed to load sibling definitions: %w", err)
	}

	now := time.Now().UTC()

	for _, sibling := range siblings {
		if sibling.ID == definition.ID || !sibling.Active {
			continue
		}

		sibling.Active = false
		sibling.UpdatedAt = now

		err = r.definitions.Update(ctx, sibling)
		if err != nil {
			return nil, fmt.Errorf("failed to deactivate definition %s: %w", sibling.ID, err)
		}
	}

	definition.Active = true
	definition.UpdatedAt = now

	err = r.definitions.Update(ctx, definition)
	if err != nil {
		return nil, fmt.Errorf("failed to activate definition %s: %w", definitionID, err)
	}

	r.logger.InfoContext(ctx, "Workflow definition activated",
		"definition_id", definitionID,
		"workflow_type", definition.WorkflowType,
		"department", definition.Department,
		"version", definition.Version)

	return definition, nil
}

// Deactivate marks the definition inactive without activating a replacement.
func (r *Registry) Deactivate(ctx context.Context, definitionID string) (*models.WorkflowDefinition, error) {
	definition, err := r.definitions.ByID(ctx, definitionID)
	if err != nil {
		return nil, err
	}

	definition.Active = false
	definition.UpdatedAt = time.Now().UTC()

	err = r.definitions.Update(ctx, definition)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate definition %s: %w", definitionID, err)
	}

	return definition, nil
}

// ByID returns one definition.
func (r *Registry) ByID(ctx context.Context, definitionID string) (*models.WorkflowDefinition, error) {
	return r.definitions.ByID(ctx, definitionID)
}

// List returns every definition.
func (r *Registry) List(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	return r.definitions.List(ctx)
}

func (r *Registry) validate(definition *models.WorkflowDefinition) error {
	if !definition.WorkflowType.IsValid() {
		return fmt.Errorf("%w: %s", ErrUnknownWorkflowType, definition.WorkflowType)
	}

	if definition.Department == "" {
		return errors.New("definition department is required")
	}

	err := definition.ValidateStages()
	if err != nil {
		return err
	}

	for _, stage := range definition.Stages {
		err = validateStageConfig(stage)
		if err != nil {
			return err
		}
	}

	return nil
}
