// Package postgresql provides PostgreSQL persistence for workflow definitions,
// instances, delegations and grade policies.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Registers the postgres driver with database/sql.
	_ "github.com/lib/pq"

	"github.com/approvio/approvio/pkg/persistence"
	"github.com/approvio/approvio/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db             *sql.DB
	logger         *slog.Logger
	definitionRepo *DefinitionRepository
	instanceRepo   *InstanceRepository
	delegationRepo *DelegationRepository
	gradePolicies  *GradePolicyRepository
}

// NewPersistence creates a new PostgreSQL persistence layer and runs pending
// schema migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	postgres := &Persistence{
		db:             database,
		logger:         logger,
		definitionRepo: NewDefinitionRepository(database, logger),
		instanceRepo:   NewInstanceRepository(database, logger),
		delegationRepo: NewDelegationRepository(database, logger),
		gradePolicies:  NewGradePolicyRepository(database, logger),
	}

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

func (p *Persistence) Definitions() persistence.DefinitionRepository {
	return p.definitionRepo
}

func (p *Persistence) Instances() persistence.InstanceRepository {
	return p.instanceRepo
}

func (p *Persistence) Delegations() persistence.DelegationRepository {
	return p.delegationRepo
}

func (p *Persistence) GradePolicies() persistence.GradePolicyRepository {
	return p.gradePolicies
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
