// Package postgresql provides the PostgreSQL persistence implementation.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/reachflow/reachflow/pkg/persistence"
	"github.com/reachflow/reachflow/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPersistence connects, runs migrations, and returns the store.
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

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:     database,
		logger: logger,
	}, nil
}

func (p *Persistence) Workflows() persistence.WorkflowRepository {
	return &workflowRepository{db: p.db}
}

func (p *Persistence) Contacts() persistence.ContactRepository {
	return &contactRepository{db: p.db}
}

func (p *Persistence) Templates() persistence.TemplateRepository {
	return &templateRepository{db: p.db}
}

func (p *Persistence) Enrollments() persistence.EnrollmentRepository {
	return &enrollmentRepository{db: p.db}
}

func (p *Persistence) Executions() persistence.ExecutionRepository {
	return &executionRepository{db: p.db}
}

func (p *Persistence) Messages() persistence.MessageRepository {
	return &messageRepository{db: p.db}
}

func (p *Persistence) Settings() persistence.SettingsRepository {
	return &settingsRepository{db: p.db}
}

// HealthCheck verifies database connectivity.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
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
