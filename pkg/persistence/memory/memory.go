// Package memory provides an in-memory persistence implementation used by
// tests and single-process local runs.
package memory

import (
	"context"
	"sync"

	"github.com/reachflow/reachflow/pkg/models"
	"github.com/reachflow/reachflow/pkg/persistence"
)

// Persistence implements persistence.Persistence over mutex-guarded maps.
// Claim operations take the same mutex as reads/writes, which gives the
// at-most-one-claim guarantee within a single process.
type Persistence struct {
	mu sync.Mutex

	workflows   map[string]*models.Workflow
	contacts    map[string]*models.Contact
	templates   map[string]*models.Template
	enrollments map[string]*models.Enrollment
	executions  map[string]*models.Execution
	messages    map[string]*models.Message
	settings    map[models.Channel]*models.ProviderSettings
}

func NewPersistence() *Persistence {
	return &Persistence{
		workflows:   make(map[string]*models.Workflow),
		contacts:    make(map[string]*models.Contact),
		templates:   make(map[string]*models.Template),
		enrollments: make(map[string]*models.Enrollment),
		executions:  make(map[string]*models.Execution),
		messages:    make(map[string]*models.Message),
		settings:    make(map[models.Channel]*models.ProviderSettings),
	}
}

func (p *Persistence) Workflows() persistence.WorkflowRepository     { return &workflowRepository{p} }
func (p *Persistence) Contacts() persistence.ContactRepository       { return &contactRepository{p} }
func (p *Persistence) Templates() persistence.TemplateRepository     { return &templateRepository{p} }
func (p *Persistence) Enrollments() persistence.EnrollmentRepository { return &enrollmentRepository{p} }
func (p *Persistence) Executions() persistence.ExecutionRepository   { return &executionRepository{p} }
func (p *Persistence) Messages() persistence.MessageRepository       { return &messageRepository{p} }
func (p *Persistence) Settings() persistence.SettingsRepository      { return &settingsRepository{p} }

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}
