// Package persistence provides the data storage abstraction layer for the
// outreach engine. The Execution row is the sole durable checkpoint of a
// contact's journey; implementations must provide at-most-one-claim
// semantics per Execution/Message id so overlapping scheduler runs cannot
// double-process an entity.
package persistence

import (
	"context"
	"time"

	"github.com/reachflow/reachflow/pkg/models"
)

type Persistence interface {
	Workflows() WorkflowRepository
	Contacts() ContactRepository
	Templates() TemplateRepository
	Enrollments() EnrollmentRepository
	Executions() ExecutionRepository
	Messages() MessageRepository
	Settings() SettingsRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
}

// ContactRepository reads contacts owned by the external CRM surface. The
// engine mutates only the status field.
type ContactRepository interface {
	GetByID(ctx context.Context, id string) (*models.Contact, error)
	Save(ctx context.Context, contact *models.Contact) error
	UpdateStatus(ctx context.Context, id, status string) error
}

type TemplateRepository interface {
	GetByID(ctx context.Context, id string) (*models.Template, error)
	Save(ctx context.Context, template *models.Template) error
}

type EnrollmentRepository interface {
	Save(ctx context.Context, enrollment *models.Enrollment) error
	GetByID(ctx context.Context, id string) (*models.Enrollment, error)

	// FindActive returns the active enrollment for (workflow, contact), or
	// ErrEnrollmentNotFound when none exists.
	FindActive(ctx context.Context, workflowID, contactID string) (*models.Enrollment, error)
}

type ExecutionRepository interface {
	Save(ctx context.Context, execution *models.Execution) error
	GetByID(ctx context.Context, id string) (*models.Execution, error)
	GetByEnrollment(ctx context.Context, enrollmentID string) (*models.Execution, error)

	// ListDue returns executions ready to tick: waiting with
	// next_run_at <= now, plus not_started ones never yet ticked. Bounded
	// by limit, ordered by next_run_at ascending.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Execution, error)

	// Claim marks the execution as actively processed by claimedBy. Returns
	// false when another caller already holds the claim or the execution is
	// no longer claimable (conditional update).
	Claim(ctx context.Context, id, claimedBy string) (bool, error)
}

type MessageRepository interface {
	Save(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)

	// GetByProviderID matches a provider webhook event to a message.
	GetByProviderID(ctx context.Context, providerID string) (*models.Message, error)

	// ListDueScheduled returns scheduled messages with scheduled_at <= now,
	// bounded by limit.
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Message, error)

	// Claim transitions a scheduled message toward sending at most once.
	Claim(ctx context.Context, id string) (bool, error)

	// ListInbound returns inbound messages for the contact created after
	// the given time, on the given channel (ChannelAny matches both).
	ListInbound(ctx context.Context, contactID string, channel models.Channel, after time.Time) ([]*models.Message, error)
}

type SettingsRepository interface {
	ProviderSettings(ctx context.Context, channel models.Channel) (*models.ProviderSettings, error)
	SaveProviderSettings(ctx context.Context, settings *models.ProviderSettings) error
}
