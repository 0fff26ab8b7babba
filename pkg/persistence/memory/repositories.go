package memory

import (
	"context"
	"sort"
	"time"

	"github.com/reachflow/reachflow/pkg/models"
	"github.com/reachflow/reachflow/pkg/persistence"
)

type workflowRepository struct{ p *Persistence }

func (r *workflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	clone := *workflow
	r.p.workflows[workflow.ID] = &clone

	return nil
}

func (r *workflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	workflow, ok := r.p.workflows[id]
	if !ok {
		return nil, persistence.NewStoreError("GetByID", "workflow", id, persistence.ErrWorkflowNotFound)
	}

	clone := *workflow

	return &clone, nil
}

type contactRepository struct{ p *Persistence }

func (r *contactRepository) Save(_ context.Context, contact *models.Contact) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	clone := *contact
	r.p.contacts[contact.ID] = &clone

	return nil
}

func (r *contactRepository) GetByID(_ context.Context, id string) (*models.Contact, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	contact, ok := r.p.contacts[id]
	if !ok {
		return nil, persistence.NewStoreError("GetByID", "contact", id, persistence.ErrContactNotFound)
	}

	clone := *contact

	return &clone, nil
}

func (r *contactRepository) UpdateStatus(_ context.Context, id, status string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	contact, ok := r.p.contacts[id]
	if !ok {
		return persistence.NewStoreError("UpdateStatus", "contact", id, persistence.ErrContactNotFound)
	}

	contact.Status = status
	contact.UpdatedAt = time.Now().UTC()

	return nil
}

type templateRepository struct{ p *Persistence }

func (r *templateRepository) Save(_ context.Context, template *models.Template) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	clone := *template
	r.p.templates[template.ID] = &clone

	return nil
}

func (r *templateRepository) GetByID(_ context.Context, id string) (*models.Template, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	template, ok := r.p.templates[id]
	if !ok {
		return nil, persistence.NewStoreError("GetByID", "template", id, persistence.ErrTemplateNotFound)
	}

	clone := *template

	return &clone, nil
}

type enrollmentRepository struct{ p *Persistence }

func (r *enrollmentRepository) Save(_ context.Context, enrollment *models.Enrollment) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	clone := *enrollment
	r.p.enrollments[enrollment.ID] = &clone

	return nil
}

func (r *enrollmentRepository) GetByID(_ context.Context, id string) (*models.Enrollment, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	enrollment, ok := r.p.enrollments[id]
	if !ok {
		return nil, persistence.NewStoreError("GetByID", "enrollment", id, persistence.ErrEnrollmentNotFound)
	}

	clone := *enrollment

	return &clone, nil
}

func (r *enrollmentRepository) FindActive(_ context.Context, workflowID, contactID string) (*models.Enrollment, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	for _, enrollment := range r.p.enrollments {
		if enrollment.WorkflowID == workflowID &&
			enrollment.ContactID == contactID &&
			enrollment.Status == models.EnrollmentStatusActive {
			clone := *enrollment

			return &clone, nil
		}
	}

	return nil, persistence.NewStoreError("FindActive", "enrollment", workflowID+"/"+contactID, persistence.ErrEnrollmentNotFound)
}

type executionRepository struct{ p *Persistence }

func (r *executionRepository) Save(_ context.Context, execution *models.Execution) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	clone := *execution
	r.p.executions[execution.ID] = &clone

	return nil
}

func (r *executionRepository) GetByID(_ context.Context, id string) (*models.Execution, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	execution, ok := r.p.executions[id]
	if !ok {
		return nil, persistence.NewStoreError("GetByID", "execution", id, persistence.ErrExecutionNotFound)
	}

	clone := *execution

	return &clone, nil
}

func (r *executionRepository) GetByEnrollment(_ context.Context, enrollmentID string) (*models.Execution, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	for _, execution := range r.p.executions {
		if execution.EnrollmentID == enrollmentID {
			clone := *execution

			return &clone, nil
		}
	}

	return nil, persistence.NewStoreError("GetByEnrollment", "execution", enrollmentID, persistence.ErrExecutionNotFound)
}

func (r *executionRepository) ListDue(_ context.Context, now time.Time, limit int) ([]*models.Execution, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	var due []*models.Execution

	for _, execution := range r.p.executions {
		switch execution.Status {
		case models.ExecutionStatusNotStarted:
		case models.ExecutionStatusWaiting:
			if execution.NextRunAt == nil || execution.NextRunAt.After(now) {
				continue
			}
		default:
			continue
		}

		clone := *execution
		due = append(due, &clone)
	}

	sort.Slice(due, func(i, j int) bool {
		left, right := due[i].NextRunAt, due[j].NextRunAt
		if left == nil || right == nil {
			return right != nil
		}

		return left.Before(*right)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

func (r *executionRepository) Claim(_ context.Context, id, claimedBy string) (bool, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	execution, ok := r.p.executions[id]
	if !ok {
		return false, persistence.NewStoreError("Claim", "execution", id, persistence.ErrExecutionNotFound)
	}

	if execution.ClaimedBy != "" || execution.Status.IsTerminal() || execution.Status == models.ExecutionStatusActive {
		return false, nil
	}

	execution.ClaimedBy = claimedBy
	execution.Status = models.ExecutionStatusActive
	execution.UpdatedAt = time.Now().UTC()

	return true, nil
}

type messageRepository struct{ p *Persistence }

func (r *messageRepository) Save(_ context.Context, message *models.Message) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	clone := *message
	r.p.messages[message.ID] = &clone

	return nil
}

func (r *messageRepository) GetByID(_ context.Context, id string) (*models.Message, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	message, ok := r.p.messages[id]
	if !ok {
		return nil, persistence.NewStoreError("GetByID", "message", id, persistence.ErrMessageNotFound)
	}

	clone := *message

	return &clone, nil
}

func (r *messageRepository) GetByProviderID(_ context.Context, providerID string) (*models.Message, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	for _, message := range r.p.messages {
		if message.ProviderID != "" && message.ProviderID == providerID {
			clone := *message

			return &clone, nil
		}
	}

	return nil, persistence.NewStoreError("GetByProviderID", "message", providerID, persistence.ErrMessageNotFound)
}

func (r *messageRepository) ListDueScheduled(_ context.Context, now time.Time, limit int) ([]*models.Message, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	var due []*models.Message

	for _, message := range r.p.messages {
		if message.Status != models.MessageStatusScheduled {
			continue
		}

		if message.ScheduledAt == nil || message.ScheduledAt.After(now) {
			continue
		}

		clone := *message
		due = append(due, &clone)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(*due[j].ScheduledAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

func (r *messageRepository) Claim(_ context.Context, id string) (bool, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	message, ok := r.p.messages[id]
	if !ok {
		return false, persistence.NewStoreError("Claim", "message", id, persistence.ErrMessageNotFound)
	}

	if message.Status != models.MessageStatusScheduled {
		return false, nil
	}

	message.Status = models.MessageStatusQueued
	message.UpdatedAt = time.Now().UTC()

	return true, nil
}

func (r *messageRepository) ListInbound(_ context.Context, contactID string, channel models.Channel, after time.Time) ([]*models.Message, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	var inbound []*models.Message

	for _, message := range r.p.messages {
		if message.Direction != models.DirectionInbound || message.ContactID != contactID {
			continue
		}

		if channel != models.ChannelAny && message.Channel != channel {
			continue
		}

		if !message.CreatedAt.After(after) {
			continue
		}

		clone := *message
		inbound = append(inbound, &clone)
	}

	sort.Slice(inbound, func(i, j int) bool {
		return inbound[i].CreatedAt.Before(inbound[j].CreatedAt)
	})

	return inbound, nil
}

type settingsRepository struct{ p *Persistence }

func (r *settingsRepository) SaveProviderSettings(_ context.Context, settings *models.ProviderSettings) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	clone := *settings
	r.p.settings[settings.Channel] = &clone

	return nil
}

func (r *settingsRepository) ProviderSettings(_ context.Context, channel models.Channel) (*models.ProviderSettings, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	settings, ok := r.p.settings[channel]
	if !ok {
		return nil, persistence.NewStoreError("ProviderSettings", "settings", string(channel), persistence.ErrSettingsNotFound)
	}

	clone := *settings

	return &clone, nil
}
