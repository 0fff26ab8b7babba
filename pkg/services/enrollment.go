package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/reachflow/reachflow/pkg/models"
	"github.com/reachflow/reachflow/pkg/persistence"
)

// MaxEnrollBatchSize caps the number of contacts accepted per enroll call.
const MaxEnrollBatchSize = 1000

// Enrollment creates Enrollment + Execution pairs that point a contact at
// a workflow's trigger node, ready for the next scheduler run.
type Enrollment struct {
	store  persistence.Persistence
	logger *slog.Logger
	now    func() time.Time
}

func NewEnrollment(store persistence.Persistence, logger *slog.Logger) *Enrollment {
	return &Enrollment{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// EnrollResult reports per-batch enrollment counts.
type EnrollResult struct {
	Total    int `json:"total"`
	Enrolled int `json:"enrolled"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// EnrollContacts enrolls the given contacts into the workflow. The whole
// batch is rejected when the workflow is missing or disabled, or when the
// batch exceeds MaxEnrollBatchSize. Per-contact failures are counted, not
// propagated. With skipDuplicates, a contact with an existing active
// enrollment is counted as skipped.
func (e *Enrollment) EnrollContacts(ctx context.Context, workflowID string, contactIDs []string, skipDuplicates bool) (*EnrollResult, error) {
	if len(contactIDs) == 0 {
		return nil, ErrNoContacts
	}

	if len(contactIDs) > MaxEnrollBatchSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(contactIDs), MaxEnrollBatchSize)
	}

	workflow, err := e.store.Workflows().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if !workflow.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowDisabled, workflowID)
	}

	trigger := workflow.TriggerNode()
	if trigger == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingTriggerNode, workflowID)
	}

	result := &EnrollResult{Total: len(contactIDs)}

	for _, contactID := range contactIDs {
		enrolled, skipped, err := e.enrollOne(ctx, workflow, trigger, contactID, skipDuplicates)

		switch {
		case err != nil:
			e.logger.ErrorContext(ctx, "Failed to enroll contact",
				"workflow_id", workflowID, "contact_id", contactID, "error", err)

			result.Failed++
		case skipped:
			result.Skipped++
		case enrolled:
			result.Enrolled++
		}
	}

	return result, nil
}

func (e *Enrollment) enrollOne(ctx context.Context, workflow *models.Workflow, trigger *models.Node, contactID string, skipDuplicates bool) (bool, bool, error) {
	if _, err := e.store.Contacts().GetByID(ctx, contactID); err != nil {
		return false, false, err
	}

	if skipDuplicates {
		_, err := e.store.Enrollments().FindActive(ctx, workflow.ID, contactID)
		if err == nil {
			return false, true, nil
		}

		if !errors.Is(err, persistence.ErrEnrollmentNotFound) {
			return false, false, err
		}
	}

	now := e.now()
	triggerNodeID := trigger.ID

	enrollment := &models.Enrollment{
		ID:         uuid.New().String(),
		WorkflowID: workflow.ID,
		ContactID:  contactID,
		Status:     models.EnrollmentStatusActive,
		EnrolledAt: now,
		UpdatedAt:  now,
	}

	if err := e.store.Enrollments().Save(ctx, enrollment); err != nil {
		return false, false, err
	}

	execution := &models.Execution{
		ID:            uuid.New().String(),
		EnrollmentID:  enrollment.ID,
		WorkflowID:    workflow.ID,
		ContactID:     contactID,
		CurrentNodeID: &triggerNodeID,
		NextRunAt:     &now,
		Status:        models.ExecutionStatusWaiting,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := e.store.Executions().Save(ctx, execution); err != nil {
		return false, false, err
	}

	e.logger.InfoContext(ctx, "Contact enrolled",
		"workflow_id", workflow.ID, "contact_id", contactID,
		"enrollment_id", enrollment.ID, "execution_id", execution.ID)

	return true, false, nil
}
