package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reachflow/reachflow/pkg/models"
	"github.com/reachflow/reachflow/pkg/persistence"
	"github.com/reachflow/reachflow/pkg/persistence/memory"
	"github.com/reachflow/reachflow/pkg/testutil"
)

func newEnrollmentEnv(t *testing.T) (*memory.Persistence, *Enrollment, *models.Workflow) {
	t.Helper()

	store := memory.NewPersistence()

	wf := testutil.NewGraph("welcome").
		Node("start", models.NodeTypeTrigger, nil).
		Build()
	require.NoError(t, store.Workflows().Save(context.Background(), wf))

	return store, NewEnrollment(store, slog.Default()), wf
}

func TestEnrollContacts(t *testing.T) {
	store, enrollment, wf := newEnrollmentEnv(t)
	ctx := context.Background()

	contact := testutil.CreateTestContact()
	require.NoError(t, store.Contacts().Save(ctx, contact))

	result, err := enrollment.EnrollContacts(ctx, wf.ID, []string{contact.ID}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Enrolled)

	active, err := store.Enrollments().FindActive(ctx, wf.ID, contact.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, active.Status)

	execution, err := store.Executions().GetByEnrollment(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusWaiting, execution.Status)
	require.NotNil(t, execution.CurrentNodeID)
	assert.Equal(t, "start", *execution.CurrentNodeID)
	// Due immediately: the next scheduler run picks it up.
	require.NotNil(t, execution.NextRunAt)
}

func TestEnrollContactsSkipsDuplicates(t *testing.T) {
	store, enrollment, wf := newEnrollmentEnv(t)
	ctx := context.Background()

	contact := testutil.CreateTestContact()
	require.NoError(t, store.Contacts().Save(ctx, contact))

	_, err := enrollment.EnrollContacts(ctx, wf.ID, []string{contact.ID}, true)
	require.NoError(t, err)

	result, err := enrollment.EnrollContacts(ctx, wf.ID, []string{contact.ID}, true)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Enrolled)
	assert.Equal(t, 1, result.Skipped)
}

func TestEnrollContactsAllowsDuplicatesWhenDisabled(t *testing.T) {
	store, enrollment, wf := newEnrollmentEnv(t)
	ctx := context.Background()

	contact := testutil.CreateTestContact()
	require.NoError(t, store.Contacts().Save(ctx, contact))

	_, err := enrollment.EnrollContacts(ctx, wf.ID, []string{contact.ID}, true)
	require.NoError(t, err)

	result, err := enrollment.EnrollContacts(ctx, wf.ID, []string{contact.ID}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Enrolled)
}

func TestEnrollContactsCountsUnknownContacts(t *testing.T) {
	store, enrollment, wf := newEnrollmentEnv(t)
	ctx := context.Background()

	contact := testutil.CreateTestContact()
	require.NoError(t, store.Contacts().Save(ctx, contact))

	result, err := enrollment.EnrollContacts(ctx, wf.ID, []string{contact.ID, "ghost"}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Enrolled)
	assert.Equal(t, 1, result.Failed)
}

func TestEnrollContactsEmptyBatch(t *testing.T) {
	_, enrollment, wf := newEnrollmentEnv(t)

	_, err := enrollment.EnrollContacts(context.Background(), wf.ID, nil, true)
	require.ErrorIs(t, err, ErrNoContacts)
}

func TestEnrollContactsBatchTooLarge(t *testing.T) {
	_, enrollment, wf := newEnrollmentEnv(t)

	ids := make([]string, MaxEnrollBatchSize+1)
	for i := range ids {
		ids[i] = "contact"
	}

	_, err := enrollment.EnrollContacts(context.Background(), wf.ID, ids, true)
	require.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestEnrollContactsWorkflowDisabled(t *testing.T) {
	store, enrollment, wf := newEnrollmentEnv(t)
	ctx := context.Background()

	wf.Enabled = false
	require.NoError(t, store.Workflows().Save(ctx, wf))

	_, err := enrollment.EnrollContacts(ctx, wf.ID, []string{"any"}, true)
	require.ErrorIs(t, err, ErrWorkflowDisabled)
}

func TestEnrollContactsUnknownWorkflow(t *testing.T) {
	store := memory.NewPersistence()
	enrollment := NewEnrollment(store, slog.Default())

	_, err := enrollment.EnrollContacts(context.Background(), "missing", []string{"any"}, true)
	require.Error(t, err)
	assert.True(t, persistence.IsNotFound(err))
}

func TestEnrollContactsMissingTrigger(t *testing.T) {
	store := memory.NewPersistence()
	enrollment := NewEnrollment(store, slog.Default())
	ctx := context.Background()

	wf := &models.Workflow{ID: "wf-1", Name: "no trigger", Enabled: true}
	require.NoError(t, store.Workflows().Save(ctx, wf))

	_, err := enrollment.EnrollContacts(ctx, wf.ID, []string{"any"}, true)
	require.ErrorIs(t, err, ErrMissingTriggerNode)
}
