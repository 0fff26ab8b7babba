package workflow

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reachflow/reachflow/pkg/models"
	"github.com/reachflow/reachflow/pkg/testutil"
)

func TestRunDueNothingDue(t *testing.T) {
	env := newTestEnv(t)
	scheduler := NewScheduler(env.store, env.executor, slog.Default())

	summary, err := scheduler.RunDue(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Processed)
	assert.Equal(t, 0, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Empty(t, summary.StatusBreakdown)
}

func TestRunDueProcessesBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scheduler := NewScheduler(env.store, env.executor, slog.Default())

	wf := testutil.NewGraph("welcome").
		Node("start", models.NodeTypeTrigger, nil).
		Node("sms", models.NodeTypeSendSMS, &models.SendConfig{TemplateID: "tpl-sms"}).
		Build()

	require.NoError(t, env.store.Workflows().Save(ctx, wf))

	contacts := []string{}
	for i := 0; i < 3; i++ {
		contact := testutil.CreateTestContact()
		require.NoError(t, env.store.Contacts().Save(ctx, contact))
		contacts = append(contacts, contact.ID)
	}

	result, err := env.enrollment.EnrollContacts(ctx, wf.ID, contacts, true)
	require.NoError(t, err)
	require.Equal(t, 3, result.Enrolled)

	summary, err := scheduler.RunDue(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 3, summary.StatusBreakdown[string(models.ExecutionStatusCompleted)])
	assert.Equal(t, 3, env.smsSender.CallCount())
}

func TestRunDueIsolatesFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scheduler := NewScheduler(env.store, env.executor, slog.Default())

	good := testutil.NewGraph("good").
		Node("start", models.NodeTypeTrigger, nil).
		Node("sms", models.NodeTypeSendSMS, &models.SendConfig{TemplateID: "tpl-sms"}).
		Build()

	bad := testutil.NewGraph("bad").
		Node("start", models.NodeTypeTrigger, nil).
		Build()

	goodID := env.enroll(t, good, testutil.CreateTestContact())
	badID := env.enroll(t, bad, testutil.CreateTestContact())

	// Disable the second workflow after enrollment so its tick fails.
	bad.Enabled = false
	require.NoError(t, env.store.Workflows().Save(ctx, bad))

	summary, err := scheduler.RunDue(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.StatusBreakdown[string(models.ExecutionStatusCompleted)])
	assert.Equal(t, 1, summary.StatusBreakdown[string(models.ExecutionStatusFailed)])

	assert.Equal(t, models.ExecutionStatusCompleted, env.execution(t, goodID).Status)
	assert.Equal(t, models.ExecutionStatusFailed, env.execution(t, badID).Status)
}

func TestRunDueSkipsClaimedExecutions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scheduler := NewScheduler(env.store, env.executor, slog.Default())

	wf := testutil.NewGraph("welcome").
		Node("start", models.NodeTypeTrigger, nil).
		Node("sms", models.NodeTypeSendSMS, &models.SendConfig{TemplateID: "tpl-sms"}).
		Build()

	executionID := env.enroll(t, wf, testutil.CreateTestContact())

	// Another runner grabbed the execution between our list and our claim.
	execution := env.execution(t, executionID)
	execution.ClaimedBy = "another-runner"
	require.NoError(t, env.store.Executions().Save(ctx, execution))

	summary, err := scheduler.RunDue(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, env.smsSender.CallCount())
}

func TestRunDueRespectsBatchSize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scheduler := NewScheduler(env.store, env.executor, slog.Default())

	wf := testutil.NewGraph("welcome").
		Node("start", models.NodeTypeTrigger, nil).
		Node("sms", models.NodeTypeSendSMS, &models.SendConfig{TemplateID: "tpl-sms"}).
		Build()

	require.NoError(t, env.store.Workflows().Save(ctx, wf))

	contacts := []string{}
	for i := 0; i < 5; i++ {
		contact := testutil.CreateTestContact()
		require.NoError(t, env.store.Contacts().Save(ctx, contact))
		contacts = append(contacts, contact.ID)
	}

	_, err := env.enrollment.EnrollContacts(ctx, wf.ID, contacts, true)
	require.NoError(t, err)

	summary, err := scheduler.RunDue(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)

	summary, err = scheduler.RunDue(ctx, DefaultBatchSize)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 5, env.smsSender.CallCount())
}

func TestExecutionClaimedOnceAcrossRunners(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	wf := testutil.NewGraph("welcome").
		Node("start", models.NodeTypeTrigger, nil).
		Build()

	executionID := env.enroll(t, wf, testutil.CreateTestContact())

	first, err := env.store.Executions().Claim(ctx, executionID, "runner-a")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := env.store.Executions().Claim(ctx, executionID, "runner-b")
	require.NoError(t, err)
	assert.False(t, second)
}

func TestWaitingExecutionNotDueBeforeNextRunAt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	wf := testutil.NewGraph("drip").
		Node("start", models.NodeTypeTrigger, nil).
		Build()

	executionID := env.enroll(t, wf, testutil.CreateTestContact())

	execution := env.execution(t, executionID)
	future := time.Now().UTC().Add(time.Hour)
	execution.NextRunAt = &future
	require.NoError(t, env.store.Executions().Save(ctx, execution))

	due, err := env.store.Executions().ListDue(ctx, time.Now().UTC(), DefaultBatchSize)
	require.NoError(t, err)
	assert.Empty(t, due)
}
