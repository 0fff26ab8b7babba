package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/reachflow/reachflow/pkg/models"
	"github.com/reachflow/reachflow/pkg/persistence"
)

// DefaultBatchSize bounds one scheduler run.
const DefaultBatchSize = 100

// Scheduler finds due executions and ticks them through the executor.
// There is no long-lived loop: each Run processes one bounded batch and
// returns, driven by an external periodic caller.
type Scheduler struct {
	store    persistence.Persistence
	executor *Executor
	logger   *slog.Logger
	runnerID string
	now      func() time.Time
}

func NewScheduler(store persistence.Persistence, executor *Executor, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		executor: executor,
		logger:   logger,
		runnerID: "scheduler-" + uuid.New().String()[:8],
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunSummary reports the outcome of one scheduler run.
type RunSummary struct {
	Processed       int            `json:"processed"`
	Succeeded       int            `json:"succeeded"`
	Failed          int            `json:"failed"`
	Skipped         int            `json:"skipped"`
	StatusBreakdown map[string]int `json:"status_breakdown"`
}

// RunDue processes due executions in one bounded batch. Executions another
// runner claims first are skipped; one failing execution never aborts the
// batch.
func (s *Scheduler) RunDue(ctx context.Context, batchSize int) (*RunSummary, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	due, err := s.store.Executions().ListDue(ctx, s.now(), batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list due executions: %w", err)
	}

	summary := &RunSummary{StatusBreakdown: make(map[string]int)}

	if len(due) == 0 {
		return summary, nil
	}

	s.logger.InfoContext(ctx, "Scheduler run starting",
		"runner_id", s.runnerID, "due", len(due))

	for _, execution := range due {
		claimed, err := s.store.Executions().Claim(ctx, execution.ID, s.runnerID)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to claim execution",
				"execution_id", execution.ID, "error", err)

			summary.Failed++

			continue
		}

		if !claimed {
			summary.Skipped++

			continue
		}

		summary.Processed++

		result, err := s.executor.ProcessExecution(ctx, execution.ID)

		status := models.ExecutionStatusFailed
		if result != nil {
			status = result.Status
		}

		summary.StatusBreakdown[string(status)]++

		if err != nil {
			summary.Failed++

			continue
		}

		summary.Succeeded++
	}

	s.logger.InfoContext(ctx, "Scheduler run finished",
		"runner_id", s.runnerID, "processed", summary.Processed,
		"succeeded", summary.Succeeded, "failed", summary.Failed)

	return summary, nil
}
