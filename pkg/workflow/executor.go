package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/reachflow/reachflow/pkg/models"
	"github.com/reachflow/reachflow/pkg/persistence"
	"github.com/reachflow/reachflow/pkg/services"
)

// MaxIterationsPerTick caps how many non-waiting nodes one tick may chain
// through before the graph is treated as cyclic.
const MaxIterationsPerTick = 50

// MessageDispatcher is the slice of the dispatch service the executor needs.
type MessageDispatcher interface {
	Send(ctx context.Context, req services.SendRequest) (*models.Message, error)
}

// Executor advances one execution per invocation. The execution row is the
// only state it mutates besides contact status updates and dispatched
// messages; every transition is persisted before the tick returns.
type Executor struct {
	store    persistence.Persistence
	dispatch MessageDispatcher
	logger   *slog.Logger
	now      func() time.Time

	// failSendBlocks makes a failed provider send terminal for the
	// execution instead of advancing past the send node.
	failSendBlocks bool
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithFailSendBlocks makes failed sends mark the execution failed rather
// than advancing. The default records the failure on the message only.
func WithFailSendBlocks() ExecutorOption {
	return func(e *Executor) {
		e.failSendBlocks = true
	}
}

func NewExecutor(store persistence.Persistence, dispatch MessageDispatcher, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	executor := &Executor{
		store:    store,
		dispatch: dispatch,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Result reports the outcome of one tick.
type Result struct {
	Status  models.ExecutionStatus `json:"status"`
	Success bool                   `json:"success"`
}

// ProcessExecution runs one tick: it loads the execution and its
// collaborators, chains through non-waiting nodes from the checkpointed
// node, and persists the resulting state. Ticking a terminal execution is
// a no-op.
func (e *Executor) ProcessExecution(ctx context.Context, executionID string) (*Result, error) {
	execution, err := e.store.Executions().GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if execution.Status.IsTerminal() {
		return &Result{Status: execution.Status, Success: true}, nil
	}

	logger := e.logger.With("execution_id", execution.ID, "workflow_id", execution.WorkflowID)

	enrollment, err := e.store.Enrollments().GetByID(ctx, execution.EnrollmentID)
	if err != nil {
		return e.fail(ctx, execution, enrollment, fmt.Errorf("enrollment lookup failed: %w", err))
	}

	workflow, err := e.store.Workflows().GetByID(ctx, execution.WorkflowID)
	if err != nil {
		return e.fail(ctx, execution, enrollment, fmt.Errorf("workflow lookup failed: %w", err))
	}

	if !workflow.Enabled {
		return e.fail(ctx, execution, enrollment, services.ErrWorkflowDisabled)
	}

	contact, err := e.store.Contacts().GetByID(ctx, execution.ContactID)
	if err != nil {
		return e.fail(ctx, execution, enrollment, fmt.Errorf("contact lookup failed: %w", err))
	}

	currentNodeID := ""
	if execution.CurrentNodeID != nil {
		currentNodeID = *execution.CurrentNodeID
	}

	if currentNodeID == "" {
		trigger := workflow.TriggerNode()
		if trigger == nil {
			return e.fail(ctx, execution, enrollment, &GraphError{
				WorkflowID: workflow.ID, Reason: "workflow has no trigger node",
			})
		}

		currentNodeID = trigger.ID
	}

	// The tick entered at the checkpointed node. If that node is a
	// time_delay, its wait was already served by the scheduler poll.
	waitServed := true

	for iteration := 0; iteration < MaxIterationsPerTick; iteration++ {
		node := workflow.NodeByID(currentNodeID)
		if node == nil {
			return e.fail(ctx, execution, enrollment, &GraphError{
				WorkflowID: workflow.ID, NodeID: currentNodeID, Reason: "current node not in graph",
			})
		}

		logger.DebugContext(ctx, "Processing node", "node_id", node.ID, "node_type", node.Type)

		switch node.Type {
		case models.NodeTypeTrigger:
			// Entry point, no behavior.

		case models.NodeTypeTimeDelay:
			if !waitServed {
				config := node.Config.(*models.TimeDelayConfig)
				runAt := e.now().Add(delayDuration(config))

				return e.wait(ctx, execution, node.ID, runAt)
			}

		case models.NodeTypeConditionalSplit:
			config := node.Config.(*models.ConditionalSplitConfig)

			yes, err := evaluateCondition(contact, config)
			if err != nil {
				return e.fail(ctx, execution, enrollment, err)
			}

			handle := models.HandleYes
			if !yes {
				handle = models.HandleNo
			}

			edge := workflow.EdgeByHandle(node.ID, handle)
			if edge == nil {
				return e.fail(ctx, execution, enrollment, &GraphError{
					WorkflowID: workflow.ID, NodeID: node.ID,
					Reason: fmt.Sprintf("no edge for handle %q", handle),
				})
			}

			currentNodeID = edge.Target
			waitServed = false

			continue

		case models.NodeTypeSendSMS, models.NodeTypeSendEmail:
			if contact.DoNotContact {
				return e.fail(ctx, execution, enrollment, services.ErrDoNotContact)
			}

			config := node.Config.(*models.SendConfig)

			channel := models.ChannelSMS
			if node.Type == models.NodeTypeSendEmail {
				channel = models.ChannelEmail
			}

			_, err := e.dispatch.Send(ctx, services.SendRequest{
				ContactID:      contact.ID,
				Channel:        channel,
				TemplateID:     config.TemplateID,
				FromIdentityID: config.FromIdentityID,
				ExecutionID:    execution.ID,
			})
			if err != nil {
				// Send failures live on the message, not the execution,
				// unless the executor is configured to block on them.
				logger.WarnContext(ctx, "Send node failed",
					"node_id", node.ID, "channel", channel, "error", err)

				if e.failSendBlocks {
					return e.fail(ctx, execution, enrollment, err)
				}
			}

		case models.NodeTypeUpdateStatus:
			config := node.Config.(*models.UpdateStatusConfig)

			if err := e.store.Contacts().UpdateStatus(ctx, contact.ID, config.NewStatus); err != nil {
				return e.fail(ctx, execution, enrollment, err)
			}

			contact.Status = config.NewStatus

		case models.NodeTypeStopOnReply:
			config := node.Config.(*models.StopOnReplyConfig)

			inbound, err := e.store.Messages().ListInbound(ctx, contact.ID, models.Channel(config.Channel), enrollment.EnrolledAt)
			if err != nil {
				return e.fail(ctx, execution, enrollment, err)
			}

			if len(inbound) > 0 {
				logger.InfoContext(ctx, "Inbound reply found, stopping execution",
					"node_id", node.ID, "replies", len(inbound))

				return e.finish(ctx, execution, enrollment, models.ExecutionStatusStopped)
			}

		default:
			return e.fail(ctx, execution, enrollment, &GraphError{
				WorkflowID: workflow.ID, NodeID: node.ID,
				Reason: fmt.Sprintf("unknown node type %q", node.Type),
			})
		}

		edges := workflow.OutgoingEdges(node.ID)
		if len(edges) == 0 {
			return e.finish(ctx, execution, enrollment, models.ExecutionStatusCompleted)
		}

		currentNodeID = edges[0].Target
		waitServed = false
	}

	return e.fail(ctx, execution, enrollment, &GraphCycleError{
		WorkflowID: workflow.ID, NodeID: currentNodeID, Iterations: MaxIterationsPerTick,
	})
}

// wait checkpoints the execution at a time_delay node.
func (e *Executor) wait(ctx context.Context, execution *models.Execution, nodeID string, runAt time.Time) (*Result, error) {
	execution.CurrentNodeID = &nodeID
	execution.NextRunAt = &runAt
	execution.Status = models.ExecutionStatusWaiting
	execution.ClaimedBy = ""
	execution.UpdatedAt = e.now()

	if err := e.store.Executions().Save(ctx, execution); err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "Execution waiting",
		"execution_id", execution.ID, "node_id", nodeID, "next_run_at", runAt)

	return &Result{Status: models.ExecutionStatusWaiting, Success: true}, nil
}

// finish moves the execution and its enrollment to a terminal state.
func (e *Executor) finish(ctx context.Context, execution *models.Execution, enrollment *models.Enrollment, status models.ExecutionStatus) (*Result, error) {
	execution.NextRunAt = nil
	execution.Status = status
	execution.ClaimedBy = ""
	execution.UpdatedAt = e.now()

	if err := e.store.Executions().Save(ctx, execution); err != nil {
		return nil, err
	}

	if enrollment != nil {
		enrollment.Status = enrollmentStatusFor(status)
		enrollment.UpdatedAt = e.now()

		if err := e.store.Enrollments().Save(ctx, enrollment); err != nil {
			return nil, err
		}
	}

	e.logger.InfoContext(ctx, "Execution finished",
		"execution_id", execution.ID, "status", status)

	return &Result{Status: status, Success: true}, nil
}

// fail records a terminal, non-retried failure on the execution.
func (e *Executor) fail(ctx context.Context, execution *models.Execution, enrollment *models.Enrollment, cause error) (*Result, error) {
	e.logger.ErrorContext(ctx, "Execution failed",
		"execution_id", execution.ID, "error", cause)

	execution.NextRunAt = nil
	execution.Status = models.ExecutionStatusFailed
	execution.ClaimedBy = ""
	execution.UpdatedAt = e.now()

	if err := e.store.Executions().Save(ctx, execution); err != nil {
		return nil, err
	}

	if enrollment != nil {
		enrollment.Status = models.EnrollmentStatusFailed
		enrollment.UpdatedAt = e.now()

		if err := e.store.Enrollments().Save(ctx, enrollment); err != nil {
			return nil, err
		}
	}

	return &Result{Status: models.ExecutionStatusFailed, Success: false}, cause
}

func enrollmentStatusFor(status models.ExecutionStatus) models.EnrollmentStatus {
	switch status {
	case models.ExecutionStatusCompleted:
		return models.EnrollmentStatusCompleted
	case models.ExecutionStatusStopped:
		return models.EnrollmentStatusStopped
	default:
		return models.EnrollmentStatusFailed
	}
}

func delayDuration(config *models.TimeDelayConfig) time.Duration {
	switch config.Unit {
	case "minutes":
		return time.Duration(config.Duration) * time.Minute
	case "hours":
		return time.Duration(config.Duration) * time.Hour
	default: // days
		return time.Duration(config.Duration) * 24 * time.Hour
	}
}

// evaluateCondition applies the conditional_split operator to the contact
// field. A missing field is treated as the empty string.
func evaluateCondition(contact *models.Contact, config *models.ConditionalSplitConfig) (bool, error) {
	raw, _ := contact.Field(config.Field)

	fieldValue := ""
	if raw != nil {
		fieldValue = fmt.Sprintf("%v", raw)
	}

	switch config.Operator {
	case "equals":
		return typedEquals(raw, fieldValue, config.Value), nil
	case "not_equals":
		return !typedEquals(raw, fieldValue, config.Value), nil
	case "contains":
		return strings.Contains(strings.ToLower(fieldValue), strings.ToLower(config.Value)), nil
	case "not_contains":
		return !strings.Contains(strings.ToLower(fieldValue), strings.ToLower(config.Value)), nil
	case "greater_than":
		return compareValues(fieldValue, config.Value) > 0, nil
	case "less_than":
		return compareValues(fieldValue, config.Value) < 0, nil
	case "is_empty":
		return fieldValue == "", nil
	case "is_not_empty":
		return fieldValue != "", nil
	default:
		return false, fmt.Errorf("%w: unknown operator %q", services.ErrInvalidRequest, config.Operator)
	}
}

// typedEquals compares with awareness of the field's underlying type:
// booleans and numbers compare as such, everything else as strings.
func typedEquals(raw any, fieldValue, expected string) bool {
	switch v := raw.(type) {
	case bool:
		parsed, err := strconv.ParseBool(expected)

		return err == nil && v == parsed
	case float64:
		parsed, err := strconv.ParseFloat(expected, 64)

		return err == nil && v == parsed
	case int:
		parsed, err := strconv.ParseFloat(expected, 64)

		return err == nil && float64(v) == parsed
	}

	if left, err := strconv.ParseFloat(fieldValue, 64); err == nil {
		if right, err := strconv.ParseFloat(expected, 64); err == nil {
			return left == right
		}
	}

	return fieldValue == expected
}

// compareValues compares numerically when both sides parse as numbers,
// lexically otherwise.
func compareValues(left, right string) int {
	leftNum, leftErr := strconv.ParseFloat(left, 64)
	rightNum, rightErr := strconv.ParseFloat(right, 64)

	if leftErr == nil && rightErr == nil {
		switch {
		case leftNum < rightNum:
			return -1
		case leftNum > rightNum:
			return 1
		default:
			return 0
		}
	}

	return strings.Compare(left, right)
}
