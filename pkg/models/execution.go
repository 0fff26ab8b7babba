package models

import "time"

// ExecutionStatus represents the runtime state of an execution.
type ExecutionStatus string

const (
	ExecutionStatusNotStarted ExecutionStatus = "not_started"
	ExecutionStatusActive     ExecutionStatus = "active" // transient, in-tick only
	ExecutionStatusWaiting    ExecutionStatus = "waiting"
	ExecutionStatusCompleted  ExecutionStatus = "completed"
	ExecutionStatusStopped    ExecutionStatus = "stopped"
	ExecutionStatusFailed     ExecutionStatus = "failed"
)

// Execution is the runtime progress cursor for one enrollment: the sole
// durable checkpoint of a contact's journey through the graph.
//
// Invariant: NextRunAt is non-nil iff Status == waiting. CurrentNodeID is
// nil only before the first tick or after a terminal transition.
type Execution struct {
	ID            string          `json:"id"`
	EnrollmentID  string          `json:"enrollment_id" validate:"required"`
	WorkflowID    string          `json:"workflow_id"   validate:"required"`
	ContactID     string          `json:"contact_id"    validate:"required"`
	CurrentNodeID *string         `json:"current_node_id,omitempty"`
	NextRunAt     *time.Time      `json:"next_run_at,omitempty"`
	Status        ExecutionStatus `json:"status"`
	ClaimedBy     string          `json:"claimed_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsTerminal reports whether the execution can no longer be ticked.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusStopped || s == ExecutionStatusFailed
}
