// Package workflow contains the execution state machine and the due-work
// scheduler for outreach workflows.
package workflow

import (
	"errors"
	"fmt"
)

// GraphError indicates a malformed graph encountered at run time: a
// dangling current node or a missing branch edge. Terminal for the
// execution, never retried.
type GraphError struct {
	WorkflowID string
	NodeID     string
	Reason     string
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph error in workflow %s at node %s: %s", e.WorkflowID, e.NodeID, e.Reason)
}

// GraphCycleError indicates the per-tick iteration cap was exceeded, which
// signals a cycle of non-waiting nodes. Terminal for the execution.
type GraphCycleError struct {
	WorkflowID string
	NodeID     string
	Iterations int
}

func (e *GraphCycleError) Error() string {
	return fmt.Sprintf("iteration cap %d exceeded in workflow %s at node %s: graph likely contains a cycle",
		e.Iterations, e.WorkflowID, e.NodeID)
}

// IsGraphError checks whether the error is a terminal graph defect.
func IsGraphError(err error) bool {
	var graphErr *GraphError
	if errors.As(err, &graphErr) {
		return true
	}

	var cycleErr *GraphCycleError

	return errors.As(err, &cycleErr)
}
