package workflow

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/reachflow/reachflow/pkg/models"
)

// ValidateGraph checks a workflow graph at save time: node configs against
// their validate tags, edge endpoints against the node set, and branch
// nodes for both handle edges. Executions then never encounter malformed
// config, only graphs edited out from under them.
func ValidateGraph(validate *validator.Validate, wf *models.Workflow) error {
	if err := validate.Struct(wf); err != nil {
		return fmt.Errorf("workflow %s: %w", wf.ID, err)
	}

	if wf.TriggerNode() == nil {
		return fmt.Errorf("workflow %s has no trigger node", wf.ID)
	}

	nodeIDs := make(map[string]bool, len(wf.Nodes))

	for _, node := range wf.Nodes {
		if nodeIDs[node.ID] {
			return fmt.Errorf("workflow %s: duplicate node id %s", wf.ID, node.ID)
		}

		nodeIDs[node.ID] = true

		if err := models.ValidateNode(validate, node); err != nil {
			return fmt.Errorf("workflow %s: %w", wf.ID, err)
		}
	}

	for _, edge := range wf.Edges {
		if !nodeIDs[edge.Source] {
			return fmt.Errorf("workflow %s: edge %s references unknown source %s", wf.ID, edge.ID, edge.Source)
		}

		if !nodeIDs[edge.Target] {
			return fmt.Errorf("workflow %s: edge %s references unknown target %s", wf.ID, edge.ID, edge.Target)
		}
	}

	for _, node := range wf.Nodes {
		if !node.IsBranchNode() {
			continue
		}

		for _, handle := range []string{models.HandleYes, models.HandleNo} {
			if wf.EdgeByHandle(node.ID, handle) == nil {
				return fmt.Errorf("workflow %s: branch node %s missing %q edge", wf.ID, node.ID, handle)
			}
		}
	}

	return nil
}
