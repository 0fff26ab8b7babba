// Package models defines the core domain models for outreach workflow automation.
package models

import "time"

// Workflow represents a directed node graph defining an outreach sequence.
type Workflow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"       validate:"required,min=3"`
	Enabled   bool      `json:"enabled"`
	Nodes     []*Node   `json:"nodes"`
	Edges     []*Edge   `json:"edges"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Edge is a directed connection between two nodes. Edges leaving a
// conditional_split node carry a Handle of "yes" or "no"; all other
// edges leave Handle empty.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
	Handle string `json:"handle,omitempty"`
}

// Branch handles for conditional_split edges.
const (
	HandleYes = "yes"
	HandleNo  = "no"
)

// NodeByID returns the node with the given id, or nil.
func (w *Workflow) NodeByID(id string) *Node {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n
		}
	}

	return nil
}

// TriggerNode returns the workflow's entry node, or nil if the graph has none.
func (w *Workflow) TriggerNode() *Node {
	for _, n := range w.Nodes {
		if n.Type == NodeTypeTrigger {
			return n
		}
	}

	return nil
}

// OutgoingEdges returns all edges leaving the given node.
func (w *Workflow) OutgoingEdges(nodeID string) []*Edge {
	var out []*Edge

	for _, e := range w.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}

	return out
}

// EdgeByHandle returns the edge leaving nodeID tagged with the given handle,
// or nil if no such edge exists.
func (w *Workflow) EdgeByHandle(nodeID, handle string) *Edge {
	for _, e := range w.Edges {
		if e.Source == nodeID && e.Handle == handle {
			return e
		}
	}

	return nil
}
