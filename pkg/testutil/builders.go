// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/google/uuid"

	"github.com/reachflow/reachflow/pkg/models"
)

// CreateTestContact creates a contact with default values that can be overridden.
func CreateTestContact(overrides ...func(*models.Contact)) *models.Contact {
	contact := &models.Contact{
		ID:        uuid.New().String(),
		FirstName: "Jamie",
		LastName:  "Rivera",
		Email:     "jamie@example.com",
		Phone:     "+15550100",
		Status:    "lead",
	}

	for _, override := range overrides {
		override(contact)
	}

	return contact
}

// WithDoNotContact flags the contact as excluded from sends.
func WithDoNotContact() func(*models.Contact) {
	return func(c *models.Contact) {
		c.DoNotContact = true
	}
}

// WithCustomField sets a custom field on the contact.
func WithCustomField(name string, value any) func(*models.Contact) {
	return func(c *models.Contact) {
		if c.Custom == nil {
			c.Custom = make(map[string]any)
		}

		c.Custom[name] = value
	}
}

// GraphBuilder assembles a workflow graph node by node, connecting each
// node to the previous one unless an explicit edge is given.
type GraphBuilder struct {
	workflow *models.Workflow
	lastID   string
}

func NewGraph(name string) *GraphBuilder {
	return &GraphBuilder{
		workflow: &models.Workflow{
			ID:      uuid.New().String(),
			Name:    name,
			Enabled: true,
		},
	}
}

// Node appends a node chained to the previous node.
func (b *GraphBuilder) Node(id string, nodeType models.NodeType, config models.NodeConfig) *GraphBuilder {
	b.workflow.Nodes = append(b.workflow.Nodes, &models.Node{
		ID:     id,
		Type:   nodeType,
		Name:   id,
		Config: config,
	})

	if b.lastID != "" {
		b.Edge(b.lastID, id, "")
	}

	b.lastID = id

	return b
}

// Branch appends a node without chaining it; connect it with Edge.
func (b *GraphBuilder) Branch(id string, nodeType models.NodeType, config models.NodeConfig) *GraphBuilder {
	b.workflow.Nodes = append(b.workflow.Nodes, &models.Node{
		ID:     id,
		Type:   nodeType,
		Name:   id,
		Config: config,
	})

	return b
}

// Edge adds a directed edge with an optional branch handle.
func (b *GraphBuilder) Edge(source, target, handle string) *GraphBuilder {
	b.workflow.Edges = append(b.workflow.Edges, &models.Edge{
		ID:     uuid.New().String(),
		Source: source,
		Target: target,
		Handle: handle,
	})

	return b
}

// Disabled marks the workflow disabled.
func (b *GraphBuilder) Disabled() *GraphBuilder {
	b.workflow.Enabled = false

	return b
}

func (b *GraphBuilder) Build() *models.Workflow {
	return b.workflow
}
