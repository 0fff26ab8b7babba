package models

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// NodeType identifies the behavior of a workflow node.
type NodeType string

const (
	NodeTypeTrigger          NodeType = "trigger"
	NodeTypeTimeDelay        NodeType = "time_delay"
	NodeTypeConditionalSplit NodeType = "conditional_split"
	NodeTypeSendSMS          NodeType = "send_sms"
	NodeTypeSendEmail        NodeType = "send_email"
	NodeTypeUpdateStatus     NodeType = "update_status"
	NodeTypeStopOnReply      NodeType = "stop_on_reply"
)

// Node is one typed step in a workflow graph. Config is a tagged union:
// the concrete type is determined by Type when the node is decoded, so the
// executor never sees malformed configuration at run time.
type Node struct {
	ID     string     `json:"id"   validate:"required"`
	Type   NodeType   `json:"type" validate:"required"`
	Name   string     `json:"name"`
	Config NodeConfig `json:"config,omitempty"`
}

// NodeConfig is implemented by every per-type configuration struct.
type NodeConfig interface {
	nodeConfig()
}

// TimeDelayConfig pauses the execution for Duration Units.
type TimeDelayConfig struct {
	Duration int    `json:"duration" validate:"required,min=1"`
	Unit     string `json:"unit"     validate:"required,oneof=minutes hours days"`
}

// ConditionalSplitConfig routes the execution down the "yes" or "no" edge
// based on a contact field comparison.
type ConditionalSplitConfig struct {
	Field    string `json:"field"    validate:"required"`
	Operator string `json:"operator" validate:"required,oneof=equals not_equals contains not_contains greater_than less_than is_empty is_not_empty"`
	Value    string `json:"value"`
}

// SendConfig references the template to render and send. Used by both
// send_sms and send_email nodes.
type SendConfig struct {
	TemplateID     string `json:"template_id" validate:"required"`
	FromIdentityID string `json:"from_identity_id,omitempty"`
}

// UpdateStatusConfig mutates the contact's status field.
type UpdateStatusConfig struct {
	NewStatus string `json:"new_status" validate:"required"`
}

// StopOnReplyConfig stops the execution when an inbound message exists on
// the given channel ("any" matches both).
type StopOnReplyConfig struct {
	Channel string `json:"channel" validate:"required,oneof=sms email any"`
}

// TriggerConfig carries no settings; the trigger node is the graph entry point.
type TriggerConfig struct{}

func (TimeDelayConfig) nodeConfig()        {}
func (ConditionalSplitConfig) nodeConfig() {}
func (SendConfig) nodeConfig()             {}
func (UpdateStatusConfig) nodeConfig()     {}
func (StopOnReplyConfig) nodeConfig()      {}
func (TriggerConfig) nodeConfig()          {}

// IsSendNode reports whether the node dispatches an outbound message.
func (n *Node) IsSendNode() bool {
	return n.Type == NodeTypeSendSMS || n.Type == NodeTypeSendEmail
}

// IsBranchNode reports whether the node has handle-tagged outgoing edges.
func (n *Node) IsBranchNode() bool {
	return n.Type == NodeTypeConditionalSplit
}

func newConfigFor(t NodeType) (NodeConfig, error) {
	switch t {
	case NodeTypeTrigger:
		return &TriggerConfig{}, nil
	case NodeTypeTimeDelay:
		return &TimeDelayConfig{}, nil
	case NodeTypeConditionalSplit:
		return &ConditionalSplitConfig{}, nil
	case NodeTypeSendSMS, NodeTypeSendEmail:
		return &SendConfig{}, nil
	case NodeTypeUpdateStatus:
		return &UpdateStatusConfig{}, nil
	case NodeTypeStopOnReply:
		return &StopOnReplyConfig{}, nil
	default:
		return nil, fmt.Errorf("unknown node type %q", t)
	}
}

// UnmarshalJSON decodes the node and its type-specific config struct.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID     string          `json:"id"`
		Type   NodeType        `json:"type"`
		Name   string          `json:"name"`
		Config json.RawMessage `json:"config"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	n.ID = raw.ID
	n.Type = raw.Type
	n.Name = raw.Name

	config, err := newConfigFor(raw.Type)
	if err != nil {
		return err
	}

	if len(raw.Config) > 0 {
		if err := json.Unmarshal(raw.Config, config); err != nil {
			return fmt.Errorf("invalid config for node %s (%s): %w", raw.ID, raw.Type, err)
		}
	}

	n.Config = config

	return nil
}

// ValidateNode checks the node's config struct against its validate tags.
// Called at workflow-save time so run-time execution can trust the config.
func ValidateNode(validate *validator.Validate, n *Node) error {
	if err := validate.Struct(n); err != nil {
		return fmt.Errorf("node %s: %w", n.ID, err)
	}

	if n.Config == nil {
		config, err := newConfigFor(n.Type)
		if err != nil {
			return err
		}

		n.Config = config
	}

	switch c := n.Config.(type) {
	case *TriggerConfig:
		return nil
	default:
		if err := validate.Struct(c); err != nil {
			return fmt.Errorf("node %s (%s): %w", n.ID, n.Type, err)
		}
	}

	return nil
}
