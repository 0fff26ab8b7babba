package models

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantConfig NodeConfig
		wantErr    bool
	}{
		{
			name:       "time_delay config",
			payload:    `{"id":"n1","type":"time_delay","config":{"duration":2,"unit":"days"}}`,
			wantConfig: &TimeDelayConfig{Duration: 2, Unit: "days"},
		},
		{
			name:       "conditional_split config",
			payload:    `{"id":"n2","type":"conditional_split","config":{"field":"status","operator":"equals","value":"lead"}}`,
			wantConfig: &ConditionalSplitConfig{Field: "status", Operator: "equals", Value: "lead"},
		},
		{
			name:       "send_sms config",
			payload:    `{"id":"n3","type":"send_sms","config":{"template_id":"tpl-1"}}`,
			wantConfig: &SendConfig{TemplateID: "tpl-1"},
		},
		{
			name:       "stop_on_reply config",
			payload:    `{"id":"n4","type":"stop_on_reply","config":{"channel":"any"}}`,
			wantConfig: &StopOnReplyConfig{Channel: "any"},
		},
		{
			name:       "trigger without config",
			payload:    `{"id":"n5","type":"trigger"}`,
			wantConfig: &TriggerConfig{},
		},
		{
			name:    "unknown node type",
			payload: `{"id":"n6","type":"teleport"}`,
			wantErr: true,
		},
		{
			name:    "config shape mismatch",
			payload: `{"id":"n7","type":"time_delay","config":{"duration":"soon"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var node Node

			err := json.Unmarshal([]byte(tt.payload), &node)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantConfig, node.Config)
		})
	}
}

func TestValidateNode(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	tests := []struct {
		name    string
		node    *Node
		wantErr bool
	}{
		{
			name: "valid delay",
			node: &Node{ID: "n1", Type: NodeTypeTimeDelay, Config: &TimeDelayConfig{Duration: 1, Unit: "hours"}},
		},
		{
			name:    "delay with bad unit",
			node:    &Node{ID: "n1", Type: NodeTypeTimeDelay, Config: &TimeDelayConfig{Duration: 1, Unit: "fortnights"}},
			wantErr: true,
		},
		{
			name:    "delay with zero duration",
			node:    &Node{ID: "n1", Type: NodeTypeTimeDelay, Config: &TimeDelayConfig{Unit: "days"}},
			wantErr: true,
		},
		{
			name:    "split with unknown operator",
			node:    &Node{ID: "n2", Type: NodeTypeConditionalSplit, Config: &ConditionalSplitConfig{Field: "status", Operator: "resembles"}},
			wantErr: true,
		},
		{
			name:    "send without template",
			node:    &Node{ID: "n3", Type: NodeTypeSendSMS, Config: &SendConfig{}},
			wantErr: true,
		},
		{
			name: "trigger needs no config",
			node: &Node{ID: "n4", Type: NodeTypeTrigger},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNode(validate, tt.node)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMessageStatusSupersedes(t *testing.T) {
	assert.True(t, MessageStatusDelivered.Supersedes(MessageStatusSent))
	assert.True(t, MessageStatusFailed.Supersedes(MessageStatusSending))
	assert.False(t, MessageStatusSent.Supersedes(MessageStatusDelivered))
	assert.False(t, MessageStatusSent.Supersedes(MessageStatusSent))
	assert.False(t, MessageStatusQueued.Supersedes(MessageStatusScheduled))
}
