package workflow

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reachflow/reachflow/pkg/models"
	"github.com/reachflow/reachflow/pkg/testutil"
)

func TestValidateGraph(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	tests := []struct {
		name    string
		build   func() *models.Workflow
		wantErr string
	}{
		{
			name: "valid linear graph",
			build: func() *models.Workflow {
				return testutil.NewGraph("valid").
					Node("start", models.NodeTypeTrigger, nil).
					Node("sms", models.NodeTypeSendSMS, &models.SendConfig{TemplateID: "tpl"}).
					Build()
			},
		},
		{
			name: "valid branch graph",
			build: func() *models.Workflow {
				return testutil.NewGraph("valid").
					Node("start", models.NodeTypeTrigger, nil).
					Node("split", models.NodeTypeConditionalSplit,
						&models.ConditionalSplitConfig{Field: "status", Operator: "equals", Value: "lead"}).
					Branch("a", models.NodeTypeUpdateStatus, &models.UpdateStatusConfig{NewStatus: "x"}).
					Branch("b", models.NodeTypeUpdateStatus, &models.UpdateStatusConfig{NewStatus: "y"}).
					Edge("split", "a", models.HandleYes).
					Edge("split", "b", models.HandleNo).
					Build()
			},
		},
		{
			name: "missing trigger",
			build: func() *models.Workflow {
				return testutil.NewGraph("bad").
					Node("sms", models.NodeTypeSendSMS, &models.SendConfig{TemplateID: "tpl"}).
					Build()
			},
			wantErr: "no trigger node",
		},
		{
			name: "duplicate node id",
			build: func() *models.Workflow {
				return testutil.NewGraph("bad").
					Node("start", models.NodeTypeTrigger, nil).
					Node("start", models.NodeTypeUpdateStatus, &models.UpdateStatusConfig{NewStatus: "x"}).
					Build()
			},
			wantErr: "duplicate node id",
		},
		{
			name: "invalid node config",
			build: func() *models.Workflow {
				return testutil.NewGraph("bad").
					Node("start", models.NodeTypeTrigger, nil).
					Node("wait", models.NodeTypeTimeDelay, &models.TimeDelayConfig{Duration: 0, Unit: "days"}).
					Build()
			},
			wantErr: "Duration",
		},
		{
			name: "bad delay unit",
			build: func() *models.Workflow {
				return testutil.NewGraph("bad").
					Node("start", models.NodeTypeTrigger, nil).
					Node("wait", models.NodeTypeTimeDelay, &models.TimeDelayConfig{Duration: 1, Unit: "fortnights"}).
					Build()
			},
			wantErr: "Unit",
		},
		{
			name: "edge to unknown node",
			build: func() *models.Workflow {
				return testutil.NewGraph("bad").
					Node("start", models.NodeTypeTrigger, nil).
					Edge("start", "nowhere", "").
					Build()
			},
			wantErr: "unknown target",
		},
		{
			name: "branch missing no edge",
			build: func() *models.Workflow {
				return testutil.NewGraph("bad").
					Node("start", models.NodeTypeTrigger, nil).
					Node("split", models.NodeTypeConditionalSplit,
						&models.ConditionalSplitConfig{Field: "status", Operator: "equals", Value: "lead"}).
					Branch("a", models.NodeTypeUpdateStatus, &models.UpdateStatusConfig{NewStatus: "x"}).
					Edge("split", "a", models.HandleYes).
					Build()
			},
			wantErr: `missing "no" edge`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGraph(validate, tt.build())

			if tt.wantErr == "" {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
