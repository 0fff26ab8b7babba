package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reachflow/reachflow/pkg/channels"
	"github.com/reachflow/reachflow/pkg/models"
	"github.com/reachflow/reachflow/pkg/persistence/memory"
	"github.com/reachflow/reachflow/pkg/services"
	"github.com/reachflow/reachflow/pkg/testutil"
	"github.com/reachflow/reachflow/pkg/web"
	"github.com/reachflow/reachflow/pkg/workflow"
)

const testSchedulerToken = "test-scheduler-token"

type testApp struct {
	app    *fiber.App
	store  *memory.Persistence
	sender *testutil.FakeSender
}

func setupTestApp(t *testing.T) *testApp {
	t.Helper()

	ctx := context.Background()
	store := memory.NewPersistence()
	logger := slog.Default()
	sender := testutil.NewFakeSender(models.ChannelSMS)

	for _, channel := range []models.Channel{models.ChannelSMS, models.ChannelEmail} {
		require.NoError(t, store.Settings().SaveProviderSettings(ctx, &models.ProviderSettings{
			Channel:       channel,
			AccountID:     "acct-1",
			AuthToken:     "token-1",
			FromAddress:   "reachflow",
			SigningSecret: "signing-secret-" + string(channel),
		}))
	}

	dispatch := services.NewDispatch(store, []channels.Sender{sender}, logger)
	executor := workflow.NewExecutor(store, dispatch, logger)
	scheduler := workflow.NewScheduler(store, executor, logger)
	enrollment := services.NewEnrollment(store, logger)
	validate := validator.New(validator.WithRequiredStructEnabled())

	handlers := web.NewAPIHandlers(store, scheduler, enrollment, dispatch, validate, logger, web.Config{
		SchedulerToken: testSchedulerToken,
	})

	app := fiber.New()
	handlers.Register(app)

	return &testApp{app: app, store: store, sender: sender}
}

func (ta *testApp) request(t *testing.T, method, path string, body any, decorate ...func(*http.Request)) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	for _, d := range decorate {
		d(req)
	}

	resp, err := ta.app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, raw
}

func withSchedulerToken(token string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
}

func signed(t *testing.T, secret string, body any) (any, func(*http.Request)) {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	return body, func(req *http.Request) {
		req.Header.Set(web.SignatureHeader, web.SignBody(secret, raw))
	}
}

func (ta *testApp) seedWorkflow(t *testing.T, wf *models.Workflow) {
	t.Helper()
	require.NoError(t, ta.store.Workflows().Save(context.Background(), wf))
}

func (ta *testApp) seedContact(t *testing.T, overrides ...func(*models.Contact)) *models.Contact {
	t.Helper()

	contact := testutil.CreateTestContact(overrides...)
	require.NoError(t, ta.store.Contacts().Save(context.Background(), contact))

	return contact
}

func smsGraph() *models.Workflow {
	return testutil.NewGraph("welcome").
		Node("start", models.NodeTypeTrigger, nil).
		Node("sms", models.NodeTypeSendSMS, &models.SendConfig{TemplateID: "tpl-sms"}).
		Build()
}

func TestHealthCheck(t *testing.T) {
	ta := setupTestApp(t)

	resp, body := ta.request(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "healthy")
}

func TestRunSchedulerRequiresToken(t *testing.T) {
	ta := setupTestApp(t)

	tests := []struct {
		name     string
		decorate []func(*http.Request)
	}{
		{name: "missing token"},
		{name: "wrong token", decorate: []func(*http.Request){withSchedulerToken("wrong")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := ta.request(t, http.MethodPost, "/scheduler/run", nil, tt.decorate...)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestRunSchedulerEmpty(t *testing.T) {
	ta := setupTestApp(t)

	resp, body := ta.request(t, http.MethodPost, "/scheduler/run", nil, withSchedulerToken(testSchedulerToken))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var summary workflow.RunSummary
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.Equal(t, 0, summary.Processed)
}

func TestRunSchedulerRejectsBadBatchSize(t *testing.T) {
	ta := setupTestApp(t)

	resp, _ := ta.request(t, http.MethodPost, "/scheduler/run?batch_size=zero", nil, withSchedulerToken(testSchedulerToken))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ta.request(t, http.MethodPost, "/scheduler/run?batch_size=-5", nil, withSchedulerToken(testSchedulerToken))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSaveWorkflow(t *testing.T) {
	ta := setupTestApp(t)

	resp, body := ta.request(t, http.MethodPut, "/workflows/wf-1", smsGraph())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var saved models.Workflow
	require.NoError(t, json.Unmarshal(body, &saved))
	assert.Equal(t, "wf-1", saved.ID)

	stored, err := ta.store.Workflows().GetByID(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Len(t, stored.Nodes, 2)
}

func TestSaveWorkflowRejectsInvalidGraph(t *testing.T) {
	ta := setupTestApp(t)

	// No trigger node.
	wf := &models.Workflow{
		Name:    "broken",
		Enabled: true,
		Nodes: []*models.Node{
			{ID: "sms", Type: models.NodeTypeSendSMS, Config: &models.SendConfig{TemplateID: "tpl"}},
		},
	}

	resp, body := ta.request(t, http.MethodPut, "/workflows/wf-broken", wf)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "trigger")
}

func TestEnrollContacts(t *testing.T) {
	ta := setupTestApp(t)

	wf := smsGraph()
	ta.seedWorkflow(t, wf)
	contact := ta.seedContact(t)

	resp, body := ta.request(t, http.MethodPost, "/workflows/"+wf.ID+"/enroll", web.EnrollRequest{
		ContactIDs:     []string{contact.ID},
		SkipDuplicates: true,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result services.EnrollResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, 1, result.Enrolled)
}

func TestEnrollContactsUnknownWorkflow(t *testing.T) {
	ta := setupTestApp(t)
	contact := ta.seedContact(t)

	resp, _ := ta.request(t, http.MethodPost, "/workflows/missing/enroll", web.EnrollRequest{
		ContactIDs: []string{contact.ID},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEnrollContactsEmptyBatch(t *testing.T) {
	ta := setupTestApp(t)

	resp, _ := ta.request(t, http.MethodPost, "/workflows/wf-1/enroll", web.EnrollRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInboundWebhookRejectsBadSignature(t *testing.T) {
	ta := setupTestApp(t)
	contact := ta.seedContact(t)

	payload := web.InboundWebhookPayload{
		Channel:   models.ChannelSMS,
		ContactID: contact.ID,
		Body:      "hello",
	}

	// Unsigned.
	resp, _ := ta.request(t, http.MethodPost, "/webhooks/messages/inbound", payload)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Signed with the wrong secret.
	body, decorate := signed(t, "wrong-secret", payload)
	resp, _ = ta.request(t, http.MethodPost, "/webhooks/messages/inbound", body, decorate)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Nothing was recorded.
	inbound, err := ta.store.Messages().ListInbound(context.Background(), contact.ID, models.ChannelAny, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, inbound)
}

func TestInboundWebhookRecordsMessage(t *testing.T) {
	ta := setupTestApp(t)
	contact := ta.seedContact(t)

	payload, decorate := signed(t, "signing-secret-sms", web.InboundWebhookPayload{
		Channel:   models.ChannelSMS,
		ContactID: contact.ID,
		Body:      "stop",
	})

	resp, raw := ta.request(t, http.MethodPost, "/webhooks/messages/inbound", payload, decorate)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var ack web.WebhookResponse
	require.NoError(t, json.Unmarshal(raw, &ack))
	assert.True(t, ack.Matched)
	assert.NotEmpty(t, ack.ID)
}

func TestInboundWebhookUnmatchedContact(t *testing.T) {
	ta := setupTestApp(t)

	payload, decorate := signed(t, "signing-secret-sms", web.InboundWebhookPayload{
		Channel:   models.ChannelSMS,
		ContactID: "ghost",
		Body:      "hello",
	})

	resp, raw := ta.request(t, http.MethodPost, "/webhooks/messages/inbound", payload, decorate)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var ack web.WebhookResponse
	require.NoError(t, json.Unmarshal(raw, &ack))
	assert.False(t, ack.Matched)
}

func TestStatusWebhookReconcilesDelivery(t *testing.T) {
	ta := setupTestApp(t)
	ctx := context.Background()

	require.NoError(t, ta.store.Templates().Save(ctx, &models.Template{
		ID: "tpl-sms", Channel: models.ChannelSMS, Body: "hi",
	}))

	ta.seedWorkflow(t, smsGraph())
	contact := ta.seedContact(t)

	dispatch := services.NewDispatch(ta.store, []channels.Sender{ta.sender}, slog.Default())

	sent, err := dispatch.Send(ctx, services.SendRequest{
		ContactID: contact.ID,
		Channel:   models.ChannelSMS,
		Body:      "hi",
	})
	require.NoError(t, err)

	payload, decorate := signed(t, "signing-secret-sms", web.StatusWebhookPayload{
		Channel:    models.ChannelSMS,
		ProviderID: sent.ProviderID,
		Status:     "delivered",
	})

	resp, raw := ta.request(t, http.MethodPost, "/webhooks/messages/status", payload, decorate)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var ack web.WebhookResponse
	require.NoError(t, json.Unmarshal(raw, &ack))
	assert.True(t, ack.Matched)

	stored, err := ta.store.Messages().GetByID(ctx, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusDelivered, stored.Status)
}

func TestStatusWebhookUnknownProviderID(t *testing.T) {
	ta := setupTestApp(t)

	payload, decorate := signed(t, "signing-secret-sms", web.StatusWebhookPayload{
		Channel:    models.ChannelSMS,
		ProviderID: "SM-missing",
		Status:     "delivered",
	})

	resp, raw := ta.request(t, http.MethodPost, "/webhooks/messages/status", payload, decorate)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var ack web.WebhookResponse
	require.NoError(t, json.Unmarshal(raw, &ack))
	assert.False(t, ack.Matched)
}

func TestStatusWebhookRejectsMalformedPayload(t *testing.T) {
	ta := setupTestApp(t)

	// Missing provider_id fails validation before signature checking.
	resp, _ := ta.request(t, http.MethodPost, "/webhooks/messages/status", map[string]string{
		"channel": "sms",
		"status":  "delivered",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestOutreachFlowEndToEnd drives a full sequence through the HTTP surface:
// save a workflow, enroll a contact, run the scheduler until the send
// happens, inject an inbound reply, and run again to observe the stop.
func TestOutreachFlowEndToEnd(t *testing.T) {
	ta := setupTestApp(t)
	ctx := context.Background()

	require.NoError(t, ta.store.Templates().Save(ctx, &models.Template{
		ID: "tpl-sms", Channel: models.ChannelSMS, Body: "Hi {{first_name}}!",
	}))

	wf := testutil.NewGraph("outreach").
		Node("start", models.NodeTypeTrigger, nil).
		Node("sms", models.NodeTypeSendSMS, &models.SendConfig{TemplateID: "tpl-sms"}).
		Node("wait", models.NodeTypeTimeDelay, &models.TimeDelayConfig{Duration: 1, Unit: "days"}).
		Node("stop", models.NodeTypeStopOnReply, &models.StopOnReplyConfig{Channel: "any"}).
		Node("follow-up", models.NodeTypeSendSMS, &models.SendConfig{TemplateID: "tpl-sms"}).
		Build()

	resp, _ := ta.request(t, http.MethodPut, "/workflows/"+wf.ID, wf)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	contact := ta.seedContact(t)

	resp, _ = ta.request(t, http.MethodPost, "/workflows/"+wf.ID+"/enroll", web.EnrollRequest{
		ContactIDs:     []string{contact.ID},
		SkipDuplicates: true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// First scheduler run: the welcome send goes out, then the execution
	// parks at the delay.
	resp, raw := ta.request(t, http.MethodPost, "/scheduler/run", nil, withSchedulerToken(testSchedulerToken))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary workflow.RunSummary
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.StatusBreakdown[string(models.ExecutionStatusWaiting)])
	assert.Equal(t, 1, ta.sender.CallCount())

	// The contact replies.
	payload, decorate := signed(t, "signing-secret-sms", web.InboundWebhookPayload{
		Channel:   models.ChannelSMS,
		ContactID: contact.ID,
		Body:      "sounds good",
	})

	resp, _ = ta.request(t, http.MethodPost, "/webhooks/messages/inbound", payload, decorate)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Fast-forward past the delay.
	enrollment, err := ta.store.Enrollments().FindActive(ctx, wf.ID, contact.ID)
	require.NoError(t, err)

	execution, err := ta.store.Executions().GetByEnrollment(ctx, enrollment.ID)
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Minute)
	execution.NextRunAt = &past
	require.NoError(t, ta.store.Executions().Save(ctx, execution))

	// Second run: stop_on_reply sees the inbound message and stops the
	// execution before the follow-up send.
	resp, raw = ta.request(t, http.MethodPost, "/scheduler/run", nil, withSchedulerToken(testSchedulerToken))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.StatusBreakdown[string(models.ExecutionStatusStopped)])
	assert.Equal(t, 1, ta.sender.CallCount())

	final, err := ta.store.Executions().GetByEnrollment(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusStopped, final.Status)
	assert.Nil(t, final.NextRunAt)
}
