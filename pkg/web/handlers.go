package web

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/reachflow/reachflow/pkg/models"
	"github.com/reachflow/reachflow/pkg/persistence"
	"github.com/reachflow/reachflow/pkg/services"
	"github.com/reachflow/reachflow/pkg/workflow"
)

// Config carries the boundary settings for the API handlers.
type Config struct {
	// SchedulerToken authenticates the trusted periodic caller of the
	// scheduler endpoints.
	SchedulerToken string

	// InsecureSkipVerify disables webhook signature verification. Test-only;
	// never set it in a deployed configuration.
	InsecureSkipVerify bool
}

type APIHandlers struct {
	store      persistence.Persistence
	scheduler  *workflow.Scheduler
	enrollment *services.Enrollment
	dispatch   *services.Dispatch
	validator  *validator.Validate
	logger     *slog.Logger
	config     Config
}

func NewAPIHandlers(
	store persistence.Persistence,
	scheduler *workflow.Scheduler,
	enrollment *services.Enrollment,
	dispatch *services.Dispatch,
	validate *validator.Validate,
	logger *slog.Logger,
	config Config,
) *APIHandlers {
	return &APIHandlers{
		store:      store,
		scheduler:  scheduler,
		enrollment: enrollment,
		dispatch:   dispatch,
		validator:  validate,
		logger:     logger,
		config:     config,
	}
}

// requireSchedulerAuth rejects untrusted callers before any read or write.
func (h *APIHandlers) requireSchedulerAuth(c fiber.Ctx) error {
	token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if !ok || h.config.SchedulerToken == "" {
		return services.ErrUnauthorized
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(h.config.SchedulerToken)) != 1 {
		return services.ErrUnauthorized
	}

	return nil
}

// RunScheduler processes one bounded batch of due executions. Individual
// execution failures are reported in the 200 summary; non-200 is reserved
// for whole-batch infrastructure failure.
func (h *APIHandlers) RunScheduler(c fiber.Ctx) error {
	if err := h.requireSchedulerAuth(c); err != nil {
		return unauthorized(c, err.Error())
	}

	batchSize, err := parseBatchSize(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	summary, err := h.scheduler.RunDue(c.Context(), batchSize)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(summary)
}

// SweepScheduled sends due scheduled messages in one bounded batch.
func (h *APIHandlers) SweepScheduled(c fiber.Ctx) error {
	if err := h.requireSchedulerAuth(c); err != nil {
		return unauthorized(c, err.Error())
	}

	batchSize, err := parseBatchSize(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	summary, err := h.dispatch.SweepScheduled(c.Context(), batchSize)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(summary)
}

// EnrollContacts enrolls a batch of contacts into the workflow.
func (h *APIHandlers) EnrollContacts(c fiber.Ctx) error {
	workflowID := c.Params("id")

	var req EnrollRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.enrollment.EnrollContacts(c.Context(), workflowID, req.ContactIDs, req.SkipDuplicates)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// SaveWorkflow validates and stores a workflow graph. Node configs are
// checked here so executions never see malformed config.
func (h *APIHandlers) SaveWorkflow(c fiber.Ctx) error {
	var wf models.Workflow
	if err := json.Unmarshal(c.Body(), &wf); err != nil {
		return badRequest(c, "invalid workflow body: "+err.Error())
	}

	wf.ID = c.Params("id")
	wf.UpdatedAt = time.Now().UTC()

	if wf.CreatedAt.IsZero() {
		wf.CreatedAt = wf.UpdatedAt
	}

	if err := workflow.ValidateGraph(h.validator, &wf); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.store.Workflows().Save(c.Context(), &wf); err != nil {
		return internalError(c, err)
	}

	return c.JSON(&wf)
}

// verifyWebhook parses, validates, and signature-checks a webhook body.
// Verification happens before any state mutation.
func (h *APIHandlers) verifyWebhook(c fiber.Ctx, payload any, channel func() models.Channel) error {
	if err := json.Unmarshal(c.Body(), payload); err != nil {
		return badRequest(c, "invalid webhook payload: "+err.Error())
	}

	if err := h.validator.Struct(payload); err != nil {
		return badRequest(c, err.Error())
	}

	if h.config.InsecureSkipVerify {
		h.logger.WarnContext(c.Context(), "Webhook signature verification disabled")

		return nil
	}

	settings, err := h.store.Settings().ProviderSettings(c.Context(), channel())
	if err != nil {
		return unauthorized(c, "no signing secret configured for channel")
	}

	if !VerifySignature(settings.SigningSecret, c.Body(), c.Get(SignatureHeader)) {
		return unauthorized(c, services.ErrBadSignature.Error())
	}

	return nil
}

// InboundMessage records an inbound reply from a provider webhook.
func (h *APIHandlers) InboundMessage(c fiber.Ctx) error {
	var payload InboundWebhookPayload

	if err := h.verifyWebhook(c, &payload, func() models.Channel { return payload.Channel }); err != nil {
		return err
	}

	message, err := h.dispatch.RecordInbound(c.Context(), services.InboundRequest{
		ContactID:  payload.ContactID,
		Channel:    payload.Channel,
		Body:       payload.Body,
		ProviderID: payload.ProviderID,
	})
	if err != nil {
		// Verified but unmatched payloads still get a 2xx so the provider
		// does not retry-storm.
		if persistence.IsNotFound(err) {
			return c.JSON(WebhookResponse{Matched: false})
		}

		return internalError(c, err)
	}

	return c.JSON(WebhookResponse{Matched: true, ID: message.ID})
}

// DeliveryStatus reconciles an asynchronous delivery-status event.
func (h *APIHandlers) DeliveryStatus(c fiber.Ctx) error {
	var payload StatusWebhookPayload

	if err := h.verifyWebhook(c, &payload, func() models.Channel { return payload.Channel }); err != nil {
		return err
	}

	message, err := h.dispatch.ApplyDeliveryEvent(c.Context(), services.DeliveryEvent{
		ProviderID: payload.ProviderID,
		Status:     payload.Status,
		OccurredAt: payload.OccurredAt,
	})
	if err != nil {
		if persistence.IsNotFound(err) {
			return c.JSON(WebhookResponse{Matched: false})
		}

		if services.IsValidationError(err) {
			return badRequest(c, err.Error())
		}

		return internalError(c, err)
	}

	return c.JSON(WebhookResponse{Matched: true, ID: message.ID})
}

// HealthCheck reports store health.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	if err := h.store.HealthCheck(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{"status": "healthy"})
}

func parseBatchSize(c fiber.Ctx) (int, error) {
	batchSizeStr := c.Query("batch_size")
	if batchSizeStr == "" {
		return 0, nil
	}

	batchSize, err := strconv.Atoi(batchSizeStr)
	if err != nil || batchSize <= 0 {
		return 0, services.ErrInvalidBatchSize
	}

	return batchSize, nil
}

// Register mounts all engine routes on the fiber app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Post("/scheduler/run", h.RunScheduler)
	app.Post("/scheduler/sweep-scheduled", h.SweepScheduled)

	app.Put("/workflows/:id", h.SaveWorkflow)
	app.Post("/workflows/:id/enroll", h.EnrollContacts)

	app.Post("/webhooks/messages/inbound", h.InboundMessage)
	app.Post("/webhooks/messages/status", h.DeliveryStatus)

	app.Get("/health", h.HealthCheck)
}
