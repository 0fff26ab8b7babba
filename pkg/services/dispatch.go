package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reachflow/reachflow/pkg/channels"
	"github.com/reachflow/reachflow/pkg/models"
	"github.com/reachflow/reachflow/pkg/persistence"
	"github.com/reachflow/reachflow/pkg/template"
)

// Dispatch creates, sends, and reconciles Message entities. A given message
// reaches a provider at most once: the queued -> sending transition is
// persisted before the provider call, and scheduled messages are claimed
// through the store's conditional update before being sent.
type Dispatch struct {
	store   persistence.Persistence
	senders map[models.Channel]channels.Sender
	logger  *slog.Logger
	now     func() time.Time
}

func NewDispatch(store persistence.Persistence, senders []channels.Sender, logger *slog.Logger) *Dispatch {
	byChannel := make(map[models.Channel]channels.Sender, len(senders))
	for _, sender := range senders {
		byChannel[sender.Channel()] = sender
	}

	return &Dispatch{
		store:   store,
		senders: byChannel,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SendRequest describes one outbound send. Body may be empty when
// TemplateID is set; placeholders are resolved server-side at send time.
type SendRequest struct {
	ContactID      string         `json:"contact_id" validate:"required"`
	Channel        models.Channel `json:"channel"    validate:"required,oneof=sms email"`
	Body           string         `json:"body"`
	Subject        string         `json:"subject,omitempty"`
	ScheduledAt    *time.Time     `json:"scheduled_at,omitempty"`
	TemplateID     string         `json:"template_id,omitempty"`
	FromIdentityID string         `json:"from_identity_id,omitempty"`
	ExecutionID    string         `json:"execution_id,omitempty"`
}

// Send validates the request, resolves placeholders against live contact
// data, persists the message, and delivers it through the channel adapter
// (immediately, or later via SweepScheduled when ScheduledAt is in the
// future). Provider and compliance failures are recorded on the returned
// message and also surfaced as the error.
func (d *Dispatch) Send(ctx context.Context, req SendRequest) (*models.Message, error) {
	if _, ok := d.senders[req.Channel]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChannel, req.Channel)
	}

	contact, err := d.store.Contacts().GetByID(ctx, req.ContactID)
	if err != nil {
		return nil, err
	}

	body, subject := req.Body, req.Subject

	if req.TemplateID != "" {
		tpl, err := d.store.Templates().GetByID(ctx, req.TemplateID)
		if err != nil {
			return nil, err
		}

		body, subject = tpl.Body, tpl.Subject
	}

	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyBody
	}

	data := contact.PlaceholderData()

	body, unresolved := template.Render(body, data)
	if len(unresolved) > 0 {
		d.logger.WarnContext(ctx, "Unresolved placeholders in message body",
			"contact_id", contact.ID, "placeholders", unresolved)
	}

	subject, _ = template.Render(subject, data)

	now := d.now()

	message := &models.Message{
		ID:          uuid.New().String(),
		ContactID:   contact.ID,
		Channel:     req.Channel,
		Direction:   models.DirectionOutbound,
		Body:        body,
		Subject:     subject,
		Status:      models.MessageStatusQueued,
		ExecutionID: req.ExecutionID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Compliance check before anything reaches a provider.
	if contact.DoNotContact {
		message.Status = models.MessageStatusFailed
		message.ProviderError = ErrDoNotContact.Error()

		if err := d.store.Messages().Save(ctx, message); err != nil {
			return nil, err
		}

		return message, ErrDoNotContact
	}

	if contact.AddressFor(req.Channel) == "" {
		message.Status = models.MessageStatusFailed
		message.ProviderError = ErrMissingAddress.Error()

		if err := d.store.Messages().Save(ctx, message); err != nil {
			return nil, err
		}

		return message, ErrMissingAddress
	}

	if req.ScheduledAt != nil && req.ScheduledAt.After(now) {
		message.Status = models.MessageStatusScheduled
		message.ScheduledAt = req.ScheduledAt

		if err := d.store.Messages().Save(ctx, message); err != nil {
			return nil, err
		}

		return message, nil
	}

	if err := d.store.Messages().Save(ctx, message); err != nil {
		return nil, err
	}

	return d.deliver(ctx, message, contact)
}

// deliver runs the sending -> sent/failed steps. The sending transition is
// persisted before the provider call so a crash mid-send cannot lead to a
// second provider call for the same message.
func (d *Dispatch) deliver(ctx context.Context, message *models.Message, contact *models.Contact) (*models.Message, error) {
	message.Status = models.MessageStatusSending
	message.UpdatedAt = d.now()

	if err := d.store.Messages().Save(ctx, message); err != nil {
		return nil, err
	}

	settings, err := d.store.Settings().ProviderSettings(ctx, message.Channel)
	if err != nil {
		return d.recordSendFailure(ctx, message, err)
	}

	sender := d.senders[message.Channel]

	providerID, err := sender.Send(ctx, channels.OutboundMessage{
		To:      contact.AddressFor(message.Channel),
		From:    settings.FromAddress,
		Body:    message.Body,
		Subject: message.Subject,
	}, *settings)
	if err != nil {
		return d.recordSendFailure(ctx, message, &ProviderError{Channel: string(message.Channel), Err: err})
	}

	message.Status = models.MessageStatusSent
	message.ProviderID = providerID
	message.UpdatedAt = d.now()

	if err := d.store.Messages().Save(ctx, message); err != nil {
		return nil, err
	}

	d.logger.InfoContext(ctx, "Message sent",
		"message_id", message.ID, "channel", message.Channel, "provider_id", providerID)

	return message, nil
}

func (d *Dispatch) recordSendFailure(ctx context.Context, message *models.Message, cause error) (*models.Message, error) {
	message.Status = models.MessageStatusFailed
	message.ProviderError = cause.Error()
	message.UpdatedAt = d.now()

	if err := d.store.Messages().Save(ctx, message); err != nil {
		return nil, err
	}

	d.logger.ErrorContext(ctx, "Message send failed",
		"message_id", message.ID, "channel", message.Channel, "error", cause)

	return message, cause
}

// SweepSummary reports the outcome of one scheduled-send sweep.
type SweepSummary struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// DefaultSweepBatchSize bounds one scheduled-send sweep.
const DefaultSweepBatchSize = 50

// SweepScheduled sends due scheduled messages in a bounded batch. Contact
// state is re-validated at send time, and each message is claimed before
// sending so overlapping sweeps cannot double-send.
func (d *Dispatch) SweepScheduled(ctx context.Context, batchSize int) (*SweepSummary, error) {
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}

	due, err := d.store.Messages().ListDueScheduled(ctx, d.now(), batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list due scheduled messages: %w", err)
	}

	summary := &SweepSummary{}

	for _, message := range due {
		claimed, err := d.store.Messages().Claim(ctx, message.ID)
		if err != nil {
			d.logger.ErrorContext(ctx, "Failed to claim scheduled message",
				"message_id", message.ID, "error", err)

			summary.Failed++

			continue
		}

		if !claimed {
			summary.Skipped++

			continue
		}

		summary.Processed++

		message.Status = models.MessageStatusQueued

		contact, err := d.store.Contacts().GetByID(ctx, message.ContactID)
		if err != nil {
			_, _ = d.recordSendFailure(ctx, message, err)

			summary.Failed++

			continue
		}

		// Contact state may have changed since the message was scheduled.
		if contact.DoNotContact {
			_, _ = d.recordSendFailure(ctx, message, ErrDoNotContact)

			summary.Failed++

			continue
		}

		if contact.AddressFor(message.Channel) == "" {
			_, _ = d.recordSendFailure(ctx, message, ErrMissingAddress)

			summary.Failed++

			continue
		}

		if _, err := d.deliver(ctx, message, contact); err != nil {
			summary.Failed++

			continue
		}

		summary.Sent++
	}

	return summary, nil
}

// DeliveryEvent is a provider delivery-status callback, already
// signature-verified by the HTTP boundary.
type DeliveryEvent struct {
	ProviderID string    `json:"provider_id" validate:"required"`
	Status     string    `json:"status"      validate:"required"`
	OccurredAt time.Time `json:"occurred_at"`
}

// providerStatusMap translates provider delivery vocabularies into the
// canonical message status set.
var providerStatusMap = map[string]models.MessageStatus{
	"queued":      models.MessageStatusSent,
	"accepted":    models.MessageStatusSent,
	"sent":        models.MessageStatusSent,
	"delivered":   models.MessageStatusDelivered,
	"failed":      models.MessageStatusFailed,
	"undelivered": models.MessageStatusFailed,
	"bounce":      models.MessageStatusBounced,
	"bounced":     models.MessageStatusBounced,
	"dropped":     models.MessageStatusBounced,
}

// ApplyDeliveryEvent reconciles an asynchronous delivery-status event with
// the message matched by provider id. Transitions are monotonic:
// re-applying the same or an older event refreshes UpdatedAt and changes
// nothing else.
func (d *Dispatch) ApplyDeliveryEvent(ctx context.Context, event DeliveryEvent) (*models.Message, error) {
	status, ok := providerStatusMap[strings.ToLower(event.Status)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown delivery status %q", ErrInvalidRequest, event.Status)
	}

	message, err := d.store.Messages().GetByProviderID(ctx, event.ProviderID)
	if err != nil {
		return nil, err
	}

	if status.Supersedes(message.Status) {
		message.Status = status
	}

	message.UpdatedAt = d.now()

	if err := d.store.Messages().Save(ctx, message); err != nil {
		return nil, err
	}

	return message, nil
}

// InboundRequest records an inbound reply delivered by the provider's
// inbound webhook. The HTTP boundary verifies the signature and resolves
// the contact before calling.
type InboundRequest struct {
	ContactID  string         `json:"contact_id"  validate:"required"`
	Channel    models.Channel `json:"channel"     validate:"required,oneof=sms email"`
	Body       string         `json:"body"`
	ProviderID string         `json:"provider_id"`
}

// RecordInbound persists an inbound message so stop_on_reply nodes can
// short-circuit executions for the contact.
func (d *Dispatch) RecordInbound(ctx context.Context, req InboundRequest) (*models.Message, error) {
	if _, err := d.store.Contacts().GetByID(ctx, req.ContactID); err != nil {
		return nil, err
	}

	now := d.now()

	message := &models.Message{
		ID:         uuid.New().String(),
		ContactID:  req.ContactID,
		Channel:    req.Channel,
		Direction:  models.DirectionInbound,
		Body:       req.Body,
		Status:     models.MessageStatusDelivered,
		ProviderID: req.ProviderID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := d.store.Messages().Save(ctx, message); err != nil {
		return nil, err
	}

	d.logger.InfoContext(ctx, "Inbound message recorded",
		"message_id", message.ID, "contact_id", req.ContactID, "channel", req.Channel)

	return message, nil
}
