// Package web provides HTTP request and response types for the engine API.
package web

import (
	"time"

	"github.com/reachflow/reachflow/pkg/models"
)

// EnrollRequest is the request body for enrolling contacts in a workflow.
type EnrollRequest struct {
	ContactIDs     []string `json:"contact_ids"     validate:"required,min=1"`
	SkipDuplicates bool     `json:"skip_duplicates"`
}

// InboundWebhookPayload is the provider's inbound-message callback.
type InboundWebhookPayload struct {
	Channel    models.Channel `json:"channel"     validate:"required,oneof=sms email"`
	ContactID  string         `json:"contact_id"  validate:"required"`
	Body       string         `json:"body"`
	ProviderID string         `json:"provider_id"`
}

// StatusWebhookPayload is the provider's delivery-status callback.
type StatusWebhookPayload struct {
	Channel    models.Channel `json:"channel"     validate:"required,oneof=sms email"`
	ProviderID string         `json:"provider_id" validate:"required"`
	Status     string         `json:"status"      validate:"required"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// WebhookResponse acknowledges a verified webhook. Matched is false when
// the payload parsed and verified but referenced no known entity; the
// provider still receives a 2xx so it does not retry.
type WebhookResponse struct {
	Matched bool   `json:"matched"`
	ID      string `json:"id,omitempty"`
}
