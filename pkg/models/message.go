package models

import "time"

// Channel is the send channel for a message.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"

	// ChannelAny is accepted by stop_on_reply config to match either channel.
	ChannelAny Channel = "any"
)

// Direction distinguishes outbound sends from inbound replies.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// MessageStatus represents the delivery state of a message.
type MessageStatus string

const (
	MessageStatusQueued    MessageStatus = "queued"
	MessageStatusScheduled MessageStatus = "scheduled"
	MessageStatusSending   MessageStatus = "sending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusFailed    MessageStatus = "failed"
	MessageStatusBounced   MessageStatus = "bounced"
)

// statusRank orders statuses for monotonic transitions: a message never
// moves to a lower-ranked status, so replayed webhook events are no-ops.
var statusRank = map[MessageStatus]int{
	MessageStatusQueued:    1,
	MessageStatusScheduled: 1,
	MessageStatusSending:   2,
	MessageStatusSent:      3,
	MessageStatusFailed:    4,
	MessageStatusBounced:   4,
	MessageStatusDelivered: 5,
}

// Supersedes reports whether moving from current to next is a forward
// transition under the monotonic status order.
func (next MessageStatus) Supersedes(current MessageStatus) bool {
	return statusRank[next] > statusRank[current]
}

// Message is one outbound send or inbound reply. ProviderID is the external
// provider's id for the message, unique across the store and used for
// idempotent webhook matching. ExecutionID is a non-owning back-reference.
type Message struct {
	ID            string        `json:"id"`
	ContactID     string        `json:"contact_id" validate:"required"`
	Channel       Channel       `json:"channel"    validate:"required,oneof=sms email"`
	Direction     Direction     `json:"direction"`
	Body          string        `json:"body"`
	Subject       string        `json:"subject,omitempty"`
	Status        MessageStatus `json:"status"`
	ProviderID    string        `json:"provider_id,omitempty"`
	ProviderError string        `json:"provider_error,omitempty"`
	ExecutionID   string        `json:"execution_id,omitempty"`
	ScheduledAt   *time.Time    `json:"scheduled_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
