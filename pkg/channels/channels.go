// Package channels provides thin clients to external SMS and email send
// providers. Adapters are stateless; credentials arrive with every send.
package channels

import (
	"context"

	"github.com/reachflow/reachflow/pkg/models"
)

// OutboundMessage is the provider-facing view of a message.
type OutboundMessage struct {
	To      string
	From    string
	Body    string
	Subject string
}

// Sender dispatches one outbound message and returns the provider's id for
// it. A Sender is called at most once per message; failures are terminal
// for that message and recorded by the dispatch layer.
type Sender interface {
	Channel() models.Channel
	Send(ctx context.Context, msg OutboundMessage, settings models.ProviderSettings) (providerID string, err error)
}
