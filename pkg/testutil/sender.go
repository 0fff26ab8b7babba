package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/reachflow/reachflow/pkg/channels"
	"github.com/reachflow/reachflow/pkg/models"
)

// FakeSender is an in-memory channels.Sender that records every call.
type FakeSender struct {
	mu sync.Mutex

	ChannelName models.Channel
	Err         error
	Calls       []channels.OutboundMessage
}

func NewFakeSender(channel models.Channel) *FakeSender {
	return &FakeSender{ChannelName: channel}
}

func (s *FakeSender) Channel() models.Channel {
	return s.ChannelName
}

func (s *FakeSender) Send(_ context.Context, msg channels.OutboundMessage, _ models.ProviderSettings) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return "", s.Err
	}

	s.Calls = append(s.Calls, msg)

	return fmt.Sprintf("provider-%s-%d", s.ChannelName, len(s.Calls)), nil
}

// CallCount returns how many sends reached the provider.
func (s *FakeSender) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.Calls)
}
