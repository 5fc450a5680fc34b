package mocks

import (
	"context"
	"sync"

	"github.com/example/ec-wallet-shop/internal/events"
)

// MockPublisher records published events for assertions.
type MockPublisher struct {
	mu         sync.Mutex
	Events     []events.Event
	PublishErr error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{Events: make([]events.Event, 0)}
}

func (m *MockPublisher) Publish(ctx context.Context, e events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Events = append(m.Events, e)
	return m.PublishErr
}

// OfType returns the recorded events with the given type.
func (m *MockPublisher) OfType(eventType string) []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []events.Event
	for _, e := range m.Events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
