package runtime

import (
	"context"
	"fmt"
	"sync"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

// captureSink records every event pushed to a connection.
type captureSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
	fail   bool
}

func (s *captureSink) Consume(_ context.Context, e event.DomainEvent) error {
	if s.fail {
		return fmt.Errorf("sink full")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *captureSink) Events() []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.DomainEvent(nil), s.events...)
}

func (s *captureSink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.events))
	for _, e := range s.events {
		names = append(names, e.EventName())
	}
	return names
}

// connect registers a capture sink for the user and returns it.
func connect(registry *Registry, userID, connectionID string) *captureSink {
	sink := &captureSink{}
	registry.Register(domain.Connection{UserID: userID, ID: connectionID}, sink)
	return sink
}
