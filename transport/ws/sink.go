package ws

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"chat-relay/domain/event"
	"chat-relay/observability"
)

var errQueueFull = fmt.Errorf("outbound queue full")

// Sink is the per-connection outbound queue. Consume never blocks: when the
// buffer is full the event is dropped and counted, so a slow or stalled
// reader only degrades its own stream.
type Sink struct {
	log     *slog.Logger
	monitor *observability.Monitor
	out     chan []byte
	done    chan struct{}
	once    sync.Once
}

func NewSink(log *slog.Logger, monitor *observability.Monitor, buffer int) *Sink {
	return &Sink{
		log:     log,
		monitor: monitor,
		out:     make(chan []byte, buffer),
		done:    make(chan struct{}),
	}
}

// Consume serializes the event and enqueues it for the write pump.
func (s *Sink) Consume(_ context.Context, e event.DomainEvent) error {
	frame, err := encodeEvent(e)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", e.EventName(), err)
	}

	select {
	case <-s.done:
		return errQueueFull
	case s.out <- frame:
		return nil
	default:
		if s.monitor != nil {
			s.monitor.EventDropped()
		}
		return fmt.Errorf("%w: %s", errQueueFull, e.EventName())
	}
}

// Out is read by the write pump.
func (s *Sink) Out() <-chan []byte {
	return s.out
}

// Close stops the sink. Publishers racing a disconnect get an error instead
// of a write on a closed channel.
func (s *Sink) Close() {
	s.once.Do(func() { close(s.done) })
}

// Done signals the write pump to finish.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}
