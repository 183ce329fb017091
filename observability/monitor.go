// Package observability aggregates process-wide counters for the heartbeat
// worker and the debug server. Counters are atomic; readers get a
// consistent-enough snapshot without locking the hot paths.
package observability

import "sync/atomic"

type Monitor struct {
	ConnectionsOpened  uint64
	ConnectionsClosed  uint64
	MessagesDispatched uint64
	EventsDropped      uint64
	CallsInitiated     uint64
	CallsCompleted     uint64
	AuthRejections     uint64
}

func NewMonitor() *Monitor {
	return &Monitor{}
}

func (m *Monitor) ConnectionOpened()  { atomic.AddUint64(&m.ConnectionsOpened, 1) }
func (m *Monitor) ConnectionClosed()  { atomic.AddUint64(&m.ConnectionsClosed, 1) }
func (m *Monitor) MessageDispatched() { atomic.AddUint64(&m.MessagesDispatched, 1) }
func (m *Monitor) EventDropped()      { atomic.AddUint64(&m.EventsDropped, 1) }
func (m *Monitor) CallInitiated()     { atomic.AddUint64(&m.CallsInitiated, 1) }
func (m *Monitor) CallCompleted()     { atomic.AddUint64(&m.CallsCompleted, 1) }
func (m *Monitor) AuthRejected()      { atomic.AddUint64(&m.AuthRejections, 1) }

// Snapshot returns the current counter values keyed for the debug UI.
func (m *Monitor) Snapshot() map[string]any {
	opened := atomic.LoadUint64(&m.ConnectionsOpened)
	closed := atomic.LoadUint64(&m.ConnectionsClosed)
	return map[string]any{
		"connections_live":    opened - closed,
		"connections_opened":  opened,
		"connections_closed":  closed,
		"messages_dispatched": atomic.LoadUint64(&m.MessagesDispatched),
		"events_dropped":      atomic.LoadUint64(&m.EventsDropped),
		"calls_initiated":     atomic.LoadUint64(&m.CallsInitiated),
		"calls_completed":     atomic.LoadUint64(&m.CallsCompleted),
		"auth_rejections":     atomic.LoadUint64(&m.AuthRejections),
	}
}
