package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
)

// Calls is the per-chat signaling state machine relaying WebRTC payloads
// between exactly two participants: Idle -> Ringing -> Active -> Ended. The
// offer/answer/candidate blobs are relayed verbatim, never interpreted.
//
// Each ringing session owns a timeout timer: a call nobody answers is torn
// down by the coordinator itself, independent of client clocks. The timer
// is cancelled on answer, reject and end.
type Calls struct {
	mu          sync.Mutex
	log         *slog.Logger
	store       contract.IStore
	registry    contract.IConnectionRegistry
	monitor     *observability.Monitor
	ringTimeout time.Duration
	sessions    map[string]*callSession
}

type callSession struct {
	domain.CallSession
	ringTimer *time.Timer
}

// NewCalls builds the coordinator. ringTimeout <= 0 disables the
// no-answer teardown.
func NewCalls(log *slog.Logger, store contract.IStore, registry contract.IConnectionRegistry,
	monitor *observability.Monitor, ringTimeout time.Duration) *Calls {
	return &Calls{
		log:         log,
		store:       store,
		registry:    registry,
		monitor:     monitor,
		ringTimeout: ringTimeout,
		sessions:    make(map[string]*callSession),
	}
}

// Initiate starts a session for the chat and relays the offer to the other
// member's connection only. Requirements, checked in order: the chat has
// exactly two active members, the caller is one of them, no session exists
// for the chat, and the callee is currently registered.
//
// The membership read suspends on Store I/O, so the session map is only
// examined under the lock after that await; a racing initiate for the same
// chat loses the check-then-insert and gets the conflict error while the
// first session stays untouched.
func (c *Calls) Initiate(ctx context.Context, callerID, chatID string, offer domain.SignalPayload) error {
	members, err := c.store.ListActiveMembers(ctx, chatID)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	if len(members) != 2 {
		return errors.ErrCallNotDirect
	}
	if !lo.Contains(members, callerID) {
		return errors.ErrNotChatMember
	}

	calleeID := members[0]
	if calleeID == callerID {
		calleeID = members[1]
	}

	callee, online := c.registry.Lookup(calleeID)
	if !online {
		return errors.ErrCallTargetOffline
	}

	c.mu.Lock()
	if _, exists := c.sessions[chatID]; exists {
		c.mu.Unlock()
		return errors.ErrCallInProgress
	}
	session := &callSession{CallSession: domain.CallSession{
		ChatID:     chatID,
		CallerID:   callerID,
		ReceiverID: calleeID,
		State:      domain.CallRinging,
		StartedAt:  time.Now().UTC(),
	}}
	if c.ringTimeout > 0 {
		session.ringTimer = time.AfterFunc(c.ringTimeout, func() {
			c.expireRinging(chatID)
		})
	}
	c.sessions[chatID] = session
	c.mu.Unlock()

	if c.monitor != nil {
		c.monitor.CallInitiated()
	}
	c.relay(ctx, callee, event.CallOffer{ChatID: chatID, Offer: offer, CallerID: callerID})
	return nil
}

// Answer relays the answer to the caller's connection only and moves the
// session to Active, cancelling the ring timer.
func (c *Calls) Answer(ctx context.Context, userID, chatID string, answer domain.SignalPayload) error {
	c.mu.Lock()
	session, ok := c.sessions[chatID]
	if !ok {
		c.mu.Unlock()
		return errors.ErrNoActiveCall
	}
	if !session.HasParticipant(userID) {
		c.mu.Unlock()
		return errors.ErrNotCallParticipant
	}
	session.stopRingTimer()
	session.State = domain.CallActive
	callerID := session.CallerID
	c.mu.Unlock()

	if caller, ok := c.registry.Lookup(callerID); ok {
		c.relay(ctx, caller, event.CallAnswer{ChatID: chatID, Answer: answer})
	}
	return nil
}

// Candidate relays an ICE candidate to whichever participant is not the
// sender.
func (c *Calls) Candidate(ctx context.Context, userID, chatID string, candidate domain.SignalPayload) error {
	c.mu.Lock()
	session, ok := c.sessions[chatID]
	if !ok {
		c.mu.Unlock()
		return errors.ErrNoActiveCall
	}
	otherID := session.OtherParty(userID)
	c.mu.Unlock()

	if otherID == "" {
		return errors.ErrNotCallParticipant
	}
	if other, ok := c.registry.Lookup(otherID); ok {
		c.relay(ctx, other, event.CallCandidate{ChatID: chatID, Candidate: candidate})
	}
	return nil
}

// End removes the session and notifies the other participant. Ending a chat
// with no session is a best-effort no-op: hangup races teardown all the
// time and neither side should see an error for it.
func (c *Calls) End(ctx context.Context, userID, chatID string) error {
	session, ok := c.takeSession(chatID, userID)
	if !ok {
		return nil
	}

	if other, online := c.registry.Lookup(session.OtherParty(userID)); online {
		c.relay(ctx, other, event.CallEnded{ChatID: chatID})
	}
	if c.monitor != nil {
		c.monitor.CallCompleted()
	}
	return nil
}

// Reject removes the session and routes the rejection signal specifically
// to the caller.
func (c *Calls) Reject(ctx context.Context, userID, chatID string) error {
	session, ok := c.takeSession(chatID, userID)
	if !ok {
		return errors.ErrNoActiveCall
	}

	if caller, online := c.registry.Lookup(session.CallerID); online {
		c.relay(ctx, caller, event.CallRejected{ChatID: chatID})
	}
	if c.monitor != nil {
		c.monitor.CallCompleted()
	}
	return nil
}

// Session exposes a copy of the chat's session, for tests and telemetry.
func (c *Calls) Session(chatID string) (domain.CallSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.sessions[chatID]
	if !ok {
		return domain.CallSession{}, false
	}
	return session.CallSession, true
}

// takeSession removes and returns the chat's session when userID is one of
// its participants, stopping the ring timer.
func (c *Calls) takeSession(chatID, userID string) (domain.CallSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.sessions[chatID]
	if !ok || !session.HasParticipant(userID) {
		return domain.CallSession{}, false
	}
	session.stopRingTimer()
	delete(c.sessions, chatID)
	return session.CallSession, true
}

// expireRinging fires when nobody answered within the ring timeout. The
// session may have been answered or removed between the timer firing and
// the lock acquisition, so its state is re-checked.
func (c *Calls) expireRinging(chatID string) {
	c.mu.Lock()
	session, ok := c.sessions[chatID]
	if !ok || session.State != domain.CallRinging {
		c.mu.Unlock()
		return
	}
	delete(c.sessions, chatID)
	c.mu.Unlock()

	c.log.Info("call expired unanswered", "chat_id", chatID,
		"caller_id", session.CallerID, "receiver_id", session.ReceiverID)

	ctx := context.Background()
	for _, userID := range []string{session.CallerID, session.ReceiverID} {
		if active, online := c.registry.Lookup(userID); online {
			c.relay(ctx, active, event.CallEnded{ChatID: chatID})
		}
	}
	if c.monitor != nil {
		c.monitor.CallCompleted()
	}
}

// relay pushes a signaling event to one participant, best-effort.
func (c *Calls) relay(ctx context.Context, target contract.ActiveConnection, e event.DomainEvent) {
	if err := target.Sink.Consume(ctx, e); err != nil {
		c.log.Warn("signaling event dropped",
			"event", e.EventName(), "user_id", target.Conn.UserID)
	}
}

func (s *callSession) stopRingTimer() {
	if s.ringTimer != nil {
		s.ringTimer.Stop()
	}
}
