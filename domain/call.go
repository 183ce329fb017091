package domain

import "time"

// CallState is the lifecycle of a signaling session.
// Idle -> Ringing -> Active -> Ended; Ended is terminal, a new session may
// start afterwards for the same chat.
type CallState string

const (
	CallRinging CallState = "ringing"
	CallActive  CallState = "active"
)

// CallSession pairs exactly two participants for one media negotiation. It
// lives in memory only, keyed by chat, and at most one exists per chat at
// any time.
type CallSession struct {
	ChatID     string
	CallerID   string
	ReceiverID string
	State      CallState
	StartedAt  time.Time
}

// OtherParty returns the participant opposite to userID, or "" when userID
// is not part of the session.
func (s CallSession) OtherParty(userID string) string {
	switch userID {
	case s.CallerID:
		return s.ReceiverID
	case s.ReceiverID:
		return s.CallerID
	default:
		return ""
	}
}

func (s CallSession) HasParticipant(userID string) bool {
	return userID == s.CallerID || userID == s.ReceiverID
}
