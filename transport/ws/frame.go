// Package ws is the WebSocket transport of the relay: one goroutine pair
// per connection, a framed JSON protocol, and a bounded outbound queue per
// client so one slow reader never stalls the fan-out.
package ws

import (
	"encoding/json"

	"chat-relay/domain/event"
)

// Frame is the wire envelope in both directions: an event name and its
// JSON payload.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound event names accepted from clients.
const (
	EventSendMessage   = "send-message"
	EventMarkDelivered = "mark-delivered"
	EventMarkRead      = "mark-read"
	EventJoinChat      = "join-chat"
	EventCallInitiate  = "call-initiate"
	EventCallAnswer    = "call-answer"
	EventCallCandidate = "call-ice-candidate"
	EventCallEnd       = "call-end"
	EventCallReject    = "call-reject"
)

// receiptPayload acknowledges one message (delivered or read).
type receiptPayload struct {
	MessageID string `json:"messageId"`
}

type joinPayload struct {
	ChatID string `json:"chatId"`
}

type offerPayload struct {
	ChatID string          `json:"chatId"`
	Offer  json.RawMessage `json:"offer"`
}

type answerPayload struct {
	ChatID string          `json:"chatId"`
	Answer json.RawMessage `json:"answer"`
}

type candidatePayload struct {
	ChatID    string          `json:"chatId"`
	Candidate json.RawMessage `json:"candidate"`
}

type hangupPayload struct {
	ChatID string `json:"chatId"`
}

// encodeEvent wraps a domain event into its outbound frame.
func encodeEvent(e event.DomainEvent) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: e.EventName(), Data: data})
}
