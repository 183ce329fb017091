// Package event defines the outbound events pushed to connected clients.
// Each type maps one-to-one onto a wire event; the transport wraps it into
// a {event, data} frame using EventName.
package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is anything the relay may push to a client connection.
type DomainEvent interface {
	EventName() string
}

type MessageReceived struct {
	ID               uuid.UUID `json:"id"`
	ChatID           string    `json:"chatId"`
	UserID           string    `json:"userId"`
	Content          string    `json:"content,omitempty"`
	MessageType      string    `json:"messageType,omitempty"`
	MediaRef         string    `json:"mediaRef,omitempty"`
	ReplyToID        string    `json:"replyToId,omitempty"`
	IsEncrypted      bool      `json:"isEncrypted,omitempty"`
	EncryptedContent string    `json:"encryptedContent,omitempty"`
	EncryptedKey     string    `json:"encryptedKey,omitempty"`
	IV               string    `json:"iv,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (MessageReceived) EventName() string { return "message-received" }

type DeliveryStatusChanged struct {
	MessageID uuid.UUID `json:"messageId"`
	UserID    string    `json:"userId"`
	Status    string    `json:"status"`
}

func (DeliveryStatusChanged) EventName() string { return "delivery-status" }

type PresenceOnline struct {
	UserID string `json:"userId"`
}

func (PresenceOnline) EventName() string { return "presence-online" }

type PresenceOffline struct {
	UserID string `json:"userId"`
}

func (PresenceOffline) EventName() string { return "presence-offline" }

type CallOffer struct {
	ChatID   string          `json:"chatId"`
	Offer    json.RawMessage `json:"offer"`
	CallerID string          `json:"callerId"`
}

func (CallOffer) EventName() string { return "call-offer" }

type CallAnswer struct {
	ChatID string          `json:"chatId"`
	Answer json.RawMessage `json:"answer"`
}

func (CallAnswer) EventName() string { return "call-answer" }

type CallCandidate struct {
	ChatID    string          `json:"chatId"`
	Candidate json.RawMessage `json:"candidate"`
}

func (CallCandidate) EventName() string { return "call-ice-candidate" }

type CallEnded struct {
	ChatID string `json:"chatId"`
}

func (CallEnded) EventName() string { return "call-end" }

type CallRejected struct {
	ChatID string `json:"chatId"`
}

func (CallRejected) EventName() string { return "call-rejected" }

type CallError struct {
	Message string `json:"message"`
}

func (CallError) EventName() string { return "call-error" }

type Error struct {
	Message string `json:"message"`
}

func (Error) EventName() string { return "error" }
