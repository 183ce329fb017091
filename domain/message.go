// Package domain contains core concepts of the relay: messages, delivery
// tracking, memberships, presence and call sessions. No runtime, network, or
// storage logic should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is an immutable chat event. Only IsDeleted may change after
// creation (soft delete, owned by the Store).
type Message struct {
	ID               uuid.UUID `json:"id"`
	ChatID           string    `json:"chatId"`
	SenderID         string    `json:"senderId"`
	Content          string    `json:"content,omitempty"`
	MediaRef         string    `json:"mediaRef,omitempty"`
	MessageType      string    `json:"messageType,omitempty"`
	ReplyToID        string    `json:"replyToId,omitempty"`
	IsEncrypted      bool      `json:"isEncrypted,omitempty"`
	EncryptedContent string    `json:"encryptedContent,omitempty"`
	EncryptedKey     string    `json:"encryptedKey,omitempty"`
	IV               string    `json:"iv,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	IsDeleted        bool      `json:"isDeleted,omitempty"`
}

// Delivery tracks one recipient's progress for one message. A row exists per
// (message, non-sender member active at creation time) and its status never
// regresses.
type Delivery struct {
	MessageID   uuid.UUID      `json:"messageId"`
	UserID      string         `json:"userId"`
	Status      DeliveryStatus `json:"status"`
	SentAt      time.Time      `json:"sentAt"`
	DeliveredAt *time.Time     `json:"deliveredAt,omitempty"`
	ReadAt      *time.Time     `json:"readAt,omitempty"`
}
