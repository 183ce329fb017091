package domain

import "encoding/json"

// SendMessageCommand is the inbound intent to post a message to a chat.
// Validation beyond the struct tags (content/media/encrypted presence) is
// the dispatcher's job.
type SendMessageCommand struct {
	ChatID           string `json:"chatId" validate:"required"`
	Content          string `json:"content,omitempty"`
	MediaRef         string `json:"mediaRef,omitempty"`
	MessageType      string `json:"messageType,omitempty"`
	ReplyToID        string `json:"replyToId,omitempty"`
	IsEncrypted      bool   `json:"isEncrypted,omitempty"`
	EncryptedContent string `json:"encryptedContent,omitempty"`
	EncryptedKey     string `json:"encryptedKey,omitempty"`
	IV               string `json:"iv,omitempty"`
}

// HasBody reports whether the command carries anything worth persisting.
func (c SendMessageCommand) HasBody() bool {
	return c.Content != "" || c.MediaRef != "" || (c.IsEncrypted && c.EncryptedContent != "")
}

// SignalPayload is an opaque WebRTC blob (offer, answer or ICE candidate).
// The relay forwards it verbatim and never interprets it.
type SignalPayload = json.RawMessage
