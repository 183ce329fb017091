// Package errors defines the sentinel errors of the relay core. Every
// failure belongs to exactly one category so the transport can report it to
// the originating connection without leaking into other participants'
// streams.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Validation errors. The payload itself is malformed.
var (
	ErrMissingChatID    = fmt.Errorf("chatId is required")
	ErrEmptyMessage     = fmt.Errorf("message needs content, a media reference or encrypted content")
	ErrMissingMessageID = fmt.Errorf("messageId is required")
	ErrInvalidPayload   = fmt.Errorf("invalid payload")
)

// Authorization errors. The caller is authenticated but not allowed.
var (
	ErrNotChatMember      = fmt.Errorf("not an active member of this chat")
	ErrNotCallParticipant = fmt.Errorf("not a participant of this call")
)

// Authentication errors. Raised before any state change; the transport is
// terminated without emitting an application event.
var (
	ErrMissingCredential = fmt.Errorf("missing credential")
	ErrInvalidCredential = fmt.Errorf("invalid credential")
)

// Call signaling errors.
var (
	ErrCallInProgress    = fmt.Errorf("a call is already in progress for this chat")
	ErrCallNotDirect     = fmt.Errorf("calls require a chat with exactly two active members")
	ErrCallTargetOffline = fmt.Errorf("call target is offline")
	ErrNoActiveCall      = fmt.Errorf("no active call for this chat")
)

// Infrastructure errors.
var (
	ErrPersistence = fmt.Errorf("message could not be persisted")
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no censored words have been found")
)

// IsCallError reports whether err belongs on the call-error channel rather
// than the generic error channel.
func IsCallError(err error) bool {
	for _, target := range []error{
		ErrCallInProgress,
		ErrCallNotDirect,
		ErrCallTargetOffline,
		ErrNoActiveCall,
		ErrNotCallParticipant,
	} {
		if stderrors.Is(err, target) {
			return true
		}
	}
	return false
}
