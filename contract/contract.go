//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

// IStore is the durable collaborator owning memberships, messages, delivery
// rows and presence. The relay only consumes these contracts; chat/account
// CRUD lives on the other side of it.
type IStore interface {
	// FindActiveMembership reports whether userID is an active (leftAt ==
	// null) member of chatID.
	FindActiveMembership(ctx context.Context, chatID, userID string) (bool, error)
	// ListActiveChatsForUser returns the chat ids the user is an active
	// member of.
	ListActiveChatsForUser(ctx context.Context, userID string) ([]string, error)
	// ListActiveMembers returns the user ids of the active members of a chat.
	ListActiveMembers(ctx context.Context, chatID string) ([]string, error)
	// CreateMessageWithDeliveries persists the message, one delivery row
	// (status=sent) per recipient, and the chat's last-activity timestamp in
	// a single atomic unit. All three or none.
	CreateMessageWithDeliveries(ctx context.Context, msg domain.Message, recipientIDs []string) (domain.Message, error)
	// UpdateDeliveryStatus transitions the (message, user) delivery row to
	// `to` only when its current status is one of `from`. Returns the number
	// of rows actually changed (0 or 1); unknown rows count as 0.
	UpdateDeliveryStatus(ctx context.Context, messageID, userID string, from []domain.DeliveryStatus, to domain.DeliveryStatus) (int, error)
	// MessageSender resolves the sender of a message.
	MessageSender(ctx context.Context, messageID string) (string, error)
	// SetUserOnline records the presence flag with a last-seen timestamp.
	SetUserOnline(ctx context.Context, userID string, online bool) error
}

// EventSink is one client's outbound channel. Consume must not block the
// caller: a slow consumer drops events, it never stalls a handler.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IConnectionRegistry is the process-wide map of user -> live connection.
// It is the presence source of truth.
type IConnectionRegistry interface {
	// Register installs the connection, silently replacing any previous one
	// for the same user (single-active-connection policy). Returns true when
	// an older connection was displaced.
	Register(conn domain.Connection, sink EventSink) bool
	// Unregister clears the mapping only while it still belongs to
	// connectionID, so a stale disconnect never clobbers a newer
	// registration. Returns true when the mapping was removed.
	Unregister(userID, connectionID string) bool
	// Lookup returns the user's newest live connection.
	Lookup(userID string) (ActiveConnection, bool)
}

// ActiveConnection pairs a registered connection with its sink.
type ActiveConnection struct {
	Conn domain.Connection
	Sink EventSink
}

// IBroadcaster abstracts room fan-out so the in-memory implementation can be
// swapped for a distributed pub/sub without touching the dispatcher or the
// call coordinator. exceptUserID is skipped ("" skips nobody).
type IBroadcaster interface {
	Publish(ctx context.Context, chatID string, e event.DomainEvent, exceptUserID string)
}

// IRoomManager owns the chat -> subscriber topology. Membership is
// re-validated against the Store at join time, never trusted from cache.
type IRoomManager interface {
	IBroadcaster
	JoinInitial(ctx context.Context, userID string) ([]string, error)
	JoinChat(ctx context.Context, userID, chatID string) error
	Leave(userID string)
	RoomsOf(userID string) []string
}

// Worker doesn't protect itself; the supervisor does.
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Stop()
}
