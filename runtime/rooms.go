package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/errors"
)

type memberSet map[string]struct{}

// RoomManager maps each chat to the set of users subscribed to its events.
// Membership changes made elsewhere are not pushed into this topology; every
// join re-validates against the Store, and the dispatcher re-checks
// membership per send instead of trusting cached room state.
//
// Fan-out goes through Publish so the in-memory map can be replaced by a
// distributed pub/sub without touching the dispatcher or the call
// coordinator.
type RoomManager struct {
	mu       sync.RWMutex
	log      *slog.Logger
	store    contract.IStore
	registry contract.IConnectionRegistry
	rooms    map[string]memberSet
	byUser   map[string]memberSet // reverse index: user -> chat ids
}

func NewRoomManager(log *slog.Logger, store contract.IStore, registry contract.IConnectionRegistry) *RoomManager {
	return &RoomManager{
		log:      log,
		store:    store,
		registry: registry,
		rooms:    make(map[string]memberSet),
		byUser:   make(map[string]memberSet),
	}
}

// JoinInitial loads the user's active chat memberships from the Store and
// subscribes the user to one room per chat. Returns the chat ids joined.
func (rm *RoomManager) JoinInitial(ctx context.Context, userID string) ([]string, error) {
	chatIDs, err := rm.store.ListActiveChatsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading chats for %s: %w", userID, err)
	}

	rm.mu.Lock()
	for _, chatID := range chatIDs {
		rm.subscribe(userID, chatID)
	}
	rm.mu.Unlock()
	return chatIDs, nil
}

// JoinChat subscribes the user to one chat's room after re-validating the
// membership against the Store. This defends against chats created after
// the initial connect.
func (rm *RoomManager) JoinChat(ctx context.Context, userID, chatID string) error {
	active, err := rm.store.FindActiveMembership(ctx, chatID, userID)
	if err != nil {
		return fmt.Errorf("checking membership of %s in %s: %w", userID, chatID, err)
	}
	if !active {
		return errors.ErrNotChatMember
	}

	rm.mu.Lock()
	rm.subscribe(userID, chatID)
	rm.mu.Unlock()
	return nil
}

// Leave drops the user from every room. Called on disconnect; empty rooms
// are removed so the maps don't leak over time.
func (rm *RoomManager) Leave(userID string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for chatID := range rm.byUser[userID] {
		members := rm.rooms[chatID]
		delete(members, userID)
		if len(members) == 0 {
			delete(rm.rooms, chatID)
		}
	}
	delete(rm.byUser, userID)
}

// RoomsOf returns the chat ids the user is currently subscribed to.
func (rm *RoomManager) RoomsOf(userID string) []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	chats := make([]string, 0, len(rm.byUser[userID]))
	for chatID := range rm.byUser[userID] {
		chats = append(chats, chatID)
	}
	return chats
}

// Publish delivers the event to every subscriber of the room except
// exceptUserID, resolving each subscriber through the registry so a push
// always reaches the user's newest connection. Delivery is best-effort; a
// failing sink is logged and skipped, it never breaks the fan-out.
func (rm *RoomManager) Publish(ctx context.Context, chatID string, e event.DomainEvent, exceptUserID string) {
	rm.mu.RLock()
	members := make([]string, 0, len(rm.rooms[chatID]))
	for userID := range rm.rooms[chatID] {
		if userID == exceptUserID {
			continue
		}
		members = append(members, userID)
	}
	rm.mu.RUnlock()

	for _, userID := range members {
		active, ok := rm.registry.Lookup(userID)
		if !ok {
			continue
		}
		if err := active.Sink.Consume(ctx, e); err != nil {
			rm.log.Warn("dropping event for slow subscriber",
				"event", e.EventName(), "chat_id", chatID, "user_id", userID, "error", err)
		}
	}
}

// RoomCount returns the number of live rooms, for telemetry.
func (rm *RoomManager) RoomCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}

// subscribe must be called with mu held.
func (rm *RoomManager) subscribe(userID, chatID string) {
	if _, ok := rm.rooms[chatID]; !ok {
		rm.rooms[chatID] = make(memberSet)
	}
	rm.rooms[chatID][userID] = struct{}{}

	if _, ok := rm.byUser[userID]; !ok {
		rm.byUser[userID] = make(memberSet)
	}
	rm.byUser[userID][chatID] = struct{}{}
}
