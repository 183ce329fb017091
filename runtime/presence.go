package runtime

import (
	"context"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain/event"
)

// Presence records online/offline transitions in the Store and announces
// them to every room the user belongs to. There is no debouncing: rapid
// reconnects produce repeated online/offline announcements.
type Presence struct {
	log   *slog.Logger
	store contract.IStore
	rooms contract.IRoomManager
}

func NewPresence(log *slog.Logger, store contract.IStore, rooms contract.IRoomManager) *Presence {
	return &Presence{log: log, store: store, rooms: rooms}
}

// HandleOnline marks the user online and announces it to the given rooms
// (the chats joined at connect time). A Store failure only loses the
// last-seen record, the announcement still goes out.
func (p *Presence) HandleOnline(ctx context.Context, userID string, chatIDs []string) {
	if err := p.store.SetUserOnline(ctx, userID, true); err != nil {
		p.log.Warn("presence write failed", "user_id", userID, "error", err)
	}
	for _, chatID := range chatIDs {
		p.rooms.Publish(ctx, chatID, event.PresenceOnline{UserID: userID}, userID)
	}
}

// HandleOffline marks the user offline and announces it to the rooms the
// user was subscribed to. The caller must invoke this only for the
// connection that still owns the registry mapping, so a stale disconnect of
// a reconnected user never broadcasts a spurious offline.
func (p *Presence) HandleOffline(ctx context.Context, userID string) {
	if err := p.store.SetUserOnline(ctx, userID, false); err != nil {
		p.log.Warn("presence write failed", "user_id", userID, "error", err)
	}
	for _, chatID := range p.rooms.RoomsOf(userID) {
		p.rooms.Publish(ctx, chatID, event.PresenceOffline{UserID: userID}, userID)
	}
}
