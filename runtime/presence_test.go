package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"go.uber.org/mock/gomock"

	"chat-relay/mocks"
)

func Test_Handle_Online_Announces_To_Joined_Chats(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIStore(ctrl)
	rooms := mocks.NewMockIRoomManager(ctrl)
	presence := NewPresence(slog.Default(), store, rooms)
	ctx := context.Background()

	store.EXPECT().SetUserOnline(ctx, "alice", true).Return(nil)
	rooms.EXPECT().Publish(ctx, "chat-1", gomock.Any(), "alice")
	rooms.EXPECT().Publish(ctx, "chat-2", gomock.Any(), "alice")

	presence.HandleOnline(ctx, "alice", []string{"chat-1", "chat-2"})
}

func Test_Handle_Online_Announces_Despite_Store_Failure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIStore(ctrl)
	rooms := mocks.NewMockIRoomManager(ctrl)
	presence := NewPresence(slog.Default(), store, rooms)
	ctx := context.Background()

	store.EXPECT().SetUserOnline(ctx, "alice", true).Return(fmt.Errorf("badger closed"))
	rooms.EXPECT().Publish(ctx, "chat-1", gomock.Any(), "alice")

	// Losing the last-seen record must not silence the announcement.
	presence.HandleOnline(ctx, "alice", []string{"chat-1"})
}

func Test_Handle_Offline_Uses_Current_Subscriptions(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIStore(ctrl)
	rooms := mocks.NewMockIRoomManager(ctrl)
	presence := NewPresence(slog.Default(), store, rooms)
	ctx := context.Background()

	store.EXPECT().SetUserOnline(ctx, "alice", false).Return(nil)
	rooms.EXPECT().RoomsOf("alice").Return([]string{"chat-1"})
	rooms.EXPECT().Publish(ctx, "chat-1", gomock.Any(), "alice")

	presence.HandleOffline(ctx, "alice")
}
