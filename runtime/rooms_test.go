package runtime

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
)

func Test_Join_Initial_Subscribes_All_Chats(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIStore(ctrl)
	registry := NewRegistry()
	rooms := NewRoomManager(slog.Default(), store, registry)

	store.EXPECT().ListActiveChatsForUser(gomock.Any(), "alice").
		Return([]string{"chat-1", "chat-2"}, nil)

	chatIDs, err := rooms.JoinInitial(context.Background(), "alice")
	req.NoError(err)
	req.ElementsMatch([]string{"chat-1", "chat-2"}, chatIDs)
	req.ElementsMatch([]string{"chat-1", "chat-2"}, rooms.RoomsOf("alice"))
	req.Equal(2, rooms.RoomCount())
}

func Test_Join_Chat_Revalidates_Membership(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIStore(ctrl)
	rooms := NewRoomManager(slog.Default(), store, NewRegistry())

	store.EXPECT().FindActiveMembership(gomock.Any(), "chat-9", "alice").Return(false, nil)

	err := rooms.JoinChat(context.Background(), "alice", "chat-9")
	req.ErrorIs(err, errors.ErrNotChatMember)
	req.Empty(rooms.RoomsOf("alice"))
}

func Test_Publish_Skips_Sender_And_Offline_Members(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIStore(ctrl)
	registry := NewRegistry()
	rooms := NewRoomManager(slog.Default(), store, registry)

	store.EXPECT().ListActiveChatsForUser(gomock.Any(), gomock.Any()).
		Return([]string{"chat-1"}, nil).Times(3)
	for _, userID := range []string{"alice", "bob", "clara"} {
		_, err := rooms.JoinInitial(context.Background(), userID)
		req.NoError(err)
	}

	// clara is subscribed but her connection dropped.
	aliceSink := connect(registry, "alice", "conn-a")
	bobSink := connect(registry, "bob", "conn-b")

	rooms.Publish(context.Background(), "chat-1", event.PresenceOnline{UserID: "alice"}, "alice")

	req.Empty(aliceSink.Events())
	req.Equal([]string{"presence-online"}, bobSink.Names())
}

func Test_Publish_Survives_Failing_Sink(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIStore(ctrl)
	registry := NewRegistry()
	rooms := NewRoomManager(slog.Default(), store, registry)

	store.EXPECT().ListActiveChatsForUser(gomock.Any(), gomock.Any()).
		Return([]string{"chat-1"}, nil).Times(2)
	for _, userID := range []string{"bob", "clara"} {
		_, err := rooms.JoinInitial(context.Background(), userID)
		req.NoError(err)
	}

	bobSink := connect(registry, "bob", "conn-b")
	bobSink.fail = true
	claraSink := connect(registry, "clara", "conn-c")

	rooms.Publish(context.Background(), "chat-1", event.PresenceOnline{UserID: "alice"}, "alice")

	req.Equal([]string{"presence-online"}, claraSink.Names())
}

func Test_Leave_Cleans_Empty_Rooms(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIStore(ctrl)
	rooms := NewRoomManager(slog.Default(), store, NewRegistry())

	store.EXPECT().ListActiveChatsForUser(gomock.Any(), "alice").
		Return([]string{"chat-1", "chat-2"}, nil)
	store.EXPECT().ListActiveChatsForUser(gomock.Any(), "bob").
		Return([]string{"chat-1"}, nil)

	_, err := rooms.JoinInitial(context.Background(), "alice")
	req.NoError(err)
	_, err = rooms.JoinInitial(context.Background(), "bob")
	req.NoError(err)

	rooms.Leave("alice")

	req.Empty(rooms.RoomsOf("alice"))
	req.ElementsMatch([]string{"chat-1"}, rooms.RoomsOf("bob"))
	req.Equal(1, rooms.RoomCount())
}
