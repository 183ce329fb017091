package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/moderation"
)

type dispatcherFixture struct {
	store       *mocks.MockIStore
	registry    *Registry
	broadcaster *mocks.MockIBroadcaster
	dispatcher  *Dispatcher
}

func newDispatcherFixture(t *testing.T, moderator *moderation.Moderator) dispatcherFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIStore(ctrl)
	broadcaster := mocks.NewMockIBroadcaster(ctrl)
	registry := NewRegistry()
	return dispatcherFixture{
		store:       store,
		registry:    registry,
		broadcaster: broadcaster,
		dispatcher:  NewDispatcher(slog.Default(), store, registry, broadcaster, moderator, nil),
	}
}

func Test_Send_Message_Broadcasts_And_Echoes_Sender(t *testing.T) {
	req := require.New(t)
	f := newDispatcherFixture(t, nil)
	ctx := context.Background()

	aliceSink := connect(f.registry, "alice", "conn-a")

	f.store.EXPECT().FindActiveMembership(ctx, "chat-1", "alice").Return(true, nil)
	f.store.EXPECT().ListActiveMembers(ctx, "chat-1").
		Return([]string{"alice", "bob", "clara"}, nil)
	f.store.EXPECT().CreateMessageWithDeliveries(ctx, gomock.Any(), []string{"bob", "clara"}).
		DoAndReturn(func(_ context.Context, msg domain.Message, _ []string) (domain.Message, error) {
			req.Equal("alice", msg.SenderID)
			req.Equal("hello", msg.Content)
			req.NotEqual(uuid.Nil, msg.ID)
			return msg, nil
		})
	f.broadcaster.EXPECT().Publish(ctx, "chat-1", gomock.Any(), "alice")

	err := f.dispatcher.SendMessage(ctx, "alice", domain.SendMessageCommand{
		ChatID:  "chat-1",
		Content: "hello",
	})
	req.NoError(err)

	// The room fan-out excludes the sender; the echo is the only event on
	// the sender's own stream.
	req.Equal([]string{"message-received"}, aliceSink.Names())
	received := aliceSink.Events()[0].(event.MessageReceived)
	req.Equal("chat-1", received.ChatID)
	req.Equal("hello", received.Content)
}

func Test_Send_Message_Requires_Chat_And_Body(t *testing.T) {
	req := require.New(t)
	f := newDispatcherFixture(t, nil)
	ctx := context.Background()

	err := f.dispatcher.SendMessage(ctx, "alice", domain.SendMessageCommand{Content: "hi"})
	req.ErrorIs(err, errors.ErrMissingChatID)

	err = f.dispatcher.SendMessage(ctx, "alice", domain.SendMessageCommand{ChatID: "chat-1"})
	req.ErrorIs(err, errors.ErrEmptyMessage)
}

func Test_Send_Message_Rejects_Non_Member(t *testing.T) {
	req := require.New(t)
	f := newDispatcherFixture(t, nil)
	ctx := context.Background()

	f.store.EXPECT().FindActiveMembership(ctx, "chat-1", "mallory").Return(false, nil)

	err := f.dispatcher.SendMessage(ctx, "mallory", domain.SendMessageCommand{
		ChatID:  "chat-1",
		Content: "hi there",
	})
	req.ErrorIs(err, errors.ErrNotChatMember)
}

func Test_Send_Message_Persistence_Failure_Stays_Generic(t *testing.T) {
	req := require.New(t)
	f := newDispatcherFixture(t, nil)
	ctx := context.Background()

	f.store.EXPECT().FindActiveMembership(ctx, "chat-1", "alice").Return(true, nil)
	f.store.EXPECT().ListActiveMembers(ctx, "chat-1").Return([]string{"alice", "bob"}, nil)
	f.store.EXPECT().CreateMessageWithDeliveries(ctx, gomock.Any(), gomock.Any()).
		Return(domain.Message{}, fmt.Errorf("disk on fire at /var/lib/badger"))

	err := f.dispatcher.SendMessage(ctx, "alice", domain.SendMessageCommand{
		ChatID:  "chat-1",
		Content: "hi",
	})
	// Storage internals stay out of the client-facing error.
	req.ErrorIs(err, errors.ErrPersistence)
	req.Equal(errors.ErrPersistence.Error(), err.Error())
}

func Test_Send_Message_Censors_Plaintext_Only(t *testing.T) {
	req := require.New(t)
	moderator, err := moderation.NewModerator([]string{"moron"}, '*')
	req.NoError(err)

	f := newDispatcherFixture(t, moderator)
	ctx := context.Background()

	f.store.EXPECT().FindActiveMembership(ctx, "chat-1", "alice").Return(true, nil).Times(2)
	f.store.EXPECT().ListActiveMembers(ctx, "chat-1").Return([]string{"alice", "bob"}, nil).Times(2)

	var storedContents []string
	f.store.EXPECT().CreateMessageWithDeliveries(ctx, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg domain.Message, _ []string) (domain.Message, error) {
			storedContents = append(storedContents, msg.Content)
			return msg, nil
		}).Times(2)
	f.broadcaster.EXPECT().Publish(ctx, "chat-1", gomock.Any(), "alice").Times(2)

	err = f.dispatcher.SendMessage(ctx, "alice", domain.SendMessageCommand{
		ChatID:  "chat-1",
		Content: "you M0r0n",
	})
	req.NoError(err)

	// Encrypted payloads are opaque; moderation must not touch them.
	err = f.dispatcher.SendMessage(ctx, "alice", domain.SendMessageCommand{
		ChatID:           "chat-1",
		IsEncrypted:      true,
		EncryptedContent: "bW9yb24=",
		Content:          "",
	})
	req.NoError(err)

	req.Equal("you *****", storedContents[0])
	req.Equal("", storedContents[1])
}

func Test_Mark_Delivered_Notifies_Online_Sender(t *testing.T) {
	req := require.New(t)
	f := newDispatcherFixture(t, nil)
	ctx := context.Background()
	messageID := uuid.New()

	aliceSink := connect(f.registry, "alice", "conn-a")

	f.store.EXPECT().UpdateDeliveryStatus(ctx, messageID.String(), "bob",
		domain.StatusDelivered.AllowedFrom(), domain.StatusDelivered).Return(1, nil)
	f.store.EXPECT().MessageSender(ctx, messageID.String()).Return("alice", nil)

	err := f.dispatcher.MarkDelivered(ctx, "bob", messageID.String())
	req.NoError(err)

	req.Equal([]string{"delivery-status"}, aliceSink.Names())
	evt := aliceSink.Events()[0].(event.DeliveryStatusChanged)
	req.Equal(messageID, evt.MessageID)
	req.Equal("bob", evt.UserID)
	req.Equal("delivered", evt.Status)
}

func Test_Mark_Read_Unknown_Message_Is_Silent(t *testing.T) {
	req := require.New(t)
	f := newDispatcherFixture(t, nil)
	ctx := context.Background()

	f.store.EXPECT().UpdateDeliveryStatus(ctx, "nope", "bob",
		domain.StatusRead.AllowedFrom(), domain.StatusRead).Return(0, nil)

	// A replayed or bogus receipt is dropped without an error and without
	// any sender push.
	req.NoError(f.dispatcher.MarkRead(ctx, "bob", "nope"))
}

func Test_Mark_Delivered_Requires_Message_ID(t *testing.T) {
	req := require.New(t)
	f := newDispatcherFixture(t, nil)

	err := f.dispatcher.MarkDelivered(context.Background(), "bob", "")
	req.ErrorIs(err, errors.ErrMissingMessageID)
}

func Test_Mark_Delivered_Offline_Sender_Skips_Push(t *testing.T) {
	req := require.New(t)
	f := newDispatcherFixture(t, nil)
	ctx := context.Background()
	messageID := uuid.NewString()

	f.store.EXPECT().UpdateDeliveryStatus(ctx, messageID, "bob",
		domain.StatusDelivered.AllowedFrom(), domain.StatusDelivered).Return(1, nil)
	f.store.EXPECT().MessageSender(ctx, messageID).Return("alice", nil)

	// alice is not registered; the delivery row is still the durable record.
	req.NoError(f.dispatcher.MarkDelivered(ctx, "bob", messageID))
}
