package runtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
)

type callsFixture struct {
	store    *mocks.MockIStore
	registry *Registry
	calls    *Calls
}

func newCallsFixture(t *testing.T, ringTimeout time.Duration) callsFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIStore(ctrl)
	registry := NewRegistry()
	return callsFixture{
		store:    store,
		registry: registry,
		calls:    NewCalls(slog.Default(), store, registry, nil, ringTimeout),
	}
}

func directChat(f callsFixture, chatID string, members ...string) {
	f.store.EXPECT().ListActiveMembers(gomock.Any(), chatID).Return(members, nil).AnyTimes()
}

func Test_Initiate_Relays_Offer_To_Callee_Only(t *testing.T) {
	req := require.New(t)
	f := newCallsFixture(t, 0)
	ctx := context.Background()
	directChat(f, "chat-1", "alice", "bob")

	aliceSink := connect(f.registry, "alice", "conn-a")
	bobSink := connect(f.registry, "bob", "conn-b")

	offer := domain.SignalPayload(`{"type":"offer","sdp":"v=0"}`)
	req.NoError(f.calls.Initiate(ctx, "alice", "chat-1", offer))

	req.Empty(aliceSink.Events())
	req.Equal([]string{"call-offer"}, bobSink.Names())
	relayed := bobSink.Events()[0].(event.CallOffer)
	req.Equal("alice", relayed.CallerID)
	req.Equal(json.RawMessage(offer), relayed.Offer)

	session, ok := f.calls.Session("chat-1")
	req.True(ok)
	req.Equal(domain.CallRinging, session.State)
	req.Equal("alice", session.CallerID)
	req.Equal("bob", session.ReceiverID)
}

func Test_Initiate_Rejects_Group_Chat_And_Strangers(t *testing.T) {
	req := require.New(t)
	f := newCallsFixture(t, 0)
	ctx := context.Background()

	directChat(f, "group", "alice", "bob", "clara")
	err := f.calls.Initiate(ctx, "alice", "group", nil)
	req.ErrorIs(err, errors.ErrCallNotDirect)

	directChat(f, "chat-1", "alice", "bob")
	err = f.calls.Initiate(ctx, "mallory", "chat-1", nil)
	req.ErrorIs(err, errors.ErrNotChatMember)
}

func Test_Initiate_Requires_Online_Callee(t *testing.T) {
	req := require.New(t)
	f := newCallsFixture(t, 0)
	directChat(f, "chat-1", "alice", "bob")

	connect(f.registry, "alice", "conn-a")

	err := f.calls.Initiate(context.Background(), "alice", "chat-1", nil)
	req.ErrorIs(err, errors.ErrCallTargetOffline)
	_, ok := f.calls.Session("chat-1")
	req.False(ok)
}

func Test_Initiate_Conflicts_With_Existing_Session(t *testing.T) {
	req := require.New(t)
	f := newCallsFixture(t, 0)
	ctx := context.Background()
	directChat(f, "chat-1", "alice", "bob")

	connect(f.registry, "alice", "conn-a")
	connect(f.registry, "bob", "conn-b")

	req.NoError(f.calls.Initiate(ctx, "alice", "chat-1", nil))
	err := f.calls.Initiate(ctx, "bob", "chat-1", nil)
	req.ErrorIs(err, errors.ErrCallInProgress)

	// The first session is untouched by the losing initiate.
	session, ok := f.calls.Session("chat-1")
	req.True(ok)
	req.Equal("alice", session.CallerID)
}

func Test_Answer_Activates_And_Relays_To_Caller(t *testing.T) {
	req := require.New(t)
	f := newCallsFixture(t, 0)
	ctx := context.Background()
	directChat(f, "chat-1", "alice", "bob")

	aliceSink := connect(f.registry, "alice", "conn-a")
	connect(f.registry, "bob", "conn-b")

	req.NoError(f.calls.Initiate(ctx, "alice", "chat-1", nil))
	req.NoError(f.calls.Answer(ctx, "bob", "chat-1", domain.SignalPayload(`{"type":"answer"}`)))

	req.Equal([]string{"call-answer"}, aliceSink.Names())
	session, ok := f.calls.Session("chat-1")
	req.True(ok)
	req.Equal(domain.CallActive, session.State)

	err := f.calls.Answer(ctx, "mallory", "chat-1", nil)
	req.ErrorIs(err, errors.ErrNotCallParticipant)
}

func Test_Candidate_Relays_To_Other_Party(t *testing.T) {
	req := require.New(t)
	f := newCallsFixture(t, 0)
	ctx := context.Background()
	directChat(f, "chat-1", "alice", "bob")

	aliceSink := connect(f.registry, "alice", "conn-a")
	bobSink := connect(f.registry, "bob", "conn-b")

	req.NoError(f.calls.Initiate(ctx, "alice", "chat-1", nil))
	req.NoError(f.calls.Candidate(ctx, "alice", "chat-1", domain.SignalPayload(`{"candidate":"a"}`)))
	req.NoError(f.calls.Candidate(ctx, "bob", "chat-1", domain.SignalPayload(`{"candidate":"b"}`)))

	req.Equal([]string{"call-ice-candidate"}, aliceSink.Names())
	req.Equal([]string{"call-offer", "call-ice-candidate"}, bobSink.Names())
}

func Test_End_Notifies_Other_And_Tolerates_No_Session(t *testing.T) {
	req := require.New(t)
	f := newCallsFixture(t, 0)
	ctx := context.Background()
	directChat(f, "chat-1", "alice", "bob")

	connect(f.registry, "alice", "conn-a")
	bobSink := connect(f.registry, "bob", "conn-b")

	// Hanging up with no session races teardown all the time; no error.
	req.NoError(f.calls.End(ctx, "alice", "chat-1"))

	req.NoError(f.calls.Initiate(ctx, "alice", "chat-1", nil))
	req.NoError(f.calls.End(ctx, "alice", "chat-1"))

	req.Equal([]string{"call-offer", "call-end"}, bobSink.Names())
	_, ok := f.calls.Session("chat-1")
	req.False(ok)

	// The session is gone, signaling for it now fails.
	err := f.calls.Answer(ctx, "bob", "chat-1", nil)
	req.ErrorIs(err, errors.ErrNoActiveCall)
}

func Test_Reject_Routes_To_Caller(t *testing.T) {
	req := require.New(t)
	f := newCallsFixture(t, 0)
	ctx := context.Background()
	directChat(f, "chat-1", "alice", "bob")

	aliceSink := connect(f.registry, "alice", "conn-a")
	connect(f.registry, "bob", "conn-b")

	err := f.calls.Reject(ctx, "bob", "chat-1")
	req.ErrorIs(err, errors.ErrNoActiveCall)

	req.NoError(f.calls.Initiate(ctx, "alice", "chat-1", nil))
	req.NoError(f.calls.Reject(ctx, "bob", "chat-1"))

	req.Equal([]string{"call-rejected"}, aliceSink.Names())
	_, ok := f.calls.Session("chat-1")
	req.False(ok)
}

func Test_Unanswered_Call_Expires(t *testing.T) {
	req := require.New(t)
	f := newCallsFixture(t, 30*time.Millisecond)
	ctx := context.Background()
	directChat(f, "chat-1", "alice", "bob")

	aliceSink := connect(f.registry, "alice", "conn-a")
	bobSink := connect(f.registry, "bob", "conn-b")

	req.NoError(f.calls.Initiate(ctx, "alice", "chat-1", nil))

	req.Eventually(func() bool {
		_, ok := f.calls.Session("chat-1")
		return !ok
	}, time.Second, 5*time.Millisecond)

	req.Equal([]string{"call-end"}, aliceSink.Names())
	req.Equal([]string{"call-offer", "call-end"}, bobSink.Names())
}

func Test_Answer_Cancels_Ring_Timeout(t *testing.T) {
	req := require.New(t)
	f := newCallsFixture(t, 30*time.Millisecond)
	ctx := context.Background()
	directChat(f, "chat-1", "alice", "bob")

	connect(f.registry, "alice", "conn-a")
	connect(f.registry, "bob", "conn-b")

	req.NoError(f.calls.Initiate(ctx, "alice", "chat-1", nil))
	req.NoError(f.calls.Answer(ctx, "bob", "chat-1", nil))

	time.Sleep(80 * time.Millisecond)

	session, ok := f.calls.Session("chat-1")
	req.True(ok)
	req.Equal(domain.CallActive, session.State)
}
