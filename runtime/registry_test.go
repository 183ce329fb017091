package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"chat-relay/domain"
)

func Test_Register_Last_Connection_Wins(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	first := &captureSink{}
	second := &captureSink{}

	replaced := registry.Register(domain.Connection{UserID: "alice", ID: "conn-1"}, first)
	req.False(replaced)

	replaced = registry.Register(domain.Connection{UserID: "alice", ID: "conn-2"}, second)
	req.True(replaced)

	active, ok := registry.Lookup("alice")
	req.True(ok)
	req.Equal("conn-2", active.Conn.ID)
	req.Same(second, active.Sink)
	req.Equal(1, registry.Count())
}

func Test_Unregister_Ignores_Stale_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	connect(registry, "alice", "conn-1")
	connect(registry, "alice", "conn-2")

	// The disconnect of the replaced connection arrives late and must not
	// remove the newer mapping.
	req.False(registry.Unregister("alice", "conn-1"))
	_, ok := registry.Lookup("alice")
	req.True(ok)

	req.True(registry.Unregister("alice", "conn-2"))
	_, ok = registry.Lookup("alice")
	req.False(ok)
	req.Equal(0, registry.Count())
}

func Test_Unregister_Unknown_User(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	req.False(registry.Unregister("ghost", "conn-1"))
}
