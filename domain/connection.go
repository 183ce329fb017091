package domain

// Connection identifies one live transport attachment of a user. It is
// ephemeral: its lifetime is the transport's lifetime, and it is owned
// exclusively by the connection registry.
type Connection struct {
	UserID string
	ID     string
}
