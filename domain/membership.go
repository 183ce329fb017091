package domain

import "time"

// Membership is a Store-owned row linking a user to a chat. LeftAt == nil
// means the membership is active. The relay treats memberships as mutable
// and re-checks them per operation instead of caching.
type Membership struct {
	ChatID   string     `json:"chatId"`
	UserID   string     `json:"userId"`
	JoinedAt time.Time  `json:"joinedAt"`
	LeftAt   *time.Time `json:"leftAt,omitempty"`
}

func (m Membership) Active() bool {
	return m.LeftAt == nil
}

// Presence is the Store-owned online flag with its last-seen timestamp.
type Presence struct {
	UserID     string    `json:"userId"`
	Online     bool      `json:"online"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}
