// Package store provides the BadgerDB-backed reference implementation of
// the contract.IStore collaborator. The durable side of the chat
// application may live elsewhere entirely; the relay only depends on the
// contract, and this implementation exists so the relay runs
// self-contained and so tests exercise real transactional semantics.
//
// Key families:
//
//	member:{chat}:{user}        membership row
//	chats:{user}:{chat}         reverse index of the same row
//	msg:{chat}:{ts%019d}:{id}   message, chronologically sortable
//	msgid:{id}                  message locator (sender id + message key)
//	dlv:{message}:{user}        delivery row
//	chat:{chat}                 last-activity timestamp
//	presence:{user}             online flag + last seen
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"chat-relay/domain"
)

type Store struct {
	db  *badger.DB
	log *slog.Logger
}

func New(db *badger.DB, log *slog.Logger) *Store {
	return &Store{db: db, log: log}
}

// messageLocator resolves a message id back to its sender and its full
// message key without scanning.
type messageLocator struct {
	SenderID string `json:"senderId"`
	ChatID   string `json:"chatId"`
	Key      string `json:"key"`
}

type chatActivity struct {
	LastActivityAt time.Time `json:"lastActivityAt"`
}

func membershipKey(chatID, userID string) []byte {
	return []byte(fmt.Sprintf("member:%s:%s", chatID, userID))
}

func reverseMembershipKey(userID, chatID string) []byte {
	return []byte(fmt.Sprintf("chats:%s:%s", userID, chatID))
}

// messageKey pads the timestamp to 19 digits so lexicographic order is
// chronological order; the id disambiguates same-nanosecond messages.
func messageKey(msg domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", msg.ChatID, msg.CreatedAt.UnixNano(), msg.ID))
}

func locatorKey(messageID string) []byte {
	return []byte("msgid:" + messageID)
}

func deliveryKey(messageID, userID string) []byte {
	return []byte(fmt.Sprintf("dlv:%s:%s", messageID, userID))
}

// UpsertMembership writes a membership row under both key families. Used by
// the chat CRUD side (out of relay scope) and by fixtures.
func (s *Store) UpsertMembership(_ context.Context, m domain.Membership) error {
	value, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(membershipKey(m.ChatID, m.UserID), value); err != nil {
			return err
		}
		return txn.Set(reverseMembershipKey(m.UserID, m.ChatID), value)
	})
}

func (s *Store) FindActiveMembership(_ context.Context, chatID, userID string) (bool, error) {
	var active bool
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(membershipKey(chatID, userID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			var m domain.Membership
			if err := json.Unmarshal(value, &m); err != nil {
				return err
			}
			active = m.Active()
			return nil
		})
	})
	return active, err
}

func (s *Store) ListActiveChatsForUser(_ context.Context, userID string) ([]string, error) {
	memberships, err := s.scanMemberships([]byte("chats:" + userID + ":"))
	if err != nil {
		return nil, err
	}
	return lo.Map(memberships, func(m domain.Membership, _ int) string {
		return m.ChatID
	}), nil
}

func (s *Store) ListActiveMembers(_ context.Context, chatID string) ([]string, error) {
	memberships, err := s.scanMemberships([]byte("member:" + chatID + ":"))
	if err != nil {
		return nil, err
	}
	return lo.Map(memberships, func(m domain.Membership, _ int) string {
		return m.UserID
	}), nil
}

func (s *Store) scanMemberships(prefix []byte) ([]domain.Membership, error) {
	var memberships []domain.Membership
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var m domain.Membership
				if err := json.Unmarshal(value, &m); err != nil {
					return err
				}
				if m.Active() {
					memberships = append(memberships, m)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return memberships, err
}

// CreateMessageWithDeliveries persists the message, its locator, one
// delivery row (status=sent) per recipient and the chat's last-activity
// timestamp in one badger transaction. All or none: a message must never
// exist without its delivery rows.
func (s *Store) CreateMessageWithDeliveries(_ context.Context, msg domain.Message, recipientIDs []string) (domain.Message, error) {
	msgKey := messageKey(msg)
	msgValue, err := json.Marshal(msg)
	if err != nil {
		return domain.Message{}, err
	}
	locValue, err := json.Marshal(messageLocator{
		SenderID: msg.SenderID,
		ChatID:   msg.ChatID,
		Key:      string(msgKey),
	})
	if err != nil {
		return domain.Message{}, err
	}
	activityValue, err := json.Marshal(chatActivity{LastActivityAt: msg.CreatedAt})
	if err != nil {
		return domain.Message{}, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(msgKey, msgValue); err != nil {
			return err
		}
		if err := txn.Set(locatorKey(msg.ID.String()), locValue); err != nil {
			return err
		}
		for _, userID := range recipientIDs {
			delivery := domain.Delivery{
				MessageID: msg.ID,
				UserID:    userID,
				Status:    domain.StatusSent,
				SentAt:    msg.CreatedAt,
			}
			value, err := json.Marshal(delivery)
			if err != nil {
				return err
			}
			if err := txn.Set(deliveryKey(msg.ID.String(), userID), value); err != nil {
				return err
			}
		}
		return txn.Set([]byte("chat:"+msg.ChatID), activityValue)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// UpdateDeliveryStatus transitions the (message, user) row to `to` only
// when its current status is listed in `from`. Returns how many rows
// changed: 0 for unknown rows and for transitions the monotone chain
// forbids, 1 otherwise. Read-check-write runs inside one transaction.
func (s *Store) UpdateDeliveryStatus(_ context.Context, messageID, userID string,
	from []domain.DeliveryStatus, to domain.DeliveryStatus) (int, error) {
	changed := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		key := deliveryKey(messageID, userID)
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		var delivery domain.Delivery
		err = item.Value(func(value []byte) error {
			return json.Unmarshal(value, &delivery)
		})
		if err != nil {
			return err
		}
		if !lo.Contains(from, delivery.Status) {
			return nil
		}

		now := time.Now().UTC()
		delivery.Status = to
		switch to {
		case domain.StatusDelivered:
			delivery.DeliveredAt = &now
		case domain.StatusRead:
			delivery.ReadAt = &now
		}

		value, err := json.Marshal(delivery)
		if err != nil {
			return err
		}
		if err := txn.Set(key, value); err != nil {
			return err
		}
		changed = 1
		return nil
	})
	return changed, err
}

// Delivery returns one delivery row, for tests and the debug UI.
func (s *Store) Delivery(_ context.Context, messageID, userID string) (domain.Delivery, error) {
	var delivery domain.Delivery
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(deliveryKey(messageID, userID))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &delivery)
		})
	})
	return delivery, err
}

// Deliveries lists every delivery row of a message.
func (s *Store) Deliveries(_ context.Context, messageID string) ([]domain.Delivery, error) {
	prefix := []byte("dlv:" + messageID + ":")
	var deliveries []domain.Delivery
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var delivery domain.Delivery
				if err := json.Unmarshal(value, &delivery); err != nil {
					return err
				}
				deliveries = append(deliveries, delivery)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return deliveries, err
}

func (s *Store) MessageSender(_ context.Context, messageID string) (string, error) {
	locator, err := s.locator(messageID)
	if err != nil {
		return "", err
	}
	return locator.SenderID, nil
}

// SoftDeleteMessage flips IsDeleted on the message row. The row itself is
// immutable otherwise.
func (s *Store) SoftDeleteMessage(_ context.Context, messageID string) error {
	locator, err := s.locator(messageID)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(locator.Key))
		if err != nil {
			return err
		}
		var msg domain.Message
		err = item.Value(func(value []byte) error {
			return json.Unmarshal(value, &msg)
		})
		if err != nil {
			return err
		}
		msg.IsDeleted = true
		value, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		return txn.Set([]byte(locator.Key), value)
	})
}

func (s *Store) SetUserOnline(_ context.Context, userID string, online bool) error {
	presence := domain.Presence{
		UserID:     userID,
		Online:     online,
		LastSeenAt: time.Now().UTC(),
	}
	value, err := json.Marshal(presence)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("presence:"+userID), value)
	})
}

// UserPresence reads the presence row, for tests and the debug UI.
func (s *Store) UserPresence(_ context.Context, userID string) (domain.Presence, error) {
	var presence domain.Presence
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("presence:" + userID))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &presence)
		})
	})
	return presence, err
}

// ListMessages returns a chat's messages in chronological order, skipping
// soft-deleted rows. limit <= 0 means no limit.
func (s *Store) ListMessages(_ context.Context, chatID string, limit int) ([]domain.Message, error) {
	prefix := []byte("msg:" + chatID + ":")
	var messages []domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				var msg domain.Message
				if err := json.Unmarshal(value, &msg); err != nil {
					return err
				}
				if !msg.IsDeleted {
					messages = append(messages, msg)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return messages, err
}

func (s *Store) locator(messageID string) (messageLocator, error) {
	var locator messageLocator
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(locatorKey(messageID))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &locator)
		})
	})
	return locator, err
}

// KeyNamespace extracts the key family of a raw badger key, for the debug
// UI's grouping.
func KeyNamespace(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "raw"
}
