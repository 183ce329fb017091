package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/observability"
)

// Dispatcher validates, persists and fans out chat messages, and advances
// per-recipient delivery status. Failures are reported to the originating
// connection only; nothing here writes into another participant's stream.
type Dispatcher struct {
	log         *slog.Logger
	store       contract.IStore
	registry    contract.IConnectionRegistry
	broadcaster contract.IBroadcaster
	moderator   *moderation.Moderator
	monitor     *observability.Monitor
	validate    *validator.Validate
}

// NewDispatcher builds a dispatcher. moderator may be nil to disable the
// content moderation pass; monitor may be nil in tests.
func NewDispatcher(log *slog.Logger, store contract.IStore, registry contract.IConnectionRegistry,
	broadcaster contract.IBroadcaster, moderator *moderation.Moderator,
	monitor *observability.Monitor) *Dispatcher {
	return &Dispatcher{
		log:         log,
		store:       store,
		registry:    registry,
		broadcaster: broadcaster,
		moderator:   moderator,
		monitor:     monitor,
		validate:    validator.New(),
	}
}

// SendMessage runs the full send path: validate the payload, verify active
// membership, persist message + delivery rows + chat activity atomically,
// then broadcast to the chat's room and re-emit to the sender directly.
//
// The room fan-out excludes the sender and the sender is targeted
// explicitly instead: a sender whose room subscription lags behind a
// freshly created chat still sees its own message exactly once.
//
// Delivery tracking is asynchronous: this method never waits for any
// recipient acknowledgement.
func (d *Dispatcher) SendMessage(ctx context.Context, senderID string, cmd domain.SendMessageCommand) error {
	if err := d.validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrMissingChatID, err)
	}
	if !cmd.HasBody() {
		return errors.ErrEmptyMessage
	}

	active, err := d.store.FindActiveMembership(ctx, cmd.ChatID, senderID)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	if !active {
		return errors.ErrNotChatMember
	}

	content := cmd.Content
	if d.moderator != nil && content != "" && !cmd.IsEncrypted {
		censored, matched := d.moderator.Censor(content)
		if len(matched) > 0 {
			d.log.Info("censored message content",
				"chat_id", cmd.ChatID,
				"sender_id", senderID,
				"words", len(matched),
				"lang", moderation.DetectLanguage(content))
			content = censored
		}
	}

	members, err := d.store.ListActiveMembers(ctx, cmd.ChatID)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	recipients := lo.Filter(members, func(userID string, _ int) bool {
		return userID != senderID
	})

	msg := domain.Message{
		ID:               uuid.New(),
		ChatID:           cmd.ChatID,
		SenderID:         senderID,
		Content:          content,
		MediaRef:         cmd.MediaRef,
		MessageType:      cmd.MessageType,
		ReplyToID:        cmd.ReplyToID,
		IsEncrypted:      cmd.IsEncrypted,
		EncryptedContent: cmd.EncryptedContent,
		EncryptedKey:     cmd.EncryptedKey,
		IV:               cmd.IV,
		CreatedAt:        time.Now().UTC(),
	}

	stored, err := d.store.CreateMessageWithDeliveries(ctx, msg, recipients)
	if err != nil {
		d.log.Error("message persistence failed",
			"chat_id", cmd.ChatID, "sender_id", senderID, "error", err)
		return errors.ErrPersistence
	}

	evt := toMessageReceived(stored)
	d.broadcaster.Publish(ctx, stored.ChatID, evt, senderID)
	if sender, ok := d.registry.Lookup(senderID); ok {
		if err := sender.Sink.Consume(ctx, evt); err != nil {
			d.log.Warn("sender echo dropped", "chat_id", stored.ChatID, "sender_id", senderID)
		}
	}

	if d.monitor != nil {
		d.monitor.MessageDispatched()
	}
	return nil
}

// MarkDelivered transitions the caller's delivery row sent -> delivered.
func (d *Dispatcher) MarkDelivered(ctx context.Context, userID, messageID string) error {
	return d.advanceDelivery(ctx, userID, messageID, domain.StatusDelivered)
}

// MarkRead transitions the caller's delivery row sent|delivered -> read.
func (d *Dispatcher) MarkRead(ctx context.Context, userID, messageID string) error {
	return d.advanceDelivery(ctx, userID, messageID, domain.StatusRead)
}

// advanceDelivery performs the constrained status update. When a row
// actually changed, the message's sender is resolved and - if currently
// registered - receives a delivery-status push. The push is best-effort: an
// offline sender simply misses the event, the delivery row stays the
// durable record. Unknown messages are a silent no-op.
func (d *Dispatcher) advanceDelivery(ctx context.Context, userID, messageID string, to domain.DeliveryStatus) error {
	if messageID == "" {
		return errors.ErrMissingMessageID
	}

	changed, err := d.store.UpdateDeliveryStatus(ctx, messageID, userID, to.AllowedFrom(), to)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	if changed == 0 {
		return nil
	}

	senderID, err := d.store.MessageSender(ctx, messageID)
	if err != nil {
		d.log.Warn("sender lookup failed after delivery update",
			"message_id", messageID, "error", err)
		return nil
	}

	sender, ok := d.registry.Lookup(senderID)
	if !ok {
		return nil
	}

	msgID, err := uuid.Parse(messageID)
	if err != nil {
		return nil
	}
	evt := event.DeliveryStatusChanged{MessageID: msgID, UserID: userID, Status: string(to)}
	if err := sender.Sink.Consume(ctx, evt); err != nil {
		d.log.Warn("delivery status push dropped", "message_id", messageID, "sender_id", senderID)
	}
	return nil
}

func toMessageReceived(msg domain.Message) event.MessageReceived {
	return event.MessageReceived{
		ID:               msg.ID,
		ChatID:           msg.ChatID,
		UserID:           msg.SenderID,
		Content:          msg.Content,
		MessageType:      msg.MessageType,
		MediaRef:         msg.MediaRef,
		ReplyToID:        msg.ReplyToID,
		IsEncrypted:      msg.IsEncrypted,
		EncryptedContent: msg.EncryptedContent,
		EncryptedKey:     msg.EncryptedKey,
		IV:               msg.IV,
		CreatedAt:        msg.CreatedAt,
	}
}
