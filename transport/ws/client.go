package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
)

const (
	// pongWait bounds how long a silent peer stays connected; pingPeriod
	// must be shorter so a ping goes out before the deadline expires.
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// client drives one WebSocket connection: the read pump parses inbound
// frames and routes them to the services, the write pump drains the sink.
type client struct {
	log      *slog.Logger
	conn     *websocket.Conn
	sink     *Sink
	userID   string
	messages MessageService
	rooms    RoomService
	calls    CallService
}

func (c *client) readPump(ctx context.Context) {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("connection read failed", "user_id", c.userID, "error", err)
			}
			return
		}
		c.handleFrame(ctx, raw)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.sink.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case frame := <-c.sink.Out():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame dispatches a single inbound frame. A failure is reported to
// this connection only; a panic in a handler kills the frame, not the
// connection.
func (c *client) handleFrame(ctx context.Context, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("frame handler panicked", "user_id", c.userID, "panic", r)
			c.reportError(ctx, errors.ErrInvalidPayload)
		}
	}()

	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.reportError(ctx, errors.ErrInvalidPayload)
		return
	}

	if err := c.route(ctx, frame); err != nil {
		c.log.Info("frame rejected",
			"event", frame.Event, "user_id", c.userID, "error", err)
		c.reportError(ctx, err)
	}
}

func (c *client) route(ctx context.Context, frame Frame) error {
	switch frame.Event {
	case EventSendMessage:
		var cmd domain.SendMessageCommand
		if err := unmarshalData(frame.Data, &cmd); err != nil {
			return err
		}
		return c.messages.SendMessage(ctx, c.userID, cmd)

	case EventMarkDelivered:
		var p receiptPayload
		if err := unmarshalData(frame.Data, &p); err != nil {
			return err
		}
		return c.messages.MarkDelivered(ctx, c.userID, p.MessageID)

	case EventMarkRead:
		var p receiptPayload
		if err := unmarshalData(frame.Data, &p); err != nil {
			return err
		}
		return c.messages.MarkRead(ctx, c.userID, p.MessageID)

	case EventJoinChat:
		var p joinPayload
		if err := unmarshalData(frame.Data, &p); err != nil {
			return err
		}
		return c.rooms.JoinChat(ctx, c.userID, p.ChatID)

	case EventCallInitiate:
		var p offerPayload
		if err := unmarshalData(frame.Data, &p); err != nil {
			return err
		}
		return c.calls.Initiate(ctx, c.userID, p.ChatID, domain.SignalPayload(p.Offer))

	case EventCallAnswer:
		var p answerPayload
		if err := unmarshalData(frame.Data, &p); err != nil {
			return err
		}
		return c.calls.Answer(ctx, c.userID, p.ChatID, domain.SignalPayload(p.Answer))

	case EventCallCandidate:
		var p candidatePayload
		if err := unmarshalData(frame.Data, &p); err != nil {
			return err
		}
		return c.calls.Candidate(ctx, c.userID, p.ChatID, domain.SignalPayload(p.Candidate))

	case EventCallEnd:
		var p hangupPayload
		if err := unmarshalData(frame.Data, &p); err != nil {
			return err
		}
		return c.calls.End(ctx, c.userID, p.ChatID)

	case EventCallReject:
		var p hangupPayload
		if err := unmarshalData(frame.Data, &p); err != nil {
			return err
		}
		return c.calls.Reject(ctx, c.userID, p.ChatID)

	default:
		return fmt.Errorf("%w: unknown event %q", errors.ErrInvalidPayload, frame.Event)
	}
}

// reportError pushes the failure back on the connection's own stream,
// routed to the call-error channel when it belongs there.
func (c *client) reportError(ctx context.Context, err error) {
	var e event.DomainEvent
	if errors.IsCallError(err) {
		e = event.CallError{Message: err.Error()}
	} else {
		e = event.Error{Message: err.Error()}
	}
	if consumeErr := c.sink.Consume(ctx, e); consumeErr != nil {
		c.log.Warn("error report dropped", "user_id", c.userID, "error", consumeErr)
	}
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errors.ErrInvalidPayload
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return nil
}
