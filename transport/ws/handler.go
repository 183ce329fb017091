package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/observability"
)

// MessageService is the slice of the dispatcher the transport needs.
type MessageService interface {
	SendMessage(ctx context.Context, senderID string, cmd domain.SendMessageCommand) error
	MarkDelivered(ctx context.Context, userID, messageID string) error
	MarkRead(ctx context.Context, userID, messageID string) error
}

// RoomService is the slice of the room manager the transport needs.
type RoomService interface {
	JoinInitial(ctx context.Context, userID string) ([]string, error)
	JoinChat(ctx context.Context, userID, chatID string) error
	Leave(userID string)
}

// CallService is the call signaling coordinator as seen by the transport.
type CallService interface {
	Initiate(ctx context.Context, callerID, chatID string, offer domain.SignalPayload) error
	Answer(ctx context.Context, userID, chatID string, answer domain.SignalPayload) error
	Candidate(ctx context.Context, userID, chatID string, candidate domain.SignalPayload) error
	End(ctx context.Context, userID, chatID string) error
	Reject(ctx context.Context, userID, chatID string) error
}

// PresenceService announces connect and disconnect transitions.
type PresenceService interface {
	HandleOnline(ctx context.Context, userID string, chatIDs []string)
	HandleOffline(ctx context.Context, userID string)
}

// Config bounds each connection.
type Config struct {
	SendBuffer     int
	MaxMessageSize int64
}

// Handler upgrades authenticated HTTP requests to WebSocket connections and
// owns the connection lifecycle: register, join rooms, announce presence,
// pump, and tear everything down on disconnect.
type Handler struct {
	log      *slog.Logger
	gate     *auth.Gate
	registry contract.IConnectionRegistry
	rooms    RoomService
	messages MessageService
	presence PresenceService
	calls    CallService
	monitor  *observability.Monitor
	cfg      Config
	upgrader websocket.Upgrader
}

func NewHandler(log *slog.Logger, gate *auth.Gate, registry contract.IConnectionRegistry,
	rooms RoomService, messages MessageService, presence PresenceService,
	calls CallService, monitor *observability.Monitor, cfg Config) *Handler {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	return &Handler{
		log:      log,
		gate:     gate,
		registry: registry,
		rooms:    rooms,
		messages: messages,
		presence: presence,
		calls:    calls,
		monitor:  monitor,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients carry the JWT, not the Origin header, as
			// their credential.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.gate.Authenticate(r)
	if err != nil {
		if h.monitor != nil {
			h.monitor.AuthRejected()
		}
		h.log.Info("connection rejected", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	if h.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageSize)
	}

	h.serve(r.Context(), conn, userID)
}

// serve blocks until the connection dies. Teardown is guarded by the
// registry: when a newer connection for the same user has already replaced
// this one, only the socket is closed and neither presence nor room state is
// touched.
func (h *Handler) serve(ctx context.Context, conn *websocket.Conn, userID string) {
	connectionID := uuid.NewString()
	sink := NewSink(h.log, h.monitor, h.cfg.SendBuffer)

	if replaced := h.registry.Register(domain.Connection{UserID: userID, ID: connectionID}, sink); replaced {
		h.log.Info("replacing previous connection", "user_id", userID)
	}
	if h.monitor != nil {
		h.monitor.ConnectionOpened()
	}
	h.log.Info("connection established", "user_id", userID, "connection_id", connectionID)

	c := &client{
		log:      h.log,
		conn:     conn,
		sink:     sink,
		userID:   userID,
		messages: h.messages,
		rooms:    h.rooms,
		calls:    h.calls,
	}
	go c.writePump()

	chatIDs, err := h.rooms.JoinInitial(ctx, userID)
	if err != nil {
		h.log.Error("initial room join failed", "user_id", userID, "error", err)
		h.teardown(ctx, userID, connectionID, sink)
		return
	}
	h.presence.HandleOnline(ctx, userID, chatIDs)

	c.readPump(ctx)
	h.teardown(ctx, userID, connectionID, sink)
}

func (h *Handler) teardown(ctx context.Context, userID, connectionID string, sink *Sink) {
	if h.registry.Unregister(userID, connectionID) {
		h.presence.HandleOffline(ctx, userID)
		h.rooms.Leave(userID)
	}
	sink.Close()
	if h.monitor != nil {
		h.monitor.ConnectionClosed()
	}
	h.log.Info("connection closed", "user_id", userID, "connection_id", connectionID)
}
