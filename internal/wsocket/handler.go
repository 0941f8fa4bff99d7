package wsocket

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	apperrors "chat_relay_go_backend/internal/errors"
	"chat_relay_go_backend/internal/models"
	"chat_relay_go_backend/internal/services"
	"chat_relay_go_backend/internal/utils/broker"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	TypeMessage       = "message"
	TypeReply         = "reply"
	TypeQuotaExceeded = "quota_exceeded"
	TypeQuotaUpdate   = "quota_update"
	TypeError         = "error"
)

// Inbound frames allowed per connection. The daily quota still applies to
// chat messages on top of this.
const (
	DefaultFrameInterval = 500 * time.Millisecond
	DefaultFrameBurst    = 5
)

type Handler struct {
	chatRelay      *services.ChatRelay
	upgrader       websocket.Upgrader
	messageBroker  *broker.Broker
	exemptLoopback bool
	frameLimit     rate.Limit
	frameBurst     int
	log            zerolog.Logger
}

type Message struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	SessionID string `json:"sessionId,omitempty"`
}

func NewHandler(chatRelay *services.ChatRelay, upgrader websocket.Upgrader, messageBroker *broker.Broker, exemptLoopback bool, log zerolog.Logger) *Handler {
	return &Handler{
		chatRelay:      chatRelay,
		upgrader:       upgrader,
		messageBroker:  messageBroker,
		exemptLoopback: exemptLoopback,
		frameLimit:     rate.Every(DefaultFrameInterval),
		frameBurst:     DefaultFrameBurst,
		log:            log,
	}
}

// frameConn is the part of *websocket.Conn the relay loop uses.
type frameConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
}

// conn serializes writes; gorilla connections allow one concurrent writer.
type conn struct {
	ws frameConn
	mu sync.Mutex
}

func (c *conn) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(msg)
}

// HandleWebSocket relays chat messages for one user session over a socket
// and pushes that user's quota updates as they happen.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	sessionID := r.URL.Query().Get("sessionId")
	if userID == "" || sessionID == "" {
		http.Error(w, "User ID and Session ID are required", http.StatusBadRequest)
		return
	}
	exempt := h.exemptLoopback && isLoopbackAddr(r.RemoteAddr)

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer ws.Close()
	c := &conn{ws: ws}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	topic := services.QuotaTopic(userID)
	quotaUpdates := h.messageBroker.Subscribe(topic)
	defer h.messageBroker.Unsubscribe(topic, quotaUpdates)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-quotaUpdates:
				if !ok {
					return
				}
				payload, err := json.Marshal(msg)
				if err != nil {
					h.log.Error().Err(err).Msg("Failed to marshal quota update")
					continue
				}
				if err := c.send(Message{Type: TypeQuotaUpdate, Content: string(payload), SessionID: sessionID}); err != nil {
					h.log.Debug().Err(err).Msg("Failed to send quota update")
					return
				}
			}
		}
	}()

	h.serve(ctx, c, userID, sessionID, exempt)
}

// serve reads frames until the socket closes or a write fails.
func (h *Handler) serve(ctx context.Context, c *conn, userID, sessionID string, exempt bool) {
	limiter := rate.NewLimiter(h.frameLimit, h.frameBurst)
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			h.log.Debug().Err(err).Str("sessionID", sessionID).Msg("WebSocket closed")
			return
		}

		var out Message
		var msg Message
		switch {
		case !limiter.Allow():
			h.log.Warn().Str("userID", userID).Str("sessionID", sessionID).Msg("WebSocket frame rate exceeded")
			out = Message{Type: TypeError, Content: "Too many messages, slow down", SessionID: sessionID}
		case json.Unmarshal(raw, &msg) != nil:
			out = Message{Type: TypeError, Content: "Invalid message format", SessionID: sessionID}
		case msg.Type == TypeMessage:
			out = h.handleChatMessage(ctx, userID, sessionID, msg.Content, exempt)
		default:
			out = Message{Type: TypeError, Content: "Unknown message type: " + msg.Type, SessionID: sessionID}
		}

		if err := c.send(out); err != nil {
			h.log.Debug().Err(err).Str("sessionID", sessionID).Msg("Failed to write frame")
			return
		}
	}
}

func (h *Handler) handleChatMessage(ctx context.Context, userID, sessionID, content string, exempt bool) Message {
	reply, err := h.chatRelay.Handle(ctx, models.ChatRequest{
		Text:      content,
		UserID:    userID,
		SessionID: sessionID,
		Exempt:    exempt,
	})
	if err != nil {
		customErr := apperrors.AsCustomError(err)
		msgType := TypeError
		if customErr.Type == apperrors.ErrorTypeQuotaExceeded {
			msgType = TypeQuotaExceeded
		}
		return Message{Type: msgType, Content: customErr.Message, SessionID: sessionID}
	}
	return Message{Type: TypeReply, Content: reply.Text, SessionID: sessionID}
}

func isLoopbackAddr(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
