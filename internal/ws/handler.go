package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Julfy0228/WebMessenger/internal/events"
	"github.com/Julfy0228/WebMessenger/internal/presence"
)

// MembershipChecker answers whether a user currently belongs to a chat.
// Consulted at join time only; membership is not re-checked afterwards, so
// a kicked user keeps receiving events until they disconnect or leave.
type MembershipChecker interface {
	IsParticipant(chatID, userID uint) bool
}

// Frame is the inbound control message on a realtime connection.
type Frame struct {
	Type   string `json:"type"` // "join_chat" or "leave_chat"
	ChatID uint   `json:"chat_id"`
}

type Handler struct {
	hub        *Hub
	membership MembershipChecker
	presence   *presence.Store
	log        *zap.SugaredLogger
}

func NewHandler(hub *Hub, membership MembershipChecker, pres *presence.Store, log *zap.SugaredLogger) *Handler {
	return &Handler{hub: hub, membership: membership, presence: pres, log: log}
}

// Handle runs one websocket session. The transport layer authenticates
// before the upgrade and stores the user id in the connection locals.
func (h *Handler) Handle(conn *websocket.Conn) {
	userID, ok := conn.Locals("user_id").(uint)
	if !ok {
		_ = conn.Close()
		return
	}

	client := NewClient(uuid.New().String(), userID, conn)
	h.hub.Register(client)
	go client.writePump()

	now := time.Now().UTC()
	if err := h.presence.Connected(context.Background(), userID); err != nil {
		h.log.Warnw("presence update failed", "user_id", userID, "err", err)
	}
	h.hub.ToAll(events.UserOnline(userID, now))

	defer func() {
		h.hub.Unregister(client)
		now := time.Now().UTC()
		if err := h.presence.Disconnected(context.Background(), userID); err != nil {
			h.log.Warnw("presence update failed", "user_id", userID, "err", err)
		}
		h.hub.ToAll(events.UserOffline(userID, now))
	}()

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		switch frame.Type {
		case "join_chat":
			// Join is honored only for current participants.
			if h.membership.IsParticipant(frame.ChatID, userID) {
				h.hub.Join(frame.ChatID, client)
			}
		case "leave_chat":
			h.hub.Leave(frame.ChatID, client)
		}
	}
}
