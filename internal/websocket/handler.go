package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/brickly26/iMessage/internal/services"
	"github.com/brickly26/iMessage/internal/transport/httpdto"
	"github.com/brickly26/iMessage/pkg/logger"
)

// controlFrame is what clients send on the socket. The only inbound
// traffic is subscription management; messages themselves are sent over
// HTTP.
type controlFrame struct {
	Action         string `json:"action"` // "subscribe" or "unsubscribe"
	ConversationID string `json:"conversationId"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type Handler struct {
	auth    *services.AuthService
	hub     *Hub
	gateway *Gateway
	log     *logger.Logger
}

func NewHandler(auth *services.AuthService, hub *Hub, gateway *Gateway, log *logger.Logger) *Handler {
	return &Handler{auth: auth, hub: hub, gateway: gateway, log: log}
}

func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	userID, err := h.auth.ParseAccessToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, userID)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	go client.WriteLoop(ctx)

	session := h.gateway.Attach(ctx, client)
	h.log.Infof("user %s connected (%d clients)", userID, h.hub.ClientCount())

	h.readLoop(ctx, conn, client, session)

	session.Close()
	h.hub.Unregister(client)
	h.log.Infof("user %s disconnected", userID)
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, client *Client, session *Session) {
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))

		var frame controlFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			h.sendError(client, "malformed frame")
			continue
		}
		h.handleControl(ctx, frame, client, session)
	}
}

func (h *Handler) handleControl(ctx context.Context, frame controlFrame, client *Client, session *Session) {
	switch frame.Action {
	case "subscribe", "unsubscribe":
	default:
		h.sendError(client, "unknown action")
		return
	}

	conversationID, err := uuid.Parse(frame.ConversationID)
	if err != nil {
		h.sendError(client, "invalid conversation id")
		return
	}

	if frame.Action == "subscribe" {
		if err := session.SubscribeMessages(ctx, conversationID); err != nil {
			h.sendError(client, "subscription denied")
		}
		return
	}
	session.UnsubscribeMessages(conversationID)
}

func (h *Handler) sendError(client *Client, msg string) {
	frame, err := json.Marshal(errorFrame{Type: "error", Error: msg})
	if err != nil {
		return
	}
	client.SendMessage(frame)
}
