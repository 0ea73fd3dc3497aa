// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/taibuivan/foundersbase/internal/platform/apperr"
	"github.com/taibuivan/foundersbase/internal/platform/metrics"
	"github.com/taibuivan/foundersbase/internal/platform/respond"
	"github.com/taibuivan/foundersbase/internal/platform/sec"
)

// Connection timings.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameBytes  = 16 << 10
	frameTimeout   = 10 * time.Second
	ticketQueryKey = "ticket"
)

// Client is one websocket connection of an authenticated user.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	userID   string
	username string
}

// inboundFrame is what clients send over the socket.
type inboundFrame struct {
	Type    string `json:"type"`
	Ref     string `json:"ref"`
	To      string `json:"to"`
	With    string `json:"with"`
	Content string `json:"content"`
}

// TicketVerifier validates the short-lived ticket presented on upgrade.
type TicketVerifier interface {
	VerifyToken(token string) (*sec.AuthClaims, error)
}

// # WebSocket Endpoint

// WebSocketHandler upgrades ticket-authenticated requests into realtime connections.
type WebSocketHandler struct {
	chatService *Service
	hub         *Hub
	verifier    TicketVerifier
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

// NewWebSocketHandler builds the handler. A nil checkOrigin keeps gorilla's same-origin check.
func NewWebSocketHandler(service *Service, hub *Hub, verifier TicketVerifier, checkOrigin func(*http.Request) bool, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		chatService: service,
		hub:         hub,
		verifier:    verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

/*
ServeHTTP handles GET /ws?ticket=...

Browsers cannot set headers on a websocket upgrade, so the caller first
obtains a one-minute ticket from /api/v1/auth/ws-ticket.

Response:
  - 101: Switching Protocols
  - 401: UNAUTHORIZED: Missing, invalid or non-ticket token
*/
func (handler *WebSocketHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	ticket := request.URL.Query().Get(ticketQueryKey)
	if ticket == "" {
		respond.Error(writer, request, apperr.Unauthorized("Missing websocket ticket"))
		return
	}

	claims, err := handler.verifier.VerifyToken(ticket)
	if err != nil || !claims.IsTicket() {
		respond.Error(writer, request, apperr.Unauthorized("Invalid websocket ticket"))
		return
	}

	conn, err := handler.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		handler.logger.WarnContext(request.Context(), "chat_ws_upgrade_failed", slog.Any("error", err))
		return
	}

	client := &Client{
		hub:      handler.hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		userID:   claims.UserID,
		username: claims.Username(),
	}
	handler.hub.register(client)

	go client.writePump()
	client.readPump(request.Context(), handler.chatService, handler.logger)
}

// # Pumps

// readPump dispatches inbound frames until the connection fails.
func (client *Client) readPump(base context.Context, service *Service, logger *slog.Logger) {
	defer func() {
		client.hub.unregister(client)
		_ = client.conn.Close()
	}()

	client.conn.SetReadLimit(maxFrameBytes)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Info("chat_ws_closed", slog.String("user_id", client.userID), slog.Any("error", err))
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			client.reply(Event{Type: EventError, Code: apperr.CodeValidation, Error: "Malformed frame"})
			continue
		}

		frameContext, cancel := context.WithTimeout(base, frameTimeout)
		client.dispatch(frameContext, service, frame)
		cancel()
	}
}

func (client *Client) dispatch(context context.Context, service *Service, frame inboundFrame) {
	switch frame.Type {
	case EventSend:
		view, err := service.SendTo(context, client.userID, frame.To, frame.Content)
		if err != nil {
			client.replyError(frame.Ref, err)
			return
		}
		client.reply(Event{Type: EventAck, Ref: frame.Ref, Message: view, ConversationID: view.ConversationID})

	case EventRead:
		if err := service.MarkReadWith(context, client.userID, frame.With); err != nil {
			client.replyError(frame.Ref, err)
			return
		}
		client.reply(Event{Type: EventAck, Ref: frame.Ref})

	default:
		client.reply(Event{Type: EventError, Ref: frame.Ref, Code: apperr.CodeValidation, Error: "Unknown frame type"})
	}
}

func (client *Client) replyError(ref string, err error) {
	event := Event{Type: EventError, Ref: ref, Code: apperr.CodeInternal, Error: "Internal server error"}
	if appErr := apperr.As(err); appErr != nil && appErr.HTTPStatus < http.StatusInternalServerError {
		event.Code = appErr.Code
		event.Error = appErr.Message
	}
	client.reply(event)
}

// reply answers on this connection only.
func (client *Client) reply(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	client.hub.mu.RLock()
	defer client.hub.mu.RUnlock()

	// Skip when the hub has already dropped this connection.
	if _, ok := client.hub.clients[client.userID][client]; !ok {
		return
	}
	select {
	case client.send <- payload:
	default:
		metrics.PushDroppedTotal.Inc()
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (client *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
