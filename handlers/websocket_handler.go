package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Dosada05/shared-brackets/brackets"
	"github.com/Dosada05/shared-brackets/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Webview открывается с домена Messenger, доступ ограничивает билет
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	hub     *brackets.Hub
	tickets *middleware.TicketIssuer
	handler brackets.MessageHandler
	logger  *slog.Logger
}

func NewWebSocketHandler(hub *brackets.Hub, tickets *middleware.TicketIssuer, handler brackets.MessageHandler, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:     hub,
		tickets: tickets,
		handler: handler,
		logger:  logger,
	}
}

// ServeWs upgrades GET /ws?token=<ticket>. The ticket fixes the bracket the
// connection may join.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	bracketID, err := h.tickets.Parse(r.URL.Query().Get("token"))
	if err != nil {
		errorResponse(w, r, http.StatusUnauthorized, "invalid or missing socket token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.logger.Warn("failed to upgrade connection", slog.Int("bracket_id", bracketID), slog.Any("error", err))
		return
	}

	client := brackets.NewClient(h.hub, conn, bracketID, h.handler)
	select {
	case h.hub.Register <- client:
	case <-h.hub.Done():
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()

	h.logger.Debug("socket connected", slog.String("conn_id", client.ID.String()), slog.Int("bracket_id", bracketID))
}
