package brackets

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 64
)

// MessageHandler receives a client's frames and its disconnect.
type MessageHandler interface {
	HandleMessage(c *Client, message []byte)
	HandleDisconnect(c *Client)
}

// HubMetrics is notified about connection and room lifecycle.
type HubMetrics interface {
	ConnectionOpened()
	ConnectionClosed()
	RoomOpened()
	RoomClosed()
	MessageDropped()
}

type Client struct {
	ID uuid.UUID
	// BracketID is the bracket the connection's ticket was issued for.
	BracketID int

	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	handler MessageHandler

	room     int // 0 until the client joins
	IsClosed bool
	Mu       sync.Mutex
}

func NewClient(hub *Hub, conn *websocket.Conn, bracketID int, handler MessageHandler) *Client {
	return &Client{
		ID:        uuid.New(),
		BracketID: bracketID,
		Hub:       hub,
		Conn:      conn,
		Send:      make(chan []byte, sendBufferSize),
		handler:   handler,
	}
}

type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	clients    map[*Client]bool
	rooms      map[int]map[*Client]bool
	mu         sync.RWMutex
	done       chan struct{}

	logger  *slog.Logger
	metrics HubMetrics
}

func NewHub(logger *slog.Logger, metrics HubMetrics) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		rooms:      make(map[int]map[*Client]bool),
		done:       make(chan struct{}),
		logger:     logger,
		metrics:    metrics,
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Run serves Register and Unregister until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.ConnectionOpened()
			}
			h.logger.Debug("client registered", slog.String("conn_id", client.ID.String()), slog.Int("bracket_id", client.BracketID))

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				h.leaveRoomLocked(client)
				client.close()
				if h.metrics != nil {
					h.metrics.ConnectionClosed()
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.leaveRoomLocked(client)
		client.close()
		delete(h.clients, client)
		if h.metrics != nil {
			h.metrics.ConnectionClosed()
		}
	}
}

// JoinRoom moves the client into the bracket's room.
func (h *Hub) JoinRoom(c *Client, room int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.room == room {
		return
	}
	h.leaveRoomLocked(c)
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]bool)
		if h.metrics != nil {
			h.metrics.RoomOpened()
		}
	}
	h.rooms[room][c] = true
	c.room = room
	h.logger.Debug("client joined room", slog.Int("bracket_id", room), slog.Int("clients", len(h.rooms[room])))
}

func (h *Hub) LeaveRoom(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveRoomLocked(c)
}

func (h *Hub) leaveRoomLocked(c *Client) {
	if c.room == 0 {
		return
	}
	room := c.room
	c.room = 0
	roomClients, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(roomClients, c)
	if len(roomClients) == 0 {
		delete(h.rooms, room)
		if h.metrics != nil {
			h.metrics.RoomClosed()
		}
		h.logger.Debug("room closed as it's empty", slog.Int("bracket_id", room))
	}
}

// RoomSize returns how many clients joined the room.
func (h *Hub) RoomSize(room int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// BroadcastToRoom отправляет сообщение всем клиентам в указанной комнате.
func (h *Hub) BroadcastToRoom(room int, message interface{}) {
	h.BroadcastToRoomExcept(room, nil, message)
}

// BroadcastToRoomExcept sends to every client of the room other than except.
func (h *Hub) BroadcastToRoomExcept(room int, except *Client, message interface{}) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal room message", slog.Int("bracket_id", room), slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[room] {
		if client == except {
			continue
		}
		h.deliver(client, messageBytes)
	}
}

// SendTo queues a message for a single client.
func (h *Hub) SendTo(c *Client, message interface{}) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal client message", slog.String("conn_id", c.ID.String()), slog.Any("error", err))
		return
	}
	h.deliver(c, messageBytes)
}

func (h *Hub) deliver(c *Client, messageBytes []byte) {
	if !c.trySend(messageBytes) {
		if h.metrics != nil {
			h.metrics.MessageDropped()
		}
		h.logger.Warn("client send channel full or closed, skipping", slog.String("conn_id", c.ID.String()))
	}
}

func (c *Client) trySend(message []byte) bool {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	if c.IsClosed {
		return false
	}
	select {
	case c.Send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	if !c.IsClosed {
		close(c.Send)
		c.IsClosed = true
	}
}

func (c *Client) ReadPump() {
	defer func() {
		if c.handler != nil {
			c.handler.HandleDisconnect(c)
		}
		select {
		case c.Hub.Unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("unexpected websocket close", slog.String("conn_id", c.ID.String()), slog.Any("error", err))
			}
			return
		}
		if c.handler != nil {
			c.handler.HandleMessage(c, message)
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Один JSON-документ на фрейм
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.Debug("websocket write failed", slog.String("conn_id", c.ID.String()), slog.Any("error", err))
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
