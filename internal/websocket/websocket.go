package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/JEECE-SI/the-glitch-kitchen/internal/logger"
	"github.com/JEECE-SI/the-glitch-kitchen/internal/models"
)

// Message types pushed to clients
const (
	TypeTimerState      = "timer_state"
	TypeCountdown       = "countdown"
	TypeAttemptRecorded = "attempt_recorded"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Origins are filtered by the CORS layer
	},
}

// TimerSource provides the current timer of a game for newly connected clients
type TimerSource interface {
	GetTimerState(ctx context.Context, gameID string) (*models.TimerView, error)
}

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	log        logger.Logger
	clients    map[*Client]bool
	broadcast  chan models.WSMessage
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	timers     TimerSource
	quit       chan struct{} // closed when the loop exits
}

// Client is a middleman between the websocket connection and the hub.
// A client with a game ID only receives that game's messages.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan models.WSMessage
	gameID string
}

// New creates a new Hub instance with injected dependencies
func New(log logger.Logger, timers TimerSource) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan models.WSMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		timers:     timers,
		quit:       make(chan struct{}),
	}
}

// Start begins the hub's main loop in a goroutine
func (h *Hub) Start() {
	go h.run()
}

// Run runs the hub loop until ctx is done
func (h *Hub) Run(ctx context.Context) error {
	h.loop(ctx.Done())
	return nil
}

func (h *Hub) run() {
	h.loop(nil)
}

// loop handles client registration/unregistration and message broadcasting
func (h *Hub) loop(done <-chan struct{}) {
	for {
		select {
		case <-done:
			close(h.quit)
			h.mutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("Client connected", "game", client.gameID, "total_clients", total)

			if client.gameID != "" && h.timers != nil {
				go h.sendInitialState(client)
			}

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("Client disconnected", "total_clients", total)

		case message := <-h.broadcast:
			h.mutex.RLock()
			for client := range h.clients {
				if !client.wants(message) {
					continue
				}
				select {
				case client.send <- message:
				default:
					// Client's send channel is full, unregister
					go func(c *Client) {
						select {
						case h.unregister <- c:
						case <-h.quit:
						}
					}(client)
				}
			}
			h.mutex.RUnlock()
		}
	}
}

func (c *Client) wants(msg models.WSMessage) bool {
	return c.gameID == "" || msg.GameID == "" || msg.GameID == c.gameID
}

// sendInitialState pushes the game's current timer to a client that just joined
func (h *Hub) sendInitialState(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	view, err := h.timers.GetTimerState(ctx, client.gameID)
	if err != nil {
		h.log.Debug("No timer state for new client", "game", client.gameID, "error", err)
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.send <- models.WSMessage{Type: TypeTimerState, GameID: client.gameID, Payload: view}:
	default:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// BroadcastMessage sends a message to the clients of gameID, or to everyone
// when gameID is empty
func (h *Hub) BroadcastMessage(gameID, msgType string, payload interface{}) {
	msg := models.WSMessage{
		Type:    msgType,
		GameID:  gameID,
		Payload: payload,
	}
	select {
	case h.broadcast <- msg:
	case <-h.quit:
	}
}

// BroadcastTimerState pushes a committed timer change
func (h *Hub) BroadcastTimerState(view models.TimerView) {
	h.BroadcastMessage(view.GameID, TypeTimerState, view)
}

// PublishCountdown implements timer.Publisher
func (h *Hub) PublishCountdown(view models.TimerView) {
	h.BroadcastMessage(view.GameID, TypeCountdown, map[string]interface{}{
		"status":            view.Status,
		"time_left_seconds": view.TimeLeftSeconds,
		"timer_active":      view.TimerActive,
		"server_time":       view.ServerTime,
	})
}

// BroadcastAttempt announces a recorded attempt to the team's game
func (h *Hub) BroadcastAttempt(gameID string, notice models.AttemptNotice) {
	h.BroadcastMessage(gameID, TypeAttemptRecorded, notice)
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("WebSocket error", "error", err)
			}
			break
		}

		// Clients only listen; anything they send is logged and dropped
		var msg models.WSMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			c.hub.log.Debug("Received message", "type", msg.Type)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			msgBytes, _ := json.Marshal(message)
			w.Write(msgBytes)

			if err := w.Close(); err != nil {
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

// ServeWs handles websocket requests from clients. The optional game query
// parameter scopes the connection to one game.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("WebSocket upgrade error", "error", err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan models.WSMessage, 256),
		gameID: r.URL.Query().Get("game"),
	}
	select {
	case h.register <- client:
	case <-h.quit:
		conn.Close()
		return
	}

	// Allow collection of memory referenced by the caller by doing all work in new goroutines
	go client.writePump()
	go client.readPump()
}
