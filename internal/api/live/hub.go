package live

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Subscriber is what the broadcast loop sees of a connected client.
type Subscriber interface {
	OwnerID() string
	// Offer queues payload without blocking. It reports false when the
	// client is closed or its buffer is full.
	Offer(payload []byte) bool
}

type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	LogMessageBytes int64
	SendBuffer      int
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		LogMessageBytes: 1024,
		SendBuffer:      16,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// admission is by session cookie, not origin
			return true
		},
	}
}

// Hub is the registry of open live-update connections.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	upgrader websocket.Upgrader
	config   Config
}

func NewHub(config Config) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
	}
}

// Accept upgrades the request, registers the client for userID and starts
// its pumps.
func (h *Hub) Accept(w http.ResponseWriter, r *http.Request, userID string) (*Client, error) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &Client{
		ID:          uuid.NewString(),
		UserID:      userID,
		ConnectedAt: time.Now(),
		conn:        conn,
		hub:         h,
		send:        make(chan []byte, h.config.SendBuffer),
		done:        make(chan struct{}),
	}
	h.register(c)

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.ID).
		Str("user_id", userID).
		Msg("live connection established")
	return c, nil
}

// Reject completes the handshake and closes at once with 1008, so browser
// clients see a close code instead of a failed upgrade.
func (h *Hub) Reject(w http.ResponseWriter, r *http.Request, reason string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("rejected live connection failed to upgrade")
		return
	}
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.config.WriteTimeout)); err != nil {
		log.Debug().Err(err).Msg("failed to send policy close")
	}
	conn.Close()
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	log.Debug().Str("connection_id", c.ID).Int("total_connections", len(h.clients)).Msg("connection registered")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		log.Info().
			Str("connection_id", c.ID).
			Str("user_id", c.UserID).
			Dur("connected_for", time.Since(c.ConnectedAt)).
			Msg("live connection closed")
	}
}

// Subscribers returns a copy of the registry; callers iterate it without
// holding the lock.
func (h *Hub) Subscribers() []Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Subscriber, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll sends a going-away close to every client. Used at shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}
