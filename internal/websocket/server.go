package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yegors/aeromission/pkg/logger"
)

// Solve progress message types
const (
	MessageTypeSolveStarted   = "solve_started"
	MessageTypeSegmentSolved  = "segment_solved"
	MessageTypeSolveCompleted = "solve_completed"
	MessageTypeSolveFailed    = "solve_failed"

	MessageTypeSubscribe = "subscribe" // Client limits delivery to one session
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// Message represents a WebSocket message
type Message struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	Time      time.Time      `json:"time"`
	Data      map[string]any `json:"data,omitempty"`
}

// Client represents a WebSocket client
type Client struct {
	conn   *websocket.Conn
	send   chan *Message
	server *Server

	mu      sync.Mutex
	closed  bool
	session string // empty receives every session
}

// Server is the progress hub: every solve event is fanned out to the
// connected clients whose subscription matches.
type Server struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       chan struct{}
	upgrader   websocket.Upgrader
	logger     *logger.Logger
	mu         sync.RWMutex
}

// NewServer creates a new WebSocket server
func NewServer(log *logger.Logger) *Server {
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, sendBuffer),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		logger: log.Named("web-socket"),
	}
}

// Run dispatches registrations and broadcasts until ctx is cancelled
func (s *Server) Run(ctx context.Context) {
	s.logger.Info("Starting WebSocket server")
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			for client := range s.clients {
				s.dropLocked(client)
			}
			s.mu.Unlock()
			s.logger.Info("WebSocket server stopped")
			return

		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client registered", logger.Int("client_count", clientCount))

		case client := <-s.unregister:
			s.mu.Lock()
			s.dropLocked(client)
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client unregistered", logger.Int("client_count", clientCount))

		case message := <-s.broadcast:
			s.mu.Lock()
			for client := range s.clients {
				if !client.wants(message) {
					continue
				}
				select {
				case client.send <- message:
				default:
					// Slow consumer, drop it rather than stall the solver
					s.logger.Warn("Dropping slow WebSocket client")
					s.dropLocked(client)
				}
			}
			s.mu.Unlock()
		}
	}
}

// dropLocked removes a client; s.mu must be held
func (s *Server) dropLocked(client *Client) {
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	client.mu.Lock()
	if !client.closed {
		client.closed = true
		close(client.send)
	}
	client.mu.Unlock()
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// HandleConnection handles a WebSocket connection
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	// Upgrade HTTP connection to WebSocket
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	client := &Client{
		conn:    conn,
		send:    make(chan *Message, sendBuffer),
		server:  s,
		session: r.URL.Query().Get("session"),
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	s.logger.Debug("WebSocket client connected",
		logger.String("remote_addr", r.RemoteAddr),
		logger.String("session", client.session))

	go client.readPump()
	go client.writePump()
}

// Broadcast queues a message for delivery. It never blocks the caller: when
// the hub is stopped or its queue is full the message is dropped.
func (s *Server) Broadcast(message *Message) {
	if message.Time.IsZero() {
		message.Time = time.Now().UTC()
	}
	select {
	case <-s.done:
	case s.broadcast <- message:
	default:
		s.logger.Warn("WebSocket broadcast queue full, dropping message",
			logger.String("message_type", message.Type))
	}
}

// Publish broadcasts a solve event
func (s *Server) Publish(messageType, sessionID, runID string, data map[string]any) {
	s.Broadcast(&Message{Type: messageType, SessionID: sessionID, RunID: runID, Data: data})
}

func (c *Client) wants(m *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session == "" || m.SessionID == "" || c.session == m.SessionID
}

// readPump handles subscription changes and keeps the read deadline fresh
func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Error("WebSocket read error", logger.Error(err))
			}
			return
		}

		var message struct {
			Type string         `json:"type"`
			Data map[string]any `json:"data"`
		}
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			c.server.logger.Warn("Failed to parse WebSocket message", logger.Error(err))
			continue
		}

		switch message.Type {
		case MessageTypeSubscribe:
			session, _ := message.Data["session_id"].(string)
			c.mu.Lock()
			c.session = session
			c.mu.Unlock()
			c.server.logger.Debug("Client subscription changed", logger.String("session", session))
		default:
			c.server.logger.Debug("Ignoring WebSocket message", logger.String("type", message.Type))
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
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
				// Channel closed
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.server.logger.Debug("WebSocket write failed", logger.Error(err))
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
