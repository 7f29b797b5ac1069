// Package events streams job-run events to WebSocket clients.
package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"budvest_data_service/scheduler"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Constants for hub configuration
const (
	MaxWebSocketClients   = 100
	WebSocketWriteTimeout = 10 * time.Second
	WebSocketPongTimeout  = 60 * time.Second
	WebSocketPingInterval = 30 * time.Second
)

// Message is the envelope sent to clients
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Time string      `json:"time"`
}

// JobEvent is the payload of a "job_run" message
type JobEvent struct {
	RunID      string `json:"run_id"`
	Job        string `json:"job"`
	Trigger    string `json:"trigger"`
	Outcome    string `json:"outcome"`
	Persisted  int    `json:"persisted"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"`
	DurationMS int64  `json:"duration_ms"`
}

type outbound struct {
	job  string
	data []byte
}

// client is one WebSocket subscriber. An empty subscription set receives
// every job.
type client struct {
	conn       *websocket.Conn
	send       chan []byte
	mu         sync.RWMutex
	subscribed map[string]bool
}

func (c *client) wants(job string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscribed) == 0 || c.subscribed[job]
}

// Hub fans job events out to connected clients
type Hub struct {
	clients    map[*client]bool
	broadcast  chan outbound
	register   chan *client
	unregister chan *client
	done       chan struct{}
	stopOnce   sync.Once
	upgrader   websocket.Upgrader

	mu    sync.RWMutex
	count int
}

// NewHub creates a hub and starts its loop
func NewHub() *Hub {
	h := &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	go h.run()
	return h
}

// Notify implements scheduler.Notifier. Events are dropped when the hub is
// saturated.
func (h *Hub) Notify(res scheduler.RunResult) {
	ev := JobEvent{
		RunID:      res.RunID,
		Job:        res.Job,
		Trigger:    string(res.Trigger),
		Outcome:    string(res.Outcome),
		Persisted:  res.Persisted,
		StartedAt:  res.StartedAt.Format(time.RFC3339),
		DurationMS: res.Duration().Milliseconds(),
	}
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}
	data, err := json.Marshal(Message{Type: "job_run", Data: ev, Time: time.Now().Format(time.RFC3339)})
	if err != nil {
		logrus.Errorf("Error marshaling job event: %v", err)
		return
	}

	select {
	case h.broadcast <- outbound{job: res.Job, data: data}:
	case <-h.done:
	default:
		logrus.WithField("job", res.Job).Warn("Event hub saturated, dropping job event")
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Shutdown disconnects every client and stops the hub
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) setCount() {
	h.mu.Lock()
	h.count = len(h.clients)
	h.mu.Unlock()
}

// run owns the client set
func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			for c := range h.clients {
				close(c.send)
			}
			h.clients = map[*client]bool{}
			h.setCount()
			logrus.Info("Event hub shutdown complete")
			return

		case c := <-h.register:
			if len(h.clients) >= MaxWebSocketClients {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "Server at capacity"))
				c.conn.Close()
				logrus.Warnf("WebSocket client rejected: max clients reached (%d)", MaxWebSocketClients)
				continue
			}
			h.clients[c] = true
			h.setCount()
			logrus.Debugf("WebSocket client connected. Total clients: %d", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.setCount()

		case msg := <-h.broadcast:
			for c := range h.clients {
				if !c.wants(msg.job) {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					// Client buffer full, drop it
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.setCount()
		}
	}
}

// HandleWebSocket upgrades the request and subscribes the client
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.Clients() >= MaxWebSocketClients {
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Warnf("WebSocket upgrade error: %v", err)
		return
	}

	c := &client{
		conn:       conn,
		send:       make(chan []byte, 64),
		subscribed: make(map[string]bool),
	}
	for _, job := range r.URL.Query()["job"] {
		c.subscribed[job] = true
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(h)
}

// writePump writes messages to the WebSocket connection
func (c *client) writePump() {
	ticker := time.NewTicker(WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles subscribe/unsubscribe commands
func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(WebSocketPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(WebSocketPongTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Warnf("WebSocket read error: %v", err)
			}
			return
		}

		var cmd struct {
			Action string   `json:"action"`
			Jobs   []string `json:"jobs"`
		}
		if err := json.Unmarshal(message, &cmd); err != nil {
			continue
		}

		c.mu.Lock()
		switch cmd.Action {
		case "subscribe":
			for _, job := range cmd.Jobs {
				c.subscribed[job] = true
			}
		case "unsubscribe":
			for _, job := range cmd.Jobs {
				delete(c.subscribed, job)
			}
		}
		c.mu.Unlock()
	}
}
