package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hub is a websocket fan-out sink. Clients connect, send join/leave frames
// naming topics, and receive every notification published on those topics.
// Slow or broken clients are disconnected rather than allowed to block
// delivery to others.
type Hub struct {
	mu       sync.RWMutex
	subs     map[Topic]map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

type client struct {
	conn  *websocket.Conn
	send  chan []byte
	close sync.Once
}

// clientFrame is the inbound protocol: {"action":"join","topic":"case.<id>.events"}.
type clientFrame struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

type outFrame struct {
	Topic   string            `json:"topic"`
	Payload map[string]string `json:"payload"`
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subs: make(map[Topic]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Origin policy belongs to the fronting proxy in this deployment.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Notify implements Notifier by writing the message to every subscriber of
// the topic. A full client buffer counts as delivery failure for that client
// only; the sink itself never fails the dispatcher.
func (h *Hub) Notify(_ context.Context, topic Topic, payload map[string]string) error {
	frame, err := json.Marshal(outFrame{Topic: string(topic), Payload: payload})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subs[topic] {
		select {
		case c.send <- frame:
		default:
			h.logger.Warn("websocket subscriber too slow, skipping delivery",
				"topic", string(topic),
			)
		}
	}
	return nil
}

// ServeHTTP upgrades the connection and runs the client read/write loops.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 64)}
	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer h.drop(c)
	c.conn.SetReadLimit(4096)
	for {
		var frame clientFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			return
		}
		switch frame.Action {
		case "join":
			h.join(c, Topic(frame.Topic))
		case "leave":
			h.leave(c, Topic(frame.Topic))
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	for frame := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) join(c *client, topic Topic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[*client]struct{})
	}
	h.subs[topic][c] = struct{}{}
}

func (h *Hub) leave(c *client, topic Topic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[topic], c)
	if len(h.subs[topic]) == 0 {
		delete(h.subs, topic)
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	for topic, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, topic)
		}
	}
	h.mu.Unlock()
	c.close.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}
