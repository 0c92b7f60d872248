package services

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/bellapacxx/bingo-coach/utils/logger"
)

// Hub fans remarks out to the websocket clients watching a session.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[*Client]struct{}
	log     *zap.SugaredLogger
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]map[*Client]struct{}),
		log:     logger.Named(logger.Log, "ws"),
	}
}

// Join registers conn as a subscriber of sessionID and starts its pumps.
func (h *Hub) Join(sessionID uuid.UUID, conn *websocket.Conn) *Client {
	c := &Client{
		sessionID: sessionID,
		conn:      conn,
		hub:       h,
		send:      make(chan []byte, 32),
	}
	h.mu.Lock()
	set, ok := h.clients[sessionID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[sessionID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
	remarkSubscribers.Inc()

	go c.writePump()
	go c.readPump()

	h.log.Infof("[Session %s] subscriber joined (total=%d)", sessionID, h.count(sessionID))
	return c
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.sessionID]
	if ok {
		if _, present := set[c]; present {
			delete(set, c)
			remarkSubscribers.Dec()
		}
		if len(set) == 0 {
			delete(h.clients, c.sessionID)
		}
	}
	h.mu.Unlock()
	c.shutdown()
}

func (h *Hub) count(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// Publish implements RemarkSink. Slow subscribers miss messages rather than
// blocking the publisher.
func (h *Hub) Publish(sessionID uuid.UUID, msg RemarkMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Errorf("[Session %s] marshal remark: %v", sessionID, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[sessionID] {
		select {
		case c.send <- data:
		default:
			h.log.Warnf("[Session %s] subscriber buffer full, remark dropped", sessionID)
		}
	}
}

// Client is one websocket subscriber.
type Client struct {
	sessionID uuid.UUID
	conn      *websocket.Conn
	hub       *Hub
	send      chan []byte
	once      sync.Once
}

func (c *Client) shutdown() {
	c.once.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

// readPump only watches for the peer going away; subscribers send nothing we act on.
func (c *Client) readPump() {
	defer c.hub.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.log.Infof("[Session %s] subscriber disconnected normally", c.sessionID)
			} else {
				c.hub.log.Debugf("[Session %s] read error: %v", c.sessionID, err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.hub.log.Warnf("[Session %s] write error: %v", c.sessionID, err)
			return
		}
	}
}
