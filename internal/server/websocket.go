package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/kode4food/swfcatalog/pkg/api"
	"github.com/kode4food/swfcatalog/pkg/log"
)

// Client streams applied catalog snapshots to one WebSocket connection
type Client struct {
	server   *Server
	conn     *websocket.Conn
	incoming chan *api.EventParams
	done     chan struct{}
	closeOne sync.Once
}

const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxMessageSize     = 512
	wsBufferSize       = 1024
	incomingBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  wsBufferSize,
	WriteBufferSize: wsBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var (
	_ api.EventSubscriber = (*Client)(nil)

	catalogTopics = []string{api.CatalogTopic}
)

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", log.Error(err))
		return
	}

	client := &Client{
		server:   s,
		conn:     conn,
		incoming: make(chan *api.EventParams, incomingBufferSize),
		done:     make(chan struct{}),
	}
	s.registerWebSocket(client)
	s.broker.Subscribe(client)

	go client.run()
}

// SupportsEventTopics returns the catalog snapshot topic
func (c *Client) SupportsEventTopics() []string {
	return catalogTopics
}

// OnEvent queues a snapshot event for delivery. Events arriving while the
// client's queue is full are dropped for this client
func (c *Client) OnEvent(_ context.Context, ev *api.EventParams) error {
	select {
	case c.incoming <- ev:
	case <-c.done:
	default:
		c.server.logger.Warn("WebSocket client lagging, event dropped",
			log.Topic(ev.Topic))
	}
	return nil
}

// Close terminates the connection
func (c *Client) Close() {
	c.closeOne.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) run() {
	defer func() {
		c.server.broker.Unsubscribe(c)
		c.server.unregisterWebSocket(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	closed := make(chan struct{})
	go c.readMessages(closed)

	for {
		select {
		case <-closed:
			return
		case <-c.done:
			return
		case ev := <-c.incoming:
			if !c.sendEvent(ev) {
				return
			}
		case <-ticker.C:
			if !c.sendPing() {
				return
			}
		}
	}
}

func (c *Client) readMessages(closed chan struct{}) {
	defer close(closed)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) sendEvent(ev *api.EventParams) bool {
	var data api.SnapshotAppliedEvent
	if err := json.Unmarshal(ev.Payload, &data); err != nil {
		c.server.logger.Error("Failed to decode snapshot event",
			log.Error(err))
		return true
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteJSON(&api.WebSocketEvent{
		Topic: ev.Topic,
		Data:  &data,
	})
	if err != nil {
		c.server.logger.Error("WebSocket write failed", log.Error(err))
		return false
	}
	return true
}

func (c *Client) sendPing() bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteMessage(websocket.PingMessage, nil)
	return err == nil
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Add(c)
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Remove(c)
}
