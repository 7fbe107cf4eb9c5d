package server

import (
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/squadops/squadops/internal/eventbus"
)

const (
	streamSendBuffer   = 64
	streamWriteTimeout = 10 * time.Second
	streamPongTimeout  = 60 * time.Second
	streamPingInterval = 30 * time.Second
)

// The stream endpoint serves local operator UIs; browser requests from
// anywhere else are rejected at upgrade time.
func isLocalOrigin(u *url.URL) bool {
	if u == nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return isLocalOrigin(u)
	},
}

// streamFilter narrows the event stream to one instance or one task.
type streamFilter struct {
	instanceID int64  // 0 matches every instance
	taskID     string // non-empty restricts to task events with this id
}

func parseStreamFilter(r *http.Request) streamFilter {
	var filter streamFilter
	if raw := r.URL.Query().Get("instance"); raw != "" {
		filter.instanceID, _ = strconv.ParseInt(raw, 10, 64)
	}
	filter.taskID = r.URL.Query().Get("task")
	return filter
}

func (f streamFilter) match(env eventbus.Envelope) bool {
	switch payload := env.Payload.(type) {
	case eventbus.InstanceLifecycleEvent:
		return f.taskID == "" && (f.instanceID == 0 || payload.InstanceID == f.instanceID)
	case eventbus.ConsoleLineEvent:
		return f.taskID == "" && (f.instanceID == 0 || payload.InstanceID == f.instanceID)
	case eventbus.TaskProgressEvent:
		if f.taskID != "" {
			return payload.TaskID == f.taskID
		}
		return f.instanceID == 0 || payload.InstanceID == f.instanceID
	}
	return false
}

type streamClient struct {
	conn *websocket.Conn
	send chan eventbus.Envelope
	done chan struct{}
	once sync.Once
}

func (c *streamClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// handleStream upgrades to a websocket and forwards matching bus
// envelopes as JSON until the peer goes away. A slow peer loses events
// rather than stalling the bus.
func (s *APIServer) handleStream(w http.ResponseWriter, r *http.Request) {
	filter := parseStreamFilter(r)

	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[APIServer] stream upgrade: %v", err)
		return
	}

	client := &streamClient{
		conn: conn,
		send: make(chan eventbus.Envelope, streamSendBuffer),
		done: make(chan struct{}),
	}
	defer client.close()

	topics := []eventbus.Topic{
		eventbus.TopicInstancesLifecycle,
		eventbus.TopicInstancesConsole,
		eventbus.TopicTasksProgress,
	}
	for _, topic := range topics {
		sub := s.bus.Subscribe(topic)
		defer sub.Close()
		go client.forward(sub, filter)
	}

	go client.writePump()
	client.readPump()
}

func (c *streamClient) forward(sub *eventbus.Subscription, filter streamFilter) {
	for env := range sub.C() {
		if !filter.match(env) {
			continue
		}
		select {
		case c.send <- env:
		case <-c.done:
			return
		default:
			// Peer cannot keep up; drop rather than block the bus.
		}
	}
}

func (c *streamClient) writePump() {
	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case env := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := c.conn.WriteJSON(env); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump drains control frames and returns when the peer closes.
func (c *streamClient) readPump() {
	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(streamPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(streamPongTimeout))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
