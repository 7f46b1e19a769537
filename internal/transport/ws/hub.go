package ws

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"versecast/internal/domain/narration"
	"versecast/internal/domain/playback"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSlot = 32
)

// Frame is one message pushed to websocket subscribers.
type Frame struct {
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload"`
}

// Hub fans narration events and playback snapshots out to websocket
// subscribers. Slow clients are disconnected rather than buffered
// without bound.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client
	closed  bool
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan Frame
	once sync.Once
}

// NewHub builds a hub and subscribes it to the narration event bus.
func NewHub(bus *narration.Bus, logger *slog.Logger) (*Hub, error) {
	h := &Hub{
		logger:  logger,
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	subscriptions := []struct {
		topic string
		fn    interface{}
	}{
		{narration.TopicVerseStarted, func(ev narration.VerseEvent) { h.Broadcast(narration.TopicVerseStarted, ev) }},
		{narration.TopicVerseCompleted, func(ev narration.VerseEvent) { h.Broadcast(narration.TopicVerseCompleted, ev) }},
		{narration.TopicChapterCompleted, func(ev narration.ChapterEvent) { h.Broadcast(narration.TopicChapterCompleted, ev) }},
		{narration.TopicNarrationError, func(ev narration.ErrorEvent) { h.Broadcast(narration.TopicNarrationError, ev) }},
		{narration.TopicPlaybackState, func(snap playback.Snapshot) { h.Broadcast(narration.TopicPlaybackState, snap) }},
	}
	for _, sub := range subscriptions {
		if err := bus.SubscribeAsync(sub.topic, sub.fn); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Register mounts the upgrade endpoint.
func (h *Hub) Register(router *gin.Engine, path string) {
	if path == "" {
		path = "/ws"
	}
	router.GET(path, h.handleUpgrade)
}

func (h *Hub) handleUpgrade(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("websocket upgrade failed", "error", err)
		}
		return
	}

	cl := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan Frame, clientSendSlot),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[cl.id] = cl
	h.mu.Unlock()

	if h.logger != nil {
		h.logger.Info("websocket client connected", "client", cl.id)
	}

	go h.writeLoop(cl)
	go h.readLoop(cl)
}

// Broadcast queues a frame for every connected client. Clients whose
// queue is full are dropped.
func (h *Hub) Broadcast(topic string, payload interface{}) {
	frame := Frame{Topic: topic, Payload: payload}

	h.mu.Lock()
	var stale []*client
	for _, cl := range h.clients {
		select {
		case cl.send <- frame:
		default:
			stale = append(stale, cl)
		}
	}
	for _, cl := range stale {
		delete(h.clients, cl.id)
	}
	h.mu.Unlock()

	for _, cl := range stale {
		h.dropClient(cl, "send queue full")
	}
}

// Count reports the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll disconnects every client; used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, cl := range h.clients {
		clients = append(clients, cl)
	}
	h.clients = make(map[string]*client)
	h.closed = true
	h.mu.Unlock()

	for _, cl := range clients {
		h.dropClient(cl, "server shutdown")
	}
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	delete(h.clients, cl.id)
	h.mu.Unlock()
	h.dropClient(cl, "")
}

func (h *Hub) dropClient(cl *client, reason string) {
	cl.once.Do(func() {
		close(cl.send)
		cl.conn.Close()
		if reason != "" && h.logger != nil {
			h.logger.Info("websocket client dropped", "client", cl.id, "reason", reason)
		}
	})
}

func (h *Hub) writeLoop(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-cl.send:
			if !ok {
				cl.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteJSON(frame); err != nil {
				h.unregister(cl)
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(cl)
				return
			}
		}
	}
}

// readLoop exists to notice disconnects; inbound frames are ignored.
func (h *Hub) readLoop(cl *client) {
	cl.conn.SetReadLimit(512)
	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		cl.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			h.unregister(cl)
			return
		}
	}
}
