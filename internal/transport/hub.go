package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lewisedginton/chat_relay/pkg/logger"
	"github.com/lewisedginton/chat_relay/pkg/prefixed_uuid"
)

// FrameHandler receives connection lifecycle events and inbound frames from a Hub.
type FrameHandler interface {
	OnOpen(ctx context.Context, token string) error
	OnClose(ctx context.Context, token string) error
	OnMessage(ctx context.Context, token string, data []byte)
}

// HubConfig tunes connection keepalive and limits.
type HubConfig struct {
	PingInterval time.Duration
	// PongWait is how long a connection may stay silent before it is dropped.
	// Defaults to twice PingInterval.
	PongWait       time.Duration
	WriteTimeout   time.Duration
	ReadLimitBytes int64
}

func (c HubConfig) withDefaults() HubConfig {
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 2 * c.PingInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ReadLimitBytes <= 0 {
		c.ReadLimitBytes = 64 * 1024
	}
	return c
}

type hubConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}
}

// Hub owns self-hosted WebSocket connections. Each accepted connection gets
// a fresh token; the Hub is also the Pusher that writes to those connections.
type Hub struct {
	cfg      HubConfig
	handler  FrameHandler
	logger   logger.Logger
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	conns map[string]*hubConn
	wg    sync.WaitGroup
}

// NewHub creates a Hub. SetHandler must be called before serving.
func NewHub(cfg HubConfig, log logger.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		cfg:    cfg.withDefaults(),
		logger: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[string]*hubConn),
	}
}

// SetHandler sets the FrameHandler. The relay depends on the Hub as its
// Pusher, so the two are wired after construction.
func (h *Hub) SetHandler(handler FrameHandler) {
	h.handler = handler
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// ServeHTTP upgrades the request and runs the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.handler == nil {
		http.Error(w, "websocket handler not configured", http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	token := prefixed_uuid.New("conn").String()
	log := h.logger.WithFields(logger.ConnectionTokenField(token))

	if err := h.handler.OnOpen(h.ctx, token); err != nil {
		log.Error("connection open failed", logger.ErrorField(err))
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "Failed to connect"),
			time.Now().Add(h.cfg.WriteTimeout))
		_ = ws.Close()
		return
	}

	c := &hubConn{ws: ws, done: make(chan struct{})}
	h.mu.Lock()
	h.conns[token] = c
	h.mu.Unlock()

	log.Info("websocket connected", logger.IntField("open_connections", h.Count()))

	go h.keepAlive(c)
	h.readLoop(token, c, log)
	h.drop(token, c)

	if err := h.handler.OnClose(h.ctx, token); err != nil {
		log.Error("connection close failed", logger.ErrorField(err))
	}
	log.Info("websocket disconnected")
}

func (h *Hub) readLoop(token string, c *hubConn, log logger.Logger) {
	pongWait := h.cfg.PongWait

	c.ws.SetReadLimit(h.cfg.ReadLimitBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Warn("websocket read error", logger.ErrorField(err))
			}
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		// Frames are handled concurrently so long completions do not stall pong processing.
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.handleFrame(token, data, log)
		}()
	}
}

// handleFrame runs OnMessage for one frame. A panic is logged and the
// connection stays open.
func (h *Hub) handleFrame(token string, data []byte, log logger.Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("websocket frame panic recovered",
				logger.StringField("panic", fmt.Sprint(rec)),
				logger.StringField("stack_trace", string(debug.Stack())))
		}
	}()
	h.handler.OnMessage(h.ctx, token, data)
}

func (h *Hub) keepAlive(c *hubConn) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				_ = c.ws.Close()
				return
			}
		}
	}
}

// drop removes the connection if it is still registered under token.
func (h *Hub) drop(token string, c *hubConn) {
	h.mu.Lock()
	if cur, ok := h.conns[token]; ok && cur == c {
		delete(h.conns, token)
		close(c.done)
	}
	h.mu.Unlock()
	_ = c.ws.Close()
}

// Push writes payload as a JSON text frame to the connection for token.
func (h *Hub) Push(_ context.Context, token string, payload any) error {
	h.mu.RLock()
	c, ok := h.conns[token]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("push to %s: %w", token, ErrGone)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	if err := c.ws.WriteJSON(payload); err != nil {
		var typeErr *json.UnsupportedTypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("push to %s: %w", token, err)
		}
		// A failed write leaves the connection unusable.
		_ = c.ws.Close()
		return fmt.Errorf("push to %s: %w: %v", token, ErrGone, err)
	}
	return nil
}

// Close disconnects every client and waits for in-flight frames to finish.
func (h *Hub) Close() error {
	h.mu.Lock()
	conns := make([]*hubConn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(h.cfg.WriteTimeout))
		c.writeMu.Unlock()
		_ = c.ws.Close()
	}

	h.wg.Wait()
	h.cancel()
	return nil
}
