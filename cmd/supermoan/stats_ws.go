package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// Stats WebSocket: hub + per-client pumps + intensity broadcaster
// ============================================================================
//
// This file implements:
//   - A Hub that tracks connected WebSocket clients
//   - Per-client write pumps so one slow client doesn't block others
//   - A broadcaster that coalesces bursty intensity events (latest-wins)
//     before fanning them out
//
// Messages are JSON text frames with an envelope: {type, ts, data}.
// The initial message on connect is "stats" with a StatsSnapshot in data;
// subsequent "intensity" messages carry the most recent classified level.
//
// Slow clients are disconnected when their send buffer fills.
// ============================================================================

// wsIntensityData is the JSON `data` payload for "intensity" messages.
type wsIntensityData struct {
	Level int `json:"level"`
}

// wsEnvelope is the wire format envelope for WS messages.
type wsEnvelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

// wsIntensityCoalesceWindow is the minimum interval between intensity
// broadcasts. Pointer motion produces hundreds of events per second;
// clients only care about the latest level, so intermediate ones are
// dropped - the same latest-wins policy the playback slot applies.
const wsIntensityCoalesceWindow = 50 * time.Millisecond

// ============================================================================
// Hub
// ============================================================================

type wsHub struct {
	logger *slog.Logger

	// Buffered broadcast channel for already-serialized JSON frames.
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient

	mu      sync.Mutex
	clients map[*wsClient]struct{}

	sendBuf int
}

func newWSHub(logger *slog.Logger) *wsHub {
	return &wsHub{
		logger:     logger,
		broadcast:  make(chan []byte, 128),
		register:   make(chan *wsClient, 16),
		unregister: make(chan *wsClient, 16),
		clients:    make(map[*wsClient]struct{}),
		sendBuf:    32,
	}
}

// run processes hub events until ctx is canceled.
// It disconnects all clients on shutdown.
func (h *wsHub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("ws hub stopping (context canceled)")
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client registered", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			// Avoid mutating the clients map while ranging over it.
			var slow []*wsClient

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

func (h *wsHub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *wsHub) removeClient(c *wsClient, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		// Closing send signals writePump to exit.
		safeCloseChan(c.send)

		h.logger.Info("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

func safeCloseChan(ch chan []byte) {
	defer func() {
		_ = recover() // ignore "close of closed channel"
	}()
	close(ch)
}

// broadcastBytes enqueues a pre-serialized JSON WS frame for broadcast.
// It never blocks; if the hub queue is full it drops the message.
func (h *wsHub) broadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// ============================================================================
// Client
// ============================================================================

type wsClient struct {
	hub *wsHub

	conn *websocket.Conn
	send chan []byte

	remoteAddr string
	logger     *slog.Logger
}

func newWSClient(hub *wsHub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *wsClient {
	return &wsClient{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, hub.sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 30 * time.Second
	wsPingPeriod = 20 * time.Second
)

// writePump writes messages from the send queue to the websocket.
// It exits on write error or when send is closed.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				// Channel closed: hub is disconnecting us.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.logger.Debug("ws writePump exiting", "remote_addr", c.remoteAddr, "error", err)
				}
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.logger.Debug("ws writePump exiting (ping)", "remote_addr", c.remoteAddr, "error", err)
				}
				return
			}
		}
	}
}

// readPump reads and discards incoming messages to detect disconnects and
// handle control frames. It exits on read error, then unregisters the client.
func (c *wsClient) readPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				c.logger.Debug("ws readPump exiting", "remote_addr", c.remoteAddr, "error", err)
			}
			if c.hub != nil {
				c.hub.unregister <- c
			}
			return
		}
	}
}

// ============================================================================
// Server wiring
// ============================================================================

// statsWSServer exposes live run statistics over a WebSocket endpoint.
type statsWSServer struct {
	logger *slog.Logger
	hub    *wsHub
	stats  *runStats

	// Latest-wins intensity mailbox feeding the broadcaster.
	notifyCh chan int
}

func newStatsWSServer(stats *runStats, logger *slog.Logger) *statsWSServer {
	return &statsWSServer{
		logger:   logger,
		hub:      newWSHub(logger),
		stats:    stats,
		notifyCh: make(chan int, 1),
	}
}

// notifyIntensity hands a freshly classified level to the broadcaster.
// Never blocks: a pending unsent level is overwritten by the newer one.
func (s *statsWSServer) notifyIntensity(level int) {
	for {
		select {
		case s.notifyCh <- level:
			return
		default:
			select {
			case <-s.notifyCh:
			default:
			}
		}
	}
}

// run serves the WebSocket endpoint until ctx is canceled.
func (s *statsWSServer) run(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleStatsWS)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go s.hub.run(ctx)
	go s.broadcastLoop(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("stats websocket listening", "port", port, "path", "/ws")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("stats ws server: %w", err)
	}
	return nil
}

// broadcastLoop drains the intensity mailbox, enforcing the coalescing
// window between broadcasts.
func (s *statsWSServer) broadcastLoop(ctx context.Context) {
	var lastSent time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case level := <-s.notifyCh:
			if wait := wsIntensityCoalesceWindow - time.Since(lastSent); wait > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
				// A newer level may have arrived while we throttled.
				select {
				case level = <-s.notifyCh:
				default:
				}
			}
			s.broadcastEnvelope("intensity", wsIntensityData{Level: level})
			lastSent = time.Now()
		}
	}
}

func (s *statsWSServer) broadcastEnvelope(typ string, data any) {
	now := time.Now()
	b, err := json.Marshal(wsEnvelope{Type: typ, Ts: &now, Data: data})
	if err != nil {
		s.logger.Error("ws marshal failed", "type", typ, "error", err)
		return
	}
	s.hub.broadcastBytes(b)
}

var wsUpgrader = websocket.Upgrader{
	// NOTE: If you need stricter origin checks, implement them at integration time.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStatsWS upgrades and registers a client, then sends an initial
// stats snapshot.
func (s *statsWSServer) handleStatsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := newWSClient(s.hub, conn, r.RemoteAddr, s.logger)

	// Register client first so broadcasts can reach it.
	s.hub.register <- client

	// Do not tie the pumps to the HTTP request context: net/http cancels it
	// when the handler returns, which would prematurely kill the pumps.
	go client.writePump()
	go client.readPump()

	// Initial snapshot goes through the client's own queue so it is ordered
	// before any following broadcast the client receives.
	now := time.Now()
	b, err := json.Marshal(wsEnvelope{Type: "stats", Ts: &now, Data: s.stats.snapshot()})
	if err != nil {
		s.logger.Error("ws marshal snapshot failed", "error", err)
		return
	}
	select {
	case client.send <- b:
	default:
	}
}
