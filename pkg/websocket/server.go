// Package websocket streams engine events to subscribed clients.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/luxfi/log"

	"github.com/gmx-io/gmx-synthetics-sub004/pkg/events"
	"github.com/gmx-io/gmx-synthetics-sub004/pkg/synth"
)

// ChannelAll receives every engine event regardless of name.
const ChannelAll = "events:all"

// Server fans engine events out to WebSocket clients. It implements
// events.Emitter so it can sit directly in the engine's emitter chain.
type Server struct {
	engine *synth.Engine
	logger log.Logger

	// Client management
	clients    map[*Client]bool
	clientsMu  sync.RWMutex
	register   chan *Client
	unregister chan *Client
	broadcast  chan Message

	// Subscription management
	subscriptions map[string]map[*Client]bool // channel -> clients
	subMu         sync.RWMutex

	// Stats
	messagesOut uint64
	clientCount int32

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Client represents a WebSocket client connection
type Client struct {
	id       string
	conn     *websocket.Conn
	server   *Server
	send     chan []byte
	channels map[string]bool
	mu       sync.RWMutex
}

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Channel   string      `json:"channel,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
	Sequence  uint64      `json:"sequence,omitempty"`
}

// Config holds WebSocket server configuration
type Config struct {
	Port            int
	ReadBufferSize  int
	WriteBufferSize int
	MaxMessageSize  int64
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
	PingPeriod      time.Duration
}

// DefaultConfig returns default WebSocket configuration
func DefaultConfig() Config {
	return Config{
		Port:            8081,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		MaxMessageSize:  512 * 1024,
		WriteTimeout:    10 * time.Second,
		PongTimeout:     60 * time.Second,
		PingPeriod:      54 * time.Second, // Must be less than PongTimeout
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		// In production, implement proper CORS
		return true
	},
}

// NewServer creates a new WebSocket server
func NewServer(engine *synth.Engine, logger log.Logger, config Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		engine:        engine,
		logger:        logger,
		clients:       make(map[*Client]bool),
		register:      make(chan *Client, 100),
		unregister:    make(chan *Client, 100),
		broadcast:     make(chan Message, 1000),
		subscriptions: make(map[string]map[*Client]bool),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Emit implements events.Emitter. Each event goes to its own channel and
// the firehose channel.
func (s *Server) Emit(event *events.Event) {
	msg := Message{
		Type:      "event",
		Channel:   "events:" + event.Name,
		Data:      event,
		Timestamp: event.Time.Unix(),
		Sequence:  atomic.AddUint64(&s.messagesOut, 1),
	}
	select {
	case s.broadcast <- msg:
	default:
		s.logger.Warn("event broadcast queue full, dropping", "event", event.Name)
		return
	}
	all := msg
	all.Channel = ChannelAll
	select {
	case s.broadcast <- all:
	default:
	}
}

// Start begins the WebSocket server
func (s *Server) Start(port int) error {
	s.wg.Add(1)
	go s.runHub()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	addr := fmt.Sprintf(":%d", port)
	s.logger.Info("WebSocket server starting", "port", port)

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-s.ctx.Done()
		server.Shutdown(context.Background())
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("WebSocket server error: %w", err)
	}

	return nil
}

// Stop shuts down the WebSocket server
func (s *Server) Stop() {
	s.logger.Info("Stopping WebSocket server")
	s.cancel()
	s.wg.Wait()
}

// runHub manages client connections and message routing
func (s *Server) runHub() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.clientsMu.Lock()
			for client := range s.clients {
				close(client.send)
			}
			s.clientsMu.Unlock()
			return

		case client := <-s.register:
			s.clientsMu.Lock()
			s.clients[client] = true
			atomic.AddInt32(&s.clientCount, 1)
			s.clientsMu.Unlock()
			s.logger.Debug("Client connected", "id", client.id, "total", atomic.LoadInt32(&s.clientCount))

		case client := <-s.unregister:
			s.clientsMu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
				atomic.AddInt32(&s.clientCount, -1)
				s.unsubscribeAll(client)
			}
			s.clientsMu.Unlock()
			s.logger.Debug("Client disconnected", "id", client.id, "total", atomic.LoadInt32(&s.clientCount))

		case message := <-s.broadcast:
			s.broadcastMessage(message)

		case <-ticker.C:
			s.logger.Debug("WebSocket stats",
				"clients", atomic.LoadInt32(&s.clientCount),
				"messages", atomic.LoadUint64(&s.messagesOut))
		}
	}
}

// handleWebSocket handles WebSocket upgrade and client connection
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		id:       generateClientID(),
		conn:     conn,
		server:   s,
		send:     make(chan []byte, 256),
		channels: make(map[string]bool),
	}

	s.register <- client

	go client.writePump()
	go client.readPump()

	welcome := Message{
		Type:      "welcome",
		Data:      map[string]interface{}{"id": client.id},
		Timestamp: time.Now().Unix(),
	}
	client.sendMessage(welcome)
}

// handleHealth provides health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "healthy",
		"clients":  atomic.LoadInt32(&s.clientCount),
		"messages": atomic.LoadUint64(&s.messagesOut),
	})
}

// readPump handles incoming messages from client
func (c *Client) readPump() {
	defer func() {
		c.server.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg json.RawMessage
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Error("WebSocket read error", "error", err)
			}
			break
		}

		c.handleMessage(msg)
	}
}

// writePump handles outgoing messages to client
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.conn.WriteMessage(websocket.TextMessage, message)
			atomic.AddUint64(&c.server.messagesOut, 1)

			// Drain queued messages
			n := len(c.send)
			for i := 0; i < n; i++ {
				c.conn.WriteMessage(websocket.TextMessage, <-c.send)
				atomic.AddUint64(&c.server.messagesOut, 1)
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes incoming client messages
func (c *Client) handleMessage(raw json.RawMessage) {
	var msg map[string]interface{}
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid message format")
		return
	}

	msgType, ok := msg["type"].(string)
	if !ok {
		c.sendError("Missing message type")
		return
	}

	switch msgType {
	case "subscribe":
		c.handleSubscribe(msg)
	case "unsubscribe":
		c.handleUnsubscribe(msg)
	case "ping":
		c.sendMessage(Message{Type: "pong", Timestamp: time.Now().Unix()})
	default:
		c.sendError(fmt.Sprintf("Unknown message type: %s", msgType))
	}
}

// handleSubscribe handles subscription requests
func (c *Client) handleSubscribe(msg map[string]interface{}) {
	channels, ok := msg["channels"].([]interface{})
	if !ok {
		c.sendError("Invalid channels format")
		return
	}

	for _, ch := range channels {
		channel, ok := ch.(string)
		if !ok {
			continue
		}

		c.mu.Lock()
		c.channels[channel] = true
		c.mu.Unlock()

		c.server.subscribe(channel, c)

		// Market channels get an immediate snapshot.
		if market, found := strings.CutPrefix(channel, "market:"); found {
			c.sendMarketSnapshot(market)
		}
	}

	c.sendMessage(Message{
		Type:      "subscribed",
		Data:      map[string]interface{}{"channels": channels},
		Timestamp: time.Now().Unix(),
	})
}

// handleUnsubscribe handles unsubscription requests
func (c *Client) handleUnsubscribe(msg map[string]interface{}) {
	channels, ok := msg["channels"].([]interface{})
	if !ok {
		c.sendError("Invalid channels format")
		return
	}

	for _, ch := range channels {
		channel, ok := ch.(string)
		if !ok {
			continue
		}

		c.mu.Lock()
		delete(c.channels, channel)
		c.mu.Unlock()

		c.server.unsubscribe(channel, c)
	}

	c.sendMessage(Message{
		Type:      "unsubscribed",
		Data:      map[string]interface{}{"channels": channels},
		Timestamp: time.Now().Unix(),
	})
}

// sendMarketSnapshot sends the current observable state of a market
func (c *Client) sendMarketSnapshot(market string) {
	snap, err := c.server.engine.Snapshot(market)
	if err != nil {
		c.sendError(fmt.Sprintf("snapshot %s: %v", market, err))
		return
	}

	c.sendMessage(Message{
		Type:      "snapshot",
		Channel:   "market:" + market,
		Data:      snap,
		Timestamp: time.Now().Unix(),
	})
}

// sendMessage sends a message to the client
func (c *Client) sendMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.server.logger.Error("Failed to marshal message", "error", err)
		return
	}

	select {
	case c.send <- data:
	default:
		// Client send channel is full, close connection
		c.server.unregister <- c
	}
}

// sendError sends an error message to the client
func (c *Client) sendError(message string) {
	c.sendMessage(Message{
		Type:      "error",
		Data:      map[string]interface{}{"message": message},
		Timestamp: time.Now().Unix(),
	})
}

// subscribe adds a client to a channel
func (s *Server) subscribe(channel string, client *Client) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.subscriptions[channel] == nil {
		s.subscriptions[channel] = make(map[*Client]bool)
	}
	s.subscriptions[channel][client] = true
}

// unsubscribe removes a client from a channel
func (s *Server) unsubscribe(channel string, client *Client) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if clients, ok := s.subscriptions[channel]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(s.subscriptions, channel)
		}
	}
}

// unsubscribeAll removes a client from all channels
func (s *Server) unsubscribeAll(client *Client) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for channel, clients := range s.subscriptions {
		delete(clients, client)
		if len(clients) == 0 {
			delete(s.subscriptions, channel)
		}
	}
}

// broadcastMessage sends a message to all subscribed clients
func (s *Server) broadcastMessage(msg Message) {
	s.subMu.RLock()
	clients := s.subscriptions[msg.Channel]
	s.subMu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Failed to marshal broadcast message", "error", err)
		return
	}

	for client := range clients {
		select {
		case client.send <- data:
			atomic.AddUint64(&s.messagesOut, 1)
		default:
			// Client's send channel is full, drop it
			s.unregister <- client
		}
	}
}

// GetStats returns server statistics
func (s *Server) GetStats() map[string]interface{} {
	s.subMu.RLock()
	numChannels := len(s.subscriptions)
	s.subMu.RUnlock()

	return map[string]interface{}{
		"clients":       atomic.LoadInt32(&s.clientCount),
		"messages_sent": atomic.LoadUint64(&s.messagesOut),
		"channels":      numChannels,
	}
}

// generateClientID generates a unique client ID
func generateClientID() string {
	return fmt.Sprintf("client-%d-%d", time.Now().Unix(), time.Now().Nanosecond())
}
