package websocket

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"StockLedger/app/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

// Message is one event on the feed
type Message struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

const (
	// TypeHeartbeat keeps idle dashboard connections alive
	TypeHeartbeat = "heartbeat"
)

// Client represents a connected dashboard client
type Client struct {
	ID          string
	Connection  *websocket.Conn
	Send        chan []byte
	Server      *Server
	ConnectedAt time.Time
	RemoteAddr  string
}

// Server pushes engine events to connected dashboards and serves the
// read-only REST endpoints. Mutations never enter through here; they go
// through the service APIs.
type Server struct {
	clients      map[string]*Client
	broadcast    chan []byte
	register     chan *Client
	unregister   chan *Client
	upgrader     websocket.Upgrader
	mu           sync.RWMutex
	port         string
	restHandlers *RESTHandlers
	mdnsShutdown chan bool
}

// NewServer creates a new event feed server
func NewServer(port string) *Server {
	return &Server{
		clients:      make(map[string]*Client),
		broadcast:    make(chan []byte, 64),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		port:         port,
		mdnsShutdown: make(chan bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Dashboards connect from the local network
				return true
			},
		},
	}
}

// SetRESTHandlers attaches the read-only REST API
func (s *Server) SetRESTHandlers(h *RESTHandlers) {
	s.restHandlers = h
}

// Publish broadcasts an engine event to every connected client. It
// implements the services event publisher interface.
func (s *Server) Publish(eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Warn("event payload marshal failed", zap.String("type", eventType), zap.Error(err))
		return
	}
	message, err := json.Marshal(Message{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		return
	}

	select {
	case s.broadcast <- message:
	default:
		logger.Log.Warn("event feed backlogged, dropping event", zap.String("type", eventType))
	}
}

// Start starts the event feed server
func (s *Server) Start() error {
	go s.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	if s.restHandlers != nil {
		mux.HandleFunc("/api/products", s.restHandlers.HandleGetProducts)
		mux.HandleFunc("/api/products/low-stock", s.restHandlers.HandleGetLowStock)
		mux.HandleFunc("/api/inventory/summary", s.restHandlers.HandleGetInventorySummary)
		mux.HandleFunc("/api/ledger", s.restHandlers.HandleQueryLedger)
		mux.HandleFunc("/api/reservations", s.restHandlers.HandleGetReservations)
		mux.HandleFunc("/api/sales", s.restHandlers.HandleGetSales)
		mux.HandleFunc("/api/sales/daily", s.restHandlers.HandleGetDailySales)
		mux.HandleFunc("/api/reorder/draft", s.restHandlers.HandleGetDraft)
		mux.HandleFunc("/api/reorder/snapshots", s.restHandlers.HandleGetSnapshots)
		logger.Log.Info("REST API endpoints registered")
	}

	go s.startMDNS()

	logger.Log.Info("event feed server starting", zap.String("port", s.port))
	return http.ListenAndServe(s.port, mux)
}

// startMDNS announces the engine on the local network so dashboards can
// discover it without configuration.
func (s *Server) startMDNS() {
	portStr := strings.TrimPrefix(s.port, ":")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		logger.Log.Warn("mDNS: invalid port format", zap.String("port", s.port))
		return
	}

	server, err := zeroconf.Register(
		"StockLedger",
		"_stockledger._tcp",
		"local.",
		port,
		[]string{"version=1.0"},
		nil,
	)
	if err != nil {
		logger.Log.Warn("mDNS: failed to register service", zap.Error(err))
		return
	}

	logger.Log.Info("mDNS: engine announced on _stockledger._tcp.local")

	<-s.mdnsShutdown
	server.Shutdown()
	logger.Log.Info("mDNS: service announcement stopped")
}

// Stop stops the server and disconnects all clients
func (s *Server) Stop() {
	select {
	case s.mdnsShutdown <- true:
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, client := range s.clients {
		close(client.Send)
		client.Connection.Close()
	}
	s.clients = make(map[string]*Client)
}

// run handles the main server loop
func (s *Server) run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-s.register:
			s.mu.Lock()
			s.clients[client.ID] = client
			s.mu.Unlock()
			logger.Log.Info("dashboard connected",
				zap.String("client_id", client.ID),
				zap.String("remote", client.RemoteAddr))

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client.ID]; ok {
				delete(s.clients, client.ID)
				close(client.Send)
			}
			s.mu.Unlock()
			logger.Log.Info("dashboard disconnected", zap.String("client_id", client.ID))

		case message := <-s.broadcast:
			s.mu.Lock()
			for id, client := range s.clients {
				select {
				case client.Send <- message:
				default:
					// Client buffer is full, disconnect
					delete(s.clients, id)
					close(client.Send)
				}
			}
			s.mu.Unlock()

		case <-ticker.C:
			s.sendHeartbeat()
		}
	}
}

func (s *Server) sendHeartbeat() {
	message, _ := json.Marshal(Message{
		Type:      TypeHeartbeat,
		Timestamp: time.Now().UTC(),
		Data:      json.RawMessage(`{}`),
	})
	select {
	case s.broadcast <- message:
	default:
	}
}

// ClientCount returns the number of connected dashboards
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// handleWebSocket handles WebSocket connection upgrades
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warn("websocket upgrade error", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.NewString(),
		Connection:  conn,
		Send:        make(chan []byte, 256),
		Server:      s,
		ConnectedAt: time.Now(),
		RemoteAddr:  r.RemoteAddr,
	}

	s.register <- client

	go client.writePump()
	go client.readPump()
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"clients": s.ClientCount(),
		"time":    time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// readPump drains the client connection. The feed is one-way; anything but
// pings is ignored, but the read loop is what detects disconnects.
func (c *Client) readPump() {
	defer func() {
		c.Server.unregister <- c
		c.Connection.Close()
	}()

	c.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Connection.SetPongHandler(func(string) error {
		c.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.Connection.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warn("websocket read error", zap.Error(err))
			}
			break
		}
	}
}

// writePump handles writing messages to the client
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.Connection.WriteMessage(websocket.TextMessage, message)

		case <-ticker.C:
			c.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
