package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/room4-2/accessai/config"
	"github.com/room4-2/accessai/messages"
	"github.com/room4-2/accessai/metrics"
)

type Server struct {
	httpServer *http.Server
	upgrader   websocket.Upgrader
	hub        *Hub
	controller Controller
	metrics    *metrics.Metrics
	config     *config.Config

	// baseCtx outlives individual UI connections; conversations started from
	// a client run under it.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// NewServerWebsocket creates the UI bridge. controller may be nil for a
// server that only reports state.
func NewServerWebsocket(cfg *config.Config, hub *Hub, controller Controller, m *metrics.Metrics) *Server {
	hub.attach(controller)
	baseCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		hub:        hub,
		controller: controller,
		metrics:    m,
		config:     cfg,
		baseCtx:    baseCtx,
		cancelBase: cancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Check allowed origins
				origin := r.Header.Get("Origin")
				for _, allowed := range cfg.AllowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	if m != nil {
		mux.Handle("/metrics", m.Handler())
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for connections
func (s *Server) Start() error {
	log.Printf("🚀 UI bridge starting on port %d", s.config.Port)
	log.Printf("📡 WebSocket endpoint: ws://localhost:%d/ws", s.config.Port)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("🛑 Shutting down server...")
	s.cancelBase()
	s.hub.Shutdown()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Upgrade HTTP to WebSocket
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client, err := s.hub.Register(r.Context(), conn)
	if err != nil {
		log.Printf("Failed to register client: %v", err)
		// Send error and close
		errMsg := messages.NewErrorMessage("", messages.ErrCodeRateLimited, err.Error())
		if data, mErr := sonic.Marshal(errMsg); mErr == nil {
			_ = conn.WriteMessage(websocket.TextMessage, data)
		}
		conn.Close()
		return
	}

	log.Printf("✅ UI client connected: %s", client.ID)

	// Start client (handles messages in goroutines)
	client.Start(s.baseCtx)

	// Wait for client to close
	<-client.CloseChan

	// Clean up
	_ = s.hub.Remove(context.Background(), client.ID)
	log.Printf("🔌 UI client closed: %s", client.ID)
}

type healthResponse struct {
	Status       string `json:"status"`
	Clients      int    `json:"clients"`
	State        string `json:"state,omitempty"`
	Conversation string `json:"conversation,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Clients: s.hub.Count()}
	if s.controller != nil {
		state, _ := s.controller.Snapshot()
		resp.State = state.String()
		resp.Conversation = s.controller.ID()
	}

	data, err := sonic.Marshal(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
