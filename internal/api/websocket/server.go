// Package websocket streams backfill job events to browser clients.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server streams job events to browser clients.
type Server struct {
	server *http.Server
	hub    *Hub
	ctx    context.Context
	logger *zap.Logger
}

// NewServer creates a new WebSocket server. Client pumps stop when ctx is done.
func NewServer(ctx context.Context, hub *Hub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{hub: hub, ctx: ctx, logger: logger}
}

// Handler returns the routes served by Start.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/jobs", s.handleJobs)
	mux.HandleFunc("/ws/health", s.handleHealth)
	return mux
}

// Start blocks serving on port.
func (s *Server) Start(port string) error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: s.Handler(),
	}

	s.logger.Info("websocket server listening", zap.String("port", port))
	return s.server.ListenAndServe()
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	client := NewClient(uuid.NewString(), conn, s.hub)
	if id := r.URL.Query().Get("job_id"); id != "" {
		client.jobID = id
	}
	s.hub.Register(client)

	go client.writePump(s.ctx)
	go client.readPump(s.ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "healthy",
		"clients": s.hub.ClientCount(),
	})
}

// Shutdown stops accepting connections and waits for handlers, up to ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
