// Package server provides the HTTP server for watching the follower: the
// latest command, recorded runs, the annotated video and a websocket
// command topic.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/tagfollower/internal/app"
	"github.com/ayusman/tagfollower/internal/server/api"
	"github.com/ayusman/tagfollower/internal/store"
)

// StatusSource reports the follower's latest frame.
type StatusSource interface {
	Status() app.Status
}

// FrameSource provides the latest annotated frame as JPEG.
type FrameSource interface {
	Latest() ([]byte, uint64)
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Status    StatusSource
	Frames    FrameSource
	Commands  *CommandHub
	StreamFPS int
}

// Server represents the HTTP server for the follower.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Status != nil {
		s.mux.HandleFunc("/api/command", s.handleCommand)
	}

	// Register run telemetry API if Store is configured
	if s.config.Store != nil {
		runHandler := api.NewRunHandler(s.config.Store)
		s.mux.Handle("/api/runs", runHandler)
		s.mux.Handle("/api/runs/", runHandler)
	}

	// Register annotated video stream if a frame source is configured
	if s.config.Frames != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Frames, s.config.StreamFPS))
	}

	if s.config.Commands != nil {
		s.mux.Handle("/ws/cmd_vel", s.config.Commands)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}
	if s.config.Status != nil {
		st := s.config.Status.Status()
		response["running"] = st.Running
		response["frames"] = st.Seq
	}
	if s.config.Commands != nil {
		response["ws_clients"] = s.config.Commands.Clients()
	}

	writeJSON(w, response)
}

// handleCommand handles GET requests to /api/command and returns the
// latest frame status including the published command.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, s.config.Status.Status())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Streams and websockets never finish on their own
	if s.config.Commands != nil {
		s.config.Commands.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
