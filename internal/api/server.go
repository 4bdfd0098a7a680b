// Package api serves a small HTTP API for listing and switching plugs.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ezvizswitch/internal/ezviz"
	"ezvizswitch/internal/plug"
	"ezvizswitch/pkg/entity"

	"go.uber.org/zap"
)

// PollStatus reports when the last poll cycle finished
type PollStatus interface {
	LastPoll() time.Time
}

// Server provides HTTP API endpoints over the entity registry
type Server struct {
	registry *entity.Registry
	logger   *zap.Logger
	server   *http.Server
	polls    PollStatus
}

// NewServer creates a new API server
func NewServer(registry *entity.Registry, logger *zap.Logger, port int) *Server {
	s := &Server{
		registry: registry,
		logger:   logger.Named("api"),
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 40 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleSitemap)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/plugs", s.handleListPlugs)
	mux.HandleFunc("GET /api/plugs/{serial}", s.handleGetPlug)
	mux.HandleFunc("POST /api/plugs/{serial}/on", s.handleCommand(true))
	mux.HandleFunc("POST /api/plugs/{serial}/off", s.handleCommand(false))
	mux.HandleFunc("POST /api/plugs/{serial}/refresh", s.handleRefresh)
	return mux
}

// SetPollStatus makes /health report the last poll time. Call it before Start.
func (s *Server) SetPollStatus(polls PollStatus) {
	s.polls = polls
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// PlugResponse is the JSON view of one plug
type PlugResponse struct {
	Serial string `json:"serial"`
	Name   string `json:"name"`
	On     bool   `json:"on"`
	Online bool   `json:"online"`
}

func plugResponse(snap entity.Snapshot) PlugResponse {
	return PlugResponse{
		Serial: snap.UniqueID,
		Name:   snap.Name,
		On:     snap.On,
		Online: snap.Available,
	}
}

func (s *Server) handleListPlugs(w http.ResponseWriter, r *http.Request) {
	snaps := s.registry.Snapshots()
	response := make([]PlugResponse, len(snaps))
	for i, snap := range snaps {
		response[i] = plugResponse(snap)
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetPlug(w http.ResponseWriter, r *http.Request) {
	snap, err := s.registry.Snapshot(r.PathValue("serial"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, plugResponse(snap))
}

// handleCommand returns the handler for POST .../on and .../off. The
// response carries the cached state, which updates on the next refresh.
// A command runs to completion even if the client goes away.
func (s *Server) handleCommand(on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serial := r.PathValue("serial")

		if err := s.registry.Set(context.WithoutCancel(r.Context()), serial, on); err != nil {
			s.logger.Warn("Command failed",
				zap.String("serial", serial),
				zap.Bool("on", on),
				zap.Error(err))
			s.writeError(w, err)
			return
		}

		s.logger.Info("Command sent", zap.String("serial", serial), zap.Bool("on", on))

		snap, err := s.registry.Snapshot(serial)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, plugResponse(snap))
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	serial := r.PathValue("serial")

	snap, err := s.registry.Refresh(context.WithoutCancel(r.Context()), serial)
	if err != nil {
		s.logger.Warn("Refresh failed", zap.String("serial", serial), zap.Error(err))
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, plugResponse(snap))
}

// handleHealth returns a simple health check response
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status": "ok",
		"plugs":  s.registry.Len(),
	}
	if s.polls != nil {
		if last := s.polls.LastPoll(); !last.IsZero() {
			response["last_poll"] = last.UTC().Format(time.RFC3339)
		}
	}
	s.writeJSON(w, http.StatusOK, response)
}

// statusFor maps command errors to HTTP status codes
func statusFor(err error) int {
	var apiErr *ezviz.APIError
	switch {
	case errors.Is(err, entity.ErrNotFound), errors.Is(err, plug.ErrDeviceNotFound):
		return http.StatusNotFound
	case errors.Is(err, plug.ErrReadOnlyMode):
		return http.StatusForbidden
	case errors.As(err, &apiErr) && apiErr.SessionExpired():
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// Endpoint represents an API endpoint with its documentation
type Endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

var endpoints = []Endpoint{
	{Path: "/", Method: "GET", Description: "This sitemap"},
	{Path: "/health", Method: "GET", Description: "Health check"},
	{Path: "/api/plugs", Method: "GET", Description: "List plugs with their cached state"},
	{Path: "/api/plugs/{serial}", Method: "GET", Description: "Cached state of one plug"},
	{Path: "/api/plugs/{serial}/on", Method: "POST", Description: "Switch a plug on"},
	{Path: "/api/plugs/{serial}/off", Method: "POST", Description: "Switch a plug off"},
	{Path: "/api/plugs/{serial}/refresh", Method: "POST", Description: "Re-read a plug from the account"},
}

// handleSitemap lists the endpoints. Unknown paths get the same listing
// with a 404 status.
func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	if r.URL.Path != "/" {
		status = http.StatusNotFound
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		s.writeJSON(w, status, endpoints)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "EZVIZ Switch API\n")
	fmt.Fprintf(w, "================\n\n")
	for _, ep := range endpoints {
		fmt.Fprintf(w, "  %-6s %-30s %s\n", ep.Method, ep.Path, ep.Description)
	}

	s.logger.Debug("Sitemap request served", zap.String("remote_addr", r.RemoteAddr))
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP API server", zap.String("addr", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP API server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}
