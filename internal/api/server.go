// Package api implements the HTTP and WebSocket interface to the
// assistant.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/agrismart/assistant/internal/agent"
	"github.com/agrismart/assistant/internal/audit"
	"github.com/agrismart/assistant/internal/buildinfo"
	"github.com/agrismart/assistant/internal/inventory"
	"github.com/agrismart/assistant/internal/memory"
)

// Assistant answers turns and exposes conversation history.
// *agent.Assistant satisfies it.
type Assistant interface {
	SubmitTurn(ctx context.Context, conversationID string, in agent.TurnInput) (*agent.Reply, error)
	History(conversationID string) []memory.Turn
}

// AuditReader queries the audit log. *audit.Store satisfies it.
type AuditReader interface {
	ToolCalls(ctx context.Context, conversationID string, limit int) ([]audit.ToolCallRecord, error)
	TierCounts(ctx context.Context, start, end time.Time) ([]audit.TierCount, error)
}

// Server is the HTTP API server.
type Server struct {
	address   string
	port      int
	assistant Assistant
	catalog   inventory.Catalog
	audit     AuditReader
	logger    *slog.Logger
	server    *http.Server
	upgrader  websocket.Upgrader

	allowedOrigins []string
}

// NewServer creates a new API server.
func NewServer(address string, port int, assistant Assistant, catalog inventory.Catalog, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		address:   address,
		port:      port,
		assistant: assistant,
		catalog:   catalog,
		logger:    logger.With("component", "api"),
	}
	s.upgrader = websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		CheckOrigin:      s.checkOrigin,
	}
	return s
}

// SetAuditReader enables the audit endpoints.
func (s *Server) SetAuditReader(a AuditReader) {
	s.audit = a
}

// SetAllowedOrigins lists the browser origins, besides the server's
// own, that may open the chat WebSocket. "*" allows any origin.
func (s *Server) SetAllowedOrigins(origins []string) {
	s.allowedOrigins = origins
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients), same-origin requests, and allow-listed origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin) {
			return true
		}
	}
	s.logger.Warn("websocket origin rejected", "origin", origin)
	return false
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.withLogging)

	r.Get("/health", s.handleHealth)
	r.Get("/v1/version", s.handleVersion)

	r.Post("/v1/chat", s.handleChat)
	r.Get("/v1/chat/ws", s.handleChatSocket)
	r.Get("/v1/conversations/{id}", s.handleConversationGet)
	r.Get("/v1/items", s.handleItems)

	r.Get("/v1/audit/tool-calls", s.handleToolCalls)
	r.Get("/v1/audit/tiers", s.handleTierCounts)

	r.Get("/v1/bookings/{id}/qr.png", s.handleBookingQR)

	return r
}

// Start begins serving HTTP requests. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // a turn may take several model round trips
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start),
		)
	})
}

// writeJSON encodes v as JSON with the given status. Encoding errors
// usually mean the client went away and are only logged.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write JSON response", "error", err)
	}
}

// ErrorBody is the error envelope returned by every endpoint.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, ErrorBody{Error: ErrorDetail{Message: message, Code: code}})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"uptime": buildinfo.Uptime().String(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, buildinfo.Info())
}

// ConversationResponse is the visible history of one conversation.
type ConversationResponse struct {
	ID    string        `json:"id"`
	Turns []memory.Turn `json:"turns"`
}

func (s *Server) handleConversationGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.writeJSON(w, http.StatusOK, ConversationResponse{
		ID:    id,
		Turns: s.assistant.History(id),
	})
}

func parseIntParam(r *http.Request, name string, defaultVal int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
