// Package webui exposes the assistant over HTTP: REST endpoints for
// conversation history, direct command execution, and chat turns driven by
// the agent loop.
package webui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/fyang0507/notion-agent/pkg/conversations"
	"github.com/fyang0507/notion-agent/pkg/gateway"
	"github.com/fyang0507/notion-agent/pkg/logger"
	"github.com/fyang0507/notion-agent/pkg/presenter"
)

// ChatService runs one chat turn. conversationID may be empty to start a
// new conversation; the ID of the (possibly new) conversation is returned.
type ChatService interface {
	SendMessage(ctx context.Context, conversationID, message string) (reply, id string, err error)
}

// ServerConfig holds the configuration for the web server.
type ServerConfig struct {
	Host string
	Port int
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// Server is the assistant's web server.
type Server struct {
	router   *mux.Router
	store    *conversations.Store
	registry *gateway.Registry
	chat     ChatService
	config   *ServerConfig
	server   *http.Server
}

// NewServer creates a web server. chat may be nil, in which case /api/chat
// reports that no model is configured.
func NewServer(config *ServerConfig, store *conversations.Store, registry *gateway.Registry, chat ChatService) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}

	s := &Server{
		router:   mux.NewRouter(),
		store:    store,
		registry: registry,
		chat:     chat,
		config:   config,
	}
	s.setupRoutes()
	return s, nil
}

// setupRoutes configures all the HTTP routes.
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/conversations", s.handleListConversations).Methods("GET")
	api.HandleFunc("/conversations/{id}", s.handleGetConversation).Methods("GET")
	api.HandleFunc("/conversations/{id}", s.handleDeleteConversation).Methods("DELETE")
	api.HandleFunc("/commands", s.handleRunCommand).Methods("POST")
	api.HandleFunc("/chat", s.handleChat).Methods("POST")

	s.router.HandleFunc("/", s.handleIndex).Methods("GET")

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.writeJSONResponse(w, map[string]any{
		"service":  "notion-agent",
		"commands": s.registry.Verbs(),
	})
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: 200}

		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration":    time.Since(start),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

// corsMiddleware adds CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// handleListConversations handles GET /api/conversations.
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 0
	if limitStr := query.Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = parsed
		}
	}

	summaries, err := s.store.List(r.Context(), query.Get("search"), limit)
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "failed to list conversations", err)
		return
	}
	if summaries == nil {
		summaries = []conversations.Summary{}
	}

	s.writeJSONResponse(w, map[string]any{
		"conversations": summaries,
		"total":         len(summaries),
	})
}

// conversationResponse is the GET /api/conversations/{id} payload.
type conversationResponse struct {
	conversations.Conversation
	Messages []conversations.Message `json:"messages"`
}

// handleGetConversation handles GET /api/conversations/{id}.
func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	conv, messages, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, conversations.ErrNotFound) {
			s.writeErrorResponse(w, http.StatusNotFound, "conversation not found", nil)
			return
		}
		s.writeErrorResponse(w, http.StatusInternalServerError, "failed to get conversation", err)
		return
	}
	if messages == nil {
		messages = []conversations.Message{}
	}

	s.writeJSONResponse(w, &conversationResponse{Conversation: *conv, Messages: messages})
}

// handleDeleteConversation handles DELETE /api/conversations/{id}.
func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, conversations.ErrNotFound) {
			s.writeErrorResponse(w, http.StatusNotFound, "conversation not found", nil)
			return
		}
		s.writeErrorResponse(w, http.StatusInternalServerError, "failed to delete conversation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRunCommand handles POST /api/commands: it runs one command line
// through the gateway and returns its text output. Domain failures arrive
// in the output as "Error: ..." text with a 200 status.
func (s *Server) handleRunCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Command == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "command is required", nil)
		return
	}

	output, err := s.registry.Execute(r.Context(), req.Command)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadGateway, "command backend unavailable", err)
		return
	}
	s.writeJSONResponse(w, map[string]string{"output": output})
}

// handleChat handles POST /api/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		s.writeErrorResponse(w, http.StatusServiceUnavailable, "no model configured", nil)
		return
	}

	var req struct {
		ConversationID string `json:"conversationId"`
		Message        string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Message == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "message is required", nil)
		return
	}

	reply, conversationID, err := s.chat.SendMessage(r.Context(), req.ConversationID, req.Message)
	if err != nil {
		if errors.Is(err, conversations.ErrNotFound) {
			s.writeErrorResponse(w, http.StatusNotFound, "conversation not found", nil)
			return
		}
		s.writeErrorResponse(w, http.StatusInternalServerError, "chat turn failed", err)
		return
	}

	s.writeJSONResponse(w, map[string]string{
		"conversationId": conversationID,
		"reply":          reply,
	})
}

// writeJSONResponse writes a JSON response.
func (s *Server) writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode JSON response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// writeErrorResponse writes an error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string, err error) {
	if err != nil {
		logger.G(context.TODO()).WithError(err).Error(message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error":   message,
		"status":  statusCode,
		"success": false,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.G(context.TODO()).WithError(err).Error("failed to encode error response")
	}
}

// Handler returns the server's HTTP handler. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the web server and blocks until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:    address,
		Handler: s.router,
	}

	presenter.Info(fmt.Sprintf("Starting web server on http://%s", address))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.G(ctx).WithError(err).Error("web server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// Stop stops the web server immediately.
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
