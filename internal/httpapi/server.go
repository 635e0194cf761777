// Package httpapi binds the six inbound routes the gateway exposes
// to the components that implement them, and owns the net/http server
// lifecycle. Grounded on recreate-run-mix/cmd/root.go's startHTTPServer
// (raw http.ServeMux, generous streaming timeouts, goroutine-on-ctx.Done
// graceful shutdown), narrowed to this gateway's six routes instead
// of the teacher's JSON-RPC/SSE surface.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/config"
	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/logging"
	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/oauth"
	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/upstream"
)

// Server wires the gateway's components to the net/http layer.
type Server struct {
	cfg      *config.Config
	creds    *oauth.CredentialManager
	auth     *oauth.PKCEAuthenticator
	upstream *upstream.Client
	http     *http.Server
}

func New(cfg *config.Config, creds *oauth.CredentialManager, auth *oauth.PKCEAuthenticator, up *upstream.Client) *Server {
	s := &Server{cfg: cfg, creds: creds, auth: auth, upstream: up}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /auth/login", s.handleAuthLogin)
	mux.HandleFunc("POST /auth/exchange", s.handleAuthExchange)
	mux.HandleFunc("GET /auth/status", s.handleAuthStatus)
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("GET /v1/models", s.handleModels)

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      withRequestLogging(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // a chat completion stream can run for minutes
		IdleTimeout:  2 * time.Minute,
	}
	return s
}

// Run starts the server and blocks until ctx is cancelled, at which
// point it shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		logging.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			logging.Error("error during HTTP server shutdown", "error", err)
		}
	}()

	logging.Info("gateway listening", "address", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpapi: server failed: %w", err)
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error("failed to encode response body", "error", err)
	}
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]apiError{"error": {Message: message, Type: errType}})
}
