package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/bridge"
	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/logging"
	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/oauth"
	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/translator"
	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/upstream"
)

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var body translator.OpenAIRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "request body must be valid JSON")
		return
	}

	anthropicReq, err := translator.ToAnthropic(body, translator.RequestOptions{DefaultMaxTokens: s.cfg.DefaultMaxTokens})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	if body.Stream {
		s.handleChatCompletionsStream(w, r, body.Model, anthropicReq)
		return
	}

	msg, requestID, err := s.upstream.SendNonStream(r.Context(), anthropicReq)
	if requestID != "" {
		w.Header().Set("Anthropic-Request-Id", requestID)
	}
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, translator.FromAnthropic(msg, body.Model))
}

func (s *Server) handleChatCompletionsStream(w http.ResponseWriter, r *http.Request, requestedModel string, anthropicReq translator.AnthropicRequest) {
	upstreamBody, requestID, err := s.upstream.SendStream(r.Context(), anthropicReq)
	if requestID != "" {
		w.Header().Set("Anthropic-Request-Id", requestID)
	}
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	defer upstreamBody.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	b := bridge.New(translator.NewCompletionID(), requestedModel, time.Now().Unix())

	if err := b.Run(r.Context(), upstreamBody, w); err != nil {
		logging.Error("stream bridge ended with error", "error", err)
	}
}

// writeUpstreamError maps UpstreamClient/CredentialManager failures to
// the external error-kind table in §7.
func writeUpstreamError(w http.ResponseWriter, err error) {
	var invalid *translator.InvalidRequestError
	var statusErr *upstream.StatusError

	switch {
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
	case errors.Is(err, oauth.ErrNeedsLogin), errors.Is(err, upstream.ErrAuthExpired):
		writeError(w, http.StatusUnauthorized, "needs_login", "no valid credential; visit /auth/login")
	case errors.As(err, &statusErr):
		if statusErr.RetryAfter != "" {
			w.Header().Set("Retry-After", statusErr.RetryAfter)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusErr.StatusCode)
		_, _ = w.Write(statusErr.Body)
	default:
		logging.Error("upstream call failed", "error", err)
		writeError(w, http.StatusBadGateway, "upstream_unreachable", "could not reach Anthropic")
	}
}
