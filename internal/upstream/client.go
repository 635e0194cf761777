// Package upstream issues the HTTP(S) calls to Anthropic's Messages
// API, attaching the headers an OAuth-authenticated Claude Code client
// is required to send and handling the one-shot 401 retry policy.
// Grounded on recreate-run-mix/internal/llm/provider/anthropic.go's
// buildBetaHeader/shouldRetry/401-detect-and-retry-once pattern, but
// issuing requests with a plain *http.Client instead of the Anthropic
// SDK's own client so header construction and retry stay fully under
// this package's control, per the component's role in the design.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/logging"
	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/oauth"
	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/translator"

	"github.com/anthropics/anthropic-sdk-go"
)

// ErrAuthExpired is returned when a retried request still comes back 401.
var ErrAuthExpired = fmt.Errorf("upstream: credential rejected twice, needs re-login")

// StatusError preserves a non-2xx Anthropic response's status and body
// for pass-through to the inbound client, per §7's error-kind table.
type StatusError struct {
	StatusCode int
	Body       []byte
	RetryAfter string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: anthropic responded %d: %s", e.StatusCode, string(e.Body))
}

// Config carries the headers and base URL every outbound Messages call needs.
type Config struct {
	APIBase           string
	AnthropicVersion  string
	AnthropicBeta     []string // additional beta features beyond the OAuth one this client always sends
}

// Client issues Messages API calls with a dedicated, connection-pooled
// transport (grounded on other_examples/smart-proxy's direct-proxy
// transport setup) rather than sharing http.DefaultClient.
type Client struct {
	cfg   Config
	creds *oauth.CredentialManager
	http  *http.Client
}

func New(cfg Config, creds *oauth.CredentialManager) *Client {
	transport := &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		cfg:   cfg,
		creds: creds,
		http: &http.Client{
			Transport: transport,
			Timeout:   0, // streaming responses have no overall deadline; cancellation is via context
		},
	}
}

func (c *Client) betaHeader() string {
	features := append([]string{"oauth-2025-04-20"}, c.cfg.AnthropicBeta...)
	return strings.Join(features, ",")
}

func (c *Client) newRequest(ctx context.Context, body []byte, token string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBase+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upstream: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("anthropic-version", c.cfg.AnthropicVersion)
	req.Header.Set("anthropic-beta", c.betaHeader())
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do performs the request and implements the one-shot 401 retry: on a
// first 401 it invalidates the cached credential, forces a refresh,
// and retries exactly once.
func (c *Client) do(ctx context.Context, body []byte) (*http.Response, error) {
	attempt := func() (*http.Response, error) {
		token, err := c.creds.Current(ctx)
		if err != nil {
			return nil, err
		}
		req, err := c.newRequest(ctx, body, token)
		if err != nil {
			return nil, err
		}
		return c.http.Do(req)
	}

	resp, err := attempt()
	if err != nil {
		return nil, fmt.Errorf("upstream: request failed: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		logging.Warn("upstream returned 401, forcing refresh and retrying once")
		c.creds.Invalidate()
		resp, err = attempt()
		if err != nil {
			return nil, fmt.Errorf("upstream: retry after refresh failed: %w", err)
		}
		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			return nil, ErrAuthExpired
		}
	}
	return resp, nil
}

func asStatusError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return &StatusError{StatusCode: resp.StatusCode, Body: data, RetryAfter: resp.Header.Get("Retry-After")}
}

// SendNonStream issues req and decodes the response into the SDK's
// anthropic.Message type for ResponseTranslator to consume. The
// returned request-id is Anthropic's own correlation header, for the
// caller to fold into its own request log per §7.
func (c *Client) SendNonStream(ctx context.Context, req translator.AnthropicRequest) (anthropic.Message, string, error) {
	req.Stream = false
	body, err := json.Marshal(req)
	if err != nil {
		return anthropic.Message{}, "", fmt.Errorf("upstream: marshaling request: %w", err)
	}

	resp, err := c.do(ctx, body)
	if err != nil {
		return anthropic.Message{}, "", err
	}
	defer resp.Body.Close()
	requestID := resp.Header.Get("request-id")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return anthropic.Message{}, requestID, asStatusError(resp)
	}

	var msg anthropic.Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return anthropic.Message{}, requestID, fmt.Errorf("upstream: decoding response: %w", err)
	}
	return msg, requestID, nil
}

// SendStream issues req with stream=true and returns the raw response
// body for StreamBridge to frame and translate, plus Anthropic's
// request-id header. The caller owns closing the returned io.ReadCloser.
func (c *Client) SendStream(ctx context.Context, req translator.AnthropicRequest) (io.ReadCloser, string, error) {
	req.Stream = true
	body, err := json.Marshal(req)
	if err != nil {
		return nil, "", fmt.Errorf("upstream: marshaling request: %w", err)
	}

	resp, err := c.do(ctx, body)
	if err != nil {
		return nil, "", err
	}
	requestID := resp.Header.Get("request-id")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, requestID, asStatusError(resp)
	}
	return resp.Body, requestID, nil
}
