// Package cmd implements the gateway's cobra-based CLI: serve (the
// default command) runs the HTTP gateway, while login and status drive
// the OAuth flow from a terminal without needing the HTTP endpoints
// running. Grounded on recreate-run-mix/cmd/root.go's cobra shape
// (Use/Short/Long/Example, a config-loading RunE, graceful shutdown on
// context cancellation).
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/config"
	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/logging"
	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/oauth"
	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/upstream"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "anthropic-oauth-proxy",
	Short: "Loopback OpenAI-compatible gateway backed by Claude Code's OAuth credential",
	Long: `anthropic-oauth-proxy presents an OpenAI-style Chat Completions API on
127.0.0.1 and forwards inference to Anthropic's Messages API, authenticating
with the consumer OAuth (PKCE) credential issued through the Claude Code
application rather than a workspace API key.`,
	Example: `
  # Start the gateway (default command)
  anthropic-oauth-proxy

  # Same, explicit
  anthropic-oauth-proxy serve

  # Authenticate from a terminal, without the HTTP server running
  anthropic-oauth-proxy login

  # Check whether a credential is currently stored
  anthropic-oauth-proxy status
  `,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute runs the root command, exiting the process with status 1 on error.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file, overriding the default search path")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(statusCmd)
}

// loadConfig loads configuration and wires up the process-wide slog
// default logger from the resolved log level; every command needs both.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("cmd: loading config: %w", err)
	}
	logging.Setup(parseLevel(cfg.LogLevel))
	return cfg, nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// gatewayComponents bundles the core subsystems every command needs:
// CredentialManager (for status/login) and, additionally, an
// UpstreamClient for serve.
type gatewayComponents struct {
	creds         *oauth.CredentialManager
	authenticator *oauth.PKCEAuthenticator
	upstream      *upstream.Client
}

func newGatewayComponents(cfg *config.Config) *gatewayComponents {
	store := oauth.NewTokenStore(cfg.TokenFile)
	endpoints := oauth.Endpoints{
		AuthBase:    cfg.AuthBase,
		TokenBase:   cfg.AuthBase,
		ClientID:    cfg.ClientID,
		RedirectURI: cfg.RedirectURI,
		Scope:       cfg.Scope,
	}
	authenticator := oauth.NewPKCEAuthenticator(endpoints)
	creds := oauth.NewCredentialManager(store, authenticator)

	upstreamClient := upstream.New(upstream.Config{
		APIBase:          cfg.APIBase,
		AnthropicVersion: cfg.AnthropicVersion,
		AnthropicBeta:    cfg.AnthropicBetaFeatures(),
	}, creds)

	return &gatewayComponents{creds: creds, authenticator: authenticator, upstream: upstreamClient}
}
