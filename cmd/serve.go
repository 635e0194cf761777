package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/httpapi"
	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/logging"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP gateway on 127.0.0.1 (default command)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// runServe loads configuration, wires the gateway's components
// together, and blocks until SIGINT/SIGTERM, at which point the HTTP
// server shuts down gracefully. Grounded on recreate-run-mix/cmd/root.go's
// startHTTPServer goroutine-on-ctx.Done() shutdown shape.
func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	parts := newGatewayComponents(cfg)
	server := httpapi.New(cfg, parts.creds, parts.authenticator, parts.upstream)

	logging.Info("starting anthropic-oauth-proxy", "port", cfg.Port, "api_base", cfg.APIBase, "default_model", cfg.DefaultModel)
	return server.Run(ctx)
}
