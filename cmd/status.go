package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a credential is stored and its expiry",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		parts := newGatewayComponents(cfg)

		present, expiresAt, expired := parts.creds.Status()
		switch {
		case !present:
			fmt.Println("No credential stored. Run `anthropic-oauth-proxy login` to authenticate.")
		case expired:
			fmt.Println("Credential stored but expired; it will be refreshed automatically on next use.")
		default:
			fmt.Printf("Credential stored, valid until %s.\n", time.Unix(expiresAt, 0).Format(time.RFC3339))
		}
		return nil
	},
}
