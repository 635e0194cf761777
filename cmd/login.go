package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/logging"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
)

// loginCmd drives the PKCE authorization-code flow from a terminal,
// without needing the HTTP gateway running. Grounded on
// recreate-run-mix/cmd/auth.go's handleAnthropicOAuth interactive flow
// and jefflaplante-conduit/internal/auth/oauthflow/flow.go's RunLogin,
// re-pointed at this gateway's own internal/oauth package instead of
// either teacher's provider-specific client.
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with Claude Code's consumer OAuth flow from a terminal",
	Long: `login prints (and tries to open) the authorize URL, waits for you to
paste back the resulting code (format "code#state"), exchanges it for a
credential, and writes it to the token store — all without needing the
HTTP gateway running.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		parts := newGatewayComponents(cfg)

		if present, _, expired := parts.creds.Status(); present && !expired {
			fmt.Println("A stored credential is already present and still valid.")
			if !confirm("Re-authenticate anyway? (y/N): ") {
				fmt.Println("Login cancelled.")
				return nil
			}
		}

		authorizeURL, _, err := parts.authenticator.BeginLogin()
		if err != nil {
			return fmt.Errorf("failed to start login: %w", err)
		}

		fmt.Println("1. You must already be logged into claude.ai in the browser that opens.")
		fmt.Println("2. Authorize URL:")
		fmt.Println("   " + authorizeURL)
		if err := browser.OpenURL(authorizeURL); err != nil {
			logging.Warn("failed to open browser automatically", "error", err)
			fmt.Println("   (could not open a browser automatically; open the URL above manually)")
		}
		fmt.Println("3. After approving access, copy the code from the callback URL (format code#state).")

		pasted, err := promptNonEmpty("Paste authorization code: ")
		if err != nil {
			return err
		}

		fmt.Println("Exchanging authorization code for tokens...")
		cred, err := parts.authenticator.Exchange(pasted)
		if err != nil {
			return fmt.Errorf("token exchange failed: %w", err)
		}
		parts.creds.Install(cred)

		fmt.Println("Login successful; credential stored.")
		return nil
	},
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func promptNonEmpty(prompt string) (string, error) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print(prompt)
		input, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		if value := strings.TrimSpace(input); value != "" {
			return value, nil
		}
		fmt.Println("Please enter a value.")
	}
}
