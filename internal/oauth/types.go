// Package oauth implements the Anthropic consumer OAuth (PKCE)
// credential lifecycle: generating the authorize URL, exchanging a
// pasted authorization code for tokens, refreshing an expired access
// token, and persisting the result to disk.
package oauth

import "time"

// fallbackClientID is the public client identifier the Claude Code
// application registers for its own PKCE flow; used whenever no
// CLIENT_ID override is configured.
const fallbackClientID = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"

const requiredScope = "org:create_api_key user:profile user:inference"

// refreshSkew is subtracted from a credential's computed expiry so a
// token is treated as due for refresh slightly before the upstream
// actually rejects it.
const refreshSkew = 30 * time.Second

// Endpoints carries the configuration values the spec requires to stay
// external to the code: no secrets are compiled in.
type Endpoints struct {
	AuthBase    string // e.g. https://claude.ai
	TokenBase   string // e.g. https://console.anthropic.com
	ClientID    string
	RedirectURI string
	Scope       string
}

func (e Endpoints) clientID() string {
	if e.ClientID != "" {
		return e.ClientID
	}
	return fallbackClientID
}

func (e Endpoints) scope() string {
	if e.Scope != "" {
		return e.Scope
	}
	return requiredScope
}

// Credential is the OAuth token triple persisted by TokenStore.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Expired reports whether the credential is unusable right now,
// applying the refresh safety skew.
func (c Credential) Expired() bool {
	if c.AccessToken == "" {
		return true
	}
	return time.Now().Unix() >= c.ExpiresAt-int64(refreshSkew.Seconds())
}

// PKCESession is the ephemeral, process-local state for one in-flight
// login attempt. At most one session is ever live: starting a new
// login supersedes any prior pending one.
type PKCESession struct {
	Verifier  string
	Challenge string
	State     string
	CreatedAt time.Time
}

func (s PKCESession) expired() bool {
	return time.Since(s.CreatedAt) > 10*time.Minute
}
