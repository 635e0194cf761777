package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/logging"
	"github.com/ali-hassan148/anthropic-claude-max-proxy/internal/oauth"
)

// handleAuthLogin starts a PKCE session and hands back a small HTML
// page exposing the authorize URL plus a form posting the pasted
// "code#state" to /auth/exchange, so a user can complete login with
// nothing but a browser and this page.
func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	authorizeURL, _, err := s.auth.BeginLogin()
	if err != nil {
		logging.Error("failed to begin login", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to start login")
		return
	}

	if r.Header.Get("Accept") == "application/json" {
		writeJSON(w, http.StatusOK, map[string]string{"authorize_url": authorizeURL})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html>
<html><body>
<p>1. Open this URL and approve access: <a href="%s" target="_blank">%s</a></p>
<p>2. You must already be logged into claude.ai in that browser.</p>
<p>3. Paste the resulting code (format <code>code#state</code>) below:</p>
<form method="post" action="/auth/exchange" onsubmit="return submitCode(event)">
<input type="text" id="code" name="code" size="80">
<button type="submit">Exchange</button>
</form>
<pre id="result"></pre>
<script>
function submitCode(e) {
  e.preventDefault();
  var code = document.getElementById('code').value;
  fetch('/auth/exchange', {method:'POST', headers:{'Content-Type':'application/json'}, body: JSON.stringify({code: code})})
    .then(r => r.json()).then(j => document.getElementById('result').textContent = JSON.stringify(j));
  return false;
}
</script>
</body></html>`, authorizeURL, authorizeURL)
}

type exchangeRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleAuthExchange(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "body must be {\"code\":\"...\"}")
		return
	}

	cred, err := s.auth.Exchange(req.Code)
	if err != nil {
		var rejected *oauth.AuthCodeRejectedError
		switch {
		case errors.Is(err, oauth.ErrSessionExpired), errors.Is(err, oauth.ErrStateMismatch):
			writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		case errors.As(err, &rejected):
			writeError(w, http.StatusBadGateway, "auth_code_rejected", err.Error())
		default:
			logging.Error("unexpected error during code exchange", "error", err)
			writeError(w, http.StatusBadGateway, "auth_code_rejected", "token exchange failed")
		}
		return
	}

	s.creds.Install(cred)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	present, expiresAt, expired := s.creds.Status()

	var expiresAtField any
	if present {
		expiresAtField = time.Unix(expiresAt, 0).UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"present":    present,
		"expires_at": expiresAtField,
		"expired":    expired,
	})
}
