// ABOUTME: OAuth consent redirect and callback handlers
// ABOUTME: Exchanges the authorization code, reads the account email and stores the credential cookie
package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/harperreed/mirrorsync/models"
	"github.com/harperreed/mirrorsync/sync"
)

const stateSeparator = ":"

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	role, err := models.ParseRole(r.PathValue("role"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	config, err := sync.NewOAuthConfig(s.oauthSettings(role), role)
	if err != nil {
		writeText(w, http.StatusInternalServerError, missingOAuthConfig)
		return
	}

	state := string(role) + stateSeparator + uuid.NewString()
	setStateCookie(w, state, s.cfg.Server.SecureCookies)

	url := config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
	http.Redirect(w, r, url, http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	role, err := models.ParseRole(r.PathValue("role"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	config, err := sync.NewOAuthConfig(s.oauthSettings(role), role)
	if err != nil {
		writeText(w, http.StatusInternalServerError, missingOAuthConfig)
		return
	}

	query := r.URL.Query()
	if e := query.Get("error"); e != "" {
		writeText(w, http.StatusBadRequest, "Google returned error: "+e)
		return
	}
	code := query.Get("code")
	if code == "" {
		writeText(w, http.StatusBadRequest, "Missing code parameter")
		return
	}
	if !s.validState(r, role, query.Get("state")) {
		writeText(w, http.StatusBadRequest, "Invalid OAuth state")
		return
	}
	clearStateCookie(w, s.cfg.Server.SecureCookies)

	ctx := context.WithValue(r.Context(), oauth2.HTTPClient, s.httpClient)
	token, err := config.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("authorization code exchange failed", "role", role, "error", err)
		writeText(w, http.StatusBadGateway, "Token exchange failed")
		return
	}
	if token.RefreshToken == "" {
		writeText(w, http.StatusBadGateway, "Google did not return a refresh token")
		return
	}

	cred := &models.StoredCredential{
		RefreshToken: token.RefreshToken,
		Email:        s.lookupEmail(r.Context(), token),
		Provider:     "google",
		Scopes:       config.Scopes,
		CreatedAt:    time.Now().UTC(),
	}
	if err := setCredentialCookie(w, role, cred, s.cfg.Server.SecureCookies); err != nil {
		s.logger.Error("failed to store credential", "role", role, "error", err)
		writeText(w, http.StatusInternalServerError, "Failed to store credential")
		return
	}
	s.logger.Info("google account connected", "role", role, "credential", cred)

	heading := "Source account connected"
	if role == models.RoleDestination {
		heading = "Destination account connected"
	}
	s.renderTemplate(w, http.StatusOK, "callback.html", map[string]any{
		"Title":        "Google " + string(role) + " connected",
		"Heading":      heading,
		"Email":        cred.Email,
		"NotifyOpener": role == models.RoleDestination,
	})
}

// validState checks the state parameter against the nonce cookie set by handleAuth.
func (s *Server) validState(r *http.Request, role models.Role, state string) bool {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != state {
		return false
	}
	prefix, _, ok := strings.Cut(state, stateSeparator)
	return ok && prefix == string(role)
}

// lookupEmail reads the account address. Failures leave it empty.
func (s *Server) lookupEmail(ctx context.Context, token *oauth2.Token) string {
	email, err := sync.LookupEmail(ctx, token, sync.ClientOptions{
		Timeout: s.httpClient.Timeout,
		Base:    s.httpClient.Transport,
	}, s.userInfo)
	if err != nil {
		s.logger.Warn("failed to read account email", "error", err)
		return ""
	}
	return email
}
