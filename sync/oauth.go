// ABOUTME: OAuth configuration and refresh-token exchange for Google APIs
// ABOUTME: Turns a stored credential into a short-lived access token, failing fast
package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/harperreed/mirrorsync/models"
)

// Scopes requested per role. Source accounts only read; destinations write.
var (
	identityScopes = []string{"openid", "email", "profile"}

	sourceScopes = []string{
		"https://www.googleapis.com/auth/calendar.readonly",
		"https://www.googleapis.com/auth/contacts.readonly",
		"https://www.googleapis.com/auth/contacts.other.readonly",
	}

	destinationScopes = []string{
		"https://www.googleapis.com/auth/calendar",
		"https://www.googleapis.com/auth/contacts",
		"https://www.googleapis.com/auth/contacts.other.readonly",
	}
)

// ScopesFor returns the consent scopes for a role, identity scopes included.
func ScopesFor(role models.Role) []string {
	scopes := append([]string{}, identityScopes...)
	if role == models.RoleDestination {
		return append(scopes, destinationScopes...)
	}
	return append(scopes, sourceScopes...)
}

// OAuthSettings is the OAuth application registration.
type OAuthSettings struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// TokenURL overrides the Google token endpoint when set.
	TokenURL string
}

// NewOAuthConfig creates OAuth2 config for Google APIs.
func NewOAuthConfig(settings OAuthSettings, role models.Role) (*oauth2.Config, error) {
	if settings.ClientID == "" || settings.ClientSecret == "" {
		return nil, configError("Missing Google OAuth env vars")
	}

	endpoint := google.Endpoint
	if settings.TokenURL != "" {
		endpoint.TokenURL = settings.TokenURL
	}

	return &oauth2.Config{
		ClientID:     settings.ClientID,
		ClientSecret: settings.ClientSecret,
		RedirectURL:  settings.RedirectURL,
		Scopes:       ScopesFor(role),
		Endpoint:     endpoint,
	}, nil
}

// TokenResolver exchanges refresh tokens for access tokens.
type TokenResolver struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewTokenResolver creates a resolver. httpClient may be nil.
func NewTokenResolver(settings OAuthSettings, httpClient *http.Client) (*TokenResolver, error) {
	config, err := NewOAuthConfig(settings, models.RoleSource)
	if err != nil {
		return nil, err
	}
	return &TokenResolver{config: config, httpClient: httpClient}, nil
}

// Resolve performs exactly one refresh-token exchange. There are no retries:
// a failed exchange aborts the run and the caller retries the whole run.
func (r *TokenResolver) Resolve(ctx context.Context, cred *models.StoredCredential) (*oauth2.Token, error) {
	if cred == nil || strings.TrimSpace(cred.RefreshToken) == "" {
		return nil, authError(ErrMissingCredential, "Missing refresh tokens", "", nil)
	}

	if r.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	}

	token, err := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		return nil, authError(ErrTokenExchangeFailed, "Failed to refresh access tokens", exchangeDetail(err), err)
	}
	if token.AccessToken == "" {
		return nil, authError(ErrTokenExchangeFailed, "Failed to refresh access tokens", "empty access token", nil)
	}

	return token, nil
}

// exchangeDetail summarizes a token endpoint failure without echoing the request.
func exchangeDetail(err error) string {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		detail := fmt.Sprintf("token endpoint returned %d", status)
		if retrieveErr.ErrorCode != "" {
			detail += " " + retrieveErr.ErrorCode
		}
		if retrieveErr.ErrorDescription != "" {
			detail += ": " + retrieveErr.ErrorDescription
		}
		return detail
	}
	return "token endpoint unreachable"
}
