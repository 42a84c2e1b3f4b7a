// ABOUTME: Cookie-backed credential storage for the HTTP front
// ABOUTME: Keeps each role's refresh credential in an HttpOnly base64url JSON cookie
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/harperreed/mirrorsync/models"
	"github.com/harperreed/mirrorsync/sync"
)

const (
	sourceCookie      = "g_src"
	destinationCookie = "g_dest"
	stateCookie       = "g_oauth_state"

	credentialCookieMaxAge = 180 * 24 * time.Hour
	stateCookieMaxAge      = 10 * time.Minute
)

func credentialCookieName(role models.Role) string {
	if role == models.RoleDestination {
		return destinationCookie
	}
	return sourceCookie
}

// cookieStore reads credentials from the cookies of one request.
type cookieStore struct {
	r *http.Request
}

func (s cookieStore) Get(_ context.Context, role models.Role) (*models.StoredCredential, error) {
	cookie, err := s.r.Cookie(credentialCookieName(role))
	if err != nil {
		return nil, models.ErrCredentialNotFound
	}
	return sync.DecodeCredential(cookie.Value)
}

func setCredentialCookie(w http.ResponseWriter, role models.Role, cred *models.StoredCredential, secure bool) error {
	value, err := sync.EncodeCredential(cred)
	if err != nil {
		return fmt.Errorf("failed to encode %s credential: %w", role, err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     credentialCookieName(role),
		Value:    value,
		Path:     "/",
		MaxAge:   int(credentialCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func setStateCookie(w http.ResponseWriter, state string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/api/google/",
		MaxAge:   int(stateCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearStateCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/api/google/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
