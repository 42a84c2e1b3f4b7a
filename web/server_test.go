// ABOUTME: Tests for the HTTP front against a local stand-in for Google
// ABOUTME: Covers sync endpoints, OAuth redirect and callback, maps and health routes
package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	gosync "sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/mirrorsync/config"
	"github.com/harperreed/mirrorsync/models"
	"github.com/harperreed/mirrorsync/sync"
)

// fakeGoogle serves the token, userinfo and calendar endpoints.
type fakeGoogle struct {
	t           *testing.T
	srv         *httptest.Server
	mu          gosync.Mutex
	inserted    []map[string]any
	rejectGrant bool
	events      map[string][]map[string]any
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	g := &fakeGoogle{t: t, events: map[string][]map[string]any{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", g.handleToken)
	mux.HandleFunc("/oauth2/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-code" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"email": "dest@example.com"})
	})
	mux.HandleFunc("/calendar/v3/users/me/calendarList", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"items": []any{}})
	})
	mux.HandleFunc("/calendar/v3/calendars/primary/events", g.handleEvents)

	g.srv = httptest.NewServer(mux)
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGoogle) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if g.rejectGrant {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Bad Request"}`))
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "refresh_token":
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "at-" + r.PostForm.Get("refresh_token"),
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	case "authorization_code":
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "at-code",
			"refresh_token": "rt-from-" + r.PostForm.Get("code"),
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (g *fakeGoogle) handleEvents(w http.ResponseWriter, r *http.Request) {
	account := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer at-")

	if r.Method == http.MethodPost {
		var body map[string]any
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		g.mu.Lock()
		g.inserted = append(g.inserted, body)
		g.mu.Unlock()
		assert.Equal(g.t, "dst", account, "inserts must go to the destination")
		writeJSON(w, http.StatusOK, map[string]string{"id": "new"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": g.events[account]})
}

func testConfig(g *fakeGoogle) *config.Config {
	cfg := config.Default()
	cfg.Google.ClientID = "client"
	cfg.Google.ClientSecret = "secret"
	cfg.Google.BaseURL = "http://mirror.test"
	if g != nil {
		cfg.Google.TokenURL = g.srv.URL + "/token"
	}
	return cfg
}

func newTestServer(t *testing.T, g *fakeGoogle, cfg *config.Config) *Server {
	t.Helper()
	opts := Options{Config: cfg}
	if g != nil {
		opts.Calendar = sync.CalendarOptions{Endpoint: g.srv.URL + "/calendar/v3/"}
		opts.UserInfoEndpoint = g.srv.URL + "/"
	}
	srv, err := NewServer(opts)
	require.NoError(t, err)
	return srv
}

func credentialCookie(t *testing.T, role models.Role, refresh string) *http.Cookie {
	t.Helper()
	value, err := sync.EncodeCredential(&models.StoredCredential{RefreshToken: refresh})
	require.NoError(t, err)
	return &http.Cookie{Name: credentialCookieName(role), Value: value}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSyncCalendar_EndToEnd(t *testing.T) {
	g := newFakeGoogle(t)
	g.events["src"] = []map[string]any{
		{"id": "1", "summary": "Standup", "start": map[string]string{"dateTime": "2024-01-01T10:00:00Z"}, "end": map[string]string{"dateTime": "2024-01-01T10:15:00Z"}},
		{"id": "2", "summary": "Retro", "start": map[string]string{"date": "2024-01-05"}, "end": map[string]string{"date": "2024-01-06"}},
	}
	g.events["dst"] = []map[string]any{
		{"id": "9", "summary": "Retro", "start": map[string]string{"date": "2024-01-05"}},
	}
	handler := newTestServer(t, g, testConfig(g)).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/google/sync/calendar", nil)
	req.AddCookie(credentialCookie(t, models.RoleSource, "src"))
	req.AddCookie(credentialCookie(t, models.RoleDestination, "dst"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["created"])
	assert.EqualValues(t, 1, body["skipped"])
	assert.EqualValues(t, 2, body["sourceCount"])
	assert.EqualValues(t, 1, body["destinationCount"])
	assert.NotEmpty(t, body["runId"])

	require.Len(t, g.inserted, 1)
	assert.Equal(t, "Standup", g.inserted[0]["summary"])
}

func TestSyncCalendar_DryRun(t *testing.T) {
	g := newFakeGoogle(t)
	g.events["src"] = []map[string]any{
		{"summary": "Standup", "start": map[string]string{"dateTime": "2024-01-01T10:00:00Z"}},
	}
	handler := newTestServer(t, g, testConfig(g)).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/google/sync/calendar?dry_run=true", nil)
	req.AddCookie(credentialCookie(t, models.RoleSource, "src"))
	req.AddCookie(credentialCookie(t, models.RoleDestination, "dst"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 1, body["created"])
	assert.Equal(t, true, body["dryRun"])
	assert.Empty(t, g.inserted)
}

func TestSync_MissingCookies(t *testing.T) {
	g := newFakeGoogle(t)
	handler := newTestServer(t, g, testConfig(g)).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/google/sync/contacts", nil)
	req.AddCookie(credentialCookie(t, models.RoleSource, "src"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing refresh tokens", decodeBody(t, rec)["error"])
}

func TestSync_CorruptCookie(t *testing.T) {
	g := newFakeGoogle(t)
	handler := newTestServer(t, g, testConfig(g)).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/google/sync/calendar", nil)
	req.AddCookie(&http.Cookie{Name: sourceCookie, Value: "not-a-credential"})
	req.AddCookie(credentialCookie(t, models.RoleDestination, "dst"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSync_TokenRefreshFailure(t *testing.T) {
	g := newFakeGoogle(t)
	g.rejectGrant = true
	handler := newTestServer(t, g, testConfig(g)).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/google/sync/calendar", nil)
	req.AddCookie(credentialCookie(t, models.RoleSource, "src"))
	req.AddCookie(credentialCookie(t, models.RoleDestination, "dst"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Failed to refresh access tokens", body["error"])
	assert.Contains(t, body["detail"], "invalid_grant")
	assert.Empty(t, g.inserted)
}

func TestSync_MissingOAuthConfig(t *testing.T) {
	cfg := config.Default()
	handler := newTestServer(t, nil, cfg).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/google/sync/calendar", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, missingOAuthConfig, decodeBody(t, rec)["error"])
}

func TestSync_MethodNotAllowed(t *testing.T) {
	handler := newTestServer(t, nil, testConfig(nil)).Handler()

	for _, path := range []string{"/api/google/sync/calendar", "/api/google/sync/contacts", "/api/google/sync/maps"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, path)
		assert.Equal(t, "Method not allowed", decodeBody(t, rec)["error"])
	}
}

func TestSync_InvalidDryRun(t *testing.T) {
	handler := newTestServer(t, nil, testConfig(nil)).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/google/sync/calendar?dry_run=maybe", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncMaps_NotImplemented(t *testing.T) {
	handler := newTestServer(t, nil, testConfig(nil)).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/google/sync/maps", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Google Maps personal data sync is not available", body["error"])
	assert.NotEmpty(t, body["details"])
}

func TestAuth_RedirectsToConsent(t *testing.T) {
	handler := newTestServer(t, nil, testConfig(nil)).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/google/destination/auth", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", location.Host)

	q := location.Query()
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "http://mirror.test/api/google/destination/callback", q.Get("redirect_uri"))
	assert.Contains(t, q.Get("scope"), "https://www.googleapis.com/auth/calendar")
	assert.True(t, strings.HasPrefix(q.Get("state"), "destination:"))

	var state *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == stateCookie {
			state = c
		}
	}
	require.NotNil(t, state)
	assert.Equal(t, q.Get("state"), state.Value)
	assert.True(t, state.HttpOnly)
}

func TestAuth_UnknownRole(t *testing.T) {
	handler := newTestServer(t, nil, testConfig(nil)).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/google/admin/auth", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuth_MissingConfig(t *testing.T) {
	handler := newTestServer(t, nil, config.Default()).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/google/source/auth", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, missingOAuthConfig, rec.Body.String())
}

func callbackRequest(target, state string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if state != "" {
		req.AddCookie(&http.Cookie{Name: stateCookie, Value: state})
	}
	return req
}

func TestCallback_DestinationConnected(t *testing.T) {
	g := newFakeGoogle(t)
	handler := newTestServer(t, g, testConfig(g)).Handler()

	state := "destination:nonce-1"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, callbackRequest("/api/google/destination/callback?code=abc&state="+url.QueryEscape(state), state))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	page := rec.Body.String()
	assert.Contains(t, page, "Destination account connected")
	assert.Contains(t, page, "Signed in as dest@example.com")
	assert.Contains(t, page, "google-destination-connected")

	var stored *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == destinationCookie {
			stored = c
		}
	}
	require.NotNil(t, stored)
	assert.True(t, stored.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, stored.SameSite)

	cred, err := sync.DecodeCredential(stored.Value)
	require.NoError(t, err)
	assert.Equal(t, "rt-from-abc", cred.RefreshToken)
	assert.Equal(t, "dest@example.com", cred.Email)
}

func TestCallback_SourcePageDoesNotNotifyOpener(t *testing.T) {
	g := newFakeGoogle(t)
	handler := newTestServer(t, g, testConfig(g)).Handler()

	state := "source:nonce-2"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, callbackRequest("/api/google/source/callback?code=xyz&state="+url.QueryEscape(state), state))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Source account connected")
	assert.NotContains(t, rec.Body.String(), "postMessage")
}

func TestCallback_Errors(t *testing.T) {
	g := newFakeGoogle(t)
	handler := newTestServer(t, g, testConfig(g)).Handler()

	tests := []struct {
		name   string
		target string
		state  string
		status int
		body   string
	}{
		{"provider error", "/api/google/source/callback?error=access_denied", "", http.StatusBadRequest, "Google returned error: access_denied"},
		{"missing code", "/api/google/source/callback", "", http.StatusBadRequest, "Missing code parameter"},
		{"no state cookie", "/api/google/source/callback?code=abc&state=source:n", "", http.StatusBadRequest, "Invalid OAuth state"},
		{"state mismatch", "/api/google/source/callback?code=abc&state=source:n", "source:other", http.StatusBadRequest, "Invalid OAuth state"},
		{"state for other role", "/api/google/source/callback?code=abc&state=destination:n", "destination:n", http.StatusBadRequest, "Invalid OAuth state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, callbackRequest(tt.target, tt.state))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.body, rec.Body.String())
		})
	}
}

func TestCallback_ExchangeFailure(t *testing.T) {
	g := newFakeGoogle(t)
	g.rejectGrant = true
	handler := newTestServer(t, g, testConfig(g)).Handler()

	state := "source:n"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, callbackRequest("/api/google/source/callback?code=abc&state="+state, state))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Token exchange failed", rec.Body.String())
}

func TestHealthz(t *testing.T) {
	handler := newTestServer(t, nil, testConfig(nil)).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestIndex_ShowsConnectionState(t *testing.T) {
	handler := newTestServer(t, nil, testConfig(nil)).Handler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	value, err := sync.EncodeCredential(&models.StoredCredential{RefreshToken: "rt", Email: "me@example.com"})
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: sourceCookie, Value: value})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	assert.Contains(t, page, "source: connected as me@example.com")
	assert.Contains(t, page, `href="/api/google/destination/auth"`)
}
