// ABOUTME: HTTP front for mirror runs, OAuth consent and the page proxy
// ABOUTME: Routes sync requests to the run pipeline using cookie-held credentials
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/harperreed/mirrorsync/config"
	"github.com/harperreed/mirrorsync/models"
	"github.com/harperreed/mirrorsync/sync"
)

//go:embed templates/*
var templatesFS embed.FS

const missingOAuthConfig = "Missing Google OAuth env vars"

// Options wires the server to its collaborators.
type Options struct {
	Config *config.Config
	// Tokens resolves refresh tokens. Nil builds a resolver from Config.
	Tokens   sync.TokenExchanger
	Recorder sync.RunRecorder
	Logger   *slog.Logger
	// HTTPClient is used for OAuth code exchange, userinfo and the proxy.
	HTTPClient *http.Client
	Client     sync.ClientOptions
	Calendar   sync.CalendarOptions
	People     sync.PeopleOptions
	// UserInfoEndpoint overrides the Google userinfo API base URL.
	UserInfoEndpoint string
}

type Server struct {
	cfg        *config.Config
	tokens     sync.TokenExchanger
	recorder   sync.RunRecorder
	logger     *slog.Logger
	httpClient *http.Client
	client     sync.ClientOptions
	calendar   sync.CalendarOptions
	people     sync.PeopleOptions
	userInfo   string
	templates  *template.Template
	httpServer *http.Server
}

func NewServer(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}

	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Config.Sync.RequestTimeout}
	}

	s := &Server{
		cfg:        opts.Config,
		tokens:     opts.Tokens,
		recorder:   opts.Recorder,
		logger:     logger.With("component", "web"),
		httpClient: httpClient,
		client:     opts.Client,
		calendar:   opts.Calendar,
		people:     opts.People,
		userInfo:   opts.UserInfoEndpoint,
		templates:  tmpl,
	}

	if s.tokens == nil && opts.Config.HasGoogleClient() {
		resolver, err := sync.NewTokenResolver(s.oauthSettings(models.RoleSource), httpClient)
		if err != nil {
			return nil, err
		}
		s.tokens = resolver
	}

	return s, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/google/sync/calendar", s.handleSyncCalendar)
	mux.HandleFunc("/api/google/sync/contacts", s.handleSyncContacts)
	mux.HandleFunc("/api/google/sync/maps", s.handleSyncMaps)
	mux.HandleFunc("/api/google/{role}/auth", s.handleAuth)
	mux.HandleFunc("/api/google/{role}/callback", s.handleCallback)
	mux.HandleFunc("/api/proxy", s.handleProxy)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	return mux
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting web server", "addr", ln.Addr().String())
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down web server")
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) oauthSettings(role models.Role) sync.OAuthSettings {
	return sync.OAuthSettings{
		ClientID:     s.cfg.Google.ClientID,
		ClientSecret: s.cfg.Google.ClientSecret,
		RedirectURL:  s.cfg.RedirectURL(string(role)),
		TokenURL:     s.cfg.Google.TokenURL,
	}
}

func (s *Server) handleSyncCalendar(w http.ResponseWriter, r *http.Request) {
	runner, dryRun, ok := s.prepareRun(w, r)
	if !ok {
		return
	}
	job := sync.CalendarJob(s.calendar)
	job.DryRun = dryRun
	result, err := sync.Execute(r.Context(), runner, job)
	s.writeRunResult(w, result, err)
}

func (s *Server) handleSyncContacts(w http.ResponseWriter, r *http.Request) {
	runner, dryRun, ok := s.prepareRun(w, r)
	if !ok {
		return
	}
	job := sync.ContactsJob(s.people)
	job.DryRun = dryRun
	result, err := sync.Execute(r.Context(), runner, job)
	s.writeRunResult(w, result, err)
}

func (s *Server) handleSyncMaps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}
	writeJSON(w, http.StatusNotImplemented, map[string]string{
		"error":   "Google Maps personal data sync is not available",
		"details": "Google does not provide an official API to read or write personal saved places, timeline, or starred locations between accounts.",
	})
}

// prepareRun validates the request and builds a runner over the request's cookies.
func (s *Server) prepareRun(w http.ResponseWriter, r *http.Request) (*sync.Runner, bool, bool) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return nil, false, false
	}
	if s.tokens == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": missingOAuthConfig})
		return nil, false, false
	}

	dryRun := false
	if v := r.URL.Query().Get("dry_run"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "dry_run must be a boolean"})
			return nil, false, false
		}
		dryRun = parsed
	}

	opts := []sync.RunnerOption{
		sync.WithClientOptions(s.client),
		sync.WithLogger(s.logger),
	}
	if s.recorder != nil {
		opts = append(opts, sync.WithRecorder(s.recorder))
	}

	return sync.NewRunner(s.tokens, cookieStore{r: r}, opts...), dryRun, true
}

func (s *Server) writeRunResult(w http.ResponseWriter, result *models.RunResult, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, result)
		return
	}

	body := map[string]string{"error": err.Error()}
	var runErr *sync.RunError
	if errors.As(err, &runErr) {
		body["error"] = runErr.Message
		if runErr.Detail != "" {
			body["detail"] = runErr.Detail
		}
	}
	writeJSON(w, sync.StatusOf(err), body)
}

type roleView struct {
	Role      models.Role
	Label     string
	Connected bool
	Email     string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	store := cookieStore{r: r}
	var roles []roleView
	for _, role := range []models.Role{models.RoleSource, models.RoleDestination} {
		view := roleView{Role: role, Label: string(role)}
		if cred, err := store.Get(r.Context(), role); err == nil && cred.RefreshToken != "" {
			view.Connected = true
			view.Email = cred.Email
		}
		roles = append(roles, view)
	}

	s.renderTemplate(w, http.StatusOK, "index.html", map[string]any{
		"Title": "mirrorsync",
		"Roles": roles,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) renderTemplate(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("template error", "template", name, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
