// ABOUTME: Google account CLI commands
// ABOUTME: Handles loopback OAuth consent, credential removal and one-shot mirror runs
package cli

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/harperreed/mirrorsync/config"
	"github.com/harperreed/mirrorsync/db"
	"github.com/harperreed/mirrorsync/models"
	"github.com/harperreed/mirrorsync/sync"
)

// ErrMapsUnsupported is returned for the maps collection, which has no API.
var ErrMapsUnsupported = errors.New("maps sync is not available: Google does not provide an official API to read or write saved places between accounts")

// openURL is replaced in tests.
var openURL = openBrowser

// AuthCommand captures a refresh token for one role through a loopback redirect.
func AuthCommand(cfg *config.Config, database *sql.DB, args []string) error {
	fs := flag.NewFlagSet("auth", flag.ExitOnError)
	timeout := fs.Duration("timeout", 5*time.Minute, "How long to wait for consent in the browser")
	noBrowser := fs.Bool("no-browser", false, "Print the consent URL without opening a browser")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: mirrorsync auth [--timeout 5m] [--no-browser] <source|destination>")
	}
	role, err := models.ParseRole(fs.Arg(0))
	if err != nil {
		return err
	}

	oauthConfig, err := sync.NewOAuthConfig(oauthSettings(cfg, role), role)
	if err != nil {
		return fmt.Errorf("missing Google OAuth client: set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
	}

	callback, err := url.Parse(oauthConfig.RedirectURL)
	if err != nil {
		return fmt.Errorf("invalid redirect URL %q: %w", oauthConfig.RedirectURL, err)
	}

	ln, err := net.Listen("tcp", callback.Host)
	if err != nil {
		return fmt.Errorf("failed to listen for OAuth callback on %s: %w", callback.Host, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	httpClient := &http.Client{Timeout: cfg.Sync.RequestTimeout}
	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	state := string(role) + ":" + uuid.NewString()

	// Start local server for OAuth callback
	tokenChan := make(chan *oauth2.Token, 1)
	errChan := make(chan error, 1)
	fail := func(err error) {
		select {
		case errChan <- err:
		default:
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc(callback.Path, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if e := query.Get("error"); e != "" {
			http.Error(w, "Google returned error: "+e, http.StatusBadRequest)
			fail(fmt.Errorf("google returned error: %s", e))
			return
		}
		if query.Get("state") != state {
			http.Error(w, "Invalid OAuth state", http.StatusBadRequest)
			return
		}
		code := query.Get("code")
		if code == "" {
			http.Error(w, "Missing code parameter", http.StatusBadRequest)
			return
		}

		token, err := oauthConfig.Exchange(exchangeCtx, code)
		if err != nil {
			http.Error(w, "Token exchange failed", http.StatusBadGateway)
			fail(fmt.Errorf("failed to exchange code: %w", err))
			return
		}
		if token.RefreshToken == "" {
			http.Error(w, "Google did not return a refresh token", http.StatusBadGateway)
			fail(fmt.Errorf("google did not return a refresh token; revoke access and try again"))
			return
		}

		_, _ = fmt.Fprintf(w, "Authorization successful! You can close this window.")
		select {
		case tokenChan <- token:
		default:
		}
	})

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fail(err)
		}
	}()
	defer func() { _ = server.Close() }()

	authURL := oauthConfig.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)

	fmt.Printf("Authorizing the %s account...\n", role)
	fmt.Printf("\nIf browser doesn't open, visit this URL:\n%s\n\n", authURL)
	if !*noBrowser {
		_ = openURL(authURL)
	}

	var token *oauth2.Token
	select {
	case token = <-tokenChan:
	case err := <-errChan:
		return fmt.Errorf("OAuth flow failed: %w", err)
	case <-ctx.Done():
		return fmt.Errorf("OAuth flow failed: no callback within %s", *timeout)
	}

	email, err := sync.LookupEmail(ctx, token, sync.ClientOptions{Timeout: cfg.Sync.RequestTimeout}, cfg.APIEndpoint(""))
	if err != nil {
		slog.Warn("failed to read account email", "role", role, "error", err)
	}

	cred := &models.StoredCredential{
		RefreshToken: token.RefreshToken,
		Email:        email,
		Provider:     "google",
		Scopes:       oauthConfig.Scopes,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.SaveCredential(database, role, cred); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Authenticated %s account", role)
	if email != "" {
		fmt.Printf(" (%s)", email)
	}
	fmt.Println()
	return nil
}

// LogoutCommand forgets the stored credential for a role.
func LogoutCommand(database *sql.DB, args []string) error {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: mirrorsync logout <source|destination>")
	}
	role, err := models.ParseRole(fs.Arg(0))
	if err != nil {
		return err
	}

	if err := db.DeleteCredential(database, role); err != nil {
		return err
	}
	color.New(color.FgGreen).Printf("✓ Removed %s credential\n", role)
	return nil
}

// SyncCommand runs one mirror of a collection using the stored credentials.
func SyncCommand(ctx context.Context, cfg *config.Config, database *sql.DB, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "Count what would be created without writing to the destination")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: mirrorsync sync [--dry-run] <calendar|contacts>")
	}

	runner, err := newRunner(cfg, database)
	if err != nil {
		return err
	}

	var result *models.RunResult
	switch fs.Arg(0) {
	case models.CollectionCalendar:
		job := sync.CalendarJob(calendarOptions(cfg))
		job.DryRun = *dryRun
		result, err = sync.Execute(ctx, runner, job)
	case models.CollectionContacts:
		job := sync.ContactsJob(peopleOptions(cfg))
		job.DryRun = *dryRun
		result, err = sync.Execute(ctx, runner, job)
	case models.CollectionMaps:
		return ErrMapsUnsupported
	default:
		return fmt.Errorf("unknown collection %q (want calendar or contacts)", fs.Arg(0))
	}
	if err != nil {
		return err
	}

	printRunResult(result)
	return nil
}

func printRunResult(result *models.RunResult) {
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	if result.DryRun {
		yellow.Printf("Dry run of %s: nothing was written\n", result.Collection)
	} else {
		green.Printf("✓ Mirrored %s\n", result.Collection)
	}
	cyan.Printf("  Run:          ")
	fmt.Println(result.RunID)
	cyan.Printf("  Created:      ")
	fmt.Println(result.Created)
	cyan.Printf("  Skipped:      ")
	fmt.Println(result.Skipped)
	cyan.Printf("  Source:       ")
	fmt.Println(result.SourceCount)
	cyan.Printf("  Destination:  ")
	fmt.Println(result.DestinationCount)
	if result.Unevaluated > 0 {
		yellow.Printf("  Unevaluated:  ")
		fmt.Printf("%d (create cap reached, run again to continue)\n", result.Unevaluated)
	}
}

// openBrowser attempts to open URL in default browser
func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		cmd = "xdg-open"
		args = []string{url}
	}

	command := exec.Command(cmd, args...)
	return command.Start()
}
