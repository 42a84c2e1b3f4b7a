// ABOUTME: Builders shared by commands that run mirrors
// ABOUTME: Turns configuration into OAuth settings, client options and a runner over SQLite
package cli

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/harperreed/mirrorsync/config"
	"github.com/harperreed/mirrorsync/db"
	"github.com/harperreed/mirrorsync/models"
	"github.com/harperreed/mirrorsync/sync"
)

func oauthSettings(cfg *config.Config, role models.Role) sync.OAuthSettings {
	return sync.OAuthSettings{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.RedirectURL(string(role)),
		TokenURL:     cfg.Google.TokenURL,
	}
}

func clientOptions(cfg *config.Config) sync.ClientOptions {
	return sync.ClientOptions{
		RequestsPerSecond: cfg.Sync.RequestsPerSecond,
		Timeout:           cfg.Sync.RequestTimeout,
	}
}

func calendarOptions(cfg *config.Config) sync.CalendarOptions {
	return sync.CalendarOptions{
		WindowDays: cfg.Sync.WindowDays,
		Endpoint:   cfg.APIEndpoint("calendar/v3/"),
	}
}

func peopleOptions(cfg *config.Config) sync.PeopleOptions {
	return sync.PeopleOptions{Endpoint: cfg.APIEndpoint("")}
}

// newRunner builds a runner that reads credentials from and records runs into
// database. opts are applied after the defaults.
func newRunner(cfg *config.Config, database *sql.DB, opts ...sync.RunnerOption) (*sync.Runner, error) {
	resolver, err := sync.NewTokenResolver(
		oauthSettings(cfg, models.RoleSource),
		&http.Client{Timeout: cfg.Sync.RequestTimeout},
	)
	if err != nil {
		return nil, fmt.Errorf("missing Google OAuth client: set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
	}

	defaults := []sync.RunnerOption{
		sync.WithRecorder(db.NewRunLog(database)),
		sync.WithClientOptions(clientOptions(cfg)),
		sync.WithLogger(slog.Default()),
	}
	return sync.NewRunner(resolver, db.NewCredentialStore(database), append(defaults, opts...)...), nil
}
