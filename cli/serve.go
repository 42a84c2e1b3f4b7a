// ABOUTME: Serve CLI command
// ABOUTME: Runs the HTTP front until interrupted
package cli

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"

	"github.com/harperreed/mirrorsync/config"
	"github.com/harperreed/mirrorsync/db"
	"github.com/harperreed/mirrorsync/web"
)

// ServeCommand starts the web server. Runs triggered over HTTP are recorded
// in database alongside CLI runs.
func ServeCommand(ctx context.Context, cfg *config.Config, database *sql.DB, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", cfg.Server.HTTPAddr, "HTTP listen address")
	_ = fs.Parse(args)

	if !cfg.HasGoogleClient() {
		slog.Warn("Google OAuth client not configured; sign-in and sync endpoints will answer 500")
	}

	server, err := web.NewServer(web.Options{
		Config:           cfg,
		Recorder:         db.NewRunLog(database),
		Logger:           slog.Default(),
		Client:           clientOptions(cfg),
		Calendar:         calendarOptions(cfg),
		People:           peopleOptions(cfg),
		UserInfoEndpoint: cfg.APIEndpoint(""),
	})
	if err != nil {
		return err
	}

	return server.Start(ctx, *addr)
}
