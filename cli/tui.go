// ABOUTME: Dashboard CLI command
// ABOUTME: Opens the interactive terminal dashboard wired to the SQLite-backed runner
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/harperreed/mirrorsync/config"
	"github.com/harperreed/mirrorsync/models"
	"github.com/harperreed/mirrorsync/sync"
	"github.com/harperreed/mirrorsync/tui"
)

// syncFunc adapts the runner to the dashboard. Logging is discarded so it
// does not draw over the alternate screen.
func syncFunc(cfg *config.Config, database *sql.DB) (tui.SyncFunc, error) {
	runner, err := newRunner(cfg, database, sync.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, collection string, dryRun bool) (*models.RunResult, error) {
		switch collection {
		case models.CollectionCalendar:
			job := sync.CalendarJob(calendarOptions(cfg))
			job.DryRun = dryRun
			return sync.Execute(ctx, runner, job)
		case models.CollectionContacts:
			job := sync.ContactsJob(peopleOptions(cfg))
			job.DryRun = dryRun
			return sync.Execute(ctx, runner, job)
		case models.CollectionMaps:
			return nil, ErrMapsUnsupported
		}
		return nil, fmt.Errorf("unknown collection %q", collection)
	}, nil
}

// TUICommand opens the dashboard. Without an OAuth client it is read-only.
func TUICommand(cfg *config.Config, database *sql.DB) error {
	run, err := syncFunc(cfg, database)
	if err != nil {
		slog.Warn("syncing disabled in dashboard", "error", err)
	}
	return tui.Run(database, run)
}
