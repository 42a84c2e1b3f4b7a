// ABOUTME: Status CLI command
// ABOUTME: Shows connected accounts, per-collection sync state and recent runs
package cli

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/harperreed/mirrorsync/db"
	"github.com/harperreed/mirrorsync/models"
)

// StatusCommand prints accounts, sync state and run history.
func StatusCommand(database *sql.DB, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	limit := fs.Int("limit", 10, "Number of recent runs to show")
	collection := fs.String("collection", "", "Only show runs for this collection")
	_ = fs.Parse(args)

	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Println("Accounts")
	for _, role := range []models.Role{models.RoleSource, models.RoleDestination} {
		fmt.Printf("  %-12s ", role)
		cred, err := db.GetCredential(context.Background(), database, role)
		switch {
		case errors.Is(err, models.ErrCredentialNotFound):
			yellow.Printf("not connected (run 'mirrorsync auth %s')\n", role)
		case err != nil:
			return err
		case cred.Email != "":
			green.Println(cred.Email)
		default:
			green.Println("connected")
		}
	}

	states, err := db.GetAllSyncStates(database)
	if err != nil {
		return err
	}
	fmt.Println()
	cyan.Println("Collections")
	if len(states) == 0 {
		fmt.Println("  No runs yet")
	}
	for _, state := range states {
		fmt.Printf("  %-12s %-8s", state.Collection, state.Status)
		if state.LastSyncTime != nil {
			fmt.Printf(" last sync %s", state.LastSyncTime.Local().Format("2006-01-02 15:04"))
		}
		if state.ErrorMessage != nil && *state.ErrorMessage != "" {
			color.New(color.FgRed).Printf(" (%s)", *state.ErrorMessage)
		}
		fmt.Println()
	}

	runs, err := db.ListRuns(database, *collection, *limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return nil
	}

	fmt.Println()
	cyan.Println("Recent runs")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "  STARTED\tCOLLECTION\tSTATUS\tCREATED\tSKIPPED\tSOURCE\tDEST\tDURATION")
	for _, run := range runs {
		status := run.Status
		if run.DryRun {
			status += " (dry)"
		}
		_, _ = fmt.Fprintf(w, "  %s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.Collection,
			status,
			run.Created,
			run.Skipped,
			run.SourceCount,
			run.DestCount,
			run.Duration().Round(time.Millisecond),
		)
	}
	return w.Flush()
}
