// ABOUTME: MCP server subcommand
// ABOUTME: Starts the MCP server exposing mirror runs and run history over stdio
package cli

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/mirrorsync/config"
	"github.com/harperreed/mirrorsync/handlers"
	"github.com/harperreed/mirrorsync/sync"
)

// NewMCPServer registers the mirrorsync tools, resources and prompts. Sync
// tools are only offered when an OAuth client is configured.
func NewMCPServer(cfg *config.Config, database *sql.DB, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "mirrorsync",
		Version: version,
	}, nil)

	runner, err := newRunner(cfg, database)
	syncHandlers := handlers.NewSyncHandlers(database, runner,
		sync.CalendarJob(calendarOptions(cfg)),
		sync.ContactsJob(peopleOptions(cfg)),
	)

	if err != nil {
		slog.Warn("sync tools disabled", "error", err)
	} else {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "sync_calendar",
			Description: "Copy calendar events from the source account into the destination's primary calendar, skipping events it already has",
		}, syncHandlers.SyncCalendar)

		mcp.AddTool(server, &mcp.Tool{
			Name:        "sync_contacts",
			Description: "Copy contacts from the source account into the destination account, skipping email addresses it already has",
		}, syncHandlers.SyncContacts)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_runs",
		Description: "List recent mirror runs with their counts and errors, newest first",
	}, syncHandlers.ListRuns)

	resourceHandlers := handlers.NewResourceHandlers(database)
	for _, resource := range resourceHandlers.Resources() {
		server.AddResource(resource, resourceHandlers.ReadResource)
	}

	promptHandlers := handlers.NewPromptHandlers(database)
	for _, prompt := range promptHandlers.Prompts() {
		server.AddPrompt(prompt, promptHandlers.GetPrompt)
	}

	return server
}

// MCPCommand starts the MCP server on stdio
func MCPCommand(ctx context.Context, cfg *config.Config, database *sql.DB, version string) error {
	slog.Info("starting mirrorsync MCP server")
	return NewMCPServer(cfg, database, version).Run(ctx, &mcp.StdioTransport{})
}
