// ABOUTME: Sync MCP tool handlers
// ABOUTME: Implements sync_calendar, sync_contacts and list_runs over the run pipeline and history
package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/mirrorsync/db"
	"github.com/harperreed/mirrorsync/models"
	"github.com/harperreed/mirrorsync/sync"
)

type SyncHandlers struct {
	db       *sql.DB
	runner   *sync.Runner
	calendar sync.Job[sync.Event]
	contacts sync.Job[sync.Contact]
}

func NewSyncHandlers(database *sql.DB, runner *sync.Runner, calendar sync.Job[sync.Event], contacts sync.Job[sync.Contact]) *SyncHandlers {
	return &SyncHandlers{
		db:       database,
		runner:   runner,
		calendar: calendar,
		contacts: contacts,
	}
}

type SyncInput struct {
	DryRun bool `json:"dry_run,omitempty" jsonschema:"Count what would be created without writing to the destination"`
}

type SyncOutput struct {
	RunID            string `json:"run_id"`
	Collection       string `json:"collection"`
	Status           string `json:"status"`
	Created          int    `json:"created"`
	Skipped          int    `json:"skipped"`
	SourceCount      int    `json:"source_count"`
	DestinationCount int    `json:"destination_count"`
	Unevaluated      int    `json:"unevaluated"`
	DryRun           bool   `json:"dry_run"`
}

func (h *SyncHandlers) SyncCalendar(ctx context.Context, _ *mcp.CallToolRequest, input SyncInput) (*mcp.CallToolResult, SyncOutput, error) {
	job := h.calendar
	job.DryRun = input.DryRun
	result, err := sync.Execute(ctx, h.runner, job)
	if err != nil {
		return nil, SyncOutput{}, toolError(err)
	}
	return nil, syncOutput(result), nil
}

func (h *SyncHandlers) SyncContacts(ctx context.Context, _ *mcp.CallToolRequest, input SyncInput) (*mcp.CallToolResult, SyncOutput, error) {
	job := h.contacts
	job.DryRun = input.DryRun
	result, err := sync.Execute(ctx, h.runner, job)
	if err != nil {
		return nil, SyncOutput{}, toolError(err)
	}
	return nil, syncOutput(result), nil
}

type ListRunsInput struct {
	Collection string `json:"collection,omitempty" jsonschema:"Only runs for this collection (calendar or contacts)"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum runs to return (default 20)"`
}

type RunOutput struct {
	ID           string `json:"id"`
	Collection   string `json:"collection"`
	Status       string `json:"status"`
	DryRun       bool   `json:"dry_run"`
	Created      int    `json:"created"`
	Skipped      int    `json:"skipped"`
	SourceCount  int    `json:"source_count"`
	DestCount    int    `json:"destination_count"`
	Unevaluated  int    `json:"unevaluated"`
	ErrorStage   string `json:"error_stage,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	StartedAt    string `json:"started_at"`
	FinishedAt   string `json:"finished_at,omitempty"`
}

type ListRunsOutput struct {
	Runs []RunOutput `json:"runs"`
}

func (h *SyncHandlers) ListRuns(_ context.Context, _ *mcp.CallToolRequest, input ListRunsInput) (*mcp.CallToolResult, ListRunsOutput, error) {
	switch input.Collection {
	case "", models.CollectionCalendar, models.CollectionContacts:
	default:
		return nil, ListRunsOutput{}, fmt.Errorf("unknown collection %q", input.Collection)
	}

	runs, err := db.ListRuns(h.db, input.Collection, input.Limit)
	if err != nil {
		return nil, ListRunsOutput{}, fmt.Errorf("failed to list runs: %w", err)
	}

	output := ListRunsOutput{Runs: make([]RunOutput, len(runs))}
	for i, run := range runs {
		output.Runs[i] = runToOutput(run)
	}
	return nil, output, nil
}

func syncOutput(result *models.RunResult) SyncOutput {
	return SyncOutput{
		RunID:            result.RunID,
		Collection:       result.Collection,
		Status:           result.Status,
		Created:          result.Created,
		Skipped:          result.Skipped,
		SourceCount:      result.SourceCount,
		DestinationCount: result.DestinationCount,
		Unevaluated:      result.Unevaluated,
		DryRun:           result.DryRun,
	}
}

func runToOutput(run models.RunRecord) RunOutput {
	out := RunOutput{
		ID:           run.ID,
		Collection:   run.Collection,
		Status:       run.Status,
		DryRun:       run.DryRun,
		Created:      run.Created,
		Skipped:      run.Skipped,
		SourceCount:  run.SourceCount,
		DestCount:    run.DestCount,
		Unevaluated:  run.Unevaluated,
		ErrorStage:   run.ErrorStage,
		ErrorMessage: run.ErrorMessage,
		StartedAt:    run.StartedAt.Format(time.RFC3339),
	}
	if !run.FinishedAt.IsZero() {
		out.FinishedAt = run.FinishedAt.Format(time.RFC3339)
	}
	return out
}

// toolError flattens a run failure into its message and detail.
func toolError(err error) error {
	var runErr *sync.RunError
	if !errors.As(err, &runErr) {
		return err
	}
	if runErr.Detail != "" {
		return fmt.Errorf("%s: %s", runErr.Message, runErr.Detail)
	}
	return errors.New(runErr.Message)
}
