// ABOUTME: MCP prompt handlers for reviewing mirror runs
// ABOUTME: Builds prompts that summarize recent run history for a collection
package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/mirrorsync/db"
	"github.com/harperreed/mirrorsync/models"
)

type PromptHandlers struct {
	db *sql.DB
}

func NewPromptHandlers(database *sql.DB) *PromptHandlers {
	return &PromptHandlers{db: database}
}

// Prompts lists the prompts this handler serves.
func (h *PromptHandlers) Prompts() []*mcp.Prompt {
	return []*mcp.Prompt{
		{
			Name:        "run-review",
			Description: "Review recent mirror runs and explain failures or skipped records",
			Arguments: []*mcp.PromptArgument{
				{Name: "collection", Description: "calendar or contacts (default: all)"},
				{Name: "limit", Description: "How many runs to include (default 10)"},
			},
		},
	}
}

// GetPrompt generates the prompt message based on the template
func (h *PromptHandlers) GetPrompt(_ context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	switch request.Params.Name {
	case "run-review":
		return h.getRunReviewPrompt(request.Params.Arguments)
	default:
		return nil, fmt.Errorf("unknown prompt: %s", request.Params.Name)
	}
}

func (h *PromptHandlers) getRunReviewPrompt(args map[string]string) (*mcp.GetPromptResult, error) {
	collection := args["collection"]
	switch collection {
	case "", models.CollectionCalendar, models.CollectionContacts:
	default:
		return nil, fmt.Errorf("unknown collection %q", collection)
	}

	limit := 10
	if v := args["limit"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid limit: %q", v)
		}
		limit = n
	}

	runs, err := db.ListRuns(h.db, collection, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch runs: %w", err)
	}

	scope := "all collections"
	if collection != "" {
		scope = collection
	}

	var promptText strings.Builder
	promptText.WriteString(fmt.Sprintf("Please review the most recent mirror runs for %s:\n\n", scope))
	if len(runs) == 0 {
		promptText.WriteString("No runs have been recorded yet.\n")
	}
	for _, run := range runs {
		promptText.WriteString(fmt.Sprintf("- %s %s %s: created=%d skipped=%d source=%d destination=%d",
			run.StartedAt.Format("2006-01-02 15:04"), run.Collection, run.Status,
			run.Created, run.Skipped, run.SourceCount, run.DestCount))
		if run.Unevaluated > 0 {
			promptText.WriteString(fmt.Sprintf(" unevaluated=%d", run.Unevaluated))
		}
		if run.DryRun {
			promptText.WriteString(" (dry run)")
		}
		if run.ErrorMessage != "" {
			promptText.WriteString(fmt.Sprintf(" error[%s]=%s", run.ErrorStage, run.ErrorMessage))
		}
		promptText.WriteString("\n")
	}

	promptText.WriteString("\nPlease explain whether the mirror is healthy, ")
	promptText.WriteString("why records may have been skipped or left unevaluated, ")
	promptText.WriteString("and what to do about any failed runs.")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Run review for %s", scope),
		Messages: []*mcp.PromptMessage{
			{
				Role: "user",
				Content: &mcp.TextContent{
					Text: promptText.String(),
				},
			},
		},
	}, nil
}
