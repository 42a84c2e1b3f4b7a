// ABOUTME: MCP resource handlers for exposing run history
// ABOUTME: Provides read-only access to recent runs and per-collection sync state via URI
package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/mirrorsync/db"
)

const resourceScheme = "mirrorsync://"

type ResourceHandlers struct {
	db *sql.DB
}

func NewResourceHandlers(database *sql.DB) *ResourceHandlers {
	return &ResourceHandlers{db: database}
}

// Resources lists the static resources this handler serves.
func (h *ResourceHandlers) Resources() []*mcp.Resource {
	return []*mcp.Resource{
		{
			URI:         resourceScheme + "runs",
			Name:        "runs",
			Description: "Most recent mirror runs across all collections",
			MIMEType:    "application/json",
		},
		{
			URI:         resourceScheme + "state",
			Name:        "state",
			Description: "Last completed run and current status per collection",
			MIMEType:    "application/json",
		},
	}
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(_ context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, resourceScheme) {
		return nil, fmt.Errorf("invalid URI scheme: expected %s", resourceScheme)
	}

	parts := strings.Split(strings.TrimPrefix(uri, resourceScheme), "/")
	switch parts[0] {
	case "runs":
		if len(parts) == 1 {
			return h.readRuns(uri)
		}
		return h.readRun(uri, parts[1])
	case "state":
		return h.readState(uri)
	default:
		return nil, fmt.Errorf("unknown resource: %s", parts[0])
	}
}

func (h *ResourceHandlers) readRuns(uri string) (*mcp.ReadResourceResult, error) {
	runs, err := db.ListRuns(h.db, "", 50)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch runs: %w", err)
	}

	out := make([]RunOutput, len(runs))
	for i, run := range runs {
		out[i] = runToOutput(run)
	}
	return jsonResource(uri, out)
}

func (h *ResourceHandlers) readRun(uri, id string) (*mcp.ReadResourceResult, error) {
	run, err := db.GetRun(h.db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return jsonResource(uri, runToOutput(*run))
}

func (h *ResourceHandlers) readState(uri string) (*mcp.ReadResourceResult, error) {
	states, err := db.GetAllSyncStates(h.db)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sync state: %w", err)
	}
	return jsonResource(uri, states)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}

	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}
