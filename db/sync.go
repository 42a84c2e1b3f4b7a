// ABOUTME: Database operations for sync_state and sync_runs tables
// ABOUTME: Tracks per-collection status and records the history of mirror runs
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/mirrorsync/models"
)

// Sync state values.
const (
	StateIdle    = "idle"
	StateSyncing = "syncing"
	StateError   = "error"
)

// SyncState represents the sync state for a collection.
type SyncState struct {
	Collection   string     `json:"collection"`
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
	LastRunID    *string    `json:"last_run_id,omitempty"`
	Status       string     `json:"status"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// GetSyncState retrieves the sync state for a collection, or nil if it never ran.
func GetSyncState(db *sql.DB, collection string) (*SyncState, error) {
	row := db.QueryRow(`
		SELECT collection, last_sync_time, last_run_id, status, error_message, created_at, updated_at
		FROM sync_state
		WHERE collection = ?
	`, collection)

	state, err := scanSyncState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	return state, nil
}

// UpdateSyncStatus updates the sync status for a collection.
func UpdateSyncStatus(db *sql.DB, collection, status string, errorMsg *string) error {
	var errorMsgVal sql.NullString
	if errorMsg != nil {
		errorMsgVal = sql.NullString{String: *errorMsg, Valid: true}
	}

	_, err := db.Exec(`
		INSERT INTO sync_state (collection, status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(collection) DO UPDATE SET
			status = excluded.status,
			error_message = excluded.error_message,
			updated_at = CURRENT_TIMESTAMP
	`, collection, status, errorMsgVal)

	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}

	return nil
}

// MarkSyncCompleted records a successful run for a collection.
func MarkSyncCompleted(db *sql.DB, collection, runID string, finishedAt time.Time) error {
	_, err := db.Exec(`
		INSERT INTO sync_state (collection, last_sync_time, last_run_id, status, created_at, updated_at)
		VALUES (?, ?, ?, 'idle', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(collection) DO UPDATE SET
			last_sync_time = excluded.last_sync_time,
			last_run_id = excluded.last_run_id,
			status = 'idle',
			error_message = NULL,
			updated_at = CURRENT_TIMESTAMP
	`, collection, finishedAt, runID)

	if err != nil {
		return fmt.Errorf("failed to mark sync completed: %w", err)
	}

	return nil
}

// GetAllSyncStates retrieves the sync state for all collections.
func GetAllSyncStates(db *sql.DB) ([]SyncState, error) {
	rows, err := db.Query(`
		SELECT collection, last_sync_time, last_run_id, status, error_message, created_at, updated_at
		FROM sync_state
		ORDER BY collection
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var states []SyncState
	for rows.Next() {
		state, err := scanSyncState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync state: %w", err)
		}
		states = append(states, *state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync states: %w", err)
	}

	return states, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSyncState(row scanner) (*SyncState, error) {
	var state SyncState
	var lastSyncTime sql.NullTime
	var lastRunID sql.NullString
	var status sql.NullString
	var errorMessage sql.NullString

	err := row.Scan(
		&state.Collection,
		&lastSyncTime,
		&lastRunID,
		&status,
		&errorMessage,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	state.Status = status.String
	if lastSyncTime.Valid {
		state.LastSyncTime = &lastSyncTime.Time
	}
	if lastRunID.Valid {
		state.LastRunID = &lastRunID.String
	}
	if errorMessage.Valid {
		state.ErrorMessage = &errorMessage.String
	}

	return &state, nil
}

// RunLog records mirror runs into sync_runs and keeps sync_state current.
type RunLog struct {
	db *sql.DB
}

// NewRunLog creates a run recorder backed by db.
func NewRunLog(db *sql.DB) *RunLog {
	return &RunLog{db: db}
}

// RunStarted inserts a running row and flags the collection as syncing.
func (l *RunLog) RunStarted(ctx context.Context, run models.RunRecord) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, collection, status, dry_run, started_at)
		VALUES (?, ?, 'running', ?, ?)
	`, run.ID, run.Collection, run.DryRun, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}

	return UpdateSyncStatus(l.db, run.Collection, StateSyncing, nil)
}

// RunFinished stores the outcome of a run. Dry runs do not advance last_sync_time.
func (l *RunLog) RunFinished(ctx context.Context, run models.RunRecord) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, collection, status, dry_run, created, skipped, source_count,
			destination_count, unevaluated, error_stage, error_message, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			created = excluded.created,
			skipped = excluded.skipped,
			source_count = excluded.source_count,
			destination_count = excluded.destination_count,
			unevaluated = excluded.unevaluated,
			error_stage = excluded.error_stage,
			error_message = excluded.error_message,
			finished_at = excluded.finished_at
	`, run.ID, run.Collection, run.Status, run.DryRun, run.Created, run.Skipped, run.SourceCount,
		run.DestCount, run.Unevaluated, nullString(run.ErrorStage), nullString(run.ErrorMessage),
		run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to record run result: %w", err)
	}

	switch {
	case run.Status == models.StatusError:
		msg := run.ErrorMessage
		return UpdateSyncStatus(l.db, run.Collection, StateError, &msg)
	case run.DryRun:
		return UpdateSyncStatus(l.db, run.Collection, StateIdle, nil)
	default:
		return MarkSyncCompleted(l.db, run.Collection, run.ID, run.FinishedAt)
	}
}

// ListRuns returns the most recent runs, newest first. A non-empty
// collection filters the history.
func ListRuns(db *sql.DB, collection string, limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, collection, status, dry_run, created, skipped, source_count, destination_count,
			unevaluated, error_stage, error_message, started_at, finished_at
		FROM sync_runs
	`
	args := []any{}
	if collection != "" {
		query += ` WHERE collection = ?`
		args = append(args, collection)
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []models.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// GetRun retrieves one run by id, or nil if unknown.
func GetRun(db *sql.DB, id string) (*models.RunRecord, error) {
	row := db.QueryRow(`
		SELECT id, collection, status, dry_run, created, skipped, source_count, destination_count,
			unevaluated, error_stage, error_message, started_at, finished_at
		FROM sync_runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

func scanRun(row scanner) (*models.RunRecord, error) {
	var run models.RunRecord
	var errorStage, errorMessage sql.NullString
	var finishedAt sql.NullTime

	err := row.Scan(
		&run.ID,
		&run.Collection,
		&run.Status,
		&run.DryRun,
		&run.Created,
		&run.Skipped,
		&run.SourceCount,
		&run.DestCount,
		&run.Unevaluated,
		&errorStage,
		&errorMessage,
		&run.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	run.ErrorStage = errorStage.String
	run.ErrorMessage = errorMessage.String
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}

	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
