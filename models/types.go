// ABOUTME: Data models shared by the sync engine, storage and HTTP front
// ABOUTME: Defines roles, stored credentials, run results and run history records
package models

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Role identifies which side of a mirror a credential belongs to.
type Role string

const (
	RoleSource      Role = "source"
	RoleDestination Role = "destination"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleSource:
		return RoleSource, nil
	case RoleDestination:
		return RoleDestination, nil
	}
	return "", fmt.Errorf("invalid role %q (want source or destination)", s)
}

// ErrCredentialNotFound is returned by credential stores when no credential
// has been captured for a role.
var ErrCredentialNotFound = errors.New("credential not found")

// ErrCredentialInvalid is returned when a stored credential cannot be decoded.
var ErrCredentialInvalid = errors.New("credential invalid")

// StoredCredential is the persisted result of an OAuth consent.
type StoredCredential struct {
	RefreshToken string    `json:"refresh_token"`
	Email        string    `json:"email,omitempty"`
	Provider     string    `json:"provider,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// String never includes the refresh token.
func (c StoredCredential) String() string {
	return fmt.Sprintf("credential(provider=%s email=%s refresh_token=[redacted])", c.Provider, c.Email)
}

// LogValue keeps the refresh token out of structured logs.
func (c StoredCredential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", c.Provider),
		slog.String("email", c.Email),
		slog.Bool("has_refresh_token", c.RefreshToken != ""),
	)
}

// Run status values.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusRunning = "running"
)

// Collection names.
const (
	CollectionCalendar = "calendar"
	CollectionContacts = "contacts"
	CollectionMaps     = "maps"
)

// RunResult is the sole output of a successful run.
type RunResult struct {
	RunID            string `json:"runId,omitempty"`
	Status           string `json:"status"`
	Collection       string `json:"collection,omitempty"`
	Created          int    `json:"created"`
	Skipped          int    `json:"skipped"`
	SourceCount      int    `json:"sourceCount"`
	DestinationCount int    `json:"destinationCount"`
	// Unevaluated counts source records never looked at because the create cap was reached.
	Unevaluated int  `json:"unevaluated,omitempty"`
	DryRun      bool `json:"dryRun,omitempty"`
}

// RunRecord is one row of run history.
type RunRecord struct {
	ID           string
	Collection   string
	Status       string
	DryRun       bool
	Created      int
	Skipped      int
	SourceCount  int
	DestCount    int
	Unevaluated  int
	ErrorStage   string
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Duration returns how long the run took.
func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
