// ABOUTME: Database operations for the credentials table
// ABOUTME: Persists one OAuth refresh credential per mirror role
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/mirrorsync/models"
)

// SaveCredential stores or replaces the credential for a role.
func SaveCredential(db *sql.DB, role models.Role, cred *models.StoredCredential) error {
	if cred == nil || cred.RefreshToken == "" {
		return fmt.Errorf("credential for %s has no refresh token", role)
	}

	provider := cred.Provider
	if provider == "" {
		provider = "google"
	}
	createdAt := cred.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := db.Exec(`
		INSERT INTO credentials (role, refresh_token, email, provider, scopes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(role) DO UPDATE SET
			refresh_token = excluded.refresh_token,
			email = excluded.email,
			provider = excluded.provider,
			scopes = excluded.scopes,
			updated_at = excluded.updated_at
	`, string(role), cred.RefreshToken, cred.Email, provider, strings.Join(cred.Scopes, " "), createdAt, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

// GetCredential returns the credential for a role or models.ErrCredentialNotFound.
func GetCredential(ctx context.Context, db *sql.DB, role models.Role) (*models.StoredCredential, error) {
	var cred models.StoredCredential
	var email, scopes sql.NullString

	err := db.QueryRowContext(ctx, `
		SELECT refresh_token, email, provider, scopes, created_at
		FROM credentials
		WHERE role = ?
	`, string(role)).Scan(&cred.RefreshToken, &email, &cred.Provider, &scopes, &cred.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	cred.Email = email.String
	if scopes.String != "" {
		cred.Scopes = strings.Fields(scopes.String)
	}

	return &cred, nil
}

// DeleteCredential removes the credential for a role.
func DeleteCredential(db *sql.DB, role models.Role) error {
	if _, err := db.Exec(`DELETE FROM credentials WHERE role = ?`, string(role)); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// CredentialStore serves credentials from the database.
type CredentialStore struct {
	db *sql.DB
}

// NewCredentialStore wraps db as a credential store.
func NewCredentialStore(db *sql.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

func (s *CredentialStore) Get(ctx context.Context, role models.Role) (*models.StoredCredential, error) {
	return GetCredential(ctx, s.db, role)
}
