// ABOUTME: Credential store contract and the portable credential encoding
// ABOUTME: Stores hand back one credential per role; cookies carry it as base64url JSON
package sync

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harperreed/mirrorsync/models"
)

// CredentialStore looks up the credential captured for a role. Implementations
// return models.ErrCredentialNotFound when nothing has been stored.
type CredentialStore interface {
	Get(ctx context.Context, role models.Role) (*models.StoredCredential, error)
}

// CredentialStoreFunc adapts a function into a CredentialStore.
type CredentialStoreFunc func(ctx context.Context, role models.Role) (*models.StoredCredential, error)

func (f CredentialStoreFunc) Get(ctx context.Context, role models.Role) (*models.StoredCredential, error) {
	return f(ctx, role)
}

// EncodeCredential serializes a credential as unpadded base64url JSON.
func EncodeCredential(cred *models.StoredCredential) (string, error) {
	if cred == nil || cred.RefreshToken == "" {
		return "", fmt.Errorf("credential has no refresh token")
	}
	data, err := json.Marshal(cred)
	if err != nil {
		return "", fmt.Errorf("failed to encode credential: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeCredential parses the output of EncodeCredential. Padded input is
// accepted too.
func DecodeCredential(value string) (*models.StoredCredential, error) {
	value = strings.TrimRight(strings.TrimSpace(value), "=")
	if value == "" {
		return nil, models.ErrCredentialNotFound
	}

	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrCredentialInvalid, err)
	}

	var cred models.StoredCredential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrCredentialInvalid, err)
	}
	return &cred, nil
}
