package sync

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/mirrorsync/models"
)

func TestEncodeDecodeCredential(t *testing.T) {
	original := &models.StoredCredential{
		RefreshToken: "1//refresh",
		Email:        "me@example.com",
		Provider:     "google",
		CreatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	encoded, err := EncodeCredential(original)
	require.NoError(t, err)
	assert.NotContains(t, encoded, "=")
	assert.NotContains(t, encoded, "+")
	assert.NotContains(t, encoded, "/")

	decoded, err := DecodeCredential(encoded)
	require.NoError(t, err)
	assert.Equal(t, original.RefreshToken, decoded.RefreshToken)
	assert.Equal(t, original.Email, decoded.Email)
	assert.True(t, original.CreatedAt.Equal(decoded.CreatedAt))
}

func TestDecodeCredential_AcceptsPadding(t *testing.T) {
	padded := base64.URLEncoding.EncodeToString([]byte(`{"refresh_token":"rt"}`))
	require.True(t, strings.HasSuffix(padded, "="))

	cred, err := DecodeCredential(padded)
	require.NoError(t, err)
	assert.Equal(t, "rt", cred.RefreshToken)
}

func TestDecodeCredential_Errors(t *testing.T) {
	_, err := DecodeCredential("")
	assert.ErrorIs(t, err, models.ErrCredentialNotFound)

	_, err = DecodeCredential("!!!not-base64!!!")
	assert.ErrorIs(t, err, models.ErrCredentialInvalid)

	_, err = DecodeCredential(base64.RawURLEncoding.EncodeToString([]byte("not json")))
	assert.ErrorIs(t, err, models.ErrCredentialInvalid)
}

func TestEncodeCredential_RequiresRefreshToken(t *testing.T) {
	_, err := EncodeCredential(&models.StoredCredential{Email: "me@example.com"})
	assert.Error(t, err)
	_, err = EncodeCredential(nil)
	assert.Error(t, err)
}
