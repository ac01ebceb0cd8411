package token

import (
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendhub/marketplace/internal/auth"
)

func TestSigner_RoundTrip(t *testing.T) {
	signer := NewSigner("test-secret", time.Hour)
	authID, err := uuid.NewV4()
	require.NoError(t, err)

	tok, err := signer.Sign(authID, auth.RoleVendor)
	require.NoError(t, err)

	gotID, gotRole, err := signer.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, authID, gotID)
	assert.Equal(t, auth.RoleVendor, gotRole)
}

func TestSigner_RejectsTampering(t *testing.T) {
	signer := NewSigner("test-secret", time.Hour)
	authID, err := uuid.NewV4()
	require.NoError(t, err)

	tok, err := signer.Sign(authID, auth.RoleUser)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "empty", token: ""},
		{name: "flipped signature", token: tok[:len(tok)-1] + "x"},
		{name: "missing signature", token: tok[:len(tok)-10]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := signer.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestSigner_RejectsWrongSecret(t *testing.T) {
	authID, err := uuid.NewV4()
	require.NoError(t, err)

	tok, err := NewSigner("secret-a", time.Hour).Sign(authID, auth.RoleUser)
	require.NoError(t, err)

	_, _, err = NewSigner("secret-b", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSigner_RejectsExpired(t *testing.T) {
	signer := NewSigner("test-secret", -time.Minute)
	authID, err := uuid.NewV4()
	require.NoError(t, err)

	tok, err := signer.Sign(authID, auth.RoleUser)
	require.NoError(t, err)

	_, _, err = signer.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
