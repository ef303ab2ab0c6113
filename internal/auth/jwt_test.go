package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OfirPatish/Chattrix-sub000/internal/blacklist"
)

func newTestService() *Service {
	return NewService(
		[]byte("test-access-secret"),
		[]byte("test-refresh-secret"),
		blacklist.NewMemory(),
	)
}

func TestIssueAccessToken(t *testing.T) {
	svc := newTestService()

	tests := []struct {
		name    string
		userID  uuid.UUID
		wantErr bool
	}{
		{
			name:    "valid user",
			userID:  uuid.New(),
			wantErr: false,
		},
		{
			name:    "missing user ID",
			userID:  uuid.Nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, expiry, err := svc.IssueAccessToken(tt.userID)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, token)
			} else {
				assert.NoError(t, err)
				assert.NotEmpty(t, token)
				assert.True(t, expiry.After(time.Now()))

				gotID, err := svc.Verify(context.Background(), token, TokenKindAccess)
				assert.NoError(t, err)
				assert.Equal(t, tt.userID, gotID)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	svc := newTestService()
	userID := uuid.New()

	accessToken, _, err := svc.IssueAccessToken(userID)
	require.NoError(t, err)

	tests := []struct {
		name        string
		tokenString string
		kind        TokenKind
		wantErr     error
	}{
		{
			name:        "valid access token",
			tokenString: accessToken,
			kind:        TokenKindAccess,
		},
		{
			name:        "empty token",
			tokenString: "",
			kind:        TokenKindAccess,
			wantErr:     ErrTokenInvalid,
		},
		{
			name:        "garbage token",
			tokenString: "not.a.valid.jwt.token",
			kind:        TokenKindAccess,
			wantErr:     ErrTokenInvalid,
		},
		{
			name:        "tampered token",
			tokenString: accessToken + "tampered",
			kind:        TokenKindAccess,
			wantErr:     ErrTokenInvalid,
		},
		{
			name:        "access token verified as refresh",
			tokenString: accessToken,
			kind:        TokenKindRefresh,
			wantErr:     ErrTokenInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID, err := svc.Verify(context.Background(), tt.tokenString, tt.kind)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, uuid.Nil, gotID)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, userID, gotID)
			}
		})
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	svc := newTestService()
	svc.SetTTLs(-time.Minute, -time.Minute)

	token, _, err := svc.IssueAccessToken(uuid.New())
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), token, TokenKindAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRefreshTokenIndependentlyVerifiable(t *testing.T) {
	svc := newTestService()
	userID := uuid.New()

	refreshToken, expiry, err := svc.IssueRefreshToken(userID)
	require.NoError(t, err)
	assert.True(t, expiry.After(time.Now().Add(6*24*time.Hour)))

	gotID, err := svc.Verify(context.Background(), refreshToken, TokenKindRefresh)
	assert.NoError(t, err)
	assert.Equal(t, userID, gotID)

	// A refresh token must not pass as an access token
	_, err = svc.Verify(context.Background(), refreshToken, TokenKindAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRevoke(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	userID := uuid.New()

	token, _, err := svc.IssueAccessToken(userID)
	require.NoError(t, err)

	// Still valid before revocation
	gotID, err := svc.Verify(ctx, token, TokenKindAccess)
	require.NoError(t, err)
	require.Equal(t, userID, gotID)

	require.NoError(t, svc.Revoke(ctx, token))

	// Revoked fails even though the signature and expiry are fine
	_, err = svc.Verify(ctx, token, TokenKindAccess)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRevokeUnparseableToken(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.Revoke(ctx, "garbage-token"))

	_, err := svc.Verify(ctx, "garbage-token", TokenKindAccess)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}
