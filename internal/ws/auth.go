package ws

import (
	"context"
	"errors"
	"fmt"

	"github.com/OfirPatish/Chattrix-sub000/internal/auth"
	"github.com/OfirPatish/Chattrix-sub000/internal/database"
	"github.com/OfirPatish/Chattrix-sub000/internal/models"
)

// Rejection reasons surfaced to a failed handshake. Clients treat
// "revoked" and "invalid" as non-retryable; "expired" should trigger a
// token refresh before reconnecting.
const (
	RejectNoToken      = "no token"
	RejectRevoked      = "revoked"
	RejectExpired      = "expired"
	RejectInvalid      = "invalid"
	RejectUserNotFound = "user not found"
)

// RejectionError terminates a connection attempt with a reason
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("handshake rejected: %s", e.Reason)
}

// Authenticator resolves a handshake bearer token to a user identity.
// It attaches nothing and flips no presence state; that happens once
// the connection is fully established.
type Authenticator struct {
	tokens *auth.Service
	store  database.Store
}

// NewAuthenticator creates a connection authenticator
func NewAuthenticator(tokens *auth.Service, store database.Store) *Authenticator {
	return &Authenticator{tokens: tokens, store: store}
}

// Authenticate validates the handshake token and resolves the user.
// Any failure is a *RejectionError; there is no retry at this layer.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, &RejectionError{Reason: RejectNoToken}
	}

	userID, err := a.tokens.Verify(ctx, token, auth.TokenKindAccess)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenRevoked):
			return nil, &RejectionError{Reason: RejectRevoked}
		case errors.Is(err, auth.ErrTokenExpired):
			return nil, &RejectionError{Reason: RejectExpired}
		default:
			return nil, &RejectionError{Reason: RejectInvalid}
		}
	}

	user, err := a.store.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, &RejectionError{Reason: RejectUserNotFound}
		}
		return nil, err
	}

	return user, nil
}
