// Package blacklist stores tokens revoked before their natural expiry.
// Entries carry the token's own expiry so cleanup is automatic.
package blacklist

import (
	"context"
	"time"
)

// Store is a revoked-token store
type Store interface {
	// Add records a token as revoked until expiresAt
	Add(ctx context.Context, token string, expiresAt time.Time) error
	// Contains reports whether a token has been revoked and is not yet expired
	Contains(ctx context.Context, token string) (bool, error)
}
