// Package session owns the credential lifecycle: where a token is persisted,
// how the identity behind it is resolved, and how both are torn down on logout.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/aryan0dhankhar/academyportal/internal/domain"
)

var (
	// ErrNoCredential means the request carried no token at all.
	ErrNoCredential = fmt.Errorf("%w: no credential", domain.ErrUnauthenticated)
	// ErrNoSession means a token was presented but the store holds no record for it.
	ErrNoSession = fmt.Errorf("%w: credential not backed by a session", domain.ErrUnauthenticated)
	// ErrInactive means the identity service resolved a deactivated account.
	ErrInactive = fmt.Errorf("%w: account inactive", domain.ErrUnauthenticated)
)

// Record is what the store keeps for one logged-in credential.
type Record struct {
	Token     string           `json:"token"`
	Identity  *domain.Identity `json:"identity,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Store persists session records keyed by credential.
// Load returns domain.ErrNotFound for unknown credentials.
type Store interface {
	Save(ctx context.Context, rec Record, ttl time.Duration) error
	Load(ctx context.Context, token string) (*Record, error)
	Mirror(ctx context.Context, token string, identity *domain.Identity) error
	Clear(ctx context.Context, token string) error
}

// KeyFor derives the storage key for a credential so raw tokens never become keys.
func KeyFor(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "session:" + hex.EncodeToString(sum[:])
}
