package revocations

import (
	"context"
	"time"
)

// Repository stores hashes of revoked session tokens until they expire.
type Repository interface {
	Insert(ctx context.Context, tokenHash string, expiresAt time.Time) error
	Exists(ctx context.Context, tokenHash string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
