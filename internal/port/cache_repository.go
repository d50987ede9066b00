package port

import "context"

type CacheRepository interface {
	// ClaimIdempotency sets a key for idempotency check, returns false if already claimed
	ClaimIdempotency(ctx context.Context, key string) (bool, error)
}
