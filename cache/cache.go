package cache

import (
	"context"
	"time"
)

// DefaultVerdictTTL is how long a cached verdict stays valid
const DefaultVerdictTTL = 24 * time.Hour

// VerdictCache stores generated verdicts keyed by the deterministic
// prompt key. A miss is (found=false, nil error); errors are reserved for
// backend failures, which callers treat as misses.
type VerdictCache interface {
	Get(ctx context.Context, key string) (verdict string, found bool, err error)
	Set(ctx context.Context, key, verdict string, ttl time.Duration) error
	Close() error
}
