package domain

import (
	"context"
	"time"
)

// BalanceCache holds recently evaluated balances. Entries expire on their
// own; a hit may lag the live evaluation by at most the cache TTL, and every
// mutation invalidates the touched accounts.
type BalanceCache interface {
	SetBalance(ctx context.Context, account Identity, balance uint64, at time.Time) error
	// GetBalance returns ErrNotFound on a miss or an expired entry.
	GetBalance(ctx context.Context, account Identity) (uint64, time.Time, error)
	Invalidate(ctx context.Context, account Identity) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	// Allow reports whether a request for key is permitted under a sliding
	// window of limit requests per window, counting the request when it is.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
