package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tempoledger/tempod/internal/domain"
)

// BalanceCache caches evaluated balances in Redis hashes. Each account's
// balance lives at "balance:{account}" with fields "amount" and "ts" (Unix
// nanoseconds of the evaluation), expiring after the configured TTL. The TTL
// bounds how stale a served balance can be, since balances drift with the
// clock even without transactions.
type BalanceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewBalanceCache creates a BalanceCache with the given entry TTL.
func NewBalanceCache(c *Client, ttl time.Duration) *BalanceCache {
	return &BalanceCache{rdb: c.Underlying(), ttl: ttl}
}

func balanceKey(account domain.Identity) string {
	return "balance:" + string(account)
}

// SetBalance stores an evaluated balance and its evaluation time.
func (bc *BalanceCache) SetBalance(ctx context.Context, account domain.Identity, balance uint64, at time.Time) error {
	key := balanceKey(account)
	fields := map[string]interface{}{
		"amount": strconv.FormatUint(balance, 10),
		"ts":     strconv.FormatInt(at.UnixNano(), 10),
	}

	pipe := bc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, bc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set balance %s: %w", account, err)
	}
	return nil
}

// GetBalance retrieves a cached balance and its evaluation time. It returns
// domain.ErrNotFound when the entry is missing or expired.
func (bc *BalanceCache) GetBalance(ctx context.Context, account domain.Identity) (uint64, time.Time, error) {
	vals, err := bc.rdb.HGetAll(ctx, balanceKey(account)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get balance %s: %w", account, err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}

	amountStr, ok := vals["amount"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	amount, err := strconv.ParseUint(amountStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse balance %s: %w", account, err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse balance ts %s: %w", account, err)
	}

	return amount, time.Unix(0, tsNano), nil
}

// Invalidate drops the cached balance for an account.
func (bc *BalanceCache) Invalidate(ctx context.Context, account domain.Identity) error {
	if err := bc.rdb.Del(ctx, balanceKey(account)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate balance %s: %w", account, err)
	}
	return nil
}

var _ domain.BalanceCache = (*BalanceCache)(nil)
