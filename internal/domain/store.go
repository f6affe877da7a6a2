package domain

import (
	"context"
	"io"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// LedgerStore persists mints, accounts, decay pools, policy extensions, and
// the change-record log. The Create* and Commit* methods are transactional:
// either every record they touch is written or none is. Reads outside a
// commit observe only committed state.
type LedgerStore interface {
	// CreateMint atomically writes a new mint and, when policy is non-nil,
	// its policy extension. Returns ErrAlreadyExists when the mint ID is
	// taken.
	CreateMint(ctx context.Context, mint Mint, policy *PolicyExtension) error
	GetMint(ctx context.Context, id Identity) (Mint, error)
	GetPolicy(ctx context.Context, mint Identity) (PolicyExtension, error)

	// CreateAccount atomically writes a new account and its paired decay
	// pool.
	CreateAccount(ctx context.Context, account Account, pool DecayPool) error
	GetAccount(ctx context.Context, id Identity) (Account, error)
	GetDecayPool(ctx context.Context, account Identity) (DecayPool, error)

	// CommitSupplyChange atomically writes an updated mint supply, the
	// affected account, its decay pool, and the change record (mint_to /
	// burn).
	CommitSupplyChange(ctx context.Context, mint Mint, account Account, pool DecayPool, event LedgerEvent) error

	// CommitTransfer atomically writes both accounts, both decay pools, and
	// the change record.
	CommitTransfer(ctx context.Context, from, to Account, fromPool, toPool DecayPool, event LedgerEvent) error

	// CommitPause atomically writes the paused account, its settled decay
	// pool, and the change record.
	CommitPause(ctx context.Context, account Account, pool DecayPool, event LedgerEvent) error

	// CommitReUp atomically writes the boosted account, the debited decay
	// pool, and the change record.
	CommitReUp(ctx context.Context, account Account, pool DecayPool, event LedgerEvent) error

	ListEvents(ctx context.Context, account Identity, opts ListOpts) ([]LedgerEvent, error)
}

// EventArchiveStore provides read and prune access to old change records for
// archival.
type EventArchiveStore interface {
	ListEventsBefore(ctx context.Context, before time.Time) ([]LedgerEvent, error)
	DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error)
}

// LockManager provides the per-record serialization the transaction handlers
// rely on: two operations touching the same account are mutually exclusive,
// operations on disjoint accounts may run concurrently.
type LockManager interface {
	// Acquire obtains the lock for key with the given TTL and returns an
	// unlock function, or ErrLockHeld when another holder has it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// StreamMessage is a single durable message read back from the signal bus.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus fans change records out to interested consumers: ephemeral
// pub/sub for live subscribers and an ordered stream for catch-up reads.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// BlobWriter uploads archive objects.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// HookRequest is the context handed to the external policy hook.
type HookRequest struct {
	HookID    Identity
	Mint      Identity
	Account   Identity
	Authority Identity
}

// PolicyHook invokes the external policy-hook service. The ledger only cares
// that the call succeeds; the hook's internal protocol is out of scope.
type PolicyHook interface {
	Invoke(ctx context.Context, req HookRequest) error
}
