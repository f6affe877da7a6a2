// Package memory provides an in-memory LedgerStore used by tests and by the
// zero-dependency development mode. All operations are guarded by a single
// RWMutex; the Create*/Commit* methods are atomic by construction.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tempoledger/tempod/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	mints    map[domain.Identity]domain.Mint
	policies map[domain.Identity]domain.PolicyExtension
	accounts map[domain.Identity]domain.Account
	pools    map[domain.Identity]domain.DecayPool
	events   []domain.LedgerEvent
}

var (
	_ domain.LedgerStore       = (*Store)(nil)
	_ domain.EventArchiveStore = (*Store)(nil)
)

func New() *Store {
	return &Store{
		mints:    make(map[domain.Identity]domain.Mint),
		policies: make(map[domain.Identity]domain.PolicyExtension),
		accounts: make(map[domain.Identity]domain.Account),
		pools:    make(map[domain.Identity]domain.DecayPool),
	}
}

func (s *Store) CreateMint(ctx context.Context, mint domain.Mint, policy *domain.PolicyExtension) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mints[mint.ID]; ok {
		return fmt.Errorf("mint %s: %w", mint.ID, domain.ErrAlreadyExists)
	}
	s.mints[mint.ID] = mint
	if policy != nil {
		s.policies[mint.ID] = *policy
	}
	return nil
}

func (s *Store) GetMint(ctx context.Context, id domain.Identity) (domain.Mint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mint, ok := s.mints[id]
	if !ok {
		return domain.Mint{}, fmt.Errorf("mint %s: %w", id, domain.ErrNotFound)
	}
	return mint, nil
}

func (s *Store) GetPolicy(ctx context.Context, mint domain.Identity) (domain.PolicyExtension, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policy, ok := s.policies[mint]
	if !ok {
		return domain.PolicyExtension{}, fmt.Errorf("policy for mint %s: %w", mint, domain.ErrNotFound)
	}
	return policy, nil
}

func (s *Store) CreateAccount(ctx context.Context, account domain.Account, pool domain.DecayPool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; ok {
		return fmt.Errorf("account %s: %w", account.ID, domain.ErrAlreadyExists)
	}
	s.accounts[account.ID] = account
	s.pools[pool.Account] = pool
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id domain.Identity) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	return account, nil
}

func (s *Store) GetDecayPool(ctx context.Context, account domain.Identity) (domain.DecayPool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pool, ok := s.pools[account]
	if !ok {
		return domain.DecayPool{}, fmt.Errorf("decay pool for account %s: %w", account, domain.ErrNotFound)
	}
	return pool, nil
}

func (s *Store) CommitSupplyChange(ctx context.Context, mint domain.Mint, account domain.Account, pool domain.DecayPool, event domain.LedgerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mints[mint.ID]; !ok {
		return fmt.Errorf("mint %s: %w", mint.ID, domain.ErrNotFound)
	}
	if _, ok := s.accounts[account.ID]; !ok {
		return fmt.Errorf("account %s: %w", account.ID, domain.ErrNotFound)
	}
	s.mints[mint.ID] = mint
	s.accounts[account.ID] = account
	s.pools[pool.Account] = pool
	s.events = append(s.events, event)
	return nil
}

func (s *Store) CommitTransfer(ctx context.Context, from, to domain.Account, fromPool, toPool domain.DecayPool, event domain.LedgerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range []domain.Identity{from.ID, to.ID} {
		if _, ok := s.accounts[id]; !ok {
			return fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
		}
	}
	s.accounts[from.ID] = from
	s.accounts[to.ID] = to
	s.pools[fromPool.Account] = fromPool
	s.pools[toPool.Account] = toPool
	s.events = append(s.events, event)
	return nil
}

func (s *Store) CommitPause(ctx context.Context, account domain.Account, pool domain.DecayPool, event domain.LedgerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; !ok {
		return fmt.Errorf("account %s: %w", account.ID, domain.ErrNotFound)
	}
	s.accounts[account.ID] = account
	s.pools[pool.Account] = pool
	s.events = append(s.events, event)
	return nil
}

func (s *Store) CommitReUp(ctx context.Context, account domain.Account, pool domain.DecayPool, event domain.LedgerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; !ok {
		return fmt.Errorf("account %s: %w", account.ID, domain.ErrNotFound)
	}
	s.accounts[account.ID] = account
	s.pools[pool.Account] = pool
	s.events = append(s.events, event)
	return nil
}

func (s *Store) ListEvents(ctx context.Context, account domain.Identity, opts domain.ListOpts) ([]domain.LedgerEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.LedgerEvent
	for _, ev := range s.events {
		if ev.Account != account && (ev.Counterparty == nil || *ev.Counterparty != account) {
			continue
		}
		if opts.Since != nil && ev.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && !ev.CreatedAt.Before(*opts.Until) {
			continue
		}
		out = append(out, ev)
	}

	// Newest first, matching the SQL store's ordering.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *Store) ListEventsBefore(ctx context.Context, before time.Time) ([]domain.LedgerEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.LedgerEvent
	for _, ev := range s.events {
		if ev.CreatedAt.Before(before) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *Store) DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var deleted int64
	for _, ev := range s.events {
		if ev.CreatedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept
	return deleted, nil
}
