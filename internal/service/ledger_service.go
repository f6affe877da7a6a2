package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/bits"
	"time"

	"github.com/google/uuid"

	"github.com/tempoledger/tempod/internal/balance"
	"github.com/tempoledger/tempod/internal/domain"
)

// Bus channel and stream every change record is fanned out on.
const (
	EventChannel = "ledger.events"
	EventStream  = "ledger:events"
)

// LedgerService owns the transaction handlers: mint and account creation,
// mint_to, burn, transfer, pause, and reup. Every mutation follows the same
// shape: acquire the per-record locks, load committed state, evaluate the
// time-derived balance, settle accrued decay into the account's decay pool,
// rewrite the snapshot, and commit atomically with a change record.
type LedgerService struct {
	store   domain.LedgerStore
	locks   domain.LockManager
	bus     domain.SignalBus
	hook    domain.PolicyHook
	cache   domain.BalanceCache
	engine  *balance.Engine
	logger  *slog.Logger
	lockTTL time.Duration
	now     func() time.Time
}

// NewLedgerService creates a LedgerService with all required dependencies.
func NewLedgerService(
	store domain.LedgerStore,
	locks domain.LockManager,
	bus domain.SignalBus,
	hook domain.PolicyHook,
	cache domain.BalanceCache,
	engine *balance.Engine,
	lockTTL time.Duration,
	logger *slog.Logger,
) *LedgerService {
	return &LedgerService{
		store:   store,
		locks:   locks,
		bus:     bus,
		hook:    hook,
		cache:   cache,
		engine:  engine,
		logger:  logger,
		lockTTL: lockTTL,
		now:     time.Now,
	}
}

// WithClock overrides the wall clock. Tests use it to pin evaluation time.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

func mintLockKey(id domain.Identity) string    { return "lock:mint:" + string(id) }
func accountLockKey(id domain.Identity) string { return "lock:account:" + string(id) }

// InitializeMintParams carries everything needed to create a token class.
// HookID, EquationParams, and ReUpPercentage belong to the optional policy
// extension.
type InitializeMintParams struct {
	MintID          domain.Identity
	Authority       domain.Identity
	Decimals        uint8
	Supply          uint64
	FreezeAuthority *domain.Identity
	EquationFamily  domain.EquationFamily
	PauseMode       domain.PauseMode
	HookID          *domain.Identity
	EquationParams  *domain.EquationParams
	ReUpPercentage  *uint8
}

// InitializeMint creates a mint and, when the equation family or pause mode
// requires one, its policy extension. The reup percentage must be present
// exactly when the pause mode is reup, and must not exceed 100.
func (s *LedgerService) InitializeMint(ctx context.Context, p InitializeMintParams) (domain.Mint, error) {
	if p.PauseMode == "" {
		p.PauseMode = domain.PauseModeNone
	}
	if !p.EquationFamily.Valid() || !p.PauseMode.Valid() {
		return domain.Mint{}, fmt.Errorf("ledger_service: initialize mint %q: %w", p.MintID, domain.ErrInvalidAccountData)
	}

	switch {
	case p.PauseMode == domain.PauseModeReUp && p.ReUpPercentage == nil:
		return domain.Mint{}, fmt.Errorf("ledger_service: initialize mint %q: %w", p.MintID, domain.ErrMissingReUpPercentage)
	case p.PauseMode == domain.PauseModeReUp && *p.ReUpPercentage > 100:
		return domain.Mint{}, fmt.Errorf("ledger_service: initialize mint %q: %w", p.MintID, domain.ErrInvalidReUpPercentage)
	case p.PauseMode != domain.PauseModeReUp && p.ReUpPercentage != nil:
		return domain.Mint{}, fmt.Errorf("ledger_service: initialize mint %q: %w", p.MintID, domain.ErrUnexpectedReUpPercentage)
	}

	params := p.EquationFamily.DefaultParams()
	if p.EquationParams != nil {
		params = *p.EquationParams
	}
	if err := params.ValidateFor(p.EquationFamily); err != nil {
		return domain.Mint{}, fmt.Errorf("ledger_service: initialize mint %q: %w", p.MintID, err)
	}

	now := s.now().UTC()
	mint := domain.Mint{
		ID:              p.MintID,
		Authority:       p.Authority,
		Decimals:        p.Decimals,
		Supply:          p.Supply,
		FreezeAuthority: p.FreezeAuthority,
		EquationFamily:  p.EquationFamily,
		PauseMode:       p.PauseMode,
		Initialized:     true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// A policy extension is written whenever there is something for it to
	// carry: a pause gate or non-default equation parameters.
	var policy *domain.PolicyExtension
	if p.PauseMode != domain.PauseModeNone || p.EquationFamily != domain.EquationIdentity {
		ext := domain.PolicyExtension{
			Mint:           p.MintID,
			Authority:      p.Authority,
			EquationFamily: p.EquationFamily,
			PauseMode:      p.PauseMode,
			Params:         params,
			CreatedAt:      now,
		}
		if p.PauseMode != domain.PauseModeNone {
			hookID, ok := domain.OptionalIdentity(p.HookID)
			if !ok {
				return domain.Mint{}, fmt.Errorf("ledger_service: initialize mint %q: pause mode without hook: %w", p.MintID, domain.ErrInvalidAccountData)
			}
			ext.HookID = hookID
		}
		if p.ReUpPercentage != nil {
			ext.ReUpPercentage = *p.ReUpPercentage
		}
		policy = &ext
	}

	if err := s.store.CreateMint(ctx, mint, policy); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return domain.Mint{}, fmt.Errorf("ledger_service: initialize mint %q: %w", p.MintID, domain.ErrAlreadyInUse)
		}
		return domain.Mint{}, fmt.Errorf("ledger_service: create mint %q: %w", p.MintID, err)
	}

	s.logger.InfoContext(ctx, "ledger_service: mint initialized",
		slog.String("mint", string(mint.ID)),
		slog.String("equation_family", string(mint.EquationFamily)),
		slog.String("pause_mode", string(mint.PauseMode)),
	)
	return mint, nil
}

// InitializeAccountParams identifies the new account, its mint, and its
// owner. Delegate, when set, may move value on the owner's behalf up to the
// delegated allowance.
type InitializeAccountParams struct {
	AccountID domain.Identity
	MintID    domain.Identity
	Owner     domain.Identity
	Delegate  *domain.Identity
}

// InitializeAccount opens a zero-balance account and its paired decay pool.
// The account inherits the mint's equation family; its snapshot time starts
// at creation.
func (s *LedgerService) InitializeAccount(ctx context.Context, p InitializeAccountParams) (domain.Account, error) {
	mint, err := s.store.GetMint(ctx, p.MintID)
	if err != nil {
		return domain.Account{}, fmt.Errorf("ledger_service: initialize account %q: %w", p.AccountID, err)
	}

	now := s.now().UTC()
	account := domain.Account{
		ID:             p.AccountID,
		Mint:           mint.ID,
		Owner:          p.Owner,
		Delegate:       p.Delegate,
		Snapshot:       0,
		EquationFamily: mint.EquationFamily,
		CreationTime:   now.Unix(),
		SnapshotTime:   now.Unix(),
		State:          domain.AccountInitialized,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	pool := domain.DecayPool{Account: account.ID, Amount: 0, UpdatedAt: now}

	if err := s.store.CreateAccount(ctx, account, pool); err != nil {
		return domain.Account{}, fmt.Errorf("ledger_service: create account %q: %w", p.AccountID, err)
	}

	s.logger.InfoContext(ctx, "ledger_service: account initialized",
		slog.String("account", string(account.ID)),
		slog.String("mint", string(account.Mint)),
		slog.String("owner", string(account.Owner)),
	)
	return account, nil
}

// GetMint returns a mint by ID.
func (s *LedgerService) GetMint(ctx context.Context, id domain.Identity) (domain.Mint, error) {
	mint, err := s.store.GetMint(ctx, id)
	if err != nil {
		return domain.Mint{}, fmt.Errorf("ledger_service: get mint %q: %w", id, err)
	}
	return mint, nil
}

// GetAccount returns an account by ID.
func (s *LedgerService) GetAccount(ctx context.Context, id domain.Identity) (domain.Account, error) {
	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return domain.Account{}, fmt.Errorf("ledger_service: get account %q: %w", id, err)
	}
	return account, nil
}

// GetDecayPool returns the decay pool paired with an account.
func (s *LedgerService) GetDecayPool(ctx context.Context, account domain.Identity) (domain.DecayPool, error) {
	pool, err := s.store.GetDecayPool(ctx, account)
	if err != nil {
		return domain.DecayPool{}, fmt.Errorf("ledger_service: get decay pool %q: %w", account, err)
	}
	return pool, nil
}

// Balance evaluates an account's current balance without mutating anything.
// Hits in the balance cache are served directly; staleness is bounded by the
// cache TTL and by invalidation on every mutation.
func (s *LedgerService) Balance(ctx context.Context, id domain.Identity) (uint64, error) {
	if cached, _, err := s.cache.GetBalance(ctx, id); err == nil {
		return cached, nil
	}

	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("ledger_service: get account %q: %w", id, err)
	}
	current, err := s.evaluate(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("ledger_service: evaluate %q: %w", id, err)
	}

	if err := s.cache.SetBalance(ctx, id, current, s.now().UTC()); err != nil {
		s.logger.WarnContext(ctx, "ledger_service: cache balance failed",
			slog.String("account", string(id)),
			slog.String("error", err.Error()),
		)
	}
	return current, nil
}

// ListEvents returns the change records touching an account, newest first.
func (s *LedgerService) ListEvents(ctx context.Context, account domain.Identity, opts domain.ListOpts) ([]domain.LedgerEvent, error) {
	events, err := s.store.ListEvents(ctx, account, opts)
	if err != nil {
		return nil, fmt.Errorf("ledger_service: list events for %q: %w", account, err)
	}
	return events, nil
}

// equationParams resolves the parameters bound during evaluation: the mint's
// policy extension when present, the family defaults otherwise.
func (s *LedgerService) equationParams(ctx context.Context, account domain.Account) (domain.EquationParams, error) {
	policy, err := s.store.GetPolicy(ctx, account.Mint)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return account.EquationFamily.DefaultParams(), nil
		}
		return domain.EquationParams{}, err
	}
	return policy.Params, nil
}

// evaluate computes the account's current balance. Paused accounts evaluate
// as identity: the snapshot is frozen and no further decay accrues.
func (s *LedgerService) evaluate(ctx context.Context, account domain.Account) (uint64, error) {
	if account.IsPaused() {
		return account.Snapshot, nil
	}
	params, err := s.equationParams(ctx, account)
	if err != nil {
		return 0, err
	}
	return s.engine.Evaluate(account.Snapshot, account.EquationFamily, params, account.SnapshotTime, s.now().Unix())
}

// settle credits the decay accrued since the last snapshot to the pool and
// rewrites the account snapshot to the given balance as of now.
func (s *LedgerService) settle(account *domain.Account, pool *domain.DecayPool, current, newBalance uint64, now time.Time) error {
	decayed := balance.Decay(account.Snapshot, current)
	credited, err := domain.CheckedAdd(pool.Amount, decayed)
	if err != nil {
		return err
	}
	pool.Amount = credited
	pool.UpdatedAt = now

	account.Snapshot = newBalance
	account.SnapshotTime = now.Unix()
	account.UpdatedAt = now
	return nil
}

// MintToParams identifies the mint, the receiving account, the signing
// authority, and the amount in base units.
type MintToParams struct {
	MintID    domain.Identity
	AccountID domain.Identity
	Authority domain.Identity
	Amount    uint64
}

// MintTo creates new supply in the target account. Only the mint authority
// may mint; the account must not be frozen.
func (s *LedgerService) MintTo(ctx context.Context, p MintToParams) (domain.LedgerEvent, error) {
	unlockMint, err := s.locks.Acquire(ctx, mintLockKey(p.MintID), s.lockTTL)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: lock mint %q: %w", p.MintID, err)
	}
	defer unlockMint()
	unlock, err := s.locks.Acquire(ctx, accountLockKey(p.AccountID), s.lockTTL)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: lock account %q: %w", p.AccountID, err)
	}
	defer unlock()

	mint, err := s.store.GetMint(ctx, p.MintID)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: get mint %q: %w", p.MintID, err)
	}
	if mint.Authority != p.Authority {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: mint to %q: %w", p.AccountID, domain.ErrInvalidMintAuthority)
	}

	account, err := s.store.GetAccount(ctx, p.AccountID)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: get account %q: %w", p.AccountID, err)
	}
	if account.Mint != mint.ID {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: mint to %q: %w", p.AccountID, domain.ErrMintMismatch)
	}
	if account.IsFrozen() {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: mint to %q: %w", p.AccountID, domain.ErrAccountFrozen)
	}

	current, err := s.evaluate(ctx, account)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: evaluate %q: %w", p.AccountID, err)
	}
	pool, err := s.store.GetDecayPool(ctx, p.AccountID)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: get decay pool %q: %w", p.AccountID, err)
	}

	newSupply, err := domain.CheckedAdd(mint.Supply, p.Amount)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: mint to %q: supply: %w", p.AccountID, err)
	}
	newBalance, err := domain.CheckedAdd(current, p.Amount)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: mint to %q: balance: %w", p.AccountID, err)
	}

	now := s.now().UTC()
	if err := s.settle(&account, &pool, current, newBalance, now); err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: mint to %q: settle decay: %w", p.AccountID, err)
	}
	mint.Supply = newSupply
	mint.UpdatedAt = now

	event := domain.LedgerEvent{
		ID:         uuid.NewString(),
		Type:       domain.EventMintTo,
		Mint:       mint.ID,
		Account:    account.ID,
		Authority:  p.Authority,
		Amount:     p.Amount,
		NewBalance: newBalance,
		CreatedAt:  now,
	}
	if err := s.store.CommitSupplyChange(ctx, mint, account, pool, event); err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: commit mint to %q: %w", p.AccountID, err)
	}
	s.publish(ctx, event)

	s.logger.InfoContext(ctx, "ledger_service: minted",
		slog.String("mint", string(mint.ID)),
		slog.String("account", string(account.ID)),
		slog.Uint64("amount", p.Amount),
		slog.Uint64("new_balance", newBalance),
	)
	return event, nil
}

// BurnParams identifies the mint, the debited account, the signing authority
// (owner or delegate), and the amount in base units.
type BurnParams struct {
	MintID    domain.Identity
	AccountID domain.Identity
	Authority domain.Identity
	Amount    uint64
}

// Burn destroys supply from the account. The authority must be the owner or
// a delegate with sufficient delegated allowance.
func (s *LedgerService) Burn(ctx context.Context, p BurnParams) (domain.LedgerEvent, error) {
	unlockMint, err := s.locks.Acquire(ctx, mintLockKey(p.MintID), s.lockTTL)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: lock mint %q: %w", p.MintID, err)
	}
	defer unlockMint()
	unlock, err := s.locks.Acquire(ctx, accountLockKey(p.AccountID), s.lockTTL)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: lock account %q: %w", p.AccountID, err)
	}
	defer unlock()

	mint, err := s.store.GetMint(ctx, p.MintID)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: get mint %q: %w", p.MintID, err)
	}
	account, err := s.store.GetAccount(ctx, p.AccountID)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: get account %q: %w", p.AccountID, err)
	}
	if account.Mint != mint.ID {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: burn from %q: %w", p.AccountID, domain.ErrMintMismatch)
	}
	if account.IsFrozen() {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: burn from %q: %w", p.AccountID, domain.ErrAccountFrozen)
	}

	current, err := s.evaluate(ctx, account)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: evaluate %q: %w", p.AccountID, err)
	}
	if current < p.Amount {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: burn from %q: %w", p.AccountID, domain.ErrInsufficientFunds)
	}
	if err := s.debitAuthority(&account, p.Authority, p.Amount); err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: burn from %q: %w", p.AccountID, err)
	}

	pool, err := s.store.GetDecayPool(ctx, p.AccountID)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: get decay pool %q: %w", p.AccountID, err)
	}
	newSupply, err := domain.CheckedSub(mint.Supply, p.Amount)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: burn from %q: supply: %w", p.AccountID, err)
	}

	now := s.now().UTC()
	if err := s.settle(&account, &pool, current, current-p.Amount, now); err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: burn from %q: settle decay: %w", p.AccountID, err)
	}
	mint.Supply = newSupply
	mint.UpdatedAt = now

	event := domain.LedgerEvent{
		ID:         uuid.NewString(),
		Type:       domain.EventBurn,
		Mint:       mint.ID,
		Account:    account.ID,
		Authority:  p.Authority,
		Amount:     p.Amount,
		NewBalance: account.Snapshot,
		CreatedAt:  now,
	}
	if err := s.store.CommitSupplyChange(ctx, mint, account, pool, event); err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: commit burn from %q: %w", p.AccountID, err)
	}
	s.publish(ctx, event)

	s.logger.InfoContext(ctx, "ledger_service: burned",
		slog.String("mint", string(mint.ID)),
		slog.String("account", string(account.ID)),
		slog.Uint64("amount", p.Amount),
		slog.Uint64("new_balance", account.Snapshot),
	)
	return event, nil
}

// debitAuthority enforces the owner-or-delegate rule for outgoing value and
// debits the delegated allowance when a delegate signs.
func (s *LedgerService) debitAuthority(account *domain.Account, authority domain.Identity, amount uint64) error {
	if account.Owner == authority {
		return nil
	}
	delegate, ok := domain.OptionalIdentity(account.Delegate)
	if !ok || delegate != authority {
		return domain.ErrInvalidAuthority
	}
	if account.DelegatedAmount < amount {
		return domain.ErrInsufficientDelegatedAmount
	}
	account.DelegatedAmount -= amount
	return nil
}

// TransferParams identifies both accounts, the signing authority, and the
// amount in base units.
type TransferParams struct {
	FromID    domain.Identity
	ToID      domain.Identity
	Authority domain.Identity
	Amount    uint64
}

// Transfer moves value between two accounts of the same mint. Both sides'
// accrued decay is settled into their pools as part of the same commit, so
// supply minus the pools stays conserved.
func (s *LedgerService) Transfer(ctx context.Context, p TransferParams) (domain.LedgerEvent, error) {
	if p.FromID == p.ToID {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: transfer: %w", domain.ErrSelfTransfer)
	}

	// Locks are taken in lexicographic order so concurrent opposing
	// transfers cannot deadlock.
	first, second := p.FromID, p.ToID
	if second < first {
		first, second = second, first
	}
	unlockFirst, err := s.locks.Acquire(ctx, accountLockKey(first), s.lockTTL)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: lock account %q: %w", first, err)
	}
	defer unlockFirst()
	unlockSecond, err := s.locks.Acquire(ctx, accountLockKey(second), s.lockTTL)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: lock account %q: %w", second, err)
	}
	defer unlockSecond()

	from, err := s.store.GetAccount(ctx, p.FromID)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: get account %q: %w", p.FromID, err)
	}
	to, err := s.store.GetAccount(ctx, p.ToID)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: get account %q: %w", p.ToID, err)
	}
	if from.Mint != to.Mint {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: transfer %q -> %q: %w", p.FromID, p.ToID, domain.ErrMintMismatch)
	}
	if from.IsFrozen() || to.IsFrozen() {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: transfer %q -> %q: %w", p.FromID, p.ToID, domain.ErrAccountFrozen)
	}

	// A zero-amount transfer succeeds without touching any state.
	if p.Amount == 0 {
		counterparty := to.ID
		return domain.LedgerEvent{
			ID:           uuid.NewString(),
			Type:         domain.EventTransfer,
			Mint:         from.Mint,
			Account:      from.ID,
			Counterparty: &counterparty,
			Authority:    p.Authority,
			NewBalance:   from.Snapshot,
			CreatedAt:    s.now().UTC(),
		}, nil
	}

	fromBalance, err := s.evaluate(ctx, from)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: evaluate %q: %w", p.FromID, err)
	}
	toBalance, err := s.evaluate(ctx, to)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: evaluate %q: %w", p.ToID, err)
	}
	if fromBalance < p.Amount {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: transfer %q -> %q: %w", p.FromID, p.ToID, domain.ErrInsufficientFunds)
	}
	if err := s.debitAuthority(&from, p.Authority, p.Amount); err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: transfer %q -> %q: %w", p.FromID, p.ToID, err)
	}

	fromPool, err := s.store.GetDecayPool(ctx, p.FromID)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: get decay pool %q: %w", p.FromID, err)
	}
	toPool, err := s.store.GetDecayPool(ctx, p.ToID)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: get decay pool %q: %w", p.ToID, err)
	}

	newToBalance, err := domain.CheckedAdd(toBalance, p.Amount)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: transfer %q -> %q: %w", p.FromID, p.ToID, err)
	}

	now := s.now().UTC()
	if err := s.settle(&from, &fromPool, fromBalance, fromBalance-p.Amount, now); err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: transfer %q -> %q: settle decay: %w", p.FromID, p.ToID, err)
	}
	if err := s.settle(&to, &toPool, toBalance, newToBalance, now); err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: transfer %q -> %q: settle decay: %w", p.FromID, p.ToID, err)
	}

	counterparty := to.ID
	poolBalance := fromPool.Amount
	event := domain.LedgerEvent{
		ID:           uuid.NewString(),
		Type:         domain.EventTransfer,
		Mint:         from.Mint,
		Account:      from.ID,
		Counterparty: &counterparty,
		Authority:    p.Authority,
		Amount:       p.Amount,
		NewBalance:   from.Snapshot,
		PoolBalance:  &poolBalance,
		CreatedAt:    now,
	}
	if err := s.store.CommitTransfer(ctx, from, to, fromPool, toPool, event); err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: commit transfer %q -> %q: %w", p.FromID, p.ToID, err)
	}
	s.publish(ctx, event)

	s.logger.InfoContext(ctx, "ledger_service: transferred",
		slog.String("from", string(from.ID)),
		slog.String("to", string(to.ID)),
		slog.Uint64("amount", p.Amount),
		slog.Uint64("from_balance", from.Snapshot),
		slog.Uint64("to_balance", to.Snapshot),
	)
	return event, nil
}

// PauseParams identifies the account to pause and the hook identity the
// caller believes gates the mint.
type PauseParams struct {
	MintID    domain.Identity
	AccountID domain.Identity
	Authority domain.Identity
	HookID    domain.Identity
}

// Pause freezes an account's equation at its current value: accrued decay is
// settled, the snapshot is rewritten to the evaluated balance, and further
// elapsed time no longer changes it. Pausing requires a policy extension in
// pause mode, a matching hook identity, and a successful hook invocation.
func (s *LedgerService) Pause(ctx context.Context, p PauseParams) (domain.LedgerEvent, error) {
	unlock, err := s.locks.Acquire(ctx, accountLockKey(p.AccountID), s.lockTTL)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: lock account %q: %w", p.AccountID, err)
	}
	defer unlock()

	mint, err := s.store.GetMint(ctx, p.MintID)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: get mint %q: %w", p.MintID, err)
	}
	policy, err := s.store.GetPolicy(ctx, p.MintID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.LedgerEvent{}, fmt.Errorf("ledger_service: pause %q: %w", p.AccountID, domain.ErrPauseNotAllowed)
		}
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: get policy %q: %w", p.MintID, err)
	}
	if policy.HookID != p.HookID {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: pause %q: hook mismatch: %w", p.AccountID, domain.ErrInvalidAccountData)
	}
	if policy.PauseMode != domain.PauseModePause {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: pause %q: %w", p.AccountID, domain.ErrPauseNotAllowed)
	}

	account, err := s.store.GetAccount(ctx, p.AccountID)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: get account %q: %w", p.AccountID, err)
	}
	if account.Mint != mint.ID {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: pause %q: %w", p.AccountID, domain.ErrMintMismatch)
	}
	if account.IsFrozen() {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: pause %q: %w", p.AccountID, domain.ErrAccountFrozen)
	}
	if account.IsPaused() {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: pause %q: %w", p.AccountID, domain.ErrAlreadyPaused)
	}
	if account.Owner != p.Authority {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: pause %q: %w", p.AccountID, domain.ErrOwnerMismatch)
	}

	current, err := s.evaluate(ctx, account)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: evaluate %q: %w", p.AccountID, err)
	}
	pool, err := s.store.GetDecayPool(ctx, p.AccountID)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: get decay pool %q: %w", p.AccountID, err)
	}

	if err := s.hook.Invoke(ctx, domain.HookRequest{
		HookID:    policy.HookID,
		Mint:      mint.ID,
		Account:   account.ID,
		Authority: p.Authority,
	}); err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: pause %q: %w", p.AccountID, err)
	}

	now := s.now().UTC()
	if err := s.settle(&account, &pool, current, current, now); err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: pause %q: settle decay: %w", p.AccountID, err)
	}
	account.State = domain.AccountPaused
	// The family is refreshed from the mint so an unpause resumes under the
	// mint's current policy rather than whatever the account carried.
	account.EquationFamily = mint.EquationFamily

	event := domain.LedgerEvent{
		ID:         uuid.NewString(),
		Type:       domain.EventPause,
		Mint:       mint.ID,
		Account:    account.ID,
		Authority:  p.Authority,
		NewBalance: current,
		CreatedAt:  now,
	}
	if err := s.store.CommitPause(ctx, account, pool, event); err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: commit pause %q: %w", p.AccountID, err)
	}
	s.publish(ctx, event)

	s.logger.InfoContext(ctx, "ledger_service: paused",
		slog.String("account", string(account.ID)),
		slog.Uint64("frozen_balance", current),
	)
	return event, nil
}

// ReUpParams identifies the account reclaiming decayed value and the hook
// identity gating the mint.
type ReUpParams struct {
	MintID    domain.Identity
	AccountID domain.Identity
	Authority domain.Identity
	HookID    domain.Identity
}

// ReUp reclaims the policy's percentage of the account's decay pool and adds
// it to the balance. Accrued decay is settled into the pool first, so the
// percentage applies to everything lost to time up to this instant.
func (s *LedgerService) ReUp(ctx context.Context, p ReUpParams) (domain.LedgerEvent, error) {
	unlock, err := s.locks.Acquire(ctx, accountLockKey(p.AccountID), s.lockTTL)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: lock account %q: %w", p.AccountID, err)
	}
	defer unlock()

	mint, err := s.store.GetMint(ctx, p.MintID)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: get mint %q: %w", p.MintID, err)
	}
	policy, err := s.store.GetPolicy(ctx, p.MintID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.LedgerEvent{}, fmt.Errorf("ledger_service: reup %q: %w", p.AccountID, domain.ErrReUpNotAllowed)
		}
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: get policy %q: %w", p.MintID, err)
	}
	if policy.HookID != p.HookID {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: reup %q: hook mismatch: %w", p.AccountID, domain.ErrInvalidAccountData)
	}
	if policy.PauseMode != domain.PauseModeReUp {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: reup %q: %w", p.AccountID, domain.ErrReUpNotAllowed)
	}
	if policy.ReUpPercentage > 100 {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: reup %q: %w", p.AccountID, domain.ErrInvalidReUpPercentage)
	}

	account, err := s.store.GetAccount(ctx, p.AccountID)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: get account %q: %w", p.AccountID, err)
	}
	if account.Mint != mint.ID {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: reup %q: %w", p.AccountID, domain.ErrMintMismatch)
	}
	if account.IsFrozen() || account.IsPaused() {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: reup %q: %w", p.AccountID, domain.ErrAccountFrozen)
	}
	if account.Owner != p.Authority {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: reup %q: %w", p.AccountID, domain.ErrOwnerMismatch)
	}

	current, err := s.evaluate(ctx, account)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: evaluate %q: %w", p.AccountID, err)
	}
	pool, err := s.store.GetDecayPool(ctx, p.AccountID)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: get decay pool %q: %w", p.AccountID, err)
	}

	if err := s.hook.Invoke(ctx, domain.HookRequest{
		HookID:    policy.HookID,
		Mint:      mint.ID,
		Account:   account.ID,
		Authority: p.Authority,
	}); err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: reup %q: %w", p.AccountID, err)
	}

	now := s.now().UTC()

	// Settle first so the percentage is taken from the fully credited pool.
	if err := s.settle(&account, &pool, current, current, now); err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: reup %q: settle decay: %w", p.AccountID, err)
	}

	reupAmount := percentageOf(pool.Amount, policy.ReUpPercentage)
	newBalance, err := domain.CheckedAdd(current, reupAmount)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: reup %q: %w", p.AccountID, err)
	}
	remaining, err := domain.CheckedSub(pool.Amount, reupAmount)
	if err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: reup %q: %w", p.AccountID, domain.ErrInsufficientFunds)
	}

	account.Snapshot = newBalance
	pool.Amount = remaining

	poolBalance := pool.Amount
	event := domain.LedgerEvent{
		ID:          uuid.NewString(),
		Type:        domain.EventReUp,
		Mint:        mint.ID,
		Account:     account.ID,
		Authority:   p.Authority,
		Amount:      reupAmount,
		NewBalance:  newBalance,
		PoolBalance: &poolBalance,
		CreatedAt:   now,
	}
	if err := s.store.CommitReUp(ctx, account, pool, event); err != nil {
		return domain.LedgerEvent{}, fmt.Errorf("ledger_service: commit reup %q: %w", p.AccountID, err)
	}
	s.publish(ctx, event)

	s.logger.InfoContext(ctx, "ledger_service: reupped",
		slog.String("account", string(account.ID)),
		slog.Uint64("amount", reupAmount),
		slog.Uint64("new_balance", newBalance),
		slog.Uint64("pool_balance", pool.Amount),
	)
	return event, nil
}

// percentageOf computes amount * pct / 100 through a 128-bit intermediate so
// large pools cannot overflow the multiply.
func percentageOf(amount uint64, pct uint8) uint64 {
	hi, lo := bits.Mul64(amount, uint64(pct))
	q, _ := bits.Div64(hi, lo, 100)
	return q
}

// publish fans the change record out on the bus (ephemeral pub/sub for live
// subscribers, the durable stream for catch-up readers) and invalidates the
// cached balances of the touched accounts. Failures are logged, never
// propagated; the commit already happened.
func (s *LedgerService) publish(ctx context.Context, event domain.LedgerEvent) {
	accounts := []domain.Identity{event.Account}
	if event.Counterparty != nil {
		accounts = append(accounts, *event.Counterparty)
	}
	for _, id := range accounts {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "ledger_service: invalidate balance cache failed",
				slog.String("account", string(id)),
				slog.String("error", err.Error()),
			)
		}
	}

	payload := map[string]any{
		"id":          event.ID,
		"type":        string(event.Type),
		"mint":        string(event.Mint),
		"account":     string(event.Account),
		"authority":   string(event.Authority),
		"amount":      event.Amount,
		"new_balance": event.NewBalance,
		"created_at":  event.CreatedAt.Format(time.RFC3339Nano),
	}
	if event.Counterparty != nil {
		payload["counterparty"] = string(*event.Counterparty)
	}
	if event.PoolBalance != nil {
		payload["pool_balance"] = *event.PoolBalance
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WarnContext(ctx, "ledger_service: marshal event failed",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := s.bus.Publish(ctx, EventChannel, data); err != nil {
		s.logger.WarnContext(ctx, "ledger_service: publish event failed",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.StreamAppend(ctx, EventStream, data); err != nil {
		s.logger.WarnContext(ctx, "ledger_service: stream append failed",
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()),
		)
	}
}
