package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tempoledger/tempod/internal/domain"
)

// LedgerStore implements domain.LedgerStore and domain.EventArchiveStore on
// PostgreSQL. Every Create*/Commit* method runs inside a single transaction;
// partially applied mutations never become visible.
//
// Fixed-point amounts are stored as BIGINT; values beyond the signed 63-bit
// range are outside the supported operating envelope.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

var (
	_ domain.LedgerStore       = (*LedgerStore)(nil)
	_ domain.EventArchiveStore = (*LedgerStore)(nil)
)

const uniqueViolation = "23505"

// mapErr translates driver errors into the domain's sentinel errors.
func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrAlreadyExists
	}
	return err
}

func (s *LedgerStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

func optU64(p *uint64) *int64 {
	if p == nil {
		return nil
	}
	v := int64(*p)
	return &v
}

func optU64Back(p *int64) *uint64 {
	if p == nil {
		return nil
	}
	v := uint64(*p)
	return &v
}

func optIdent(p *domain.Identity) *string {
	if p == nil {
		return nil
	}
	v := string(*p)
	return &v
}

func optIdentBack(p *string) *domain.Identity {
	if p == nil {
		return nil
	}
	v := domain.Identity(*p)
	return &v
}

// CreateMint inserts a mint and, when policy is non-nil, its policy
// extension, atomically.
func (s *LedgerStore) CreateMint(ctx context.Context, mint domain.Mint, policy *domain.PolicyExtension) error {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		const insertMint = `
			INSERT INTO mints (
				id, authority, decimals, supply, freeze_authority,
				equation_family, pause_mode, initialized, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

		if _, err := tx.Exec(ctx, insertMint,
			string(mint.ID), string(mint.Authority), int16(mint.Decimals), int64(mint.Supply),
			optIdent(mint.FreezeAuthority),
			string(mint.EquationFamily), string(mint.PauseMode), mint.Initialized,
			mint.CreatedAt, mint.UpdatedAt,
		); err != nil {
			return err
		}

		if policy == nil {
			return nil
		}
		const insertPolicy = `
			INSERT INTO policy_extensions (
				mint, authority, hook_id, equation_family, pause_mode,
				snapshot_time, expiration_time, inflation_rate, decay_rate,
				time_unit, slope, decay_constant, reup_boost,
				reup_percentage, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

		_, err := tx.Exec(ctx, insertPolicy,
			string(policy.Mint), string(policy.Authority), string(policy.HookID),
			string(policy.EquationFamily), string(policy.PauseMode),
			policy.Params.SnapshotTime, policy.Params.ExpirationTime,
			optU64(policy.Params.InflationRate), optU64(policy.Params.DecayRate),
			optU64(policy.Params.TimeUnit), policy.Params.Slope,
			policy.Params.DecayConstant, optU64(policy.Params.ReUpBoost),
			int16(policy.ReUpPercentage), policy.CreatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("postgres: create mint %s: %w", mint.ID, mapErr(err))
	}
	return nil
}

// GetMint returns a mint by ID.
func (s *LedgerStore) GetMint(ctx context.Context, id domain.Identity) (domain.Mint, error) {
	const query = `
		SELECT id, authority, decimals, supply, freeze_authority,
			equation_family, pause_mode, initialized, created_at, updated_at
		FROM mints WHERE id = $1`

	var (
		m               domain.Mint
		mintID, auth    string
		decimals        int16
		supply          int64
		freezeAuthority *string
		family, mode    string
	)
	err := s.pool.QueryRow(ctx, query, string(id)).Scan(
		&mintID, &auth, &decimals, &supply, &freezeAuthority,
		&family, &mode, &m.Initialized, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Mint{}, fmt.Errorf("postgres: get mint %s: %w", id, mapErr(err))
	}
	m.ID = domain.Identity(mintID)
	m.Authority = domain.Identity(auth)
	m.Decimals = uint8(decimals)
	m.Supply = uint64(supply)
	m.FreezeAuthority = optIdentBack(freezeAuthority)
	m.EquationFamily = domain.EquationFamily(family)
	m.PauseMode = domain.PauseMode(mode)
	return m, nil
}

// GetPolicy returns a mint's policy extension.
func (s *LedgerStore) GetPolicy(ctx context.Context, mint domain.Identity) (domain.PolicyExtension, error) {
	const query = `
		SELECT mint, authority, hook_id, equation_family, pause_mode,
			snapshot_time, expiration_time, inflation_rate, decay_rate,
			time_unit, slope, decay_constant, reup_boost,
			reup_percentage, created_at
		FROM policy_extensions WHERE mint = $1`

	var (
		p                            domain.PolicyExtension
		mintID, auth, hookID         string
		family, mode                 string
		inflation, decay, unit, reup *int64
		pct                          int16
	)
	err := s.pool.QueryRow(ctx, query, string(mint)).Scan(
		&mintID, &auth, &hookID, &family, &mode,
		&p.Params.SnapshotTime, &p.Params.ExpirationTime, &inflation, &decay,
		&unit, &p.Params.Slope, &p.Params.DecayConstant, &reup,
		&pct, &p.CreatedAt,
	)
	if err != nil {
		return domain.PolicyExtension{}, fmt.Errorf("postgres: get policy %s: %w", mint, mapErr(err))
	}
	p.Mint = domain.Identity(mintID)
	p.Authority = domain.Identity(auth)
	p.HookID = domain.Identity(hookID)
	p.EquationFamily = domain.EquationFamily(family)
	p.PauseMode = domain.PauseMode(mode)
	p.Params.InflationRate = optU64Back(inflation)
	p.Params.DecayRate = optU64Back(decay)
	p.Params.TimeUnit = optU64Back(unit)
	p.Params.ReUpBoost = optU64Back(reup)
	p.ReUpPercentage = uint8(pct)
	return p, nil
}

// CreateAccount inserts an account and its paired decay pool atomically.
func (s *LedgerStore) CreateAccount(ctx context.Context, account domain.Account, pool domain.DecayPool) error {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		const insertAccount = `
			INSERT INTO accounts (
				id, mint, owner_id, snapshot, equation_family,
				creation_time, snapshot_time, state, delegate,
				delegated_amount, close_authority, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

		if _, err := tx.Exec(ctx, insertAccount,
			string(account.ID), string(account.Mint), string(account.Owner),
			int64(account.Snapshot), string(account.EquationFamily),
			account.CreationTime, account.SnapshotTime, string(account.State),
			optIdent(account.Delegate), int64(account.DelegatedAmount),
			optIdent(account.CloseAuthority), account.CreatedAt, account.UpdatedAt,
		); err != nil {
			return err
		}

		const insertPool = `
			INSERT INTO decay_pools (account, amount, updated_at)
			VALUES ($1, $2, $3)`
		_, err := tx.Exec(ctx, insertPool,
			string(pool.Account), int64(pool.Amount), pool.UpdatedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("postgres: create account %s: %w", account.ID, mapErr(err))
	}
	return nil
}

func scanAccount(row pgx.Row) (domain.Account, error) {
	var (
		a                  domain.Account
		id, mint, owner    string
		snapshot           int64
		family, state      string
		delegate, closeAut *string
		delegated          int64
	)
	err := row.Scan(
		&id, &mint, &owner, &snapshot, &family,
		&a.CreationTime, &a.SnapshotTime, &state, &delegate,
		&delegated, &closeAut, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, err
	}
	a.ID = domain.Identity(id)
	a.Mint = domain.Identity(mint)
	a.Owner = domain.Identity(owner)
	a.Snapshot = uint64(snapshot)
	a.EquationFamily = domain.EquationFamily(family)
	a.State = domain.AccountState(state)
	a.Delegate = optIdentBack(delegate)
	a.DelegatedAmount = uint64(delegated)
	a.CloseAuthority = optIdentBack(closeAut)
	return a, nil
}

const accountSelectCols = `id, mint, owner_id, snapshot, equation_family,
	creation_time, snapshot_time, state, delegate,
	delegated_amount, close_authority, created_at, updated_at`

// GetAccount returns an account by ID.
func (s *LedgerStore) GetAccount(ctx context.Context, id domain.Identity) (domain.Account, error) {
	query := `SELECT ` + accountSelectCols + ` FROM accounts WHERE id = $1`
	account, err := scanAccount(s.pool.QueryRow(ctx, query, string(id)))
	if err != nil {
		return domain.Account{}, fmt.Errorf("postgres: get account %s: %w", id, mapErr(err))
	}
	return account, nil
}

// GetDecayPool returns the decay pool paired with an account.
func (s *LedgerStore) GetDecayPool(ctx context.Context, account domain.Identity) (domain.DecayPool, error) {
	const query = `SELECT account, amount, updated_at FROM decay_pools WHERE account = $1`

	var (
		p      domain.DecayPool
		acct   string
		amount int64
	)
	if err := s.pool.QueryRow(ctx, query, string(account)).Scan(&acct, &amount, &p.UpdatedAt); err != nil {
		return domain.DecayPool{}, fmt.Errorf("postgres: get decay pool %s: %w", account, mapErr(err))
	}
	p.Account = domain.Identity(acct)
	p.Amount = uint64(amount)
	return p, nil
}

func updateMint(ctx context.Context, tx pgx.Tx, mint domain.Mint) error {
	const query = `
		UPDATE mints SET supply = $2, updated_at = $3 WHERE id = $1`
	tag, err := tx.Exec(ctx, query, string(mint.ID), int64(mint.Supply), mint.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func updateAccount(ctx context.Context, tx pgx.Tx, account domain.Account) error {
	const query = `
		UPDATE accounts SET
			snapshot         = $2,
			equation_family  = $3,
			snapshot_time    = $4,
			state            = $5,
			delegate         = $6,
			delegated_amount = $7,
			close_authority  = $8,
			updated_at       = $9
		WHERE id = $1`
	tag, err := tx.Exec(ctx, query,
		string(account.ID), int64(account.Snapshot), string(account.EquationFamily),
		account.SnapshotTime, string(account.State), optIdent(account.Delegate),
		int64(account.DelegatedAmount), optIdent(account.CloseAuthority), account.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func updatePool(ctx context.Context, tx pgx.Tx, pool domain.DecayPool) error {
	const query = `
		UPDATE decay_pools SET amount = $2, updated_at = $3 WHERE account = $1`
	tag, err := tx.Exec(ctx, query, string(pool.Account), int64(pool.Amount), pool.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func insertEvent(ctx context.Context, tx pgx.Tx, event domain.LedgerEvent) error {
	const query = `
		INSERT INTO ledger_events (
			id, type, mint, account, counterparty, authority,
			amount, new_balance, pool_balance, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := tx.Exec(ctx, query,
		event.ID, string(event.Type), string(event.Mint), string(event.Account),
		optIdent(event.Counterparty), string(event.Authority),
		int64(event.Amount), int64(event.NewBalance), optU64(event.PoolBalance),
		event.CreatedAt,
	)
	return err
}

// CommitSupplyChange writes the mint, the account, its decay pool, and the
// change record in one transaction.
func (s *LedgerStore) CommitSupplyChange(ctx context.Context, mint domain.Mint, account domain.Account, pool domain.DecayPool, event domain.LedgerEvent) error {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if err := updateMint(ctx, tx, mint); err != nil {
			return err
		}
		if err := updateAccount(ctx, tx, account); err != nil {
			return err
		}
		if err := updatePool(ctx, tx, pool); err != nil {
			return err
		}
		return insertEvent(ctx, tx, event)
	})
	if err != nil {
		return fmt.Errorf("postgres: commit supply change %s: %w", account.ID, mapErr(err))
	}
	return nil
}

// CommitTransfer writes both accounts, both pools, and the change record in
// one transaction.
func (s *LedgerStore) CommitTransfer(ctx context.Context, from, to domain.Account, fromPool, toPool domain.DecayPool, event domain.LedgerEvent) error {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if err := updateAccount(ctx, tx, from); err != nil {
			return err
		}
		if err := updateAccount(ctx, tx, to); err != nil {
			return err
		}
		if err := updatePool(ctx, tx, fromPool); err != nil {
			return err
		}
		if err := updatePool(ctx, tx, toPool); err != nil {
			return err
		}
		return insertEvent(ctx, tx, event)
	})
	if err != nil {
		return fmt.Errorf("postgres: commit transfer %s -> %s: %w", from.ID, to.ID, mapErr(err))
	}
	return nil
}

// CommitPause writes the paused account, its settled pool, and the change
// record in one transaction.
func (s *LedgerStore) CommitPause(ctx context.Context, account domain.Account, pool domain.DecayPool, event domain.LedgerEvent) error {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if err := updateAccount(ctx, tx, account); err != nil {
			return err
		}
		if err := updatePool(ctx, tx, pool); err != nil {
			return err
		}
		return insertEvent(ctx, tx, event)
	})
	if err != nil {
		return fmt.Errorf("postgres: commit pause %s: %w", account.ID, mapErr(err))
	}
	return nil
}

// CommitReUp writes the boosted account, the debited pool, and the change
// record in one transaction.
func (s *LedgerStore) CommitReUp(ctx context.Context, account domain.Account, pool domain.DecayPool, event domain.LedgerEvent) error {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if err := updateAccount(ctx, tx, account); err != nil {
			return err
		}
		if err := updatePool(ctx, tx, pool); err != nil {
			return err
		}
		return insertEvent(ctx, tx, event)
	})
	if err != nil {
		return fmt.Errorf("postgres: commit reup %s: %w", account.ID, mapErr(err))
	}
	return nil
}

func scanEvents(rows pgx.Rows) ([]domain.LedgerEvent, error) {
	var events []domain.LedgerEvent
	for rows.Next() {
		var (
			ev                            domain.LedgerEvent
			typ, mint, account, authority string
			counterparty                  *string
			amount, newBalance            int64
			poolBalance                   *int64
		)
		if err := rows.Scan(
			&ev.ID, &typ, &mint, &account, &counterparty, &authority,
			&amount, &newBalance, &poolBalance, &ev.CreatedAt,
		); err != nil {
			return nil, err
		}
		ev.Type = domain.EventType(typ)
		ev.Mint = domain.Identity(mint)
		ev.Account = domain.Identity(account)
		ev.Counterparty = optIdentBack(counterparty)
		ev.Authority = domain.Identity(authority)
		ev.Amount = uint64(amount)
		ev.NewBalance = uint64(newBalance)
		ev.PoolBalance = optU64Back(poolBalance)
		events = append(events, ev)
	}
	return events, rows.Err()
}

const eventSelectCols = `id, type, mint, account, counterparty, authority,
	amount, new_balance, pool_balance, created_at`

// ListEvents returns change records touching the account (as primary or as
// transfer counterparty), newest first.
func (s *LedgerStore) ListEvents(ctx context.Context, account domain.Identity, opts domain.ListOpts) ([]domain.LedgerEvent, error) {
	query := `SELECT ` + eventSelectCols + `
		FROM ledger_events
		WHERE (account = $1 OR counterparty = $1)`
	args := []any{string(account)}

	if opts.Since != nil {
		args = append(args, *opts.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events %s: %w", account, err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan events %s: %w", account, err)
	}
	return events, nil
}

// ListEventsBefore returns all change records older than the cutoff, oldest
// first, for archival.
func (s *LedgerStore) ListEventsBefore(ctx context.Context, before time.Time) ([]domain.LedgerEvent, error) {
	query := `SELECT ` + eventSelectCols + `
		FROM ledger_events WHERE created_at < $1 ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events before %s: %w", before, err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan events before %s: %w", before, err)
	}
	return events, nil
}

// DeleteEventsBefore prunes change records older than the cutoff and returns
// the number removed.
func (s *LedgerStore) DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM ledger_events WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete events before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}
