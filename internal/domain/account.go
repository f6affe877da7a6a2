package domain

import "time"

// AccountState tracks the lifecycle of a token account.
type AccountState string

const (
	AccountUninitialized AccountState = "uninitialized"
	AccountInitialized   AccountState = "initialized"
	AccountPaused        AccountState = "paused"
	AccountUnpaused      AccountState = "unpaused"
	AccountFrozen        AccountState = "frozen"
)

// Account represents one holder's position in a mint. The balance is not a
// stored number: it is derived by evaluating the account's equation family
// against the snapshot and the time elapsed since SnapshotTime. The snapshot
// is the only thing handlers ever rewrite; the formula itself never changes
// shape, which keeps storage and evaluation O(1) regardless of account age.
type Account struct {
	ID    Identity
	Mint  Identity
	Owner Identity

	// Snapshot is the last stored fixed-point balance, valid at SnapshotTime.
	Snapshot uint64

	// EquationFamily governs how Snapshot evolves with elapsed time. It is
	// refreshed from the mint on pause transitions.
	EquationFamily EquationFamily

	// CreationTime is when the account was opened. SnapshotTime starts equal
	// to it and advances to "now" whenever Snapshot is rewritten, so decay is
	// never re-applied to time that has already been settled.
	CreationTime int64
	SnapshotTime int64

	State           AccountState
	Delegate        *Identity
	DelegatedAmount uint64
	CloseAuthority  *Identity

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsFrozen reports whether the account rejects balance mutations outright.
func (a *Account) IsFrozen() bool {
	return a.State == AccountFrozen
}

// IsPaused reports whether the account is in the paused state.
func (a *Account) IsPaused() bool {
	return a.State == AccountPaused
}
