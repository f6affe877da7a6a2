package domain

import "time"

// DecayPool is the conservation ledger paired 1:1 with an account. Every
// balance decrease attributable purely to time decay (not to an explicit
// burn or transfer debit) is credited here; reup spends from here. The pool
// never goes negative: spending more than accumulated is an error, not a
// clamp.
type DecayPool struct {
	Account   Identity
	Amount    uint64
	UpdatedAt time.Time
}
