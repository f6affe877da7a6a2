// Package domain defines the ledger entities (mints, accounts, decay pools,
// policy extensions), their invariants, and the store interfaces implemented
// by the persistence and cache layers.
package domain

import "strconv"

// Identity is an opaque caller or record identity. The ledger never derives
// or verifies identities itself; signature verification happens upstream.
type Identity string

// OptionalIdentity reports whether an optional identity field is set.
// Optional identities are carried as pointers so "unset" is distinguishable
// from a degenerate empty value.
func OptionalIdentity(id *Identity) (Identity, bool) {
	if id == nil || *id == "" {
		return "", false
	}
	return *id, true
}

// ParseAmount parses a decimal string of fixed-point base units.
func ParseAmount(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return n, nil
}

// CheckedAdd returns a+b or ErrOverflow when the sum wraps.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

// CheckedSub returns a-b or ErrOverflow when b exceeds a.
func CheckedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrOverflow
	}
	return a - b, nil
}
