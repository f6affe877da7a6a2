package domain

import "errors"

// Validation errors, caught before any record is mutated.
var (
	ErrAlreadyInUse             = errors.New("mint already initialized")
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrInvalidReUpPercentage    = errors.New("invalid reup percentage")
	ErrMissingReUpPercentage    = errors.New("missing reup percentage")
	ErrUnexpectedReUpPercentage = errors.New("unexpected reup percentage")
	ErrSelfTransfer             = errors.New("self transfer")
	ErrMintMismatch             = errors.New("mint mismatch")
)

// Authorization errors.
var (
	ErrInvalidAuthority            = errors.New("invalid authority for operation")
	ErrInvalidMintAuthority        = errors.New("invalid mint authority")
	ErrOwnerMismatch               = errors.New("owner mismatch")
	ErrInsufficientDelegatedAmount = errors.New("insufficient delegated amount")
)

// State errors: the operation is invalid for the current lifecycle or
// policy state.
var (
	ErrAccountFrozen   = errors.New("account is frozen")
	ErrAlreadyPaused   = errors.New("account is already paused")
	ErrPauseNotAllowed = errors.New("mint does not allow pausing")
	ErrReUpNotAllowed  = errors.New("reups not enabled for this mint")
)

// Arithmetic errors from checked integer operations.
var (
	ErrOverflow          = errors.New("numerical overflow")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Evaluation errors.
var (
	ErrBalanceEvaluation  = errors.New("error evaluating balance equation")
	ErrInvalidAccountData = errors.New("invalid account data")
)

// Infrastructure errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrLockHeld      = errors.New("lock already held")
	ErrHookFailed    = errors.New("policy hook invocation failed")
)
