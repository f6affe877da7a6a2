package domain

import "time"

// PauseMode selects what the policy extension allows an account holder to do
// with elapsed-time decay: nothing, pause the equation, or reclaim a
// percentage of decayed value from the decay pool.
type PauseMode string

const (
	PauseModeNone  PauseMode = "none"
	PauseModePause PauseMode = "pause"
	PauseModeReUp  PauseMode = "reup"
)

// Valid reports whether m is a known pause mode.
func (m PauseMode) Valid() bool {
	switch m {
	case PauseModeNone, PauseModePause, PauseModeReUp:
		return true
	}
	return false
}

// Mint represents one token class.
type Mint struct {
	ID              Identity
	Authority       Identity
	Decimals        uint8
	Supply          uint64 // fixed-point base units
	FreezeAuthority *Identity
	EquationFamily  EquationFamily
	PauseMode       PauseMode
	Initialized     bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
