package domain

import "time"

// PolicyExtension is the optional per-mint side record that gates pause and
// reup behavior. Zero-or-one per mint; when absent, pause and reup are
// rejected outright. The stored HookID must match the hook identity a caller
// supplies before the external policy hook is invoked.
type PolicyExtension struct {
	Mint           Identity
	Authority      Identity
	HookID         Identity
	EquationFamily EquationFamily
	PauseMode      PauseMode
	Params         EquationParams
	ReUpPercentage uint8 // 0-100, meaningful only for PauseModeReUp
	CreatedAt      time.Time
}
