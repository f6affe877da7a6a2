package domain

// EquationFamily names the time-parameterized function that governs how an
// account's balance snapshot evolves with elapsed time.
type EquationFamily string

const (
	EquationIdentity     EquationFamily = "identity"
	EquationSubscription EquationFamily = "subscription"
	EquationInflationary EquationFamily = "inflationary"
	EquationDeflationary EquationFamily = "deflationary"
	EquationLinear       EquationFamily = "linear"
	EquationExponential  EquationFamily = "exponential"
)

// Valid reports whether f is a known equation family.
func (f EquationFamily) Valid() bool {
	switch f {
	case EquationIdentity, EquationSubscription, EquationInflationary,
		EquationDeflationary, EquationLinear, EquationExponential:
		return true
	}
	return false
}

// EquationString returns the canonical formula template for the family. The
// free variables are x (the de-scaled balance snapshot) and t (elapsed
// seconds since the snapshot time); the remaining names are bound from
// EquationParams.
func (f EquationFamily) EquationString() string {
	switch f {
	case EquationSubscription:
		return "x * (t <= expiration_time ? 1 : 0)"
	case EquationInflationary:
		return "x + (t * inflation_rate / time_unit)"
	case EquationDeflationary:
		return "max(0, x - (t * decay_rate / time_unit))"
	case EquationLinear:
		return "x + (t * slope)"
	case EquationExponential:
		return "x * exp(-decay_constant * t / time_unit)"
	default:
		return "x"
	}
}

// EquationParams carries the per-family constants supplied by policy
// configuration. Every field is optional; each family consumes only the
// subset it needs and evaluation fails when a required field is absent.
type EquationParams struct {
	SnapshotTime   *int64
	ExpirationTime *int64
	InflationRate  *uint64
	DecayRate      *uint64
	TimeUnit       *uint64
	Slope          *int64
	DecayConstant  *float64
	ReUpBoost      *uint64
}

// DefaultParams returns the parameter skeleton for the family: the fields a
// policy configuration must supply, zero-valued.
func (f EquationFamily) DefaultParams() EquationParams {
	zeroU64 := func() *uint64 { v := uint64(0); return &v }
	zeroI64 := func() *int64 { v := int64(0); return &v }
	zeroF64 := func() *float64 { v := float64(0); return &v }

	switch f {
	case EquationSubscription:
		return EquationParams{ExpirationTime: zeroI64()}
	case EquationInflationary:
		day := uint64(86400)
		return EquationParams{InflationRate: zeroU64(), TimeUnit: &day}
	case EquationDeflationary:
		day := uint64(86400)
		return EquationParams{DecayRate: zeroU64(), TimeUnit: &day}
	case EquationLinear:
		return EquationParams{Slope: zeroI64()}
	case EquationExponential:
		day := uint64(86400)
		return EquationParams{DecayConstant: zeroF64(), TimeUnit: &day}
	default:
		return EquationParams{}
	}
}

// ValidateFor checks that every parameter the family's template references is
// present. A missing field is an ErrInvalidAccountData failure, never a
// silent default substitution.
func (p EquationParams) ValidateFor(f EquationFamily) error {
	switch f {
	case EquationSubscription:
		if p.ExpirationTime == nil {
			return ErrInvalidAccountData
		}
	case EquationInflationary:
		if p.InflationRate == nil || p.TimeUnit == nil {
			return ErrInvalidAccountData
		}
	case EquationDeflationary:
		if p.DecayRate == nil || p.TimeUnit == nil {
			return ErrInvalidAccountData
		}
	case EquationLinear:
		if p.Slope == nil {
			return ErrInvalidAccountData
		}
	case EquationExponential:
		if p.DecayConstant == nil || p.TimeUnit == nil {
			return ErrInvalidAccountData
		}
	}
	return nil
}
