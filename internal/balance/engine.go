// Package balance derives the current balance of an account from its stored
// snapshot, its equation family, and elapsed time. Balances are never stored
// as "current" numbers; they are recomputed on demand, so the stored state
// stays O(1) no matter how old the account is.
package balance

import (
	"fmt"
	"math"

	"github.com/tempoledger/tempod/internal/domain"
	"github.com/tempoledger/tempod/internal/eval"
)

// Engine evaluates balances at a fixed-point precision of 10^decimals base
// units per whole token.
type Engine struct {
	scale float64
}

func NewEngine(decimals uint8) *Engine {
	return &Engine{scale: math.Pow10(int(decimals))}
}

// Evaluate returns the balance in base units at time now for an account whose
// snapshot was taken at snapshotTime.
//
// The snapshot is de-scaled to whole tokens, bound as x alongside the elapsed
// seconds t and the family's parameters, the family template is evaluated,
// and the result is re-scaled and rounded to the nearest base unit. Results
// below zero clamp to zero; non-finite results are an error. The identity
// family with no reup boost short-circuits and returns the snapshot exactly,
// with no float round trip.
func (e *Engine) Evaluate(snapshot uint64, family domain.EquationFamily, params domain.EquationParams, snapshotTime, now int64) (uint64, error) {
	if family == domain.EquationIdentity && params.ReUpBoost == nil {
		return snapshot, nil
	}

	if err := params.ValidateFor(family); err != nil {
		return 0, fmt.Errorf("equation params for %s: %w", family, err)
	}

	// Clock skew can put now before the snapshot; elapsed time saturates at
	// zero rather than running the formula backwards.
	var elapsed int64
	if now > snapshotTime {
		elapsed = now - snapshotTime
	}

	expr := family.EquationString()
	if params.ReUpBoost != nil {
		expr = "(" + expr + ") + reup_boost"
	}

	p, err := eval.Parse(expr)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrBalanceEvaluation, err)
	}

	p.Bind("x", float64(snapshot)/e.scale)
	p.Bind("t", float64(elapsed))
	if params.ExpirationTime != nil {
		p.Bind("expiration_time", float64(*params.ExpirationTime))
	}
	if params.InflationRate != nil {
		p.Bind("inflation_rate", float64(*params.InflationRate))
	}
	if params.DecayRate != nil {
		p.Bind("decay_rate", float64(*params.DecayRate))
	}
	if params.TimeUnit != nil {
		p.Bind("time_unit", float64(*params.TimeUnit))
	}
	if params.Slope != nil {
		p.Bind("slope", float64(*params.Slope))
	}
	if params.DecayConstant != nil {
		p.Bind("decay_constant", *params.DecayConstant)
	}
	if params.ReUpBoost != nil {
		// The boost is stored in base units; bind it in the same de-scaled
		// domain as x so the addition is unit-consistent.
		p.Bind("reup_boost", float64(*params.ReUpBoost)/e.scale)
	}

	result, err := p.Evaluate()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrBalanceEvaluation, err)
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("%w: non-finite result", domain.ErrBalanceEvaluation)
	}
	if result <= 0 {
		return 0, nil
	}

	scaled := math.Round(result * e.scale)
	if scaled >= math.MaxUint64 {
		return 0, fmt.Errorf("%w: result exceeds range", domain.ErrBalanceEvaluation)
	}
	return uint64(scaled), nil
}

// Decay returns the portion of a stored snapshot that evaporated to time
// alone: the snapshot minus the freshly evaluated balance, floored at zero so
// growth families never produce a negative decay.
func Decay(snapshot, current uint64) uint64 {
	if current >= snapshot {
		return 0
	}
	return snapshot - current
}
