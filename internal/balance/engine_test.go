package balance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempoledger/tempod/internal/domain"
)

const day = int64(86400)

func u64(v uint64) *uint64   { return &v }
func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }

func TestIdentityReturnsSnapshotExactly(t *testing.T) {
	e := NewEngine(9)

	// A snapshot beyond float64's integer precision must come back unchanged.
	snapshot := uint64(math.MaxUint64 - 3)
	got, err := e.Evaluate(snapshot, domain.EquationIdentity, domain.EquationParams{}, 0, day*365)
	require.NoError(t, err)
	assert.Equal(t, snapshot, got)
}

func TestSubscription(t *testing.T) {
	e := NewEngine(9)
	params := domain.EquationParams{ExpirationTime: i64(30 * day)}
	snapshot := uint64(50_000_000_000) // 50 tokens

	got, err := e.Evaluate(snapshot, domain.EquationSubscription, params, 0, 29*day)
	require.NoError(t, err)
	assert.Equal(t, snapshot, got, "before expiration the full balance shows")

	got, err = e.Evaluate(snapshot, domain.EquationSubscription, params, 0, 30*day)
	require.NoError(t, err)
	assert.Equal(t, snapshot, got, "expiration boundary is inclusive")

	got, err = e.Evaluate(snapshot, domain.EquationSubscription, params, 0, 30*day+1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got, "past expiration the balance is zero")
}

func TestInflationary(t *testing.T) {
	e := NewEngine(9)
	params := domain.EquationParams{InflationRate: u64(5), TimeUnit: u64(86400)}

	// 100 tokens + 5 tokens/day after 3 days = 115 tokens.
	got, err := e.Evaluate(100_000_000_000, domain.EquationInflationary, params, 0, 3*day)
	require.NoError(t, err)
	assert.Equal(t, uint64(115_000_000_000), got)

	// Half a day accrues half the rate.
	got, err = e.Evaluate(100_000_000_000, domain.EquationInflationary, params, 0, day/2)
	require.NoError(t, err)
	assert.Equal(t, uint64(102_500_000_000), got)
}

func TestDeflationaryFloorsAtZero(t *testing.T) {
	e := NewEngine(9)
	params := domain.EquationParams{DecayRate: u64(4), TimeUnit: u64(86400)}

	got, err := e.Evaluate(10_000_000_000, domain.EquationDeflationary, params, 0, day)
	require.NoError(t, err)
	assert.Equal(t, uint64(6_000_000_000), got)

	// 10 tokens decaying 4/day is exhausted after 2.5 days.
	got, err = e.Evaluate(10_000_000_000, domain.EquationDeflationary, params, 0, 10*day)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got)
}

func TestLinearNegativeSlopeClampsAtZero(t *testing.T) {
	e := NewEngine(9)
	params := domain.EquationParams{Slope: i64(-2)}

	// Unlike deflationary there is no max(0, ...) in the template; the
	// engine's own clamp covers the negative result.
	got, err := e.Evaluate(10_000_000_000, domain.EquationLinear, params, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got)

	got, err = e.Evaluate(10_000_000_000, domain.EquationLinear, params, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(6_000_000_000), got)
}

func TestExponential(t *testing.T) {
	e := NewEngine(9)
	params := domain.EquationParams{DecayConstant: f64(0.5), TimeUnit: u64(86400)}

	got, err := e.Evaluate(100_000_000_000, domain.EquationExponential, params, 0, day)
	require.NoError(t, err)
	want := uint64(math.Round(100 * math.Exp(-0.5) * 1e9))
	assert.Equal(t, want, got)

	// At t=0 the exponential is exactly 1.
	got, err = e.Evaluate(100_000_000_000, domain.EquationExponential, params, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000_000_000), got)
}

func TestReUpBoostWrapsFamily(t *testing.T) {
	e := NewEngine(9)
	params := domain.EquationParams{
		DecayRate: u64(4),
		TimeUnit:  u64(86400),
		ReUpBoost: u64(3_000_000_000),
	}

	// 10 tokens decayed by 4 after one day, plus a 3 token boost.
	got, err := e.Evaluate(10_000_000_000, domain.EquationDeflationary, params, 0, day)
	require.NoError(t, err)
	assert.Equal(t, uint64(9_000_000_000), got)
}

func TestReUpBoostOnIdentity(t *testing.T) {
	e := NewEngine(9)
	params := domain.EquationParams{ReUpBoost: u64(1_000_000_000)}

	// A boost disables the identity short-circuit: the template becomes
	// (x) + reup_boost.
	got, err := e.Evaluate(5_000_000_000, domain.EquationIdentity, params, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(6_000_000_000), got)
}

func TestElapsedSaturatesAtZero(t *testing.T) {
	e := NewEngine(9)
	params := domain.EquationParams{DecayRate: u64(4), TimeUnit: u64(86400)}

	// now before snapshotTime: no decay is applied.
	got, err := e.Evaluate(10_000_000_000, domain.EquationDeflationary, params, 1000, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000_000_000), got)
}

func TestSnapshotTimeShiftsDecayWindow(t *testing.T) {
	e := NewEngine(9)
	params := domain.EquationParams{DecayRate: u64(4), TimeUnit: u64(86400)}

	// Same wall-clock "now", later snapshot: only the un-settled time decays.
	fromCreation, err := e.Evaluate(10_000_000_000, domain.EquationDeflationary, params, 0, 2*day)
	require.NoError(t, err)
	fromSnapshot, err := e.Evaluate(10_000_000_000, domain.EquationDeflationary, params, day, 2*day)
	require.NoError(t, err)

	assert.Equal(t, uint64(2_000_000_000), fromCreation)
	assert.Equal(t, uint64(6_000_000_000), fromSnapshot)
}

func TestMissingParamsRejected(t *testing.T) {
	e := NewEngine(9)

	cases := []struct {
		family domain.EquationFamily
		params domain.EquationParams
	}{
		{domain.EquationSubscription, domain.EquationParams{}},
		{domain.EquationInflationary, domain.EquationParams{InflationRate: u64(5)}},
		{domain.EquationDeflationary, domain.EquationParams{TimeUnit: u64(86400)}},
		{domain.EquationLinear, domain.EquationParams{}},
		{domain.EquationExponential, domain.EquationParams{DecayConstant: f64(0.1)}},
	}
	for _, tc := range cases {
		t.Run(string(tc.family), func(t *testing.T) {
			_, err := e.Evaluate(1_000_000_000, tc.family, tc.params, 0, day)
			assert.ErrorIs(t, err, domain.ErrInvalidAccountData)
		})
	}
}

func TestNonFiniteResultRejected(t *testing.T) {
	e := NewEngine(9)
	params := domain.EquationParams{InflationRate: u64(5), TimeUnit: u64(0)}

	_, err := e.Evaluate(1_000_000_000, domain.EquationInflationary, params, 0, day)
	assert.ErrorIs(t, err, domain.ErrBalanceEvaluation)
}

func TestZeroDecimals(t *testing.T) {
	e := NewEngine(0)
	params := domain.EquationParams{InflationRate: u64(3), TimeUnit: u64(86400)}

	got, err := e.Evaluate(10, domain.EquationInflationary, params, 0, 2*day)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), got)
}

func TestDecay(t *testing.T) {
	assert.Equal(t, uint64(4), Decay(10, 6))
	assert.Equal(t, uint64(0), Decay(10, 10))
	assert.Equal(t, uint64(0), Decay(10, 15), "growth never yields decay")
	assert.Equal(t, uint64(10), Decay(10, 0))
}
