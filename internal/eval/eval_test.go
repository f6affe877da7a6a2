package eval

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalExpr(t *testing.T, expr string, vars map[string]float64) float64 {
	t.Helper()
	p, err := Parse(expr)
	require.NoError(t, err)
	for k, v := range vars {
		p.Bind(k, v)
	}
	got, err := p.Evaluate()
	require.NoError(t, err)
	return got
}

func TestArithmetic(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"1 + 2", 3},
		{"2 * 3 + 4", 10},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 / 4", 2.5},
		{"2 ^ 10", 1024},
		{"2 * 3 ^ 2", 18},
		{"1.5 * 4", 6},
		{"100 - 30 - 20", 50},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			assert.InDelta(t, tc.want, evalExpr(t, tc.expr, nil), 1e-12)
		})
	}
}

func TestUnaryMinus(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"-3", -3},
		{"-3 + 5", 2},
		{"2 * -3", -6},
		{"(-3) ^ 2", 9},
		{"-(2 + 3)", -5},
		{"max(0, -5)", 0},
		{"--3", 3},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			assert.InDelta(t, tc.want, evalExpr(t, tc.expr, nil), 1e-12)
		})
	}
}

func TestComparisons(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"1 < 2", 1},
		{"2 < 1", 0},
		{"2 <= 2", 1},
		{"3 >= 4", 0},
		{"5 > 4", 1},
		{"1 == 1", 1},
		{"1 != 1", 0},
		{"1 + 1 == 2", 1},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			assert.Equal(t, tc.want, evalExpr(t, tc.expr, nil))
		})
	}
}

func TestTernary(t *testing.T) {
	cases := []struct {
		expr string
		vars map[string]float64
		want float64
	}{
		{"1 ? 10 : 20", nil, 10},
		{"0 ? 10 : 20", nil, 20},
		{"t <= 100 ? 1 : 0", map[string]float64{"t": 50}, 1},
		{"t <= 100 ? 1 : 0", map[string]float64{"t": 150}, 0},
		{"x * (t <= 100 ? 1 : 0)", map[string]float64{"x": 7, "t": 100}, 7},
		// Nested in the true branch, then the false branch.
		{"1 ? 0 ? 3 : 4 : 5", nil, 4},
		{"0 ? 1 : 1 ? 6 : 7", nil, 6},
		{"1 + 1 ? 2 + 3 : 4 + 5", nil, 5},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			assert.Equal(t, tc.want, evalExpr(t, tc.expr, tc.vars))
		})
	}
}

func TestFunctions(t *testing.T) {
	assert.InDelta(t, math.Exp(-0.5), evalExpr(t, "exp(-0.5)", nil), 1e-12)
	assert.InDelta(t, 1.0, evalExpr(t, "exp(0)", nil), 1e-12)
	assert.InDelta(t, 0.0, evalExpr(t, "ln(1)", nil), 1e-12)
	assert.InDelta(t, 0.0, evalExpr(t, "sin(0)", nil), 1e-12)
	assert.InDelta(t, 1.0, evalExpr(t, "cos(0)", nil), 1e-12)
	assert.Equal(t, 9.0, evalExpr(t, "max(3, 9)", nil))
	assert.Equal(t, 3.0, evalExpr(t, "min(3, 9)", nil))
	assert.Equal(t, 0.0, evalExpr(t, "max(0, 10 - 25)", nil))
	assert.Equal(t, 14.0, evalExpr(t, "max(2 + 3, 2 * 7)", nil))
}

func TestVariables(t *testing.T) {
	vars := map[string]float64{
		"x":               100,
		"t":               86400,
		"expiration_time": 172800,
	}
	assert.Equal(t, 100.0, evalExpr(t, "x", vars))
	assert.Equal(t, 100.0, evalExpr(t, "x * (t <= expiration_time ? 1 : 0)", vars))
	assert.Equal(t, 200.0, evalExpr(t, "x + x", vars))
}

func TestEquationTemplates(t *testing.T) {
	t.Run("subscription", func(t *testing.T) {
		expr := "x * (t <= expiration_time ? 1 : 0)"
		vars := map[string]float64{"x": 50, "t": 99, "expiration_time": 100}
		assert.Equal(t, 50.0, evalExpr(t, expr, vars))
		vars["t"] = 101
		assert.Equal(t, 0.0, evalExpr(t, expr, vars))
	})

	t.Run("inflationary", func(t *testing.T) {
		expr := "x + (t * inflation_rate / time_unit)"
		vars := map[string]float64{"x": 100, "t": 86400, "inflation_rate": 5, "time_unit": 86400}
		assert.Equal(t, 105.0, evalExpr(t, expr, vars))
	})

	t.Run("deflationary", func(t *testing.T) {
		expr := "max(0, x - (t * decay_rate / time_unit))"
		vars := map[string]float64{"x": 10, "t": 86400 * 3, "decay_rate": 4, "time_unit": 86400}
		assert.Equal(t, 0.0, evalExpr(t, expr, vars))
		vars["decay_rate"] = 2
		assert.Equal(t, 4.0, evalExpr(t, expr, vars))
	})

	t.Run("linear", func(t *testing.T) {
		expr := "x + (t * slope)"
		vars := map[string]float64{"x": 10, "t": 5, "slope": -3}
		assert.Equal(t, -5.0, evalExpr(t, expr, vars))
	})

	t.Run("exponential", func(t *testing.T) {
		expr := "x * exp(-decay_constant * t / time_unit)"
		vars := map[string]float64{"x": 100, "t": 86400, "decay_constant": 0.1, "time_unit": 86400}
		assert.InDelta(t, 100*math.Exp(-0.1), evalExpr(t, expr, vars), 1e-9)
	})

	t.Run("reup boost wrapper", func(t *testing.T) {
		expr := "(max(0, x - (t * decay_rate / time_unit))) + reup_boost"
		vars := map[string]float64{"x": 10, "t": 86400, "decay_rate": 4, "time_unit": 86400, "reup_boost": 3}
		assert.Equal(t, 9.0, evalExpr(t, expr, vars))
	})
}

func TestRebindEvaluatesFresh(t *testing.T) {
	p, err := Parse("x * 2")
	require.NoError(t, err)

	p.Bind("x", 3)
	got, err := p.Evaluate()
	require.NoError(t, err)
	assert.Equal(t, 6.0, got)

	p.Bind("x", 10)
	got, err = p.Evaluate()
	require.NoError(t, err)
	assert.Equal(t, 20.0, got)
}

func TestTokenizeErrors(t *testing.T) {
	cases := []struct {
		name string
		expr string
		want error
	}{
		{"bad number", "1.2.3", ErrInvalidNumber},
		{"stray character", "1 + $", ErrInvalidCharacter},
		{"lone equals", "x = 1", ErrInvalidCharacter},
		{"lone bang", "x ! 1", ErrInvalidCharacter},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.expr)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	cases := []struct {
		name string
		expr string
		vars map[string]float64
		want error
	}{
		{"undefined variable", "x + 1", nil, ErrUndefinedVariable},
		{"unmatched open paren", "(1 + 2", nil, ErrInvalidExpression},
		{"unmatched close paren", "1 + 2)", nil, ErrInvalidExpression},
		{"colon without question", "1 : 2", nil, ErrInvalidExpression},
		{"question without colon", "1 ? 2", nil, ErrInvalidExpression},
		{"dangling operator", "1 +", nil, ErrInvalidExpression},
		{"adjacent operands", "1 2", nil, ErrInvalidExpression},
		{"unknown function", "sqrt(4)", nil, ErrUnsupportedFunction},
		{"comma outside call", "1, 2", nil, ErrInvalidExpression},
		{"empty expression", "", nil, ErrInvalidExpression},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Parse(tc.expr)
			if err != nil {
				assert.ErrorIs(t, err, tc.want)
				return
			}
			for k, v := range tc.vars {
				p.Bind(k, v)
			}
			_, err = p.Evaluate()
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDivisionByZeroIsInf(t *testing.T) {
	got := evalExpr(t, "1 / 0", nil)
	assert.True(t, math.IsInf(got, 1))
}
