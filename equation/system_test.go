package equation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/stoich/bank"
	"github.com/njchilds90/stoich/calcerr"
	"github.com/njchilds90/stoich/quantity"
)

func newSystem(t *testing.T, formulas, variables string) *System {
	t.Helper()
	fs, err := bank.ParseFormulas(strings.NewReader(formulas))
	require.NoError(t, err)
	reg, err := bank.ParseVariables(strings.NewReader(variables))
	require.NoError(t, err)
	b, err := bank.New(fs, reg)
	require.NoError(t, err)
	return New(b)
}

func defaultSystem(t *testing.T) *System {
	t.Helper()
	s, err := NewDefault()
	require.NoError(t, err)
	return s
}

func TestMolesFromMass(t *testing.T) {
	s := defaultSystem(t)
	require.NoError(t, s.Write(quantity.MustNew("M", 18, "g/mol")))
	require.NoError(t, s.Write(quantity.MustNew("m", 0.713, "g")))

	sols, err := s.SolveAs("n", "mmol", 3)
	require.NoError(t, err)
	require.Len(t, sols, 1)
	assert.Equal(t, "n", sols[0].Name())
	assert.Equal(t, "mmol", sols[0].Unit().String())
	assert.Equal(t, 39.611, sols[0].Magnitude())
}

func TestSolveReturnsDeclaredUnit(t *testing.T) {
	s := defaultSystem(t)
	require.NoError(t, s.Write(quantity.MustNew("n", 2, "mol")))
	require.NoError(t, s.Write(quantity.MustNew("M", 0.018, "kg/mol")))

	sols, err := s.Solve("m")
	require.NoError(t, err)
	require.Len(t, sols, 1)
	assert.Equal(t, "g", sols[0].Unit().String())
	assert.InDelta(t, 36, sols[0].Magnitude(), 1e-9)
	assert.False(t, s.Has("m"), "solve must not write the result")
}

func TestWriteTwice(t *testing.T) {
	s := defaultSystem(t)
	require.NoError(t, s.Write(quantity.MustNew("m", 1, "g")))
	err := s.Write(quantity.MustNew("m", 2, "g"))
	assert.ErrorIs(t, err, calcerr.ErrValueAlreadyPresent)

	require.NoError(t, s.Erase("m"))
	assert.NoError(t, s.Write(quantity.MustNew("m", 2, "g")))
}

func TestWriteErrors(t *testing.T) {
	s := defaultSystem(t)
	assert.ErrorIs(t, s.Write(quantity.MustNew("x", 1, "g")), calcerr.ErrUnknownVariable)
	assert.ErrorIs(t, s.Write(quantity.MustNew("m", 1, "mol")), calcerr.ErrIncompatibleUnits)
	assert.ErrorIs(t, s.Write(quantity.MustNew("R", 8, "J/(mol*K)")), calcerr.ErrValueAlreadyPresent)
}

func TestReadErase(t *testing.T) {
	s := defaultSystem(t)
	_, err := s.Read("m", "")
	assert.ErrorIs(t, err, calcerr.ErrValueNotFound)
	assert.ErrorIs(t, s.Erase("m"), calcerr.ErrValueNotFound)

	require.NoError(t, s.Write(quantity.MustNew("m", 1500, "mg")))
	q, err := s.Read("m", "")
	require.NoError(t, err)
	assert.Equal(t, "m = 1500 mg", q.String())

	q, err = s.Read("m", "g")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, q.Magnitude(), 1e-12)

	_, err = s.Read("m", "L")
	assert.ErrorIs(t, err, calcerr.ErrIncompatibleUnits)
}

func TestStoredValuesAreIsolated(t *testing.T) {
	s := defaultSystem(t)
	m := quantity.MustNew("m", 1500, "mg")
	require.NoError(t, s.Write(m))
	require.NoError(t, m.Rewrite(1, "kg"))

	q, err := s.Read("m", "")
	require.NoError(t, err)
	require.NoError(t, q.UseUnits("g"))
	require.NoError(t, q.Rewrite(7, "g"))

	stored, err := s.Read("m", "")
	require.NoError(t, err)
	assert.Equal(t, "m = 1500 mg", stored.String())
}

func TestClearRestoresDefaults(t *testing.T) {
	s := defaultSystem(t)
	assert.Equal(t, []string{"NA", "R"}, s.Known())
	require.NoError(t, s.Write(quantity.MustNew("m", 1, "g")))
	require.NoError(t, s.Erase("R"))
	s.Clear()
	assert.Equal(t, []string{"NA", "R"}, s.Known())
	assert.Len(t, s.Constants(), 2)
}

func TestSolveNothingDerivable(t *testing.T) {
	s := defaultSystem(t)
	sols, err := s.Solve("m")
	require.NoError(t, err)
	assert.Empty(t, sols)

	_, err = s.SolveAs("m", "", 2)
	assert.ErrorIs(t, err, calcerr.ErrSolutionNotFound)

	_, err = s.Solve("x")
	assert.ErrorIs(t, err, calcerr.ErrUnknownVariable)
}

func TestSolveFirstFormulaWins(t *testing.T) {
	s := newSystem(t, "x - a\nx - b\n", "x:x:m:None\na:a:m:None\nb:b:m:None\n")
	require.NoError(t, s.Write(quantity.MustNew("a", 1, "m")))
	require.NoError(t, s.Write(quantity.MustNew("b", 2, "m")))
	sols, err := s.Solve("x")
	require.NoError(t, err)
	require.Len(t, sols, 1)
	assert.Equal(t, 1.0, sols[0].Magnitude())
}

func TestSolveMultipleSolutions(t *testing.T) {
	s := newSystem(t, "A - s^2\n", "A:area:m^2:None\ns:side:m:None\n")
	require.NoError(t, s.Write(quantity.MustNew("A", 4, "m^2")))
	sols, err := s.Solve("s")
	require.NoError(t, err)
	require.Len(t, sols, 2)
	assert.InDelta(t, -2, sols[0].Magnitude(), 1e-12)
	assert.InDelta(t, 2, sols[1].Magnitude(), 1e-12)
}

func TestSolveResetsWorkingCopy(t *testing.T) {
	s := defaultSystem(t)
	require.NoError(t, s.Write(quantity.MustNew("m", 10, "g")))
	require.NoError(t, s.Write(quantity.MustNew("M", 5, "g/mol")))
	_, err := s.Solve("n")
	require.NoError(t, err)
	for i, f := range s.Formulas() {
		assert.True(t, f.Expr.Equal(s.working[i]), "formula %d not reset", i)
	}
}

func TestDefaultUnit(t *testing.T) {
	s := defaultSystem(t)
	u, err := s.DefaultUnit("V0")
	require.NoError(t, err)
	assert.Equal(t, "L/mol", u.String())
	_, err = s.DefaultUnit("nope")
	assert.ErrorIs(t, err, calcerr.ErrUnknownVariable)
}
