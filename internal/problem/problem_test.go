package problem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/stoich/calcerr"
	"github.com/njchilds90/stoich/solver"
)

const waterProblem = `
given:
  - m = 0.713 g
  - M = 18 g/mol
target: n
unit: mmol
precision: 3
reactions:
  - H2 + O2 -> H2O
`

func TestLoadAndSolve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "water.yaml")
	require.NoError(t, os.WriteFile(path, []byte(waterProblem), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Decimals())

	s, err := solver.NewDefault()
	require.NoError(t, err)
	n, err := p.Solve(s)
	require.NoError(t, err)
	assert.Equal(t, "n = 39.611 mmol", n.String())

	results, err := p.Balance()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "2H2 + O2 -> 2H2O", results[0].Equation())
}

func TestSolveDefaultUnitWithoutRounding(t *testing.T) {
	p := FromFlags([]string{"m = 4 g", " ", "M = 40 g/mol", "V = 250 mL"}, nil, "c", "", -1)
	assert.Len(t, p.Given, 3)
	assert.Nil(t, p.Precision)

	s, err := solver.NewDefault()
	require.NoError(t, err)
	c, err := p.Solve(s)
	require.NoError(t, err)
	assert.Equal(t, "mol/L", c.Unit().String())
	assert.InDelta(t, 0.4, c.Magnitude(), 1e-12)
}

func TestSolveWithAssumption(t *testing.T) {
	p := FromFlags([]string{"Vpg = 48.9 L"}, []string{"STP"}, "n", "mol", 2)
	s, err := solver.NewDefault()
	require.NoError(t, err)
	n, err := p.Solve(s)
	require.NoError(t, err)
	assert.Equal(t, 2.0, n.Magnitude())
}

func TestSolveNotFound(t *testing.T) {
	p := FromFlags([]string{"m = 4 g"}, nil, "rho", "", -1)
	s, err := solver.NewDefault()
	require.NoError(t, err)
	_, err = p.Solve(s)
	assert.ErrorIs(t, err, calcerr.ErrSolutionNotFound)
}

func TestParseErrors(t *testing.T) {
	tests := map[string]struct {
		doc  string
		want error
	}{
		"unknown key":    {"target: n\nanswer: 3\n", calcerr.ErrIncorrectFileFormatting},
		"empty":          {"given: [m = 1 g]\n", calcerr.ErrIncorrectFileFormatting},
		"orphan unit":    {"unit: mol\nreactions: [H2 + O2 -> H2O]\n", calcerr.ErrIncorrectFileFormatting},
		"bad given":      {"target: n\ngiven: [m 1 g]\n", calcerr.ErrInvalidQuantity},
		"negative given": {"target: n\ngiven: [m = -1 g]\n", calcerr.ErrNegativeNotAllowed},
		"not yaml":       {"target: [n\n", calcerr.ErrIncorrectFileFormatting},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	p := FromFlags([]string{"m = 0.713 g"}, []string{"STP"}, "n", "mmol", 3)
	data, err := p.Marshal()
	require.NoError(t, err)
	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, p, back)
}
