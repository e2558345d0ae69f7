package bank

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/stoich/calcerr"
	"github.com/njchilds90/stoich/quantity"
	"github.com/njchilds90/stoich/symbolic"
)

func TestDefault(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)
	require.Len(t, b.Formulas, 7)
	assert.Equal(t, "n - m/M", b.Formulas[0].Source)
	assert.Equal(t, 15, b.Registry.Len())

	r, ok := b.Registry.Lookup("R")
	require.True(t, ok)
	assert.True(t, r.HasDefault)
	assert.Equal(t, 8.314, r.Default)
	assert.Equal(t, "J/(mol*K)", r.Unit.String())

	n, ok := b.Registry.Lookup("n")
	require.True(t, ok)
	assert.False(t, n.HasDefault)
	assert.Nil(t, n.Quantity())

	names := []string{}
	for _, q := range b.Registry.Defaults() {
		names = append(names, q.Name())
	}
	assert.Equal(t, []string{"NA", "R"}, names)
}

func TestParseFormulas(t *testing.T) {
	src := `# schema: formulas/v1
# comment

n - m/M
P*V = n*R*T
`
	fs, err := ParseFormulas(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, fs, 2)
	assert.Equal(t, 4, fs[0].Line)
	assert.Equal(t, 5, fs[1].Line)
	assert.Equal(t, []string{"P", "R", "T", "V", "n"}, symbolic.SortedSymbols(fs[1].Expr))
}

func TestParseFormulasErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line string
	}{
		{name: "syntax", src: "n - m/\n", line: "line 1"},
		{name: "constant", src: "n - m\n2 - 2\n", line: "line 2"},
		{name: "wrong schema kind", src: "# schema: variables/v1\nn - m\n", line: "line 1"},
		{name: "wrong schema version", src: "# schema: formulas/v2\nn - m\n", line: "line 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFormulas(strings.NewReader(tt.src))
			require.Error(t, err)
			assert.ErrorIs(t, err, calcerr.ErrIncorrectFileFormatting)
			assert.Contains(t, err.Error(), tt.line)
		})
	}
}

func TestParseVariablesErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "too few fields", src: "n:amount:mol\n"},
		{name: "bad unit", src: "n:amount:furlong:None\n"},
		{name: "bad default", src: "n:amount:mol:lots\n"},
		{name: "duplicate", src: "n:amount:mol:None\nn:again:mol:None\n"},
		{name: "bad symbol", src: "2n:amount:mol:None\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseVariables(strings.NewReader(tt.src))
			assert.ErrorIs(t, err, calcerr.ErrIncorrectFileFormatting)
		})
	}
}

func TestNewRejectsUndeclaredSymbols(t *testing.T) {
	fs, err := ParseFormulas(strings.NewReader("n - m/M\n"))
	require.NoError(t, err)
	reg, err := ParseVariables(strings.NewReader("n:amount:mol:None\nm:mass:g:None\n"))
	require.NoError(t, err)
	_, err = New(fs, reg)
	assert.ErrorIs(t, err, calcerr.ErrIncorrectFileFormatting)
	assert.Contains(t, err.Error(), `"M"`)
}

func TestRequire(t *testing.T) {
	reg, err := ParseVariables(strings.NewReader("n:amount:mol:None\n"))
	require.NoError(t, err)
	_, err = reg.Require("x")
	assert.ErrorIs(t, err, calcerr.ErrUnknownVariable)
	v, err := reg.Require("n")
	require.NoError(t, err)
	assert.Equal(t, "amount", v.Name)
}

func TestDefaultAssumptions(t *testing.T) {
	as, err := DefaultAssumptions()
	require.NoError(t, err)
	require.Len(t, as, 2)

	stp := as[0]
	assert.Equal(t, "STP", stp.Symbol)
	assert.Equal(t, "standard temperature and pressure", stp.Name)
	require.Len(t, stp.Preset, 2)
	assert.Equal(t, "T = 298 K", stp.Preset[0].String())
	assert.Equal(t, "P = 101325 Pa", stp.Preset[1].String())
	require.Len(t, stp.Targets, 1)
	assert.Equal(t, "V0", stp.Targets[0].Name())
	assert.Equal(t, "L/mol", stp.Targets[0].Unit().String())
	require.Len(t, stp.Temporary, 1)
	assert.Equal(t, "n = 1 mol", stp.Temporary[0].String())

	assert.Equal(t, "NC", as[1].Symbol)
}

func TestParseAssumptionsErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "unterminated", src: "!X: x\nvariable T:1:K\n"},
		{name: "nested", src: "!X: x\n!Y: y\n!\n"},
		{name: "stray terminator", src: "!\n"},
		{name: "outside bundle", src: "variable T:1:K\n"},
		{name: "unknown kind", src: "!X: x\nguess T:1:K\n!\n"},
		{name: "bad value", src: "!X: x\nvariable T:warm:K\n!\n"},
		{name: "missing value", src: "!X: x\nassume n::mol\n!\n"},
		{name: "bad header", src: "!X\n!\n"},
		{name: "bad shape", src: "!X: x\nvariable T:1\n!\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAssumptions(strings.NewReader(tt.src))
			assert.ErrorIs(t, err, calcerr.ErrIncorrectFileFormatting)
		})
	}
}

func TestWriteAssumptionRoundTrip(t *testing.T) {
	a := NewAssumption("LAB", "lab conditions").
		Set(quantity.MustNew("T", 293.15, "K"), quantity.MustNew("P", 99.5, "kPa")).
		Compute(quantity.MustNew("V0", 0, "L/mol")).
		Assume(quantity.MustNew("n", 1, "mol"))

	var buf bytes.Buffer
	require.NoError(t, WriteAssumption(&buf, a))
	assert.Equal(t, `!LAB: lab conditions
variable T:293.15:K
variable P:99.5:kPa
compute V0::L/mol
assume n:1:mol
!
`, buf.String())

	back, err := ParseAssumptions(&buf)
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, a.String(), back[0].String())
}

func TestAssumptionString(t *testing.T) {
	as, err := DefaultAssumptions()
	require.NoError(t, err)
	assert.Equal(t,
		"STP (standard temperature and pressure): sets T = 298 K, P = 101325 Pa; computes V0 in L/mol; temporarily assumes n = 1 mol",
		as[0].String())
}
