package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/stoich/calcerr"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in     string
		factor float64
		dim    Dimension
		str    string
	}{
		{in: "g", factor: 1e-3, dim: dim(Mass, 1), str: "g"},
		{in: "kg", factor: 1, dim: dim(Mass, 1), str: "kg"},
		{in: "mmol", factor: 1e-3, dim: dim(Amount, 1), str: "mmol"},
		{in: "g/mol", factor: 1e-3, dim: dim(Mass, 1, Amount, -1), str: "g/mol"},
		{in: "mol / L", factor: 1e3, dim: dim(Amount, 1, Length, -3), str: "mol/L"},
		{in: "J/(mol*K)", factor: 1, dim: dim(Mass, 1, Length, 2, Time, -2, Amount, -1, Temperature, -1), str: "J/(mol*K)"},
		{in: "1/mol", factor: 1, dim: dim(Amount, -1), str: "1/mol"},
		{in: "cm3", factor: 1e-6, dim: dimVolume, str: "cm3"},
		{in: "m**3", factor: 1, dim: dimVolume, str: "m^3"},
		{in: "mol*L^-1", factor: 1e3, dim: dim(Amount, 1, Length, -3), str: "mol*L^-1"},
		{in: "min", factor: 60, dim: dim(Time, 1), str: "min"},
		{in: "mmHg", factor: mmHgPa, dim: dimPressure, str: "mmHg"},
		{in: "dimensionless", factor: 1, dim: Dimension{}, str: "dimensionless"},
		{in: "", factor: 1, dim: Dimension{}, str: "dimensionless"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			u, err := Parse(tt.in)
			require.NoError(t, err)
			assert.InEpsilon(t, tt.factor, u.Factor(), 1e-12)
			assert.Equal(t, tt.dim, u.Dimension())
			assert.Equal(t, tt.str, u.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"furlong", "g/", "(mol", "m^x", "g)", "**3"} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			require.Error(t, err)
			assert.ErrorIs(t, err, calcerr.ErrIncompatibleUnits)
		})
	}
}

func TestConvert(t *testing.T) {
	v, err := Convert(0.039611, MustParse("mol"), MustParse("mmol"))
	require.NoError(t, err)
	assert.InDelta(t, 39.611, v, 1e-9)

	v, err = Convert(1, MustParse("atm"), MustParse("Pa"))
	require.NoError(t, err)
	assert.InDelta(t, 101325, v, 1e-9)

	v, err = Convert(1, MustParse("g/mL"), MustParse("kg/L"))
	require.NoError(t, err)
	assert.InDelta(t, 1, v, 1e-9)
}

func TestConvertIncompatible(t *testing.T) {
	_, err := Convert(1, MustParse("g"), MustParse("mol"))
	assert.ErrorIs(t, err, calcerr.ErrIncompatibleUnits)
}

func TestRoundTrip(t *testing.T) {
	pairs := [][2]string{{"g", "kg"}, {"mL", "L"}, {"kPa", "mmHg"}, {"J/(mol*K)", "cal/(mol*K)"}, {"h", "s"}}
	for _, p := range pairs {
		from, to := MustParse(p[0]), MustParse(p[1])
		there, err := Convert(12.345, from, to)
		require.NoError(t, err)
		back, err := Convert(there, to, from)
		require.NoError(t, err)
		assert.InEpsilon(t, 12.345, back, 1e-12, "%s <-> %s", p[0], p[1])
	}
}

func TestBase(t *testing.T) {
	assert.Equal(t, "kg/mol", MustParse("g/mol").Base().String())
	assert.Equal(t, "m^3", MustParse("L").Base().String())
	assert.Equal(t, "kg*m^2/(s^2*mol*K)", MustParse("J/(mol*K)").Base().String())
	assert.Equal(t, "dimensionless", MustParse("%").Base().String())
	assert.Equal(t, "1/mol", MustParse("1/mol").Base().String())
}

func TestMulDiv(t *testing.T) {
	pv := MustParse("Pa").Mul(MustParse("m^3"))
	assert.True(t, Convertible(pv, MustParse("J")))
	assert.Equal(t, "Pa*m^3", pv.String())

	c := MustParse("mol").Div(MustParse("L"))
	assert.True(t, Convertible(c, MustParse("M")))
	assert.InEpsilon(t, 1e3, c.Factor(), 1e-12)
}

func TestKnown(t *testing.T) {
	assert.True(t, Known("kDa"))
	assert.True(t, Known("µmol"))
	assert.False(t, Known("kmin"))
	assert.False(t, Known("xyz"))
}
