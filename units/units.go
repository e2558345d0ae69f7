// Package units parses unit expressions and converts magnitudes between
// dimensionally compatible units.
//
// A unit is a scale factor onto the SI base units (kg, m, s, mol, K, A, cd)
// plus the vector of base-unit exponents. Only multiplicative units are
// supported, so temperatures are Kelvin.
package units

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/njchilds90/stoich/calcerr"
)

// Base dimension indices.
const (
	Mass = iota
	Length
	Time
	Amount
	Temperature
	Current
	Luminosity
	numDims
)

var baseSymbols = [numDims]string{"kg", "m", "s", "mol", "K", "A", "cd"}

// Dimension holds the exponent of every base unit.
type Dimension [numDims]int

func (d Dimension) add(o Dimension, sign int) Dimension {
	for i := range d {
		d[i] += sign * o[i]
	}
	return d
}

func (d Dimension) IsZero() bool { return d == Dimension{} }

// Unit is an immutable parsed unit expression.
type Unit struct {
	symbol string
	factor float64
	dim    Dimension
}

// Dimensionless is the unit of pure numbers.
var Dimensionless = Unit{symbol: "dimensionless", factor: 1}

// String returns the expression the unit was parsed from, normalised.
func (u Unit) String() string {
	if u.symbol == "" {
		return "dimensionless"
	}
	return u.symbol
}

// Factor is the magnitude of one u expressed in base units.
func (u Unit) Factor() float64 { return u.factor }

func (u Unit) Dimension() Dimension { return u.dim }

func (u Unit) IsDimensionless() bool { return u.dim.IsZero() }

// Convertible reports whether a and b measure the same dimension.
func Convertible(a, b Unit) bool { return a.dim == b.dim }

// Convert expresses v, given in from, in the unit to.
func Convert(v float64, from, to Unit) (float64, error) {
	if !Convertible(from, to) {
		return 0, errors.Wrapf(calcerr.ErrIncompatibleUnits, "cannot convert %s to %s", from, to)
	}
	if from.factor == to.factor {
		return v, nil
	}
	return v * from.factor / to.factor, nil
}

// ToBase expresses v, given in u, in the base unit of its dimension.
func (u Unit) ToBase(v float64) float64 { return v * u.factor }

// FromBase expresses a base-unit magnitude in u.
func (u Unit) FromBase(v float64) float64 { return v / u.factor }

// Base returns the coherent SI unit of u's dimension.
func (u Unit) Base() Unit {
	return Unit{symbol: dimSymbol(u.dim), factor: 1, dim: u.dim}
}

func (u Unit) Mul(o Unit) Unit {
	return Unit{
		symbol: joinSymbols(u, "*", o),
		factor: u.factor * o.factor,
		dim:    u.dim.add(o.dim, 1),
	}
}

func (u Unit) Div(o Unit) Unit {
	return Unit{
		symbol: joinSymbols(u, "/", o),
		factor: u.factor / o.factor,
		dim:    u.dim.add(o.dim, -1),
	}
}

func (u Unit) Pow(k int) Unit {
	d := Dimension{}
	for i := range d {
		d[i] = u.dim[i] * k
	}
	sym := u.String()
	if strings.ContainsAny(sym, "*/^ ") {
		sym = "(" + sym + ")"
	}
	return Unit{symbol: sym + "^" + strconv.Itoa(k), factor: math.Pow(u.factor, float64(k)), dim: d}
}

func joinSymbols(a Unit, op string, b Unit) string {
	as, bs := a.String(), b.String()
	if a.IsDimensionless() && a.factor == 1 {
		as = "1"
	}
	if b.IsDimensionless() && b.factor == 1 {
		return as
	}
	if op == "/" && strings.ContainsAny(bs, "*/") {
		bs = "(" + bs + ")"
	}
	return as + op + bs
}

func dimSymbol(d Dimension) string {
	var num, den []string
	for i, e := range d {
		switch {
		case e == 1:
			num = append(num, baseSymbols[i])
		case e > 1:
			num = append(num, baseSymbols[i]+"^"+strconv.Itoa(e))
		case e == -1:
			den = append(den, baseSymbols[i])
		case e < -1:
			den = append(den, baseSymbols[i]+"^"+strconv.Itoa(-e))
		}
	}
	if len(num) == 0 && len(den) == 0 {
		return "dimensionless"
	}
	s := strings.Join(num, "*")
	if s == "" {
		s = "1"
	}
	switch len(den) {
	case 0:
		return s
	case 1:
		return s + "/" + den[0]
	}
	return s + "/(" + strings.Join(den, "*") + ")"
}

// ============================================================
// Unit table
// ============================================================

type atom struct {
	factor     float64
	dim        Dimension
	prefixable bool
}

func dim(pairs ...int) Dimension {
	var d Dimension
	for i := 0; i+1 < len(pairs); i += 2 {
		d[pairs[i]] = pairs[i+1]
	}
	return d
}

var (
	dimVolume   = dim(Length, 3)
	dimForce    = dim(Mass, 1, Length, 1, Time, -2)
	dimPressure = dim(Mass, 1, Length, -1, Time, -2)
	dimEnergy   = dim(Mass, 1, Length, 2, Time, -2)
)

const (
	atmPa    = 101325.0
	mmHgPa   = 133.322387415
	daltonKg = 1.66053906660e-27
)

var atoms = map[string]atom{
	"g":   {1e-3, dim(Mass, 1), true},
	"t":   {1e3, dim(Mass, 1), false},
	"Da":  {daltonKg, dim(Mass, 1), true},
	"u":   {daltonKg, dim(Mass, 1), false},
	"m":   {1, dim(Length, 1), true},
	"s":   {1, dim(Time, 1), true},
	"min": {60, dim(Time, 1), false},
	"h":   {3600, dim(Time, 1), false},
	"mol": {1, dim(Amount, 1), true},
	"K":   {1, dim(Temperature, 1), true},
	"A":   {1, dim(Current, 1), true},
	"cd":  {1, dim(Luminosity, 1), true},

	"L":    {1e-3, dimVolume, true},
	"l":    {1e-3, dimVolume, true},
	"M":    {1e3, dim(Amount, 1, Length, -3), true},
	"N":    {1, dimForce, true},
	"Pa":   {1, dimPressure, true},
	"bar":  {1e5, dimPressure, true},
	"atm":  {atmPa, dimPressure, false},
	"mmHg": {mmHgPa, dimPressure, false},
	"torr": {atmPa / 760, dimPressure, false},
	"Torr": {atmPa / 760, dimPressure, false},
	"J":    {1, dimEnergy, true},
	"cal":  {4.184, dimEnergy, true},
	"W":    {1, dim(Mass, 1, Length, 2, Time, -3), true},
	"C":    {1, dim(Current, 1, Time, 1), true},
	"V":    {1, dim(Mass, 1, Length, 2, Time, -3, Current, -1), true},
	"Hz":   {1, dim(Time, -1), true},

	"%":   {1e-2, Dimension{}, false},
	"ppm": {1e-6, Dimension{}, false},

	"dimensionless": {1, Dimension{}, false},
}

var prefixes = map[string]float64{
	"Y": 1e24, "Z": 1e21, "E": 1e18, "P": 1e15, "T": 1e12, "G": 1e9,
	"M": 1e6, "k": 1e3, "h": 1e2, "da": 1e1, "d": 1e-1, "c": 1e-2,
	"m": 1e-3, "u": 1e-6, "µ": 1e-6, "μ": 1e-6, "n": 1e-9, "p": 1e-12,
	"f": 1e-15, "a": 1e-18, "z": 1e-21, "y": 1e-24,
}

// prefixOrder lists prefixes longest first so "da" wins over "d".
var prefixOrder = func() []string {
	out := make([]string, 0, len(prefixes))
	for p := range prefixes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}()

func lookup(sym string) (atom, bool) {
	if a, ok := atoms[sym]; ok {
		return a, true
	}
	for _, p := range prefixOrder {
		rest, ok := strings.CutPrefix(sym, p)
		if !ok || rest == "" {
			continue
		}
		if a, ok := atoms[rest]; ok && a.prefixable {
			a.factor *= prefixes[p]
			return a, true
		}
	}
	return atom{}, false
}

// Known reports whether sym is a recognised unit symbol, prefixed or not.
func Known(sym string) bool {
	_, ok := lookup(sym)
	return ok
}
