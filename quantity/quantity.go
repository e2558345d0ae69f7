// Package quantity implements named physical values with a unit, a sign
// policy and tolerance-based equality.
//
// A Quantity is replaced rather than mutated: conversion, scaling and
// arithmetic return new values. Rewrite and UseUnits are the only in-place
// operations.
package quantity

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/njchilds90/stoich/calcerr"
	"github.com/njchilds90/stoich/units"
)

// DefaultToleranceExponent gives a relative equality tolerance of 1e-3.
const DefaultToleranceExponent = 3

type Quantity struct {
	name           string
	magnitude      float64
	unit           units.Unit
	allowNegatives bool
	zte            int
}

// New builds a quantity from a unit expression. It only fails when the unit
// cannot be parsed; the sign policy is enforced by later operations.
func New(name string, magnitude float64, unit string) (*Quantity, error) {
	u, err := units.Parse(unit)
	if err != nil {
		return nil, errors.WithMessagef(err, "quantity %s", name)
	}
	return FromUnit(name, magnitude, u), nil
}

// MustNew is New for literals known to be valid.
func MustNew(name string, magnitude float64, unit string) *Quantity {
	q, err := New(name, magnitude, unit)
	if err != nil {
		panic(err)
	}
	return q
}

func FromUnit(name string, magnitude float64, u units.Unit) *Quantity {
	return &Quantity{name: name, magnitude: magnitude, unit: u, zte: DefaultToleranceExponent}
}

// Parse reads "name = value unit", for example "m = 0.713 g". A missing unit
// means dimensionless. Negative values are rejected.
func Parse(s string) (*Quantity, error) {
	name, rest, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" || strings.ContainsAny(name, " \t") {
		return nil, errors.Wrapf(calcerr.ErrInvalidQuantity, "%q", s)
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return nil, errors.Wrapf(calcerr.ErrInvalidQuantity, "%q: missing value", s)
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return nil, errors.Wrapf(calcerr.ErrInvalidQuantity, "%q: bad value %q", s, fields[0])
	}
	q, err := New(name, v, strings.Join(fields[1:], " "))
	if err != nil {
		return nil, err
	}
	if err := q.checkSign(v); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Quantity) Name() string           { return q.name }
func (q *Quantity) Magnitude() float64     { return q.magnitude }
func (q *Quantity) Unit() units.Unit       { return q.unit }
func (q *Quantity) AllowsNegatives() bool  { return q.allowNegatives }
func (q *Quantity) ToleranceExponent() int { return q.zte }

// Value returns the unit-attached magnitude without the name.
func (q *Quantity) Value() Value { return Value{Magnitude: q.magnitude, Unit: q.unit} }

func (q *Quantity) clone() *Quantity {
	c := *q
	return &c
}

// Copy returns an independent copy of q.
func (q *Quantity) Copy() *Quantity { return q.clone() }

// WithNegatives returns a copy of q with the given sign policy.
func (q *Quantity) WithNegatives(allow bool) *Quantity {
	c := q.clone()
	c.allowNegatives = allow
	return c
}

// WithTolerance returns a copy of q whose equality tolerance is 10^-exp.
// exp must lie in (0, 100).
func (q *Quantity) WithTolerance(exp int) (*Quantity, error) {
	if exp <= 0 || exp >= 100 {
		return nil, errors.Wrapf(calcerr.ErrInvalidTolerance, "%d", exp)
	}
	c := q.clone()
	c.zte = exp
	return c, nil
}

// WithMagnitude returns a copy of q holding v in the same unit.
func (q *Quantity) WithMagnitude(v float64) *Quantity {
	c := q.clone()
	c.magnitude = v
	return c
}

func (q *Quantity) checkSign(v float64) error {
	if v < 0 && !q.allowNegatives {
		return errors.Wrapf(calcerr.ErrNegativeNotAllowed, "%s = %g %s", q.name, v, q.unit)
	}
	return nil
}

// Convertible reports whether q can be expressed in unit.
func (q *Quantity) Convertible(unit string) bool {
	u, err := units.Parse(unit)
	return err == nil && units.Convertible(q.unit, u)
}

// Convert returns q expressed in unit.
func (q *Quantity) Convert(unit string) (*Quantity, error) {
	u, err := units.Parse(unit)
	if err != nil {
		return nil, err
	}
	return q.ConvertTo(u)
}

func (q *Quantity) ConvertTo(u units.Unit) (*Quantity, error) {
	v, err := units.Convert(q.magnitude, q.unit, u)
	if err != nil {
		return nil, errors.WithMessagef(err, "quantity %s", q.name)
	}
	c := q.clone()
	c.magnitude, c.unit = v, u
	return c, nil
}

// ToBaseUnits returns q in the coherent SI unit of its dimension.
func (q *Quantity) ToBaseUnits() *Quantity {
	c := q.clone()
	c.magnitude, c.unit = q.unit.ToBase(q.magnitude), q.unit.Base()
	return c
}

// UseUnits converts q to unit in place.
func (q *Quantity) UseUnits(unit string) error {
	c, err := q.Convert(unit)
	if err != nil {
		return err
	}
	q.magnitude, q.unit = c.magnitude, c.unit
	return nil
}

// Rewrite replaces magnitude and unit in place. The new unit must measure the
// same dimension as the current one.
func (q *Quantity) Rewrite(magnitude float64, unit string) error {
	u, err := units.Parse(unit)
	if err != nil {
		return err
	}
	if !units.Convertible(q.unit, u) {
		return errors.Wrapf(calcerr.ErrIncompatibleUnits, "rewrite %s from %s to %s", q.name, q.unit, u)
	}
	if err := q.checkSign(magnitude); err != nil {
		return err
	}
	q.magnitude, q.unit = magnitude, u
	return nil
}

// Scale returns q with its magnitude multiplied by factor.
func (q *Quantity) Scale(factor float64) (*Quantity, error) {
	v := q.magnitude * factor
	if err := q.checkSign(v); err != nil {
		return nil, err
	}
	return q.WithMagnitude(v), nil
}

// Round returns q with its magnitude rounded to decimals places.
func (q *Quantity) Round(decimals int) *Quantity {
	return q.WithMagnitude(RoundTo(q.magnitude, decimals))
}

// RoundTo rounds v half away from zero. Negative decimals leave v unchanged.
func RoundTo(v float64, decimals int) float64 {
	if decimals < 0 {
		return v
	}
	p := math.Pow(10, float64(decimals))
	r := math.Round(v*p) / p
	if math.IsInf(r, 0) || math.IsNaN(r) {
		return v
	}
	return r
}

// Decimals returns the number of digits after the decimal point of the
// magnitude. Whole numbers and zero count as one decimal, so a placeholder
// such as 0.001 selects three decimals and 298 selects one.
func (q *Quantity) Decimals() int {
	return decimals(q.magnitude)
}

func decimals(v float64) int {
	s := strconv.FormatFloat(math.Abs(v), 'f', -1, 64)
	_, frac, ok := strings.Cut(s, ".")
	if !ok || frac == "" {
		return 1
	}
	return len(frac)
}

// Equal reports whether q and other carry the same name and the same physical
// value within q's relative tolerance.
func (q *Quantity) Equal(other *Quantity) bool {
	if other == nil || q.name != other.name {
		return false
	}
	return q.Value().Equal(other.Value(), q.zte)
}

func (q *Quantity) String() string {
	return fmt.Sprintf("%s = %s %s", q.name, strconv.FormatFloat(q.magnitude, 'g', -1, 64), q.unit)
}

// ============================================================
// Arithmetic
// ============================================================

// Add returns q + other in q's unit.
func (q *Quantity) Add(other *Quantity) (Value, error) {
	return q.combine(other, 1)
}

// Sub returns q - other in q's unit.
func (q *Quantity) Sub(other *Quantity) (Value, error) {
	return q.combine(other, -1)
}

func (q *Quantity) combine(other *Quantity, sign float64) (Value, error) {
	v, err := units.Convert(other.magnitude, other.unit, q.unit)
	if err != nil {
		return Value{}, errors.WithMessagef(err, "%s and %s", q.name, other.name)
	}
	out := q.magnitude + sign*v
	if err := q.checkSign(out); err != nil {
		return Value{}, err
	}
	return Value{Magnitude: out, Unit: q.unit}, nil
}

// Mul returns q * other with the product unit.
func (q *Quantity) Mul(other *Quantity) (Value, error) {
	out := Value{Magnitude: q.magnitude * other.magnitude, Unit: q.unit.Mul(other.unit)}
	return out, q.checkSign(out.Magnitude)
}

// Div returns q / other with the quotient unit. Division by zero fails with
// ErrSolutionNotFound.
func (q *Quantity) Div(other *Quantity) (Value, error) {
	if other.magnitude == 0 {
		return Value{}, errors.Wrapf(calcerr.ErrSolutionNotFound, "%s / %s: division by zero", q.name, other.name)
	}
	out := Value{Magnitude: q.magnitude / other.magnitude, Unit: q.unit.Div(other.unit)}
	return out, q.checkSign(out.Magnitude)
}

// Value is an unnamed magnitude with a unit, the result of arithmetic between
// quantities.
type Value struct {
	Magnitude float64
	Unit      units.Unit
}

// Convert expresses v in unit.
func (v Value) Convert(unit string) (Value, error) {
	u, err := units.Parse(unit)
	if err != nil {
		return Value{}, err
	}
	m, err := units.Convert(v.Magnitude, v.Unit, u)
	if err != nil {
		return Value{}, err
	}
	return Value{Magnitude: m, Unit: u}, nil
}

// Equal compares base-unit magnitudes with a relative tolerance of 10^-exp.
func (v Value) Equal(o Value, exp int) bool {
	if !units.Convertible(v.Unit, o.Unit) {
		return false
	}
	a, b := v.Unit.ToBase(v.Magnitude), o.Unit.ToBase(o.Magnitude)
	if a == b {
		return true
	}
	tol := math.Pow(10, -float64(exp))
	return math.Abs(a-b) <= tol*math.Max(math.Abs(a), math.Abs(b))
}

// Named attaches a name to v.
func (v Value) Named(name string) *Quantity {
	return FromUnit(name, v.Magnitude, v.Unit)
}

func (v Value) String() string {
	return strconv.FormatFloat(v.Magnitude, 'g', -1, 64) + " " + v.Unit.String()
}
