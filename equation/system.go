// Package equation implements an equation system over a formula bank: known
// quantities are substituted into the formulas and an unknown is isolated
// algebraically.
//
// A System is not safe for concurrent use.
package equation

import (
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/njchilds90/stoich/bank"
	"github.com/njchilds90/stoich/calcerr"
	"github.com/njchilds90/stoich/quantity"
	"github.com/njchilds90/stoich/symbolic"
	"github.com/njchilds90/stoich/units"
)

type System struct {
	formulas []bank.Formula
	registry *bank.Registry
	working  []symbolic.Expr
	known    map[string]*quantity.Quantity
	log      logrus.FieldLogger
}

type Option func(*System)

// WithLogger sets the logger used for per-step debug output.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *System) { s.log = l }
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// New returns a system over b holding the registry defaults.
func New(b *bank.Bank, opts ...Option) *System {
	s := &System{
		formulas: b.Formulas,
		registry: b.Registry,
		log:      discardLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	s.Clear()
	return s
}

// NewDefault returns a system over the embedded formula bank.
func NewDefault(opts ...Option) (*System, error) {
	b, err := bank.Default()
	if err != nil {
		return nil, err
	}
	return New(b, opts...), nil
}

func (s *System) resetWorking() {
	s.working = make([]symbolic.Expr, len(s.formulas))
	for i, f := range s.formulas {
		s.working[i] = f.Expr
	}
}

// Clear forgets every value except the registry defaults.
func (s *System) Clear() {
	s.known = map[string]*quantity.Quantity{}
	for _, q := range s.registry.Defaults() {
		s.known[q.Name()] = q
	}
	s.resetWorking()
}

// Write records q. The name must be declared, not yet known, and q's unit
// must be convertible to the declared unit.
func (s *System) Write(q *quantity.Quantity) error {
	v, err := s.registry.Require(q.Name())
	if err != nil {
		return err
	}
	if _, ok := s.known[q.Name()]; ok {
		return errors.Wrapf(calcerr.ErrValueAlreadyPresent, "%s", q.Name())
	}
	if !units.Convertible(q.Unit(), v.Unit) {
		return errors.Wrapf(calcerr.ErrIncompatibleUnits, "%s is declared in %s, got %s", q.Name(), v.Unit, q.Unit())
	}
	s.known[q.Name()] = q.Copy()
	s.log.WithField("quantity", q.String()).Debug("Wrote value")
	return nil
}

// Read returns a copy of the value of name converted to unit. An empty unit
// returns it as written.
func (s *System) Read(name, unit string) (*quantity.Quantity, error) {
	q, ok := s.known[name]
	if !ok {
		return nil, errors.Wrapf(calcerr.ErrValueNotFound, "%s", name)
	}
	if unit == "" {
		return q.Copy(), nil
	}
	return q.Convert(unit)
}

// Erase forgets the value of name.
func (s *System) Erase(name string) error {
	if _, ok := s.known[name]; !ok {
		return errors.Wrapf(calcerr.ErrValueNotFound, "%s", name)
	}
	delete(s.known, name)
	return nil
}

func (s *System) Has(name string) bool {
	_, ok := s.known[name]
	return ok
}

// Known returns the names holding a value, sorted.
func (s *System) Known() []string {
	out := make([]string, 0, len(s.known))
	for n := range s.known {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (s *System) Variables() []bank.Variable { return s.registry.Variables() }
func (s *System) Formulas() []bank.Formula   { return append([]bank.Formula(nil), s.formulas...) }
func (s *System) Registry() *bank.Registry   { return s.registry }

// Constants returns the registry defaults.
func (s *System) Constants() []*quantity.Quantity { return s.registry.Defaults() }

func (s *System) DefaultUnit(name string) (units.Unit, error) {
	v, err := s.registry.Require(name)
	if err != nil {
		return units.Unit{}, err
	}
	return v.Unit, nil
}

// Solve substitutes every known value, in base units, into the working
// formulas and isolates target. The numeric solutions of the first formula,
// in bank order, that yields any are returned in target's declared unit.
// An empty result means no formula currently determines target.
func (s *System) Solve(target string) ([]*quantity.Quantity, error) {
	v, err := s.registry.Require(target)
	if err != nil {
		return nil, err
	}
	defer s.resetWorking()

	for _, q := range s.known {
		base := q.Unit().ToBase(q.Magnitude())
		n, ok := symbolic.FloatNum(base)
		if !ok {
			continue
		}
		for i, e := range s.working {
			s.working[i] = e.Sub(q.Name(), n)
		}
	}

	for i, e := range s.working {
		roots := symbolic.SolveFor(e, target)
		if len(roots) == 0 {
			continue
		}
		out := make([]*quantity.Quantity, len(roots))
		for j, r := range roots {
			out[j] = quantity.FromUnit(target, v.Unit.FromBase(r.Float64()), v.Unit)
		}
		s.log.WithFields(logrus.Fields{
			"target":    target,
			"formula":   s.formulas[i].Source,
			"solutions": len(out),
		}).Debug("Solved")
		return out, nil
	}
	return nil, nil
}

// SolveAs solves for target, converts every solution to unit and rounds it
// to roundTo decimals. An empty unit keeps the declared unit; a negative
// roundTo disables rounding. It fails with ErrSolutionNotFound when Solve
// finds nothing.
func (s *System) SolveAs(target, unit string, roundTo int) ([]*quantity.Quantity, error) {
	sols, err := s.Solve(target)
	if err != nil {
		return nil, err
	}
	if len(sols) == 0 {
		return nil, errors.Wrapf(calcerr.ErrSolutionNotFound, "%s", target)
	}
	out := make([]*quantity.Quantity, 0, len(sols))
	for _, q := range sols {
		if unit != "" {
			if q, err = q.Convert(unit); err != nil {
				return nil, err
			}
		}
		out = append(out, q.Round(roundTo))
	}
	return out, nil
}
