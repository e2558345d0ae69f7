// Package solver derives unknown quantities by fixpoint iteration over an
// equation system and applies named assumption bundles.
//
// Every round tries to solve each unknown variable against the formula bank
// and writes back whatever can be determined. Rounds repeat until one adds
// nothing, so a value derived late can unlock formulas that failed earlier.
package solver

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/njchilds90/stoich/bank"
	"github.com/njchilds90/stoich/calcerr"
	"github.com/njchilds90/stoich/equation"
	"github.com/njchilds90/stoich/quantity"
	"github.com/njchilds90/stoich/units"
)

// Observer is notified about solver progress.
type Observer interface {
	RoundCompleted(round int, derived []*quantity.Quantity)
	SolveFinished(target string, rounds int, err error)
}

type Solver struct {
	sys         *equation.System
	target      *quantity.Quantity
	assumptions func() ([]*bank.Assumption, error)
	observers   []Observer
	log         logrus.FieldLogger
}

type Option func(*Solver)

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Solver) { s.log = l }
}

// WithObserver registers o for round and solve events.
func WithObserver(o Observer) Option {
	return func(s *Solver) { s.observers = append(s.observers, o) }
}

// WithAssumptions replaces the embedded assumption bundles with as.
func WithAssumptions(as ...*bank.Assumption) Option {
	return func(s *Solver) {
		s.assumptions = func() ([]*bank.Assumption, error) { return as, nil }
	}
}

// WithAssumptionFile reads assumption bundles from path on every Assume call.
func WithAssumptionFile(path string) Option {
	return func(s *Solver) {
		s.assumptions = func() ([]*bank.Assumption, error) { return bank.LoadAssumptions(path) }
	}
}

// New wraps sys.
func New(sys *equation.System, opts ...Option) *Solver {
	l := logrus.New()
	l.SetOutput(io.Discard)
	s := &Solver{
		sys:         sys,
		assumptions: bank.DefaultAssumptions,
		log:         l,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewDefault wraps a system over the embedded formula bank. The solver's
// logger is shared with the system.
func NewDefault(opts ...Option) (*Solver, error) {
	s := New(nil, opts...)
	sys, err := equation.NewDefault(equation.WithLogger(s.log))
	if err != nil {
		return nil, err
	}
	s.sys = sys
	return s, nil
}

func (s *Solver) System() *equation.System { return s.sys }

// Assumptions returns the bundles available to Assume.
func (s *Solver) Assumptions() ([]*bank.Assumption, error) { return s.assumptions() }

// Target returns the quantity currently sought, or nil.
func (s *Solver) Target() *quantity.Quantity { return s.target }

// SetTarget selects the variable to solve for. Its unit is the answer unit
// and its magnitude's decimals the answer precision, so a placeholder such as
// V0 = 0.01 L/mol asks for V0 in L/mol to two decimals.
func (s *Solver) SetTarget(q *quantity.Quantity) error {
	unit, err := s.sys.DefaultUnit(q.Name())
	if err != nil {
		return err
	}
	if !units.Convertible(unit, q.Unit()) {
		return errors.Wrapf(calcerr.ErrIncompatibleUnits, "target %s is declared in %s, got %s", q.Name(), unit, q.Unit())
	}
	s.target = q
	return nil
}

// IterateRound tries every unknown variable once and writes back each one
// that resolves to a single non-negative value. Formulas that cannot yet be
// solved are skipped silently. It returns the quantities written.
func (s *Solver) IterateRound() []*quantity.Quantity {
	var derived []*quantity.Quantity
	for _, v := range s.sys.Variables() {
		if s.sys.Has(v.Symbol) {
			continue
		}
		sols, err := s.sys.Solve(v.Symbol)
		if err != nil || len(sols) == 0 {
			continue
		}
		q, ok := single(sols)
		if !ok {
			s.log.WithFields(logrus.Fields{
				"variable":  v.Symbol,
				"solutions": len(sols),
			}).Debug("Skipping ambiguous variable")
			continue
		}
		if err := s.sys.Write(q); err != nil {
			s.log.WithError(err).WithField("variable", v.Symbol).Warn("Could not record derived value")
			continue
		}
		derived = append(derived, q)
	}
	return derived
}

// single returns the only non-negative solution.
func single(sols []*quantity.Quantity) (*quantity.Quantity, bool) {
	var out *quantity.Quantity
	for _, q := range sols {
		if q.Magnitude() < 0 {
			continue
		}
		if out != nil {
			return nil, false
		}
		out = q
	}
	return out, out != nil
}

func (s *Solver) unknowns() int {
	n := 0
	for _, v := range s.sys.Variables() {
		if !s.sys.Has(v.Symbol) {
			n++
		}
	}
	return n
}

// Solve runs rounds until one derives nothing or, with stopAtTarget, until a
// round derives the target. Each productive round records at least one more
// variable, so at most as many rounds run as there are variables. The stored
// target value is returned in the target's unit, rounded to the target's
// decimals; with alterTarget the target is replaced by that answer.
func (s *Solver) Solve(stopAtTarget, alterTarget bool) (*quantity.Quantity, error) {
	if s.target == nil {
		return nil, errors.Wrap(calcerr.ErrSolutionNotFound, "no target set")
	}
	name := s.target.Name()
	log := s.log.WithField("target", name)

	rounds := 0
	for s.unknowns() > 0 {
		derived := s.IterateRound()
		rounds++
		for _, o := range s.observers {
			o.RoundCompleted(rounds, derived)
		}
		log.WithFields(logrus.Fields{"round": rounds, "derived": len(derived)}).Debug("Round completed")
		if len(derived) == 0 {
			break
		}
		if stopAtTarget && contains(derived, name) {
			break
		}
	}

	answer, err := s.answer()
	for _, o := range s.observers {
		o.SolveFinished(name, rounds, err)
	}
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"rounds": rounds, "answer": answer.String()}).Debug("Solved")
	if alterTarget {
		s.target = answer
	}
	return answer, nil
}

func (s *Solver) answer() (*quantity.Quantity, error) {
	q, err := s.sys.Read(s.target.Name(), "")
	if err != nil {
		return nil, errors.Wrapf(calcerr.ErrSolutionNotFound, "%s", s.target.Name())
	}
	q, err = q.ConvertTo(s.target.Unit())
	if err != nil {
		return nil, err
	}
	return q.Round(s.target.Decimals()), nil
}

func contains(qs []*quantity.Quantity, name string) bool {
	for _, q := range qs {
		if q.Name() == name {
			return true
		}
	}
	return false
}
