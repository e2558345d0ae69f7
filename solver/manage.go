package solver

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/njchilds90/stoich/bank"
	"github.com/njchilds90/stoich/calcerr"
	"github.com/njchilds90/stoich/quantity"
	"github.com/njchilds90/stoich/units"
)

// Write records every quantity in order, stopping at the first failure.
func (s *Solver) Write(qs ...*quantity.Quantity) error {
	for _, q := range qs {
		if err := s.sys.Write(q); err != nil {
			return err
		}
	}
	return nil
}

// Read returns the value of name in unit, or as stored when unit is empty.
func (s *Solver) Read(name, unit string) (*quantity.Quantity, error) {
	return s.sys.Read(name, unit)
}

func (s *Solver) Has(name string) bool { return s.sys.Has(name) }

// Units returns the unit name is stored in.
func (s *Solver) Units(name string) (units.Unit, error) {
	q, err := s.sys.Read(name, "")
	if err != nil {
		return units.Unit{}, err
	}
	return q.Unit(), nil
}

func (s *Solver) Variables() []bank.Variable { return s.sys.Variables() }
func (s *Solver) Formulas() []bank.Formula   { return s.sys.Formulas() }

// Clear forgets the value of name.
func (s *Solver) Clear(name string) error { return s.sys.Erase(name) }

// ClearAll forgets every value except those named in but. Registry defaults
// such as the gas constant are restored afterwards.
func (s *Solver) ClearAll(but ...string) {
	keep := make(map[string]bool, len(but))
	for _, n := range but {
		keep[n] = true
	}
	for _, n := range s.sys.Known() {
		if !keep[n] {
			_ = s.sys.Erase(n)
		}
	}
	for _, c := range s.sys.Constants() {
		if !s.sys.Has(c.Name()) {
			_ = s.sys.Write(c)
		}
	}
}

// replace swaps the stored value of name for the result of f.
func (s *Solver) replace(name string, f func(q *quantity.Quantity) (*quantity.Quantity, error)) (*quantity.Quantity, error) {
	if _, err := s.sys.DefaultUnit(name); err != nil {
		return nil, err
	}
	q, err := s.sys.Read(name, "")
	if err != nil {
		return nil, err
	}
	next, err := f(q)
	if err != nil {
		return nil, err
	}
	if err := s.sys.Erase(name); err != nil {
		return nil, err
	}
	if err := s.sys.Write(next); err != nil {
		return nil, err
	}
	return next, nil
}

// Scale multiplies the stored value of name by factor.
func (s *Solver) Scale(name string, factor float64) (*quantity.Quantity, error) {
	return s.replace(name, func(q *quantity.Quantity) (*quantity.Quantity, error) {
		return q.Scale(factor)
	})
}

// Add increases the stored value of name by value, given in the stored unit.
func (s *Solver) Add(name string, value float64, allowNegatives bool) (*quantity.Quantity, error) {
	return s.replace(name, func(q *quantity.Quantity) (*quantity.Quantity, error) {
		sum, err := q.WithNegatives(allowNegatives).Add(quantity.FromUnit(name, value, q.Unit()).WithNegatives(true))
		if err != nil {
			return nil, err
		}
		return sum.Named(name).WithNegatives(allowNegatives), nil
	})
}

// Sub decreases the stored value of name by value.
func (s *Solver) Sub(name string, value float64, allowNegatives bool) (*quantity.Quantity, error) {
	return s.Add(name, -value, allowNegatives)
}

// Div divides the stored value of name by divisor.
func (s *Solver) Div(name string, divisor float64) (*quantity.Quantity, error) {
	if divisor == 0 {
		return nil, errors.Wrapf(calcerr.ErrDivisionByZero, "divide %s", name)
	}
	return s.Scale(name, 1/divisor)
}

// Assume applies the named assumption bundles in order. Names that match no
// bundle are logged and ignored.
func (s *Solver) Assume(names ...string) error {
	all, err := s.assumptions()
	if err != nil {
		return err
	}
	bySymbol := make(map[string]*bank.Assumption, len(all))
	for _, a := range all {
		bySymbol[a.Symbol] = a
	}
	for _, n := range names {
		a, ok := bySymbol[n]
		if !ok {
			s.log.WithField("assumption", n).Warn("Unknown assumption ignored")
			continue
		}
		if err := s.apply(a); err != nil {
			return err
		}
	}
	return nil
}

// apply writes the temporary and preset values, derives every target, and
// then clears everything but the presets and the derived targets. On failure
// every value the bundle wrote or derived is erased again.
func (s *Solver) apply(a *bank.Assumption) (err error) {
	log := s.log.WithField("assumption", a.Symbol)
	var keep []string

	known := make(map[string]bool)
	for _, n := range s.sys.Known() {
		known[n] = true
	}
	previous := s.target
	defer func() {
		s.target = previous
		if err == nil {
			return
		}
		for _, n := range s.sys.Known() {
			if !known[n] {
				_ = s.sys.Erase(n)
			}
		}
		log.WithError(err).Debug("Rolled back assumption")
	}()

	for _, q := range a.Temporary {
		if err := s.sys.Write(q); err != nil {
			return errors.WithMessagef(err, "assumption %s", a.Symbol)
		}
	}
	for _, q := range a.Preset {
		keep = append(keep, q.Name())
		if err := s.sys.Write(q); err != nil {
			return errors.WithMessagef(err, "assumption %s", a.Symbol)
		}
	}

	for _, t := range a.Targets {
		keep = append(keep, t.Name())
		if err := s.SetTarget(t); err != nil {
			return errors.WithMessagef(err, "assumption %s", a.Symbol)
		}
		if _, err := s.Solve(true, true); err != nil || !s.sys.Has(t.Name()) {
			return errors.Wrapf(calcerr.ErrAssumptionFailed, "%s: cannot derive %s", a.Symbol, t.Name())
		}
	}

	s.ClearAll(keep...)
	log.WithFields(logrus.Fields{"kept": keep}).Info("Applied assumption")
	return nil
}
