// Package problem reads stoichiometry problems from YAML documents.
//
//	assume: [STP]
//	given:
//	  - m = 0.713 g
//	  - M = 18 g/mol
//	target: n
//	unit: mmol
//	precision: 3
//	reactions:
//	  - H2 + O2 -> H2O
package problem

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/njchilds90/stoich/balance"
	"github.com/njchilds90/stoich/calcerr"
	"github.com/njchilds90/stoich/quantity"
	"github.com/njchilds90/stoich/solver"
)

type Problem struct {
	Assume    []string `yaml:"assume,omitempty"`
	Given     []string `yaml:"given,omitempty"`
	Target    string   `yaml:"target,omitempty"`
	Unit      string   `yaml:"unit,omitempty"`
	Precision *int     `yaml:"precision,omitempty"`
	Reactions []string `yaml:"reactions,omitempty"`
}

// Load reads a problem file.
func Load(path string) (*Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read problem %s", path)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "problem %s", path)
	}
	return p, nil
}

// Parse decodes and validates a problem document. Unknown keys are rejected.
func Parse(data []byte) (*Problem, error) {
	p := &Problem{}
	if err := yaml.UnmarshalStrict(data, p); err != nil {
		return nil, errors.Wrap(calcerr.ErrIncorrectFileFormatting, err.Error())
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks that the problem asks for something and that every given
// quantity parses.
func (p *Problem) Validate() error {
	if p.Target == "" && len(p.Reactions) == 0 {
		return errors.Wrap(calcerr.ErrIncorrectFileFormatting, "problem has neither a target nor reactions")
	}
	if p.Target == "" && (p.Unit != "" || p.Precision != nil) {
		return errors.Wrap(calcerr.ErrIncorrectFileFormatting, "unit and precision need a target")
	}
	if _, err := p.Quantities(); err != nil {
		return err
	}
	return nil
}

// Quantities parses the given values.
func (p *Problem) Quantities() ([]*quantity.Quantity, error) {
	qs := make([]*quantity.Quantity, 0, len(p.Given))
	for i, g := range p.Given {
		q, err := quantity.Parse(g)
		if err != nil {
			return nil, errors.WithMessagef(err, "given[%d]", i)
		}
		qs = append(qs, q)
	}
	return qs, nil
}

// Decimals is the requested precision, or -1 for none.
func (p *Problem) Decimals() int {
	if p.Precision == nil {
		return -1
	}
	return *p.Precision
}

// Solve applies the assumptions, writes the given values and derives the
// target with s. The answer is in Unit, or the declared unit when Unit is
// empty, rounded to Precision decimals.
func (p *Problem) Solve(s *solver.Solver) (*quantity.Quantity, error) {
	if p.Target == "" {
		return nil, errors.Wrap(calcerr.ErrSolutionNotFound, "problem has no target")
	}
	if err := s.Assume(p.Assume...); err != nil {
		return nil, err
	}
	qs, err := p.Quantities()
	if err != nil {
		return nil, err
	}
	if err := s.Write(qs...); err != nil {
		return nil, err
	}

	unit := p.Unit
	if unit == "" {
		u, err := s.System().DefaultUnit(p.Target)
		if err != nil {
			return nil, err
		}
		unit = u.String()
	}
	target, err := quantity.New(p.Target, 0, unit)
	if err != nil {
		return nil, err
	}
	if err := s.SetTarget(target); err != nil {
		return nil, err
	}
	if _, err := s.Solve(true, false); err != nil {
		return nil, err
	}
	// Solve rounds to the placeholder's decimals; read the stored value to
	// honour the requested precision instead.
	q, err := s.Read(p.Target, unit)
	if err != nil {
		return nil, errors.Wrapf(calcerr.ErrSolutionNotFound, "%s", p.Target)
	}
	return q.Round(p.Decimals()), nil
}

// Balance balances every reaction in order.
func (p *Problem) Balance() ([]*balance.Result, error) {
	out := make([]*balance.Result, 0, len(p.Reactions))
	for _, r := range p.Reactions {
		reagents, products, err := balance.ParseReaction(r)
		if err != nil {
			return nil, err
		}
		res, err := balance.Balance(reagents, products)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// Marshal renders p as YAML.
func (p *Problem) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// FromFlags builds a problem from command line style inputs.
func FromFlags(given, assume []string, target, unit string, precision int) *Problem {
	p := &Problem{Assume: assume, Target: strings.TrimSpace(target), Unit: unit}
	for _, g := range given {
		if g = strings.TrimSpace(g); g != "" {
			p.Given = append(p.Given, g)
		}
	}
	if precision >= 0 {
		p.Precision = &precision
	}
	return p
}
