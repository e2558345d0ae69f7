// Package balance finds integer stoichiometric coefficients for chemical
// reactions.
//
// The incidence matrix has one row per element and one column per substance,
// reagents first. Reagent entries are positive and product entries negative.
// A reaction balances uniquely exactly when that matrix has a one-dimensional
// null space over the rationals.
package balance

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/njchilds90/stoich/calcerr"
	"github.com/njchilds90/stoich/substance"
	"github.com/njchilds90/stoich/symbolic"
)

// Substance is anything with a formula and an element composition.
type Substance interface {
	Formula() string
	Composition() map[string]int
}

// Result holds the coefficients of a balanced reaction, aligned with
// Reagents and Products.
type Result struct {
	Reagents  []Substance
	Products  []Substance
	Reactants []int64
	Yields    []int64
}

// Balance computes the smallest positive integer coefficients that conserve
// every element. It fails with calcerr.ErrCannotEquateReaction when no
// balance exists or when the coefficients are not unique.
func Balance(reagents, products []Substance) (*Result, error) {
	if len(reagents) == 0 || len(products) == 0 {
		return nil, errors.Wrap(calcerr.ErrCannotEquateReaction, "a reaction needs reagents and products")
	}
	elements := elementOrder(reagents, products)
	a := incidence(elements, reagents, products)

	basis := symbolic.RatMatrixFromInts(a).NullSpace()
	if len(basis) != 1 {
		return nil, errors.Wrapf(calcerr.ErrCannotEquateReaction,
			"%s: null space has dimension %d", describe(reagents, products), len(basis))
	}
	coeffs := symbolic.IntegerVector(basis[0])

	// Every coefficient must be nonzero and carry the same sign, otherwise
	// some substance sits on the wrong side of the arrow.
	sign := 0
	for i, c := range coeffs {
		s := c.Sign()
		if s == 0 {
			return nil, errors.Wrapf(calcerr.ErrCannotEquateReaction,
				"%s: %s does not take part", describe(reagents, products), column(i, reagents, products).Formula())
		}
		if sign == 0 {
			sign = s
		} else if s != sign {
			return nil, errors.Wrapf(calcerr.ErrCannotEquateReaction,
				"%s: %s is on the wrong side", describe(reagents, products), column(i, reagents, products).Formula())
		}
	}

	r := &Result{Reagents: reagents, Products: products}
	for i, c := range coeffs {
		v := new(big.Int).Abs(c)
		if !v.IsInt64() {
			return nil, errors.Wrapf(calcerr.ErrCannotEquateReaction, "coefficient %s overflows", v)
		}
		if i < len(reagents) {
			r.Reactants = append(r.Reactants, v.Int64())
		} else {
			r.Yields = append(r.Yields, v.Int64())
		}
	}
	return r, nil
}

// elementOrder lists every element in order of first appearance.
func elementOrder(reagents, products []Substance) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range append(append([]Substance(nil), reagents...), products...) {
		if c, ok := s.(interface{ Elements() []string }); ok {
			for _, el := range c.Elements() {
				if !seen[el] {
					seen[el] = true
					out = append(out, el)
				}
			}
			continue
		}
		comp := s.Composition()
		keys := make([]string, 0, len(comp))
		for el := range comp {
			keys = append(keys, el)
		}
		sort.Strings(keys)
		for _, el := range keys {
			if !seen[el] {
				seen[el] = true
				out = append(out, el)
			}
		}
	}
	return out
}

func incidence(elements []string, reagents, products []Substance) [][]int64 {
	a := make([][]int64, len(elements))
	for i, el := range elements {
		row := make([]int64, 0, len(reagents)+len(products))
		for _, s := range reagents {
			row = append(row, int64(s.Composition()[el]))
		}
		for _, s := range products {
			row = append(row, -int64(s.Composition()[el]))
		}
		a[i] = row
	}
	return a
}

func column(i int, reagents, products []Substance) Substance {
	if i < len(reagents) {
		return reagents[i]
	}
	return products[i-len(reagents)]
}

func describe(reagents, products []Substance) string {
	return side(reagents, nil) + " -> " + side(products, nil)
}

func side(ss []Substance, coeffs []int64) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		if coeffs != nil && coeffs[i] != 1 {
			parts[i] = fmt.Sprintf("%d%s", coeffs[i], s.Formula())
		} else {
			parts[i] = s.Formula()
		}
	}
	return strings.Join(parts, " + ")
}

// Equation renders the reaction, as in "2H2 + O2 -> 2H2O".
func (r *Result) Equation() string {
	return side(r.Reagents, r.Reactants) + " -> " + side(r.Products, r.Yields)
}

func (r *Result) String() string { return r.Equation() }

// Coefficient returns the coefficient of the substance with the given
// formula.
func (r *Result) Coefficient(formula string) (int64, bool) {
	for i, s := range r.Reagents {
		if s.Formula() == formula {
			return r.Reactants[i], true
		}
	}
	for i, s := range r.Products {
		if s.Formula() == formula {
			return r.Yields[i], true
		}
	}
	return 0, false
}

// Map returns the coefficients keyed by formula.
func (r *Result) Map() map[string]int64 {
	out := make(map[string]int64, len(r.Reactants)+len(r.Yields))
	for i, s := range r.Reagents {
		out[s.Formula()] = r.Reactants[i]
	}
	for i, s := range r.Products {
		out[s.Formula()] = r.Yields[i]
	}
	return out
}

// Verify checks that the coefficients in r conserve every element.
func Verify(r *Result) error {
	if len(r.Reactants) != len(r.Reagents) || len(r.Yields) != len(r.Products) {
		return errors.New("coefficient count does not match substance count")
	}
	elements := elementOrder(r.Reagents, r.Products)
	if len(elements) == 0 {
		return errors.New("reaction contains no elements")
	}
	rows := incidence(elements, r.Reagents, r.Products)
	cols := len(r.Reagents) + len(r.Products)

	a := mat.NewDense(len(elements), cols, nil)
	for i, row := range rows {
		for j, v := range row {
			a.Set(i, j, float64(v))
		}
	}
	c := mat.NewVecDense(cols, nil)
	for j, v := range append(append([]int64(nil), r.Reactants...), r.Yields...) {
		c.SetVec(j, float64(v))
	}

	var net mat.VecDense
	net.MulVec(a, c)
	for i, el := range elements {
		if d := net.AtVec(i); d != 0 {
			return errors.Errorf("%s: element %s is off by %g atoms", r.Equation(), el, d)
		}
	}
	return nil
}

// MassDelta returns the reagent mass minus the product mass in grams per
// mole of reaction. Balanced reactions give zero up to rounding.
func MassDelta(r *Result) (float64, error) {
	delta := 0.0
	add := func(ss []Substance, coeffs []int64, sign float64) error {
		for i, s := range ss {
			mm := 0.0
			for el, n := range s.Composition() {
				w, ok := substance.AtomicWeight(el)
				if !ok {
					return errors.Errorf("no atomic weight for %s", el)
				}
				mm += w * float64(n)
			}
			delta += sign * float64(coeffs[i]) * mm
		}
		return nil
	}
	if err := add(r.Reagents, r.Reactants, 1); err != nil {
		return 0, err
	}
	if err := add(r.Products, r.Yields, -1); err != nil {
		return 0, err
	}
	return delta, nil
}

// ParseReaction reads "H2 + O2 -> H2O". The arrow may also be written as
// "=", "=>" or "→"; coefficients in the input are ignored.
func ParseReaction(s string) (reagents, products []Substance, err error) {
	var lhs, rhs string
	found := false
	for _, arrow := range []string{"->", "=>", "→", "="} {
		if l, r, ok := strings.Cut(s, arrow); ok {
			lhs, rhs, found = l, r, true
			break
		}
	}
	if !found {
		return nil, nil, errors.Wrapf(calcerr.ErrInvalidFormula, "%q: missing reaction arrow", s)
	}
	if reagents, err = parseSide(lhs); err != nil {
		return nil, nil, err
	}
	if products, err = parseSide(rhs); err != nil {
		return nil, nil, err
	}
	return reagents, products, nil
}

func parseSide(s string) ([]Substance, error) {
	var out []Substance
	for _, part := range strings.Split(s, "+") {
		part = strings.TrimLeft(strings.TrimSpace(part), "0123456789 ")
		c, err := substance.Parse(part)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
