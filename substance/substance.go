// Package substance parses chemical formulas into element compositions.
//
// Formulas may nest groups in parentheses or brackets and chain adducts with
// '*' or '·' and a leading multiplier, as in "Ca(OH)2", "K4[Fe(CN)6]" and
// "CuSO4*5H2O". Charges, isotopes and isomers are not represented.
package substance

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/njchilds90/stoich/calcerr"
)

// Compound is a parsed chemical formula.
type Compound struct {
	formula     string
	composition map[string]int
	order       []string
}

// Parse reads formula. Every element symbol must be known.
func Parse(formula string) (*Compound, error) {
	src := strings.Join(strings.Fields(formula), "")
	if src == "" {
		return nil, errors.Wrap(calcerr.ErrInvalidFormula, "empty formula")
	}
	p := &formulaParser{src: []rune(src)}
	c := &Compound{formula: src, composition: map[string]int{}}
	for {
		start := p.pos
		mult := p.number(1)
		if mult == 0 {
			return nil, errors.Wrapf(calcerr.ErrInvalidFormula, "%q: invalid multiplier at offset %d", formula, start)
		}
		group, err := p.sequence()
		if err != nil {
			return nil, errors.Wrapf(calcerr.ErrInvalidFormula, "%q: %v", formula, err)
		}
		if len(group) == 0 {
			return nil, errors.Wrapf(calcerr.ErrInvalidFormula, "%q: empty part at offset %d", formula, p.pos)
		}
		for _, ec := range group {
			n, ok := mulCount(ec.count, mult)
			if ok {
				ok = c.add(ec.element, n)
			}
			if !ok {
				return nil, errors.Wrapf(calcerr.ErrInvalidFormula, "%q: too many %s atoms", formula, ec.element)
			}
		}
		if p.pos == len(p.src) {
			break
		}
		if r := p.src[p.pos]; r != '*' && r != '·' && r != '.' {
			return nil, errors.Wrapf(calcerr.ErrInvalidFormula, "%q: unexpected %q at offset %d", formula, r, p.pos)
		}
		p.pos++
	}
	return c, nil
}

// MustParse is Parse for formulas known to be valid.
func MustParse(formula string) *Compound {
	c, err := Parse(formula)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Compound) add(element string, n int) bool {
	if c.composition[element] > maxCount-n {
		return false
	}
	if _, ok := c.composition[element]; !ok {
		c.order = append(c.order, element)
	}
	c.composition[element] += n
	return true
}

func (c *Compound) Formula() string { return c.formula }
func (c *Compound) String() string  { return c.formula }

// Composition returns the atom count of every element.
func (c *Compound) Composition() map[string]int {
	out := make(map[string]int, len(c.composition))
	for k, v := range c.composition {
		out[k] = v
	}
	return out
}

// Elements returns the element symbols in order of first appearance.
func (c *Compound) Elements() []string { return append([]string(nil), c.order...) }

func (c *Compound) Count(element string) int { return c.composition[element] }

// MolarMass returns the molar mass in g/mol.
func (c *Compound) MolarMass() float64 {
	m := 0.0
	for el, n := range c.composition {
		w, _ := AtomicWeight(el)
		m += w * float64(n)
	}
	return m
}

// Equal reports whether both compounds have the same composition.
func (c *Compound) Equal(o *Compound) bool {
	if len(c.composition) != len(o.composition) {
		return false
	}
	for k, v := range c.composition {
		if o.composition[k] != v {
			return false
		}
	}
	return true
}

// maxCount bounds every atom count so coefficient products stay in int64.
const maxCount = math.MaxInt32

// mulCount returns a*b for positive counts, or false past maxCount.
func mulCount(a, b int) (int, bool) {
	if a > maxCount/b {
		return 0, false
	}
	return a * b, true
}

type elementCount struct {
	element string
	count   int
}

type formulaParser struct {
	src []rune
	pos int
}

// number reads an unsigned integer, returning def when none is present.
func (p *formulaParser) number(def int) int {
	start := p.pos
	for p.pos < len(p.src) && unicode.IsDigit(p.src[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return def
	}
	n, err := strconv.Atoi(string(p.src[start:p.pos]))
	if err != nil || n == 0 || n > maxCount {
		// Zero and oversized counts are reported by the caller.
		return 0
	}
	return n
}

var closing = map[rune]rune{'(': ')', '[': ']'}

// sequence reads element and group terms up to a closing bracket, an adduct
// separator or the end of input.
func (p *formulaParser) sequence() ([]elementCount, error) {
	var out []elementCount
	for p.pos < len(p.src) {
		r := p.src[p.pos]
		switch {
		case unicode.IsUpper(r):
			start := p.pos
			p.pos++
			for p.pos < len(p.src) && unicode.IsLower(p.src[p.pos]) {
				p.pos++
			}
			sym := string(p.src[start:p.pos])
			if !IsElement(sym) {
				return nil, errors.Errorf("unknown element %q at offset %d", sym, start)
			}
			n := p.number(1)
			if n == 0 {
				return nil, errors.Errorf("invalid count after %s at offset %d", sym, start)
			}
			out = append(out, elementCount{element: sym, count: n})
		case closing[r] != 0:
			open := p.pos
			p.pos++
			inner, err := p.sequence()
			if err != nil {
				return nil, err
			}
			if p.pos >= len(p.src) || p.src[p.pos] != closing[r] {
				return nil, errors.Errorf("unbalanced %q at offset %d", r, open)
			}
			if len(inner) == 0 {
				return nil, errors.Errorf("empty group at offset %d", open)
			}
			p.pos++
			n := p.number(1)
			if n == 0 {
				return nil, errors.Errorf("invalid group count at offset %d", open)
			}
			for _, ec := range inner {
				count, ok := mulCount(ec.count, n)
				if !ok {
					return nil, errors.Errorf("too many %s atoms in group at offset %d", ec.element, open)
				}
				out = append(out, elementCount{element: ec.element, count: count})
			}
		default:
			return out, nil
		}
	}
	return out, nil
}
