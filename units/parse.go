package units

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/njchilds90/stoich/calcerr"
)

// Parse reads a unit expression such as "g/mol", "J/(mol*K)", "mol*L^-1",
// "cm3" or "dimensionless". The empty string is dimensionless.
//
//	expr   := factor (('*' | '/' | '·') factor)*
//	factor := atom (('^' | '**') int)?
//	atom   := symbol digits? | '1' | '(' expr ')'
func Parse(s string) (Unit, error) {
	src := strings.TrimSpace(s)
	if src == "" || src == "1" || src == "dimensionless" {
		return Dimensionless, nil
	}
	p := &unitParser{src: []rune(src)}
	u, err := p.expr()
	if err == nil && p.pos < len(p.src) {
		err = p.errorf("unexpected %q", string(p.src[p.pos]))
	}
	if err != nil {
		return Unit{}, errors.Wrapf(calcerr.ErrIncompatibleUnits, "parse unit %q: %v", s, err)
	}
	u.symbol = normalize(src)
	return u, nil
}

// MustParse is Parse for unit expressions known at compile time.
func MustParse(s string) Unit {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "**", "^")
	s = strings.ReplaceAll(s, "·", "*")
	return strings.Join(strings.Fields(s), "")
}

type unitParser struct {
	src []rune
	pos int
}

func (p *unitParser) errorf(format string, args ...interface{}) error {
	return errors.Errorf("offset %d: "+format, append([]interface{}{p.pos}, args...)...)
}

func (p *unitParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *unitParser) peek() rune {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *unitParser) expr() (Unit, error) {
	u, err := p.factor()
	if err != nil {
		return Unit{}, err
	}
	for {
		switch p.peek() {
		case '*', '·':
			p.pos++
			if p.peek() == '*' {
				return Unit{}, p.errorf("power operator without base")
			}
			v, err := p.factor()
			if err != nil {
				return Unit{}, err
			}
			u = u.Mul(v)
		case '/':
			p.pos++
			v, err := p.factor()
			if err != nil {
				return Unit{}, err
			}
			u = u.Div(v)
		default:
			return u, nil
		}
	}
}

func (p *unitParser) factor() (Unit, error) {
	u, err := p.atom()
	if err != nil {
		return Unit{}, err
	}
	switch {
	case p.peek() == '^':
		p.pos++
	case p.peek() == '*' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '*':
		p.pos += 2
	default:
		return u, nil
	}
	k, err := p.integer()
	if err != nil {
		return Unit{}, err
	}
	return u.Pow(k), nil
}

func (p *unitParser) integer() (int, error) {
	p.skipSpace()
	start := p.pos
	if p.pos < len(p.src) && (p.src[p.pos] == '-' || p.src[p.pos] == '+') {
		p.pos++
	}
	for p.pos < len(p.src) && unicode.IsDigit(p.src[p.pos]) {
		p.pos++
	}
	k, err := strconv.Atoi(string(p.src[start:p.pos]))
	if err != nil {
		return 0, p.errorf("expected integer exponent")
	}
	return k, nil
}

func isSymbolRune(r rune) bool {
	return unicode.IsLetter(r) || r == '%' || r == 'µ'
}

func (p *unitParser) atom() (Unit, error) {
	r := p.peek()
	switch {
	case r == '(':
		p.pos++
		u, err := p.expr()
		if err != nil {
			return Unit{}, err
		}
		if p.peek() != ')' {
			return Unit{}, p.errorf("expected ')'")
		}
		p.pos++
		return u, nil
	case r == '1':
		p.pos++
		return Dimensionless, nil
	case isSymbolRune(r):
		start := p.pos
		for p.pos < len(p.src) && isSymbolRune(p.src[p.pos]) {
			p.pos++
		}
		sym := string(p.src[start:p.pos])
		a, ok := lookup(sym)
		if !ok {
			p.pos = start
			return Unit{}, p.errorf("unknown unit %q", sym)
		}
		u := Unit{symbol: sym, factor: a.factor, dim: a.dim}
		// Trailing digits are an exponent, as in cm3.
		digits := p.pos
		for digits < len(p.src) && unicode.IsDigit(p.src[digits]) {
			digits++
		}
		if digits > p.pos {
			k, _ := strconv.Atoi(string(p.src[p.pos:digits]))
			p.pos = digits
			u = u.Pow(k)
		}
		return u, nil
	case r == 0:
		return Unit{}, p.errorf("unexpected end of unit")
	}
	return Unit{}, p.errorf("unexpected %q", string(r))
}
