package symbolic

import (
	"fmt"
	"math/big"
	"strings"
	"unicode"
)

// ============================================================
// Parser
// ============================================================
//
// Grammar (standard precedence, right-associative power):
//
//	expr    := term  (('+' | '-') term)*
//	term    := unary (('*' | '/') unary)*
//	unary   := ('+' | '-') unary | power
//	power   := primary (('^' | '**') unary)?
//	primary := number | ident | ident '(' expr ')' | '(' expr ')'
//
// Identifiers are ASCII letters, digits and underscores, starting with a
// letter or underscore. Recognised functions are ln, log (base 10), exp,
// sqrt and abs.

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNum
	tokIdent
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// ParseError reports the offending position inside the source text.
type ParseError struct {
	Src string
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("symbolic: %s at offset %d in %q", e.Msg, e.Pos, e.Src)
}

var functions = map[string]func(Expr) Expr{
	"ln":   LnOf,
	"log":  LogOf,
	"exp":  ExpOf,
	"sqrt": SqrtOf,
	"abs":  AbsOf,
}

// Parse reads an algebraic expression.
func Parse(src string) (Expr, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, &ParseError{Src: src, Pos: t.pos, Msg: fmt.Sprintf("unexpected %q", t.text)}
	}
	return e.Simplify(), nil
}

// ParseFormula reads either a zero-form expression or an equation "lhs = rhs"
// and returns the zero form.
func ParseFormula(src string) (Expr, error) {
	lhs, rhs, found := strings.Cut(src, "=")
	if !found {
		return Parse(src)
	}
	if strings.Contains(rhs, "=") {
		return nil, &ParseError{Src: src, Pos: len(lhs) + 1 + strings.Index(rhs, "="), Msg: "more than one '='"}
	}
	l, err := Parse(lhs)
	if err != nil {
		return nil, err
	}
	r, err := Parse(rhs)
	if err != nil {
		return nil, err
	}
	return Eq(l, r).Residual(), nil
}

// MustParse is Parse for expressions known at compile time.
func MustParse(src string) Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

func tokenize(src string) ([]token, error) {
	var toks []token
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || r == '.':
			start := i
			for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '.') {
				i++
			}
			if i < len(rs) && (rs[i] == 'e' || rs[i] == 'E') {
				j := i + 1
				if j < len(rs) && (rs[j] == '+' || rs[j] == '-') {
					j++
				}
				if j < len(rs) && unicode.IsDigit(rs[j]) {
					for j < len(rs) && unicode.IsDigit(rs[j]) {
						j++
					}
					i = j
				}
			}
			toks = append(toks, token{kind: tokNum, text: string(rs[start:i]), pos: start})
		case r == '_' || r < unicode.MaxASCII && unicode.IsLetter(r):
			start := i
			for i < len(rs) && (rs[i] == '_' || rs[i] < unicode.MaxASCII && (unicode.IsLetter(rs[i]) || unicode.IsDigit(rs[i]))) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: string(rs[start:i]), pos: start})
		case r == '*' && i+1 < len(rs) && rs[i+1] == '*':
			toks = append(toks, token{kind: tokOp, text: "^", pos: i})
			i += 2
		case strings.ContainsRune("+-*/^", r):
			toks = append(toks, token{kind: tokOp, text: string(r), pos: i})
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		default:
			return nil, &ParseError{Src: src, Pos: i, Msg: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(rs)}), nil
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(ops ...string) bool {
	t := p.peek()
	if t.kind != tokOp {
		return false
	}
	for _, o := range ops {
		if t.text == o {
			return true
		}
	}
	return false
}

func (p *parser) fail(t token, msg string) error {
	return &ParseError{Src: p.src, Pos: t.pos, Msg: msg}
}

func (p *parser) expr() (Expr, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	terms := []Expr{left}
	for p.isOp("+", "-") {
		op := p.next()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		if op.text == "-" {
			right = &Mul{factors: []Expr{N(-1), right}}
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return &Add{terms: terms}, nil
}

func (p *parser) term() (Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	factors := []Expr{left}
	for p.isOp("*", "/") {
		op := p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		if op.text == "/" {
			right = &Pow{base: right, exp: N(-1)}
		}
		factors = append(factors, right)
	}
	if len(factors) == 1 {
		return left, nil
	}
	return &Mul{factors: factors}, nil
}

func (p *parser) unary() (Expr, error) {
	if p.isOp("+", "-") {
		op := p.next()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		if op.text == "-" {
			return &Mul{factors: []Expr{N(-1), operand}}, nil
		}
		return operand, nil
	}
	return p.power()
}

func (p *parser) power() (Expr, error) {
	base, err := p.primary()
	if err != nil {
		return nil, err
	}
	if p.isOp("^") {
		p.next()
		exp, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Pow{base: base, exp: exp}, nil
	}
	return base, nil
}

func (p *parser) primary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNum:
		r, ok := new(big.Rat).SetString(t.text)
		if !ok {
			return nil, p.fail(t, fmt.Sprintf("malformed number %q", t.text))
		}
		return &Num{val: r}, nil
	case tokIdent:
		if p.peek().kind != tokLParen {
			return S(t.text), nil
		}
		fn, ok := functions[t.text]
		if !ok {
			return nil, p.fail(t, fmt.Sprintf("unknown function %q", t.text))
		}
		p.next()
		arg, err := p.expr()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			return nil, p.fail(c, "expected ')'")
		}
		return fn(arg), nil
	case tokLParen:
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			return nil, p.fail(c, "expected ')'")
		}
		return e, nil
	case tokEOF:
		return nil, p.fail(t, "unexpected end of input")
	}
	return nil, p.fail(t, fmt.Sprintf("unexpected %q", t.text))
}
