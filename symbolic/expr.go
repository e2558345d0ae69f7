// Package symbolic is a small deterministic expression kernel used to hold a
// formula bank, substitute known values into it and isolate one unknown.
//
// Numbers are exact rationals (math/big.Rat). Transcendental operations and
// non-integer powers fall back to float64 and are re-embedded as rationals,
// which keeps every numeric result representable as a *Num.
package symbolic

import (
	"math"
	"math/big"
	"sort"
	"strings"
)

// ============================================================
// Core Interface
// ============================================================

// Expr is an immutable expression node.
type Expr interface {
	Simplify() Expr
	String() string
	Sub(varName string, value Expr) Expr
	Diff(varName string) Expr
	Eval() (*Num, bool)
	Equal(other Expr) bool
}

// ============================================================
// Num: exact rational number
// ============================================================

type Num struct{ val *big.Rat }

func N(n int64) *Num { return &Num{val: new(big.Rat).SetInt64(n)} }

// F returns p/q. It panics when q is zero, which is a programmer error.
func F(p, q int64) *Num {
	if q == 0 {
		panic("symbolic: denominator is zero")
	}
	return &Num{val: new(big.Rat).SetFrac(big.NewInt(p), big.NewInt(q))}
}

// NFloat embeds a finite float64 exactly. NaN and infinities map to zero;
// use FloatNum when the caller must know.
func NFloat(f float64) *Num {
	n, ok := FloatNum(f)
	if !ok {
		return N(0)
	}
	return n
}

// FloatNum embeds f and reports whether f was finite.
func FloatNum(f float64) (*Num, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return &Num{val: new(big.Rat).SetFloat64(f)}, true
}

// RatNum wraps a copy of r.
func RatNum(r *big.Rat) *Num { return &Num{val: new(big.Rat).Set(r)} }

func (n *Num) Simplify() Expr        { return n }
func (n *Num) Sub(string, Expr) Expr { return n }
func (n *Num) Diff(string) Expr      { return N(0) }
func (n *Num) Eval() (*Num, bool)    { return n, true }
func (n *Num) Equal(other Expr) bool { o, ok := other.(*Num); return ok && n.val.Cmp(o.val) == 0 }
func (n *Num) Float64() float64      { f, _ := n.val.Float64(); return f }
func (n *Num) IsZero() bool          { return n.val.Sign() == 0 }
func (n *Num) IsOne() bool           { return n.val.Cmp(big.NewRat(1, 1)) == 0 }
func (n *Num) IsInteger() bool       { return n.val.IsInt() }
func (n *Num) IsNegative() bool      { return n.val.Sign() < 0 }
func (n *Num) Rat() *big.Rat         { return new(big.Rat).Set(n.val) }

func (n *Num) String() string {
	if n.val.IsInt() {
		return n.val.Num().String()
	}
	// Rationals that came from floats have power-of-two denominators that are
	// unreadable as fractions.
	if n.val.Denom().BitLen() > 32 {
		return big.NewFloat(n.Float64()).Text('g', 12)
	}
	return n.val.RatString()
}

func numAdd(a, b *Num) *Num { return &Num{val: new(big.Rat).Add(a.val, b.val)} }
func numMul(a, b *Num) *Num { return &Num{val: new(big.Rat).Mul(a.val, b.val)} }
func numNeg(a *Num) *Num    { return &Num{val: new(big.Rat).Neg(a.val)} }

// ============================================================
// Sym: symbolic variable
// ============================================================

type Sym struct{ name string }

func S(name string) *Sym             { return &Sym{name: name} }
func (s *Sym) Name() string          { return s.name }
func (s *Sym) Simplify() Expr        { return s }
func (s *Sym) String() string        { return s.name }
func (s *Sym) Eval() (*Num, bool)    { return nil, false }
func (s *Sym) Equal(other Expr) bool { o, ok := other.(*Sym); return ok && s.name == o.name }

func (s *Sym) Sub(varName string, value Expr) Expr {
	if s.name == varName {
		return value
	}
	return s
}

func (s *Sym) Diff(varName string) Expr {
	if s.name == varName {
		return N(1)
	}
	return N(0)
}

// ============================================================
// Add: sum of terms
// ============================================================

type Add struct{ terms []Expr }

func AddOf(terms ...Expr) Expr { return (&Add{terms: terms}).Simplify() }

// Simplify flattens nested sums and collects like terms: every term is split
// into a numeric coefficient and a symbolic rest, and terms with the same rest
// are merged. Output order is sorted by rest so printing is deterministic.
func (a *Add) Simplify() Expr {
	constant := N(0)
	coeffs := map[string]*Num{}
	rests := map[string]Expr{}
	var walk func(ts []Expr)
	walk = func(ts []Expr) {
		for _, t := range ts {
			s := t.Simplify()
			switch v := s.(type) {
			case *Add:
				walk(v.terms)
			case *Num:
				constant = numAdd(constant, v)
			default:
				c, rest := splitCoefficient(v)
				key := rest.String()
				if prev, ok := coeffs[key]; ok {
					coeffs[key] = numAdd(prev, c)
				} else {
					coeffs[key] = c
					rests[key] = rest
				}
			}
		}
	}
	walk(a.terms)

	keys := make([]string, 0, len(coeffs))
	for k := range coeffs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]Expr, 0, len(keys)+1)
	for _, k := range keys {
		c := coeffs[k]
		if c.IsZero() {
			continue
		}
		if c.IsOne() {
			result = append(result, rests[k])
			continue
		}
		result = append(result, MulOf(c, rests[k]))
	}
	if !constant.IsZero() {
		result = append(result, constant)
	}
	switch len(result) {
	case 0:
		return N(0)
	case 1:
		return result[0]
	}
	return &Add{terms: result}
}

func (a *Add) String() string {
	var b strings.Builder
	for i, t := range a.terms {
		s := t.String()
		if i > 0 {
			if strings.HasPrefix(s, "-") {
				b.WriteString(" - ")
				s = s[1:]
			} else {
				b.WriteString(" + ")
			}
		}
		b.WriteString(s)
	}
	return b.String()
}

func (a *Add) Sub(varName string, value Expr) Expr {
	out := make([]Expr, len(a.terms))
	for i, t := range a.terms {
		out[i] = t.Sub(varName, value)
	}
	return AddOf(out...)
}

func (a *Add) Diff(varName string) Expr {
	out := make([]Expr, len(a.terms))
	for i, t := range a.terms {
		out[i] = t.Diff(varName)
	}
	return AddOf(out...)
}

func (a *Add) Eval() (*Num, bool) {
	acc := N(0)
	for _, t := range a.terms {
		v, ok := t.Eval()
		if !ok {
			return nil, false
		}
		acc = numAdd(acc, v)
	}
	return acc, true
}

func (a *Add) Equal(other Expr) bool {
	o, ok := other.(*Add)
	return ok && equalAll(a.terms, o.terms)
}

func (a *Add) Terms() []Expr { return a.terms }

// ============================================================
// Mul: product of factors
// ============================================================

type Mul struct{ factors []Expr }

func MulOf(factors ...Expr) Expr { return (&Mul{factors: factors}).Simplify() }

// Simplify flattens nested products, folds numbers into one coefficient and
// merges equal bases by adding their exponents, so m*M^-1*M becomes m.
func (m *Mul) Simplify() Expr {
	coeff := N(1)
	exps := map[string]Expr{}
	bases := map[string]Expr{}
	var walk func(fs []Expr)
	walk = func(fs []Expr) {
		for _, f := range fs {
			s := f.Simplify()
			switch v := s.(type) {
			case *Mul:
				walk(v.factors)
			case *Num:
				coeff = numMul(coeff, v)
			default:
				base, exp := Expr(v), Expr(N(1))
				if p, ok := v.(*Pow); ok {
					base, exp = p.base, p.exp
				}
				key := base.String()
				if prev, ok := exps[key]; ok {
					exps[key] = AddOf(prev, exp)
				} else {
					exps[key] = exp
					bases[key] = base
				}
			}
		}
	}
	walk(m.factors)
	if coeff.IsZero() {
		return N(0)
	}

	keys := make([]string, 0, len(exps))
	for k := range exps {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	others := make([]Expr, 0, len(keys))
	for _, k := range keys {
		f := PowOf(bases[k], exps[k])
		if n, ok := f.(*Num); ok {
			coeff = numMul(coeff, n)
			continue
		}
		others = append(others, f)
	}
	if coeff.IsZero() {
		return N(0)
	}
	if len(others) == 0 {
		return coeff
	}
	if coeff.IsOne() {
		if len(others) == 1 {
			return others[0]
		}
		return &Mul{factors: others}
	}
	return &Mul{factors: append([]Expr{coeff}, others...)}
}

func (m *Mul) String() string {
	parts := make([]string, 0, len(m.factors))
	for i, f := range m.factors {
		if n, ok := f.(*Num); ok && i == 0 && n.val.Cmp(big.NewRat(-1, 1)) == 0 && len(m.factors) > 1 {
			parts = append(parts, "-"+wrapFactor(m.factors[1]))
			for _, rest := range m.factors[2:] {
				parts = append(parts, wrapFactor(rest))
			}
			break
		}
		parts = append(parts, wrapFactor(f))
	}
	return strings.Join(parts, "*")
}

func wrapFactor(f Expr) string {
	if _, isAdd := f.(*Add); isAdd {
		return "(" + f.String() + ")"
	}
	return f.String()
}

func (m *Mul) Sub(varName string, value Expr) Expr {
	out := make([]Expr, len(m.factors))
	for i, f := range m.factors {
		out[i] = f.Sub(varName, value)
	}
	return MulOf(out...)
}

func (m *Mul) Diff(varName string) Expr {
	terms := make([]Expr, len(m.factors))
	for i, fi := range m.factors {
		parts := make([]Expr, 0, len(m.factors))
		parts = append(parts, fi.Diff(varName))
		for j, fj := range m.factors {
			if j != i {
				parts = append(parts, fj)
			}
		}
		terms[i] = MulOf(parts...)
	}
	return AddOf(terms...)
}

func (m *Mul) Eval() (*Num, bool) {
	acc := N(1)
	for _, f := range m.factors {
		v, ok := f.Eval()
		if !ok {
			return nil, false
		}
		acc = numMul(acc, v)
	}
	return acc, true
}

func (m *Mul) Equal(other Expr) bool {
	o, ok := other.(*Mul)
	return ok && equalAll(m.factors, o.factors)
}

func (m *Mul) Factors() []Expr { return m.factors }

// ============================================================
// Pow: base^exponent
// ============================================================

type Pow struct{ base, exp Expr }

func PowOf(base, exp Expr) Expr { return (&Pow{base: base, exp: exp}).Simplify() }

func (p *Pow) Simplify() Expr {
	base := p.base.Simplify()
	exp := p.exp.Simplify()

	en, expNum := exp.(*Num)
	if expNum && en.IsZero() {
		return N(1)
	}
	if expNum && en.IsOne() {
		return base
	}
	if bn, ok := base.(*Num); ok {
		if bn.IsZero() {
			// 0^0 and 0^negative stay unevaluated; Eval reports them as non-numeric.
			if expNum && !en.IsNegative() {
				return N(0)
			}
			return &Pow{base: base, exp: exp}
		}
		if bn.IsOne() {
			return N(1)
		}
		if expNum {
			if v, ok := numPow(bn, en); ok {
				return v
			}
		}
	}
	if inner, ok := base.(*Pow); ok && expNum && en.IsInteger() {
		return PowOf(inner.base, MulOf(inner.exp, exp))
	}
	if m, ok := base.(*Mul); ok && expNum && en.IsInteger() {
		out := make([]Expr, len(m.factors))
		for i, f := range m.factors {
			out[i] = PowOf(f, exp)
		}
		return MulOf(out...)
	}
	return &Pow{base: base, exp: exp}
}

// numPow raises b to e exactly for small integer exponents and through
// float64 otherwise. Results that are not finite real numbers are rejected.
func numPow(b, e *Num) (*Num, bool) {
	if e.IsInteger() && e.val.Num().IsInt64() {
		k := e.val.Num().Int64()
		if k >= -64 && k <= 64 {
			neg := k < 0
			if neg {
				k = -k
			}
			acc := new(big.Rat).SetInt64(1)
			for i := int64(0); i < k; i++ {
				acc.Mul(acc, b.val)
			}
			if neg {
				if acc.Sign() == 0 {
					return nil, false
				}
				acc.Inv(acc)
			}
			return &Num{val: acc}, true
		}
	}
	return FloatNum(math.Pow(b.Float64(), e.Float64()))
}

func (p *Pow) String() string {
	baseStr := p.base.String()
	switch p.base.(type) {
	case *Add, *Mul, *Pow:
		baseStr = "(" + baseStr + ")"
	}
	expStr := p.exp.String()
	switch p.exp.(type) {
	case *Add, *Mul, *Pow:
		expStr = "(" + expStr + ")"
	default:
		if strings.ContainsAny(expStr, "-/") {
			expStr = "(" + expStr + ")"
		}
	}
	return baseStr + "^" + expStr
}

func (p *Pow) Sub(varName string, value Expr) Expr {
	return PowOf(p.base.Sub(varName, value), p.exp.Sub(varName, value))
}

func (p *Pow) Diff(varName string) Expr {
	du := p.base.Diff(varName)
	dv := p.exp.Diff(varName)
	if _, ok := p.exp.(*Num); ok {
		return MulOf(p.exp, PowOf(p.base, AddOf(p.exp, N(-1))), du)
	}
	if _, ok := p.base.(*Num); ok {
		return MulOf(p, LnOf(p.base), dv)
	}
	return MulOf(p, AddOf(MulOf(dv, LnOf(p.base)), MulOf(p.exp, du, PowOf(p.base, N(-1)))))
}

func (p *Pow) Eval() (*Num, bool) {
	b, ok1 := p.base.Eval()
	e, ok2 := p.exp.Eval()
	if !ok1 || !ok2 {
		return nil, false
	}
	if b.IsZero() && (e.IsNegative() || e.IsZero()) {
		return nil, false
	}
	return numPow(b, e)
}

func (p *Pow) Equal(other Expr) bool {
	o, ok := other.(*Pow)
	return ok && p.base.Equal(o.base) && p.exp.Equal(o.exp)
}

func (p *Pow) Base() Expr     { return p.base }
func (p *Pow) Exponent() Expr { return p.exp }

// ============================================================
// Func: named function applications
// ============================================================

type Func struct {
	name string
	arg  Expr
}

func LnOf(arg Expr) Expr   { return (&Func{name: "ln", arg: arg}).Simplify() }
func LogOf(arg Expr) Expr  { return (&Func{name: "log", arg: arg}).Simplify() }
func ExpOf(arg Expr) Expr  { return (&Func{name: "exp", arg: arg}).Simplify() }
func AbsOf(arg Expr) Expr  { return (&Func{name: "abs", arg: arg}).Simplify() }
func SqrtOf(arg Expr) Expr { return PowOf(arg, F(1, 2)) }

func (f *Func) Name() string { return f.name }
func (f *Func) Arg() Expr    { return f.arg }

var funcEval = map[string]func(float64) float64{
	"ln":  math.Log,
	"log": math.Log10,
	"exp": math.Exp,
	"abs": math.Abs,
}

func (f *Func) Simplify() Expr {
	arg := f.arg.Simplify()
	if n, ok := arg.(*Num); ok {
		switch {
		case f.name == "abs":
			if n.IsNegative() {
				return numNeg(n)
			}
			return n
		case f.name == "exp" && n.IsZero():
			return N(1)
		case (f.name == "ln" || f.name == "log") && n.IsOne():
			return N(0)
		}
		if v, ok := FloatNum(funcEval[f.name](n.Float64())); ok {
			return v
		}
	}
	if inner, ok := arg.(*Func); ok {
		if f.name == "exp" && inner.name == "ln" || f.name == "ln" && inner.name == "exp" {
			return inner.arg
		}
	}
	return &Func{name: f.name, arg: arg}
}

func (f *Func) String() string { return f.name + "(" + f.arg.String() + ")" }

func (f *Func) Sub(varName string, value Expr) Expr {
	return (&Func{name: f.name, arg: f.arg.Sub(varName, value)}).Simplify()
}

func (f *Func) Diff(varName string) Expr {
	du := f.arg.Diff(varName)
	switch f.name {
	case "ln":
		return MulOf(du, PowOf(f.arg, N(-1)))
	case "log":
		return MulOf(du, PowOf(MulOf(f.arg, LnOf(N(10))), N(-1)))
	case "exp":
		return MulOf(du, f)
	case "abs":
		return MulOf(du, f.arg, PowOf(f, N(-1)))
	}
	return N(0)
}

func (f *Func) Eval() (*Num, bool) {
	a, ok := f.arg.Eval()
	if !ok {
		return nil, false
	}
	return FloatNum(funcEval[f.name](a.Float64()))
}

func (f *Func) Equal(other Expr) bool {
	o, ok := other.(*Func)
	return ok && f.name == o.name && f.arg.Equal(o.arg)
}

// ============================================================
// Equation
// ============================================================

// Equation is LHS = RHS. Residual gives the zero form LHS - RHS.
type Equation struct{ LHS, RHS Expr }

func Eq(lhs, rhs Expr) *Equation   { return &Equation{LHS: lhs, RHS: rhs} }
func (e *Equation) String() string { return e.LHS.String() + " = " + e.RHS.String() }
func (e *Equation) Residual() Expr { return AddOf(e.LHS, MulOf(N(-1), e.RHS)) }

// ============================================================
// Helpers
// ============================================================

// splitCoefficient separates the leading numeric factor of a product.
func splitCoefficient(e Expr) (*Num, Expr) {
	m, ok := e.(*Mul)
	if !ok {
		return N(1), e
	}
	if c, ok := m.factors[0].(*Num); ok {
		rest := m.factors[1:]
		if len(rest) == 1 {
			return c, rest[0]
		}
		return c, &Mul{factors: rest}
	}
	return N(1), e
}

func equalAll(a, b []Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// FreeSymbols returns the names of every variable in e.
func FreeSymbols(e Expr) map[string]struct{} {
	out := map[string]struct{}{}
	collectSymbols(e, out)
	return out
}

// SortedSymbols returns FreeSymbols in lexical order.
func SortedSymbols(e Expr) []string {
	set := FreeSymbols(e)
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func collectSymbols(e Expr, out map[string]struct{}) {
	switch v := e.(type) {
	case *Sym:
		out[v.name] = struct{}{}
	case *Add:
		for _, t := range v.terms {
			collectSymbols(t, out)
		}
	case *Mul:
		for _, f := range v.factors {
			collectSymbols(f, out)
		}
	case *Pow:
		collectSymbols(v.base, out)
		collectSymbols(v.exp, out)
	case *Func:
		collectSymbols(v.arg, out)
	}
}

func dependsOn(e Expr, varName string) bool {
	_, ok := FreeSymbols(e)[varName]
	return ok
}
