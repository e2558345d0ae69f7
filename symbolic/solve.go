package symbolic

import (
	"math"
	"math/big"
	"sort"
)

// ============================================================
// Solvers
// ============================================================

// SolveFor returns the real values of varName that make expr zero.
//
// Only numeric solutions are produced: if expr still contains any symbol other
// than varName, or does not contain varName at all, the result is empty. A
// rational function of varName is solved through its numerator polynomial
// (closed forms up to degree three, Newton iteration above), discarding roots
// that annul the denominator. Anything else is solved by peeling invertible
// operations off the single occurrence of varName, or, when varName occurs
// more than once, by Newton iteration on the symbolic derivative.
func SolveFor(expr Expr, varName string) []*Num {
	e := expr.Simplify()
	free := FreeSymbols(e)
	if _, ok := free[varName]; !ok || len(free) != 1 {
		return nil
	}
	if num, den, ok := rationalForm(e, varName); ok {
		var roots []*Num
		for _, r := range num.roots() {
			if !den.vanishesAt(r.Float64()) {
				roots = append(roots, r)
			}
		}
		return roots
	}
	vals := isolate(e, varName, []float64{0})
	if len(vals) == 0 && occurrences(e, varName) > 1 {
		vals = newtonSolve(e, varName)
	}
	var out []*Num
	for _, v := range vals {
		if n, ok := FloatNum(v); ok {
			out = appendUnique(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].val.Cmp(out[j].val) < 0 })
	return out
}

// ============================================================
// Rational functions
// ============================================================

// poly holds coefficients in increasing degree.
type poly []*big.Rat

func constPoly(r *big.Rat) poly { return poly{new(big.Rat).Set(r)} }

func (p poly) trim() poly {
	for len(p) > 0 && p[len(p)-1].Sign() == 0 {
		p = p[:len(p)-1]
	}
	return p
}

func (p poly) degree() int { return len(p.trim()) - 1 }

func polyAdd(a, b poly) poly {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make(poly, n)
	for i := range out {
		out[i] = new(big.Rat)
		if i < len(a) {
			out[i].Add(out[i], a[i])
		}
		if i < len(b) {
			out[i].Add(out[i], b[i])
		}
	}
	return out.trim()
}

func polyMul(a, b poly) poly {
	if len(a) == 0 || len(b) == 0 {
		return poly{}
	}
	out := make(poly, len(a)+len(b)-1)
	for i := range out {
		out[i] = new(big.Rat)
	}
	tmp := new(big.Rat)
	for i, x := range a {
		for j, y := range b {
			out[i+j].Add(out[i+j], tmp.Mul(x, y))
		}
	}
	return out.trim()
}

func polyPow(a poly, k int) poly {
	out := constPoly(big.NewRat(1, 1))
	for i := 0; i < k; i++ {
		out = polyMul(out, a)
	}
	return out
}

func (p poly) eval(x float64) float64 {
	acc := 0.0
	for i := len(p) - 1; i >= 0; i-- {
		c, _ := p[i].Float64()
		acc = acc*x + c
	}
	return acc
}

// vanishesAt reports whether p(x) is zero relative to the size of its terms.
func (p poly) vanishesAt(x float64) bool {
	p = p.trim()
	if len(p) == 0 {
		return true
	}
	scale := 0.0
	xi := 1.0
	for _, c := range p {
		f, _ := c.Float64()
		scale += math.Abs(f * xi)
		xi *= x
	}
	return math.Abs(p.eval(x)) <= 1e-12*scale
}

const maxRationalPower = 16

// rationalForm writes e as num(x)/den(x) with numeric coefficients.
func rationalForm(e Expr, x string) (num, den poly, ok bool) {
	one := constPoly(big.NewRat(1, 1))
	if !dependsOn(e, x) {
		v, ok := e.Eval()
		if !ok {
			return nil, nil, false
		}
		return constPoly(v.val).trim(), one, true
	}
	switch v := e.(type) {
	case *Sym:
		return poly{new(big.Rat), big.NewRat(1, 1)}, one, true
	case *Add:
		num, den = poly{}, one
		for _, t := range v.terms {
			n, d, ok := rationalForm(t, x)
			if !ok {
				return nil, nil, false
			}
			num = polyAdd(polyMul(num, d), polyMul(n, den))
			den = polyMul(den, d)
		}
		return num, den, true
	case *Mul:
		num, den = one, one
		for _, f := range v.factors {
			n, d, ok := rationalForm(f, x)
			if !ok {
				return nil, nil, false
			}
			num = polyMul(num, n)
			den = polyMul(den, d)
		}
		return num, den, true
	case *Pow:
		k, ok := v.exp.(*Num)
		if !ok || !k.IsInteger() || !k.val.Num().IsInt64() {
			return nil, nil, false
		}
		exp := k.val.Num().Int64()
		if exp > maxRationalPower || exp < -maxRationalPower {
			return nil, nil, false
		}
		n, d, ok := rationalForm(v.base, x)
		if !ok {
			return nil, nil, false
		}
		if exp < 0 {
			n, d, exp = d, n, -exp
		}
		return polyPow(n, int(exp)), polyPow(d, int(exp)), true
	}
	return nil, nil, false
}

// roots returns the real roots of p, ascending.
func (p poly) roots() []*Num {
	p = p.trim()
	var out []*Num
	switch p.degree() {
	case -1, 0:
		// 0 = 0 is an identity and c = 0 is inconsistent; neither is numeric.
		return nil
	case 1:
		r := new(big.Rat).Quo(p[0], p[1])
		return []*Num{{val: r.Neg(r)}}
	case 2:
		for _, f := range quadraticRoots(p) {
			if n, ok := FloatNum(f); ok {
				out = appendUnique(out, n)
			}
		}
	case 3:
		for _, f := range cubicRoots(p) {
			if n, ok := FloatNum(f); ok {
				out = appendUnique(out, n)
			}
		}
	default:
		for _, f := range newtonRoots(p) {
			if n, ok := FloatNum(f); ok {
				out = appendUnique(out, n)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].val.Cmp(out[j].val) < 0 })
	return out
}

func quadraticRoots(p poly) []float64 {
	c, _ := p[0].Float64()
	b, _ := p[1].Float64()
	a, _ := p[2].Float64()
	disc := b*b - 4*a*c
	if disc < 0 {
		return nil
	}
	if disc == 0 {
		return []float64{-b / (2 * a)}
	}
	// Numerically stable form avoiding cancellation between -b and sqrt(disc).
	q := -0.5 * (b + math.Copysign(math.Sqrt(disc), b))
	if q == 0 {
		return []float64{0}
	}
	return []float64{q / a, c / q}
}

func cubicRoots(p poly) []float64 {
	df, _ := p[0].Float64()
	cf, _ := p[1].Float64()
	bf, _ := p[2].Float64()
	af, _ := p[3].Float64()
	pp := (3*af*cf - bf*bf) / (3 * af * af)
	q := (2*bf*bf*bf - 9*af*bf*cf + 27*af*af*df) / (27 * af * af * af)
	offset := bf / (3 * af)
	disc := -(4*pp*pp*pp + 27*q*q)

	switch {
	case disc > 0:
		m := 2 * math.Sqrt(-pp/3)
		theta := math.Acos(3*q/(pp*m)) / 3
		out := make([]float64, 3)
		for k := range out {
			out[k] = m*math.Cos(theta-2*math.Pi*float64(k)/3) - offset
		}
		return out
	case disc == 0:
		if q == 0 {
			return []float64{-offset}
		}
		return []float64{3*q/pp - offset, -3*q/(2*pp) - offset}
	}
	a := math.Cbrt(-q/2 + math.Sqrt(q*q/4+pp*pp*pp/27))
	b := 0.0
	if a != 0 {
		b = -pp / (3 * a)
	}
	return []float64{a + b - offset}
}

// newtonRoots scans the Cauchy bound of p with Newton iterations from evenly
// spaced starting points.
func newtonRoots(p poly) []float64 {
	n := len(p) - 1
	lead, _ := p[n].Float64()
	bound := 0.0
	for _, c := range p[:n] {
		f, _ := c.Float64()
		bound = math.Max(bound, math.Abs(f/lead))
	}
	bound++

	dp := make(poly, n)
	for i := 1; i <= n; i++ {
		dp[i-1] = new(big.Rat).Mul(p[i], new(big.Rat).SetInt64(int64(i)))
	}

	const (
		starts  = 200
		maxIter = 100
	)
	var roots []float64
	for i := 0; i <= starts; i++ {
		x := -bound + 2*bound*float64(i)/starts
		for iter := 0; iter < maxIter; iter++ {
			if p.vanishesAt(x) {
				dup := false
				for _, r := range roots {
					if math.Abs(r-x) <= 1e-9*math.Max(1, math.Abs(r)) {
						dup = true
						break
					}
				}
				if !dup {
					roots = append(roots, x)
				}
				break
			}
			d := dp.eval(x)
			if d == 0 || math.IsNaN(d) {
				break
			}
			x -= p.eval(x) / d
			if math.Abs(x) > 10*bound {
				break
			}
		}
	}
	sort.Float64s(roots)
	return roots
}

// ============================================================
// Newton iteration on general expressions
// ============================================================

// occurrences counts the subtrees of e that depend on x and are not built from
// other such subtrees, i.e. the separate appearances of x.
func occurrences(e Expr, x string) int {
	if !dependsOn(e, x) {
		return 0
	}
	var children []Expr
	switch v := e.(type) {
	case *Add:
		children = v.terms
	case *Mul:
		children = v.factors
	case *Pow:
		children = []Expr{v.base, v.exp}
	case *Func:
		children = []Expr{v.arg}
	default:
		return 1
	}
	n := 0
	for _, c := range children {
		n += occurrences(c, x)
	}
	return n
}

func evalAt(e Expr, x string, v float64) (float64, bool) {
	n, ok := FloatNum(v)
	if !ok {
		return 0, false
	}
	r, ok := e.Sub(x, n).Eval()
	if !ok {
		return 0, false
	}
	f := r.Float64()
	return f, !math.IsNaN(f) && !math.IsInf(f, 0)
}

// newtonStarts spans zero and both signs over twelve decades.
func newtonStarts() []float64 {
	out := []float64{0}
	for k := -24; k <= 24; k++ {
		m := math.Pow(10, float64(k)/4)
		out = append(out, m, -m)
	}
	return out
}

// newtonSolve runs Newton's method on e from a fixed set of starting points,
// using e.Diff for the slope. A root is accepted once the step is negligible
// and the residual is small against the local slope.
func newtonSolve(e Expr, x string) []float64 {
	de := e.Diff(x).Simplify()
	const maxIter = 60
	var roots []float64
	for _, x0 := range newtonStarts() {
		v := x0
		for iter := 0; iter < maxIter; iter++ {
			f, ok := evalAt(e, x, v)
			if !ok {
				break
			}
			d, ok := evalAt(de, x, v)
			if !ok || d == 0 {
				break
			}
			step := f / d
			v -= step
			if math.Abs(step) > 1e-12*math.Max(1, math.Abs(v)) {
				continue
			}
			if r, ok := evalAt(e, x, v); ok && math.Abs(r) <= 1e-9*math.Max(1, math.Abs(v*d)) {
				roots = appendRoot(roots, v)
			}
			break
		}
	}
	sort.Float64s(roots)
	return roots
}

func appendRoot(roots []float64, v float64) []float64 {
	for _, r := range roots {
		if math.Abs(r-v) <= 1e-9*math.Max(1, math.Abs(r)) {
			return roots
		}
	}
	return append(roots, v)
}

// ============================================================
// Isolation
// ============================================================

// isolate inverts the operations wrapping the single occurrence of x in e,
// mapping every target value of e to the corresponding values of x. Branches
// without a real preimage are dropped.
func isolate(e Expr, x string, targets []float64) []float64 {
	if len(targets) == 0 {
		return nil
	}
	switch v := e.(type) {
	case *Sym:
		if v.name == x {
			return targets
		}
	case *Add:
		dep, rest := partition(v.terms, x)
		if dep == nil {
			return nil
		}
		c, ok := AddOf(rest...).Eval()
		if !ok {
			return nil
		}
		shift := c.Float64()
		next := make([]float64, len(targets))
		for i, t := range targets {
			next[i] = t - shift
		}
		return isolate(dep, x, next)
	case *Mul:
		dep, rest := partition(v.factors, x)
		if dep == nil {
			return nil
		}
		c, ok := MulOf(rest...).Eval()
		if !ok || c.IsZero() {
			return nil
		}
		k := c.Float64()
		next := make([]float64, len(targets))
		for i, t := range targets {
			next[i] = t / k
		}
		return isolate(dep, x, next)
	case *Pow:
		return isolatePow(v, x, targets)
	case *Func:
		var next []float64
		for _, t := range targets {
			switch v.name {
			case "ln":
				next = append(next, math.Exp(t))
			case "log":
				next = append(next, math.Pow(10, t))
			case "exp":
				if t > 0 {
					next = append(next, math.Log(t))
				}
			case "abs":
				if t > 0 {
					next = append(next, t, -t)
				} else if t == 0 {
					next = append(next, 0)
				}
			}
		}
		return isolate(v.arg, x, next)
	}
	return nil
}

func isolatePow(v *Pow, x string, targets []float64) []float64 {
	baseDep, expDep := dependsOn(v.base, x), dependsOn(v.exp, x)
	switch {
	case baseDep && !expDep:
		en, ok := v.exp.Eval()
		if !ok || en.IsZero() {
			return nil
		}
		k := en.Float64()
		evenInt := en.IsInteger() && new(big.Int).Rem(en.val.Num(), big.NewInt(2)).Sign() == 0
		oddInt := en.IsInteger() && !evenInt
		var next []float64
		for _, t := range targets {
			switch {
			case t == 0:
				if k > 0 {
					next = append(next, 0)
				}
			case t < 0 && oddInt:
				next = append(next, -math.Pow(-t, 1/k))
			case t < 0:
				// no real preimage
			case evenInt:
				r := math.Pow(t, 1/k)
				next = append(next, r, -r)
			default:
				next = append(next, math.Pow(t, 1/k))
			}
		}
		return isolate(v.base, x, next)
	case expDep && !baseDep:
		bn, ok := v.base.Eval()
		if !ok {
			return nil
		}
		b := bn.Float64()
		if b <= 0 || b == 1 {
			return nil
		}
		var next []float64
		for _, t := range targets {
			if t > 0 {
				next = append(next, math.Log(t)/math.Log(b))
			}
		}
		return isolate(v.exp, x, next)
	}
	return nil
}

// partition returns the only element depending on x, or nil when zero or
// several elements do.
func partition(es []Expr, x string) (Expr, []Expr) {
	var dep Expr
	rest := make([]Expr, 0, len(es))
	for _, e := range es {
		if dependsOn(e, x) {
			if dep != nil {
				return nil, nil
			}
			dep = e
			continue
		}
		rest = append(rest, e)
	}
	return dep, rest
}

func appendUnique(out []*Num, n *Num) []*Num {
	f := n.Float64()
	for _, o := range out {
		if math.Abs(o.Float64()-f) <= 1e-12*math.Max(1, math.Abs(f)) {
			return out
		}
	}
	return append(out, n)
}
