package symbolic_test

import (
	"math"
	"math/big"
	"testing"

	"github.com/njchilds90/stoich/symbolic"
)

func near(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Abs(b))
}

// ============================================================
// Num tests
// ============================================================

func TestNum_Integer(t *testing.T) {
	if s := symbolic.N(42).String(); s != "42" {
		t.Errorf("want 42, got %s", s)
	}
}

func TestNum_Rational(t *testing.T) {
	if s := symbolic.F(1, 3).String(); s != "1/3" {
		t.Errorf("want 1/3, got %s", s)
	}
}

func TestNum_FloatRejectsNonFinite(t *testing.T) {
	if _, ok := symbolic.FloatNum(math.Inf(1)); ok {
		t.Error("FloatNum(+Inf) should fail")
	}
	if _, ok := symbolic.FloatNum(math.NaN()); ok {
		t.Error("FloatNum(NaN) should fail")
	}
}

// ============================================================
// Simplification tests
// ============================================================

func TestAdd_CollapseToZero(t *testing.T) {
	x := symbolic.S("x")
	e := symbolic.AddOf(x, symbolic.MulOf(symbolic.N(-1), x))
	if e.String() != "0" {
		t.Errorf("x - x should be 0, got %s", e)
	}
}

func TestAdd_LikeTerms(t *testing.T) {
	x := symbolic.S("x")
	e := symbolic.AddOf(x, x, symbolic.N(3))
	if e.String() != "2*x + 3" {
		t.Errorf("want 2*x + 3, got %s", e)
	}
}

func TestMul_CancelsBases(t *testing.T) {
	e := symbolic.MustParse("m/M*M")
	if e.String() != "m" {
		t.Errorf("want m, got %s", e)
	}
}

func TestPow_ZeroExp(t *testing.T) {
	e := symbolic.PowOf(symbolic.S("x"), symbolic.N(0))
	if e.String() != "1" {
		t.Errorf("x^0 should be 1, got %s", e)
	}
}

func TestPow_ZeroToNegativeIsNotNumeric(t *testing.T) {
	e := symbolic.PowOf(symbolic.N(0), symbolic.N(-1))
	if _, ok := e.Eval(); ok {
		t.Error("0^-1 must not evaluate")
	}
}

func TestFunc_LnExpCancel(t *testing.T) {
	e := symbolic.LnOf(symbolic.ExpOf(symbolic.S("x")))
	if e.String() != "x" {
		t.Errorf("ln(exp(x)) should be x, got %s", e)
	}
}

// ============================================================
// Parser tests
// ============================================================

func TestParse_Precedence(t *testing.T) {
	e := symbolic.MustParse("2 + 3*4^2")
	v, ok := e.Eval()
	if !ok || v.String() != "50" {
		t.Errorf("want 50, got %v", e)
	}
}

func TestParse_DoubleStarPower(t *testing.T) {
	e := symbolic.MustParse("2**10")
	if e.String() != "1024" {
		t.Errorf("want 1024, got %s", e)
	}
}

func TestParse_ExactDecimals(t *testing.T) {
	e := symbolic.MustParse("0.1 + 0.2")
	if e.String() != "3/10" {
		t.Errorf("want 3/10, got %s", e)
	}
}

func TestParse_Errors(t *testing.T) {
	for _, src := range []string{"", "x +", "(x", "foo(x)", "x $ y", "1..2"} {
		if _, err := symbolic.Parse(src); err == nil {
			t.Errorf("Parse(%q) should fail", src)
		}
	}
}

func TestParseFormula_Equation(t *testing.T) {
	e, err := symbolic.ParseFormula("P*V = n*R*T")
	if err != nil {
		t.Fatal(err)
	}
	got := symbolic.SortedSymbols(e)
	want := []string{"P", "R", "T", "V", "n"}
	if len(got) != len(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("want %v, got %v", want, got)
		}
	}
}

func TestParseFormula_TwoEquals(t *testing.T) {
	if _, err := symbolic.ParseFormula("a = b = c"); err == nil {
		t.Error("expected error for two '='")
	}
}

// ============================================================
// Solver tests
// ============================================================

func solve(t *testing.T, src, x string, subs map[string]float64) []*symbolic.Num {
	t.Helper()
	e, err := symbolic.ParseFormula(src)
	if err != nil {
		t.Fatal(err)
	}
	for name, v := range subs {
		e = e.Sub(name, symbolic.NFloat(v))
	}
	return symbolic.SolveFor(e, x)
}

func TestSolveFor_Linear(t *testing.T) {
	roots := solve(t, "n - m/M", "n", map[string]float64{"m": 0.713, "M": 18})
	if len(roots) != 1 || !near(roots[0].Float64(), 0.713/18) {
		t.Fatalf("want [0.0396...], got %v", roots)
	}
}

func TestSolveFor_Reciprocal(t *testing.T) {
	roots := solve(t, "n - m/M", "M", map[string]float64{"m": 10, "n": 2})
	if len(roots) != 1 || !near(roots[0].Float64(), 5) {
		t.Fatalf("want [5], got %v", roots)
	}
}

func TestSolveFor_DenominatorRootDropped(t *testing.T) {
	e := symbolic.MustParse("x/x - 1")
	if roots := symbolic.SolveFor(e, "x"); len(roots) != 0 {
		t.Errorf("identity has no numeric solution, got %v", roots)
	}
}

func TestSolveFor_Quadratic(t *testing.T) {
	roots := symbolic.SolveFor(symbolic.MustParse("x^2 - 4"), "x")
	if len(roots) != 2 || !near(roots[0].Float64(), -2) || !near(roots[1].Float64(), 2) {
		t.Fatalf("want [-2 2], got %v", roots)
	}
}

func TestSolveFor_NoRealRoots(t *testing.T) {
	if roots := symbolic.SolveFor(symbolic.MustParse("x^2 + 1"), "x"); len(roots) != 0 {
		t.Errorf("want none, got %v", roots)
	}
}

func TestSolveFor_Cubic(t *testing.T) {
	roots := symbolic.SolveFor(symbolic.MustParse("(x-1)*(x-2)*(x-3)"), "x")
	if len(roots) != 3 {
		t.Fatalf("want 3 roots, got %v", roots)
	}
	for i, want := range []float64{1, 2, 3} {
		if !near(roots[i].Float64(), want) {
			t.Errorf("root %d: want %v, got %v", i, want, roots[i])
		}
	}
}

func TestSolveFor_Quartic(t *testing.T) {
	roots := symbolic.SolveFor(symbolic.MustParse("x^4 - 5*x^2 + 4"), "x")
	if len(roots) != 4 {
		t.Fatalf("want 4 roots, got %v", roots)
	}
	for i, want := range []float64{-2, -1, 1, 2} {
		if math.Abs(roots[i].Float64()-want) > 1e-6 {
			t.Errorf("root %d: want %v, got %v", i, want, roots[i])
		}
	}
}

func TestSolveFor_SquareRoot(t *testing.T) {
	roots := symbolic.SolveFor(symbolic.MustParse("sqrt(x) - 3"), "x")
	if len(roots) != 1 || !near(roots[0].Float64(), 9) {
		t.Fatalf("want [9], got %v", roots)
	}
}

func TestSolveFor_Logarithm(t *testing.T) {
	roots := symbolic.SolveFor(symbolic.MustParse("log(x) - 2"), "x")
	if len(roots) != 1 || !near(roots[0].Float64(), 100) {
		t.Fatalf("want [100], got %v", roots)
	}
}

func TestSolveFor_Exponent(t *testing.T) {
	roots := symbolic.SolveFor(symbolic.MustParse("2^x - 8"), "x")
	if len(roots) != 1 || !near(roots[0].Float64(), 3) {
		t.Fatalf("want [3], got %v", roots)
	}
}

func TestSolveFor_RepeatedTranscendental(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"x*exp(x) - 2", 0.8526055020137255},
		{"x + ln(x) - 3", 2.2079400315693},
	}
	for _, tt := range tests {
		roots := symbolic.SolveFor(symbolic.MustParse(tt.expr), "x")
		if len(roots) != 1 || math.Abs(roots[0].Float64()-tt.want) > 1e-9 {
			t.Errorf("%s: want [%v], got %v", tt.expr, tt.want, roots)
		}
	}
}

func TestSolveFor_RepeatedTranscendentalNoRoot(t *testing.T) {
	if roots := symbolic.SolveFor(symbolic.MustParse("exp(x) + x^2 + 1"), "x"); len(roots) != 0 {
		t.Errorf("want no roots, got %v", roots)
	}
}

func TestSolveFor_OtherSymbolsLeft(t *testing.T) {
	if roots := symbolic.SolveFor(symbolic.MustParse("n - m/M"), "n"); roots != nil {
		t.Errorf("want nil, got %v", roots)
	}
}

func TestSolveFor_VariableAbsent(t *testing.T) {
	if roots := symbolic.SolveFor(symbolic.MustParse("y - 2"), "x"); roots != nil {
		t.Errorf("want nil, got %v", roots)
	}
}

// ============================================================
// RatMatrix tests
// ============================================================

func TestRatMatrix_RREF(t *testing.T) {
	// H2 + O2 -> H2O over rows (H, O).
	m := symbolic.RatMatrixFromInts([][]int64{
		{2, 0, -2},
		{0, 2, -1},
	})
	r, pivots := m.RREF()
	if len(pivots) != 2 || pivots[0] != 0 || pivots[1] != 1 {
		t.Fatalf("unexpected pivots %v", pivots)
	}
	if r.String() != "[[1, 0, -1], [0, 1, -1/2]]" {
		t.Errorf("unexpected RREF %s", r)
	}
	if m.At(0, 0).Cmp(big.NewRat(2, 1)) != 0 {
		t.Error("RREF must not modify the receiver")
	}
}

func TestRatMatrix_NullSpace(t *testing.T) {
	m := symbolic.RatMatrixFromInts([][]int64{
		{2, 0, -2},
		{0, 2, -1},
	})
	basis := m.NullSpace()
	if len(basis) != 1 {
		t.Fatalf("want 1 basis vector, got %d", len(basis))
	}
	ints := symbolic.IntegerVector(basis[0])
	for i, want := range []int64{2, 1, 2} {
		if ints[i].Int64() != want {
			t.Errorf("coefficient %d: want %d, got %s", i, want, ints[i])
		}
	}
}

func TestRatMatrix_FullRankHasEmptyNullSpace(t *testing.T) {
	m := symbolic.RatMatrixFromInts([][]int64{{1, 0}, {0, 1}})
	if n := len(m.NullSpace()); n != 0 {
		t.Errorf("want empty null space, got %d vectors", n)
	}
	if m.Rank() != 2 {
		t.Errorf("want rank 2, got %d", m.Rank())
	}
}

func TestIntegerVector_DividesCommonFactor(t *testing.T) {
	v := []*big.Rat{big.NewRat(4, 1), big.NewRat(6, 1)}
	ints := symbolic.IntegerVector(v)
	if ints[0].Int64() != 2 || ints[1].Int64() != 3 {
		t.Errorf("want [2 3], got %v", ints)
	}
}
