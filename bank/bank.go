// Package bank loads the three flat-text resources behind an equation
// system: the formula bank, the variable registry and the assumption bundles.
//
// Each resource may begin with a "# schema: <kind>/v1" header. Parse errors
// wrap calcerr.ErrIncorrectFileFormatting and carry the offending line number.
// Default resources are embedded in the binary.
package bank

import (
	"bytes"
	"embed"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/njchilds90/stoich/calcerr"
	"github.com/njchilds90/stoich/quantity"
	"github.com/njchilds90/stoich/symbolic"
	"github.com/njchilds90/stoich/units"
)

//go:embed data/*.txt
var data embed.FS

// NoDefault marks a registry entry without a default value.
const NoDefault = "None"

// Formula is one zero-form equation of the bank.
type Formula struct {
	Source string
	Expr   symbolic.Expr
	Line   int
}

func (f Formula) String() string { return f.Expr.String() + " = 0" }

// Variable is one registry entry.
type Variable struct {
	Symbol     string
	Name       string
	Unit       units.Unit
	Default    float64
	HasDefault bool
}

// Quantity returns the default value of v, or nil when it has none.
func (v Variable) Quantity() *quantity.Quantity {
	if !v.HasDefault {
		return nil
	}
	return quantity.FromUnit(v.Symbol, v.Default, v.Unit)
}

// Registry is the ordered set of declared variables.
type Registry struct {
	vars  []Variable
	index map[string]int
}

func (r *Registry) Lookup(symbol string) (Variable, bool) {
	i, ok := r.index[symbol]
	if !ok {
		return Variable{}, false
	}
	return r.vars[i], true
}

func (r *Registry) Has(symbol string) bool {
	_, ok := r.index[symbol]
	return ok
}

// Variables returns the entries in declaration order.
func (r *Registry) Variables() []Variable {
	return append([]Variable(nil), r.vars...)
}

func (r *Registry) Len() int { return len(r.vars) }

// Defaults returns a quantity for every entry that declares a default.
func (r *Registry) Defaults() []*quantity.Quantity {
	var out []*quantity.Quantity
	for _, v := range r.vars {
		if q := v.Quantity(); q != nil {
			out = append(out, q)
		}
	}
	return out
}

// Bank pairs a formula bank with the registry declaring its variables.
type Bank struct {
	Formulas []Formula
	Registry *Registry
}

// New checks that every symbol used by formulas is declared in reg.
func New(formulas []Formula, reg *Registry) (*Bank, error) {
	for _, f := range formulas {
		for _, s := range symbolic.SortedSymbols(f.Expr) {
			if !reg.Has(s) {
				return nil, formatErr(KindFormulas, f.Line, "symbol %q is not declared in the variable registry", s)
			}
		}
	}
	return &Bank{Formulas: formulas, Registry: reg}, nil
}

// Default returns the embedded formula bank and registry.
func Default() (*Bank, error) {
	return Load("", "")
}

// Load reads the formula bank and registry from files. An empty path selects
// the embedded resource.
func Load(formulasPath, variablesPath string) (*Bank, error) {
	fr, err := open(formulasPath, "data/formulas.txt")
	if err != nil {
		return nil, err
	}
	defer fr.Close()
	formulas, err := ParseFormulas(fr)
	if err != nil {
		return nil, err
	}

	vr, err := open(variablesPath, "data/variables.txt")
	if err != nil {
		return nil, err
	}
	defer vr.Close()
	reg, err := ParseVariables(vr)
	if err != nil {
		return nil, err
	}
	return New(formulas, reg)
}

func open(path, embedded string) (io.ReadCloser, error) {
	if path == "" {
		b, err := data.ReadFile(embedded)
		if err != nil {
			return nil, errors.Wrapf(err, "read embedded %s", embedded)
		}
		return io.NopCloser(bytes.NewReader(b)), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return f, nil
}

// ParseFormulas reads one zero-form formula per line. A line written as an
// equation "lhs = rhs" is accepted and stored as lhs - rhs.
func ParseFormulas(r io.Reader) ([]Formula, error) {
	lines, err := readLines(r, KindFormulas)
	if err != nil {
		return nil, err
	}
	out := make([]Formula, 0, len(lines))
	for _, l := range lines {
		e, err := symbolic.ParseFormula(l.text)
		if err != nil {
			return nil, formatErr(KindFormulas, l.no, "%v", err)
		}
		if len(symbolic.FreeSymbols(e)) == 0 {
			return nil, formatErr(KindFormulas, l.no, "formula %q has no variables", l.text)
		}
		out = append(out, Formula{Source: l.text, Expr: e, Line: l.no})
	}
	return out, nil
}

// ParseVariables reads "symbol:name:units:default" lines. The default is a
// number or None.
func ParseVariables(r io.Reader) (*Registry, error) {
	lines, err := readLines(r, KindVariables)
	if err != nil {
		return nil, err
	}
	reg := &Registry{index: map[string]int{}}
	for _, l := range lines {
		parts := strings.Split(l.text, ":")
		if len(parts) != 4 {
			return nil, formatErr(KindVariables, l.no, "want symbol:name:units:default, got %q", l.text)
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		v := Variable{Symbol: parts[0], Name: parts[1]}
		if !validSymbol(v.Symbol) {
			return nil, formatErr(KindVariables, l.no, "invalid symbol %q", v.Symbol)
		}
		if _, dup := reg.index[v.Symbol]; dup {
			return nil, formatErr(KindVariables, l.no, "duplicate symbol %q", v.Symbol)
		}
		if v.Unit, err = units.Parse(parts[2]); err != nil {
			return nil, formatErr(KindVariables, l.no, "%v", err)
		}
		if parts[3] != NoDefault && parts[3] != "" {
			f, err := strconv.ParseFloat(parts[3], 64)
			if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
				return nil, formatErr(KindVariables, l.no, "bad default %q", parts[3])
			}
			v.Default, v.HasDefault = f, true
		}
		reg.index[v.Symbol] = len(reg.vars)
		reg.vars = append(reg.vars, v)
	}
	return reg, nil
}

func validSymbol(s string) bool {
	if s == "" {
		return false
	}
	e, err := symbolic.Parse(s)
	if err != nil {
		return false
	}
	sym, ok := e.(*symbolic.Sym)
	return ok && sym.Name() == s
}

// Require returns the registry entry for symbol or ErrUnknownVariable.
func (r *Registry) Require(symbol string) (Variable, error) {
	v, ok := r.Lookup(symbol)
	if !ok {
		return Variable{}, errors.Wrapf(calcerr.ErrUnknownVariable, "%q", symbol)
	}
	return v, nil
}
