package bank

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/njchilds90/stoich/quantity"
	"github.com/njchilds90/stoich/units"
)

// Assumption is a named bundle of preset values, temporary values used only
// while deriving, and the variables to derive from them.
//
// In the resource format a bundle reads
//
//	!STP: standard temperature and pressure
//	variable T:298:K
//	compute V0::L/mol
//	assume n:1:mol
//	!
type Assumption struct {
	Symbol    string
	Name      string
	Preset    []*quantity.Quantity
	Targets   []*quantity.Quantity
	Temporary []*quantity.Quantity
}

func NewAssumption(symbol, name string) *Assumption {
	return &Assumption{Symbol: symbol, Name: name}
}

// Set adds preset values that stay known after the bundle is applied.
func (a *Assumption) Set(qs ...*quantity.Quantity) *Assumption {
	a.Preset = append(a.Preset, qs...)
	return a
}

// Compute adds variables to derive. Only name and unit of each placeholder
// are used; its magnitude selects the rounding precision.
func (a *Assumption) Compute(qs ...*quantity.Quantity) *Assumption {
	a.Targets = append(a.Targets, qs...)
	return a
}

// Assume adds values known only while the targets are derived.
func (a *Assumption) Assume(qs ...*quantity.Quantity) *Assumption {
	a.Temporary = append(a.Temporary, qs...)
	return a
}

func (a *Assumption) String() string {
	join := func(qs []*quantity.Quantity, f func(*quantity.Quantity) string) string {
		parts := make([]string, len(qs))
		for i, q := range qs {
			parts[i] = f(q)
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprintf("%s (%s): sets %s; computes %s; temporarily assumes %s",
		a.Symbol, a.Name,
		join(a.Preset, (*quantity.Quantity).String),
		join(a.Targets, func(q *quantity.Quantity) string { return q.Name() + " in " + q.Unit().String() }),
		join(a.Temporary, (*quantity.Quantity).String))
}

// WriteAssumption renders a in the block format read by ParseAssumptions.
func WriteAssumption(w io.Writer, a *Assumption) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "!%s: %s\n", a.Symbol, a.Name)
	for _, q := range a.Preset {
		fmt.Fprintf(bw, "variable %s:%s:%s\n", q.Name(), formatFloat(q.Magnitude()), q.Unit())
	}
	for _, q := range a.Targets {
		precision := ""
		if q.Magnitude() != 0 {
			precision = formatFloat(q.Magnitude())
		}
		fmt.Fprintf(bw, "compute %s:%s:%s\n", q.Name(), precision, q.Unit())
	}
	for _, q := range a.Temporary {
		fmt.Fprintf(bw, "assume %s:%s:%s\n", q.Name(), formatFloat(q.Magnitude()), q.Unit())
	}
	fmt.Fprintln(bw, "!")
	return errors.Wrapf(bw.Flush(), "write assumption %s", a.Symbol)
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

// DefaultAssumptions returns the embedded assumption bundles.
func DefaultAssumptions() ([]*Assumption, error) {
	return LoadAssumptions("")
}

// LoadAssumptions reads bundles from path, or the embedded resource when path
// is empty.
func LoadAssumptions(path string) ([]*Assumption, error) {
	r, err := open(path, "data/assumptions.txt")
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ParseAssumptions(r)
}

// ParseAssumptions reads every bundle of r in order.
func ParseAssumptions(r io.Reader) ([]*Assumption, error) {
	lines, err := readLines(r, KindAssumptions)
	if err != nil {
		return nil, err
	}
	var (
		out     []*Assumption
		current *Assumption
		opened  int
	)
	for _, l := range lines {
		switch {
		case l.text == "!":
			if current == nil {
				return nil, formatErr(KindAssumptions, l.no, "terminator without an open bundle")
			}
			out = append(out, current)
			current = nil
		case strings.HasPrefix(l.text, "!"):
			if current != nil {
				return nil, formatErr(KindAssumptions, l.no, "bundle %q opened on line %d is not terminated", current.Symbol, opened)
			}
			symbol, name, ok := strings.Cut(l.text[1:], ":")
			symbol = strings.TrimSpace(symbol)
			if !ok || symbol == "" || strings.ContainsAny(symbol, " \t") {
				return nil, formatErr(KindAssumptions, l.no, "want !<symbol>: <name>, got %q", l.text)
			}
			current, opened = NewAssumption(symbol, strings.TrimSpace(name)), l.no
		default:
			if current == nil {
				return nil, formatErr(KindAssumptions, l.no, "%q outside of a bundle", l.text)
			}
			if err := parseEntry(current, l); err != nil {
				return nil, err
			}
		}
	}
	if current != nil {
		return nil, formatErr(KindAssumptions, opened, "bundle %q is not terminated", current.Symbol)
	}
	return out, nil
}

func parseEntry(a *Assumption, l line) error {
	kind, body, ok := strings.Cut(l.text, " ")
	if !ok {
		return formatErr(KindAssumptions, l.no, "unexpected line %q", l.text)
	}
	parts := strings.Split(strings.TrimSpace(body), ":")
	if len(parts) != 3 {
		return formatErr(KindAssumptions, l.no, "want %s <symbol>:<value>:<units>, got %q", kind, l.text)
	}
	symbol, value, unit := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2])
	if symbol == "" {
		return formatErr(KindAssumptions, l.no, "missing symbol in %q", l.text)
	}
	u, err := units.Parse(unit)
	if err != nil {
		return formatErr(KindAssumptions, l.no, "%v", err)
	}

	// compute placeholders may leave the value empty
	magnitude := 0.0
	if value != "" || kind != "compute" {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return formatErr(KindAssumptions, l.no, "bad value %q", value)
		}
		magnitude = f
	}
	q := quantity.FromUnit(symbol, magnitude, u)

	switch kind {
	case "variable":
		a.Set(q)
	case "compute":
		a.Compute(q)
	case "assume":
		a.Assume(q)
	default:
		return formatErr(KindAssumptions, l.no, "unknown entry kind %q", kind)
	}
	return nil
}
