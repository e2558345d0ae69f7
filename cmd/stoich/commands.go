package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/njchilds90/stoich/balance"
	"github.com/njchilds90/stoich/bank"
	"github.com/njchilds90/stoich/internal/problem"
	"github.com/njchilds90/stoich/quantity"
)

func newSolveCommand(o *rootOptions) *cobra.Command {
	var (
		file      string
		given     []string
		assume    []string
		target    string
		unit      string
		precision int
	)
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Derive a target quantity from known values",
		Example: `  stoich solve --given "m = 0.713 g" --given "M = 18 g/mol" --target n --unit mmol --precision 3
  stoich solve --assume STP --given "Vpg = 48.9 L" --target n
  stoich solve -f problem.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var p *problem.Problem
			if file != "" {
				var err error
				if p, err = problem.Load(file); err != nil {
					return err
				}
			} else {
				p = problem.FromFlags(given, assume, target, unit, precision)
				if err := p.Validate(); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if p.Target != "" {
				q, err := p.Solve(o.newSolver())
				if err != nil {
					return err
				}
				fmt.Fprintln(out, q)
			}
			results, err := p.Balance()
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Fprintln(out, r.Equation())
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&file, "file", "f", "", "YAML problem file")
	flags.StringArrayVar(&given, "given", nil, `Known quantity such as "m = 0.713 g"; repeatable`)
	flags.StringSliceVar(&assume, "assume", nil, "Assumption bundles to apply first, such as STP")
	flags.StringVar(&target, "target", "", "Variable to solve for")
	flags.StringVar(&unit, "unit", "", "Answer unit; defaults to the declared unit")
	flags.IntVar(&precision, "precision", -1, "Decimals to round the answer to; negative keeps full precision")
	return cmd
}

func newBalanceCommand(o *rootOptions) *cobra.Command {
	var showMap bool
	cmd := &cobra.Command{
		Use:   "balance REACTION",
		Short: "Balance a chemical reaction",
		Example: `  stoich balance "H2 + O2 -> H2O"
  stoich balance "KMnO4 + HCl -> KCl + MnCl2 + H2O + Cl2"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reagents, products, err := balance.ParseReaction(args[0])
			if err != nil {
				return err
			}
			r, err := balance.Balance(reagents, products)
			if err != nil {
				return err
			}
			if err := balance.Verify(r); err != nil {
				return errors.WithMessage(err, "balanced reaction failed verification")
			}
			o.log.WithField("reaction", r.Equation()).Debug("Balanced reaction")

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, r.Equation())
			if showMap {
				for _, s := range append(append([]balance.Substance(nil), r.Reagents...), r.Products...) {
					c, _ := r.Coefficient(s.Formula())
					fmt.Fprintf(out, "%s\t%d\n", s.Formula(), c)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showMap, "coefficients", false, "Also print one coefficient per line")
	return cmd
}

func newConvertCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "convert QUANTITY UNIT",
		Short:   "Convert a quantity to another unit",
		Example: `  stoich convert "m = 0.713 g" mg`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := quantity.Parse(args[0])
			if err != nil {
				return err
			}
			c, err := q.Convert(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c)
			return nil
		},
	}
}

func newVariablesCommand(o *rootOptions) *cobra.Command {
	var showFormulas bool
	cmd := &cobra.Command{
		Use:   "variables",
		Short: "List the declared variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, v := range o.bank.Registry.Variables() {
				def := bank.NoDefault
				if v.HasDefault {
					def = fmt.Sprintf("%g", v.Default)
				}
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", v.Symbol, v.Name, v.Unit, def)
			}
			if showFormulas {
				for _, f := range o.bank.Formulas {
					fmt.Fprintln(out, f)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showFormulas, "show-formulas", false, "Also print the formula bank")
	return cmd
}

func newAssumptionsCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assumptions",
		Short: "List or add assumption bundles",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the available assumption bundles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			as, err := o.assumptions()
			if err != nil {
				return err
			}
			for _, a := range as {
				fmt.Fprintln(cmd.OutOrStdout(), a)
			}
			return nil
		},
	}, newAssumptionsAddCommand(o))
	return cmd
}

func newAssumptionsAddCommand(o *rootOptions) *cobra.Command {
	var (
		symbol, name       string
		set, compute, temp []string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append an assumption bundle to the assumptions file",
		Example: `  stoich --assumptions bundles.txt assumptions add --symbol SATP --name "standard ambient" \
    --set "T = 298.15 K" --set "P = 100000 Pa" --compute "V0 = 0.01 L/mol" --assume "n = 1 mol"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := o.cfg.Resources.Assumptions
			if path == "" {
				return errors.New("no assumptions file configured; pass --assumptions")
			}
			a, err := buildAssumption(o.bank.Registry, symbol, name, set, compute, temp)
			if err != nil {
				return err
			}

			existing, err := bank.LoadAssumptions(path)
			if err != nil && !os.IsNotExist(errors.Cause(err)) {
				return err
			}
			for _, e := range existing {
				if e.Symbol == a.Symbol {
					return errors.Errorf("assumption %s already exists in %s", a.Symbol, path)
				}
			}
			if err := appendAssumption(path, a); err != nil {
				return err
			}
			o.log.WithField("assumption", a.Symbol).Info("Added assumption")
			fmt.Fprintln(cmd.OutOrStdout(), a)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&symbol, "symbol", "", "Bundle symbol, such as SATP")
	flags.StringVar(&name, "name", "", "Human readable bundle name")
	flags.StringArrayVar(&set, "set", nil, `Preset value such as "T = 298 K"; repeatable`)
	flags.StringArrayVar(&compute, "compute", nil, `Variable to derive such as "V0 = 0.01 L/mol"; repeatable`)
	flags.StringArrayVar(&temp, "assume", nil, `Temporary value such as "n = 1 mol"; repeatable`)
	return cmd
}

// buildAssumption checks every quantity against the registry before a bundle
// is written.
func buildAssumption(reg *bank.Registry, symbol, name string, set, compute, temp []string) (*bank.Assumption, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" || strings.ContainsAny(symbol, " :!") {
		return nil, errors.Errorf("invalid assumption symbol %q", symbol)
	}
	if len(compute) == 0 && len(set) == 0 {
		return nil, errors.New("an assumption needs at least one --set or --compute")
	}
	parse := func(raw []string) ([]*quantity.Quantity, error) {
		qs := make([]*quantity.Quantity, 0, len(raw))
		for _, r := range raw {
			q, err := quantity.Parse(r)
			if err != nil {
				return nil, err
			}
			v, err := reg.Require(q.Name())
			if err != nil {
				return nil, err
			}
			if !q.Convertible(v.Unit.String()) {
				return nil, errors.Errorf("%s is declared in %s, got %s", q.Name(), v.Unit, q.Unit())
			}
			qs = append(qs, q)
		}
		return qs, nil
	}
	a := bank.NewAssumption(symbol, strings.TrimSpace(name))
	for _, step := range []struct {
		raw []string
		add func(...*quantity.Quantity) *bank.Assumption
	}{{set, a.Set}, {compute, a.Compute}, {temp, a.Assume}} {
		qs, err := parse(step.raw)
		if err != nil {
			return nil, err
		}
		step.add(qs...)
	}
	return a, nil
}

func appendAssumption(path string, a *bank.Assumption) error {
	prefix := ""
	if data, err := os.ReadFile(path); err == nil && len(data) > 0 && data[len(data)-1] != '\n' {
		prefix = "\n"
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	if _, err := f.WriteString(prefix); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	if err := bank.WriteAssumption(f, a); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return f.Close()
}
