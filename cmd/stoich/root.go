package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/njchilds90/stoich/bank"
	"github.com/njchilds90/stoich/equation"
	"github.com/njchilds90/stoich/solver"
)

// Config is the merged configuration of flags, STOICH_* environment variables
// and the optional config file.
type Config struct {
	Resources struct {
		Formulas    string `mapstructure:"formulas"`
		Variables   string `mapstructure:"variables"`
		Assumptions string `mapstructure:"assumptions"`
	} `mapstructure:"resources"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	MCP struct {
		Mode    string `mapstructure:"mode"`
		Address string `mapstructure:"address"`
	} `mapstructure:"mcp"`
	Metrics struct {
		Address string `mapstructure:"address"`
	} `mapstructure:"metrics"`
}

// rootOptions is shared by every subcommand. It is filled in by the root
// command's PersistentPreRunE.
type rootOptions struct {
	v          *viper.Viper
	configFile string

	cfg  Config
	log  *logrus.Logger
	bank *bank.Bank
}

func NewRootCommand() *cobra.Command {
	o := &rootOptions{v: viper.New(), log: logrus.New()}

	cmd := &cobra.Command{
		Use:   "stoich",
		Short: "Solve stoichiometry problems and balance chemical reactions",
		Long: `stoich derives unknown quantities from a bank of algebraic formulas and
balances chemical reactions with integer coefficients.

Configuration is read from flags, STOICH_* environment variables (dots become
underscores, as in STOICH_LOG_LEVEL) and stoich.yaml in the working directory
or $HOME/.config/stoich.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.complete()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&o.configFile, "config", "", "Path to a YAML config file")
	flags.String("formulas", "", "Formula bank file; empty uses the built-in bank")
	flags.String("variables", "", "Variable registry file; empty uses the built-in registry")
	flags.String("assumptions", "", "Assumption bundle file; empty uses the built-in bundles")
	flags.String("log-level", "warning", "Log level: debug, info, warning or error")
	flags.String("log-format", "text", "Log format: text or json")
	o.bind(flags, map[string]string{
		"resources.formulas":    "formulas",
		"resources.variables":   "variables",
		"resources.assumptions": "assumptions",
		"log.level":             "log-level",
		"log.format":            "log-format",
	})
	o.v.SetDefault("mcp.mode", "stdio")
	o.v.SetDefault("mcp.address", ":8080")
	o.v.SetDefault("metrics.address", "")

	cmd.AddCommand(
		newSolveCommand(o),
		newBalanceCommand(o),
		newConvertCommand(o),
		newVariablesCommand(o),
		newAssumptionsCommand(o),
		newMCPCommand(o),
	)
	return cmd
}

// bind ties viper keys to flags.
func (o *rootOptions) bind(flags *pflag.FlagSet, keys map[string]string) {
	for key, flag := range keys {
		if err := o.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func (o *rootOptions) complete() error {
	v := o.v
	v.SetEnvPrefix("STOICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if o.configFile != "" {
		v.SetConfigFile(o.configFile)
	} else {
		v.SetConfigName("stoich")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/stoich")
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if o.configFile != "" || !errors.As(err, &notFound) {
			return errors.Wrap(err, "read config")
		}
	}
	if err := v.Unmarshal(&o.cfg); err != nil {
		return errors.Wrap(err, "decode config")
	}

	if err := configureLogger(o.log, o.cfg.Log.Level, o.cfg.Log.Format); err != nil {
		return err
	}
	if used := v.ConfigFileUsed(); used != "" {
		o.log.WithField("config", used).Debug("Loaded config file")
	}

	b, err := bank.Load(o.cfg.Resources.Formulas, o.cfg.Resources.Variables)
	if err != nil {
		return errors.WithMessage(err, "load formula bank")
	}
	o.bank = b
	o.log.WithFields(logrus.Fields{
		"formulas":  len(b.Formulas),
		"variables": b.Registry.Len(),
	}).Debug("Loaded formula bank")
	return nil
}

func configureLogger(l *logrus.Logger, level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "log level %q", level)
	}
	l.SetLevel(lvl)
	// stdout carries results and the MCP stdio transport.
	l.SetOutput(os.Stderr)
	switch format {
	case "text", "":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return errors.Errorf("unsupported log format: %s", format)
	}
	return nil
}

func (o *rootOptions) newSolver(opts ...solver.Option) *solver.Solver {
	opts = append([]solver.Option{solver.WithLogger(o.log)}, opts...)
	if o.cfg.Resources.Assumptions != "" {
		opts = append(opts, solver.WithAssumptionFile(o.cfg.Resources.Assumptions))
	}
	return solver.New(equation.New(o.bank, equation.WithLogger(o.log)), opts...)
}

func (o *rootOptions) assumptions() ([]*bank.Assumption, error) {
	if o.cfg.Resources.Assumptions != "" {
		return bank.LoadAssumptions(o.cfg.Resources.Assumptions)
	}
	return bank.DefaultAssumptions()
}
