package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	props "github.com/goliatone/go-props"
)

// app carries state shared by every subcommand of one invocation.
type app struct {
	out    io.Writer
	errOut io.Writer

	v          *viper.Viper
	cfg        config
	logger     *slog.Logger
	configFile string
	jsonOutput bool
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut, v: viper.New()}

	root := &cobra.Command{
		Use:           "propctl",
		Short:         "Inspect property schemas and resolve layered values",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(a.v, a.configFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			level := slog.LevelInfo
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level}))
			a.logger.Debug("config loaded",
				"plans", cfg.PlanCapacity,
				"programs", cfg.ProgramCapacity,
				"file", a.v.ConfigFileUsed())
			return nil
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default: ./propctl.yaml or ~/.config/propctl/propctl.yaml)")
	flags.BoolVar(&a.jsonOutput, "json", false, "output as JSON")
	flags.BoolP("verbose", "v", false, "log debug events to stderr")
	flags.Int("plan-capacity", props.DefaultPlanCapacity, "search plan cache size")
	flags.Int("program-capacity", props.DefaultProgramCapacity, "compiled expression cache size")
	_ = a.v.BindPFlag(cfgKeyVerbose, flags.Lookup("verbose"))
	_ = a.v.BindPFlag(cfgKeyPlanCapacity, flags.Lookup("plan-capacity"))
	_ = a.v.BindPFlag(cfgKeyProgramCapacity, flags.Lookup("program-capacity"))

	root.AddCommand(
		newDescribeCmd(a),
		newResolveCmd(a),
		newFlattenCmd(a),
		newStatsCmd(a),
	)
	return root
}
