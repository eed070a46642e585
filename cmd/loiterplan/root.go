package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/loiter-planner/core"
	"github.com/signalsfoundry/loiter-planner/internal/config"
	"github.com/signalsfoundry/loiter-planner/internal/logging"
	"github.com/signalsfoundry/loiter-planner/internal/observability"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	logFile    string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "loiterplan",
		Short: "Energy-aware loiter surveillance mission planner",
		Long: `loiterplan places loiter orbits over a surveillance area, links them with
curvature-bounded transitions and flies the resulting mission in simulation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "YAML configuration file (defaults plus LOITER_* environment when empty)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level override: debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format override: text or json")
	pf.StringVar(&flags.logFile, "log-file", "", "also write logs to this rotated file")

	cmd.AddCommand(
		newPlanCmd(flags),
		newSimulateCmd(flags),
		newConfigCmd(flags),
	)
	return cmd
}

// runtime is what every subcommand needs once flags are parsed.
type runtime struct {
	cfg      config.Config
	log      logging.Logger
	shutdown func(context.Context)
	opts     []core.Option
}

// setup loads the configuration and brings up logging and tracing. Logs
// go to the command's error stream so reports on stdout stay clean.
func (f *rootFlags) setup(cmd *cobra.Command) (*runtime, error) {
	ctx := cmd.Context()
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	lc := cfg.Logging
	if f.logLevel != "" {
		lc.Level = f.logLevel
	}
	if f.logFormat != "" {
		lc.Format = f.logFormat
	}
	if f.logFile != "" {
		lc.File = f.logFile
	}
	log, closeLog := logging.New(logging.Config{
		Level:  lc.Level,
		Format: lc.Format,
		File:   lc.File,
		Output: cmd.ErrOrStderr(),
	})

	tp, shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	shutdown := func(ctx context.Context) {
		observability.ShutdownWithTimeout(ctx, shutdownTracing, log)
		_ = closeLog()
	}
	return &runtime{
		cfg:      cfg,
		log:      log,
		shutdown: shutdown,
		opts:     []core.Option{core.WithLogger(log), core.WithTracerProvider(tp)},
	}, nil
}
