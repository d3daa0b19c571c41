package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/vcslog/internal/config"
	"github.com/therealutkarshpriyadarshi/vcslog/internal/env"
	"github.com/therealutkarshpriyadarshi/vcslog/internal/logging"
)

// rootOptions holds the persistent flags shared by every subcommand
type rootOptions struct {
	home       string
	configFile string
	logLevel   string
	logFormat  string
}

// runtime is what a subcommand needs once flags and config are resolved
type runtime struct {
	env    *env.Environment
	cfg    *config.Config
	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "vcslog",
		Short: "Tabulate vcslog wrapper logs",
		Long: `vcslog reads the per-invocation log files written by the vcslog
wrapper scripts and emits one table row per recorded command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.home, "home", "", "vcslog home directory (default $VCSLOG_HOME or ~/.vcslog)")
	flags.StringVar(&opts.configFile, "config", "", "Path to configuration file (default <home>/config.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format: console or json")

	cmd.AddCommand(
		newDumpCmd(opts),
		newFollowCmd(opts),
		newPathCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// setup resolves the home directory, loads configuration and builds the
// logger. Diagnostics go to the command's stderr.
func (o *rootOptions) setup(cmd *cobra.Command) (*runtime, error) {
	environment, err := o.environment()
	if err != nil {
		return nil, err
	}

	var cfg *config.Config
	if o.configFile != "" {
		cfg, err = config.Load(o.configFile)
	} else {
		cfg, err = config.LoadOptional(filepath.Join(environment.Basedir(), "config.yaml"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	logging.SetGlobal(logger)

	return &runtime{env: environment, cfg: cfg, logger: logger}, nil
}

func (o *rootOptions) environment() (*env.Environment, error) {
	if o.home != "" {
		return env.New(o.home), nil
	}
	return env.FromEnv()
}
