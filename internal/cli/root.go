package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	ConfigDir string
	NoColor   bool

	// Config and Logger are set by the root command before a subcommand
	// runs. Commands built on their own (tests) fall back to defaults.
	Config *Config
	Logger *slog.Logger

	closeLog func() error
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the turingloom CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "turingloom",
		Short: "turingloom - a multi-tape Turing machine workbench",
		Long: `A workbench for multi-tape Turing machines.

Load rule documents (JSON, YAML or CUE), run or step them, record runs
in SQLite, and check machines against scenario files.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.closeLog != nil {
				return opts.closeLog()
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config-dir", "", "configuration directory (default: $TURINGLOOM_CONFIG_DIR or the user config dir)")

	// Add subcommands
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewStepCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewSaveCommand(opts))
	cmd.AddCommand(NewProgramsCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewLangCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// setup loads the configuration and builds the logger.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	dir, err := ResolveConfigDir(o.ConfigDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to resolve config dir", err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	o.Config = cfg

	logger, closeLog, err := NewLogger(cmd.ErrOrStderr(), o.Verbose, cfg.LogFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open log file", err)
	}
	o.Logger = logger
	o.closeLog = closeLog

	logger.Debug("config loaded", "dir", dir, "db", cfg.DB, "speed", cfg.Speed)
	return nil
}

// config returns the loaded configuration or the defaults.
func (o *RootOptions) config() *Config {
	if o.Config == nil {
		return DefaultConfig("")
	}
	return o.Config
}

// logger returns the configured logger or slog.Default().
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// color reports whether text output should be styled.
func (o *RootOptions) color() bool {
	return !o.NoColor && o.Format != "json"
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
