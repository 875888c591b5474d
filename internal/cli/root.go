package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	config *viper.Viper
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the ormsql CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{config: newConfig()}

	cmd := &cobra.Command{
		Use:   "ormsql",
		Short: "ormsql - entity queries to SQL",
		Long: `Compile entity-level query documents to MySQL or SQLite statements.

Entity metadata is declared in CUE; queries are YAML or JSON documents.
Settings are read from ormsql.yaml in the working directory, from
ORMSQL_* environment variables and from flags, in increasing priority.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.init(cmd); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigFile, "config", "", "settings file (default ./ormsql.yaml)")
	flags.String("schema", "", "directory of CUE entity metadata")
	flags.String("dialect", "", "target dialect (mysql|sqlite)")
	flags.Int("max-depth", 0, "maximum function nesting depth")
	bindFlags(opts.config, flags)

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewDDLCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// init validates global flags, reads settings and builds the logger.
func (o *RootOptions) init(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", o.Format, ValidFormats)
	}
	if o.config == nil {
		o.config = newConfig()
	}
	if err := readConfig(o.config, o.ConfigFile); err != nil {
		return err
	}
	if _, err := o.Settings(); err != nil {
		return err
	}

	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

// Logger returns the command logger; a discard logger before init runs.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.logger
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
