package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ormsql/internal/store"
)

// DDLResult is the JSON payload of the ddl command.
type DDLResult struct {
	Statements []string `json:"statements"`
	SchemaHash string   `json:"schema_hash"`
}

// NewDDLCommand creates the ddl command.
func NewDDLCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Print the sandbox SQLite schema",
		Long: `Print the SQLite CREATE TABLE statements the test sandbox uses for
the entity metadata in --schema: one table per entity and one per
many-to-many junction.

Examples:
  ormsql ddl --schema ./schema
  ormsql ddl --schema ./schema --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDDL(rootOpts, cmd)
		},
	}

	return cmd
}

func runDDL(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	settings, err := opts.Settings()
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	if settings.Schema == "" {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, "no schema directory: pass --schema or set schema in ormsql.yaml", nil)
	}

	reg, err := LoadRegistry(settings.Schema)
	if err != nil {
		return failLoad(formatter, err)
	}

	if formatter.Format == "json" {
		hash, err := reg.Hash()
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		return formatter.Success(DDLResult{
			Statements: store.DDL(reg),
			SchemaHash: hash,
		})
	}

	fmt.Fprint(formatter.Writer, store.Script(reg))
	return nil
}
