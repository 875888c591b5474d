package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/ormsql/internal/dialect"
	"github.com/roach88/ormsql/internal/queryir"
	"github.com/roach88/ormsql/internal/querysql"
	"github.com/roach88/ormsql/internal/sqlcheck"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Check bool // parse the compiled MySQL with the TiDB parser
	GenID bool // fill a missing insert id with a UUIDv7
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <query-file|->",
		Short: "Compile a query document to SQL",
		Long: `Compile a YAML or JSON query document to one SQL statement.

The entity metadata comes from --schema (or the schema setting). Use -
to read the document from standard input.

Examples:
  ormsql compile query.yaml --schema ./schema
  ormsql compile insert.yaml --schema ./schema --gen-id --dialect sqlite
  ormsql compile query.yaml --schema ./schema --check --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Check, "check", false, "parse the compiled statement with the MySQL parser")
	cmd.Flags().BoolVar(&opts.GenID, "gen-id", false, "generate a UUIDv7 id for inserts without one")

	return cmd
}

func runCompile(opts *CompileOptions, queryPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	settings, err := opts.Settings()
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	if settings.Schema == "" {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, "no schema directory: pass --schema or set schema in ormsql.yaml", nil)
	}
	if opts.Check && settings.Dialect.Name != dialect.NameMySQL {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "--check needs the mysql dialect", nil)
	}

	reg, err := LoadRegistry(settings.Schema)
	if err != nil {
		return failLoad(formatter, err)
	}
	formatter.VerboseLog("Loaded %d entities from %s", len(reg.Entities()), settings.Schema)

	data, err := readQuery(queryPath, cmd.InOrStdin())
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}
	q, err := queryir.DecodeQuery(data)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeQueryDecode, err.Error(), nil)
	}
	if opts.GenID {
		q = queryir.EnsureID(q, queryir.UUIDv7Generator{})
	}

	c := querysql.New(reg, settings.Dialect,
		querysql.WithLogger(opts.Logger()),
		querysql.WithMaxDepth(settings.MaxDepth),
	)
	st, err := c.Compile(q)
	if err != nil {
		return formatter.failCompile(err)
	}

	fingerprint, err := st.Fingerprint(settings.Dialect)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	result := &CompilationResult{
		SQL:         st.SQL,
		Aliases:     st.Aliases,
		Fingerprint: fingerprint,
		Dialect:     string(settings.Dialect.Name),
	}

	if opts.Check {
		checked, err := sqlcheck.Check(st.SQL)
		if err != nil {
			return formatter.fail(ExitFailure, ErrCodeCheckFailed, err.Error(), map[string]string{"sql": st.SQL})
		}
		result.Check = checked
	}

	return formatter.Compiled(result)
}

// readQuery reads the query document from path, or from stdin for "-".
func readQuery(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("query file not found: %s", path)
	}
	return data, err
}

// failLoad reports a schema load error.
func failLoad(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return formatter.fail(ExitCommandError, loadErr.Code, loadErr.Message, nil)
	}
	return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}
