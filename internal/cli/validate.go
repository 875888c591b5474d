package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ormsql/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Entities []string                   `json:"entities"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.ValidationError `json:"warnings,omitempty"`
	Cycles   []compiler.CycleWarning    `json:"cycles,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [schema-dir]",
		Short: "Validate entity metadata",
		Long: `Validate CUE entity metadata without compiling any query.

Reports every declaration error, then checks references between entities.
Entities without a deleted attribute and cycles among belongs-to
relations are reported as warnings.

The directory defaults to the schema setting.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, schemaDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if schemaDir == "" {
		settings, err := opts.Settings()
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		schemaDir = settings.Schema
	}
	if schemaDir == "" {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, "no schema directory: pass one or set schema in ormsql.yaml", nil)
	}

	loadResult, loadErrors := LoadSchema(schemaDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		return failLoad(formatter, loadErrors[0])
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, schemaDir)

	result := validateAll(loadResult, loadErrors, formatter)
	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// validateAll merges load errors with schema validation, then collects
// warnings for a schema that validated.
func validateAll(loadResult *LoadResult, loadErrors []error, formatter *OutputFormatter) *ValidationResult {
	result := &ValidationResult{Entities: []string{}}

	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			result.Errors = append(result.Errors, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    lineOf(loadErr),
			})
			continue
		}
		result.Errors = append(result.Errors, compiler.ValidationError{
			Field:   "load",
			Message: err.Error(),
			Code:    ErrCodeGeneric,
		})
	}

	for _, spec := range loadResult.Entities {
		formatter.VerboseLog("Validating entity: %s", spec.Name)
		result.Entities = append(result.Entities, spec.Name)
	}

	// Cross-entity checks are meaningless while some entities failed to load.
	if len(result.Errors) == 0 {
		result.Errors = append(result.Errors, compiler.Validate(loadResult.Entities)...)
	}

	result.Valid = len(result.Errors) == 0
	if result.Valid {
		result.Warnings = compiler.SoftDeleteWarnings(loadResult.Entities)
		result.Cycles = compiler.AnalyzeCycles(loadResult.Entities)
	}
	return result
}

// lineOf extracts line number from a load error position.
func lineOf(e *LoadError) int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result *ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "%s Schema valid: %d entities (%s)\n",
		passMark, len(result.Entities), strings.Join(result.Entities, ", "))
	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "%s %s: %s: %s\n", warnMark, w.Code, w.Field, w.Message)
	}
	for _, c := range result.Cycles {
		fmt.Fprintf(formatter.Writer, "%s %s: %s\n", warnMark, c.Level, c.Message)
	}
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, result *ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		if err := formatter.Report(result, &CLIError{Code: errs[0].Code, Message: errs[0].Message}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintf(formatter.Writer, "%s Validation failed\n\n", failMark)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "  %s (line %d): %s\n", codeText(err.Code), err.Line, err.Message)
			continue
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", codeText(err.Code), err.Field, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
