package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/roach88/ormsql/internal/queryir"
	"github.com/roach88/ormsql/internal/sqlcheck"
)

// Exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // scenarios failed, schema invalid, --check rejected the SQL
	ExitCommandError = 2 // bad paths or settings, undecodable or uncompilable query
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError caused by err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps err to an exit code: 0 for nil, the carried code for
// an ExitError anywhere in the chain, 1 otherwise.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Status marks for text output. fatih/color disables itself when the
// writer is not a terminal, so piped output stays plain.
var (
	passMark = color.New(color.FgGreen, color.Bold).Sprint("✓")
	failMark = color.New(color.FgRed, color.Bold).Sprint("✗")
	warnMark = color.New(color.FgYellow).Sprint("!")
	codeText = color.New(color.FgRed).SprintFunc()
)

// CLIResponse is the envelope of every JSON document the CLI prints.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error part of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// CompilationResult is the JSON payload of a compiled query.
type CompilationResult struct {
	SQL         string           `json:"sql"`
	Aliases     []string         `json:"aliases"`
	Fingerprint string           `json:"fingerprint"`
	Dialect     string           `json:"dialect"`
	Check       *sqlcheck.Result `json:"check,omitempty"`
}

// OutputFormatter writes command results as text or as CLIResponse JSON.
// Verbose diagnostics go to ErrWriter so they never mix with JSON.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

func (f *OutputFormatter) isJSON() bool {
	return f.Format == "json"
}

func (f *OutputFormatter) encode(resp CLIResponse, indent bool) error {
	enc := json.NewEncoder(f.Writer)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(resp)
}

// Success writes data as an ok response, or prints it in text mode.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return f.encode(CLIResponse{Status: "ok", Data: data}, false)
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error writes an error response, or an "Error [code]" line in text mode.
// Details are printed in text mode only when verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		}, false)
	}
	fmt.Fprintf(f.Writer, "%s Error [%s]: %s\n", failMark, codeText(code), message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Report writes an indented JSON report of a validation or scenario run.
// A non-nil failure marks the response as an error while keeping data.
func (f *OutputFormatter) Report(data any, failure *CLIError) error {
	resp := CLIResponse{Status: "ok", Data: data}
	if failure != nil {
		resp.Status = "error"
		resp.Error = failure
	}
	return f.encode(resp, true)
}

// Compiled writes a compiled statement. Text mode prints the SQL alone
// and sends aliases, fingerprint and the --check outcome to the verbose
// log.
func (f *OutputFormatter) Compiled(result *CompilationResult) error {
	if result.Aliases == nil {
		result.Aliases = []string{}
	}
	if f.isJSON() {
		return f.Success(result)
	}

	fmt.Fprintln(f.Writer, result.SQL)
	f.VerboseLog("dialect: %s", result.Dialect)
	if len(result.Aliases) > 0 {
		f.VerboseLog("aliases: %s", strings.Join(result.Aliases, ", "))
	}
	f.VerboseLog("fingerprint: %s", result.Fingerprint)
	if result.Check != nil {
		f.VerboseLog("%s parsed as %s on %s", passMark, result.Check.Kind, strings.Join(result.Check.Tables, ", "))
	}
	return nil
}

// VerboseLog prints a diagnostic line when verbose.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter, or Writer when unset.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// fail reports an error through the formatter and returns it as an ExitError.
func (f *OutputFormatter) fail(exitCode int, code, message string, details any) error {
	_ = f.Error(code, message, details)
	return NewExitError(exitCode, code+": "+message)
}

// failCompile reports a query the compiler rejected. The error kind goes
// into the details so scripts can branch on it.
func (f *OutputFormatter) failCompile(err error) error {
	var details any
	if kind, ok := queryir.KindOf(err); ok {
		details = map[string]string{"kind": string(kind)}
	}
	return f.fail(ExitCommandError, ErrCodeQueryCompile, err.Error(), details)
}
