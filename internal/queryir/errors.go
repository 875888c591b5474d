package queryir

import (
	"errors"
	"fmt"
)

// ErrorKind classifies compile failures.
type ErrorKind string

const (
	// KindSyntax indicates malformed expression text (unbalanced parens or quotes).
	KindSyntax ErrorKind = "SyntaxError"

	// KindUnknownAttribute indicates an attribute path that resolves to nothing.
	KindUnknownAttribute ErrorKind = "UnknownAttribute"

	// KindUnknownFunction indicates an unrecognized function name, or one
	// the target dialect cannot express.
	KindUnknownFunction ErrorKind = "UnknownFunction"

	// KindUnknownRelation indicates a join or relation change on an undefined relation.
	KindUnknownRelation ErrorKind = "UnknownRelation"

	// KindMalformedFilter indicates a structural key used with the wrong
	// value shape, e.g. OR given a scalar.
	KindMalformedFilter ErrorKind = "MalformedFilterSpec"

	// KindTooDeep indicates nesting past the configured depth bound.
	KindTooDeep ErrorKind = "TooDeeplyNested"

	// KindInvalidQuery indicates a query whose top-level fields are
	// inconsistent (missing entity type, negative limit, unknown action).
	KindInvalidQuery ErrorKind = "InvalidQuery"
)

// CompileError is the typed failure of every compile entry point.
//
// Compile errors are deterministic: the same input always fails the same
// way, so callers treat them as programming errors, never as transient.
// No SQL text is produced alongside a CompileError.
type CompileError struct {
	Kind    ErrorKind
	Message string
	Path    string // offending key, expression or attribute; may be empty
}

func (e *CompileError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (at %q)", e.Kind, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches sentinel errors of the same kind, so errors.Is(err, ErrSyntax)
// holds for every syntax error regardless of message.
func (e *CompileError) Is(target error) bool {
	t, ok := target.(*CompileError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Path == ""
}

// Sentinels for errors.Is.
var (
	ErrSyntax           = &CompileError{Kind: KindSyntax}
	ErrUnknownAttribute = &CompileError{Kind: KindUnknownAttribute}
	ErrUnknownFunction  = &CompileError{Kind: KindUnknownFunction}
	ErrUnknownRelation  = &CompileError{Kind: KindUnknownRelation}
	ErrMalformedFilter  = &CompileError{Kind: KindMalformedFilter}
	ErrTooDeep          = &CompileError{Kind: KindTooDeep}
	ErrInvalidQuery     = &CompileError{Kind: KindInvalidQuery}
)

// Errorf builds a CompileError.
func Errorf(kind ErrorKind, path, format string, args ...any) *CompileError {
	return &CompileError{Kind: kind, Message: fmt.Sprintf(format, args...), Path: path}
}

// KindOf returns the kind of the first CompileError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return "", false
}
