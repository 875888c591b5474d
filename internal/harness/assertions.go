package harness

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/ormsql/internal/ir"
	"github.com/roach88/ormsql/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			if event.Type == EventStatement {
				fmt.Fprintf(&buf, "  [%d] %s %s: %s\n", event.Seq, event.Kind, event.Entity, event.SQL)
			} else {
				fmt.Fprintf(&buf, "  [%d] %s %s: %s\n", event.Seq, event.Kind, event.Entity, event.Error)
			}
		}
	}

	return buf.String()
}

// assertTraceContains checks that some statement of the given kind (and
// entity, when set) contains the expected SQL fragment.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Type != EventStatement || event.Kind != a.Kind {
			continue
		}
		if a.Entity != "" && event.Entity != a.Entity {
			continue
		}
		if strings.Contains(event.SQL, a.Contains) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s statement on %s containing %q", a.Kind, orAny(a.Entity), a.Contains),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceCount checks that exactly Count statements of Kind compiled.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventStatement && event.Kind == a.Kind {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s statements", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d statements", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks that exactly one row of the table matches Where
// and that it holds the expected values (subset semantics).
func assertFinalState(ctx context.Context, st *store.Store, a Assertion) error {
	matched, err := matchingRows(ctx, st, a)
	if err != nil {
		return err
	}

	whereDesc := formatWhereClause(a.Where)
	switch len(matched) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", a.Table, whereDesc),
			Actual:   "row not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", a.Table, whereDesc),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	row := matched[0]
	for _, key := range sortedKeys(a.Expect) {
		actual, exists := row[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("column %q to exist", key),
				Actual:   fmt.Sprintf("columns: %v", row.SortedKeys()),
			}
		}
		if !stateValuesEqual(a.Expect[key], actual) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("column %q = %v", key, a.Expect[key]),
				Actual:   fmt.Sprintf("column %q = %s", key, describeValue(actual)),
			}
		}
	}
	return nil
}

// assertRowCount checks how many rows of the table match Where.
func assertRowCount(ctx context.Context, st *store.Store, a Assertion) error {
	matched, err := matchingRows(ctx, st, a)
	if err != nil {
		return err
	}
	if len(matched) != a.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows in %s where %s", a.Count, a.Table, formatWhereClause(a.Where)),
			Actual:   fmt.Sprintf("%d rows", len(matched)),
		}
	}
	return nil
}

// matchingRows dumps the table and keeps the rows matching Where.
//
// Table and column names are validated against a whitelist pattern; the
// table must also exist in the sandbox.
func matchingRows(ctx context.Context, st *store.Store, a Assertion) ([]ir.IRObject, error) {
	if !validIdentifier.MatchString(a.Table) {
		return nil, fmt.Errorf("invalid table name %q: must match pattern %s", a.Table, validIdentifier.String())
	}
	for key := range a.Where {
		if !validIdentifier.MatchString(key) {
			return nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
	}

	rows, err := st.Dump(ctx, a.Table)
	if err != nil {
		return nil, &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("query table %s", a.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	var matched []ir.IRObject
	for _, row := range rows {
		if rowMatches(row, a.Where) {
			matched = append(matched, row)
		}
	}
	return matched, nil
}

// rowMatches reports whether row holds every expected value (subset match).
func rowMatches(row ir.IRObject, expected map[string]any) bool {
	for key, want := range expected {
		got, ok := row[key]
		if !ok || !stateValuesEqual(want, got) {
			return false
		}
	}
	return true
}

// compareRows checks sandbox rows against the expected rows, in order.
// Returns "" on a match.
func compareRows(expected []map[string]any, actual []ir.IRObject) string {
	if len(expected) != len(actual) {
		return fmt.Sprintf("expected %d rows, got %d: %s", len(expected), len(actual), describeRows(actual))
	}
	for i := range expected {
		if !rowMatches(actual[i], expected[i]) {
			return fmt.Sprintf("row %d: expected %v, got %s", i, expected[i], describeValue(actual[i]))
		}
	}
	return ""
}

// stateValuesEqual compares an expected YAML value with a sandbox value.
//
// SQLite hands back TEXT for ids and INTEGER for flags, so values compare
// by their literal text: 1, "1" and true all equal an INTEGER 1.
func stateValuesEqual(expected any, actual ir.IRValue) bool {
	want, err := ir.FromGo(expected)
	if err != nil {
		return false
	}
	if ir.IsNull(want) || ir.IsNull(actual) {
		return ir.IsNull(want) && ir.IsNull(actual)
	}
	wantText, err := ir.Text(want)
	if err != nil {
		return false
	}
	gotText, err := ir.Text(actual)
	if err != nil {
		return false
	}
	return wantText == gotText
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func describeRows(rows []ir.IRObject) string {
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = describeValue(r)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func describeValue(v ir.IRValue) string {
	b, err := ir.MarshalIRValue(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func orAny(entity string) string {
	if entity == "" {
		return "any entity"
	}
	return entity
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState, AssertRowCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires database context", i, assertion.Type)
			} else if assertion.Type == AssertFinalState {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			} else {
				err = assertRowCount(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
