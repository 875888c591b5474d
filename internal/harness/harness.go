package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/ormsql/internal/dialect"
	"github.com/roach88/ormsql/internal/ir"
	"github.com/roach88/ormsql/internal/queryir"
	"github.com/roach88/ormsql/internal/querysql"
	"github.com/roach88/ormsql/internal/schema"
	"github.com/roach88/ormsql/internal/sqlcheck"
	"github.com/roach88/ormsql/internal/store"
	"github.com/roach88/ormsql/internal/testutil"
)

// Harness is the scenario execution engine.
type Harness struct {
	store  *store.Store
	target *querysql.Compiler
	logger *slog.Logger
}

// Option configures a scenario run.
type Option func(*Harness)

// WithLogger sets the logger for step diagnostics. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// Run executes a test scenario against reg and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. The n-th
// fixture row of an entity that lacks an id gets fixture-<table>-<n>.
//
// Execution flow:
// 1. Create fresh in-memory sandbox from reg
// 2. Seed fixtures
// 3. Compile, check and execute each step
// 4. Evaluate assertions
// 5. Return result with pass/fail, trace, and errors
//
// Run returns an error only when the scenario cannot be executed at all;
// failed expectations are reported in the Result.
func Run(scenario *Scenario, reg *schema.Registry, opts ...Option) (*Result, error) {
	h := &Harness{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	for _, opt := range opts {
		opt(h)
	}

	st, err := store.Open(":memory:", reg, store.WithLogger(h.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	h.store = st

	d := dialect.MySQL
	if scenario.Dialect != "" {
		d = dialect.Get(scenario.Dialect)
		if d == nil {
			return nil, fmt.Errorf("unknown dialect %q", scenario.Dialect)
		}
	}
	h.target = querysql.New(reg, d, querysql.WithLogger(h.logger))

	ctx := context.Background()
	if err := h.seed(ctx, scenario.Fixtures); err != nil {
		return nil, fmt.Errorf("failed to seed fixtures: %w", err)
	}

	result := NewResult()
	for _, step := range scenario.Steps {
		if err := h.executeStep(ctx, step, result); err != nil {
			return nil, fmt.Errorf("step %s: %w", step.Name, err)
		}
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// seed inserts fixtures entity by entity, in name order.
func (h *Harness) seed(ctx context.Context, fixtures map[string][]map[string]any) error {
	entities := make([]string, 0, len(fixtures))
	for e := range fixtures {
		entities = append(entities, e)
	}
	sort.Strings(entities)

	for _, entity := range entities {
		rows := make([]ir.IRObject, len(fixtures[entity]))
		for i, raw := range fixtures[entity] {
			obj, err := toIRObject(raw)
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", entity, i, err)
			}
			rows[i] = obj
		}

		ids := make([]string, len(rows))
		for i := range ids {
			ids[i] = fmt.Sprintf("fixture-%s-%d", schema.Table(entity), i+1)
		}
		if err := h.store.Seed(ctx, entity, rows, testutil.NewFixedIDGenerator(ids...)); err != nil {
			return err
		}
		h.logger.Debug("seeded fixtures", "entity", entity, "rows", len(rows))
	}
	return nil
}

// executeStep compiles one step for the target dialect, compares it with
// the expect clause, and runs its SQLite rendition in the sandbox.
//
// Mismatches are recorded on result; the returned error is reserved for
// steps that cannot be decoded.
func (h *Harness) executeStep(ctx context.Context, step Step, result *Result) error {
	q, err := queryir.DecodeQueryNode(&step.Query)
	if err != nil {
		return err
	}
	kind, entity := describe(q)
	event := TraceEvent{Type: EventStatement, Step: step.Name, Kind: kind, Entity: entity}
	expect := step.Expect
	if expect == nil {
		expect = &ExpectClause{}
	}

	st, err := h.target.Compile(q)
	if err != nil {
		errKind, _ := queryir.KindOf(err)
		event.Type = EventError
		event.Error = string(errKind)
		result.addEvent(event)

		switch {
		case expect.Error == "":
			result.AddError(fmt.Sprintf("step %s: unexpected compile error: %v", step.Name, err))
		case expect.Error != string(errKind):
			result.AddError(fmt.Sprintf("step %s: expected %s error, got %v", step.Name, expect.Error, err))
		}
		return nil
	}
	if expect.Error != "" {
		result.AddError(fmt.Sprintf("step %s: expected %s error, compiled %s", step.Name, expect.Error, st.SQL))
	}

	event.SQL = st.SQL
	event.Aliases = st.Aliases
	h.compare(step.Name, expect, st, result)

	if step.CompileOnly || expect.Error != "" {
		result.addEvent(event)
		return nil
	}

	sandbox, err := h.store.Compiler().Compile(q)
	if err != nil {
		result.addEvent(event)
		result.AddError(fmt.Sprintf("step %s: sqlite compile failed (mark the step compileOnly): %v", step.Name, err))
		return nil
	}

	if kind == queryir.DocSelect || kind == queryir.DocRelated {
		rows, err := h.store.Query(ctx, sandbox.SQL)
		if err != nil {
			result.addEvent(event)
			result.AddError(fmt.Sprintf("step %s: sandbox query failed: %v\n  SQL: %s", step.Name, err, sandbox.SQL))
			return nil
		}
		n := len(rows)
		event.Rows = &n
		if expect.Rows != nil {
			if msg := compareRows(expect.Rows, rows); msg != "" {
				result.AddError(fmt.Sprintf("step %s: %s", step.Name, msg))
			}
		}
	} else {
		affected, err := h.store.Exec(ctx, sandbox.SQL)
		if err != nil {
			result.addEvent(event)
			result.AddError(fmt.Sprintf("step %s: sandbox exec failed: %v\n  SQL: %s", step.Name, err, sandbox.SQL))
			return nil
		}
		event.Affected = &affected
		if expect.Affected != nil && *expect.Affected != affected {
			result.AddError(fmt.Sprintf("step %s: expected %d affected rows, got %d", step.Name, *expect.Affected, affected))
		}
	}

	result.addEvent(event)
	h.logger.Info("step completed", "step", step.Name, "kind", kind, "entity", entity)
	return nil
}

// compare checks the target-dialect statement against sql, aliases and check.
func (h *Harness) compare(name string, expect *ExpectClause, st *querysql.Statement, result *Result) {
	if want := strings.TrimSpace(expect.SQL); want != "" && want != st.SQL {
		result.AddError(fmt.Sprintf("step %s: SQL mismatch\n  Expected: %s\n  Actual:   %s", name, want, st.SQL))
	}
	if expect.Aliases != nil && !equalStrings(expect.Aliases, st.Aliases) {
		result.AddError(fmt.Sprintf("step %s: expected aliases %v, got %v", name, expect.Aliases, st.Aliases))
	}
	if expect.Check {
		if _, err := sqlcheck.Check(st.SQL); err != nil {
			result.AddError(fmt.Sprintf("step %s: %v", name, err))
		}
	}
}

// describe returns the document kind and entity type of q.
func describe(q queryir.Query) (string, string) {
	switch v := q.(type) {
	case *queryir.Select:
		return queryir.DocSelect, v.EntityType
	case *queryir.SelectRelated:
		return queryir.DocRelated, v.EntityType
	case *queryir.Insert:
		return queryir.DocInsert, v.EntityType
	case *queryir.Update:
		return queryir.DocUpdate, v.EntityType
	case *queryir.Delete:
		return queryir.DocDelete, v.EntityType
	case *queryir.RelationChange:
		return queryir.DocRelation, v.EntityType
	default:
		return fmt.Sprintf("%T", q), ""
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// toIRObject converts a YAML-parsed map to ir.IRObject.
func toIRObject(m map[string]any) (ir.IRObject, error) {
	obj := make(ir.IRObject, len(m))
	for key, val := range m {
		v, err := ir.FromGo(val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		obj[key] = v
	}
	return obj, nil
}
