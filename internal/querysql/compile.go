package querysql

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/ormsql/internal/dialect"
	"github.com/roach88/ormsql/internal/expr"
	"github.com/roach88/ormsql/internal/ir"
	"github.com/roach88/ormsql/internal/queryir"
	"github.com/roach88/ormsql/internal/schema"
)

// Defaults for the compiler options.
const (
	DefaultMaxDepth           = expr.DefaultMaxDepth
	DefaultFiscalYearShift    = 5
	DefaultFiscalQuarterShift = 4
)

// Compiler turns queryir queries into SQL text for one dialect.
//
// Every value is inlined as an escaped literal. The compiler holds no
// per-query state: each call takes a registry snapshot from its source
// and works on a fresh compilation, so one Compiler is safe for
// concurrent use.
type Compiler struct {
	source  schema.Source
	dialect *dialect.Dialect
	logger  *slog.Logger

	maxDepth           int
	fiscalYearShift    int
	fiscalQuarterShift int
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger for compile diagnostics. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxDepth bounds filter, subquery and expression nesting.
func WithMaxDepth(n int) Option {
	return func(c *Compiler) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

// WithFiscalYearShift sets the month shift YEAR_FISCAL expands to.
func WithFiscalYearShift(n int) Option {
	return func(c *Compiler) { c.fiscalYearShift = n }
}

// WithFiscalQuarterShift sets the month shift QUARTER_FISCAL expands to.
func WithFiscalQuarterShift(n int) Option {
	return func(c *Compiler) { c.fiscalQuarterShift = n }
}

// New creates a Compiler for dialect d over the metadata supplied by source.
func New(source schema.Source, d *dialect.Dialect, opts ...Option) *Compiler {
	c := &Compiler{
		source:             source,
		dialect:            d,
		logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxDepth:           DefaultMaxDepth,
		fiscalYearShift:    DefaultFiscalYearShift,
		fiscalQuarterShift: DefaultFiscalQuarterShift,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dialect returns the target dialect.
func (c *Compiler) Dialect() *dialect.Dialect {
	return c.dialect
}

// Statement is one compiled SQL statement.
type Statement struct {
	SQL string

	// Aliases lists the aliases the compiler introduced on its own: joins
	// implied by foreign attributes, or the table a relation change touches.
	Aliases []string
}

// Fingerprint returns the stable identity of the statement for dialect d.
func (s *Statement) Fingerprint(d *dialect.Dialect) (string, error) {
	return ir.StatementFingerprint(string(d.Name), s.SQL, s.Aliases)
}

// Compile validates q and compiles it to SQL.
//
// Errors are *queryir.CompileError; no SQL is returned alongside one.
func (c *Compiler) Compile(q queryir.Query) (*Statement, error) {
	switch query := q.(type) {
	case queryir.Select:
		return c.CompileSelect(&query)
	case *queryir.Select:
		return c.CompileSelect(query)
	case queryir.SelectRelated:
		return c.CompileSelectRelated(&query)
	case *queryir.SelectRelated:
		return c.CompileSelectRelated(query)
	case queryir.Insert:
		return c.CompileInsert(&query)
	case *queryir.Insert:
		return c.CompileInsert(query)
	case queryir.Update:
		return c.CompileUpdate(&query)
	case *queryir.Update:
		return c.CompileUpdate(query)
	case queryir.Delete:
		return c.CompileDelete(&query)
	case *queryir.Delete:
		return c.CompileDelete(query)
	case queryir.RelationChange:
		return c.CompileRelationChange(&query)
	case *queryir.RelationChange:
		return c.CompileRelationChange(query)
	case nil:
		return nil, queryir.Errorf(queryir.KindInvalidQuery, "", "nil query")
	default:
		return nil, queryir.Errorf(queryir.KindInvalidQuery, "", "unsupported query type %T", q)
	}
}

// CompileExpression compiles expression text in the context of entityType.
// Joins the expression would imply are not emitted.
func (c *Compiler) CompileExpression(entityType, text string) (string, error) {
	cc, sc, err := c.begin(entityType)
	if err != nil {
		return "", err
	}
	return cc.expression(text, sc)
}

// CompileWhere compiles a filter into a conjunction in the context of
// entityType, without the soft-delete predicate. An empty filter yields "".
func (c *Compiler) CompileWhere(entityType string, f queryir.Filter) (string, error) {
	cc, sc, err := c.begin(entityType)
	if err != nil {
		return "", err
	}
	parts, err := cc.filter(f, sc)
	if err != nil {
		return "", err
	}
	return joinAnd(parts), nil
}

// AttributesOf returns the attribute paths an expression references.
func (c *Compiler) AttributesOf(text string) ([]string, error) {
	e, err := expr.ParseWithLimit(text, c.maxDepth)
	if err != nil {
		return nil, err
	}
	return expr.Attributes(e), nil
}

func (c *Compiler) begin(entityType string) (*compilation, scope, error) {
	cc := c.newCompilation()
	e, err := cc.entity(entityType)
	if err != nil {
		return nil, scope{}, err
	}
	return cc, cc.mainScope(e), nil
}

func (c *Compiler) newCompilation() *compilation {
	return &compilation{
		c:   c,
		reg: c.source.Snapshot(),
		d:   c.dialect,
	}
}

func (c *Compiler) logStatement(kind, entity string, joins int, st *Statement) {
	c.logger.Debug("compiled statement",
		"kind", kind,
		"entity", entity,
		"joins", joins,
		"aliases", len(st.Aliases),
		"bytes", len(st.SQL))
}

// compilation is the state of one Compile call. Nested subqueries get
// their own compilation sharing the registry snapshot and the depth.
type compilation struct {
	c     *Compiler
	reg   *schema.Registry
	d     *dialect.Dialect
	depth int

	// implied holds the belongs-to relations foreign attributes pulled in,
	// in first-use order.
	implied     []*schema.Relation
	impliedSeen map[string]bool
	explicit    map[string]bool

	// known holds the aliases a dotted attribute path may be qualified
	// with. Subqueries inherit the aliases of the statements around them.
	known map[string]bool

	// sel is the select being compiled, for NOT subqueries.
	sel *queryir.Select

	// aliases and joins feed Statement.Aliases and the debug log.
	aliases []string
	joins   int
}

// sub returns a compilation for a nested statement one level deeper.
func (cc *compilation) sub(path string) (*compilation, error) {
	child := &compilation{c: cc.c, reg: cc.reg, d: cc.d, depth: cc.depth}
	for a := range cc.known {
		child.declare(a)
	}
	if err := child.enter(path); err != nil {
		return nil, err
	}
	return child, nil
}

func (cc *compilation) enter(path string) error {
	cc.depth++
	if cc.depth > cc.c.maxDepth {
		return queryir.Errorf(queryir.KindTooDeep, path, "query nests deeper than %d", cc.c.maxDepth)
	}
	return nil
}

func (cc *compilation) leave() {
	cc.depth--
}

func (cc *compilation) entity(name string) (*schema.Entity, error) {
	e, ok := cc.reg.Entity(name)
	if !ok {
		return nil, queryir.Errorf(queryir.KindInvalidQuery, name, "unknown entity type %q", name)
	}
	return e, nil
}

func (cc *compilation) quote(s string) string {
	return cc.d.QuoteLiteral(s)
}

func (cc *compilation) ident(s string) string {
	return cc.d.QuoteIdent(s)
}

// from renders a table reference, adding AS only when the alias differs.
func (cc *compilation) from(table, alias string) string {
	if table == alias || alias == "" {
		return cc.ident(table)
	}
	return fmt.Sprintf("%s AS %s", cc.ident(table), cc.ident(alias))
}

// softDelete returns "<alias>.deleted = '0'", or "" when the entity has no
// deleted attribute.
func (cc *compilation) softDelete(e *schema.Entity, alias string) string {
	if e == nil {
		return ""
	}
	a, ok := e.Attribute("deleted")
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s.%s = %s", alias, a.Column, cc.quote("0"))
}
