package querysql

import (
	"slices"
	"strings"

	"github.com/roach88/ormsql/internal/expr"
	"github.com/roach88/ormsql/internal/ir"
	"github.com/roach88/ormsql/internal/queryir"
	"github.com/roach88/ormsql/internal/schema"
)

// scope is what bare attribute names resolve against.
type scope struct {
	entity *schema.Entity // nil when alias names a plain table
	alias  string

	// joins lets foreign attributes register belongs-to joins.
	joins bool
	// main allows NOT groups, which re-select the scope entity.
	main bool
}

func (cc *compilation) mainScope(e *schema.Entity) scope {
	return scope{entity: e, alias: schema.Alias(e.Name), joins: true, main: true}
}

// rowScope is the scope of single-table statements (UPDATE, DELETE).
func (cc *compilation) rowScope(e *schema.Entity) scope {
	return scope{entity: e, alias: schema.Alias(e.Name)}
}

// declare records aliases dotted attribute paths may use.
func (cc *compilation) declare(aliases ...string) {
	if cc.known == nil {
		cc.known = map[string]bool{}
	}
	for _, a := range aliases {
		cc.known[a] = true
	}
}

// declareEntity declares e's alias and every alias its relations join
// under: the relation name, the junction alias and the junction table.
func (cc *compilation) declareEntity(e *schema.Entity, alias string) {
	cc.declare(alias)
	for _, rel := range e.Relations {
		cc.declare(rel.Name, rel.Name+"Middle")
		if rel.JunctionTable != "" {
			cc.declare(rel.JunctionTable)
		}
	}
}

// declareJoins declares the aliases joins plan under and returns the
// join aliases.
func (cc *compilation) declareJoins(joins []queryir.Join) []string {
	out := make([]string, len(joins))
	for i, j := range joins {
		out[i] = joinAlias(j)
		cc.declare(out[i], out[i]+"Middle")
	}
	return out
}

// qualifies reports whether alias may qualify an attribute path in sc:
// the scope alias, a declared alias, or a relation of the scope entity.
func (cc *compilation) qualifies(alias string, sc scope) bool {
	if alias == sc.alias || cc.known[alias] {
		return true
	}
	if sc.entity == nil {
		return false
	}
	_, ok := sc.entity.Relation(strings.TrimSuffix(alias, "Middle"))
	return ok
}

// attribute renders an attribute path.
//
// "alias.attr" is qualified verbatim with the attribute snake-cased,
// unless alias is the scope's own alias and attr one of its attributes.
// An alias the statement never declared is an unknown attribute.
// A bare name resolves against the scope entity.
func (cc *compilation) attribute(path string, sc scope) (string, error) {
	if alias, name, ok := strings.Cut(path, "."); ok {
		if alias == sc.alias && sc.entity != nil {
			if _, known := sc.entity.Attribute(name); known {
				return cc.attribute(name, sc)
			}
		}
		if !cc.qualifies(alias, sc) {
			return "", queryir.Errorf(queryir.KindUnknownAttribute, path, "%q is qualified by unknown alias %q", path, alias)
		}
		return alias + "." + schema.Column(name), nil
	}
	if sc.entity == nil {
		return sc.alias + "." + schema.Column(path), nil
	}

	b, err := cc.reg.ResolveAttribute(sc.entity.Name, path)
	if err != nil {
		return "", err
	}
	switch b.Kind {
	case schema.BindColumn:
		return sc.alias + "." + b.Column, nil
	case schema.BindComposite:
		return cc.composite(b.Composite, sc.entity, sc.alias)
	case schema.BindForeign:
		return cc.foreign(b, sc, path)
	default:
		return "", queryir.Errorf(queryir.KindUnknownAttribute, path, "attribute %q of %s is not storable", path, sc.entity.Name)
	}
}

func (cc *compilation) foreign(b schema.Binding, sc scope, path string) (string, error) {
	if !sc.joins {
		return "", queryir.Errorf(queryir.KindUnknownAttribute, path, "foreign attribute %q needs a join, which this statement cannot carry", path)
	}
	rel := b.Relation
	target, ok := cc.reg.Entity(rel.Entity)
	if !ok {
		return "", queryir.Errorf(queryir.KindUnknownRelation, rel.Name, "relation %s targets unknown entity %q", rel.Name, rel.Entity)
	}
	fb, err := cc.reg.ResolveAttribute(rel.Entity, b.ForeignField)
	if err != nil {
		return "", err
	}

	cc.imply(rel)
	switch fb.Kind {
	case schema.BindColumn:
		return rel.Name + "." + fb.Column, nil
	case schema.BindComposite:
		return cc.composite(fb.Composite, target, rel.Name)
	default:
		return "", queryir.Errorf(queryir.KindUnknownAttribute, path, "foreign attribute %q must read a column, %s.%s is %s", path, rel.Entity, b.ForeignField, fb.Kind)
	}
}

// imply records a belongs-to join needed by a foreign attribute.
func (cc *compilation) imply(rel *schema.Relation) {
	if cc.impliedSeen == nil {
		cc.impliedSeen = map[string]bool{}
	}
	if cc.impliedSeen[rel.Name] {
		return
	}
	cc.impliedSeen[rel.Name] = true
	cc.implied = append(cc.implied, rel)
}

// composite renders the full value of a composite attribute:
// TRIM(CONCAT(part, 'sep', part, ...)).
func (cc *compilation) composite(spec *ir.CompositeSpec, e *schema.Entity, alias string) (string, error) {
	inner, err := cc.concat(spec, e, alias, nil, spec.NullSafe)
	if err != nil {
		return "", err
	}
	return cc.fn("TRIM", inner)
}

// concat renders CONCAT over the parts named in only (all parts when nil).
// The separator of the first rendered part is dropped.
func (cc *compilation) concat(spec *ir.CompositeSpec, e *schema.Entity, alias string, only []string, nullSafe bool) (string, error) {
	var args []string
	for _, p := range spec.Parts {
		if only != nil && !slices.Contains(only, p.Attribute) {
			continue
		}
		part, ok := e.Attribute(p.Attribute)
		if !ok {
			return "", queryir.Errorf(queryir.KindUnknownAttribute, p.Attribute, "entity %s has no attribute %q", e.Name, p.Attribute)
		}
		if p.Separator != "" && len(args) > 0 {
			args = append(args, cc.quote(p.Separator))
		}
		col := alias + "." + part.Column
		if nullSafe {
			wrapped, err := cc.fn("IFNULL", col, cc.quote(""))
			if err != nil {
				return "", err
			}
			col = wrapped
		}
		args = append(args, col)
	}
	return cc.fn("CONCAT", strings.Join(args, ", "))
}

// parts renders alias.column for each named composite part.
func (cc *compilation) parts(e *schema.Entity, alias string, names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, n := range names {
		a, ok := e.Attribute(n)
		if !ok {
			return nil, queryir.Errorf(queryir.KindUnknownAttribute, n, "entity %s has no attribute %q", e.Name, n)
		}
		out = append(out, alias+"."+a.Column)
	}
	return out, nil
}

// compositeOf reports the composite a bare path resolves to in sc, if any.
func (cc *compilation) compositeOf(path string, sc scope) (*ir.CompositeSpec, bool) {
	if sc.entity == nil || strings.Contains(path, ".") {
		return nil, false
	}
	a, ok := sc.entity.Attribute(path)
	if !ok || a.Composite == nil {
		return nil, false
	}
	return a.Composite, true
}

func searchParts(spec *ir.CompositeSpec) []string {
	if len(spec.Search) > 0 {
		return spec.Search
	}
	return partNames(spec)
}

func orderParts(spec *ir.CompositeSpec) []string {
	if len(spec.OrderBy) > 0 {
		return spec.OrderBy
	}
	return partNames(spec)
}

func partNames(spec *ir.CompositeSpec) []string {
	out := make([]string, len(spec.Parts))
	for i, p := range spec.Parts {
		out[i] = p.Attribute
	}
	return out
}

// expression parses and compiles expression text.
func (cc *compilation) expression(text string, sc scope) (string, error) {
	e, err := expr.ParseWithLimit(text, cc.c.maxDepth)
	if err != nil {
		return "", err
	}
	return cc.expr(e, sc)
}

func (cc *compilation) expr(e queryir.Expr, sc scope) (string, error) {
	switch n := e.(type) {
	case queryir.Literal:
		return cc.exprLiteral(n.Value)
	case queryir.AttributeRef:
		return cc.attribute(n.Path, sc)
	case queryir.FunctionCall:
		return cc.call(n, sc)
	case *queryir.FunctionCall:
		return cc.call(*n, sc)
	case queryir.Raw:
		return n.SQL, nil
	default:
		return "", queryir.Errorf(queryir.KindSyntax, "", "unsupported expression node %T", e)
	}
}

// exprLiteral renders a literal inside an expression. Numbers are quoted
// like strings; booleans and null are keywords.
func (cc *compilation) exprLiteral(v ir.IRValue) (string, error) {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return "NULL", nil
	case ir.IRBool:
		if val {
			return "TRUE", nil
		}
		return "FALSE", nil
	}
	return cc.valueLiteral(v)
}

// valueLiteral renders a filter or assignment value. Booleans become
// '1'/'0'; arrays and objects become JSON text.
func (cc *compilation) valueLiteral(v ir.IRValue) (string, error) {
	if ir.IsNull(v) {
		return "NULL", nil
	}
	text, err := ir.Text(v)
	if err != nil {
		return "", queryir.Errorf(queryir.KindMalformedFilter, "", "%v", err)
	}
	return cc.quote(text), nil
}

func (cc *compilation) fn(name string, args ...string) (string, error) {
	out, ok := cc.d.Func(name, args...)
	if !ok {
		return "", queryir.Errorf(queryir.KindUnknownFunction, name, "function %s is not supported by dialect %s", name, cc.d.Name)
	}
	return out, nil
}

func joinAnd(parts []string) string {
	return strings.Join(parts, " AND ")
}
