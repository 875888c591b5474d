package querysql

import (
	"strconv"
	"strings"

	"github.com/roach88/ormsql/internal/ir"
	"github.com/roach88/ormsql/internal/queryir"
	"github.com/roach88/ormsql/internal/schema"
)

// aggregateFunctions are the functions Select.Aggregate accepts.
var aggregateFunctions = map[string]bool{
	"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true,
}

// selectExtras carries pieces related selections and mass relates add
// to an ordinary select.
type selectExtras struct {
	list  []string     // replaces the select list
	joins []JoinClause // placed before every other join
	where []string     // placed before the query's own conditions
}

// CompileSelect compiles a SELECT.
func (c *Compiler) CompileSelect(q *queryir.Select) (*Statement, error) {
	if err := queryir.Validate(q); err != nil {
		return nil, err
	}
	cc := c.newCompilation()
	sql, err := cc.selectSQL(q, selectExtras{})
	if err != nil {
		return nil, err
	}
	st := &Statement{SQL: sql, Aliases: cc.aliases}
	c.logStatement("select", q.EntityType, cc.joins, st)
	return st, nil
}

// selectSQL assembles a SELECT: select list, joins, WHERE with the
// soft-delete predicate, GROUP BY, HAVING, ORDER BY and LIMIT.
func (cc *compilation) selectSQL(q *queryir.Select, extras selectExtras) (string, error) {
	e, err := cc.entity(q.EntityType)
	if err != nil {
		return "", err
	}
	sc := cc.mainScope(e)
	cc.sel = q
	cc.explicit = map[string]bool{}
	cc.declareEntity(e, sc.alias)
	for _, alias := range cc.declareJoins(append(append([]queryir.Join(nil), q.Joins...), q.LeftJoins...)) {
		cc.explicit[alias] = true
	}
	for _, j := range extras.joins {
		cc.declare(j.Alias, j.Table)
	}

	list := extras.list
	if list == nil {
		if list, err = cc.selectList(q, e, sc); err != nil {
			return "", err
		}
	}

	where := append([]string(nil), extras.where...)
	conds, err := cc.filter(q.Where, sc)
	if err != nil {
		return "", err
	}
	where = append(where, conds...)
	if !q.WithDeleted {
		if s := cc.softDelete(e, sc.alias); s != "" {
			where = append(where, s)
		}
	}

	groupBy := make([]string, len(q.GroupBy))
	for i, g := range q.GroupBy {
		if groupBy[i], err = cc.expression(g, sc); err != nil {
			return "", err
		}
	}

	having, err := cc.filter(q.Having, sc)
	if err != nil {
		return "", err
	}

	orderBy, err := cc.orderBy(q, sc, len(list))
	if err != nil {
		return "", err
	}

	seen := map[string]string{sc.alias: e.Table}
	joins := append([]JoinClause(nil), extras.joins...)
	implied, aliases, err := cc.impliedJoins(sc, seen)
	if err != nil {
		return "", err
	}
	joins = append(joins, implied...)
	inner, err := cc.planJoins(q.Joins, JoinInner, sc, q.WithDeleted, seen)
	if err != nil {
		return "", err
	}
	joins = append(joins, inner...)
	left, err := cc.planJoins(q.LeftJoins, JoinLeft, sc, q.WithDeleted, seen)
	if err != nil {
		return "", err
	}
	joins = append(joins, left...)
	cc.aliases = append(cc.aliases, aliases...)
	cc.joins += len(joins)

	var b strings.Builder
	b.WriteString("SELECT ")
	if q.Distinct {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(strings.Join(list, ", "))
	b.WriteString(" FROM ")
	b.WriteString(cc.from(e.Table, sc.alias))
	for _, j := range joins {
		b.WriteString(" ")
		b.WriteString(j.SQL(cc.d))
	}
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(joinAnd(where))
	}
	if len(groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(groupBy, ", "))
	}
	if len(having) > 0 {
		b.WriteString(" HAVING ")
		b.WriteString(joinAnd(having))
	}
	if len(orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(orderBy, ", "))
	}
	if limit := cc.d.Limit(q.Offset, q.Limit); limit != "" {
		b.WriteString(" ")
		b.WriteString(limit)
	}
	return b.String(), nil
}

func (cc *compilation) selectList(q *queryir.Select, e *schema.Entity, sc scope) ([]string, error) {
	if q.Aggregate != nil {
		name := strings.ToUpper(q.Aggregate.Function)
		if !aggregateFunctions[name] {
			return nil, queryir.Errorf(queryir.KindUnknownFunction, q.Aggregate.Function, "unknown aggregate function %s", q.Aggregate.Function)
		}
		arg, err := cc.expression(q.Aggregate.Attribute, sc)
		if err != nil {
			return nil, err
		}
		return []string{name + "(" + arg + ") AS AggregateValue"}, nil
	}

	if len(q.Select) == 0 {
		return cc.defaultList(q, e, sc)
	}

	out := make([]string, len(q.Select))
	for i, item := range q.Select {
		s, err := cc.expression(item.Expr, sc)
		if err != nil {
			return nil, err
		}
		alias := item.Alias
		if alias == "" {
			alias = item.Expr
		}
		out[i] = s + " AS " + cc.ident(alias)
	}
	return out, nil
}

// defaultList selects every selectable attribute in declaration order.
func (cc *compilation) defaultList(q *queryir.Select, e *schema.Entity, sc scope) ([]string, error) {
	out := make([]string, 0, len(e.Attributes))
	for _, a := range e.Attributes {
		if a.SkipSelect || (a.NotStorable && a.Composite == nil) {
			continue
		}
		if q.SkipTextColumns && a.Type == ir.TypeText {
			continue
		}
		s, err := cc.attribute(a.Name, sc)
		if err != nil {
			return nil, err
		}
		out = append(out, s+" AS "+cc.ident(a.Name))
	}
	return out, nil
}

// orderBy compiles ORDER BY items: positions, value lists, composite
// fan-out and expressions. A position indexes the select list of
// columns items.
func (cc *compilation) orderBy(q *queryir.Select, sc scope, columns int) ([]string, error) {
	var out []string
	for _, item := range q.OrderBy {
		dir := strings.ToUpper(item.Direction)
		if dir == "" {
			dir = strings.ToUpper(q.Order)
		}
		if dir == "" {
			dir = "ASC"
		}

		switch {
		case item.Position > columns:
			return nil, queryir.Errorf(queryir.KindInvalidQuery, strconv.Itoa(item.Position), "order position %d is past the %d selected columns", item.Position, columns)

		case item.Position > 0:
			out = append(out, strconv.Itoa(item.Position)+" "+dir)

		case len(item.Expr) > 5 && strings.EqualFold(item.Expr[:5], "LIST:"):
			s, err := cc.valueList(item.Expr[5:], sc)
			if err != nil {
				return nil, err
			}
			out = append(out, s+" DESC")

		default:
			if spec, ok := cc.compositeOf(item.Expr, sc); ok {
				cols, err := cc.parts(sc.entity, sc.alias, orderParts(spec))
				if err != nil {
					return nil, err
				}
				for _, c := range cols {
					out = append(out, c+" "+dir)
				}
				continue
			}
			s, err := cc.expression(item.Expr, sc)
			if err != nil {
				return nil, err
			}
			out = append(out, s+" "+dir)
		}
	}
	return out, nil
}

// valueList compiles "attr:v1,v2" into the dialect's value-list ordering,
// with the values reversed so earlier values sort first under DESC.
func (cc *compilation) valueList(spec string, sc scope) (string, error) {
	path, raw, ok := strings.Cut(spec, ":")
	if !ok || path == "" || raw == "" {
		return "", queryir.Errorf(queryir.KindSyntax, "LIST:"+spec, "value list needs LIST:attribute:v1,v2")
	}
	attr, err := cc.expression(path, sc)
	if err != nil {
		return "", err
	}

	values := strings.Split(raw, ",")
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[len(values)-1-i] = cc.quote(v)
	}
	return cc.d.ValueList(attr, quoted), nil
}
