package querysql

import (
	"strings"

	"github.com/roach88/ormsql/internal/ir"
	"github.com/roach88/ormsql/internal/queryir"
)

// filter compiles the entries of f into conjuncts, in order. Entries that
// compile to nothing (empty groups) are dropped.
func (cc *compilation) filter(f queryir.Filter, sc scope) ([]string, error) {
	if err := cc.enter(""); err != nil {
		return nil, err
	}
	defer cc.leave()

	parts := make([]string, 0, len(f))
	for _, e := range f {
		s, err := cc.entry(e, sc)
		if err != nil {
			return nil, err
		}
		if s != "" {
			parts = append(parts, s)
		}
	}
	return parts, nil
}

func (cc *compilation) entry(e queryir.Entry, sc scope) (string, error) {
	if e.Bare {
		return cc.expression(e.Key, sc)
	}
	if queryir.IsGroupKey(e.Key) {
		return cc.group(e, sc)
	}

	cond := queryir.ParseKey(e.Key)
	if cond.Path == "" {
		return "", queryir.Errorf(queryir.KindMalformedFilter, e.Key, "filter key has no attribute")
	}
	if cond.Subquery {
		return cc.subqueryCondition(cond, e, sc)
	}

	left, err := cc.expression(cond.Path, sc)
	if err != nil {
		return "", err
	}
	if cond.Raw {
		return cc.rawCondition(left, cond, e, sc)
	}

	switch e.Value.(type) {
	case queryir.Filter, []queryir.Filter:
		return "", queryir.Errorf(queryir.KindMalformedFilter, e.Key, "only OR, AND and NOT take a filter")
	case queryir.Select, *queryir.Select:
		return "", queryir.Errorf(queryir.KindMalformedFilter, e.Key, "a subquery needs the =s or !=s operator")
	}
	val, err := ir.FromGo(e.Value)
	if err != nil {
		return "", queryir.Errorf(queryir.KindMalformedFilter, e.Key, "%v", err)
	}

	switch v := val.(type) {
	case ir.IRArray:
		return cc.inList(left, cond, v, e.Key)
	case ir.IRNull:
		switch cond.Op {
		case queryir.OpEquals:
			return left + " IS NULL", nil
		case queryir.OpNotEquals:
			return left + " IS NOT NULL", nil
		default:
			return "", queryir.Errorf(queryir.KindMalformedFilter, e.Key, "null only compares with = or !=")
		}
	}

	lit, err := cc.valueLiteral(val)
	if err != nil {
		return "", err
	}
	if spec, ok := cc.compositeOf(cond.Path, sc); ok && (cond.Op == queryir.OpLike || cond.Op == queryir.OpNotLike) {
		return cc.compositeLike(spec, sc, lit, cond.Op == queryir.OpNotLike)
	}
	return left + " " + cond.Op.SQL() + " " + lit, nil
}

// rawCondition compiles "key:" entries, whose value is an expression.
// A null value leaves the left side standing alone.
func (cc *compilation) rawCondition(left string, cond queryir.Condition, e queryir.Entry, sc scope) (string, error) {
	var text string
	switch v := e.Value.(type) {
	case nil, ir.IRNull:
		return left, nil
	case string:
		text = v
	case ir.IRString:
		text = string(v)
	default:
		return "", queryir.Errorf(queryir.KindMalformedFilter, e.Key, "raw value must be an expression string, got %T", e.Value)
	}
	rhs, err := cc.expression(text, sc)
	if err != nil {
		return "", err
	}
	return left + " " + cond.Op.SQL() + " " + rhs, nil
}

// inList compiles a list value into IN / NOT IN. Empty lists become the
// dialect's constant true or false.
func (cc *compilation) inList(left string, cond queryir.Condition, values ir.IRArray, key string) (string, error) {
	var negate bool
	switch cond.Op {
	case queryir.OpEquals:
	case queryir.OpNotEquals:
		negate = true
	default:
		return "", queryir.Errorf(queryir.KindMalformedFilter, key, "a list only compares with = or !=")
	}

	if len(values) == 0 {
		if negate {
			return cc.d.EmptyNotIn, nil
		}
		return cc.d.EmptyIn, nil
	}

	items := make([]string, len(values))
	for i, v := range values {
		switch v.(type) {
		case ir.IRArray, ir.IRObject:
			return "", queryir.Errorf(queryir.KindMalformedFilter, key, "list item %d is not a scalar", i)
		}
		lit, err := cc.valueLiteral(v)
		if err != nil {
			return "", err
		}
		items[i] = lit
	}
	op := "IN"
	if negate {
		op = "NOT IN"
	}
	return left + " " + op + " (" + strings.Join(items, ", ") + ")", nil
}

// compositeLike fans a LIKE on a composite out over its search parts and
// their concatenation.
func (cc *compilation) compositeLike(spec *ir.CompositeSpec, sc scope, lit string, negate bool) (string, error) {
	names := searchParts(spec)
	cols, err := cc.parts(sc.entity, sc.alias, names)
	if err != nil {
		return "", err
	}
	whole, err := cc.concat(spec, sc.entity, sc.alias, names, false)
	if err != nil {
		return "", err
	}

	alts := make([]string, 0, len(cols)+1)
	for _, c := range append(cols, whole) {
		alts = append(alts, c+" LIKE "+lit)
	}
	out := "(" + strings.Join(alts, " OR ") + ")"
	if negate {
		out = "NOT " + out
	}
	return out, nil
}

// group compiles OR, AND and NOT entries.
func (cc *compilation) group(e queryir.Entry, sc scope) (string, error) {
	groups, err := groupsOf(e)
	if err != nil {
		return "", err
	}

	switch e.Key {
	case queryir.KeyOr:
		var alts []string
		for _, g := range groups {
			parts, err := cc.filter(g, sc)
			if err != nil {
				return "", err
			}
			switch len(parts) {
			case 0:
			case 1:
				alts = append(alts, parts[0])
			default:
				alts = append(alts, "("+joinAnd(parts)+")")
			}
		}
		if len(alts) == 0 {
			return "", nil
		}
		return "(" + strings.Join(alts, " OR ") + ")", nil

	case queryir.KeyAnd:
		var all []string
		for _, g := range groups {
			parts, err := cc.filter(g, sc)
			if err != nil {
				return "", err
			}
			all = append(all, parts...)
		}
		switch len(all) {
		case 0:
			return "", nil
		case 1:
			return all[0], nil
		}
		return "(" + joinAnd(all) + ")", nil

	default:
		var merged queryir.Filter
		for _, g := range groups {
			merged = append(merged, g...)
		}
		return cc.not(merged, sc)
	}
}

// groupsOf normalizes a group value. A Filter given to OR is one
// alternative per entry; given to AND or NOT it is a single group.
func groupsOf(e queryir.Entry) ([]queryir.Filter, error) {
	switch v := e.Value.(type) {
	case []queryir.Filter:
		return v, nil
	case queryir.Filter:
		if e.Key != queryir.KeyOr {
			return []queryir.Filter{v}, nil
		}
		out := make([]queryir.Filter, len(v))
		for i, entry := range v {
			out[i] = queryir.Filter{entry}
		}
		return out, nil
	default:
		return nil, queryir.Errorf(queryir.KindMalformedFilter, e.Key, "%s needs a filter or a list of filters, got %T", e.Key, e.Value)
	}
}

// not compiles NOT as an exclusion subquery over the scope entity:
// alias.id NOT IN (SELECT alias.id ... WHERE <f>).
func (cc *compilation) not(f queryir.Filter, sc scope) (string, error) {
	if !sc.main || sc.entity == nil {
		return "", queryir.Errorf(queryir.KindMalformedFilter, queryir.KeyNot, "NOT is only allowed in a select WHERE clause")
	}

	sub := queryir.Select{
		EntityType: sc.entity.Name,
		Select:     queryir.Items("id"),
		Where:      f,
	}
	if cc.sel != nil {
		sub.Joins = cc.sel.Joins
		sub.LeftJoins = cc.sel.LeftJoins
	}

	child, err := cc.sub(queryir.KeyNot)
	if err != nil {
		return "", err
	}
	sql, err := child.selectSQL(&sub, selectExtras{})
	if err != nil {
		return "", err
	}
	id, err := cc.attribute("id", sc)
	if err != nil {
		return "", err
	}
	return id + " NOT IN (" + sql + ")", nil
}

// subqueryCondition compiles "path=s" and "path!=s".
func (cc *compilation) subqueryCondition(cond queryir.Condition, e queryir.Entry, sc scope) (string, error) {
	var sub *queryir.Select
	switch v := e.Value.(type) {
	case *queryir.Select:
		sub = v
	case queryir.Select:
		sub = &v
	}
	if sub == nil {
		return "", queryir.Errorf(queryir.KindMalformedFilter, e.Key, "%s needs a select, got %T", e.Key, e.Value)
	}
	if err := queryir.Validate(sub); err != nil {
		return "", err
	}

	left, err := cc.expression(cond.Path, sc)
	if err != nil {
		return "", err
	}
	child, err := cc.sub(e.Key)
	if err != nil {
		return "", err
	}
	sql, err := child.selectSQL(sub, selectExtras{})
	if err != nil {
		return "", err
	}
	return left + " " + cond.Op.SQL() + " (" + sql + ")", nil
}
