package querysql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/ormsql/internal/ir"
	"github.com/roach88/ormsql/internal/queryir"
	"github.com/roach88/ormsql/internal/schema"
)

// CompileRelationChange compiles relate, unrelate, unrelateAll and
// massRelate.
//
//	hasMany, hasChildren       UPDATE the child key (and type) columns
//	belongsTo, belongsToParent UPDATE the owner's own key (and type) columns
//	manyMany                   INSERT junction rows with the dialect upsert,
//	                           or soft-delete them
//
// The statement's Aliases hold the table it writes.
func (c *Compiler) CompileRelationChange(q *queryir.RelationChange) (*Statement, error) {
	if err := queryir.Validate(q); err != nil {
		return nil, err
	}
	cc := c.newCompilation()
	owner, err := cc.entity(q.EntityType)
	if err != nil {
		return nil, err
	}
	rel, err := cc.reg.ResolveRelation(owner.Name, q.Relation)
	if err != nil {
		return nil, err
	}

	var sql, table string
	switch rel.Kind {
	case ir.RelationManyMany:
		table = rel.JunctionTable
		sql, err = cc.junctionChange(q, rel)
	case ir.RelationHasMany, ir.RelationHasChildren:
		var target *schema.Entity
		if target, err = cc.entity(rel.Entity); err != nil {
			return nil, err
		}
		table = target.Table
		sql, err = cc.childChange(q, owner, rel, target)
	default:
		table = owner.Table
		sql, err = cc.ownKeyChange(q, owner, rel)
	}
	if err != nil {
		return nil, err
	}

	st := &Statement{SQL: sql, Aliases: []string{table}}
	c.logStatement(string(q.Action), q.EntityType, 0, st)
	return st, nil
}

// childChange points child rows at the owner, or detaches them.
func (cc *compilation) childChange(q *queryir.RelationChange, owner *schema.Entity, rel *schema.Relation, target *schema.Entity) (string, error) {
	ta := schema.Alias(target.Name)
	fk := column(target, rel.ForeignKey)
	hasType := rel.Kind == ir.RelationHasChildren
	ft := column(target, rel.ForeignType)
	soft := cc.softDelete(target, ta)
	update := "UPDATE " + cc.from(target.Table, ta) + " SET "

	attach := fk + " = " + cc.quote(q.ID)
	detach := fk + " = NULL"
	if hasType {
		attach += ", " + ft + " = " + cc.quote(owner.Name)
		detach += ", " + ft + " = NULL"
	}
	byID := fmt.Sprintf("%s.%s = %s", ta, column(target, "id"), cc.quote(q.ForeignID))

	switch q.Action {
	case queryir.ActionRelate:
		return update + attach + " WHERE " + joinAnd(nonEmpty(byID, soft)), nil

	case queryir.ActionUnrelate:
		return update + detach + " WHERE " + joinAnd(nonEmpty(soft, byID)), nil

	case queryir.ActionUnrelateAll:
		where := nonEmpty(soft, fmt.Sprintf("%s.%s = %s", ta, fk, cc.quote(q.ID)))
		if hasType {
			where = append(where, fmt.Sprintf("%s.%s = %s", ta, ft, cc.quote(owner.Name)))
		}
		return update + detach + " WHERE " + joinAnd(where), nil

	default:
		if len(q.Query.Joins) > 0 || len(q.Query.LeftJoins) > 0 {
			return "", queryir.Errorf(queryir.KindInvalidQuery, q.Relation, "massRelate over %s cannot join", rel.Name)
		}
		where, err := cc.rowWhere(q.Query.Where, target, cc.rowScope(target), q.Query.WithDeleted)
		if err != nil {
			return "", err
		}
		return update + attach + where, nil
	}
}

// ownKeyChange sets or clears the owner's belongs-to key.
func (cc *compilation) ownKeyChange(q *queryir.RelationChange, owner *schema.Entity, rel *schema.Relation) (string, error) {
	oa := schema.Alias(owner.Name)
	key := column(owner, rel.Key)
	hasType := rel.Kind == ir.RelationBelongsToParent
	ft := column(owner, rel.ForeignType)
	soft := cc.softDelete(owner, oa)
	byID := fmt.Sprintf("%s.%s = %s", oa, column(owner, "id"), cc.quote(q.ID))
	update := "UPDATE " + cc.from(owner.Table, oa) + " SET "

	switch q.Action {
	case queryir.ActionRelate:
		set := key + " = " + cc.quote(q.ForeignID)
		if hasType {
			if q.ParentType == "" {
				return "", queryir.Errorf(queryir.KindInvalidQuery, q.Relation, "relating through %s needs a parent type", rel.Name)
			}
			set += ", " + ft + " = " + cc.quote(q.ParentType)
		}
		return update + set + " WHERE " + joinAnd(nonEmpty(byID, soft)), nil

	case queryir.ActionUnrelate, queryir.ActionUnrelateAll:
		set := key + " = NULL"
		if hasType {
			set += ", " + ft + " = NULL"
		}
		return update + set + " WHERE " + joinAnd(nonEmpty(soft, byID)), nil

	default:
		return "", queryir.Errorf(queryir.KindInvalidQuery, q.Relation, "massRelate is not supported for %s relation %s", rel.Kind, rel.Name)
	}
}

// junctionChange writes junction rows. Relation conditions become extra
// columns on insert and extra predicates on soft delete.
func (cc *compilation) junctionChange(q *queryir.RelationChange, rel *schema.Relation) (string, error) {
	table := cc.ident(rel.JunctionTable)
	near := schema.Column(rel.NearKey())
	far := schema.Column(rel.FarKey())

	condKeys := make([]string, 0, len(rel.Conditions))
	for k := range rel.Conditions {
		condKeys = append(condKeys, k)
	}
	sort.Strings(condKeys)

	cols := []string{near, far}
	for _, k := range condKeys {
		cols = append(cols, schema.Column(k))
	}
	insert := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") "
	nearEq := near + " = " + cc.quote(q.ID)

	switch q.Action {
	case queryir.ActionRelate:
		vals := []string{cc.quote(q.ID), cc.quote(q.ForeignID)}
		for _, k := range condKeys {
			vals = append(vals, cc.quote(rel.Conditions[k]))
		}
		return insert + "VALUES (" + strings.Join(vals, ", ") + ")" + cc.d.Upsert, nil

	case queryir.ActionUnrelate:
		where := append([]string{nearEq, far + " = " + cc.quote(q.ForeignID)}, cc.junctionConditions(rel, "")...)
		return "UPDATE " + table + " SET deleted = 1 WHERE " + joinAnd(where), nil

	case queryir.ActionUnrelateAll:
		where := append([]string{nearEq}, cc.junctionConditions(rel, "")...)
		return "UPDATE " + table + " SET deleted = 1 WHERE " + joinAnd(where), nil

	default:
		sel, err := cc.massRelateSelect(q, rel, condKeys)
		if err != nil {
			return "", err
		}
		if cc.d.InsertSelectParens {
			sel = "(" + sel + ")"
		}
		return insert + sel + cc.d.Upsert, nil
	}
}

// massRelateSelect selects (owner id, related key, condition values...)
// for every record the query matches.
func (cc *compilation) massRelateSelect(q *queryir.RelationChange, rel *schema.Relation, condKeys []string) (string, error) {
	target, err := cc.entity(rel.Entity)
	if err != nil {
		return "", err
	}
	base := *q.Query
	base.EntityType = target.Name

	key, err := cc.attribute(rel.ForeignKey, cc.mainScope(target))
	if err != nil {
		return "", err
	}
	list := []string{
		cc.quote(q.ID) + " AS " + cc.ident(q.ID),
		key + " AS " + cc.ident(rel.ForeignKey),
	}
	for _, k := range condKeys {
		v := rel.Conditions[k]
		list = append(list, cc.quote(v)+" AS "+cc.ident(v))
	}

	extras := selectExtras{list: list}
	// SQLite reads ON after INSERT ... SELECT ... FROM t as a join
	// constraint unless a WHERE clause comes first.
	if !cc.d.InsertSelectParens && base.WithDeleted && len(base.Where) == 0 {
		extras.where = []string{"1"}
	}
	return cc.selectSQL(&base, extras)
}

func nonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
