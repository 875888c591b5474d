package querysql

import (
	"fmt"
	"sort"

	"github.com/roach88/ormsql/internal/dialect"
	"github.com/roach88/ormsql/internal/ir"
	"github.com/roach88/ormsql/internal/queryir"
	"github.com/roach88/ormsql/internal/schema"
)

// JoinStyle is the join keyword.
type JoinStyle string

const (
	JoinInner JoinStyle = "JOIN"
	JoinLeft  JoinStyle = "LEFT JOIN"
)

// JoinClause is one planned join.
type JoinClause struct {
	Style JoinStyle
	Table string
	Alias string // empty joins the table under its own name
	On    string

	// Middle marks the junction half of a many-to-many join.
	Middle bool
}

// SQL renders the clause for dialect d.
func (j JoinClause) SQL(d *dialect.Dialect) string {
	ref := d.QuoteIdent(j.Table)
	if j.Alias != "" {
		ref += " AS " + d.QuoteIdent(j.Alias)
	}
	return fmt.Sprintf("%s %s ON %s", j.Style, ref, j.On)
}

// PlanJoins plans joins from entityType in the given style, soft-delete
// conditions included. Aliases already planned are skipped.
func (c *Compiler) PlanJoins(entityType string, joins []queryir.Join, style JoinStyle) ([]JoinClause, error) {
	cc, sc, err := c.begin(entityType)
	if err != nil {
		return nil, err
	}
	cc.declareEntity(sc.entity, sc.alias)
	cc.declareJoins(joins)
	return cc.planJoins(joins, style, sc, false, map[string]string{})
}

// planJoins plans joins in order. seen maps each planned alias to its
// table. Clauses repeating a planned alias on the same table are dropped;
// reusing a planned alias for another table, such as a many-to-many
// junction alias, is an error.
func (cc *compilation) planJoins(joins []queryir.Join, style JoinStyle, sc scope, withDeleted bool, seen map[string]string) ([]JoinClause, error) {
	var out []JoinClause
	for _, j := range joins {
		clauses, err := cc.planJoin(j, style, sc, withDeleted)
		if err != nil {
			return nil, err
		}
		for _, cl := range clauses {
			table, ok := seen[cl.Alias]
			if ok && table != cl.Table {
				return nil, queryir.Errorf(queryir.KindInvalidQuery, j.Target, "join %s needs alias %q, which already names %s", j.Target, cl.Alias, table)
			}
		}
		for _, cl := range clauses {
			if _, ok := seen[cl.Alias]; ok {
				continue
			}
			seen[cl.Alias] = cl.Table
			out = append(out, cl)
		}
	}
	return out, nil
}

func joinAlias(j queryir.Join) string {
	if j.Alias != "" {
		return j.Alias
	}
	return j.Target
}

// planJoin plans one requested join. A many-to-many relation yields the
// junction clause followed by the target clause.
func (cc *compilation) planJoin(j queryir.Join, style JoinStyle, sc scope, withDeleted bool) ([]JoinClause, error) {
	alias := joinAlias(j)
	if j.Table {
		return cc.tableJoin(j, alias, style)
	}
	if sc.entity == nil {
		return nil, queryir.Errorf(queryir.KindUnknownRelation, j.Target, "relation join needs an entity")
	}

	rel, err := cc.reg.ResolveRelation(sc.entity.Name, j.Target)
	if err != nil {
		return nil, err
	}
	owner := sc.entity

	if rel.Kind == ir.RelationManyMany {
		return cc.manyManyJoin(j, rel, alias, style, sc, withDeleted)
	}

	targetName := rel.Entity
	if rel.Kind == ir.RelationBelongsToParent {
		if j.ParentType == "" {
			return nil, queryir.Errorf(queryir.KindUnknownRelation, j.Target, "join through %s needs a parent type", rel.Name)
		}
		targetName = j.ParentType
	}
	target, ok := cc.reg.Entity(targetName)
	if !ok {
		return nil, queryir.Errorf(queryir.KindUnknownRelation, j.Target, "relation %s targets unknown entity %q", rel.Name, targetName)
	}

	var on []string
	switch rel.Kind {
	case ir.RelationBelongsTo:
		on = append(on, fmt.Sprintf("%s.%s = %s.%s", sc.alias, column(owner, rel.Key), alias, column(target, rel.ForeignKey)))
	case ir.RelationBelongsToParent:
		on = append(on,
			fmt.Sprintf("%s.%s = %s.%s", sc.alias, column(owner, rel.Key), alias, column(target, "id")),
			fmt.Sprintf("%s.%s = %s", sc.alias, column(owner, rel.ForeignType), cc.quote(target.Name)))
	case ir.RelationHasMany:
		on = append(on, fmt.Sprintf("%s.%s = %s.%s", sc.alias, column(owner, rel.Key), alias, column(target, rel.ForeignKey)))
		on = cc.appendSoftDelete(on, target, alias, withDeleted)
	case ir.RelationHasChildren:
		on = append(on,
			fmt.Sprintf("%s.%s = %s.%s", sc.alias, column(owner, rel.Key), alias, column(target, rel.ForeignKey)),
			fmt.Sprintf("%s.%s = %s", alias, column(target, rel.ForeignType), cc.quote(owner.Name)))
		on = cc.appendSoftDelete(on, target, alias, withDeleted)
	}

	conds, err := cc.filter(j.Conditions, scope{entity: target, alias: alias})
	if err != nil {
		return nil, err
	}
	on = append(on, conds...)
	return []JoinClause{{Style: style, Table: target.Table, Alias: alias, On: joinAnd(on)}}, nil
}

func (cc *compilation) manyManyJoin(j queryir.Join, rel *schema.Relation, alias string, style JoinStyle, sc scope, withDeleted bool) ([]JoinClause, error) {
	mid := alias + "Middle"
	midOn := []string{fmt.Sprintf("%s.%s = %s.%s", sc.alias, column(sc.entity, rel.Key), mid, schema.Column(rel.NearKey()))}
	if !withDeleted {
		midOn = append(midOn, fmt.Sprintf("%s.deleted = %s", mid, cc.quote("0")))
	}
	midOn = append(midOn, cc.junctionConditions(rel, mid+".")...)

	if j.OnlyMiddle {
		conds, err := cc.filter(j.Conditions, scope{alias: mid})
		if err != nil {
			return nil, err
		}
		midOn = append(midOn, conds...)
		return []JoinClause{{Style: style, Table: rel.JunctionTable, Alias: mid, On: joinAnd(midOn), Middle: true}}, nil
	}

	target, ok := cc.reg.Entity(rel.Entity)
	if !ok {
		return nil, queryir.Errorf(queryir.KindUnknownRelation, j.Target, "relation %s targets unknown entity %q", rel.Name, rel.Entity)
	}
	on := []string{fmt.Sprintf("%s.%s = %s.%s", alias, column(target, rel.ForeignKey), mid, schema.Column(rel.FarKey()))}
	on = cc.appendSoftDelete(on, target, alias, withDeleted)
	conds, err := cc.filter(j.Conditions, scope{entity: target, alias: alias})
	if err != nil {
		return nil, err
	}
	on = append(on, conds...)

	return []JoinClause{
		{Style: style, Table: rel.JunctionTable, Alias: mid, On: joinAnd(midOn), Middle: true},
		{Style: style, Table: target.Table, Alias: alias, On: joinAnd(on)},
	}, nil
}

// tableJoin joins a table named by entity-type spelling. Its ON clause is
// built from the join conditions alone.
func (cc *compilation) tableJoin(j queryir.Join, alias string, style JoinStyle) ([]JoinClause, error) {
	table := schema.Table(j.Target)
	target := cc.entityByTable(table)

	conds, err := cc.filter(j.Conditions, scope{entity: target, alias: alias})
	if err != nil {
		return nil, err
	}
	if len(conds) == 0 {
		return nil, queryir.Errorf(queryir.KindMalformedFilter, j.Target, "table join %s needs conditions", j.Target)
	}
	return []JoinClause{{Style: style, Table: table, Alias: alias, On: joinAnd(conds)}}, nil
}

func (cc *compilation) entityByTable(table string) *schema.Entity {
	for _, e := range cc.reg.Entities() {
		if e.Table == table {
			return e
		}
	}
	return nil
}

// impliedJoins plans the belongs-to joins registered by foreign
// attributes, skipping relations the query joins explicitly.
func (cc *compilation) impliedJoins(sc scope, seen map[string]string) ([]JoinClause, []string, error) {
	var (
		out     []JoinClause
		aliases []string
	)
	for _, rel := range cc.implied {
		if _, ok := seen[rel.Name]; ok || cc.explicit[rel.Name] {
			continue
		}
		clauses, err := cc.planJoin(queryir.Join{Target: rel.Name}, JoinLeft, sc, true)
		if err != nil {
			return nil, nil, err
		}
		for _, cl := range clauses {
			seen[cl.Alias] = cl.Table
		}
		aliases = append(aliases, rel.Name)
		out = append(out, clauses...)
	}
	return out, aliases, nil
}

// junctionConditions renders the fixed column values a relation requires
// of its junction rows, sorted by column. prefix qualifies the column.
func (cc *compilation) junctionConditions(rel *schema.Relation, prefix string) []string {
	keys := make([]string, 0, len(rel.Conditions))
	for k := range rel.Conditions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = fmt.Sprintf("%s%s = %s", prefix, schema.Column(k), cc.quote(rel.Conditions[k]))
	}
	return out
}

func (cc *compilation) appendSoftDelete(on []string, e *schema.Entity, alias string, withDeleted bool) []string {
	if withDeleted {
		return on
	}
	if s := cc.softDelete(e, alias); s != "" {
		return append(on, s)
	}
	return on
}

// column returns the physical column of attr on e, falling back to the
// snake-case spelling for attributes e does not declare.
func column(e *schema.Entity, attr string) string {
	if e != nil {
		if a, ok := e.Attribute(attr); ok {
			return a.Column
		}
	}
	return schema.Column(attr)
}
