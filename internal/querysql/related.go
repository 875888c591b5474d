package querysql

import (
	"fmt"

	"github.com/roach88/ormsql/internal/ir"
	"github.com/roach88/ormsql/internal/queryir"
	"github.com/roach88/ormsql/internal/schema"
)

// CompileSelectRelated compiles a selection of the records related to one
// record.
//
// many-to-many joins the junction table under its own name; has-many and
// has-children put the key conditions in WHERE; belongs-to selects the
// single parent.
func (c *Compiler) CompileSelectRelated(q *queryir.SelectRelated) (*Statement, error) {
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

	base := queryir.Select{}
	if q.Query != nil {
		base = *q.Query
	}

	targetName := rel.Entity
	if rel.Kind == ir.RelationBelongsToParent {
		if q.ParentType == "" {
			return nil, queryir.Errorf(queryir.KindInvalidQuery, q.Relation, "selecting through %s needs a parent type", rel.Name)
		}
		targetName = q.ParentType
	}
	target, err := cc.entity(targetName)
	if err != nil {
		return nil, err
	}
	base.EntityType = target.Name
	ta := schema.Alias(target.Name)

	var extras selectExtras
	switch rel.Kind {
	case ir.RelationManyMany:
		jt := rel.JunctionTable
		on := []string{
			fmt.Sprintf("%s.%s = %s.%s", ta, column(target, rel.ForeignKey), jt, schema.Column(rel.FarKey())),
			fmt.Sprintf("%s.%s = %s", jt, schema.Column(rel.NearKey()), cc.quote(q.ID)),
		}
		if !base.WithDeleted {
			on = append(on, fmt.Sprintf("%s.deleted = %s", jt, cc.quote("0")))
		}
		on = append(on, cc.junctionConditions(rel, jt+".")...)
		extras.joins = []JoinClause{{Style: JoinInner, Table: jt, On: joinAnd(on), Middle: true}}

	case ir.RelationHasMany:
		extras.where = []string{
			fmt.Sprintf("%s.%s = %s", ta, column(target, rel.ForeignKey), cc.quote(q.ID)),
		}

	case ir.RelationHasChildren:
		extras.where = []string{
			fmt.Sprintf("%s.%s = %s", ta, column(target, rel.ForeignKey), cc.quote(q.ID)),
			fmt.Sprintf("%s.%s = %s", ta, column(target, rel.ForeignType), cc.quote(owner.Name)),
		}

	case ir.RelationBelongsTo, ir.RelationBelongsToParent:
		cond, err := cc.parentCondition(q, owner, rel, target)
		if err != nil {
			return nil, err
		}
		extras.where = []string{cond}
		if base.Aggregate == nil {
			base.Offset = queryir.Int(0)
			base.Limit = queryir.Int(1)
		}
	}

	sql, err := cc.selectSQL(&base, extras)
	if err != nil {
		return nil, err
	}
	st := &Statement{SQL: sql, Aliases: cc.aliases}
	c.logStatement("related", q.EntityType, cc.joins+len(extras.joins), st)
	return st, nil
}

// parentCondition selects the record a belongs-to relation points at:
// by the given foreign id, or through a subquery reading the owner's key.
func (cc *compilation) parentCondition(q *queryir.SelectRelated, owner *schema.Entity, rel *schema.Relation, target *schema.Entity) (string, error) {
	ta := schema.Alias(target.Name)
	targetKey := "id"
	if rel.Kind == ir.RelationBelongsTo {
		targetKey = rel.ForeignKey
	}
	left := fmt.Sprintf("%s.%s", ta, column(target, targetKey))

	if q.ForeignID != "" {
		return left + " = " + cc.quote(q.ForeignID), nil
	}

	oa := schema.Alias(owner.Name)
	if oa == ta {
		return "", queryir.Errorf(queryir.KindInvalidQuery, q.Relation, "self-referencing %s needs a foreign id", rel.Name)
	}
	where := []string{fmt.Sprintf("%s.%s = %s", oa, column(owner, "id"), cc.quote(q.ID))}
	if rel.Kind == ir.RelationBelongsToParent {
		where = append(where, fmt.Sprintf("%s.%s = %s", oa, column(owner, rel.ForeignType), cc.quote(target.Name)))
	}
	if s := cc.softDelete(owner, oa); s != "" {
		where = append(where, s)
	}
	return fmt.Sprintf("%s IN (SELECT %s.%s FROM %s WHERE %s)",
		left, oa, column(owner, rel.Key), cc.from(owner.Table, oa), joinAnd(where)), nil
}
