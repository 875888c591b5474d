package querysql

import (
	"strings"

	"github.com/roach88/ormsql/internal/ir"
	"github.com/roach88/ormsql/internal/queryir"
	"github.com/roach88/ormsql/internal/schema"
)

// CompileInsert compiles a single-row INSERT. Attributes without a column
// of their own (foreign, composite, not storable) are skipped.
func (c *Compiler) CompileInsert(q *queryir.Insert) (*Statement, error) {
	if err := queryir.Validate(q); err != nil {
		return nil, err
	}
	cc := c.newCompilation()
	e, err := cc.entity(q.EntityType)
	if err != nil {
		return nil, err
	}

	cols, vals, err := cc.assignments(e, q.Values, cc.rowScope(e))
	if err != nil {
		return nil, err
	}
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = cc.ident(col)
	}

	sql := "INSERT INTO " + cc.ident(e.Table) +
		" (" + strings.Join(quoted, ", ") + ") VALUES (" + strings.Join(vals, ", ") + ")"
	st := &Statement{SQL: sql}
	c.logStatement("insert", q.EntityType, 0, st)
	return st, nil
}

// CompileUpdate compiles an UPDATE of the rows matching Where.
func (c *Compiler) CompileUpdate(q *queryir.Update) (*Statement, error) {
	if err := queryir.Validate(q); err != nil {
		return nil, err
	}
	cc := c.newCompilation()
	e, err := cc.entity(q.EntityType)
	if err != nil {
		return nil, err
	}
	sc := cc.rowScope(e)

	cols, vals, err := cc.assignments(e, q.Values, sc)
	if err != nil {
		return nil, err
	}
	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = cc.ident(col) + " = " + vals[i]
	}

	where, err := cc.rowWhere(q.Where, e, sc, q.WithDeleted)
	if err != nil {
		return nil, err
	}
	sql := "UPDATE " + cc.from(e.Table, sc.alias) + " SET " + strings.Join(sets, ", ") + where
	st := &Statement{SQL: sql}
	c.logStatement("update", q.EntityType, 0, st)
	return st, nil
}

// CompileDelete compiles a soft delete (deleted = 1), or a DELETE when Hard.
func (c *Compiler) CompileDelete(q *queryir.Delete) (*Statement, error) {
	if err := queryir.Validate(q); err != nil {
		return nil, err
	}
	cc := c.newCompilation()
	e, err := cc.entity(q.EntityType)
	if err != nil {
		return nil, err
	}
	sc := cc.rowScope(e)

	where, err := cc.rowWhere(q.Where, e, sc, q.WithDeleted)
	if err != nil {
		return nil, err
	}

	var sql string
	if q.Hard {
		sql = "DELETE FROM " + cc.from(e.Table, sc.alias) + where
	} else {
		deleted, ok := e.Attribute("deleted")
		if !ok {
			return nil, queryir.Errorf(queryir.KindInvalidQuery, q.EntityType, "entity %s has no deleted attribute; use a hard delete", e.Name)
		}
		sql = "UPDATE " + cc.from(e.Table, sc.alias) + " SET " + cc.ident(deleted.Column) + " = 1" + where
	}
	st := &Statement{SQL: sql}
	c.logStatement("delete", q.EntityType, 0, st)
	return st, nil
}

// assignments compiles the storable assignments of values into parallel
// column and value lists.
func (cc *compilation) assignments(e *schema.Entity, values queryir.Values, sc scope) ([]string, []string, error) {
	var cols, vals []string
	for _, a := range values {
		b, err := cc.reg.ResolveAttribute(e.Name, a.Attribute)
		if err != nil {
			return nil, nil, err
		}
		if b.Kind != schema.BindColumn {
			continue
		}

		var v string
		if a.Expression != "" {
			v, err = cc.expression(a.Expression, sc)
		} else {
			v, err = cc.assignedValue(a)
		}
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, b.Column)
		vals = append(vals, v)
	}
	if len(cols) == 0 {
		return nil, nil, queryir.Errorf(queryir.KindInvalidQuery, e.Name, "no storable attribute among the values")
	}
	return cols, vals, nil
}

func (cc *compilation) assignedValue(a queryir.Assignment) (string, error) {
	v, err := ir.FromGo(a.Value)
	if err != nil {
		return "", queryir.Errorf(queryir.KindMalformedFilter, a.Attribute, "%v", err)
	}
	return cc.valueLiteral(v)
}

// rowWhere renders " WHERE ..." for single-table statements, soft delete
// included unless withDeleted. Returns "" when there is nothing to filter.
func (cc *compilation) rowWhere(f queryir.Filter, e *schema.Entity, sc scope, withDeleted bool) (string, error) {
	parts, err := cc.filter(f, sc)
	if err != nil {
		return "", err
	}
	if !withDeleted {
		if s := cc.softDelete(e, sc.alias); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " WHERE " + joinAnd(parts), nil
}
