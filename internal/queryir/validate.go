package queryir

import (
	"fmt"
	"strings"
)

// Validate checks the top-level shape of a query before compilation.
//
// It catches inconsistencies that need no schema: missing entity types,
// negative limits, unknown directions and actions, empty join targets.
// Filter contents and attribute names are checked by the compiler, which
// knows the schema.
//
// All problems are reported at once, joined into one KindInvalidQuery
// error. Validate is a pure function with no side effects.
func Validate(q Query) error {
	v := &validator{}
	v.validateQuery(q)
	if len(v.problems) == 0 {
		return nil
	}
	return &CompileError{Kind: KindInvalidQuery, Message: strings.Join(v.problems, "; ")}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addProblem("nil query")
	case Select:
		v.validateSelect(query, true)
	case *Select:
		v.validateSelect(*query, true)
	case SelectRelated:
		v.validateRelated(query)
	case *SelectRelated:
		v.validateRelated(*query)
	case Insert:
		v.validateValues(query.EntityType, query.Values)
	case *Insert:
		v.validateValues(query.EntityType, query.Values)
	case Update:
		v.validateValues(query.EntityType, query.Values)
	case *Update:
		v.validateValues(query.EntityType, query.Values)
	case Delete:
		v.requireEntity(query.EntityType)
	case *Delete:
		v.requireEntity(query.EntityType)
	case RelationChange:
		v.validateRelationChange(query)
	case *RelationChange:
		v.validateRelationChange(*query)
	default:
		v.addProblem("unsupported query type %T", q)
	}
}

func (v *validator) requireEntity(entityType string) {
	if strings.TrimSpace(entityType) == "" {
		v.addProblem("entity type is required")
	}
}

func (v *validator) validateSelect(s Select, needEntity bool) {
	if needEntity {
		v.requireEntity(s.EntityType)
	}
	for i, item := range s.Select {
		if strings.TrimSpace(item.Expr) == "" {
			v.addProblem("select[%d]: empty expression", i)
		}
	}
	for i, j := range s.Joins {
		v.validateJoin(fmt.Sprintf("joins[%d]", i), j)
	}
	for i, j := range s.LeftJoins {
		v.validateJoin(fmt.Sprintf("leftJoins[%d]", i), j)
	}
	for i, g := range s.GroupBy {
		if strings.TrimSpace(g) == "" {
			v.addProblem("groupBy[%d]: empty expression", i)
		}
	}
	if !validDirection(s.Order) {
		v.addProblem("order: invalid direction %q", s.Order)
	}
	for i, o := range s.OrderBy {
		switch {
		case o.Expr != "" && o.Position != 0:
			v.addProblem("orderBy[%d]: both expression and position set", i)
		case o.Expr == "" && o.Position < 1:
			v.addProblem("orderBy[%d]: position must be 1 or greater", i)
		}
		if !validDirection(o.Direction) {
			v.addProblem("orderBy[%d]: invalid direction %q", i, o.Direction)
		}
	}
	if s.Limit != nil && *s.Limit < 0 {
		v.addProblem("limit must not be negative")
	}
	if s.Offset != nil && *s.Offset < 0 {
		v.addProblem("offset must not be negative")
	}
	if s.Aggregate != nil && (s.Aggregate.Function == "" || s.Aggregate.Attribute == "") {
		v.addProblem("aggregate needs a function and an attribute")
	}
}

func (v *validator) validateJoin(where string, j Join) {
	if strings.TrimSpace(j.Target) == "" {
		v.addProblem("%s: empty target", where)
	}
	if j.Table && j.OnlyMiddle {
		v.addProblem("%s: onlyMiddle applies to many-to-many relations, not tables", where)
	}
}

func (v *validator) validateRelated(r SelectRelated) {
	v.requireEntity(r.EntityType)
	if r.ID == "" {
		v.addProblem("id is required")
	}
	if r.Relation == "" {
		v.addProblem("relation is required")
	}
	if r.Query != nil {
		v.validateSelect(*r.Query, false)
	}
}

func (v *validator) validateValues(entityType string, values Values) {
	v.requireEntity(entityType)
	if len(values) == 0 {
		v.addProblem("at least one value is required")
	}
	seen := make(map[string]bool, len(values))
	for i, a := range values {
		if a.Attribute == "" {
			v.addProblem("values[%d]: empty attribute", i)
			continue
		}
		if seen[a.Attribute] {
			v.addProblem("values[%d]: attribute %q assigned twice", i, a.Attribute)
		}
		seen[a.Attribute] = true
	}
}

func (v *validator) validateRelationChange(c RelationChange) {
	if !ValidRelationActions[c.Action] {
		v.addProblem("unknown relation action %q", c.Action)
	}
	v.requireEntity(c.EntityType)
	if c.ID == "" {
		v.addProblem("id is required")
	}
	if c.Relation == "" {
		v.addProblem("relation is required")
	}
	switch c.Action {
	case ActionRelate, ActionUnrelate:
		if c.ForeignID == "" {
			v.addProblem("%s needs a foreign id", c.Action)
		}
	case ActionMassRelate:
		if c.Query == nil {
			v.addProblem("massRelate needs a query")
		} else {
			v.validateSelect(*c.Query, false)
		}
	}
}

func validDirection(d string) bool {
	switch strings.ToUpper(d) {
	case "", "ASC", "DESC":
		return true
	}
	return false
}
