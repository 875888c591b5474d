package queryir

import "strings"

// Filter is an ordered list of filter entries. Sibling entries are ANDed.
//
// Entry values may be:
//   - a scalar (string, number, bool, nil or an ir.IRValue) for comparisons
//   - a list ([]any, []string, []int, ir.IRArray) for IN / NOT IN
//   - a Filter or []Filter for the OR, AND and NOT groups
//   - a *Select (or Select) for the =s / !=s subquery operators
//   - an expression string when the key carries the raw marker ":"
type Filter []Entry

// Entry is one key/value pair of a Filter, or a bare expression.
type Entry struct {
	Key   string
	Value any

	// Bare entries are standalone boolean expressions (full-text matches,
	// IS_NULL:(...)) with no value; Key holds the expression text.
	Bare bool
}

// Reserved group keys.
const (
	KeyOr  = "OR"
	KeyAnd = "AND"
	KeyNot = "NOT"
)

// W builds a keyed filter entry.
// Example: Filter{W("name*", "test%"), W("id!=", []string{"1"})}
func W(key string, value any) Entry {
	return Entry{Key: key, Value: value}
}

// Bare builds a standalone expression entry.
// Example: Bare("MATCH_BOOLEAN:name,description:test +hello")
func Bare(expr string) Entry {
	return Entry{Key: expr, Bare: true}
}

// Or builds an OR group; each group is ANDed internally.
func Or(groups ...Filter) Entry {
	return Entry{Key: KeyOr, Value: groups}
}

// And builds an explicit, parenthesized AND group.
func And(groups ...Filter) Entry {
	return Entry{Key: KeyAnd, Value: groups}
}

// Not builds a NOT group.
func Not(f Filter) Entry {
	return Entry{Key: KeyNot, Value: f}
}

// IsGroupKey reports whether key is one of the reserved group keys.
func IsGroupKey(key string) bool {
	return key == KeyOr || key == KeyAnd || key == KeyNot
}

// Operator is a comparison parsed from a filter key suffix.
type Operator int

const (
	OpEquals Operator = iota
	OpNotEquals
	OpGreater
	OpLess
	OpGreaterOrEqual
	OpLessOrEqual
	OpLike
	OpNotLike
	OpIn    // =s
	OpNotIn // !=s
)

// SQL returns the operator's SQL spelling for scalar right-hand sides.
func (o Operator) SQL() string {
	switch o {
	case OpNotEquals:
		return "<>"
	case OpGreater:
		return ">"
	case OpLess:
		return "<"
	case OpGreaterOrEqual:
		return ">="
	case OpLessOrEqual:
		return "<="
	case OpLike:
		return "LIKE"
	case OpNotLike:
		return "NOT LIKE"
	case OpIn:
		return "IN"
	case OpNotIn:
		return "NOT IN"
	default:
		return "="
	}
}

// Negated reports whether the operator excludes matches (!=, !*, !=s).
func (o Operator) Negated() bool {
	return o == OpNotEquals || o == OpNotLike || o == OpNotIn
}

// Condition is a filter key parsed into its parts.
//
// Keys are parsed once at the filter boundary so the compiler never
// re-reads suffixes:
//
//	"name*"                  -> {Path: "name", Op: OpLike}
//	"name!=:"                -> {Path: "name", Op: OpNotEquals, Raw: true}
//	"post.id!=s"             -> {Path: "post.id", Op: OpNotIn, Subquery: true}
//	"COUNT:comment.id>"      -> {Path: "COUNT:comment.id", Op: OpGreater}
type Condition struct {
	Path     string
	Op       Operator
	Raw      bool // right-hand side is an expression, not a literal
	Subquery bool // right-hand side is a Select
}

// operatorSuffixes is checked in order; two-character suffixes first.
var operatorSuffixes = []struct {
	suffix string
	op     Operator
}{
	{"!=", OpNotEquals},
	{">=", OpGreaterOrEqual},
	{"<=", OpLessOrEqual},
	{"!*", OpNotLike},
	{"*", OpLike},
	{"=", OpEquals},
	{">", OpGreater},
	{"<", OpLess},
}

// ParseKey splits a filter key into path, operator and right-hand side kind.
func ParseKey(key string) Condition {
	k := strings.TrimSpace(key)

	if strings.HasSuffix(k, "!=s") {
		return Condition{Path: strings.TrimSpace(k[:len(k)-3]), Op: OpNotIn, Subquery: true}
	}
	if strings.HasSuffix(k, "=s") {
		return Condition{Path: strings.TrimSpace(k[:len(k)-2]), Op: OpIn, Subquery: true}
	}

	c := Condition{Op: OpEquals}
	if strings.HasSuffix(k, ":") {
		c.Raw = true
		k = k[:len(k)-1]
	}
	for _, s := range operatorSuffixes {
		if strings.HasSuffix(k, s.suffix) {
			c.Op = s.op
			k = k[:len(k)-len(s.suffix)]
			break
		}
	}
	c.Path = strings.TrimSpace(k)
	return c
}
