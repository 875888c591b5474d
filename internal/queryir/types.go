package queryir

// Query represents a statement request handed to the SQL compiler.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in the compiler.
//
// Query types:
//   - Select: attribute selection with filters, joins, grouping and ordering
//   - SelectRelated: records reached from one entity through a relation
//   - Insert, Update, Delete: single-table mutations
//   - RelationChange: relate/unrelate/mass-relate through a relation
//
// All queries are read-only inputs; the compiler never mutates them.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Select describes a SELECT statement over one entity type.
//
// Semantics:
//
//	SELECT <select> FROM <entity>
//	  <belongs-to joins implied by select/where/order> <joins> <leftJoins>
//	  WHERE <where> AND <entity>.deleted = '0'
//	  GROUP BY <groupBy> HAVING <having>
//	  ORDER BY <orderBy> LIMIT <offset>, <limit>
//
// Example:
//
//	Select{
//	  EntityType: "Comment",
//	  Select:     Items("id", "postName"),
//	  Where:      Filter{W("name*", "test%")},
//	  OrderBy:    []OrderItem{{Expr: "name", Direction: "DESC"}},
//	  Limit:      Int(10),
//	}
//
// Translates to SQL:
//
//	SELECT comment.id AS `id`, post.name AS `postName` FROM `comment`
//	LEFT JOIN `post` AS `post` ON comment.post_id = post.id
//	WHERE comment.name LIKE 'test%' AND comment.deleted = '0'
//	ORDER BY comment.name DESC LIMIT 0, 10
type Select struct {
	EntityType string

	// Select lists the selected expressions. Nil means every selectable
	// attribute in declaration order.
	Select []SelectItem

	Where     Filter
	Joins     []Join // INNER JOIN
	LeftJoins []Join // LEFT JOIN
	GroupBy   []string
	Having    Filter

	OrderBy []OrderItem
	Order   string // default direction for OrderBy items without one; ASC when empty

	Limit  *int
	Offset *int

	Distinct        bool
	WithDeleted     bool // skip soft-delete predicates
	SkipTextColumns bool // leave text attributes out of the default select list

	// Aggregate replaces the select list with FUNC(attr) AS AggregateValue.
	Aggregate *Aggregate
}

func (Select) queryNode() {}

// SelectItem is one entry of a select list.
// Alias defaults to Expr verbatim.
type SelectItem struct {
	Expr  string
	Alias string
}

// Items builds select items from bare expressions.
func Items(exprs ...string) []SelectItem {
	items := make([]SelectItem, len(exprs))
	for i, e := range exprs {
		items[i] = SelectItem{Expr: e}
	}
	return items
}

// Join requests a join.
//
// Target names a relation of the query entity, or a table when Table is
// set (entity-type spelling, converted to snake case). Alias defaults to
// Target. Conditions are ANDed onto the ON clause; bare attributes in them
// resolve against the joined alias.
type Join struct {
	Target     string
	Alias      string
	Conditions Filter
	OnlyMiddle bool   // many-to-many: join the junction table only
	Table      bool   // Target is a table, not a relation
	ParentType string // belongs-to-parent: entity type of the parent to join
}

// OrderItem is one ORDER BY entry.
//
// Exactly one of Expr or Position is set. Expr may be an attribute, a
// function expression or a value list "LIST:attr:v1,v2". Position is a
// 1-based index into the select list.
type OrderItem struct {
	Expr      string
	Position  int
	Direction string // ASC | DESC; empty uses Select.Order
}

// Aggregate describes an aggregate selection.
type Aggregate struct {
	Function  string // COUNT, SUM, AVG, MIN, MAX
	Attribute string
}

// Int returns a pointer to n, for Limit and Offset.
func Int(n int) *int {
	return &n
}

// SelectRelated selects the records reached from one record through a relation.
//
// Example:
//
//	SelectRelated{EntityType: "Post", ID: "1", Relation: "tags"}
//
// Translates to SQL:
//
//	SELECT tag.id AS `id`, ... FROM `tag`
//	JOIN `post_tag` ON tag.id = post_tag.tag_id AND post_tag.post_id = '1' AND post_tag.deleted = '0'
//	WHERE tag.deleted = '0'
type SelectRelated struct {
	EntityType string
	ID         string
	Relation   string

	// ForeignID is the owner's foreign key value for belongsTo and
	// belongsToParent relations. When empty the key is read with a
	// subquery over the owner row.
	ForeignID string

	// ParentType names the parent entity type of a belongsToParent relation.
	ParentType string

	// Query refines the selection over the related entity. Its EntityType
	// is ignored.
	Query *Select
}

func (SelectRelated) queryNode() {}

// Insert writes one row.
type Insert struct {
	EntityType string
	Values     Values
}

func (Insert) queryNode() {}

// Update rewrites the rows matching Where.
type Update struct {
	EntityType  string
	Values      Values
	Where       Filter
	WithDeleted bool
}

func (Update) queryNode() {}

// Delete removes the rows matching Where. Soft delete (deleted = 1) unless Hard.
type Delete struct {
	EntityType  string
	Where       Filter
	Hard        bool
	WithDeleted bool
}

func (Delete) queryNode() {}

// RelationAction is the kind of relation change.
type RelationAction string

const (
	ActionRelate      RelationAction = "relate"
	ActionUnrelate    RelationAction = "unrelate"
	ActionUnrelateAll RelationAction = "unrelateAll"
	ActionMassRelate  RelationAction = "massRelate"
)

// ValidRelationActions defines allowed relation actions.
var ValidRelationActions = map[RelationAction]bool{
	ActionRelate:      true,
	ActionUnrelate:    true,
	ActionUnrelateAll: true,
	ActionMassRelate:  true,
}

// RelationChange links or unlinks records through a relation of EntityType.
//
// ForeignID identifies the other record for relate/unrelate. MassRelate
// relates every record matched by Query instead. ParentType is the entity
// type of the foreign record when relating through belongsToParent.
type RelationChange struct {
	Action     RelationAction
	EntityType string
	ID         string
	Relation   string
	ForeignID  string
	ParentType string
	Query      *Select
}

func (RelationChange) queryNode() {}

// Assignment sets one attribute in an INSERT or UPDATE.
// Expression, when set, is compiled in place of Value.
type Assignment struct {
	Attribute  string
	Value      any
	Expression string
}

// Values is an ordered list of assignments.
type Values []Assignment

// Set builds a literal assignment.
func Set(attribute string, value any) Assignment {
	return Assignment{Attribute: attribute, Value: value}
}

// SetExpr builds an assignment whose value is an expression.
func SetExpr(attribute, expression string) Assignment {
	return Assignment{Attribute: attribute, Expression: expression}
}
