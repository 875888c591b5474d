package ir

// EntitySpec is the compiled metadata of one entity type.
//
// Attributes and Relations keep declaration order: the default select list
// of a query is the attribute order, and joins derived from it follow it.
type EntitySpec struct {
	Name       string          `json:"name"`
	Table      string          `json:"table,omitempty"` // defaults to snake_case(Name)
	Attributes []AttributeSpec `json:"attributes"`
	Relations  []RelationSpec  `json:"relations,omitempty"`
}

// AttributeSpec describes one entity attribute.
type AttributeSpec struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Column string `json:"column,omitempty"` // defaults to snake_case(Name)

	// NotStorable attributes have no column; they are never selected or written.
	NotStorable bool `json:"not_storable,omitempty"`

	// SkipSelect attributes have a column but are left out of the default select list.
	SkipSelect bool `json:"skip_select,omitempty"`

	// Relation and Field are set for Type "foreign": the attribute reads
	// Field of the entity reached through the belongs-to Relation.
	Relation string `json:"relation,omitempty"`
	Field    string `json:"field,omitempty"`

	// Composite is set for Type "personName".
	Composite *CompositeSpec `json:"composite,omitempty"`
}

// CompositeSpec describes an attribute assembled from sibling attributes.
type CompositeSpec struct {
	Parts    []CompositePart `json:"parts"`
	NullSafe bool            `json:"null_safe,omitempty"` // wrap parts in IFNULL(part, '')
	Search   []string        `json:"search,omitempty"`    // LIKE fan-out parts; defaults to all parts
	OrderBy  []string        `json:"order_by,omitempty"`  // ORDER BY fan-out; defaults to all parts
}

// CompositePart is one sibling attribute of a composite, with the literal
// text placed before it in the concatenation.
type CompositePart struct {
	Attribute string `json:"attribute"`
	Separator string `json:"separator,omitempty"`
}

// RelationSpec describes a relation from the owning entity to another.
//
// Key and ForeignKey are attribute names (not columns). Their meaning per kind:
//
//	belongsTo:       Key = own foreign key attribute (default <name>Id), ForeignKey = target key (default id)
//	belongsToParent: Key = own id attribute (default <name>Id), ForeignType = own type attribute (default <name>Type)
//	hasMany:         Key = own key (default id), ForeignKey = child attribute (default <entity>Id)
//	hasChildren:     Key = own key (default id), ForeignKey = child id attribute (default parentId),
//	                 ForeignType = child type attribute (default parentType)
//	manyMany:        Key = own key (default id), ForeignKey = target key (default id),
//	                 Junction = junction name, MidKeys = [near, far] junction attributes
type RelationSpec struct {
	Name        string            `json:"name"`
	Kind        string            `json:"kind"`
	Entity      string            `json:"entity,omitempty"`
	Key         string            `json:"key,omitempty"`
	ForeignKey  string            `json:"foreign_key,omitempty"`
	ForeignType string            `json:"foreign_type,omitempty"`
	Junction    string            `json:"junction,omitempty"`
	MidKeys     []string          `json:"mid_keys,omitempty"`
	Conditions  map[string]string `json:"conditions,omitempty"` // junction attribute -> literal
}

// Relation kinds.
const (
	RelationBelongsTo       = "belongsTo"
	RelationBelongsToParent = "belongsToParent"
	RelationHasMany         = "hasMany"
	RelationHasChildren     = "hasChildren"
	RelationManyMany        = "manyMany"
)

// ValidRelationKinds defines allowed relation kinds.
var ValidRelationKinds = map[string]bool{
	RelationBelongsTo:       true,
	RelationBelongsToParent: true,
	RelationHasMany:         true,
	RelationHasChildren:     true,
	RelationManyMany:        true,
}

// Attribute types.
const (
	TypeID          = "id"
	TypeVarchar     = "varchar"
	TypeText        = "text"
	TypeInt         = "int"
	TypeFloat       = "float"
	TypeBool        = "bool"
	TypeDate        = "date"
	TypeDatetime    = "datetime"
	TypeEnum        = "enum"
	TypeForeign     = "foreign"
	TypeForeignID   = "foreignId"
	TypeForeignType = "foreignType"
	TypeJSONArray   = "jsonArray"
	TypeJSONObject  = "jsonObject"
	TypePersonName  = "personName"
)

// ValidAttributeTypes defines allowed attribute types.
var ValidAttributeTypes = map[string]bool{
	TypeID:          true,
	TypeVarchar:     true,
	TypeText:        true,
	TypeInt:         true,
	TypeFloat:       true,
	TypeBool:        true,
	TypeDate:        true,
	TypeDatetime:    true,
	TypeEnum:        true,
	TypeForeign:     true,
	TypeForeignID:   true,
	TypeForeignType: true,
	TypeJSONArray:   true,
	TypeJSONObject:  true,
	TypePersonName:  true,
}

// canonical returns a canonical-JSON-safe view of the spec for hashing.
func (e EntitySpec) canonical() map[string]any {
	attrs := make([]any, len(e.Attributes))
	for i, a := range e.Attributes {
		m := map[string]any{
			"name":         a.Name,
			"type":         a.Type,
			"column":       a.Column,
			"not_storable": a.NotStorable,
			"skip_select":  a.SkipSelect,
			"relation":     a.Relation,
			"field":        a.Field,
		}
		if a.Composite != nil {
			parts := make([]any, len(a.Composite.Parts))
			for j, p := range a.Composite.Parts {
				parts[j] = map[string]any{"attribute": p.Attribute, "separator": p.Separator}
			}
			m["composite"] = map[string]any{
				"parts":     parts,
				"null_safe": a.Composite.NullSafe,
				"search":    a.Composite.Search,
				"order_by":  a.Composite.OrderBy,
			}
		}
		attrs[i] = m
	}

	rels := make([]any, len(e.Relations))
	for i, r := range e.Relations {
		conds := make(map[string]any, len(r.Conditions))
		for k, v := range r.Conditions {
			conds[k] = v
		}
		rels[i] = map[string]any{
			"name":         r.Name,
			"kind":         r.Kind,
			"entity":       r.Entity,
			"key":          r.Key,
			"foreign_key":  r.ForeignKey,
			"foreign_type": r.ForeignType,
			"junction":     r.Junction,
			"mid_keys":     r.MidKeys,
			"conditions":   conds,
		}
	}

	return map[string]any{
		"name":       e.Name,
		"table":      e.Table,
		"attributes": attrs,
		"relations":  rels,
	}
}
