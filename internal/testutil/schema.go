package testutil

import (
	"github.com/roach88/ormsql/internal/ir"
	"github.com/roach88/ormsql/internal/schema"
)

// Entities returns the metadata shared by the compiler, store and CLI tests.
//
// It covers every relation kind:
//   - Post belongsTo User (createdBy), hasMany Comment, hasChildren Note,
//     manyMany Tag through post_tag
//   - Account manyMany Team through entity_team with an entityType condition
//   - Note belongsToParent (parent)
//   - Contact manyMany Contact through contact_relation (self reference)
//
// and both composite name flavours (Contact plain, User null-safe). Job
// carries a JSON array column.
func Entities() []ir.EntitySpec {
	return []ir.EntitySpec{
		{
			Name: "Account",
			Attributes: []ir.AttributeSpec{
				{Name: "id", Type: ir.TypeID},
				{Name: "name", Type: ir.TypeVarchar},
				{Name: "deleted", Type: ir.TypeBool},
			},
			Relations: []ir.RelationSpec{
				{
					Name:       "teams",
					Kind:       ir.RelationManyMany,
					Entity:     "Team",
					Junction:   "EntityTeam",
					MidKeys:    []string{"entityId", "teamId"},
					Conditions: map[string]string{"entityType": "Account"},
				},
			},
		},
		{
			Name: "Team",
			Attributes: []ir.AttributeSpec{
				{Name: "id", Type: ir.TypeID},
				{Name: "name", Type: ir.TypeVarchar},
				{Name: "deleted", Type: ir.TypeBool},
			},
		},
		{
			Name: "Article",
			Attributes: []ir.AttributeSpec{
				{Name: "id", Type: ir.TypeID},
				{Name: "name", Type: ir.TypeVarchar},
				{Name: "description", Type: ir.TypeText},
				{Name: "deleted", Type: ir.TypeBool},
			},
		},
		{
			Name: "Post",
			Attributes: []ir.AttributeSpec{
				{Name: "id", Type: ir.TypeID},
				{Name: "name", Type: ir.TypeVarchar},
				{Name: "createdByName", Type: ir.TypeForeign, Relation: "createdBy", Field: "name"},
				{Name: "createdById", Type: ir.TypeForeignID},
				{Name: "deleted", Type: ir.TypeBool},
			},
			Relations: []ir.RelationSpec{
				{Name: "createdBy", Kind: ir.RelationBelongsTo, Entity: "User"},
				{Name: "tags", Kind: ir.RelationManyMany},
				{Name: "comments", Kind: ir.RelationHasMany},
				{Name: "notes", Kind: ir.RelationHasChildren},
			},
		},
		{
			Name: "Comment",
			Attributes: []ir.AttributeSpec{
				{Name: "id", Type: ir.TypeID},
				{Name: "postId", Type: ir.TypeForeignID},
				{Name: "postName", Type: ir.TypeForeign, Relation: "post", Field: "name"},
				{Name: "name", Type: ir.TypeVarchar},
				{Name: "deleted", Type: ir.TypeBool},
				{Name: "createdAt", Type: ir.TypeDatetime, SkipSelect: true},
			},
			Relations: []ir.RelationSpec{
				{Name: "post", Kind: ir.RelationBelongsTo},
			},
		},
		{
			Name: "Tag",
			Attributes: []ir.AttributeSpec{
				{Name: "id", Type: ir.TypeID},
				{Name: "name", Type: ir.TypeVarchar},
				{Name: "deleted", Type: ir.TypeBool},
			},
		},
		{
			Name: "Note",
			Attributes: []ir.AttributeSpec{
				{Name: "id", Type: ir.TypeID},
				{Name: "name", Type: ir.TypeVarchar},
				{Name: "parentId", Type: ir.TypeForeignID},
				{Name: "parentType", Type: ir.TypeForeignType},
				{Name: "deleted", Type: ir.TypeBool},
			},
			Relations: []ir.RelationSpec{
				{Name: "parent", Kind: ir.RelationBelongsToParent},
			},
		},
		{
			Name: "Contact",
			Attributes: []ir.AttributeSpec{
				{Name: "id", Type: ir.TypeID},
				{Name: "name", Type: ir.TypePersonName, Composite: &ir.CompositeSpec{
					Parts: []ir.CompositePart{
						{Attribute: "firstName"},
						{Attribute: "lastName", Separator: " "},
					},
				}},
				{Name: "firstName", Type: ir.TypeVarchar},
				{Name: "lastName", Type: ir.TypeVarchar},
				{Name: "deleted", Type: ir.TypeBool},
			},
			Relations: []ir.RelationSpec{
				{
					Name:     "relatedContacts",
					Kind:     ir.RelationManyMany,
					Entity:   "Contact",
					Junction: "ContactRelation",
					MidKeys:  []string{"contactId", "relatedContactId"},
				},
			},
		},
		{
			Name: "User",
			Attributes: []ir.AttributeSpec{
				{Name: "id", Type: ir.TypeID},
				{Name: "salutationName", Type: ir.TypeEnum},
				{Name: "firstName", Type: ir.TypeVarchar},
				{Name: "lastName", Type: ir.TypeVarchar},
				{Name: "name", Type: ir.TypePersonName, Composite: &ir.CompositeSpec{
					Parts: []ir.CompositePart{
						{Attribute: "salutationName"},
						{Attribute: "firstName"},
						{Attribute: "lastName", Separator: " "},
					},
					NullSafe: true,
					Search:   []string{"firstName", "lastName"},
					OrderBy:  []string{"firstName", "lastName"},
				}},
				{Name: "deleted", Type: ir.TypeBool},
			},
		},
		{
			Name: "Job",
			Attributes: []ir.AttributeSpec{
				{Name: "id", Type: ir.TypeID},
				{Name: "array", Type: ir.TypeJSONArray},
				{Name: "deleted", Type: ir.TypeBool},
			},
		},
	}
}

// Registry returns a resolved registry over Entities.
func Registry() *schema.Registry {
	return schema.MustRegistry(Entities())
}
