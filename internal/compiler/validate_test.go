package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ormsql/internal/ir"
	"github.com/roach88/ormsql/internal/testutil"
)

// =============================================================================
// EntitySpec Validation Tests
// =============================================================================

func TestValidateEntitySpecValid(t *testing.T) {
	for _, spec := range testutil.Entities() {
		t.Run(spec.Name, func(t *testing.T) {
			assert.Empty(t, Validate(spec))
		})
	}
}

func TestValidateSchemaValid(t *testing.T) {
	assert.Empty(t, Validate(testutil.Entities()))
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateEntitySpec(t *testing.T) {
	tests := []struct {
		name string
		spec ir.EntitySpec
		want []string
	}{
		{
			name: "lower case name",
			spec: ir.EntitySpec{Name: "post", Attributes: []ir.AttributeSpec{{Name: "id", Type: ir.TypeID}}},
			want: []string{ErrEntityNameInvalid},
		},
		{
			name: "no attributes",
			spec: ir.EntitySpec{Name: "Post"},
			want: []string{ErrEntityNoAttributes},
		},
		{
			name: "unknown type",
			spec: ir.EntitySpec{Name: "Post", Attributes: []ir.AttributeSpec{{Name: "price", Type: "money"}}},
			want: []string{ErrInvalidAttributeType},
		},
		{
			name: "duplicate attribute",
			spec: ir.EntitySpec{Name: "Post", Attributes: []ir.AttributeSpec{{Name: "id", Type: ir.TypeID}, {Name: "id", Type: ir.TypeID}}},
			want: []string{ErrDuplicateName},
		},
		{
			name: "bad table",
			spec: ir.EntitySpec{Name: "Post", Table: "posts; drop", Attributes: []ir.AttributeSpec{{Name: "id", Type: ir.TypeID}}},
			want: []string{ErrIdentifierInvalid},
		},
		{
			name: "bad column",
			spec: ir.EntitySpec{Name: "Post", Attributes: []ir.AttributeSpec{{Name: "id", Type: ir.TypeID, Column: "a`b"}}},
			want: []string{ErrIdentifierInvalid},
		},
		{
			name: "incomplete foreign",
			spec: ir.EntitySpec{Name: "Post", Attributes: []ir.AttributeSpec{{Name: "authorName", Type: ir.TypeForeign, Relation: "author"}}},
			want: []string{ErrForeignIncomplete},
		},
		{
			name: "person name without parts",
			spec: ir.EntitySpec{Name: "Post", Attributes: []ir.AttributeSpec{{Name: "name", Type: ir.TypePersonName}}},
			want: []string{ErrCompositeInvalid},
		},
		{
			name: "parts on a plain attribute",
			spec: ir.EntitySpec{Name: "Post", Attributes: []ir.AttributeSpec{
				{Name: "name", Type: ir.TypeVarchar, Composite: &ir.CompositeSpec{Parts: []ir.CompositePart{{Attribute: "a"}}}},
			}},
			want: []string{ErrCompositeInvalid},
		},
		{
			name: "duplicate relation and bad kind",
			spec: ir.EntitySpec{Name: "Post", Attributes: []ir.AttributeSpec{{Name: "id", Type: ir.TypeID}}, Relations: []ir.RelationSpec{
				{Name: "tags", Kind: ir.RelationManyMany},
				{Name: "tags", Kind: "manyToMany"},
			}},
			want: []string{ErrDuplicateName, ErrInvalidRelationKind},
		},
		{
			name: "mid keys",
			spec: ir.EntitySpec{Name: "Post", Attributes: []ir.AttributeSpec{{Name: "id", Type: ir.TypeID}}, Relations: []ir.RelationSpec{
				{Name: "tags", Kind: ir.RelationManyMany, MidKeys: []string{"postId", "postId"}},
				{Name: "comments", Kind: ir.RelationHasMany, MidKeys: []string{"a", "b"}},
			}},
			want: []string{ErrMidKeysInvalid, ErrMidKeysInvalid},
		},
		{
			name: "bad junction",
			spec: ir.EntitySpec{Name: "Post", Attributes: []ir.AttributeSpec{{Name: "id", Type: ir.TypeID}}, Relations: []ir.RelationSpec{
				{Name: "tags", Kind: ir.RelationManyMany, Junction: "post_tag"},
			}},
			want: []string{ErrIdentifierInvalid},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codes(Validate(&tt.spec)))
		})
	}
}

// =============================================================================
// Schema Validation Tests
// =============================================================================

func TestValidateSchemaReferences(t *testing.T) {
	user := ir.EntitySpec{Name: "User", Attributes: []ir.AttributeSpec{
		{Name: "id", Type: ir.TypeID},
		{Name: "firstName", Type: ir.TypeVarchar},
		{Name: "teamName", Type: ir.TypeForeign, Relation: "team", Field: "name"},
	}, Relations: []ir.RelationSpec{{Name: "team", Kind: ir.RelationBelongsTo, Entity: "Team"}}}

	tests := []struct {
		name string
		spec ir.EntitySpec
		want []string
	}{
		{
			name: "unknown target",
			spec: ir.EntitySpec{Name: "Post", Attributes: []ir.AttributeSpec{{Name: "id", Type: ir.TypeID}}, Relations: []ir.RelationSpec{
				{Name: "tags", Kind: ir.RelationManyMany},
			}},
			want: []string{ErrUnknownEntity},
		},
		{
			name: "foreign through has many",
			spec: ir.EntitySpec{Name: "Post", Attributes: []ir.AttributeSpec{
				{Name: "id", Type: ir.TypeID},
				{Name: "usersName", Type: ir.TypeForeign, Relation: "users", Field: "firstName"},
			}, Relations: []ir.RelationSpec{{Name: "users", Kind: ir.RelationHasMany, ForeignKey: "id"}}},
			want: []string{ErrForeignRelation},
		},
		{
			name: "foreign field missing",
			spec: ir.EntitySpec{Name: "Post", Attributes: []ir.AttributeSpec{
				{Name: "id", Type: ir.TypeID},
				{Name: "authorName", Type: ir.TypeForeign, Relation: "author", Field: "nickname"},
				{Name: "authorId", Type: ir.TypeForeignID},
			}, Relations: []ir.RelationSpec{{Name: "author", Kind: ir.RelationBelongsTo, Entity: "User"}}},
			want: []string{ErrForeignField},
		},
		{
			name: "foreign field is foreign",
			spec: ir.EntitySpec{Name: "Post", Attributes: []ir.AttributeSpec{
				{Name: "id", Type: ir.TypeID},
				{Name: "authorTeam", Type: ir.TypeForeign, Relation: "author", Field: "teamName"},
				{Name: "authorId", Type: ir.TypeForeignID},
			}, Relations: []ir.RelationSpec{{Name: "author", Kind: ir.RelationBelongsTo, Entity: "User"}}},
			want: []string{ErrForeignField},
		},
		{
			name: "missing belongs to key",
			spec: ir.EntitySpec{Name: "Post", Attributes: []ir.AttributeSpec{{Name: "id", Type: ir.TypeID}}, Relations: []ir.RelationSpec{
				{Name: "author", Kind: ir.RelationBelongsTo, Entity: "User", Key: "writerId"},
			}},
			want: []string{ErrRelationKeyNotFound},
		},
		{
			name: "missing has many foreign key",
			spec: ir.EntitySpec{Name: "Post", Attributes: []ir.AttributeSpec{{Name: "id", Type: ir.TypeID}}, Relations: []ir.RelationSpec{
				{Name: "readers", Kind: ir.RelationHasMany, Entity: "User", ForeignKey: "readPostId"},
			}},
			want: []string{ErrRelationKeyNotFound},
		},
		{
			name: "composite part is not a column",
			spec: ir.EntitySpec{Name: "Post", Attributes: []ir.AttributeSpec{
				{Name: "id", Type: ir.TypeID},
				{Name: "title", Type: ir.TypePersonName, Composite: &ir.CompositeSpec{Parts: []ir.CompositePart{{Attribute: "id"}, {Attribute: "subtitle"}}}},
			}},
			want: []string{ErrCompositePart},
		},
	}

	team := ir.EntitySpec{Name: "Team", Attributes: []ir.AttributeSpec{{Name: "id", Type: ir.TypeID}, {Name: "name", Type: ir.TypeVarchar}}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate([]ir.EntitySpec{user, team, tt.spec})
			assert.Equal(t, tt.want, codes(errs), "%v", errs)
		})
	}
}

func TestValidateSchemaDuplicateEntity(t *testing.T) {
	tag := ir.EntitySpec{Name: "Tag", Attributes: []ir.AttributeSpec{{Name: "id", Type: ir.TypeID}}}
	errs := Validate([]ir.EntitySpec{tag, tag})
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateName, errs[0].Code)
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate("not a spec")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedIRType, errs[0].Code)
}

func TestValidationErrorFormat(t *testing.T) {
	assert.Equal(t, "[E103] Post.attributes[0].type: bad", ValidationError{Field: "Post.attributes[0].type", Message: "bad", Code: ErrInvalidAttributeType}.Error())
	assert.Equal(t, "[E103] line 4: type: bad", ValidationError{Field: "type", Message: "bad", Code: ErrInvalidAttributeType, Line: 4}.Error())
}

func TestSoftDeleteWarnings(t *testing.T) {
	warnings := SoftDeleteWarnings([]ir.EntitySpec{
		{Name: "Log", Attributes: []ir.AttributeSpec{{Name: "id", Type: ir.TypeID}}},
		{Name: "Tag", Attributes: []ir.AttributeSpec{{Name: "id", Type: ir.TypeID}, {Name: "deleted", Type: ir.TypeBool}}},
	})
	require.Len(t, warnings, 1)
	assert.Equal(t, "Log", warnings[0].Field)
	assert.Equal(t, ErrMissingSoftDelete, warnings[0].Code)
}
