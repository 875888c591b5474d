package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ormsql/internal/ir"
	"github.com/roach88/ormsql/internal/testutil"
)

func entity(name string, belongsTo ...string) ir.EntitySpec {
	spec := ir.EntitySpec{Name: name, Attributes: []ir.AttributeSpec{{Name: "id", Type: ir.TypeID}}}
	for _, target := range belongsTo {
		spec.Relations = append(spec.Relations, ir.RelationSpec{
			Name:   "to" + target,
			Kind:   ir.RelationBelongsTo,
			Entity: target,
		})
	}
	return spec
}

// TestAnalyzeCycles_Empty tests that empty input produces no warnings.
func TestAnalyzeCycles_Empty(t *testing.T) {
	warnings := AnalyzeCycles(nil)
	assert.NotNil(t, warnings)
	assert.Empty(t, warnings)
}

// TestAnalyzeCycles_DAG tests that the shared test schema has no cycles.
func TestAnalyzeCycles_DAG(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(testutil.Entities()))
}

func TestAnalyzeCycles_SelfReference(t *testing.T) {
	warnings := AnalyzeCycles([]ir.EntitySpec{entity("Account", "Account")})
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"Account", "Account"}, warnings[0].Path)
	assert.Equal(t, "info", warnings[0].Level)
	assert.Contains(t, warnings[0].Message, "Self-referencing")
}

func TestAnalyzeCycles_TwoEntities(t *testing.T) {
	warnings := AnalyzeCycles([]ir.EntitySpec{
		entity("User", "Team"),
		entity("Team", "User"),
		entity("Post", "User"),
	})
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"Team", "User", "Team"}, warnings[0].Path)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Equal(t, "Belongs-to cycle: Team → User → Team", warnings[0].Message)
}

func TestAnalyzeCycles_ThreeEntities(t *testing.T) {
	warnings := AnalyzeCycles([]ir.EntitySpec{
		entity("A", "B"),
		entity("B", "C"),
		entity("C", "A"),
	})
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"A", "B", "C", "A"}, warnings[0].Path)
}

func TestAnalyzeCycles_IgnoresOtherKinds(t *testing.T) {
	post := entity("Post")
	post.Relations = []ir.RelationSpec{
		{Name: "comments", Kind: ir.RelationHasMany},
		{Name: "parent", Kind: ir.RelationBelongsToParent},
	}
	comment := entity("Comment", "Post")
	assert.Empty(t, AnalyzeCycles([]ir.EntitySpec{post, comment}))
}

func TestAnalyzeCycles_UndeclaredTarget(t *testing.T) {
	assert.Empty(t, AnalyzeCycles([]ir.EntitySpec{entity("Post", "User")}))
}

func TestDependencyOrder(t *testing.T) {
	order := DependencyOrder([]ir.EntitySpec{
		entity("Comment", "Post", "User"),
		entity("Post", "User"),
		entity("User"),
		entity("Tag"),
	})
	assert.Equal(t, []string{"User", "Post", "Comment", "Tag"}, order)
}

func TestDependencyOrder_Cycle(t *testing.T) {
	order := DependencyOrder([]ir.EntitySpec{
		entity("Post", "User"),
		entity("User", "Team"),
		entity("Team", "User"),
	})
	assert.Equal(t, []string{"Team", "User", "Post"}, order)
}
