package queryir

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		key  string
		want Condition
	}{
		{"name", Condition{Path: "name", Op: OpEquals}},
		{"name=", Condition{Path: "name", Op: OpEquals}},
		{"id!=", Condition{Path: "id", Op: OpNotEquals}},
		{"createdAt>", Condition{Path: "createdAt", Op: OpGreater}},
		{"createdAt<", Condition{Path: "createdAt", Op: OpLess}},
		{"post.createdById<=", Condition{Path: "post.createdById", Op: OpLessOrEqual}},
		{"amount>=", Condition{Path: "amount", Op: OpGreaterOrEqual}},
		{"name*", Condition{Path: "name", Op: OpLike}},
		{"name!*", Condition{Path: "name", Op: OpNotLike}},
		{"name:", Condition{Path: "name", Op: OpEquals, Raw: true}},
		{"name!=:", Condition{Path: "name", Op: OpNotEquals, Raw: true}},
		{"notesLeft.name=:", Condition{Path: "notesLeft.name", Op: OpEquals, Raw: true}},
		{"post.id=s", Condition{Path: "post.id", Op: OpIn, Subquery: true}},
		{"post.id!=s", Condition{Path: "post.id", Op: OpNotIn, Subquery: true}},
		{"COUNT:comment.id>", Condition{Path: "COUNT:comment.id", Op: OpGreater}},
		{"MONTH_NUMBER:comment.created_at", Condition{Path: "MONTH_NUMBER:comment.created_at", Op: OpEquals}},
		{"MATCH_NATURAL_LANGUAGE:description:test>", Condition{Path: "MATCH_NATURAL_LANGUAGE:description:test", Op: OpGreater}},
		{" name * ", Condition{Path: "name", Op: OpLike}},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseKey(tt.key))
		})
	}
}

func TestOperatorSQL(t *testing.T) {
	assert.Equal(t, "=", OpEquals.SQL())
	assert.Equal(t, "<>", OpNotEquals.SQL())
	assert.Equal(t, "LIKE", OpLike.SQL())
	assert.Equal(t, "NOT LIKE", OpNotLike.SQL())
	assert.Equal(t, "NOT IN", OpNotIn.SQL())

	assert.True(t, OpNotEquals.Negated())
	assert.True(t, OpNotIn.Negated())
	assert.False(t, OpGreater.Negated())
}

func TestFilterConstructors(t *testing.T) {
	f := Filter{
		W("name", "test"),
		Or(Filter{W("id", "1")}, Filter{W("id", "2")}),
		Not(Filter{W("name*", "x%")}),
		Bare("MATCH_BOOLEAN:name:test"),
	}

	assert.Equal(t, KeyOr, f[1].Key)
	assert.Len(t, f[1].Value, 2)
	assert.Equal(t, KeyNot, f[2].Key)
	assert.True(t, f[3].Bare)
	assert.True(t, IsGroupKey("AND"))
	assert.False(t, IsGroupKey("or"))
}

func TestCompileErrorIs(t *testing.T) {
	err := Errorf(KindUnknownAttribute, "nope", "attribute %q not found on %s", "nope", "Post")
	wrapped := fmt.Errorf("compile where: %w", err)

	assert.True(t, errors.Is(wrapped, ErrUnknownAttribute))
	assert.False(t, errors.Is(wrapped, ErrSyntax))
	assert.Equal(t, `UnknownAttribute: attribute "nope" not found on Post (at "nope")`, err.Error())

	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindUnknownAttribute, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestWalk(t *testing.T) {
	e := FunctionCall{Name: "CONCAT", Args: []Expr{
		AttributeRef{Path: "name"},
		FunctionCall{Name: "LOWER", Args: []Expr{AttributeRef{Path: "post.name"}}},
	}}

	var paths []string
	Walk(e, func(n Expr) {
		if a, ok := n.(AttributeRef); ok {
			paths = append(paths, a.Path)
		}
	})
	assert.Equal(t, []string{"name", "post.name"}, paths)
}
