package schema

import (
	"sort"

	"github.com/jinzhu/inflection"
	"github.com/stoewer/go-strcase"
)

// Column returns the physical column name of an attribute: createdById -> created_by_id.
func Column(attribute string) string {
	return strcase.SnakeCase(attribute)
}

// Table returns the physical table name of an entity type: PostTag -> post_tag.
func Table(entityType string) string {
	return strcase.SnakeCase(entityType)
}

// Alias returns the default SQL alias of an entity type: PostTag -> postTag.
func Alias(entityType string) string {
	return strcase.LowerCamelCase(entityType)
}

// EntityForRelation infers the foreign entity type from a relation name:
// tags -> Tag, post -> Post.
func EntityForRelation(relation string) string {
	return strcase.UpperCamelCase(inflection.Singular(relation))
}

// Junction returns the default junction name for a many-to-many pair:
// the two entity types sorted and concatenated (Tag, Post -> PostTag).
func Junction(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + pair[1]
}

// KeyFor returns the default foreign key attribute pointing at an entity
// type: Post -> postId.
func KeyFor(entityType string) string {
	return Alias(entityType) + "Id"
}
