package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ormsql/internal/queryir"
)

func TestSelectRelated(t *testing.T) {
	ids := &queryir.Select{Select: queryir.Items("id")}

	tests := []struct {
		name   string
		query  queryir.SelectRelated
		expect string
	}{
		{
			name:  "many to many",
			query: queryir.SelectRelated{EntityType: "Post", ID: "1", Relation: "tags"},
			expect: "SELECT tag.id AS `id`, tag.name AS `name`, tag.deleted AS `deleted` FROM `tag` " +
				"JOIN `post_tag` ON tag.id = post_tag.tag_id AND post_tag.post_id = '1' AND post_tag.deleted = '0' " +
				"WHERE tag.deleted = '0'",
		},
		{
			name:  "many to many with junction conditions",
			query: queryir.SelectRelated{EntityType: "Account", ID: "1", Relation: "teams", Query: ids},
			expect: "SELECT team.id AS `id` FROM `team` " +
				"JOIN `entity_team` ON team.id = entity_team.team_id AND entity_team.entity_id = '1' AND entity_team.deleted = '0' AND entity_team.entity_type = 'Account' " +
				"WHERE team.deleted = '0'",
		},
		{
			name: "many to many refined",
			query: queryir.SelectRelated{EntityType: "Post", ID: "1", Relation: "tags", Query: &queryir.Select{
				Select:  queryir.Items("id"),
				Where:   queryir.Filter{queryir.W("name*", "g%")},
				OrderBy: []queryir.OrderItem{{Expr: "name"}},
				Limit:   queryir.Int(5),
			}},
			expect: "SELECT tag.id AS `id` FROM `tag` " +
				"JOIN `post_tag` ON tag.id = post_tag.tag_id AND post_tag.post_id = '1' AND post_tag.deleted = '0' " +
				"WHERE tag.name LIKE 'g%' AND tag.deleted = '0' ORDER BY tag.name ASC LIMIT 0, 5",
		},
		{
			name:   "has many",
			query:  queryir.SelectRelated{EntityType: "Post", ID: "1", Relation: "comments", Query: ids},
			expect: "SELECT comment.id AS `id` FROM `comment` WHERE comment.post_id = '1' AND comment.deleted = '0'",
		},
		{
			name:   "has children",
			query:  queryir.SelectRelated{EntityType: "Post", ID: "1", Relation: "notes", Query: ids},
			expect: "SELECT note.id AS `id` FROM `note` WHERE note.parent_id = '1' AND note.parent_type = 'Post' AND note.deleted = '0'",
		},
		{
			name:   "belongs to with foreign id",
			query:  queryir.SelectRelated{EntityType: "Comment", ID: "1", Relation: "post", ForeignID: "10", Query: ids},
			expect: "SELECT post.id AS `id` FROM `post` WHERE post.id = '10' AND post.deleted = '0' LIMIT 0, 1",
		},
		{
			name:  "belongs to through subquery",
			query: queryir.SelectRelated{EntityType: "Comment", ID: "1", Relation: "post", Query: ids},
			expect: "SELECT post.id AS `id` FROM `post` " +
				"WHERE post.id IN (SELECT comment.post_id FROM `comment` WHERE comment.id = '1' AND comment.deleted = '0') AND post.deleted = '0' LIMIT 0, 1",
		},
		{
			name:  "belongs to parent",
			query: queryir.SelectRelated{EntityType: "Note", ID: "1", Relation: "parent", ParentType: "Post", Query: ids},
			expect: "SELECT post.id AS `id` FROM `post` " +
				"WHERE post.id IN (SELECT note.parent_id FROM `note` WHERE note.id = '1' AND note.parent_type = 'Post' AND note.deleted = '0') AND post.deleted = '0' LIMIT 0, 1",
		},
		{
			name: "belongs to counted",
			query: queryir.SelectRelated{EntityType: "Comment", ID: "1", Relation: "post", ForeignID: "10", Query: &queryir.Select{
				Aggregate: &queryir.Aggregate{Function: "COUNT", Attribute: "id"},
			}},
			expect: "SELECT COUNT(post.id) AS AggregateValue FROM `post` WHERE post.id = '10' AND post.deleted = '0'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := newMySQL().CompileSelectRelated(&tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, st.SQL)
		})
	}
}

func TestSelectRelated_Errors(t *testing.T) {
	tests := []struct {
		name  string
		query queryir.SelectRelated
		kind  queryir.ErrorKind
	}{
		{"missing id", queryir.SelectRelated{EntityType: "Post", Relation: "tags"}, queryir.KindInvalidQuery},
		{"unknown relation", queryir.SelectRelated{EntityType: "Post", ID: "1", Relation: "authors"}, queryir.KindUnknownRelation},
		{"parent without type", queryir.SelectRelated{EntityType: "Note", ID: "1", Relation: "parent"}, queryir.KindInvalidQuery},
		{"unknown parent type", queryir.SelectRelated{EntityType: "Note", ID: "1", Relation: "parent", ParentType: "Nope"}, queryir.KindInvalidQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newMySQL().CompileSelectRelated(&tt.query)
			requireKind(t, err, tt.kind)
		})
	}
}

func TestSelectRelated_SelfReference(t *testing.T) {
	st, err := newMySQL().CompileSelectRelated(&queryir.SelectRelated{
		EntityType: "Contact",
		ID:         "1",
		Relation:   "relatedContacts",
		Query:      &queryir.Select{Select: queryir.Items("id", "name")},
	})
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT contact.id AS `id`, TRIM(CONCAT(contact.first_name, ' ', contact.last_name)) AS `name` FROM `contact` "+
			"JOIN `contact_relation` ON contact.id = contact_relation.related_contact_id AND contact_relation.contact_id = '1' AND contact_relation.deleted = '0' "+
			"WHERE contact.deleted = '0'", st.SQL)
}
