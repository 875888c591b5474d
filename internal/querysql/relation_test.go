package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ormsql/internal/queryir"
)

func TestRelationChange(t *testing.T) {
	byName := &queryir.Select{Where: queryir.Filter{queryir.W("name", "test")}}

	tests := []struct {
		name   string
		query  queryir.RelationChange
		expect string
		table  string
	}{
		{
			name:   "has many relate",
			query:  queryir.RelationChange{Action: queryir.ActionRelate, EntityType: "Post", ID: "1", Relation: "comments", ForeignID: "100"},
			expect: "UPDATE `comment` SET post_id = '1' WHERE comment.id = '100' AND comment.deleted = '0'",
			table:  "comment",
		},
		{
			name:   "has many unrelate",
			query:  queryir.RelationChange{Action: queryir.ActionUnrelate, EntityType: "Post", ID: "1", Relation: "comments", ForeignID: "100"},
			expect: "UPDATE `comment` SET post_id = NULL WHERE comment.deleted = '0' AND comment.id = '100'",
			table:  "comment",
		},
		{
			name:   "has many unrelate all",
			query:  queryir.RelationChange{Action: queryir.ActionUnrelateAll, EntityType: "Post", ID: "1", Relation: "comments"},
			expect: "UPDATE `comment` SET post_id = NULL WHERE comment.deleted = '0' AND comment.post_id = '1'",
			table:  "comment",
		},
		{
			name:   "has many mass relate",
			query:  queryir.RelationChange{Action: queryir.ActionMassRelate, EntityType: "Post", ID: "1", Relation: "comments", Query: byName},
			expect: "UPDATE `comment` SET post_id = '1' WHERE comment.name = 'test' AND comment.deleted = '0'",
			table:  "comment",
		},
		{
			name:   "has children relate",
			query:  queryir.RelationChange{Action: queryir.ActionRelate, EntityType: "Post", ID: "1", Relation: "notes", ForeignID: "100"},
			expect: "UPDATE `note` SET parent_id = '1', parent_type = 'Post' WHERE note.id = '100' AND note.deleted = '0'",
			table:  "note",
		},
		{
			name:   "has children unrelate all",
			query:  queryir.RelationChange{Action: queryir.ActionUnrelateAll, EntityType: "Post", ID: "1", Relation: "notes"},
			expect: "UPDATE `note` SET parent_id = NULL, parent_type = NULL WHERE note.deleted = '0' AND note.parent_id = '1' AND note.parent_type = 'Post'",
			table:  "note",
		},
		{
			name:   "belongs to relate",
			query:  queryir.RelationChange{Action: queryir.ActionRelate, EntityType: "Comment", ID: "1", Relation: "post", ForeignID: "10"},
			expect: "UPDATE `comment` SET post_id = '10' WHERE comment.id = '1' AND comment.deleted = '0'",
			table:  "comment",
		},
		{
			name:   "belongs to unrelate",
			query:  queryir.RelationChange{Action: queryir.ActionUnrelate, EntityType: "Comment", ID: "1", Relation: "post", ForeignID: "10"},
			expect: "UPDATE `comment` SET post_id = NULL WHERE comment.deleted = '0' AND comment.id = '1'",
			table:  "comment",
		},
		{
			name:   "belongs to parent relate",
			query:  queryir.RelationChange{Action: queryir.ActionRelate, EntityType: "Note", ID: "1", Relation: "parent", ForeignID: "10", ParentType: "Post"},
			expect: "UPDATE `note` SET parent_id = '10', parent_type = 'Post' WHERE note.id = '1' AND note.deleted = '0'",
			table:  "note",
		},
		{
			name:   "belongs to parent unrelate all",
			query:  queryir.RelationChange{Action: queryir.ActionUnrelateAll, EntityType: "Note", ID: "1", Relation: "parent"},
			expect: "UPDATE `note` SET parent_id = NULL, parent_type = NULL WHERE note.deleted = '0' AND note.id = '1'",
			table:  "note",
		},
		{
			name:   "many to many relate",
			query:  queryir.RelationChange{Action: queryir.ActionRelate, EntityType: "Post", ID: "1", Relation: "tags", ForeignID: "100"},
			expect: "INSERT INTO `post_tag` (post_id, tag_id) VALUES ('1', '100') ON DUPLICATE KEY UPDATE deleted = '0'",
			table:  "post_tag",
		},
		{
			name:   "many to many relate with conditions",
			query:  queryir.RelationChange{Action: queryir.ActionRelate, EntityType: "Account", ID: "1", Relation: "teams", ForeignID: "100"},
			expect: "INSERT INTO `entity_team` (entity_id, team_id, entity_type) VALUES ('1', '100', 'Account') ON DUPLICATE KEY UPDATE deleted = '0'",
			table:  "entity_team",
		},
		{
			name:   "many to many unrelate",
			query:  queryir.RelationChange{Action: queryir.ActionUnrelate, EntityType: "Post", ID: "1", Relation: "tags", ForeignID: "100"},
			expect: "UPDATE `post_tag` SET deleted = 1 WHERE post_id = '1' AND tag_id = '100'",
			table:  "post_tag",
		},
		{
			name:   "many to many unrelate all with conditions",
			query:  queryir.RelationChange{Action: queryir.ActionUnrelateAll, EntityType: "Account", ID: "1", Relation: "teams"},
			expect: "UPDATE `entity_team` SET deleted = 1 WHERE entity_id = '1' AND entity_type = 'Account'",
			table:  "entity_team",
		},
		{
			name:  "many to many mass relate",
			query: queryir.RelationChange{Action: queryir.ActionMassRelate, EntityType: "Post", ID: "1", Relation: "tags", Query: byName},
			expect: "INSERT INTO `post_tag` (post_id, tag_id) " +
				"(SELECT '1' AS `1`, tag.id AS `id` FROM `tag` WHERE tag.name = 'test' AND tag.deleted = '0') " +
				"ON DUPLICATE KEY UPDATE deleted = '0'",
			table: "post_tag",
		},
		{
			name:  "many to many mass relate with conditions",
			query: queryir.RelationChange{Action: queryir.ActionMassRelate, EntityType: "Account", ID: "1", Relation: "teams", Query: byName},
			expect: "INSERT INTO `entity_team` (entity_id, team_id, entity_type) " +
				"(SELECT '1' AS `1`, team.id AS `id`, 'Account' AS `Account` FROM `team` WHERE team.name = 'test' AND team.deleted = '0') " +
				"ON DUPLICATE KEY UPDATE deleted = '0'",
			table: "entity_team",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := newMySQL().CompileRelationChange(&tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, st.SQL)
			assert.Equal(t, []string{tt.table}, st.Aliases)
		})
	}
}

func TestRelationChange_SQLite(t *testing.T) {
	c := newSQLite()

	st, err := c.CompileRelationChange(&queryir.RelationChange{
		Action: queryir.ActionRelate, EntityType: "Post", ID: "1", Relation: "tags", ForeignID: "100",
	})
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "post_tag" (post_id, tag_id) VALUES ('1', '100') ON CONFLICT DO UPDATE SET deleted = '0'`, st.SQL)

	st, err = c.CompileRelationChange(&queryir.RelationChange{
		Action: queryir.ActionMassRelate, EntityType: "Post", ID: "1", Relation: "tags",
		Query: &queryir.Select{WithDeleted: true},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "post_tag" (post_id, tag_id) SELECT '1' AS "1", tag.id AS "id" FROM "tag" WHERE 1 ON CONFLICT DO UPDATE SET deleted = '0'`, st.SQL)
}

func TestRelationChange_Errors(t *testing.T) {
	joined := &queryir.Select{Joins: []queryir.Join{{Target: "post"}}}

	tests := []struct {
		name  string
		query queryir.RelationChange
		kind  queryir.ErrorKind
	}{
		{"unknown action", queryir.RelationChange{Action: "link", EntityType: "Post", ID: "1", Relation: "tags"}, queryir.KindInvalidQuery},
		{"relate without foreign id", queryir.RelationChange{Action: queryir.ActionRelate, EntityType: "Post", ID: "1", Relation: "tags"}, queryir.KindInvalidQuery},
		{"mass relate without query", queryir.RelationChange{Action: queryir.ActionMassRelate, EntityType: "Post", ID: "1", Relation: "tags"}, queryir.KindInvalidQuery},
		{"unknown relation", queryir.RelationChange{Action: queryir.ActionUnrelateAll, EntityType: "Post", ID: "1", Relation: "authors"}, queryir.KindUnknownRelation},
		{"unknown entity", queryir.RelationChange{Action: queryir.ActionUnrelateAll, EntityType: "Nope", ID: "1", Relation: "tags"}, queryir.KindInvalidQuery},
		{"parent relate without type", queryir.RelationChange{Action: queryir.ActionRelate, EntityType: "Note", ID: "1", Relation: "parent", ForeignID: "10"}, queryir.KindInvalidQuery},
		{"belongs to mass relate", queryir.RelationChange{Action: queryir.ActionMassRelate, EntityType: "Comment", ID: "1", Relation: "post", Query: &queryir.Select{}}, queryir.KindInvalidQuery},
		{"has many mass relate with joins", queryir.RelationChange{Action: queryir.ActionMassRelate, EntityType: "Post", ID: "1", Relation: "comments", Query: joined}, queryir.KindInvalidQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newMySQL().CompileRelationChange(&tt.query)
			requireKind(t, err, tt.kind)
		})
	}
}
