package querysql

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ormsql/internal/queryir"
)

// TestGolden compiles each query for MySQL and SQLite and compares the two
// statements, one per line, with testdata/golden/{name}.golden.
//
// To regenerate:
//
//	go test ./internal/querysql -run TestGolden -update
func TestGolden(t *testing.T) {
	tests := []struct {
		name  string
		query queryir.Query
	}{
		{
			name: "select_has_children_join",
			query: &queryir.Select{
				EntityType: "Post",
				Select:     queryir.Items("id", "name"),
				LeftJoins:  []queryir.Join{{Target: "notes", Alias: "notesLeft"}},
			},
		},
		{
			name: "update_json_array",
			query: &queryir.Update{
				EntityType: "Job",
				Values:     queryir.Values{queryir.Set("array", []string{"2", "1"})},
				Where:      queryir.Filter{queryir.W("id", "1")},
			},
		},
		{
			name: "relate_many_to_many",
			query: &queryir.RelationChange{
				Action: queryir.ActionRelate, EntityType: "Account", ID: "1", Relation: "teams", ForeignID: "100",
			},
		},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			my, err := newMySQL().Compile(tt.query)
			require.NoError(t, err)
			lite, err := newSQLite().Compile(tt.query)
			require.NoError(t, err)

			g.Assert(t, tt.name, []byte(strings.Join([]string{my.SQL, lite.SQL}, "\n")))
		})
	}
}
