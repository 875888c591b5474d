package querysql

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ormsql/internal/dialect"
	"github.com/roach88/ormsql/internal/queryir"
	"github.com/roach88/ormsql/internal/schema"
	"github.com/roach88/ormsql/internal/testutil"
)

func newMySQL(opts ...Option) *Compiler {
	return New(testutil.Registry(), dialect.MySQL, opts...)
}

func newSQLite(opts ...Option) *Compiler {
	return New(testutil.Registry(), dialect.SQLite, opts...)
}

// compileSQL compiles q and fails the test on error.
func compileSQL(t *testing.T, c *Compiler, q queryir.Query) string {
	t.Helper()
	st, err := c.Compile(q)
	require.NoError(t, err)
	return st.SQL
}

// requireKind asserts that err is a CompileError of kind.
func requireKind(t *testing.T, err error, kind queryir.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	got, ok := queryir.KindOf(err)
	require.True(t, ok, "not a CompileError: %v", err)
	assert.Equal(t, kind, got, "error: %v", err)
}

func TestCompile_SelectAllColumns(t *testing.T) {
	sql := compileSQL(t, newMySQL(), &queryir.Select{
		EntityType: "Account",
		OrderBy:    []queryir.OrderItem{{Expr: "name"}},
		Order:      "ASC",
		Offset:     queryir.Int(10),
		Limit:      queryir.Int(20),
	})

	assert.Equal(t,
		"SELECT account.id AS `id`, account.name AS `name`, account.deleted AS `deleted` FROM `account` "+
			"WHERE account.deleted = '0' ORDER BY account.name ASC LIMIT 10, 20", sql)
}

func TestCompile_SelectSkipTextColumns(t *testing.T) {
	sql := compileSQL(t, newMySQL(), &queryir.Select{
		EntityType:      "Article",
		OrderBy:         []queryir.OrderItem{{Expr: "name"}},
		Order:           "ASC",
		Offset:          queryir.Int(10),
		Limit:           queryir.Int(20),
		SkipTextColumns: true,
	})

	assert.Equal(t,
		"SELECT article.id AS `id`, article.name AS `name`, article.deleted AS `deleted` FROM `article` "+
			"WHERE article.deleted = '0' ORDER BY article.name ASC LIMIT 10, 20", sql)
}

func TestCompile_SelectWithBelongsToJoin(t *testing.T) {
	st, err := newMySQL().CompileSelect(&queryir.Select{EntityType: "Comment"})
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT comment.id AS `id`, comment.post_id AS `postId`, post.name AS `postName`, comment.name AS `name`, comment.deleted AS `deleted` FROM `comment` "+
			"LEFT JOIN `post` AS `post` ON comment.post_id = post.id "+
			"WHERE comment.deleted = '0'", st.SQL)
	assert.Equal(t, []string{"post"}, st.Aliases)
}

func TestCompile_SelectSpecifiedColumns(t *testing.T) {
	tests := []struct {
		name    string
		query   queryir.Select
		aliases []string
		expect  string
	}{
		{
			name:  "own columns",
			query: queryir.Select{EntityType: "Comment", Select: queryir.Items("id", "name")},
			expect: "SELECT comment.id AS `id`, comment.name AS `name` FROM `comment` " +
				"WHERE comment.deleted = '0'",
		},
		{
			name:    "foreign column implies join",
			query:   queryir.Select{EntityType: "Comment", Select: queryir.Items("id", "name", "postName")},
			aliases: []string{"post"},
			expect: "SELECT comment.id AS `id`, comment.name AS `name`, post.name AS `postName` FROM `comment` " +
				"LEFT JOIN `post` AS `post` ON comment.post_id = post.id " +
				"WHERE comment.deleted = '0'",
		},
		{
			name: "explicit join is not repeated",
			query: queryir.Select{
				EntityType: "Comment",
				Select:     queryir.Items("id", "name", "postName"),
				LeftJoins:  []queryir.Join{{Target: "post"}},
			},
			expect: "SELECT comment.id AS `id`, comment.name AS `name`, post.name AS `postName` FROM `comment` " +
				"LEFT JOIN `post` AS `post` ON comment.post_id = post.id " +
				"WHERE comment.deleted = '0'",
		},
		{
			name: "explicit join without foreign column",
			query: queryir.Select{
				EntityType: "Comment",
				Select:     queryir.Items("id", "name"),
				LeftJoins:  []queryir.Join{{Target: "post"}},
			},
			expect: "SELECT comment.id AS `id`, comment.name AS `name` FROM `comment` " +
				"LEFT JOIN `post` AS `post` ON comment.post_id = post.id " +
				"WHERE comment.deleted = '0'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := newMySQL().CompileSelect(&tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, st.SQL)
			assert.Equal(t, tt.aliases, st.Aliases)
		})
	}
}

func TestCompile_SelectWithFunctions(t *testing.T) {
	tests := []struct {
		name   string
		query  queryir.Select
		expect string
	}{
		{
			name: "count with group by",
			query: queryir.Select{
				EntityType: "Comment",
				Select:     queryir.Items("id", "postId", "post.name", "COUNT:id"),
				LeftJoins:  []queryir.Join{{Target: "post"}},
				GroupBy:    []string{"postId", "post.name"},
			},
			expect: "SELECT comment.id AS `id`, comment.post_id AS `postId`, post.name AS `post.name`, COUNT(comment.id) AS `COUNT:id` FROM `comment` " +
				"LEFT JOIN `post` AS `post` ON comment.post_id = post.id " +
				"WHERE comment.deleted = '0' " +
				"GROUP BY comment.post_id, post.name",
		},
		{
			name: "month of joined column",
			query: queryir.Select{
				EntityType: "Comment",
				Select:     queryir.Items("id", "COUNT:id", "MONTH:post.createdAt"),
				LeftJoins:  []queryir.Join{{Target: "post"}},
				GroupBy:    []string{"MONTH:post.createdAt"},
			},
			expect: "SELECT comment.id AS `id`, COUNT(comment.id) AS `COUNT:id`, DATE_FORMAT(post.created_at, '%Y-%m') AS `MONTH:post.createdAt` FROM `comment` " +
				"LEFT JOIN `post` AS `post` ON comment.post_id = post.id " +
				"WHERE comment.deleted = '0' " +
				"GROUP BY DATE_FORMAT(post.created_at, '%Y-%m')",
		},
		{
			name: "quarter",
			query: queryir.Select{
				EntityType: "Comment",
				Select:     queryir.Items("COUNT:id", "QUARTER:comment.createdAt"),
				GroupBy:    []string{"QUARTER:comment.createdAt"},
			},
			expect: "SELECT COUNT(comment.id) AS `COUNT:id`, CONCAT(YEAR(comment.created_at), '_', QUARTER(comment.created_at)) AS `QUARTER:comment.createdAt` FROM `comment` " +
				"WHERE comment.deleted = '0' " +
				"GROUP BY CONCAT(YEAR(comment.created_at), '_', QUARTER(comment.created_at))",
		},
		{
			name: "fiscal year",
			query: queryir.Select{
				EntityType: "Comment",
				Select:     queryir.Items("COUNT:id", "YEAR_5:comment.createdAt"),
				GroupBy:    []string{"YEAR_5:comment.createdAt"},
			},
			expect: "SELECT COUNT(comment.id) AS `COUNT:id`, CASE WHEN MONTH(comment.created_at) >= 6 THEN YEAR(comment.created_at) ELSE YEAR(comment.created_at) - 1 END AS `YEAR_5:comment.createdAt` FROM `comment` " +
				"WHERE comment.deleted = '0' " +
				"GROUP BY CASE WHEN MONTH(comment.created_at) >= 6 THEN YEAR(comment.created_at) ELSE YEAR(comment.created_at) - 1 END",
		},
		{
			name: "fiscal quarter",
			query: queryir.Select{
				EntityType: "Comment",
				Select:     queryir.Items("COUNT:id", "QUARTER_4:comment.createdAt"),
				GroupBy:    []string{"QUARTER_4:comment.createdAt"},
			},
			expect: "SELECT COUNT(comment.id) AS `COUNT:id`, CASE WHEN MONTH(comment.created_at) >= 5 THEN CONCAT(YEAR(comment.created_at), '_', FLOOR((MONTH(comment.created_at) - 5) / 3) + 1) ELSE CONCAT(YEAR(comment.created_at) - 1, '_', CEIL((MONTH(comment.created_at) + 7) / 3)) END AS `QUARTER_4:comment.createdAt` FROM `comment` " +
				"WHERE comment.deleted = '0' " +
				"GROUP BY CASE WHEN MONTH(comment.created_at) >= 5 THEN CONCAT(YEAR(comment.created_at), '_', FLOOR((MONTH(comment.created_at) - 5) / 3) + 1) ELSE CONCAT(YEAR(comment.created_at) - 1, '_', CEIL((MONTH(comment.created_at) + 7) / 3)) END",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, compileSQL(t, newMySQL(), &tt.query))
		})
	}
}

func TestCompile_FiscalShifts(t *testing.T) {
	const (
		defaultYear    = "CASE WHEN MONTH(comment.created_at) >= 6 THEN YEAR(comment.created_at) ELSE YEAR(comment.created_at) - 1 END"
		defaultQuarter = "CASE WHEN MONTH(comment.created_at) >= 5 THEN CONCAT(YEAR(comment.created_at), '_', FLOOR((MONTH(comment.created_at) - 5) / 3) + 1) ELSE CONCAT(YEAR(comment.created_at) - 1, '_', CEIL((MONTH(comment.created_at) + 7) / 3)) END"
	)

	tests := []struct {
		name   string
		opts   []Option
		expr   string
		expect string
	}{
		{"year default", nil, "YEAR_FISCAL:createdAt", defaultYear},
		{"quarter default", nil, "QUARTER_FISCAL:createdAt", defaultQuarter},
		{"year default matches YEAR_5", nil, "YEAR_5:createdAt", defaultYear},
		{"quarter default matches QUARTER_4", nil, "QUARTER_4:createdAt", defaultQuarter},
		{
			"year shift option", []Option{WithFiscalYearShift(2)}, "YEAR_FISCAL:createdAt",
			"CASE WHEN MONTH(comment.created_at) >= 3 THEN YEAR(comment.created_at) ELSE YEAR(comment.created_at) - 1 END",
		},
		{
			"quarter shift option", []Option{WithFiscalQuarterShift(1)}, "QUARTER_FISCAL:createdAt",
			"CASE WHEN MONTH(comment.created_at) >= 2 THEN CONCAT(YEAR(comment.created_at), '_', FLOOR((MONTH(comment.created_at) - 2) / 3) + 1) ELSE CONCAT(YEAR(comment.created_at) - 1, '_', CEIL((MONTH(comment.created_at) + 10) / 3)) END",
		},
		{"year option leaves quarter", []Option{WithFiscalYearShift(2)}, "QUARTER_FISCAL:createdAt", defaultQuarter},
		{"quarter option leaves year", []Option{WithFiscalQuarterShift(1)}, "YEAR_FISCAL:createdAt", defaultYear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql := compileSQL(t, newMySQL(tt.opts...), &queryir.Select{
				EntityType: "Comment",
				Select:     queryir.Items(tt.expr),
			})
			assert.Equal(t, "SELECT "+tt.expect+" AS `"+tt.expr+"` FROM `comment` WHERE comment.deleted = '0'", sql)
		})
	}
}

func TestCompile_OrderBy(t *testing.T) {
	tests := []struct {
		name   string
		query  queryir.Select
		expect string
	}{
		{
			name: "position",
			query: queryir.Select{
				EntityType: "Comment",
				Select:     queryir.Items("COUNT:id", "YEAR:post.createdAt"),
				LeftJoins:  []queryir.Join{{Target: "post"}},
				GroupBy:    []string{"YEAR:post.createdAt"},
				OrderBy:    []queryir.OrderItem{{Position: 2}},
			},
			expect: "SELECT COUNT(comment.id) AS `COUNT:id`, YEAR(post.created_at) AS `YEAR:post.createdAt` FROM `comment` " +
				"LEFT JOIN `post` AS `post` ON comment.post_id = post.id " +
				"WHERE comment.deleted = '0' " +
				"GROUP BY YEAR(post.created_at) " +
				"ORDER BY 2 ASC",
		},
		{
			name: "value list",
			query: queryir.Select{
				EntityType: "Comment",
				Select:     queryir.Items("COUNT:id", "post.name"),
				LeftJoins:  []queryir.Join{{Target: "post"}},
				GroupBy:    []string{"post.name"},
				OrderBy:    []queryir.OrderItem{{Expr: "LIST:post.name:Test,Hello"}},
			},
			expect: "SELECT COUNT(comment.id) AS `COUNT:id`, post.name AS `post.name` FROM `comment` " +
				"LEFT JOIN `post` AS `post` ON comment.post_id = post.id " +
				"WHERE comment.deleted = '0' " +
				"GROUP BY post.name " +
				"ORDER BY FIELD(post.name, 'Hello', 'Test') DESC",
		},
		{
			name: "position and value list",
			query: queryir.Select{
				EntityType: "Comment",
				Select:     queryir.Items("COUNT:id", "YEAR:post.createdAt", "post.name"),
				LeftJoins:  []queryir.Join{{Target: "post"}},
				GroupBy:    []string{"YEAR:post.createdAt", "post.name"},
				OrderBy: []queryir.OrderItem{
					{Position: 2, Direction: "DESC"},
					{Expr: "LIST:post.name:Test,Hello"},
				},
			},
			expect: "SELECT COUNT(comment.id) AS `COUNT:id`, YEAR(post.created_at) AS `YEAR:post.createdAt`, post.name AS `post.name` FROM `comment` " +
				"LEFT JOIN `post` AS `post` ON comment.post_id = post.id " +
				"WHERE comment.deleted = '0' " +
				"GROUP BY YEAR(post.created_at), post.name " +
				"ORDER BY 2 DESC, FIELD(post.name, 'Hello', 'Test') DESC",
		},
		{
			name: "composite fans out over its order parts",
			query: queryir.Select{
				EntityType: "User",
				Select:     queryir.Items("id"),
				OrderBy:    []queryir.OrderItem{{Expr: "name", Direction: "desc"}},
			},
			expect: "SELECT user.id AS `id` FROM `user` WHERE user.deleted = '0' " +
				"ORDER BY user.first_name DESC, user.last_name DESC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, compileSQL(t, newMySQL(), &tt.query))
		})
	}
}

func TestCompile_Foreign(t *testing.T) {
	sql := compileSQL(t, newMySQL(), &queryir.Select{
		EntityType: "Comment",
		Select:     queryir.Items("COUNT:comment.id", "postId", "postName"),
		LeftJoins:  []queryir.Join{{Target: "post"}},
		GroupBy:    []string{"postId"},
		Where:      queryir.Filter{queryir.W("post.createdById", "id_1")},
	})

	assert.Equal(t,
		"SELECT COUNT(comment.id) AS `COUNT:comment.id`, comment.post_id AS `postId`, post.name AS `postName` FROM `comment` "+
			"LEFT JOIN `post` AS `post` ON comment.post_id = post.id "+
			"WHERE post.created_by_id = 'id_1' AND comment.deleted = '0' "+
			"GROUP BY comment.post_id", sql)
}

func TestCompile_ForeignComposite(t *testing.T) {
	st, err := newMySQL().CompileSelect(&queryir.Select{
		EntityType: "Post",
		Select:     queryir.Items("id", "createdByName"),
	})
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT post.id AS `id`, TRIM(CONCAT(IFNULL(createdBy.salutation_name, ''), IFNULL(createdBy.first_name, ''), ' ', IFNULL(createdBy.last_name, ''))) AS `createdByName` FROM `post` "+
			"LEFT JOIN `user` AS `createdBy` ON post.created_by_id = createdBy.id "+
			"WHERE post.deleted = '0'", st.SQL)
	assert.Equal(t, []string{"createdBy"}, st.Aliases)
}

func TestCompile_Having(t *testing.T) {
	sql := compileSQL(t, newMySQL(), &queryir.Select{
		EntityType: "Comment",
		Select:     queryir.Items("COUNT:comment.id", "postId", "postName"),
		LeftJoins:  []queryir.Join{{Target: "post"}},
		GroupBy:    []string{"postId"},
		Where:      queryir.Filter{queryir.W("post.createdById", "id_1")},
		Having:     queryir.Filter{queryir.W("COUNT:comment.id>", 1)},
	})

	assert.Equal(t,
		"SELECT COUNT(comment.id) AS `COUNT:comment.id`, comment.post_id AS `postId`, post.name AS `postName` "+
			"FROM `comment` LEFT JOIN `post` AS `post` ON comment.post_id = post.id "+
			"WHERE post.created_by_id = 'id_1' AND comment.deleted = '0' "+
			"GROUP BY comment.post_id "+
			"HAVING COUNT(comment.id) > '1'", sql)
}

func TestCompile_Aggregate(t *testing.T) {
	sql := compileSQL(t, newMySQL(), &queryir.Select{
		EntityType: "Article",
		Aggregate:  &queryir.Aggregate{Function: "count", Attribute: "id"},
		Where:      queryir.Filter{queryir.W("name*", "a%")},
	})
	assert.Equal(t,
		"SELECT COUNT(article.id) AS AggregateValue FROM `article` "+
			"WHERE article.name LIKE 'a%' AND article.deleted = '0'", sql)

	_, err := newMySQL().CompileSelect(&queryir.Select{
		EntityType: "Article",
		Aggregate:  &queryir.Aggregate{Function: "MEDIAN", Attribute: "id"},
	})
	requireKind(t, err, queryir.KindUnknownFunction)
}

func TestCompile_Distinct(t *testing.T) {
	sql := compileSQL(t, newMySQL(), &queryir.Select{
		EntityType:  "Article",
		Select:      queryir.Items("name"),
		Distinct:    true,
		WithDeleted: true,
	})
	assert.Equal(t, "SELECT DISTINCT article.name AS `name` FROM `article`", sql)
}

func TestCompile_Limit(t *testing.T) {
	tests := []struct {
		name   string
		c      *Compiler
		offset *int
		limit  *int
		expect string
	}{
		{"mysql limit only", newMySQL(), nil, queryir.Int(10), " LIMIT 0, 10"},
		{"mysql offset only", newMySQL(), queryir.Int(5), nil, " LIMIT 5, 18446744073709551615"},
		{"sqlite limit only", newSQLite(), nil, queryir.Int(10), " LIMIT 10"},
		{"sqlite offset only", newSQLite(), queryir.Int(5), nil, " LIMIT -1 OFFSET 5"},
		{"sqlite both", newSQLite(), queryir.Int(5), queryir.Int(10), " LIMIT 10 OFFSET 5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql := compileSQL(t, tt.c, &queryir.Select{
				EntityType:  "Tag",
				Select:      queryir.Items("id"),
				WithDeleted: true,
				Offset:      tt.offset,
				Limit:       tt.limit,
			})
			assert.Contains(t, sql, "tag.id")
			assert.True(t, strings.HasSuffix(sql, tt.expect), sql)
		})
	}
}

func TestCompile_SQLiteQuoting(t *testing.T) {
	sql := compileSQL(t, newSQLite(), &queryir.Select{
		EntityType: "Comment",
		Select:     queryir.Items("id", "postName"),
		Where:      queryir.Filter{queryir.W("name", "O'Brien")},
		OrderBy:    []queryir.OrderItem{{Expr: "LIST:name:a,b"}},
	})

	assert.Equal(t,
		`SELECT comment.id AS "id", post.name AS "postName" FROM "comment" `+
			`LEFT JOIN "post" AS "post" ON comment.post_id = post.id `+
			`WHERE comment.name = 'O''Brien' AND comment.deleted = '0' `+
			`ORDER BY CASE comment.name WHEN 'b' THEN 1 WHEN 'a' THEN 2 ELSE 0 END DESC`, sql)
}

func TestCompile_DispatchesEveryQueryType(t *testing.T) {
	c := newMySQL()
	queries := []queryir.Query{
		queryir.Select{EntityType: "Tag"},
		&queryir.Select{EntityType: "Tag"},
		queryir.SelectRelated{EntityType: "Post", ID: "1", Relation: "tags"},
		queryir.Insert{EntityType: "Tag", Values: queryir.Values{queryir.Set("id", "1")}},
		queryir.Update{EntityType: "Tag", Values: queryir.Values{queryir.Set("name", "x")}},
		queryir.Delete{EntityType: "Tag"},
		queryir.RelationChange{Action: queryir.ActionUnrelateAll, EntityType: "Post", ID: "1", Relation: "tags"},
	}
	for _, q := range queries {
		st, err := c.Compile(q)
		require.NoError(t, err, "%T", q)
		assert.NotEmpty(t, st.SQL, "%T", q)
	}

	_, err := c.Compile(nil)
	requireKind(t, err, queryir.KindInvalidQuery)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		query queryir.Query
		kind  queryir.ErrorKind
	}{
		{"missing entity type", &queryir.Select{}, queryir.KindInvalidQuery},
		{"unknown entity type", &queryir.Select{EntityType: "Nope"}, queryir.KindInvalidQuery},
		{"negative limit", &queryir.Select{EntityType: "Tag", Limit: queryir.Int(-1)}, queryir.KindInvalidQuery},
		{"unknown attribute", &queryir.Select{EntityType: "Tag", Select: queryir.Items("color")}, queryir.KindUnknownAttribute},
		{"unknown attribute in where", &queryir.Select{EntityType: "Tag", Where: queryir.Filter{queryir.W("color", "red")}}, queryir.KindUnknownAttribute},
		{"unknown function", &queryir.Select{EntityType: "Tag", Select: queryir.Items("FOO:(name)")}, queryir.KindUnknownFunction},
		{"wrong arity", &queryir.Select{EntityType: "Tag", Select: queryir.Items("SUBSTRING:(name,1)")}, queryir.KindSyntax},
		{"unbalanced parens", &queryir.Select{EntityType: "Tag", Select: queryir.Items("LOWER:(name")}, queryir.KindSyntax},
		{"unknown relation join", &queryir.Select{EntityType: "Tag", Joins: []queryir.Join{{Target: "posts"}}}, queryir.KindUnknownRelation},
		{"OR with scalar", &queryir.Select{EntityType: "Tag", Where: queryir.Filter{queryir.W("OR", "x")}}, queryir.KindMalformedFilter},
		{"filter as comparison value", &queryir.Select{EntityType: "Tag", Where: queryir.Filter{queryir.W("name", queryir.Filter{})}}, queryir.KindMalformedFilter},
		{"list with LIKE", &queryir.Select{EntityType: "Tag", Where: queryir.Filter{queryir.W("name*", []string{"a"})}}, queryir.KindMalformedFilter},
		{"null with >", &queryir.Select{EntityType: "Tag", Where: queryir.Filter{queryir.W("name>", nil)}}, queryir.KindMalformedFilter},
		{"subquery without select", &queryir.Select{EntityType: "Tag", Where: queryir.Filter{queryir.W("id=s", "x")}}, queryir.KindMalformedFilter},
		{"order position past select list", &queryir.Select{EntityType: "Tag", Select: queryir.Items("id"), OrderBy: []queryir.OrderItem{{Position: 7}}}, queryir.KindInvalidQuery},
		{"order position past aggregate", &queryir.Select{EntityType: "Tag", Aggregate: &queryir.Aggregate{Function: "COUNT", Attribute: "id"}, OrderBy: []queryir.OrderItem{{Position: 2}}}, queryir.KindInvalidQuery},
		{"value list without values", &queryir.Select{EntityType: "Tag", Select: queryir.Items("id"), OrderBy: []queryir.OrderItem{{Expr: "LIST:name:"}}}, queryir.KindSyntax},
		{"match unsupported by column", &queryir.Select{EntityType: "Article", Where: queryir.Filter{queryir.Bare("MATCH_BOOLEAN:(LOWER:(name),'x')")}}, queryir.KindSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := newMySQL().Compile(tt.query)
			requireKind(t, err, tt.kind)
			assert.Nil(t, st)
		})
	}
}

func TestCompile_ErrorsMatchSentinels(t *testing.T) {
	_, err := newMySQL().CompileExpression("Tag", "FOO:(name)")
	assert.True(t, errors.Is(err, queryir.ErrUnknownFunction))
	assert.False(t, errors.Is(err, queryir.ErrSyntax))
}

func TestCompile_DepthLimit(t *testing.T) {
	nested := queryir.Filter{queryir.W("name", "a")}
	for i := 0; i < 5; i++ {
		nested = queryir.Filter{queryir.Or(nested, queryir.Filter{queryir.W("id", "1")})}
	}
	q := &queryir.Select{EntityType: "Tag", Select: queryir.Items("id"), Where: nested}

	_, err := newMySQL(WithMaxDepth(4)).CompileSelect(q)
	requireKind(t, err, queryir.KindTooDeep)

	_, err = newMySQL(WithMaxDepth(32)).CompileSelect(q)
	assert.NoError(t, err)

	_, err = newMySQL(WithMaxDepth(3)).CompileExpression("Tag", "LOWER:(UPPER:(LOWER:(UPPER:(name))))")
	requireKind(t, err, queryir.KindTooDeep)
}

func TestCompile_Deterministic(t *testing.T) {
	q := &queryir.Select{
		EntityType: "Post",
		Select:     queryir.Items("id", "createdByName"),
		Where: queryir.Filter{
			queryir.Or(queryir.Filter{queryir.W("name*", "a%")}, queryir.Filter{queryir.W("id", []string{"1", "2"})}),
			queryir.Not(queryir.Filter{queryir.W("name", "x")}),
		},
		Joins: []queryir.Join{{Target: "tags"}},
	}
	c := newMySQL()

	first, err := c.CompileSelect(q)
	require.NoError(t, err)
	fp, err := first.Fingerprint(c.Dialect())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Statement, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st, err := c.CompileSelect(q)
			if err == nil {
				results[i] = st
			}
		}(i)
	}
	wg.Wait()

	for _, st := range results {
		require.NotNil(t, st)
		assert.Equal(t, first.SQL, st.SQL)
		got, err := st.Fingerprint(c.Dialect())
		require.NoError(t, err)
		assert.Equal(t, fp, got)
	}

	other, err := first.Fingerprint(dialect.SQLite)
	require.NoError(t, err)
	assert.NotEqual(t, fp, other)
}

func TestCompile_EscapingRoundTrip(t *testing.T) {
	inputs := []string{
		"plain",
		"O'Brien",
		`back\slash`,
		`\' OR 1=1 --`,
		"'; DROP TABLE tag; --",
		"line\nbreak\x00\x1a",
		"ünïcödé",
	}

	for _, d := range []*dialect.Dialect{dialect.MySQL, dialect.SQLite} {
		c := New(testutil.Registry(), d)
		for _, in := range inputs {
			where, err := c.CompileWhere("Tag", queryir.Filter{queryir.W("name", in)})
			require.NoError(t, err)

			lit := d.QuoteLiteral(in)
			assert.Equal(t, "tag.name = "+lit, where)
			out, err := d.UnquoteLiteral(lit)
			require.NoError(t, err)
			assert.Equal(t, in, out, "%s %q", d.Name, in)
		}
	}
}

func TestCompile_SchemaReloadIsolation(t *testing.T) {
	store := schema.NewStore(testutil.Registry())
	c := New(store, dialect.MySQL)

	before := compileSQL(t, c, &queryir.Select{EntityType: "Tag", Select: queryir.Items("id")})

	specs := testutil.Entities()
	for i := range specs {
		if specs[i].Name == "Tag" {
			specs[i].Table = "labels"
		}
	}
	require.NoError(t, store.Reload(specs))

	after := compileSQL(t, c, &queryir.Select{EntityType: "Tag", Select: queryir.Items("id")})
	assert.Contains(t, before, "FROM `tag`")
	assert.Contains(t, after, "FROM `labels` AS `tag`")
}

func TestCompile_LogsStatements(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := newMySQL(WithLogger(logger))

	_, err := c.CompileSelect(&queryir.Select{EntityType: "Comment", Select: queryir.Items("postName")})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "compiled statement")
	assert.Contains(t, out, "kind=select")
	assert.Contains(t, out, "entity=Comment")
	assert.Contains(t, out, "joins=1")
}

func TestAttributesOf(t *testing.T) {
	c := newMySQL()

	list, err := c.AttributesOf("CONCAT:(MONTH:comment.created_at,' ',CONCAT:(comment.name,'+'))")
	require.NoError(t, err)
	assert.Contains(t, list, "comment.created_at")
	assert.Contains(t, list, "comment.name")

	list, err = c.AttributesOf("test")
	require.NoError(t, err)
	assert.Equal(t, []string{"test"}, list)

	list, err = c.AttributesOf("comment.test")
	require.NoError(t, err)
	assert.Equal(t, []string{"comment.test"}, list)
}
