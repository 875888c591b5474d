package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ormsql/internal/dialect"
	"github.com/roach88/ormsql/internal/ir"
	"github.com/roach88/ormsql/internal/queryir"
	"github.com/roach88/ormsql/internal/querysql"
	"github.com/roach88/ormsql/internal/testutil"
)

func TestQuery_CompiledSelect(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Seed(ctx, "Post", []ir.IRObject{
		row(t, map[string]any{"id": "p1", "name": "Hello"}),
	}, nil))
	require.NoError(t, s.Seed(ctx, "Comment", []ir.IRObject{
		row(t, map[string]any{"id": "c1", "postId": "p1", "name": "first"}),
		row(t, map[string]any{"id": "c2", "postId": "p1", "name": "gone", "deleted": true}),
		row(t, map[string]any{"id": "c3", "name": "orphan"}),
	}, nil))

	st, err := s.Compiler().Compile(&queryir.Select{
		EntityType: "Comment",
		Select:     queryir.Items("id", "postName"),
		OrderBy:    []queryir.OrderItem{{Expr: "id"}},
	})
	require.NoError(t, err)

	rows, err := s.Query(ctx, st.SQL)
	require.NoError(t, err)
	assert.Equal(t, []ir.IRObject{
		{"id": ir.IRString("c1"), "postName": ir.IRString("Hello")},
		{"id": ir.IRString("c3"), "postName": ir.IRNull{}},
	}, rows)
}

func TestQuery_FiscalYearBoundary(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Seed(ctx, "Comment", []ir.IRObject{
		row(t, map[string]any{"id": "c1", "name": "may", "createdAt": "2023-05-31 23:59:59"}),
		row(t, map[string]any{"id": "c2", "name": "june", "createdAt": "2023-06-01 00:00:00"}),
	}, nil))

	tests := []struct {
		name     string
		compiler *querysql.Compiler
		may      int64
		june     int64
	}{
		{"default shift starts in june", s.Compiler(), 2022, 2023},
		{"shift 4 starts in may", querysql.New(testutil.Registry(), dialect.SQLite, querysql.WithFiscalYearShift(4)), 2023, 2023},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := tt.compiler.Compile(&queryir.Select{
				EntityType: "Comment",
				Select:     []queryir.SelectItem{{Expr: "id"}, {Expr: "YEAR_FISCAL:createdAt", Alias: "fy"}},
				OrderBy:    []queryir.OrderItem{{Expr: "id"}},
			})
			require.NoError(t, err)

			rows, err := s.Query(ctx, st.SQL)
			require.NoError(t, err)
			assert.Equal(t, []ir.IRObject{
				{"id": ir.IRString("c1"), "fy": ir.IRInt(tt.may)},
				{"id": ir.IRString("c2"), "fy": ir.IRInt(tt.june)},
			}, rows)
		})
	}
}

func TestQuery_EmptyResult(t *testing.T) {
	s := createTestStore(t)

	rows, err := s.Query(context.Background(), `SELECT id FROM tag`)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestQuery_Error(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Query(context.Background(), `SELECT FROM`)
	assert.Error(t, err)
}

func TestDump_UnknownTable(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Dump(context.Background(), `post"; DROP TABLE post; --`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such table")

	_, err = s.Dump(context.Background(), "post")
	assert.NoError(t, err)
}

func TestFromColumn(t *testing.T) {
	tests := []struct {
		in   any
		want ir.IRValue
	}{
		{nil, ir.IRNull{}},
		{int64(7), ir.IRInt(7)},
		{1.5, ir.IRFloat(1.5)},
		{"x", ir.IRString("x")},
		{[]byte("y"), ir.IRString("y")},
		{true, ir.IRBool(true)},
	}
	for _, tt := range tests {
		got, err := fromColumn(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := fromColumn(struct{}{})
	assert.Error(t, err)
}
