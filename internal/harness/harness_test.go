package harness

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ormsql/internal/testutil"
)

// runYAML parses a scenario and runs it against the shared test registry.
func runYAML(t *testing.T, src string, opts ...Option) *Result {
	t.Helper()
	scenario, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	result, err := Run(scenario, testutil.Registry(), opts...)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func TestRun_PostTagsScenario(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/post_tags.yaml")
	require.NoError(t, err)

	result, err := Run(scenario, testutil.Registry())
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Trace, 7)

	for i, event := range result.Trace {
		assert.Equal(t, int64(i+1), event.Seq)
	}
	assert.Equal(t, EventError, result.Trace[6].Type)
	assert.Equal(t, "UnknownAttribute", result.Trace[6].Error)
	require.NotNil(t, result.Trace[0].Rows)
	assert.Equal(t, 1, *result.Trace[0].Rows)
}

func TestRun_Mismatches(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		contain string
	}{
		{
			name: "sql mismatch",
			yaml: `
name: n
description: d
steps:
  - query: {kind: select, entity: Tag, select: [id]}
    expect:
      sql: "SELECT tag.id FROM tag"
`,
			contain: "step step1: SQL mismatch",
		},
		{
			name: "aliases mismatch",
			yaml: `
name: n
description: d
steps:
  - query: {kind: select, entity: Comment, select: [id, postName]}
    expect:
      aliases: [parent]
`,
			contain: "expected aliases [parent], got [post]",
		},
		{
			name: "unexpected error",
			yaml: `
name: n
description: d
steps:
  - query: {kind: select, entity: Tag, select: [color]}
`,
			contain: "unexpected compile error",
		},
		{
			name: "wrong error kind",
			yaml: `
name: n
description: d
steps:
  - query: {kind: select, entity: Tag, select: [color]}
    expect: {error: SyntaxError}
`,
			contain: "expected SyntaxError error",
		},
		{
			name: "error expected but compiled",
			yaml: `
name: n
description: d
steps:
  - query: {kind: select, entity: Tag}
    expect: {error: UnknownAttribute}
`,
			contain: "expected UnknownAttribute error, compiled SELECT",
		},
		{
			name: "rows mismatch",
			yaml: `
name: n
description: d
fixtures:
  Tag: [{id: t1, name: go}]
steps:
  - query: {kind: select, entity: Tag, select: [id, name]}
    expect:
      rows: [{id: t1, name: rust}]
`,
			contain: "row 0: expected",
		},
		{
			name: "affected mismatch",
			yaml: `
name: n
description: d
steps:
  - query: {kind: delete, entity: Tag, id: missing}
    expect: {affected: 1}
`,
			contain: "expected 1 affected rows, got 0",
		},
		{
			name: "failed assertion",
			yaml: `
name: n
description: d
steps:
  - query: {kind: select, entity: Tag}
assertions:
  - {type: trace_count, kind: select, count: 2}
`,
			contain: "Assertion failed: trace_count",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := runYAML(t, tt.yaml)
			assert.False(t, result.Pass)
			require.NotEmpty(t, result.Errors)
			assert.Contains(t, result.Errors[0], tt.contain)
		})
	}
}

func TestRun_SQLiteTarget(t *testing.T) {
	result := runYAML(t, `
name: sqlite_target
description: "Expected SQL in the SQLite dialect"
dialect: sqlite
fixtures:
  Tag: [{id: t1, name: go}, {id: t2, name: sql}]
steps:
  - query:
      kind: select
      entity: Tag
      select: [id]
      orderBy: [id]
      order: DESC
      limit: 1
    expect:
      sql: 'SELECT tag.id AS "id" FROM "tag" WHERE tag.deleted = ''0'' ORDER BY tag.id DESC LIMIT 1'
      rows: [{id: t2}]
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_RelatedAndMassRelate(t *testing.T) {
	result := runYAML(t, `
name: related
description: "Mass relate then read related records"
fixtures:
  Post: [{id: p1, name: Hello}]
  Tag: [{id: t1, name: go}, {id: t2, name: golang}, {id: t3, name: sql}]
steps:
  - name: mass
    query:
      kind: relation
      action: massRelate
      entity: Post
      id: p1
      relation: tags
      query:
        where: {name*: "go%"}
    expect:
      affected: 2
  - name: read
    query:
      kind: related
      entity: Post
      id: p1
      relation: tags
      query:
        select: [id]
        orderBy: [id]
    expect:
      rows: [{id: t1}, {id: t2}]
assertions:
  - type: row_count
    table: post_tag
    count: 2
  - type: trace_contains
    kind: related
    contains: "JOIN `+"`post_tag`"+`"
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_CompileOnly(t *testing.T) {
	result := runYAML(t, `
name: compile_only
description: "Statements compiled but not executed"
steps:
  - compileOnly: true
    query: {kind: delete, entity: Tag, id: t1, hard: true}
    expect:
      sql: "DELETE FROM `+"`tag`"+` WHERE tag.id = 't1' AND tag.deleted = '0'"
      check: true
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 1)
	assert.Nil(t, result.Trace[0].Affected)
	assert.Nil(t, result.Trace[0].Rows)
}

func TestRun_SeedsGeneratedIDs(t *testing.T) {
	result := runYAML(t, `
name: ids
description: "Fixture ids are deterministic"
fixtures:
  Tag: [{name: go}, {name: sql}]
steps:
  - query: {kind: select, entity: Tag, select: [id, name], orderBy: [name]}
    expect:
      rows: [{id: fixture-tag-1, name: go}, {id: fixture-tag-2, name: sql}]
`)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		contain string
	}{
		{
			name: "unknown fixture entity",
			yaml: `
name: n
description: d
fixtures:
  Widget: [{id: w1}]
steps:
  - query: {entity: Tag}
`,
			contain: "failed to seed fixtures",
		},
		{
			name: "undecodable query",
			yaml: `
name: n
description: d
steps:
  - query: {kind: merge, entity: Tag}
`,
			contain: `unknown query kind "merge"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario, err := ParseScenario([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = Run(scenario, testutil.Registry())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contain)
		})
	}
}

func TestRun_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	result := runYAML(t, `
name: logged
description: d
fixtures:
  Tag: [{id: t1}]
steps:
  - name: only
    query: {entity: Tag}
`, WithLogger(logger))
	assert.True(t, result.Pass)
	assert.Contains(t, buf.String(), "seeded fixtures")
	assert.Contains(t, buf.String(), "step completed")
	assert.Contains(t, buf.String(), "step=only")
}
