package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ormsql/internal/testutil"
)

func TestRunWithGolden_PostTags(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/post_tags.yaml")
	require.NoError(t, err)

	// Regenerate with: go test ./internal/harness -run TestRunWithGolden -update
	require.NoError(t, RunWithGolden(t, scenario, testutil.Registry()))
}

func TestSnapshot_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/post_tags.yaml")
	require.NoError(t, err)

	first, err := Run(scenario, testutil.Registry())
	require.NoError(t, err)
	second, err := Run(scenario, testutil.Registry())
	require.NoError(t, err)

	a, err := Snapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestSnapshot_OmitsUnsetFields(t *testing.T) {
	result := NewResult()
	result.addEvent(TraceEvent{Type: EventError, Step: "s", Kind: "insert", Entity: "Tag", Error: "InvalidQuery"})

	got, err := Snapshot("only_error", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"only_error","trace":[{"entity":"Tag","error":"InvalidQuery","kind":"insert","seq":1,"step":"s","type":"error"}]}`,
		string(got))
}

func TestSnapshot_EmptyTrace(t *testing.T) {
	got, err := Snapshot("empty", NewResult())
	require.NoError(t, err)
	assert.Equal(t, `{"scenario_name":"empty","trace":[]}`, string(got))
}
