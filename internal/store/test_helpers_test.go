package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ormsql/internal/ir"
	"github.com/roach88/ormsql/internal/testutil"
)

// createTestStore creates a new file-backed store over the shared test schema.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, testutil.Registry())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// row builds an IRObject from plain Go values.
func row(t *testing.T, kv map[string]any) ir.IRObject {
	t.Helper()
	obj := make(ir.IRObject, len(kv))
	for k, v := range kv {
		val, err := ir.FromGo(v)
		require.NoError(t, err)
		obj[k] = val
	}
	return obj
}
