package schema

import (
	"sync/atomic"

	"github.com/roach88/ormsql/internal/ir"
)

// Store holds the current registry and swaps it copy-on-write.
//
// Compilations take one Snapshot and use it to the end, so a Reload
// never changes metadata under an in-flight compilation.
//
// Thread-safety: all methods are safe for concurrent use.
type Store struct {
	current atomic.Pointer[Registry]
}

// NewStore creates a store serving r.
func NewStore(r *Registry) *Store {
	s := &Store{}
	s.current.Store(r)
	return s
}

// Snapshot returns the registry current at the time of the call.
func (s *Store) Snapshot() *Registry {
	return s.current.Load()
}

// Swap installs r and returns the registry it replaced.
func (s *Store) Swap(r *Registry) *Registry {
	return s.current.Swap(r)
}

// Reload builds a registry from specs and installs it.
// On error the current registry stays in place.
func (s *Store) Reload(specs []ir.EntitySpec) error {
	r, err := NewRegistry(specs)
	if err != nil {
		return err
	}
	s.current.Store(r)
	return nil
}
