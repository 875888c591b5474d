package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/ormsql/internal/ir"
	"github.com/roach88/ormsql/internal/queryir"
)

// Exec runs one statement and returns the number of rows it changed.
func (s *Store) Exec(ctx context.Context, stmt string) (int64, error) {
	res, err := s.db.ExecContext(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("exec: rows affected: %w", err)
	}
	s.logger.Debug("executed statement", "sql", stmt, "affected", n)
	return n, nil
}

// Seed inserts fixture rows for entityType through the SQLite compiler.
//
// Each row's keys are attribute names. Values are assigned in attribute
// declaration order so the generated statements are stable. A row without
// an id gets one from gen, a UUIDv7 when gen is nil. Unknown keys are an error.
func (s *Store) Seed(ctx context.Context, entityType string, rows []ir.IRObject, gen queryir.IDGenerator) error {
	e, ok := s.reg.Entity(entityType)
	if !ok {
		return fmt.Errorf("seed %s: unknown entity type", entityType)
	}
	if gen == nil {
		gen = queryir.UUIDv7Generator{}
	}

	for i, row := range rows {
		var unknown []string
		for key := range row {
			if _, ok := e.Attribute(key); !ok {
				unknown = append(unknown, key)
			}
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			return fmt.Errorf("seed %s[%d]: unknown attributes %s", entityType, i, strings.Join(unknown, ", "))
		}

		values := make(queryir.Values, 0, len(row))
		for _, a := range e.Attributes {
			if v, ok := row[a.Name]; ok {
				values = append(values, queryir.Set(a.Name, v))
			}
		}
		var q queryir.Query = &queryir.Insert{EntityType: entityType, Values: values}
		if _, ok := e.Attribute("id"); ok {
			q = queryir.EnsureID(q, gen)
		}

		st, err := s.compiler.Compile(q)
		if err != nil {
			return fmt.Errorf("seed %s[%d]: %w", entityType, i, err)
		}
		if _, err := s.Exec(ctx, st.SQL); err != nil {
			return fmt.Errorf("seed %s[%d]: %w", entityType, i, err)
		}
	}
	return nil
}
