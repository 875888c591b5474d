package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/ormsql/internal/ir"
)

// Query runs a statement that returns rows and converts every row into
// an IRObject keyed by column name.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) Query(ctx context.Context, stmt string) ([]ir.IRObject, error) {
	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	s.logger.Debug("queried statement", "sql", stmt, "rows", len(out))
	return out, nil
}

// Dump returns every row of a table in insertion order.
//
// The table must exist in the database; its name is never interpolated
// unchecked.
func (s *Store) Dump(ctx context.Context, table string) ([]ir.IRObject, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dump %s: no such table", table)
	}
	if err != nil {
		return nil, fmt.Errorf("dump %s: %w", table, err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+quote(name)+" ORDER BY rowid ASC")
	if err != nil {
		return nil, fmt.Errorf("dump %s: %w", table, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("dump %s: %w", table, err)
	}
	return out, nil
}

// Tables returns the names of the tables built from the schema, sorted.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name != 'ormsql_meta'
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// scanRows reads every remaining row of rows.
func scanRows(rows *sql.Rows) ([]ir.IRObject, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	out := []ir.IRObject{}
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		obj := make(ir.IRObject, len(cols))
		for i, col := range cols {
			v, err := fromColumn(raw[i])
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col, err)
			}
			obj[col] = v
		}
		out = append(out, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
