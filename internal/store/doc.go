// Package store provides a SQLite sandbox whose tables mirror an entity
// schema, so compiled statements can be executed and their effects read
// back.
//
// The sandbox holds:
//   - one table per entity, with a column for every storable attribute
//   - one table per junction of a many-to-many relation, with the near and
//     far keys, the relation condition columns and a deleted flag
//   - an ormsql_meta table recording the schema hash the tables were built from
//
// # Critical Patterns
//
// Deterministic Reads:
//   - Dump orders by rowid, so rows come back in insertion order
//   - Query returns columns in statement order and rows as IRObjects
//
// Schema Identity:
//   - Reopening a database built from a different schema fails with
//     ErrSchemaMismatch instead of silently mixing layouts
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes (file databases only)
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforced where declared; generated tables declare none
//
// Writes go through the SQLite dialect of the query compiler, so seeding
// fixtures exercises the same code path as compiled scenario statements.
package store
