// Package queryir provides the query intermediate representation consumed
// by the SQL compiler.
//
// ARCHITECTURE:
//
// queryir sits between query producers (Go callers, YAML/JSON documents,
// the CLI) and the dialect compiler:
//
//	[Go structs | YAML documents] → [queryir] → [querysql] → SQL text
//
// CONTENTS:
//   - Query: sealed statement kinds (Select, SelectRelated, Insert, Update,
//     Delete, RelationChange)
//   - Filter: ordered key/value filter entries with OR/AND/NOT groups
//   - Condition: a filter key parsed once into path, operator and
//     right-hand side kind, so no later stage re-reads key suffixes
//   - Expr: sealed expression tree (Literal, AttributeRef, FunctionCall, Raw)
//   - CompileError: the error taxonomy shared by every compile stage
//
// SEALED INTERFACES:
//
// Query and Expr use the marker method pattern. Only types in this package
// implement them, so compiler type switches are exhaustive:
//
//	switch q := query.(type) {
//	case *Select:
//	    // Handle select
//	case *Insert:
//	    // Handle insert
//	default:
//	    // Impossible - compiler knows all Query types
//	}
//
// ORDER:
//
// Filters are slices, not maps. Sibling order decides the order of the
// emitted conjuncts, and compiled SQL must be byte-stable, so decoding
// from YAML walks yaml.Node content instead of decoding into maps.
package queryir
