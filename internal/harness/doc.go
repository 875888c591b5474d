// Package harness runs query compilation scenarios.
//
// A scenario seeds fixtures into an in-memory SQLite sandbox laid out from
// the entity schema, then compiles every step twice: once for the target
// dialect, whose SQL text is compared against the step's expectation, and
// once for SQLite, which is executed in the sandbox so the statement's
// effect can be checked.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: soft_delete_filter
//	description: "Soft-deleted posts stay hidden"
//	schema: ../schema            # optional CUE entity directory
//	dialect: mysql               # target of expected SQL text
//	fixtures:
//	  Post:
//	    - { id: "1", name: "Hello" }
//	steps:
//	  - name: list
//	    query:
//	      kind: select
//	      entity: Post
//	      select: [id, name]
//	    expect:
//	      sql: "SELECT post.id AS `id`, post.name AS `name` FROM `post` WHERE post.deleted = '0'"
//	      check: true
//	      rows:
//	        - { id: "1", name: "Hello" }
//	assertions:
//	  - type: trace_count
//	    kind: select
//	    count: 1
//	  - type: final_state
//	    table: post
//	    where: { id: "1" }
//	    expect: { deleted: 0 }
//
// # Assertion Types
//
//   - trace_contains: a statement of kind (and entity) contains a SQL fragment
//   - trace_count: exactly N statements of a kind compiled
//   - final_state: exactly one sandbox row matches and holds the expected values
//   - row_count: a sandbox table holds N rows matching a filter
//
// # Deterministic Testing
//
// Fixture rows without an id get fixture-<table>-<n>, the sandbox is an
// in-memory database per run, and the compiler is a pure function of the
// schema and the query, so traces are identical across runs and can be
// compared against golden snapshots.
package harness
