package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ormsql/internal/dialect"
)

// Scenario defines a query compilation scenario.
// Fixtures are seeded into a fresh sandbox, then every step is compiled
// for Dialect, checked against its expect clause and executed in the
// sandbox; assertions run on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the directory of CUE entity metadata.
	// Relative paths resolve against the scenario file location.
	// Empty means the caller supplies the registry.
	Schema string `yaml:"schema,omitempty"`

	// Dialect is the target of expected SQL text: mysql (default) or sqlite.
	Dialect string `yaml:"dialect,omitempty"`

	// Fixtures maps entity types to rows of attribute values.
	// Entities are seeded in name order, rows in list order.
	Fixtures map[string][]map[string]any `yaml:"fixtures,omitempty"`

	// Steps are compiled and executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and sandbox state.
	// Supported types: trace_contains, trace_count, final_state, row_count
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one query document with its expectations.
type Step struct {
	// Name labels the step in the trace; defaults to step<N>.
	Name string `yaml:"name,omitempty"`

	// Query is a query document (see queryir.DecodeQuery).
	Query yaml.Node `yaml:"query"`

	// CompileOnly skips sandbox execution, for statements SQLite cannot
	// express (full-text matches, MySQL-only functions).
	CompileOnly bool `yaml:"compileOnly,omitempty"`

	// Expect specifies the expected outcome. Nil means only success.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies expected step behavior.
type ExpectClause struct {
	// SQL is the exact target-dialect statement.
	SQL string `yaml:"sql,omitempty"`

	// Aliases are the compiler-introduced aliases, in order.
	Aliases []string `yaml:"aliases,omitempty"`

	// Error is the expected compile error kind (e.g. UnknownAttribute).
	// The step is not executed.
	Error string `yaml:"error,omitempty"`

	// Check parses the MySQL statement with the TiDB parser.
	Check bool `yaml:"check,omitempty"`

	// Rows are the expected sandbox rows of a select, in order.
	// Each row is a subset match; the row count must match exactly.
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Affected is the expected number of sandbox rows a mutation changed.
	Affected *int64 `yaml:"affected,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a statement of Kind (and Entity) whose SQL contains Contains
	// - "trace_count": exactly Count statements of Kind
	// - "final_state": exactly one row of Table matching Where has Expect
	// - "row_count": Table holds Count rows matching Where
	Type string `yaml:"type"`

	// Kind is the query document kind (used by trace_contains, trace_count).
	Kind string `yaml:"kind,omitempty"`

	// Entity narrows trace_contains to one entity type.
	Entity string `yaml:"entity,omitempty"`

	// Contains is a substring of the expected SQL (used by trace_contains).
	Contains string `yaml:"contains,omitempty"`

	// Table is the sandbox table name (used by final_state, row_count).
	Table string `yaml:"table,omitempty"`

	// Where filters rows by column value (used by final_state, row_count).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected column values (used by final_state).
	// Subset match - only specified columns are validated.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of occurrences (used by trace_count, row_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertRowCount      = "row_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative schema path resolves against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}
	if scenario.Schema != "" {
		if _, err := os.Stat(scenario.Schema); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: schema directory not found: %s", scenario.Schema)
		}
	}

	return scenario, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Dialect != "" {
		if dialect.Get(s.Dialect) == nil {
			return fmt.Errorf("unknown dialect %q", s.Dialect)
		}
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	names := make(map[string]bool, len(s.Steps))
	for i := range s.Steps {
		step := &s.Steps[i]
		if step.Name == "" {
			step.Name = fmt.Sprintf("step%d", i+1)
		}
		if names[step.Name] {
			return fmt.Errorf("steps[%d]: duplicate step name %q", i, step.Name)
		}
		names[step.Name] = true

		if step.Query.Kind == 0 {
			return fmt.Errorf("steps[%d]: query is required", i)
		}
		if step.Expect == nil {
			continue
		}
		if err := validateExpect(i, s, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateExpect(i int, s *Scenario, step *Step) error {
	e := step.Expect
	if e.Error != "" && (e.SQL != "" || e.Rows != nil || e.Affected != nil || e.Check) {
		return fmt.Errorf("steps[%d].expect: error excludes sql, rows, affected and check", i)
	}
	if e.Check && s.Dialect != "" && dialect.Get(s.Dialect).Name != dialect.NameMySQL {
		return fmt.Errorf("steps[%d].expect: check needs the mysql dialect", i)
	}
	if step.CompileOnly && (e.Rows != nil || e.Affected != nil) {
		return fmt.Errorf("steps[%d].expect: rows and affected need sandbox execution", i)
	}
	if e.Rows != nil && e.Affected != nil {
		return fmt.Errorf("steps[%d].expect: rows and affected are exclusive", i)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_contains", index)
		}
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRowCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for row_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
