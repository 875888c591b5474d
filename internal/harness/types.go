package harness

// Trace event types.
const (
	EventStatement = "statement"
	EventError     = "error"
)

// TraceEvent records one compiled step of a scenario.
type TraceEvent struct {
	Type     string   `json:"type"` // "statement" or "error"
	Seq      int64    `json:"seq"`
	Step     string   `json:"step"`
	Kind     string   `json:"kind"` // query document kind: select, insert, relation, ...
	Entity   string   `json:"entity"`
	SQL      string   `json:"sql,omitempty"` // target dialect statement
	Aliases  []string `json:"aliases,omitempty"`
	Affected *int64   `json:"affected,omitempty"` // sandbox rows changed, mutations only
	Rows     *int     `json:"rows,omitempty"`     // sandbox rows returned, selects only
	Error    string   `json:"error,omitempty"`    // compile error kind
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace contains one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addEvent appends e with the next sequence number.
func (r *Result) addEvent(e TraceEvent) {
	e.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, e)
}
