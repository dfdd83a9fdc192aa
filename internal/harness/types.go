package harness

// Trace event types.
const (
	EventPushdown     = "pushdown"
	EventDeclined     = "declined"
	EventCached       = "cached"
	EventMaterialized = "materialized"
	EventResult       = "result"
	EventError        = "error"
)

// TraceEvent is one recorded step of a scenario run.
type TraceEvent struct {
	Seq      int64  `json:"seq"`
	Step     string `json:"step"`
	Backend  string `json:"backend"`
	Type     string `json:"type"`
	Request  string `json:"request,omitempty"`
	Value    any    `json:"value,omitempty"`
	Error    string `json:"error,omitempty"`
	Elements int    `json:"elements,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every answer matched its expectation and the
	// reference evaluator.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`
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

func (r *Result) add(e TraceEvent) {
	e.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, e)
}
