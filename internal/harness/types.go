package harness

// TraceEvent records one evaluation performed by a scenario.
type TraceEvent struct {
	Seq          int64  `json:"seq"`
	EvaluationID string `json:"evaluation_id"`
	State        string `json:"state"`
	StateID      uint64 `json:"state_id"`
	Input        string `json:"input"`
	Fired        bool   `json:"fired"`
	Action       string `json:"action,omitempty"`
	Error        string `json:"error,omitempty"`
	Explain      string `json:"explain"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds the evaluations in execution order.
	Trace []TraceEvent `json:"trace"`

	// Fired lists action names in firing order.
	Fired []string `json:"fired"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Fired:  []string{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
