package harness

// Trace entry kinds.
const (
	KindInvocation = "invocation"
	KindEvent      = "event"
)

// TraceEvent is one entry of a scenario trace: an invocation, or an event
// emitted by the invocation before it.
type TraceEvent struct {
	Kind   string   `json:"type"`
	Seq    int64    `json:"seq"`
	Method string   `json:"method,omitempty"`
	Args   []string `json:"args,omitempty"`
	Result string   `json:"result,omitempty"`
	Fault  string   `json:"fault,omitempty"`
	Event  string   `json:"event,omitempty"`
	Values []string `json:"values,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Protocol is the name of the compiled protocol.
	Protocol string `json:"protocol"`

	// Trace holds invocations and their events in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the persisted snapshot after the flow.
	State map[string]string `json:"state,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  map[string]string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddInvocation appends an invocation to the trace. fault is the runtime
// error code, empty on success.
func (r *Result) AddInvocation(seq int64, method string, args []string, result, fault string) {
	r.Trace = append(r.Trace, TraceEvent{
		Kind:   KindInvocation,
		Seq:    seq,
		Method: method,
		Args:   args,
		Result: result,
		Fault:  fault,
	})
}

// AddEvent appends an emitted event to the trace.
func (r *Result) AddEvent(seq int64, name string, values []string) {
	r.Trace = append(r.Trace, TraceEvent{
		Kind:   KindEvent,
		Seq:    seq,
		Event:  name,
		Values: values,
	})
}

// Events returns the event entries of the trace.
func (r *Result) Events() []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Kind == KindEvent {
			out = append(out, ev)
		}
	}
	return out
}
