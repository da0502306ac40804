package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, ev := range e.Trace {
		switch ev.Kind {
		case KindInvocation:
			fmt.Fprintf(&buf, "  [%d] %s%q", i+1, ev.Method, ev.Args)
			if ev.Fault != "" {
				fmt.Fprintf(&buf, " fault=%s", ev.Fault)
			}
			buf.WriteByte('\n')
		case KindEvent:
			fmt.Fprintf(&buf, "  [%d]   emit %s%q\n", i+1, ev.Event, ev.Values)
		}
	}

	return buf.String()
}

// assertTraceContains checks that the trace has an event with the given
// name and, if values are specified, exactly those values.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	want := texts(assertion.Values)
	for _, ev := range trace {
		if ev.Kind != KindEvent || ev.Event != assertion.Event {
			continue
		}
		if len(assertion.Values) == 0 || slices.Equal(ev.Values, want) {
			return nil
		}
	}

	expected := fmt.Sprintf("event %s", assertion.Event)
	if len(assertion.Values) > 0 {
		expected += fmt.Sprintf(" with values %q", want)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that events first occur in the specified order.
// Events don't need to be consecutive.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, ev := range trace {
		if ev.Kind != KindEvent {
			continue
		}
		if _, seen := positions[ev.Event]; !seen {
			positions[ev.Event] = i + 1 // 1-indexed for readability
		}
	}

	for _, name := range assertion.Events {
		if positions[name] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all events present: %v", assertion.Events),
				Actual:   fmt.Sprintf("missing event: %s", name),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Events); i++ {
		prev := assertion.Events[i-1]
		curr := assertion.Events[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", assertion.Events),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the exact number of events with a name, or of
// invocations of a method when Method is set.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	what := assertion.Event
	for _, ev := range trace {
		switch {
		case assertion.Method != "":
			if ev.Kind == KindInvocation && ev.Method == assertion.Method {
				count++
			}
		case ev.Kind == KindEvent && ev.Event == assertion.Event:
			count++
		}
	}
	if assertion.Method != "" {
		what = assertion.Method + "()"
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, what),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks the persisted snapshot with subset semantics.
// Keys use the flat form: "count", "balances@alice".
func assertFinalState(result *Result, assertion Assertion) error {
	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var mismatches []string
	for _, k := range keys {
		want := text(assertion.Expect[k])
		got, ok := result.State[k]
		switch {
		case !ok:
			mismatches = append(mismatches, fmt.Sprintf("%s: missing", k))
		case got != want:
			mismatches = append(mismatches, fmt.Sprintf("%s: %q != %q", k, got, want))
		}
	}
	if len(mismatches) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: fmt.Sprintf("state %v", assertion.Expect),
		Actual:   strings.Join(mismatches, "; "),
		Trace:    result.Trace,
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
