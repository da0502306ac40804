package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test: one protocol, a flow of
// invocations, and assertions on the resulting trace and state.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Source is the path of a .car file, relative to the scenario file.
	Source string `yaml:"source,omitempty"`

	// Protocol is inline source text, used when Source is empty.
	Protocol string `yaml:"protocol,omitempty"`

	// Ctx is the execution context applied to every step.
	Ctx map[string]any `yaml:"ctx,omitempty"`

	// Flow contains the invocations, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// FlowStep is one invocation.
type FlowStep struct {
	// Invoke is the method name.
	Invoke string `yaml:"invoke"`

	// Args are positional. Scalars are converted to their text form.
	Args []any `yaml:"args,omitempty"`

	// Ctx overrides scenario ctx keys for this step.
	Ctx map[string]any `yaml:"ctx,omitempty"`

	// Expect validates the outcome. If nil the step must merely not fault.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Result is the expected return value. Ignored when nil.
	Result any `yaml:"result,omitempty"`

	// Fault is the expected runtime error code, e.g. UNKNOWN_METHOD.
	Fault string `yaml:"fault,omitempty"`

	// Events are the exact events the step must emit, when set.
	Events []EventSpec `yaml:"events,omitempty"`
}

// EventSpec describes one expected event.
type EventSpec struct {
	Name   string `yaml:"name"`
	Values []any  `yaml:"values"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, final_state.
	Type string `yaml:"type"`

	// Event is the event name (trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Method counts invocations instead of events (trace_count).
	Method string `yaml:"method,omitempty"`

	// Values are the expected event values (trace_contains). Exact match when set.
	Values []any `yaml:"values,omitempty"`

	// Events is the expected first-occurrence order (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Expect maps flat state keys to values (final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields. Source is
// resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.Source != "" && !filepath.IsAbs(s.Source) {
		s.Source = filepath.Join(filepath.Dir(path), s.Source)
	}
	if err := validateScenario(s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return s, nil
}

// ParseScenario decodes scenario YAML without resolving or validating paths.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &s, nil
}

// sourceText returns the protocol source of the scenario.
func (s *Scenario) sourceText() (string, error) {
	if s.Source == "" {
		return s.Protocol, nil
	}
	data, err := os.ReadFile(s.Source)
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	return string(data), nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Source == "" && s.Protocol == "" {
		return fmt.Errorf("source or protocol is required")
	}
	if s.Source != "" && s.Protocol != "" {
		return fmt.Errorf("source and protocol are mutually exclusive")
	}
	if s.Source != "" {
		if _, err := os.Stat(s.Source); os.IsNotExist(err) {
			return fmt.Errorf("source file not found: %s", s.Source)
		}
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if step.Invoke == "" {
			return fmt.Errorf("flow[%d]: invoke is required", i)
		}
		if step.Expect != nil && step.Expect.Fault != "" && step.Expect.Result != nil {
			return fmt.Errorf("flow[%d].expect: result and fault are mutually exclusive", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
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
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" && a.Method == "" {
			return fmt.Errorf("assertions[%d]: event or method is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// text renders a YAML scalar the way the runtime sees it.
func text(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func texts(vs []any) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = text(v)
	}
	return out
}

func textMap(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = text(v)
	}
	return out
}
