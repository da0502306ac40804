package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/cardity-org/cardity-core/internal/ir"
)

// Snapshot renders a result as canonical JSON for golden comparison.
// The state is included so a golden file pins both the trace and the
// persisted snapshot.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, ev := range result.Trace {
		m := map[string]any{
			"type": ev.Kind,
			"seq":  ev.Seq,
		}
		switch ev.Kind {
		case KindInvocation:
			m["method"] = ev.Method
			m["args"] = ev.Args
			if ev.Fault != "" {
				m["fault"] = ev.Fault
			} else {
				m["result"] = ev.Result
			}
		case KindEvent:
			m["event"] = ev.Event
			m["values"] = ev.Values
		}
		trace[i] = m
	}

	state := result.State
	if state == nil {
		state = map[string]string{}
	}
	return ir.MarshalCanonical(map[string]any{
		"protocol":      result.Protocol,
		"scenario_name": scenarioName,
		"state":         state,
		"trace":         trace,
	})
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. A mismatch fails t via goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
