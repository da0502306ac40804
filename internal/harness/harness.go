package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"

	"github.com/cardity-org/cardity-core/internal/compiler"
	"github.com/cardity-org/cardity-core/internal/engine"
	"github.com/cardity-org/cardity-core/internal/store"
	"github.com/cardity-org/cardity-core/internal/testutil"
)

// Harness executes one scenario against a fresh engine.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	unit   *engine.Unit
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. The
// clock starts at zero and invocation IDs are sequential ("inv-1", ...),
// so traces are reproducible.
//
// Execution flow:
//  1. Compile the protocol source and deploy it
//  2. Invoke each flow step, checking its expect clause
//  3. Read the persisted snapshot
//  4. Evaluate assertions
//
// A compile error is returned as an error. Failed expectations and
// assertions are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	src, err := scenario.sourceText()
	if err != nil {
		return nil, err
	}
	name := scenario.Name + ".car"
	if scenario.Source != "" {
		name = filepath.Base(scenario.Source)
	}
	compiled, err := compiler.Compile(name, []byte(src))
	if err != nil {
		return nil, fmt.Errorf("compile protocol: %w", err)
	}
	unit, err := engine.Load(compiled.Document)
	if err != nil {
		return nil, fmt.Errorf("load protocol: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	eng, err := engine.New(ctx, st,
		engine.WithClock(engine.NewClock()),
		engine.WithIDGenerator(testutil.NewSequentialIDs("inv")),
		engine.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	if err := eng.Deploy(ctx, unit); err != nil {
		return nil, err
	}

	h := &Harness{store: st, engine: eng, unit: unit, logger: logger}

	result := NewResult()
	result.Protocol = unit.Name
	if err := h.executeFlow(ctx, scenario, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	snapshot, _, err := st.ReadState(ctx, unit.Hash)
	if err != nil {
		return nil, err
	}
	result.State = snapshot

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// executeFlow invokes every step in order. Each step is committed by the
// engine before the next one starts.
func (h *Harness) executeFlow(ctx context.Context, scenario *Scenario, result *Result) error {
	base := textMap(scenario.Ctx)
	for i, step := range scenario.Flow {
		callCtx := maps.Clone(base)
		maps.Copy(callCtx, textMap(step.Ctx))
		args := texts(step.Args)

		res, err := h.engine.Invoke(ctx, engine.Request{
			UnitHash: h.unit.Hash,
			Method:   step.Invoke,
			Args:     args,
			Ctx:      callCtx,
		})
		if err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}

		fault := ""
		if res.Fault != nil {
			fault = string(res.Fault.Code)
		}
		result.AddInvocation(res.Seq, step.Invoke, args, res.Output, fault)
		for _, ev := range res.Events {
			result.AddEvent(res.Seq, ev.Name, ev.Values)
		}

		for _, msg := range checkExpect(i, step, res) {
			result.AddError(msg)
		}

		h.logger.Info("flow step completed",
			"step", i,
			"method", step.Invoke,
			"invocation_id", res.InvocationID,
			"fault", fault,
		)
	}
	return nil
}

// checkExpect compares one step's outcome with its expect clause. Without
// a clause the step must not fault.
func checkExpect(i int, step FlowStep, res *engine.Result) []string {
	var errs []string
	exp := step.Expect
	if exp == nil || exp.Fault == "" {
		if res.Fault != nil {
			return []string{fmt.Sprintf("flow step %d (%s): unexpected fault: %v", i, step.Invoke, res.Fault)}
		}
	}
	if exp == nil {
		return nil
	}

	if exp.Fault != "" {
		var got string
		if res.Fault != nil {
			got = string(res.Fault.Code)
		}
		if got != exp.Fault {
			errs = append(errs, fmt.Sprintf("flow step %d (%s): expected fault %s, got %q", i, step.Invoke, exp.Fault, got))
		}
		return errs
	}

	if exp.Result != nil {
		if want := text(exp.Result); res.Output != want {
			errs = append(errs, fmt.Sprintf("flow step %d (%s): expected result %q, got %q", i, step.Invoke, want, res.Output))
		}
	}
	if exp.Events != nil {
		var want, got []string
		for _, ev := range exp.Events {
			want = append(want, formatEvent(ev.Name, texts(ev.Values)))
		}
		for _, ev := range res.Events {
			got = append(got, formatEvent(ev.Name, ev.Values))
		}
		if !slices.Equal(want, got) {
			errs = append(errs, fmt.Sprintf("flow step %d (%s): expected events %v, got %v", i, step.Invoke, want, got))
		}
	}
	return errs
}

func formatEvent(name string, values []string) string {
	return fmt.Sprintf("%s%q", name, values)
}
