package engine

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/cardity-org/cardity-core/internal/ir"
	"github.com/cardity-org/cardity-core/internal/store"
)

// Mismatch is one divergence between the log and the replayed execution.
type Mismatch struct {
	InvocationID string
	Field        string
	Want         string
	Got          string
}

func (m Mismatch) String() string {
	if m.InvocationID == "" {
		return fmt.Sprintf("%s: want %s, got %s", m.Field, m.Want, m.Got)
	}
	return fmt.Sprintf("%s: %s: want %s, got %s", m.InvocationID, m.Field, m.Want, m.Got)
}

// ReplayReport summarizes a replay.
type ReplayReport struct {
	UnitHash   string
	Protocol   string
	Replayed   int
	Skipped    int
	Mismatches []Mismatch
	Expected   map[string]string
	Actual     map[string]string
}

// OK reports whether the replay reproduced the log exactly.
func (r *ReplayReport) OK() bool { return len(r.Mismatches) == 0 }

// Replay re-executes the recorded history of unitHash from initial state
// and compares every step with what was committed.
//
// Live execution and replay share the interpreter. Determinism comes from
// the inputs: the recorded args and ctx (including the txid assigned at
// commit) and the seq order of the log. Faulted invocations never changed
// the snapshot and are skipped.
func Replay(ctx context.Context, s *store.Store, unitHash string) (*ReplayReport, error) {
	log, found, err := s.ReadLog(ctx, unitHash)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("replay %s: %w", unitHash, ErrUnitNotFound)
	}
	u, err := LoadJSON(log.Unit.Protocol, []byte(log.Unit.Document))
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	report := &ReplayReport{
		UnitHash:   unitHash,
		Protocol:   u.Name,
		Mismatches: []Mismatch{},
		Expected:   log.Snapshot,
	}
	st := u.InitializeState()

	for _, inv := range log.Invocations {
		if inv.Status != store.StatusOK {
			report.Skipped++
			continue
		}
		report.Replayed++

		var events EventLog
		out, err := Invoke(u, st, &events, inv.Method, inv.Args, inv.Ctx)
		if err != nil {
			report.add(inv.ID, "status", store.StatusOK, err.Error())
			continue
		}
		if out != inv.Result {
			report.add(inv.ID, "result", inv.Result, out)
		}
		if want, got := renderStoredEvents(log.Events[inv.ID]), renderEvents(events); want != got {
			report.add(inv.ID, "events", want, got)
		}
		if inv.StateHash != "" {
			got, err := ir.StateHash(st.Snapshot())
			if err != nil {
				return nil, fmt.Errorf("replay: %w", err)
			}
			if got != inv.StateHash {
				report.add(inv.ID, "state_hash", inv.StateHash, got)
			}
		}
	}

	report.Actual = st.Snapshot()
	if log.OK > 0 || len(log.Snapshot) > 0 {
		for _, key := range diffKeys(report.Expected, report.Actual) {
			want, ok := report.Expected[key]
			if !ok {
				want = "<absent>"
			}
			got, ok := report.Actual[key]
			if !ok {
				got = "<absent>"
			}
			report.add("", "state["+key+"]", want, got)
		}
	}
	return report, nil
}

func (r *ReplayReport) add(id, field, want, got string) {
	r.Mismatches = append(r.Mismatches, Mismatch{InvocationID: id, Field: field, Want: want, Got: got})
}

func renderEvents(log EventLog) string {
	parts := make([]string, len(log))
	for i, ev := range log {
		parts[i] = ev.Name + "(" + strings.Join(ev.Values, ",") + ")"
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func renderStoredEvents(events []store.Event) string {
	log := make(EventLog, len(events))
	for i, ev := range events {
		log[i] = EventLogEntry{Name: ev.Name, Values: ev.Values}
	}
	return renderEvents(log)
}

// diffKeys returns the sorted keys whose values differ between a and b.
func diffKeys(a, b map[string]string) []string {
	var keys []string
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			keys = append(keys, k)
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return slices.Compact(keys)
}
