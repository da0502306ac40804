package store

import (
	"context"
	"fmt"
)

// UnitLog is the full recorded history of a unit, in replay order.
type UnitLog struct {
	Unit        Unit
	Invocations []Invocation
	// Events maps invocation ID to that invocation's events in emission order.
	Events   map[string][]Event
	Snapshot map[string]string
	LastSeq  int64
	OK       int
	Faulted  int
}

// ReadLog retrieves everything needed to replay a unit.
// found is false if the unit was never deployed.
func (s *Store) ReadLog(ctx context.Context, unitHash string) (log UnitLog, found bool, err error) {
	unit, found, err := s.ReadUnit(ctx, unitHash)
	if err != nil || !found {
		return UnitLog{}, found, err
	}
	log.Unit = unit
	log.LastSeq = unit.Seq

	if log.Invocations, err = s.ReadInvocations(ctx, unitHash); err != nil {
		return UnitLog{}, true, fmt.Errorf("read log: %w", err)
	}
	for _, inv := range log.Invocations {
		if inv.Seq > log.LastSeq {
			log.LastSeq = inv.Seq
		}
		if inv.Status == StatusOK {
			log.OK++
		} else {
			log.Faulted++
		}
	}

	events, err := s.ReadEvents(ctx, EventFilter{UnitHash: unitHash})
	if err != nil {
		return UnitLog{}, true, fmt.Errorf("read log: %w", err)
	}
	log.Events = make(map[string][]Event, len(log.Invocations))
	for _, ev := range events {
		log.Events[ev.InvocationID] = append(log.Events[ev.InvocationID], ev)
	}

	if log.Snapshot, _, err = s.ReadState(ctx, unitHash); err != nil {
		return UnitLog{}, true, fmt.Errorf("read log: %w", err)
	}
	return log, true, nil
}
