package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ReadUnit returns the unit with the given hash.
// found is false if no such unit was deployed.
func (s *Store) ReadUnit(ctx context.Context, hash string) (u Unit, found bool, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT hash, protocol, version, document, seq
		FROM units
		WHERE hash = ?
	`, hash).Scan(&u.Hash, &u.Protocol, &u.Version, &u.Document, &u.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return Unit{}, false, nil
	}
	if err != nil {
		return Unit{}, false, fmt.Errorf("read unit: %w", err)
	}
	return u, true, nil
}

// ReadUnits returns every deployed unit in deployment order.
// Returns an empty slice (not nil) if none exist.
func (s *Store) ReadUnits(ctx context.Context) ([]Unit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, protocol, version, document, seq
		FROM units
		ORDER BY seq ASC, hash COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	units := []Unit{}
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.Hash, &u.Protocol, &u.Version, &u.Document, &u.Seq); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate units: %w", err)
	}
	return units, nil
}

// ReadState returns the stored snapshot of a unit.
// found is false if the unit has never committed a snapshot.
func (s *Store) ReadState(ctx context.Context, unitHash string) (snapshot map[string]string, found bool, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value
		FROM protocol_state
		WHERE unit_hash = ?
		ORDER BY key COLLATE BINARY ASC
	`, unitHash)
	if err != nil {
		return nil, false, fmt.Errorf("query state: %w", err)
	}
	defer rows.Close()

	snapshot = map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, false, fmt.Errorf("scan state: %w", err)
		}
		snapshot[k] = v
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate state: %w", err)
	}
	return snapshot, found, nil
}

const invocationColumns = `id, seq, unit_hash, method, args, ctx, status, result, error, state_hash, engine_version, ir_version`

// ReadInvocation returns a single invocation by ID.
func (s *Store) ReadInvocation(ctx context.Context, id string) (Invocation, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+invocationColumns+` FROM invocations WHERE id = ?`, id)
	inv, err := scanInvocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Invocation{}, false, nil
	}
	if err != nil {
		return Invocation{}, false, err
	}
	return inv, true, nil
}

// ReadInvocations returns all invocations of a unit.
// Results are ordered deterministically: ORDER BY seq ASC, id COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if the unit has no invocations.
func (s *Store) ReadInvocations(ctx context.Context, unitHash string) ([]Invocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invocationColumns+`
		FROM invocations
		WHERE unit_hash = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, unitHash)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	invocations := []Invocation{}
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		invocations = append(invocations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	return invocations, nil
}

// EventFilter selects events. Empty fields match everything.
type EventFilter struct {
	UnitHash     string
	InvocationID string
	Method       string
	Name         string
}

// where compiles the filter to a parameterized WHERE clause.
// Values are always bound, never interpolated.
func (f EventFilter) where() (string, []any) {
	var conds []string
	var params []any
	add := func(cond, val string) {
		if val == "" {
			return
		}
		conds = append(conds, cond)
		params = append(params, val)
	}
	add("i.unit_hash = ?", f.UnitHash)
	add("e.invocation_id = ?", f.InvocationID)
	add("i.method = ?", f.Method)
	add("e.name = ?", f.Name)
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), params
}

// ReadEvents returns events matching the filter.
// Results are ordered deterministically: ORDER BY seq ASC, invocation id, then position.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	where, params := filter.where()
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.invocation_id, e.idx, e.seq, e.name, e.vals
		FROM events e
		JOIN invocations i ON e.invocation_id = i.id
		`+where+`
		ORDER BY e.seq ASC, e.invocation_id COLLATE BINARY ASC, e.idx ASC
	`, params...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var ev Event
		var valsJSON string
		if err := rows.Scan(&ev.InvocationID, &ev.Idx, &ev.Seq, &ev.Name, &valsJSON); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.Values, err = unmarshalList(valsJSON); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// MaxSeq returns the highest logical clock value recorded, or 0 for an
// empty store. Used to resume the clock after restart.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM (
			SELECT seq FROM units
			UNION ALL
			SELECT seq FROM invocations
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq.Int64, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvocation(row rowScanner) (Invocation, error) {
	var inv Invocation
	var argsJSON, ctxJSON string
	err := row.Scan(
		&inv.ID,
		&inv.Seq,
		&inv.UnitHash,
		&inv.Method,
		&argsJSON,
		&ctxJSON,
		&inv.Status,
		&inv.Result,
		&inv.Error,
		&inv.StateHash,
		&inv.EngineVersion,
		&inv.IRVersion,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Invocation{}, err
	}
	if err != nil {
		return Invocation{}, fmt.Errorf("scan invocation: %w", err)
	}
	if inv.Args, err = unmarshalList(argsJSON); err != nil {
		return Invocation{}, fmt.Errorf("scan invocation %s: %w", inv.ID, err)
	}
	if inv.Ctx, err = unmarshalMap(ctxJSON); err != nil {
		return Invocation{}, fmt.Errorf("scan invocation %s: %w", inv.ID, err)
	}
	return inv, nil
}
