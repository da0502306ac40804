package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// WriteUnit records a deployed unit.
// Uses ON CONFLICT(hash) DO NOTHING: redeploying identical content is a no-op.
func (s *Store) WriteUnit(ctx context.Context, u Unit) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO units (hash, protocol, version, document, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, u.Hash, u.Protocol, u.Version, u.Document, u.Seq)
	if err != nil {
		return fmt.Errorf("write unit: %w", err)
	}
	return nil
}

// WriteState replaces the stored snapshot of a unit.
func (s *Store) WriteState(ctx context.Context, unitHash string, snapshot map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write state: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := replaceState(ctx, tx, unitHash, snapshot); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write state: commit: %w", err)
	}
	return nil
}

// CommitInvocation atomically records an invocation with its events and,
// when the invocation succeeded, replaces the unit's snapshot.
//
// Returns inserted=false when an invocation with the same ID already
// exists. Nothing else is written in that case.
func (s *Store) CommitInvocation(ctx context.Context, inv Invocation, events []Event, snapshot map[string]string) (inserted bool, err error) {
	argsJSON, err := marshalList(inv.Args)
	if err != nil {
		return false, fmt.Errorf("commit invocation: %w", err)
	}
	ctxJSON, err := marshalMap(inv.Ctx)
	if err != nil {
		return false, fmt.Errorf("commit invocation: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("commit invocation: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO invocations
		(id, seq, unit_hash, method, args, ctx, status, result, error, state_hash, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		inv.ID,
		inv.Seq,
		inv.UnitHash,
		inv.Method,
		argsJSON,
		ctxJSON,
		inv.Status,
		inv.Result,
		inv.Error,
		inv.StateHash,
		inv.EngineVersion,
		inv.IRVersion,
	)
	if err != nil {
		return false, fmt.Errorf("commit invocation: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("commit invocation: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	for i, ev := range events {
		valsJSON, err := marshalList(ev.Values)
		if err != nil {
			return false, fmt.Errorf("commit invocation: event %d: %w", i, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO events (invocation_id, idx, seq, name, vals)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, inv.ID, i, inv.Seq, ev.Name, valsJSON)
		if err != nil {
			return false, fmt.Errorf("commit invocation: event %d: %w", i, err)
		}
	}

	if inv.Status == StatusOK {
		if err := replaceState(ctx, tx, inv.UnitHash, snapshot); err != nil {
			return false, fmt.Errorf("commit invocation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit invocation: commit: %w", err)
	}
	return true, nil
}

// replaceState swaps the snapshot rows of a unit inside tx.
func replaceState(ctx context.Context, tx *sql.Tx, unitHash string, snapshot map[string]string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM protocol_state WHERE unit_hash = ?`, unitHash); err != nil {
		return fmt.Errorf("clear state: %w", err)
	}
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO protocol_state (unit_hash, key, value) VALUES (?, ?, ?)
		`, unitHash, k, snapshot[k])
		if err != nil {
			return fmt.Errorf("insert state %q: %w", k, err)
		}
	}
	return nil
}
