// Package engine executes compiled protocol units.
//
// The interpreter is a pure function over explicit inputs:
//
//	Invoke(unit, state, log, method, args, ctx) -> result
//
// It mutates state in place and appends to log. There is no rollback: a
// fault leaves whatever assignments ran before it. Callers that need
// atomicity snapshot first, which is what Engine does.
//
// # Values
//
// State holds tagged values (Str, Int, Bool) alongside the declared type of
// each variable. Text is converted at the state boundary, so operators work
// on typed values. Externally every value is still a string: snapshots,
// event values and results are rendered with Value.String.
//
// # Map keys
//
// Indexed state (state.balances[params.addr]) is stored under a structured
// StateKey. The flat form base@k1@k2 exists only in snapshots.
//
// # Persistent engine
//
// Engine serializes invocations against a store through a single-writer
// loop. Each invocation is stamped by a logical Clock and committed in one
// transaction with its events and the new snapshot. Wall-clock time is
// never used for ordering.
package engine
