// Package harness runs conformance scenarios against the runtime engine.
//
// A scenario compiles one protocol, deploys it into a fresh store, invokes
// a flow of methods through engine.Engine, and checks the resulting trace
// and persisted state.
//
// # Scenario Format
//
//	name: counter_flow
//	description: "Increment twice and read back"
//	source: ../counter.car        # or inline: protocol: "protocol P { ... }"
//	ctx: { sender: doge1alice }   # default ctx for every step
//	flow:
//	  - invoke: inc
//	    expect:
//	      result: ok
//	      events:
//	        - { name: Changed, values: [1] }
//	  - invoke: nope
//	    expect:
//	      fault: UNKNOWN_METHOD
//	assertions:
//	  - type: trace_contains
//	    event: Changed
//	    values: [2]
//	  - type: final_state
//	    expect: { count: 2 }
//
// # Assertion Types
//
//   - trace_contains: an event with the given name (and values, if set) was emitted
//   - trace_order: events first appear in the given order
//   - trace_count: an event (or, with method, an invocation) occurs exactly N times
//   - final_state: the persisted snapshot holds the expected values
//
// # Deterministic Testing
//
// Scenarios run with a fresh logical clock, sequential invocation IDs
// (inv-1, inv-2, ...) and an in-memory SQLite store, so traces are
// byte-identical across runs and can be compared with golden files.
package harness
