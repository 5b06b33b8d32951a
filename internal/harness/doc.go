// Package harness runs scenario files against the transition engine.
//
// A scenario loads a rule set, prepares the tapes, runs the machine until
// it halts, fails or reaches a step limit, and then checks assertions on
// the final configuration and the step trace. Every scenario runs on a
// fresh machine with deterministic rule ids and step numbers, so traces
// are reproducible and can be compared with golden files.
//
// # Scenario Format
//
//	name: flip_to_one
//	description: "Flip zeros until the first one, then halt"
//	program: programs/flip.json      # or inline rules:
//	rules:
//	  - name: flip
//	    state: q0
//	    read: "0"
//	    write: "1"
//	    move: right
//	    next: q0
//	initial_content: "0001"
//	tapes: 1
//	max_steps: 100
//	setup:
//	  - tape: 0
//	    content: "0001"
//	    head: 0
//	assertions:
//	  - type: final_state
//	    state: halt
//	  - type: tape
//	    tape: 0
//	    prefix: "1111"
//	  - type: trace_count
//	    rule: flip
//	    count: 3
//
// # Assertion Types
//
//   - final_state: the machine ends in the given state
//   - halted: the machine ends halted (or not)
//   - tape: a tape has the given content, prefix and/or head position
//   - step_count: exactly N steps were applied
//   - error_code: the run ended with the given engine error code
//   - trace_contains: a rule was applied (optionally from/to given states)
//   - trace_order: rules were first applied in the given order
//   - trace_count: a rule was applied exactly N times
//   - stored_row: a row of the recorded run matches (runs or steps table)
//
// # Golden Traces
//
// RunWithGolden and AssertGolden compare the canonical JSON trace with
// testdata/golden/<name>.golden using goldie. Regenerate with:
//
//	go test ./internal/harness -update
package harness
