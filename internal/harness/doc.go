// Package harness provides conformance testing for the playback controller.
//
// A scenario loads a run export, opens a controller over it with scripted
// media and a manual scheduler, issues commands, and checks the recorded
// trace and final state. The same scenarios back the golden tests in this
// package and the `tracesync test` command.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	fixture: ../runs/checkout.json
//	media:
//	  duration: 12
//	  defer_seeked: false
//	base_tour_interval_ms: 1000
//	filter: { kinds: [step], errors_only: false }
//	steps:
//	  - do: select
//	    id: step/st-2
//	  - do: play
//	  - do: time_update
//	    time: 9.2
//	  - do: rate
//	    rate: 3
//	    expect_error: INVALID_RATE
//	assertions:
//	  - type: trace_contains
//	    event: "transport:seek(5)"
//	  - type: final_state
//	    expect: { mode: media-playing, selected_step_id: st-3 }
//
// # Trace Events
//
// Every event is a (type, value) pair, written "type:value" in assertions:
//
//   - command: a step as issued, e.g. "command:rate 2"
//   - transport: a call the media element received, e.g. "transport:seek(5)"
//   - step, time: listener callbacks, e.g. "step:st-2"
//   - unavailable: the media failure code reported to the listener
//   - error: the code a command returned
//
// # Assertion Types
//
//   - trace_contains: Verifies an event appears in the trace
//   - trace_order: Verifies events appear in the given order
//   - trace_count: Verifies an event appears exactly N times
//   - final_state: Verifies fields of the final controller snapshot
//
// # Deterministic Testing
//
// Timers fire only when a scenario advances virtual time, media events are
// delivered synchronously, and trace sequence numbers come from
// testutil.DeterministicClock, so identical scenarios produce identical
// traces for golden file comparison.
package harness
