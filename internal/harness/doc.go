// Package harness runs conformance scenarios against compiled causal models.
//
// A scenario loads a CUE model, registers its states in a CSM backed by an
// in-memory audit store, evaluates a sequence of inputs, and checks the
// outcomes against expectations and assertions.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: boiler_overheat
//	description: "Shutdown fires only when both readings are high"
//	model: ../models/boiler.cue
//	evaluations:
//	  - state: boiler
//	    value: {temperature: 70, bar: 4}
//	    expect:
//	      fired: true
//	  - state: boiler            # no value: the state's own data
//	    expect:
//	      fired: false
//	assertions:
//	  - type: fired_count
//	    state: boiler
//	    count: 1
//	  - type: explain_contains
//	    state: boiler
//	    text: "overheat: all → true"
//
// The model path is resolved relative to the scenario file.
//
// # Assertion Types
//
//   - fired_count: the state's action fired exactly count times
//   - fire_order: actions of the listed states fired in this order
//   - explain_contains: some evaluation of the state explains with text
//   - audit_count: the audit store holds count records for the state
//   - replay_clean: replaying the audit store reproduces every outcome
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory store, a DeterministicClock, and
// evaluation ids "<scenario>-1", "<scenario>-2", ... so identical scenarios
// produce byte-identical traces for golden comparison.
package harness
