// Package harness runs the search engine against scripted measurements.
//
// Real evaluations take minutes each and depend on a toolchain, so the
// engine's behavior is pinned down with scenarios instead: a YAML file that
// lists the catalog flags and the score every configuration will measure.
// The harness drives the real engine with a ScriptedOracle built from the
// scenario and checks the outcome against the scenario's expectations.
//
// # Scenario Format
//
//	name: three_flags
//	description: "Removing -fc is the only real gain"
//	flags: [-fa, -fb, -fc]
//	jobs: 3
//	calibration: {o3: 80, os: 90}
//	scores:
//	  none: [100]        # nothing disabled
//	  -fa: [95]          # -fa disabled
//	  -fa,-fc: [95, 60]  # second evaluation scores 60, and so on
//	failures:
//	  - disabled: -fb
//	    error: "make: *** [all] Error 2"
//	expect:
//	  status: converged
//	  final: [-fa, -fb]
//	  final_score: 70
//	  removed: [-fc]
//	  rounds: 2
//
// Score keys name the disabled flags of a configuration, comma separated,
// in any order. Repeated evaluations of the same configuration walk through
// its score list and the last score sticks. A configuration without a score
// fails to evaluate.
//
// # Deterministic Testing
//
// Run IDs come from the engine clock and the session ID from
// testutil.SequentialIDs, and every run is written to a fresh in-memory
// SQLite store, so the same scenario always produces an identical ledger
// and identical golden snapshots.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/three_flags.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario, 0)
//	if !result.Pass {
//	    fmt.Println(result.Errors)
//	}
package harness
