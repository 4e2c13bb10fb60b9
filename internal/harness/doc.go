// Package harness runs end-to-end pattern scenarios.
//
// A scenario names a directory of CUE patterns, a list of events and a set
// of assertions about the matches those events produce.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	patterns: ../patterns        # CUE package, relative to this file
//	pattern: rising              # optional, default: every pattern
//	storage: sorted              # optional, sorted or unsorted
//	start: "2024-01-02T10:00:00Z"
//	events:
//	  - type: Stock
//	    at: 0                    # seconds after start
//	    payload: { price: 10 }
//	assertions:
//	  - type: match_count
//	    pattern: rising
//	    count: 1
//	  - type: match_contains
//	    events: [0, 1]
//	  - type: run_state
//	    pattern: rising
//	    expect: { events: 2, matches: 1 }
//
// Events are referred to by their position in the events list. Timestamps
// must not decrease.
//
// # Assertion Types
//
//   - match_count: exactly N matches, optionally of one pattern
//   - match_contains: some match consists of exactly the listed events
//   - match_absent: no match consists of exactly the listed events
//   - run_state: the stored run record has the expected totals
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory SQLite store with fixed run
// IDs and a sequence clock starting at 1, so match IDs are stable across
// runs and can be compared against golden files:
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/rising_prices.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
package harness
