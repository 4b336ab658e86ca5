// Package harness runs query conformance scenarios.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: windowed_count
//	description: "count(*) over fixed windows of three rows"
//	query:
//	  select:
//	    items:
//	      - expr: {func: count, star: true}
//	        as: total
//	    from: temp
//	    group_by:
//	      - {func: _window, args: [3]}
//	sources:
//	  temp:
//	    - {deviceId: d1, value: 1}
//	    - {deviceId: d2, value: 2}
//	expect:
//	  ordered: true
//	  rows:
//	    - {total: 2}
//
// The query is an inline query document (see package querydoc), or a path
// in query_file relative to the scenario. Expectations are:
//
//   - rows: the exact output rows, compared as canonical JSON
//   - ordered: rows must arrive in the listed order (default: any order)
//   - count: the number of output rows
//   - error: a substring of the run or compile error
//   - code: the compile error code, e.g. UNSUPPORTED_GROUP_BY
//
// # Deterministic Testing
//
// Every scenario runs with in-memory sources, a fixed run ID
// (scenario.run_id, or testutil.DefaultRunID) and logging discarded, so the
// same scenario always yields the same snapshot. RunWithGolden compares that
// snapshot against testdata/golden/{name}.golden.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/windowed_count.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
