// Package harness runs query scenarios against every backend and checks
// that they agree.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: open_orders
//	description: "Filtered aggregates agree across backends"
//	tables:
//	  orders:
//	    columns: [id, status, total]
//	    rows:
//	      - {id: 1, status: open, total: 30}
//	steps:
//	  - name: open-count
//	    query:
//	      from: {table: orders}
//	      ops: [{where: {field: status, op: "=", value: open}}]
//	      request: count
//	    expect: {value: 1}
//	    then:
//	      - request: values
//	        expect: {value: [{id: 1, status: open, total: 30}]}
//
// Each fixture table is loaded into a SQLite table, a bolt bucket and an
// in-memory slice. A query naming a table or a bucket reads the fixture of
// that name from the backend being run.
//
// # Checks
//
// For every step and backend the harness evaluates the request on a fresh
// evaluator, then evaluates the follow-up requests on the same evaluator.
// Each answer must match the step's expectation and the answer of the
// in-memory reference evaluator over the materialized query.
//
// # Traces
//
// Evaluator events (push-down, decline, cache hit, materialization) and
// answers are recorded with a sequence number. RunWithGolden compares the
// canonical JSON of that trace with testdata/golden/<name>.golden.
package harness
