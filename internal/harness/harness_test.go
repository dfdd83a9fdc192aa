package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ScenariosPass(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(context.Background(), s)
			require.NoError(t, err)
			assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
		})
	}
}

func TestRunWithGolden_OrdersPushdown(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "orders_pushdown.yaml"))
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
}

func TestRun_TraceOrder(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: trace
description: "cached after load"
backends: [sqlite]
tables:
  t:
    columns: [n]
    rows: [{n: 1}, {n: 2}]
steps:
  - name: s
    query: {from: {table: t}, request: exists}
    expect: {value: true}
    then:
      - request: {kind: implode, key: n}
        expect: {value: "12"}
      - request: exists
        expect: {value: true}
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.True(t, result.Pass, strings.Join(result.Errors, "\n"))

	var types []string
	for i, e := range result.Trace {
		assert.Equal(t, int64(i+1), e.Seq)
		assert.Equal(t, BackendSQLite, e.Backend)
		types = append(types, e.Type+":"+e.Request)
	}
	assert.Equal(t, []string{
		"pushdown:exists", "result:exists",
		"declined:implode", "materialized:", "result:implode",
		"cached:exists", "result:exists",
	}, types)
}

func TestRun_ReportsMismatch(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong
description: "wrong expectation"
backends: [memory, bolt]
tables:
  t:
    columns: [n]
    rows: [{n: 1}]
steps:
  - name: count
    query: {from: {table: t}, request: count}
    expect: {value: 2}
  - name: no-error
    query: {from: {table: t}, request: first}
    expect: {error: EMPTY_SEQUENCE}
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Equal(t, `step "count" [memory] count: expected 2, got 1`, result.Errors[0])
	assert.Contains(t, result.Errors[3], `expected error "EMPTY_SEQUENCE"`)
}

func TestRun_UnknownTableFails(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: missing
description: "no such table"
backends: [memory]
steps:
  - name: s
    query: {from: {table: nope}, request: count}
    expect: {value: 0}
`))
	require.NoError(t, err)

	_, err = Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `step "s"`)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "description: d\nsteps: [{name: s, query: {}}]\n", "name is required"},
		{"missing description", "name: n\nsteps: [{name: s, query: {}}]\n", "description is required"},
		{"no steps", "name: n\ndescription: d\n", "steps list is required"},
		{"unknown backend", "name: n\ndescription: d\nbackends: [redis]\nsteps: [{name: s, query: {}}]\n", `unknown backend "redis"`},
		{"duplicate step", "name: n\ndescription: d\nsteps: [{name: s, query: {}}, {name: s, query: {}}]\n", "duplicate name"},
		{"missing query", "name: n\ndescription: d\nsteps: [{name: s}]\n", "query is required"},
		{"unknown column", "name: n\ndescription: d\ntables: {t: {columns: [a], rows: [{b: 1}]}}\nsteps: [{name: s, query: {}}]\n", `unknown column "b"`},
		{"bool fixture", "name: n\ndescription: d\ntables: {t: {columns: [a], rows: [{a: true}]}}\nsteps: [{name: s, query: {}}]\n", "unsupported fixture value"},
		{"no columns", "name: n\ndescription: d\ntables: {t: {rows: []}}\nsteps: [{name: s, query: {}}]\n", "columns are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_RejectsUnknownFields(t *testing.T) {
	_, err := LoadScenario(filepath.Join("testdata", "invalid", "unknown_field.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestMarshalTrace_Canonical(t *testing.T) {
	r := NewResult()
	r.add(TraceEvent{Step: "s", Backend: BackendMemory, Type: EventMaterialized, Elements: 0})
	r.add(TraceEvent{Step: "s", Backend: BackendMemory, Type: EventResult, Request: "first", Value: nil})

	data, err := MarshalTrace("x", r)
	require.NoError(t, err)
	assert.Equal(t,
		`{"pass":true,"scenario_name":"x","trace":[`+
			`{"backend":"memory","elements":0,"seq":1,"step":"s","type":"materialized"},`+
			`{"backend":"memory","request":"first","seq":2,"step":"s","type":"result","value":null}]}`,
		string(data))
}
