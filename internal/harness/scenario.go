package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/mengzui/Pinq/internal/querysql"
	"github.com/mengzui/Pinq/internal/value"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// AllBackends is the run order used when a scenario lists none.
var AllBackends = []string{BackendMemory, BackendSQLite, BackendBolt}

// Scenario defines a cross-backend query scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Backends restricts the run to some backends. Empty means all.
	Backends []string `yaml:"backends,omitempty"`

	// Tables are the fixtures loaded into every backend.
	Tables map[string]Fixture `yaml:"tables"`

	// Steps are evaluated in order, each on fresh evaluators.
	Steps []Step `yaml:"steps"`
}

// Fixture is a table of rows. Rows are stored in order; a column missing
// from a row is null.
type Fixture struct {
	Columns []string         `yaml:"columns"`
	Rows    []map[string]any `yaml:"rows"`
}

// Step evaluates one query document, then any follow-up requests on the
// same evaluator.
type Step struct {
	Name   string         `yaml:"name"`
	Query  map[string]any `yaml:"query"`
	Expect Expect         `yaml:"expect"`
	Then   []FollowUp     `yaml:"then,omitempty"`
}

// FollowUp is a further request on a step's evaluator.
type FollowUp struct {
	Request any    `yaml:"request"`
	Expect  Expect `yaml:"expect"`
}

// Expect is the expected answer: a value, or an error. Error matches a
// request error code such as EMPTY_SEQUENCE, or else a substring of the
// error message.
type Expect struct {
	Value any    `yaml:"value"`
	Error string `yaml:"error,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// backends returns the run order for s.
func (s *Scenario) backends() []string {
	if len(s.Backends) == 0 {
		return AllBackends
	}
	return s.Backends
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	seen := map[string]bool{}
	for _, b := range s.Backends {
		switch b {
		case BackendMemory, BackendSQLite, BackendBolt:
		default:
			return fmt.Errorf("unknown backend %q", b)
		}
		if seen[b] {
			return fmt.Errorf("backend %q listed twice", b)
		}
		seen[b] = true
	}

	for name, table := range s.Tables {
		if err := validateFixture(name, table); err != nil {
			return err
		}
	}

	steps := map[string]bool{}
	for i, step := range s.Steps {
		if step.Name == "" {
			return fmt.Errorf("step %d: name is required", i)
		}
		if steps[step.Name] {
			return fmt.Errorf("step %q: duplicate name", step.Name)
		}
		steps[step.Name] = true
		if step.Query == nil {
			return fmt.Errorf("step %q: query is required", step.Name)
		}
		for j, f := range step.Then {
			if f.Request == nil {
				return fmt.Errorf("step %q: then[%d]: request is required", step.Name, j)
			}
		}
	}
	return nil
}

// validateFixture keeps fixtures within what every backend stores
// losslessly: nulls, integers, floats and strings.
func validateFixture(name string, f Fixture) error {
	if !querysql.ValidIdentifier(name) {
		return fmt.Errorf("table %q: invalid name", name)
	}
	if len(f.Columns) == 0 {
		return fmt.Errorf("table %q: columns are required", name)
	}
	cols := map[string]bool{}
	for _, c := range f.Columns {
		if !querysql.ValidIdentifier(c) {
			return fmt.Errorf("table %q: invalid column %q", name, c)
		}
		cols[c] = true
	}
	for i, row := range f.Rows {
		for k, v := range row {
			if !cols[k] {
				return fmt.Errorf("table %q: row %d: unknown column %q", name, i, k)
			}
			switch value.Normalize(v).(type) {
			case nil, int64, float64, string:
			default:
				return fmt.Errorf("table %q: row %d: column %q: unsupported fixture value %T", name, i, k, v)
			}
		}
	}
	return nil
}

// rows returns the fixture rows with every column present.
func (f Fixture) rows() []value.Row {
	out := make([]value.Row, len(f.Rows))
	for i, r := range f.Rows {
		row := make(value.Row, len(f.Columns))
		for _, c := range f.Columns {
			row[c] = value.Normalize(r[c])
		}
		out[i] = row
	}
	return out
}
