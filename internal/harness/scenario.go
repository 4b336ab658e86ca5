package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a query conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Query is an inline query document.
	Query map[string]any `yaml:"query,omitempty"`

	// QueryFile is a query document path, resolved relative to the
	// scenario file. Exclusive with Query.
	QueryFile string `yaml:"query_file,omitempty"`

	// Settings are passed to the query as base settings. Settings in the
	// query document take precedence.
	Settings map[string]any `yaml:"settings,omitempty"`

	// Sources maps table names to their rows.
	Sources map[string][]any `yaml:"sources,omitempty"`

	// Expect holds the expected outcome.
	Expect Expect `yaml:"expect"`

	// RunID is an optional fixed run ID.
	RunID string `yaml:"run_id,omitempty"`

	// Timeout bounds the run, e.g. "2s". Defaults to DefaultTimeout.
	Timeout string `yaml:"timeout,omitempty"`
}

// Expect specifies the expected outcome of a scenario.
type Expect struct {
	// Rows are the exact expected output rows. A nil list is not checked;
	// use Count: 0 to expect no output.
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Ordered requires Rows in the listed order.
	Ordered bool `yaml:"ordered,omitempty"`

	// Count is the expected number of output rows.
	Count *int `yaml:"count,omitempty"`

	// Error is a substring the failure must contain.
	Error string `yaml:"error,omitempty"`

	// Code is the expected compile error code.
	Code string `yaml:"code,omitempty"`
}

// failing reports whether the scenario expects the run to fail.
func (e Expect) failing() bool {
	return e.Error != "" || e.Code != ""
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected and query_file is resolved relative to the scenario.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.QueryFile != "" && !filepath.IsAbs(scenario.QueryFile) {
		scenario.QueryFile = filepath.Join(filepath.Dir(path), scenario.QueryFile)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	slices.Sort(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	names := make(map[string]string, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if prev, dup := names[s.Name]; dup {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", path, s.Name, prev)
		}
		names[s.Name] = path
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Query == nil && s.QueryFile == "":
		return fmt.Errorf("one of query or query_file is required")
	case s.Query != nil && s.QueryFile != "":
		return fmt.Errorf("query and query_file are mutually exclusive")
	}
	if s.QueryFile != "" {
		if _, err := os.Stat(s.QueryFile); os.IsNotExist(err) {
			return fmt.Errorf("query file not found: %s", s.QueryFile)
		}
	}

	for name, rows := range s.Sources {
		for i, row := range rows {
			if _, ok := row.(map[string]any); !ok {
				return fmt.Errorf("sources.%s[%d]: row must be a map", name, i)
			}
		}
	}

	e := s.Expect
	if e.Rows == nil && e.Count == nil && !e.failing() {
		return fmt.Errorf("expect: one of rows, count, error or code is required")
	}
	if e.failing() && (e.Rows != nil || e.Count != nil) {
		return fmt.Errorf("expect: rows and count cannot be combined with error or code")
	}
	if e.Count != nil && *e.Count < 0 {
		return fmt.Errorf("expect.count: must be non-negative")
	}
	if e.Count != nil && e.Rows != nil && *e.Count != len(e.Rows) {
		return fmt.Errorf("expect.count: %d disagrees with %d rows", *e.Count, len(e.Rows))
	}
	if s.Timeout != "" {
		if _, err := parseTimeout(s.Timeout); err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
	}
	return nil
}
