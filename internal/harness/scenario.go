package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/flagsearch/internal/catalog"
	"github.com/roach88/flagsearch/internal/store"
)

// NoneDisabled is the score key of the configuration with every flag enabled.
const NoneDisabled = "none"

// Scenario defines a scripted search.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Toolchain labels the scenario catalog (default "gcc").
	Toolchain string `yaml:"toolchain,omitempty"`

	// Flags are the catalog flag IDs in catalog order.
	Flags []string `yaml:"flags"`

	// CommonFlags are prepended to every configuration.
	CommonFlags string `yaml:"common_flags,omitempty"`

	// Jobs is the evaluation parallelism (default 1).
	Jobs int `yaml:"jobs,omitempty"`

	Calibration Calibration `yaml:"calibration"`

	// Scores maps a disabled-flag set to the scores it measures.
	Scores map[string][]float64 `yaml:"scores"`

	// Failures lists configurations whose evaluation fails.
	Failures []Failure `yaml:"failures,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Calibration holds the reference scores.
type Calibration struct {
	O3 float64 `yaml:"o3"`
	Os float64 `yaml:"os"`
	// FailO3 and FailOs make the respective reference build fail.
	FailO3 string `yaml:"fail_o3,omitempty"`
	FailOs string `yaml:"fail_os,omitempty"`
}

// Failure makes evaluations of one configuration fail.
type Failure struct {
	// Disabled is a score key.
	Disabled string `yaml:"disabled"`
	// Error is the diagnostic the evaluation fails with.
	Error string `yaml:"error"`
	// After lets the first After evaluations of the configuration succeed.
	After int `yaml:"after,omitempty"`
}

// Expect describes the expected outcome. Only the fields that are set are
// checked.
type Expect struct {
	// Status is "converged" or "failed".
	Status string `yaml:"status"`

	// Final lists the enabled flags of the converged configuration.
	Final []string `yaml:"final,omitempty"`

	FinalScore float64 `yaml:"final_score,omitempty"`

	// Removed lists accepted removals in order.
	Removed []string `yaml:"removed,omitempty"`

	Rounds int `yaml:"rounds,omitempty"`

	// Runs is the expected number of run records.
	Runs int `yaml:"runs,omitempty"`

	// ErrorCode is the expected search error code of a failed scenario.
	ErrorCode string `yaml:"error_code,omitempty"`

	// ErrorContains are substrings the search error must contain.
	ErrorContains []string `yaml:"error_contains,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is invalid.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "score:" vs "scores:"
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

// Catalog builds the scenario's catalog. Disabled spellings are derived.
func (s *Scenario) Catalog() (*catalog.Catalog, error) {
	toolchain := s.Toolchain
	if toolchain == "" {
		toolchain = "gcc"
	}
	flags := make([]catalog.Flag, len(s.Flags))
	for i, id := range s.Flags {
		flags[i] = catalog.Flag{ID: id}
	}
	return catalog.New(toolchain, "", flags)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative")
	}

	if _, err := s.Catalog(); err != nil {
		return fmt.Errorf("flags: %w", err)
	}

	if s.Calibration.O3 <= 0 && s.Calibration.FailO3 == "" {
		return fmt.Errorf("calibration.o3 must be positive")
	}
	if s.Calibration.Os <= 0 && s.Calibration.FailOs == "" {
		return fmt.Errorf("calibration.os must be positive")
	}

	if len(s.Scores) == 0 {
		return fmt.Errorf("scores map is required and must be non-empty")
	}
	normalized := make(map[string][]float64, len(s.Scores))
	for key, seq := range s.Scores {
		norm, err := s.normalizeKey(key)
		if err != nil {
			return fmt.Errorf("scores[%s]: %w", key, err)
		}
		if len(seq) == 0 {
			return fmt.Errorf("scores[%s]: at least one score is required", key)
		}
		if _, dup := normalized[norm]; dup {
			return fmt.Errorf("scores[%s]: same configuration as another key", key)
		}
		normalized[norm] = seq
	}
	s.Scores = normalized

	for i := range s.Failures {
		f := &s.Failures[i]
		norm, err := s.normalizeKey(f.Disabled)
		if err != nil {
			return fmt.Errorf("failures[%d]: %w", i, err)
		}
		if f.Error == "" {
			return fmt.Errorf("failures[%d]: error is required", i)
		}
		f.Disabled = norm
	}

	if s.Expect != nil {
		switch store.SessionStatus(s.Expect.Status) {
		case store.StatusConverged, store.StatusFailed:
		default:
			return fmt.Errorf("expect.status must be %q or %q", store.StatusConverged, store.StatusFailed)
		}
		for _, id := range append(slices.Clone(s.Expect.Final), s.Expect.Removed...) {
			if !slices.Contains(s.Flags, id) {
				return fmt.Errorf("expect: %q is not a scenario flag", id)
			}
		}
		if s.Expect.ErrorCode != "" && s.Expect.Status != string(store.StatusFailed) {
			return fmt.Errorf("expect.error_code requires status failed")
		}
	}

	return nil
}

// normalizeKey orders the flags of a score key by catalog position.
func (s *Scenario) normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || key == NoneDisabled {
		return NoneDisabled, nil
	}
	var ids []string
	for _, id := range strings.Split(key, ",") {
		id = strings.TrimSpace(id)
		if !slices.Contains(s.Flags, id) {
			return "", fmt.Errorf("%q is not a scenario flag", id)
		}
		if slices.Contains(ids, id) {
			return "", fmt.Errorf("%q listed twice", id)
		}
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return slices.Index(s.Flags, a) - slices.Index(s.Flags, b)
	})
	return strings.Join(ids, ","), nil
}
