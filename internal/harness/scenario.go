package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/turingloom/internal/machine"
)

// DefaultMaxSteps bounds a scenario run that sets no max_steps.
const DefaultMaxSteps = 1000

// Scenario defines a machine run and what must hold afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is the path of a rule document (.json, .yaml or .cue).
	// Relative paths are resolved against the scenario's base path.
	Program string `yaml:"program,omitempty"`

	// Rules are inline rules, used when Program is empty.
	// They go through the same import validation as a document.
	Rules []RuleSpec `yaml:"rules,omitempty"`

	// InitialContent overrides the program's initial content.
	// Nil means the program's content or the default twenty blanks.
	InitialContent *string `yaml:"initial_content,omitempty"`

	// Tapes is the number of tapes to start with (default 1).
	// Import adds more if a rule references a higher tape index.
	Tapes int `yaml:"tapes,omitempty"`

	// Setup writes exact tape layouts after import.
	Setup []TapeSetup `yaml:"setup,omitempty"`

	// MaxSteps stops a run that has not halted (default DefaultMaxSteps).
	MaxSteps int `yaml:"max_steps,omitempty"`

	// Assertions validate the final configuration and trace.
	Assertions []Assertion `yaml:"assertions"`
}

// RuleSpec is an inline rule in a scenario.
type RuleSpec struct {
	Name  string `yaml:"name"`
	Tape  int    `yaml:"tape"`
	State string `yaml:"state"`
	Read  string `yaml:"read"`
	Write string `yaml:"write"`
	Move  string `yaml:"move"`
	Next  string `yaml:"next"`
	Halt  bool   `yaml:"halt,omitempty"`
}

// Rule converts the inline rule to an engine rule.
func (r RuleSpec) Rule() (machine.Rule, error) {
	dir, err := machine.ParseDirection(r.Move)
	if err != nil {
		return machine.Rule{}, err
	}
	return machine.Rule{
		Name:         r.Name,
		TapeIndex:    r.Tape,
		CurrentState: r.State,
		ReadSymbol:   r.Read,
		WriteSymbol:  r.Write,
		Move:         dir,
		NewState:     r.Next,
		ShouldHalt:   r.Halt,
	}, nil
}

// TapeSetup writes content to a tape and places its head.
type TapeSetup struct {
	Tape    int    `yaml:"tape"`
	Content string `yaml:"content"`
	Head    int    `yaml:"head"`
}

// Assertion validates the outcome of a run.
type Assertion struct {
	// Type specifies the assertion type; see the Assert constants.
	Type string `yaml:"type"`

	// State is the expected final state (final_state).
	State string `yaml:"state,omitempty"`

	// Halted is the expected halted flag (halted).
	Halted *bool `yaml:"halted,omitempty"`

	// Tape is the tape index (tape).
	Tape int `yaml:"tape,omitempty"`

	// Content is the exact expected tape content (tape).
	Content *string `yaml:"content,omitempty"`

	// Prefix is the expected start of the tape content (tape).
	Prefix string `yaml:"prefix,omitempty"`

	// Head is the expected head position (tape).
	Head *int `yaml:"head,omitempty"`

	// Count is the expected number of steps (step_count, trace_count).
	Count int `yaml:"count,omitempty"`

	// Code is the expected engine error code (error_code).
	Code string `yaml:"code,omitempty"`

	// Rule is a rule name (trace_contains, trace_count).
	Rule string `yaml:"rule,omitempty"`

	// From and To optionally narrow trace_contains to a transition.
	From string `yaml:"from,omitempty"`
	To   string `yaml:"to,omitempty"`

	// Rules is the expected first-application order (trace_order).
	Rules []string `yaml:"rules,omitempty"`

	// Table, Where and Expect query the recorded run (stored_row).
	// Where and Expect use subset semantics.
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState    = "final_state"
	AssertHalted        = "halted"
	AssertTape          = "tape"
	AssertStepCount     = "step_count"
	AssertErrorCode     = "error_code"
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertStoredRow     = "stored_row"
)

// LoadScenario reads a scenario file. A relative program path is taken
// relative to the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath is LoadScenario with an explicit directory for
// resolving the program path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.Program != "" && basePath != "" && !filepath.IsAbs(s.Program) {
		s.Program = filepath.Join(basePath, s.Program)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", filepath.Base(path), err)
	}
	return s, nil
}

// ParseScenario decodes scenario YAML. Unknown keys are errors so that a
// misspelled field does not silently drop an assertion.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	switch {
	case s.Name == "":
		return errors.New("missing name")
	case s.Description == "":
		return errors.New("missing description")
	case s.Program != "" && len(s.Rules) > 0:
		return errors.New("both program and rules given")
	case s.Program == "" && len(s.Rules) == 0:
		return errors.New("needs program or rules")
	case s.Tapes < 0:
		return errors.New("negative tapes")
	case s.MaxSteps < 0:
		return errors.New("negative max_steps")
	}

	if s.Program != "" {
		if _, err := os.Stat(s.Program); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("program %s does not exist", s.Program)
		}
	}
	for i, r := range s.Rules {
		if _, err := r.Rule(); err != nil {
			return fmt.Errorf("rules[%d]: %w", i, err)
		}
	}
	for i, ts := range s.Setup {
		switch {
		case ts.Tape < 0:
			return fmt.Errorf("setup[%d]: negative tape", i)
		case ts.Content == "":
			return fmt.Errorf("setup[%d]: missing content", i)
		}
	}

	if len(s.Assertions) == 0 {
		return errors.New("no assertions")
	}
	for i, a := range s.Assertions {
		if err := a.validate(); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

// validate checks that the fields the assertion type reads are present.
func (a Assertion) validate() error {
	var missing string
	switch a.Type {
	case "":
		missing = "type"
	case AssertFinalState:
		if a.State == "" {
			missing = "state"
		}
	case AssertHalted:
		if a.Halted == nil {
			missing = "halted"
		}
	case AssertTape:
		if a.Tape < 0 {
			return errors.New("negative tape")
		}
		if a.Content == nil && a.Prefix == "" && a.Head == nil {
			return errors.New("tape has nothing to check (set content, prefix or head)")
		}
	case AssertStepCount:
		if a.Count < 0 {
			return errors.New("negative count")
		}
	case AssertErrorCode:
		if a.Code == "" {
			missing = "code"
		}
	case AssertTraceContains:
		if a.Rule == "" {
			missing = "rule"
		}
	case AssertTraceOrder:
		if len(a.Rules) == 0 {
			missing = "rules"
		}
	case AssertTraceCount:
		if a.Rule == "" {
			missing = "rule"
		} else if a.Count < 0 {
			return errors.New("negative count")
		}
	case AssertStoredRow:
		if a.Table == "" {
			missing = "table"
		} else if len(a.Expect) == 0 {
			missing = "expect"
		}
	default:
		return fmt.Errorf("unknown type %q", a.Type)
	}
	if missing != "" {
		return fmt.Errorf("missing %s", missing)
	}
	return nil
}
