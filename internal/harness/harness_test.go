package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/turingloom/internal/machine"
)

// flipScenario walks right over "1"s, turning them into "0"s, and halts on
// the first "0".
func flipScenario() *Scenario {
	content := "110"
	return &Scenario{
		Name:        "flip",
		Description: "Flip ones until the first zero",
		Rules: []RuleSpec{
			{Name: "flip", State: "q0", Read: "1", Write: "0", Move: "right", Next: "q0"},
			{Name: "done", State: "q0", Read: "0", Write: "0", Move: "stay", Next: "halt"},
		},
		InitialContent: &content,
		Setup:          []TapeSetup{{Tape: 0, Content: "110", Head: 0}},
		Assertions: []Assertion{
			{Type: AssertHalted, Halted: boolPtr(true)},
		},
	}
}

func TestRun_HaltingScenario(t *testing.T) {
	result, err := Run(flipScenario())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.ErrorCode)
	assert.Equal(t, 2, result.Imported)

	require.Len(t, result.Trace, 3)
	assert.Equal(t, "flip", result.Trace[0].Rule)
	assert.Equal(t, "rule-1", result.Trace[0].RuleID)
	assert.Equal(t, int64(1), result.Trace[0].Seq)
	assert.Equal(t, "done", result.Trace[2].Rule)
	assert.True(t, result.Trace[2].Halted)

	assert.Equal(t, "halt", result.Final.State.Current)
	assert.Equal(t, "000", result.Final.Tapes[0].String()[:3])
	assert.Equal(t, 2, result.Final.Tapes[0].Head)
}

func TestRun_NoMatchingRuleIsAResult(t *testing.T) {
	scenario := &Scenario{
		Name:        "stuck",
		Description: "No rule reads the default blank",
		Rules: []RuleSpec{
			{Name: "never", State: "q0", Read: "1", Write: "1", Move: "right", Next: "q0"},
		},
		Assertions: []Assertion{
			{Type: AssertErrorCode, Code: "NO_MATCHING_RULE"},
			{Type: AssertStepCount, Count: 0},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, machine.ErrCodeNoMatchingRule, result.ErrorCode)
	assert.True(t, result.Final.State.Halted)
	assert.Empty(t, result.Trace)
}

func TestRun_MaxStepsStopsEndlessRun(t *testing.T) {
	scenario := &Scenario{
		Name:        "endless",
		Description: "Walks right forever over blanks",
		Rules: []RuleSpec{
			{Name: "walk", State: "q0", Read: "0", Write: "0", Move: "right", Next: "q0"},
		},
		MaxSteps: 25,
		Assertions: []Assertion{
			{Type: AssertStepCount, Count: 25},
			{Type: AssertHalted, Halted: boolPtr(false)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.ErrorCode)
	// Growth keeps one free cell ahead of the head.
	assert.Equal(t, 10+25, result.Final.Tapes[0].Head)
	assert.Len(t, result.Final.Tapes[0].Cells, 10+25+2)
}

func TestRun_ImportAddsTapes(t *testing.T) {
	scenario := &Scenario{
		Name:        "tapes",
		Description: "A rule on tape 2 extends the machine to three tapes",
		Rules: []RuleSpec{
			{Name: "far", Tape: 2, State: "q0", Read: "0", Write: "1", Move: "stay", Next: "halt"},
		},
		Assertions: []Assertion{
			{Type: AssertTape, Tape: 2, Prefix: "0000000000" + "1"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Len(t, result.Final.Tapes, 3)
	assert.Equal(t, 2, result.Trace[0].Tape)
}

func TestRun_InvalidRulesAreDropped(t *testing.T) {
	scenario := flipScenario()
	scenario.Rules = append(scenario.Rules, RuleSpec{Name: "bad", State: "q0", Read: "1", Write: "10", Move: "left", Next: "q0"})

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Dropped)
}

func TestRun_SetupOnMissingTape(t *testing.T) {
	scenario := flipScenario()
	scenario.Setup = []TapeSetup{{Tape: 4, Content: "1", Head: 0}}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, machine.ErrCodeTapeNotFound, result.ErrorCode)
	assert.Contains(t, result.Errors[0], "setup[0]")
}

func TestRun_Deterministic(t *testing.T) {
	first, err := Run(flipScenario())
	require.NoError(t, err)
	second, err := Run(flipScenario())
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.Final, second.Final)

	a, err := Snapshot("flip", first)
	require.NoError(t, err)
	b, err := Snapshot("flip", second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_RecordsRun(t *testing.T) {
	scenario := flipScenario()
	scenario.Assertions = []Assertion{
		{
			Type:   AssertStoredRow,
			Table:  "runs",
			Expect: map[string]any{"final_state": "halt", "halted": true, "steps": 3, "initial_content": "110"},
		},
		{
			Type:   AssertStoredRow,
			Table:  "steps",
			Where:  map[string]any{"seq": 3},
			Expect: map[string]any{"rule_id": "rule-2", "to_state": "halt", "halted": true},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "run-1", result.RunID)
}

func TestRun_FailingAssertions(t *testing.T) {
	scenario := flipScenario()
	scenario.Assertions = []Assertion{
		{Type: AssertFinalState, State: "q0"},
		{Type: AssertTraceCount, Rule: "flip", Count: 2},
		{Type: AssertTraceOrder, Rules: []string{"done", "flip"}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 2)
}

func TestRun_ProgramFile(t *testing.T) {
	dir := t.TempDir()
	program := `[
  {"currentState": "q0", "readSymbol": "0", "writeSymbol": "1", "moveDirection": "left", "newState": "halt"},
  {"currentState": "q0", "readSymbol": "0", "writeSymbol": "1"}
]`
	path := filepath.Join(dir, "program.json")
	require.NoError(t, os.WriteFile(path, []byte(program), 0644))

	scenario := &Scenario{
		Name:        "program",
		Description: "Loads a bare rule array",
		Program:     path,
		Assertions: []Assertion{
			{Type: AssertTape, Head: intPtr(9)},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	// The record without a move direction is dropped by the parser.
	assert.Equal(t, 1, result.Dropped)
	assert.Equal(t, 1, result.Imported)
}

func TestRun_MissingProgram(t *testing.T) {
	scenario := &Scenario{
		Name:        "missing",
		Description: "Program file does not exist",
		Program:     filepath.Join(t.TempDir(), "nope.json"),
		Assertions:  []Assertion{{Type: AssertStepCount}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load program")
}

func TestResult_AddError(t *testing.T) {
	result := NewResult()
	assert.True(t, result.Pass)

	result.AddError("boom")
	assert.False(t, result.Pass)
	assert.Equal(t, []string{"boom"}, result.Errors)
}

func TestResult_AddStep(t *testing.T) {
	result := NewResult()
	result.AddStep(machine.StepResult{
		Seq:        7,
		Rule:       machine.Rule{ID: "rule-9", WriteSymbol: "x"},
		FromState:  "q0",
		ToState:    "q1",
		HeadBefore: 2,
		HeadAfter:  3,
		Grew:       true,
	})

	require.Len(t, result.Trace, 1)
	ev := result.Trace[0]
	// Unnamed rules appear under their id.
	assert.Equal(t, "rule-9", ev.Rule)
	assert.Equal(t, "x", ev.Written)
	assert.True(t, ev.Grew)
	assert.False(t, ev.Halted)
}
