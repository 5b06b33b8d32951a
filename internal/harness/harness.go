package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/turingloom/internal/document"
	"github.com/roach88/turingloom/internal/machine"
	"github.com/roach88/turingloom/internal/store"
	"github.com/roach88/turingloom/internal/testutil"
)

// runEpoch is the fixed start time recorded for every scenario run.
var runEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness runs one scenario against a fresh machine and store.
type Harness struct {
	store   *store.Store
	machine *machine.Machine
	clock   *testutil.DeterministicClock
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs on a fresh machine and a fresh in-memory database.
// Rule ids are "rule-1", "rule-2", ... and step numbers start at 1, so
// the trace only depends on the scenario.
//
// Execution flow:
//  1. Load the rule set (program file or inline rules)
//  2. Create the machine and import the rules
//  3. Apply tape setup
//  4. Step until halt, error or max_steps
//  5. Record the run in the store
//  6. Evaluate assertions
//
// An engine error during the run is part of the result, not a Go error.
// Run only fails when the scenario itself cannot be executed.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a context for the store operations.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	rules, content, dropped, err := loadRules(scenario)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewDeterministicClock()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &Harness{
		store: st,
		machine: machine.New(
			machine.WithIDGenerator(testutil.NewSequenceIDs("rule")),
			machine.WithClock(clock),
			machine.WithLogger(logger),
			machine.WithInitialContent(content),
			machine.WithTapes(scenario.Tapes),
		),
		clock:  clock,
		logger: logger,
	}

	result := NewResult()
	result.Dropped = dropped
	h.execute(scenario, rules, result)

	if err := h.record(ctx, content, result); err != nil {
		return nil, err
	}

	env := &Env{Store: st, RunID: result.RunID}
	for _, msg := range Evaluate(ctx, result, scenario.Assertions, env) {
		result.AddError(msg)
	}
	return result, nil
}

// loadRules returns the scenario's candidate rules, the initial content
// and the number of records the document parser dropped.
func loadRules(scenario *Scenario) ([]machine.Rule, string, int, error) {
	content := machine.DefaultInitialContent
	var (
		rules   []machine.Rule
		dropped int
	)

	if scenario.Program != "" {
		parsed, err := document.ParseFile(scenario.Program)
		if err != nil {
			return nil, "", 0, fmt.Errorf("failed to load program: %w", err)
		}
		rules = parsed.Rules
		dropped = parsed.Dropped
		if parsed.InitialContent != "" {
			content = parsed.InitialContent
		}
	} else {
		rules = make([]machine.Rule, 0, len(scenario.Rules))
		for i, spec := range scenario.Rules {
			r, err := spec.Rule()
			if err != nil {
				return nil, "", 0, fmt.Errorf("rules[%d]: %w", i, err)
			}
			rules = append(rules, r)
		}
	}

	if scenario.InitialContent != nil {
		content = *scenario.InitialContent
	}
	return rules, content, dropped, nil
}

// execute imports the rules, applies setup and runs the machine.
// Engine errors end the run and are recorded in result.
func (h *Harness) execute(scenario *Scenario, rules []machine.Rule, result *Result) {
	defer func() {
		result.Final = h.machine.Snapshot()
	}()

	imp, err := h.machine.Import(rules)
	result.Dropped += imp.Dropped
	if err != nil {
		result.ErrorCode = machine.CodeOf(err)
		h.logger.Info("import rejected", "error", err)
		return
	}
	result.Imported = imp.Imported

	for i, step := range scenario.Setup {
		if err := h.machine.WriteTape(step.Tape, step.Content, step.Head); err != nil {
			result.ErrorCode = machine.CodeOf(err)
			result.AddError(fmt.Sprintf("setup[%d]: %v", i, err))
			return
		}
	}

	maxSteps := scenario.MaxSteps
	if maxSteps == 0 {
		maxSteps = DefaultMaxSteps
	}

	for i := 0; i < maxSteps; i++ {
		res, err := h.machine.Step()
		if err != nil {
			result.ErrorCode = machine.CodeOf(err)
			h.logger.Info("run stopped", "step", i, "error", err)
			return
		}
		result.AddStep(res)
		if res.Halted {
			return
		}
	}
	h.logger.Info("step limit reached", "max_steps", maxSteps)
}

// record stores the run and its steps.
func (h *Harness) record(ctx context.Context, content string, result *Result) error {
	hash, err := document.Hash(result.Final.Rules)
	if err != nil {
		return fmt.Errorf("failed to hash rules: %w", err)
	}

	run := store.Run{
		ID:             "run-1",
		ProgramHash:    hash,
		InitialContent: content,
		StartedAt:      runEpoch,
		FinalState:     result.Final.State.Current,
		Halted:         result.Final.State.Halted,
		Steps:          len(result.Trace),
		ErrorCode:      string(result.ErrorCode),
	}

	steps := make([]store.StepRecord, len(result.Trace))
	for i, ev := range result.Trace {
		steps[i] = store.StepRecord{
			Seq:        ev.Seq,
			RuleID:     ev.RuleID,
			FromState:  ev.From,
			ToState:    ev.To,
			TapeIndex:  ev.Tape,
			HeadBefore: ev.HeadBefore,
			HeadAfter:  ev.HeadAfter,
			Written:    ev.Written,
			Grew:       ev.Grew,
			Halted:     ev.Halted,
		}
	}

	if err := h.store.RecordRun(ctx, run, steps); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	result.RunID = run.ID
	return nil
}
