package harness

import (
	"github.com/roach88/turingloom/internal/machine"
)

// TraceEvent is one applied transition.
type TraceEvent struct {
	Seq        int64  `json:"seq"`
	Rule       string `json:"rule"` // rule name, or id if unnamed
	RuleID     string `json:"rule_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	Tape       int    `json:"tape"`
	HeadBefore int    `json:"head_before"`
	HeadAfter  int    `json:"head_after"`
	Written    string `json:"written"`
	Grew       bool   `json:"grew,omitempty"`
	Halted     bool   `json:"halted,omitempty"`
}

// traceEventFrom converts an engine step result.
func traceEventFrom(res machine.StepResult) TraceEvent {
	name := res.Rule.Name
	if name == "" {
		name = res.Rule.ID
	}
	return TraceEvent{
		Seq:        res.Seq,
		Rule:       name,
		RuleID:     res.Rule.ID,
		From:       res.FromState,
		To:         res.ToState,
		Tape:       res.TapeIndex,
		HeadBefore: res.HeadBefore,
		HeadAfter:  res.HeadAfter,
		Written:    res.Rule.WriteSymbol,
		Grew:       res.Grew,
		Halted:     res.Halted,
	}
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Trace contains every applied step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the machine configuration after the run.
	Final machine.Snapshot `json:"final"`

	// ErrorCode is the engine error that ended the run, if any.
	ErrorCode machine.ErrorCode `json:"error_code,omitempty"`

	// Imported and Dropped report how the rule set was loaded.
	Imported int `json:"imported"`
	Dropped  int `json:"dropped"`

	// RunID identifies the recorded run in the scenario's store.
	RunID string `json:"run_id"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep appends an applied step to the trace.
func (r *Result) AddStep(res machine.StepResult) {
	r.Trace = append(r.Trace, traceEventFrom(res))
}
