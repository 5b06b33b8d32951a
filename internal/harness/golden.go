package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/turingloom/internal/document"
)

// TraceSnapshot is what a golden file records about a scenario run.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
	Final        FinalSnapshot
}

// FinalSnapshot is the part of the final configuration kept in golden files.
type FinalSnapshot struct {
	State     string
	Halted    bool
	Steps     int
	ErrorCode string
	Tapes     []TapeSnapshot
}

// TapeSnapshot is one tape's content and head.
type TapeSnapshot struct {
	Content string
	Head    int
}

// NewTraceSnapshot builds the snapshot for a scenario result.
func NewTraceSnapshot(name string, result *Result) TraceSnapshot {
	tapes := make([]TapeSnapshot, len(result.Final.Tapes))
	for i, t := range result.Final.Tapes {
		tapes[i] = TapeSnapshot{Content: t.String(), Head: t.Head}
	}
	return TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		Final: FinalSnapshot{
			State:     result.Final.State.Current,
			Halted:    result.Final.State.Halted,
			Steps:     len(result.Trace),
			ErrorCode: string(result.ErrorCode),
			Tapes:     tapes,
		},
	}
}

// toCanonicalMap flattens the snapshot into the plain maps and slices that
// document.MarshalCanonical accepts.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"seq":         event.Seq,
			"rule":        event.Rule,
			"rule_id":     event.RuleID,
			"from":        event.From,
			"to":          event.To,
			"tape":        event.Tape,
			"head_before": event.HeadBefore,
			"head_after":  event.HeadAfter,
			"written":     event.Written,
		}
		if event.Grew {
			eventMap["grew"] = true
		}
		if event.Halted {
			eventMap["halted"] = true
		}
		traceList[i] = eventMap
	}

	tapeList := make([]any, len(s.Final.Tapes))
	for i, t := range s.Final.Tapes {
		tapeList[i] = map[string]any{
			"content": t.Content,
			"head":    t.Head,
		}
	}

	final := map[string]any{
		"state":  s.Final.State,
		"halted": s.Final.Halted,
		"steps":  s.Final.Steps,
		"tapes":  tapeList,
	}
	if s.Final.ErrorCode != "" {
		final["error_code"] = s.Final.ErrorCode
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"final":         final,
	}
}

// Snapshot returns the canonical JSON golden content for a result.
func Snapshot(name string, result *Result) ([]byte, error) {
	snapshot := NewTraceSnapshot(name, result)
	return document.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden runs scenario and checks its snapshot against
// testdata/golden/<name>.golden. Pass -update to go test to rewrite it.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden checks an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
