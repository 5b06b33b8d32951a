package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/turingloom/internal/machine"
	"github.com/roach88/turingloom/internal/store"
)

// seedRun records a finished run with the given steps and returns its id.
func seedRun(t *testing.T, db string, startedAt time.Time, code machine.ErrorCode, steps ...store.StepRecord) string {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	run := store.Run{
		ID:             store.NewRunID(),
		ProgramHash:    "0123456789abcdef0123456789abcdef",
		InitialContent: "11",
		StartedAt:      startedAt,
		FinalState:     "q0",
	}
	require.NoError(t, st.CreateRun(ctx, run))
	for _, s := range steps {
		require.NoError(t, st.WriteStep(ctx, run.ID, s))
	}

	final := machine.State{Current: "halt", Halted: true}
	if code != "" {
		final.Current = "q1"
	}
	require.NoError(t, st.FinishRun(ctx, run.ID, final, len(steps), code))
	return run.ID
}

func traceSteps() []store.StepRecord {
	return []store.StepRecord{
		{Seq: 1, RuleID: "rule-a", FromState: "q0", ToState: "q0", TapeIndex: 0, HeadBefore: 1, HeadAfter: 2, Written: "0"},
		{Seq: 2, RuleID: "rule-b", FromState: "q0", ToState: "q0", TapeIndex: 0, HeadBefore: 2, HeadAfter: 3, Written: "1", Grew: true},
		{Seq: 3, RuleID: "rule-a", FromState: "q0", ToState: "halt", TapeIndex: 0, HeadBefore: 3, HeadAfter: 3, Written: "0", Halted: true},
	}
}

func TestTraceCommand_ListEmpty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	cmd := NewTraceCommand(newTestOpts(t, "text"))
	out, _, err := executeCommand(cmd, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No recorded runs.")
}

func TestTraceCommand_List(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	older := seedRun(t, db, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC), "", traceSteps()...)
	newer := seedRun(t, db, time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC), machine.ErrCodeNoMatchingRule, traceSteps()[:1]...)

	t.Run("text", func(t *testing.T) {
		cmd := NewTraceCommand(newTestOpts(t, "text"))
		out, _, err := executeCommand(cmd, "--db", db)
		require.NoError(t, err)
		assert.Contains(t, out, "RUN")
		assert.Contains(t, out, older)
		assert.Contains(t, out, newer)
		assert.Contains(t, out, "NO_MATCHING_RULE")
		assert.Contains(t, out, "halted")
	})

	t.Run("json newest first", func(t *testing.T) {
		cmd := NewTraceCommand(newTestOpts(t, "json"))
		out, _, err := executeCommand(cmd, "--db", db)
		require.NoError(t, err)

		var resp struct {
			Data struct {
				Runs []store.Run `json:"runs"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		require.Len(t, resp.Data.Runs, 2)
		assert.Equal(t, newer, resp.Data.Runs[0].ID)
		assert.Equal(t, older, resp.Data.Runs[1].ID)
	})

	t.Run("limit", func(t *testing.T) {
		cmd := NewTraceCommand(newTestOpts(t, "json"))
		out, _, err := executeCommand(cmd, "--db", db, "--limit", "1")
		require.NoError(t, err)

		var resp struct {
			Data struct {
				Runs []store.Run `json:"runs"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Len(t, resp.Data.Runs, 1)
	})
}

func TestTraceCommand_Run(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	id := seedRun(t, db, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC), "", traceSteps()...)

	t.Run("json", func(t *testing.T) {
		cmd := NewTraceCommand(newTestOpts(t, "json"))
		out, _, err := executeCommand(cmd, "--db", db, "--run", id)
		require.NoError(t, err)

		var resp struct {
			Data TraceResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, id, resp.Data.Run.ID)
		assert.True(t, resp.Data.Run.Halted)
		assert.Len(t, resp.Data.Steps, 3)
		assert.Equal(t, 3, resp.Data.Stats.TotalSteps)
		assert.Equal(t, 3, resp.Data.Stats.Shown)
		assert.Equal(t, 1, resp.Data.Stats.Growths)
		assert.Equal(t, map[string]int{"rule-a": 2, "rule-b": 1}, resp.Data.Stats.RuleCounts)
	})

	t.Run("text", func(t *testing.T) {
		cmd := NewTraceCommand(newTestOpts(t, "text"))
		out, _, err := executeCommand(cmd, "--db", db, "--run", id)
		require.NoError(t, err)
		assert.Contains(t, out, "Run: "+id)
		assert.Contains(t, out, "Program: 0123456789ab\n")
		assert.Contains(t, out, `Initial content: "11"`)
		assert.Contains(t, out, "Result: halted in state halt after 3 step(s)")
		assert.Contains(t, out, "=== Steps ===")
		assert.Contains(t, out, `[2] rule-b  q0 -> q0  tape 1  head 2 -> 3  wrote "1"  (grew)`)
		assert.Contains(t, out, `[3] rule-a  q0 -> halt  tape 1  head 3 -> 3  wrote "0"  (halt)`)
		assert.Contains(t, out, "Steps: 3 (shown 3)")
		assert.Contains(t, out, "Tape growths: 1")
		assert.NotContains(t, out, "rule-a: 2", "rule counts need --verbose")
	})

	t.Run("verbose rule counts", func(t *testing.T) {
		opts := newTestOpts(t, "text")
		opts.Verbose = true
		cmd := NewTraceCommand(opts)
		out, _, err := executeCommand(cmd, "--db", db, "--run", id)
		require.NoError(t, err)
		assert.Contains(t, out, "rule-a: 2")
		assert.Contains(t, out, "rule-b: 1")
	})

	t.Run("rule filter", func(t *testing.T) {
		cmd := NewTraceCommand(newTestOpts(t, "json"))
		out, _, err := executeCommand(cmd, "--db", db, "--run", id, "--rule", "rule-b")
		require.NoError(t, err)

		var resp struct {
			Data TraceResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		require.Len(t, resp.Data.Steps, 1)
		assert.Equal(t, int64(2), resp.Data.Steps[0].Seq)
		assert.Equal(t, 1, resp.Data.Stats.Shown)
		assert.Equal(t, 3, resp.Data.Stats.TotalSteps)
	})
}

func TestTraceCommand_RunNotFound(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	cmd := NewTraceCommand(newTestOpts(t, "json"))
	out, _, err := executeCommand(cmd, "--db", db, "--run", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, store.ErrRunNotFound)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestTraceCommand_Helpers(t *testing.T) {
	steps := traceSteps()

	assert.Len(t, filterSteps(steps, ""), 3)
	assert.Len(t, filterSteps(steps, "rule-a"), 2)
	assert.Empty(t, filterSteps(steps, "rule-z"))

	assert.Equal(t, "halted", runOutcome(store.Run{Halted: true}))
	assert.Equal(t, "TAPE_NOT_FOUND", runOutcome(store.Run{Halted: true, ErrorCode: "TAPE_NOT_FOUND"}))
	assert.Equal(t, "stopped", runOutcome(store.Run{}))
}
