package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/turingloom/internal/document"
	"github.com/roach88/turingloom/internal/machine"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestDocument creates a one-rule document that flips 0 to 1.
func createTestDocument() document.Document {
	rules := []machine.Rule{{
		ID:           "rule-1",
		Name:         "flip",
		TapeIndex:    0,
		CurrentState: "q0",
		ReadSymbol:   "0",
		WriteSymbol:  "1",
		Move:         machine.Right,
		NewState:     "q0",
	}}
	tapes := []machine.Tape{{ID: "tape-1", Name: "Tape 1"}}
	return document.Export(rules, tapes, "")
}

// createTestRun creates a run with minimal required fields.
func createTestRun(id string, startedAt int64) Run {
	return Run{
		ID:             id,
		ProgramHash:    "test-hash",
		InitialContent: "000",
		StartedAt:      time.UnixMilli(startedAt),
	}
}

// createTestStep creates a step record for seq.
func createTestStep(seq int64) StepRecord {
	return StepRecord{
		Seq:        seq,
		RuleID:     "rule-1",
		FromState:  "q0",
		ToState:    "q0",
		TapeIndex:  0,
		HeadBefore: int(seq - 1),
		HeadAfter:  int(seq),
		Written:    "1",
	}
}
