package machine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/turingloom/internal/testutil"
)

// newTestMachine creates a machine with sequential rule ids and a silent logger.
func newTestMachine(t *testing.T, opts ...Option) *Machine {
	t.Helper()
	base := []Option{
		WithIDGenerator(testutil.NewSequenceIDs("rule")),
		WithClock(testutil.NewDeterministicClock()),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return New(append(base, opts...)...)
}

// rule builds a rule on tape 0.
func rule(state, read, write string, move Direction, next string) Rule {
	return Rule{
		Name:         state + "/" + read,
		CurrentState: state,
		ReadSymbol:   read,
		WriteSymbol:  write,
		Move:         move,
		NewState:     next,
	}
}

// mustAdd adds rules in order and fails the test on error.
func mustAdd(t *testing.T, m *Machine, rules ...Rule) []Rule {
	t.Helper()
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		added, err := m.AddRule(r)
		require.NoError(t, err)
		out = append(out, added)
	}
	return out
}

// tape0 returns the first tape's content and head.
func tape0(m *Machine) (string, int) {
	t := m.Tapes()[0]
	return t.String(), t.Head
}
