package cli

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// newTestOpts returns root options with a throwaway config dir, plain
// output and a silent logger.
func newTestOpts(t *testing.T, format string) *RootOptions {
	t.Helper()
	return &RootOptions{
		Format:  format,
		NoColor: true,
		Config:  DefaultConfig(t.TempDir()),
		Logger:  discardLogger,
	}
}

// executeCommand runs cmd with args and returns stdout and stderr.
func executeCommand(cmd *cobra.Command, args ...string) (string, string, error) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// writeFile writes content to dir/name and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// markProgram flips the first cell and marks the next one, halting after
// two steps with "01" at the start of the tape and the head on cell 1.
const markProgram = `{
  "version": 1,
  "initialContent": "1",
  "rules": [
    {"name": "flip", "currentState": "q0", "readSymbol": "1", "writeSymbol": "0", "moveDirection": "right", "newState": "q1"},
    {"name": "mark", "currentState": "q1", "readSymbol": "0", "writeSymbol": "1", "moveDirection": "stay", "newState": "halt"}
  ]
}`

// markFinal is the tape markProgram leaves behind.
const markFinal = "01000000000000000000"

// walkProgram walks right over blanks forever.
const walkProgram = `[
  {"name": "walk", "currentState": "q0", "readSymbol": "0", "writeSymbol": "0", "moveDirection": "right", "newState": "q0"}
]`

// keepOneProgram is the shared program that stops with NO_MATCHING_RULE.
const keepOneProgram = "../../testdata/programs/keep_one.json"

// exampleScenariosDir holds the example scenarios.
const exampleScenariosDir = "../../testdata/scenarios"
