package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/turingloom/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool
	Filter string
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name    string   `json:"name"`
	Pass    bool     `json:"pass"`
	Steps   int      `json:"steps"`
	Updated bool     `json:"updated,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// TestResult summarizes a test command invocation.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenario files against the engine",
		Long: `Run the YAML scenarios found in <scenarios-dir>.

A scenario supplies rules inline or through a program file, optionally
prepares the tapes, runs the machine and then checks its assertions.
If <scenarios-dir>/golden/<name>.golden exists the recorded trace and final
configuration have to match it as well.

The command exits 1 when any scenario fails and 2 when it cannot run.

Examples:
  turingloom test ./testdata/scenarios
  turingloom test ./testdata/scenarios --filter "invert*"
  turingloom test ./testdata/scenarios --update
  turingloom test ./testdata/scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden files from the current results")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose file name matches this glob")

	return cmd
}

func runTests(cmd *cobra.Command, opts *TestOptions, dir string) error {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return NewExitError(ExitCommandError, "scenarios directory not found: "+dir)
	}
	files, err := harness.FindScenarios(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	summary := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		res := runScenario(cmd, opts, file)
		if res.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
		summary.Scenarios = append(summary.Scenarios, res)
	}

	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if out.JSON() {
		if err := reportTestsJSON(out, summary); err != nil {
			return err
		}
	} else {
		reportTestsText(out.Writer, summary)
	}

	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}
	return nil
}

// runScenario loads, executes and checks one scenario file. Every problem
// is reported in the result rather than returned.
func runScenario(cmd *cobra.Command, opts *TestOptions, file string) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return failed(filepath.Base(file), "failed to load scenario: "+err.Error())
	}

	result, err := harness.RunContext(cmd.Context(), scenario)
	if err != nil {
		return failed(scenario.Name, "execution failed: "+err.Error())
	}
	opts.logger().Debug("scenario executed",
		"name", scenario.Name, "steps", len(result.Trace), "pass", result.Pass)

	res := ScenarioResult{Name: scenario.Name, Steps: len(result.Trace)}

	if opts.Update {
		if err := harness.WriteGolden(file, scenario, result); err != nil {
			return failed(scenario.Name, "failed to update golden file: "+err.Error())
		}
		res.Pass, res.Updated = true, true
		return res
	}

	match, err := harness.CompareGolden(file, scenario, result)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// assertions alone decide
	case err != nil:
		res.Errors = []string{"golden comparison failed: " + err.Error()}
		return res
	case !match:
		res.Errors = []string{"trace does not match golden file (run with --update to regenerate)"}
		return res
	}

	res.Pass = result.Pass
	res.Errors = result.Errors
	return res
}

func failed(name, msg string) ScenarioResult {
	return ScenarioResult{Name: name, Errors: []string{msg}}
}

func reportTestsText(w io.Writer, summary TestResult) {
	if summary.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, s := range summary.Scenarios {
		switch {
		case s.Updated:
			fmt.Fprintf(w, "✓ %s (golden updated)\n", s.Name)
		case s.Pass:
			fmt.Fprintf(w, "✓ %s\n", s.Name)
		default:
			fmt.Fprintf(w, "✗ %s\n", s.Name)
			for _, e := range s.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
	}
	fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d total\n", summary.Passed, summary.Failed, summary.Total)
	if summary.Failed == 0 {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}

func reportTestsJSON(out *OutputFormatter, summary TestResult) error {
	if summary.Failed == 0 {
		return out.Success(summary)
	}
	return out.encode(CLIResponse{
		Status: "error",
		Data:   summary,
		Error: &CLIError{
			Code:    ErrCodeTestFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", summary.Failed),
		},
	})
}
