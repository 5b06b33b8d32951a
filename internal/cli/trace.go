package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/turingloom/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Rule     string // optional - filter to one rule id
	Limit    int
}

// TraceResult holds the complete trace output for one run.
type TraceResult struct {
	Run   store.Run          `json:"run"`
	Steps []store.StepRecord `json:"steps"`
	Stats TraceStats         `json:"stats"`
}

// TraceStats holds summary statistics for a run.
type TraceStats struct {
	TotalSteps int            `json:"total_steps"`
	Shown      int            `json:"shown"`
	Growths    int            `json:"growths"`
	RuleCounts map[string]int `json:"rule_counts"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show recorded runs",
		Long: `Show runs recorded with "turingloom run --record".

Without --run, lists the most recent runs. With --run, shows every step of
that run in sequence order together with summary statistics.

Examples:
  turingloom trace
  turingloom trace --run 0192f0c2-7d1e-7c3a-9a51-3e2f1b0c9d88
  turingloom trace --run 0192f0c2-7d1e-7c3a-9a51-3e2f1b0c9d88 --rule rule-2 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to trace")
	cmd.Flags().StringVar(&opts.Rule, "rule", "", "filter to steps applying this rule id")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of runs to list (0 for all)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	db := opts.Database
	if db == "" {
		db = opts.config().DB
	}
	st, err := store.Open(db)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.RunID == "" {
		runs, err := st.ListRuns(ctx, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if opts.Format == "json" {
			return outputTraceJSON(cmd, map[string]any{"runs": runs})
		}
		outputRunList(cmd.OutOrStdout(), runs)
		return nil
	}

	run, steps, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("run not found: %s", opts.RunID), nil)
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	result := TraceResult{
		Run:   run,
		Steps: filterSteps(steps, opts.Rule),
		Stats: buildStats(steps),
	}
	result.Stats.Shown = len(result.Steps)

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

// filterSteps keeps the steps that applied ruleID. An empty ruleID keeps all.
func filterSteps(steps []store.StepRecord, ruleID string) []store.StepRecord {
	if ruleID == "" {
		return steps
	}
	out := []store.StepRecord{}
	for _, s := range steps {
		if s.RuleID == ruleID {
			out = append(out, s)
		}
	}
	return out
}

func buildStats(steps []store.StepRecord) TraceStats {
	stats := TraceStats{
		TotalSteps: len(steps),
		RuleCounts: make(map[string]int),
	}
	for _, s := range steps {
		stats.RuleCounts[s.RuleID]++
		if s.Grew {
			stats.Growths++
		}
	}
	return stats
}

// outputTraceJSON outputs trace results as JSON.
func outputTraceJSON(cmd *cobra.Command, data any) error {
	response := CLIResponse{
		Status: "ok",
		Data:   data,
	}
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

func outputRunList(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No recorded runs.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-19s  %-10s  %6s  %s\n", "RUN", "STARTED", "STATE", "STEPS", "RESULT")
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-19s  %-10s  %6d  %s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.FinalState, r.Steps, runOutcome(r))
	}
}

// runOutcome summarizes how a run ended.
func runOutcome(r store.Run) string {
	switch {
	case r.ErrorCode != "":
		return r.ErrorCode
	case r.Halted:
		return "halted"
	default:
		return "stopped"
	}
}

// outputTraceText outputs trace results in human-readable format.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()
	run := result.Run

	fmt.Fprintf(w, "Run: %s\n", run.ID)
	fmt.Fprintf(w, "Started: %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Program: %s\n", shortHash(run.ProgramHash))
	fmt.Fprintf(w, "Initial content: %q\n", run.InitialContent)
	fmt.Fprintf(w, "Result: %s in state %s after %d step(s)\n", runOutcome(run), run.FinalState, run.Steps)
	fmt.Fprintln(w)

	if len(result.Steps) == 0 {
		fmt.Fprintln(w, "No steps recorded.")
		return nil
	}

	fmt.Fprintln(w, "=== Steps ===")
	for _, s := range result.Steps {
		line := fmt.Sprintf("[%d] %s  %s -> %s  tape %d  head %d -> %d  wrote %q",
			s.Seq, s.RuleID, s.FromState, s.ToState, s.TapeIndex+1, s.HeadBefore, s.HeadAfter, s.Written)
		var flags []string
		if s.Grew {
			flags = append(flags, "grew")
		}
		if s.Halted {
			flags = append(flags, "halt")
		}
		if len(flags) > 0 {
			line += "  (" + strings.Join(flags, ", ") + ")"
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "Steps: %d (shown %d)\n", result.Stats.TotalSteps, result.Stats.Shown)
	fmt.Fprintf(w, "Tape growths: %d\n", result.Stats.Growths)
	if verbose {
		rules := make([]string, 0, len(result.Stats.RuleCounts))
		for id := range result.Stats.RuleCounts {
			rules = append(rules, id)
		}
		sort.Strings(rules)
		for _, id := range rules {
			fmt.Fprintf(w, "  %s: %d\n", id, result.Stats.RuleCounts[id])
		}
	}
	return nil
}
