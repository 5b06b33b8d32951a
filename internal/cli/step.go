package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// StepOptions holds flags for the step command.
type StepOptions struct {
	*RootOptions
	Database       string
	Count          int
	InitialContent string
}

// StepOutput is the output of the step command.
type StepOutput struct {
	Program string      `json:"program"`
	Steps   []StepView  `json:"steps"`
	Machine MachineView `json:"machine"`

	color bool
}

func (s StepOutput) String() string {
	var b strings.Builder
	for _, step := range s.Steps {
		b.WriteString(step.String())
		b.WriteByte('\n')
	}
	b.WriteString(RenderMachine(s.Machine, s.color))
	return b.String()
}

// NewStepCommand creates the step command.
func NewStepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StepOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "step <program>",
		Short: "Apply single transitions and show each one",
		Long: `Load a rule document and apply N single steps, printing every
transition and the final configuration. Stepping stops early when the
machine halts or no rule applies.

Example:
  turingloom step ./programs/invert.json -n 3`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return stepProgram(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1, "number of steps")
	cmd.Flags().StringVar(&opts.InitialContent, "initial-content", "", "initial tape content (overrides the document)")

	return cmd
}

func stepProgram(opts *StepOptions, ref string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	logger := opts.logger()
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Count < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--count must be at least 1, got %d", opts.Count))
	}

	cfg := opts.config()
	db := cfg.DB
	if opts.Database != "" {
		db = opts.Database
	}
	st, err := openStore(db)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	prog, err := LoadProgram(ctx, ref, st)
	if err != nil {
		_ = out.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load program", err)
	}

	sess := newSession(ctx, opts.RootOptions, cmd.ErrOrStderr(), st, cfg.InitialContent)
	if _, err := sess.Import(prog.Parsed); err != nil {
		_ = out.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to import program", err)
	}
	if cmd.Flags().Changed("initial-content") {
		if err := sess.SetInitialContent(opts.InitialContent); err != nil {
			return WrapExitError(ExitCommandError, "invalid initial content", err)
		}
	}

	output := StepOutput{Program: prog.Ref, Steps: []StepView{}, color: opts.color()}
	var stepErr error
	for i := 0; i < opts.Count; i++ {
		res, err := sess.Step()
		if err != nil {
			stepErr = err
			break
		}
		output.Steps = append(output.Steps, newStepView(res))
		if res.Halted {
			break
		}
	}
	logger.Debug("stepped", "program", prog.Ref, "requested", opts.Count, "applied", len(output.Steps))

	var code string
	if stepErr != nil {
		code = errorCode(stepErr)
	}
	output.Machine = newMachineView(sess.Snapshot(), "")
	output.Machine.ErrorCode = code
	return out.Success(output)
}
