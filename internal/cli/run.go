package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/turingloom/internal/document"
	"github.com/roach88/turingloom/internal/machine"
	"github.com/roach88/turingloom/internal/notify"
	"github.com/roach88/turingloom/internal/runner"
	"github.com/roach88/turingloom/internal/session"
	"github.com/roach88/turingloom/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database       string
	Speed          string
	MaxSteps       int
	InitialContent string
	Animate        bool
	Record         bool
	Strict         bool
	Trace          bool

	// Now overrides the wall clock used for recorded runs (for testing).
	Now func() time.Time
}

// RunResult is the output of the run command.
type RunResult struct {
	Program  string      `json:"program"`
	Imported int         `json:"imported"`
	Dropped  int         `json:"dropped"`
	Machine  MachineView `json:"machine"`
	Trace    []StepView  `json:"trace,omitempty"`
	RunID    string      `json:"run_id,omitempty"`

	color bool
}

func (r RunResult) String() string {
	return RenderMachine(r.Machine, r.color)
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <program>",
		Short: "Run a program until it halts",
		Long: `Load a rule document and run the machine until it halts or the step
limit is reached.

<program> is a .json, .yaml or .cue document, or the name of a program
stored with "turingloom save".

Example:
  turingloom run ./programs/invert.json
  turingloom run invert --animate --speed fast
  turingloom run ./programs/invert.yaml --record --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Speed, "speed", string(runner.DefaultSpeed), "animation speed (slow|medium|fast|very-fast)")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", DefaultMaxSteps, "stop after this many steps")
	cmd.Flags().StringVar(&opts.InitialContent, "initial-content", "", "initial tape content (overrides the document)")
	cmd.Flags().BoolVar(&opts.Animate, "animate", false, "run on the timer and draw every step")
	cmd.Flags().BoolVar(&opts.Record, "record", false, "record the run in the database")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 if the machine halts with an error")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "include every step in the output")

	return cmd
}

// runSettings are the effective run parameters after applying config and flags.
type runSettings struct {
	db       string
	speed    runner.Speed
	maxSteps int
	content  string
}

func resolveRunSettings(cmd *cobra.Command, opts *RunOptions) (runSettings, error) {
	cfg := opts.config()
	s := runSettings{
		db:       cfg.DB,
		speed:    cfg.Speed,
		maxSteps: cfg.MaxSteps,
		content:  cfg.InitialContent,
	}
	if opts.Database != "" {
		s.db = opts.Database
	}
	if cmd.Flags().Changed("speed") {
		sp, err := runner.ParseSpeed(opts.Speed)
		if err != nil {
			return s, err
		}
		s.speed = sp
	}
	if cmd.Flags().Changed("max-steps") {
		if opts.MaxSteps <= 0 {
			return s, fmt.Errorf("--max-steps must be positive, got %d", opts.MaxSteps)
		}
		s.maxSteps = opts.MaxSteps
	}
	return s, nil
}

func runProgram(opts *RunOptions, ref string, cmd *cobra.Command) error {
	logger := opts.logger()
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	settings, err := resolveRunSettings(cmd, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Debug("opening database", "path", settings.db)
	st, err := openStore(settings.db)
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

	w := &stepWatcher{maxSteps: settings.maxSteps, trace: opts.Trace}
	if opts.Animate && !out.JSON() {
		w.render = func(v MachineView) {
			fmt.Fprintln(cmd.OutOrStdout(), RenderMachine(v, opts.color()))
			fmt.Fprintln(cmd.OutOrStdout())
		}
	}

	sess := newSession(ctx, opts.RootOptions, cmd.ErrOrStderr(), st, settings.content,
		session.WithRunnerOptions(runner.WithSpeed(settings.speed)),
		session.WithStepHook(w.observe),
	)
	w.sess = sess

	imported, err := sess.Import(prog.Parsed)
	if err != nil {
		_ = out.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to import program", err)
	}
	if cmd.Flags().Changed("initial-content") {
		if err := sess.SetInitialContent(opts.InitialContent); err != nil {
			return WrapExitError(ExitCommandError, "invalid initial content", err)
		}
	}

	if opts.Record {
		now := opts.Now
		if now == nil {
			now = time.Now
		}
		rec, err := startRecording(ctx, st, sess.Machine(), now())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		w.rec = rec
	}

	logger.Debug("run starting", "program", prog.Ref, "max_steps", settings.maxSteps, "animate", opts.Animate)
	if opts.Animate {
		err = animate(ctx, sess, w)
	} else {
		err = runToHalt(ctx, sess, w)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "run failed", err)
	}

	code := w.errorCode()
	result := RunResult{
		Program:  prog.Ref,
		Imported: imported.Imported,
		Dropped:  imported.Dropped,
		Machine:  newMachineView(sess.Snapshot(), code),
		Trace:    w.steps(),
		color:    opts.color(),
	}

	if w.rec != nil {
		if err := w.rec.finish(ctx, sess.Machine(), code); err != nil {
			return WrapExitError(ExitCommandError, "failed to finish recorded run", err)
		}
		result.RunID = w.rec.id
	}

	if opts.Trace && !out.JSON() {
		for _, s := range result.Trace {
			fmt.Fprintln(cmd.OutOrStdout(), s)
		}
	}
	if err := out.SuccessWithRun(result, result.RunID); err != nil {
		return err
	}

	if opts.Strict && code != "" {
		return NewExitError(ExitFailure, fmt.Sprintf("machine halted with %s", code))
	}
	return nil
}

// newSession builds a session over a fresh machine. Notifications go to
// errOut in the language stored in st.
func newSession(ctx context.Context, opts *RootOptions, errOut io.Writer, st *store.Store, initialContent string, extra ...session.Option) *session.Session {
	logger := opts.logger()
	m := machine.New(
		machine.WithLogger(logger),
		machine.WithInitialContent(initialContent),
	)
	sessOpts := []session.Option{
		session.WithMachine(m),
		session.WithNotifier(notify.NewWriterNotifier(errOut, opts.color())),
		session.WithLogger(logger),
	}
	if st != nil {
		sessOpts = append(sessOpts, session.WithPreferences(st))
	}
	return session.New(ctx, append(sessOpts, extra...)...)
}

// runToHalt steps the machine until it halts, fails, reaches the step
// limit or ctx is cancelled.
func runToHalt(ctx context.Context, sess *session.Session, w *stepWatcher) error {
	for !w.done() {
		if ctx.Err() != nil {
			return nil
		}
		res, err := sess.Step()
		w.record(ctx, res, err)
	}
	return nil
}

// animate runs the machine on the runner's timer until it stops.
func animate(ctx context.Context, sess *session.Session, w *stepWatcher) error {
	w.ctx = ctx
	sess.Start()
	err := sess.Wait(ctx)
	sess.Stop()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// stepWatcher observes steps from either a manual loop or the runner hook.
type stepWatcher struct {
	mu       sync.Mutex
	ctx      context.Context
	sess     *session.Session
	rec      *runRecorder
	render   func(MachineView)
	maxSteps int
	trace    bool

	count int
	err   error
	halt  bool
	views []StepView
}

// observe is the runner step hook. It is called without the runner lock
// held, so stopping the session from here is safe.
func (w *stepWatcher) observe(res machine.StepResult, err error) {
	ctx := w.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	w.record(ctx, res, err)

	if w.render != nil && err == nil {
		w.render(newMachineView(w.sess.Snapshot(), ""))
	}
	if w.done() {
		w.sess.Stop()
	}
}

func (w *stepWatcher) record(ctx context.Context, res machine.StepResult, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		w.err = err
		return
	}
	w.count++
	w.halt = res.Halted
	if w.trace {
		w.views = append(w.views, newStepView(res))
	}
	if w.rec != nil {
		w.rec.step(ctx, res)
	}
}

func (w *stepWatcher) done() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err != nil || w.halt || w.count >= w.maxSteps
}

// errorCode returns the engine code of the error that stopped the run.
func (w *stepWatcher) errorCode() machine.ErrorCode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return machine.CodeOf(w.err)
}

func (w *stepWatcher) steps() []StepView {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]StepView(nil), w.views...)
}

// runRecorder writes a run and its steps to the store as they happen.
type runRecorder struct {
	st  *store.Store
	id  string
	err error
}

func startRecording(ctx context.Context, st *store.Store, m *machine.Machine, startedAt time.Time) (*runRecorder, error) {
	hash, err := document.Hash(m.Rules())
	if err != nil {
		return nil, err
	}
	run := store.Run{
		ID:             store.NewRunID(),
		ProgramHash:    hash,
		InitialContent: m.InitialContent(),
		StartedAt:      startedAt,
		FinalState:     m.State().Current,
	}
	if err := st.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	return &runRecorder{st: st, id: run.ID}, nil
}

// step records one step. The first write error is kept and reported by
// finish; later steps are skipped.
func (r *runRecorder) step(ctx context.Context, res machine.StepResult) {
	if r.err != nil {
		return
	}
	r.err = r.st.WriteStep(ctx, r.id, store.StepRecordFrom(res))
}

func (r *runRecorder) finish(ctx context.Context, m *machine.Machine, code machine.ErrorCode) error {
	if r.err != nil {
		return fmt.Errorf("write step: %w", r.err)
	}
	// Recording must complete even if the run was interrupted.
	return r.st.FinishRun(context.WithoutCancel(ctx), r.id, m.State(), m.Steps(), code)
}
