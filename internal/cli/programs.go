package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/turingloom/internal/document"
	"github.com/roach88/turingloom/internal/machine"
	"github.com/roach88/turingloom/internal/store"
)

// ProgramsOptions holds flags for the save and programs commands.
type ProgramsOptions struct {
	*RootOptions
	Database string
	Delete   string

	// Now overrides the clock used for saved_at (for testing).
	Now func() time.Time
}

// ProgramInfo describes a saved program.
type ProgramInfo struct {
	Name    string    `json:"name"`
	Hash    string    `json:"hash"`
	Rules   int       `json:"rules"`
	SavedAt time.Time `json:"saved_at"`
}

func newProgramInfo(p store.Program) ProgramInfo {
	return ProgramInfo{Name: p.Name, Hash: p.Hash, Rules: len(p.Document.Rules), SavedAt: p.SavedAt}
}

// ProgramList is the output of the programs command.
type ProgramList struct {
	Programs []ProgramInfo `json:"programs"`
}

func (l ProgramList) String() string {
	if len(l.Programs) == 0 {
		return "No saved programs."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-24s %5s  %-20s %s", "NAME", "RULES", "SAVED", "HASH")
	for _, p := range l.Programs {
		fmt.Fprintf(&b, "\n%-24s %5d  %-20s %s", p.Name, p.Rules, p.SavedAt.Local().Format("2006-01-02 15:04:05"), shortHash(p.Hash))
	}
	return b.String()
}

// shortHash trims a content hash for table output.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProgramsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save <name> <program>",
		Short: "Store a program in the database under a name",
		Long: `Import a program and store its normalized document under <name>.
A program with the same name is replaced. Saved programs can be passed to
run, step, validate and export by name.

Example:
  turingloom save invert ./programs/invert.json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")

	return cmd
}

// NewProgramsCommand creates the programs command.
func NewProgramsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProgramsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "programs",
		Short: "List or delete saved programs",
		Long: `List the programs stored with "turingloom save", ordered by name.

Example:
  turingloom programs
  turingloom programs --delete invert`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrograms(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Delete, "delete", "", "delete the saved program with this name")

	return cmd
}

func (o *ProgramsOptions) openStore() (*store.Store, error) {
	db := o.Database
	if db == "" {
		db = o.config().DB
	}
	return openStore(db)
}

func runSave(opts *ProgramsOptions, name, ref string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := opts.openStore()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	prog, err := LoadProgram(ctx, ref, st)
	if err != nil {
		_ = formatter.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load program", err)
	}

	m := machine.New(machine.WithLogger(opts.logger()))
	res, err := m.Import(prog.Rules)
	if err != nil {
		_ = formatter.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "program has no valid rules", err)
	}
	if prog.InitialContent != "" {
		m.SetInitialContent(prog.InitialContent)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	saved, err := st.SaveProgram(ctx, name, document.ExportMachine(m), now())
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to save program", err)
	}
	opts.logger().Debug("program saved", "name", name, "rules", res.Imported, "dropped", res.Dropped+prog.Dropped)

	if !formatter.JSON() {
		fmt.Fprintf(formatter.Writer, "✓ Saved %s (%d rule(s), %s)\n", saved.Name, len(saved.Document.Rules), shortHash(saved.Hash))
		return nil
	}
	return formatter.Success(newProgramInfo(saved))
}

func runPrograms(opts *ProgramsOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := opts.openStore()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.Delete != "" {
		err := st.DeleteProgram(ctx, opts.Delete)
		if errors.Is(err, store.ErrProgramNotFound) {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no saved program named %q", opts.Delete), nil)
			return WrapExitError(ExitCommandError, "failed to delete program", err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to delete program", err)
		}
		if !formatter.JSON() {
			fmt.Fprintf(formatter.Writer, "✓ Deleted %s\n", opts.Delete)
			return nil
		}
		return formatter.Success(map[string]string{"deleted": opts.Delete})
	}

	programs, err := st.ListPrograms(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list programs", err)
	}
	list := ProgramList{Programs: make([]ProgramInfo, len(programs))}
	for i, p := range programs {
		list.Programs[i] = newProgramInfo(p)
	}
	return formatter.Success(list)
}
