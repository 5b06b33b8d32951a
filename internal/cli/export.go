package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/turingloom/internal/document"
	"github.com/roach88/turingloom/internal/session"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Database  string
	OutputDir string
	As        string
	Stdout    bool

	// Now overrides the clock used for the dated filename (for testing).
	Now func() time.Time
}

// ExportResult is the output of the export command.
type ExportResult struct {
	Program string `json:"program"`
	Path    string `json:"path"`
	Rules   int    `json:"rules"`
	Hash    string `json:"hash"`
}

func (r ExportResult) String() string {
	return fmt.Sprintf("✓ Exported %d rule(s) to %s", r.Rules, r.Path)
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <program>",
		Short: "Write a normalized, versioned copy of a program",
		Long: `Import a program and export it again as a versioned document.

Rules that an import would drop are left out, rule ids are renumbered and
tapes are listed. The file is named turing-machine-rules-YYYY-MM-DD.json.

Example:
  turingloom export ./legacy-rules.json -o ./exports
  turingloom export invert --as yaml --stdout`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database, for saved programs (default from config)")
	cmd.Flags().StringVarP(&opts.OutputDir, "output", "o", ".", "output directory")
	cmd.Flags().StringVar(&opts.As, "as", "json", "document format (json|yaml)")
	cmd.Flags().BoolVar(&opts.Stdout, "stdout", false, "print the document instead of writing a file")

	return cmd
}

func runExport(opts *ExportOptions, ref string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	format := document.Format(opts.As)
	if format != document.FormatJSON && format != document.FormatYAML {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --as %q: must be json or yaml", opts.As))
	}

	db := opts.Database
	if db == "" {
		db = opts.config().DB
	}
	prog, err := LoadProgramFrom(ctx, ref, db)
	if err != nil {
		_ = formatter.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load program", err)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sess := newSession(ctx, opts.RootOptions, cmd.ErrOrStderr(), nil, opts.config().InitialContent,
		session.WithNow(now))
	if _, err := sess.Import(prog.Parsed); err != nil {
		_ = formatter.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to import program", err)
	}

	doc, name, err := sess.Export()
	if errors.Is(err, session.ErrNothingToExport) {
		return NewExitError(ExitFailure, "program has no rules to export")
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to export program", err)
	}

	data, err := document.Encode(doc, format)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode document", err)
	}

	if opts.Stdout {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}

	if format == document.FormatYAML {
		name = strings.TrimSuffix(name, ".json") + ".yaml"
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to create output directory", err)
	}
	path := filepath.Join(opts.OutputDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to write document", err)
	}
	formatter.VerboseLog("Wrote %d bytes to %s", len(data), path)

	return formatter.Success(ExportResult{
		Program: prog.Ref,
		Path:    path,
		Rules:   len(doc.Rules),
		Hash:    document.MustHash(doc.Rules),
	})
}
