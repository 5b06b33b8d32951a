package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/turingloom/internal/prefs"
)

// LangOptions holds flags for the lang command.
type LangOptions struct {
	*RootOptions
	Database string
}

// LangResult is the output of the lang command.
type LangResult struct {
	Language prefs.Language `json:"language"`
	Changed  bool           `json:"changed"`
}

func (r LangResult) String() string {
	return fmt.Sprintf("Language: %s", r.Language)
}

// NewLangCommand creates the lang command.
func NewLangCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LangOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lang [zh|en|toggle]",
		Short: "Show or set the message language",
		Long: `Show or set the language used for notifications.

Any BCP 47 tag is accepted and mapped onto Chinese or English, so zh-TW
selects Chinese and en-GB selects English. "toggle" switches between the
two. The choice is stored in the database.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := ""
			if len(args) == 1 {
				arg = args[0]
			}
			return runLang(opts, arg, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")

	return cmd
}

func runLang(opts *LangOptions, arg string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	db := opts.Database
	if db == "" {
		db = opts.config().DB
	}
	st, err := openStore(db)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	sess := newSession(ctx, opts.RootOptions, cmd.ErrOrStderr(), st, opts.config().InitialContent)

	switch arg {
	case "":
		return formatter.Success(LangResult{Language: sess.Language()})
	case "toggle":
		lang, err := sess.ToggleLanguage(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to store language", err)
		}
		return formatter.Success(LangResult{Language: lang, Changed: true})
	}

	lang, err := prefs.ParseLanguage(arg)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid language", err)
	}
	if err := sess.SetLanguage(ctx, lang); err != nil {
		return WrapExitError(ExitCommandError, "failed to store language", err)
	}
	return formatter.Success(LangResult{Language: lang, Changed: true})
}
