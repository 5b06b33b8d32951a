package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/roach88/turingloom/internal/document"
	"github.com/roach88/turingloom/internal/machine"
)

// ValidationIssue describes one rule the import would drop.
type ValidationIssue struct {
	Rule    int    `json:"rule"` // 1-based position in the document
	Name    string `json:"name,omitempty"`
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Program string            `json:"program"`
	Version int               `json:"version"`
	Kept    int               `json:"kept"`
	Dropped int               `json:"dropped"`
	Tapes   int               `json:"tapes"`
	Hash    string            `json:"hash,omitempty"`
	Issues  []ValidationIssue `json:"issues,omitempty"`
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Database string
	Strict   bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <program>",
		Short: "Check a program without running it",
		Long: `Parse a rule document and check every rule the way an import would.

Reports how many rules would be kept and dropped, the number of tapes the
program needs and its content hash. A program with no usable rules fails.
With --strict any dropped rule fails the validation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database, for saved programs (default from config)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail if any rule is dropped")

	return cmd
}

func runValidate(opts *ValidateOptions, ref string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	db := opts.Database
	if db == "" {
		db = opts.config().DB
	}
	prog, err := LoadProgramFrom(cmd.Context(), ref, db)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Code == ErrCodeMalformed {
			_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
			return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message))
		}
		return outputValidateError(formatter, errorCode(err), err.Error(), nil)
	}

	formatter.VerboseLog("Loaded %s (version %d, %d rule record(s) kept by the parser, %d dropped)",
		prog.Ref, prog.Version, len(prog.Rules), prog.Dropped)

	result := ValidateProgram(prog)
	if !result.Valid || (opts.Strict && result.Dropped > 0) {
		return outputValidationFailure(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// ValidateProgram imports prog into a scratch machine and reports the outcome.
func ValidateProgram(prog *Program) ValidationResult {
	result := ValidationResult{
		Program: prog.Ref,
		Version: prog.Version,
	}
	for i, r := range prog.Rules {
		result.Issues = append(result.Issues, ruleIssues(i+1, r)...)
	}

	m := machine.New()
	res, err := m.Import(prog.Rules)
	result.Dropped = prog.Dropped + res.Dropped
	if err != nil {
		result.Dropped = prog.Dropped + len(prog.Rules)
		if len(result.Issues) == 0 {
			result.Issues = append(result.Issues, ValidationIssue{
				Field:   "rules",
				Code:    errorCode(err),
				Message: "program contains no valid rules",
			})
		}
		return result
	}

	result.Valid = true
	result.Kept = res.Imported
	result.Tapes = res.TapeCount
	if hash, err := document.Hash(m.Rules()); err == nil {
		result.Hash = hash
	}
	return result
}

// ruleIssues lists why the import would drop r.
func ruleIssues(pos int, r machine.Rule) []ValidationIssue {
	var issues []ValidationIssue
	add := func(field, code, message string) {
		issues = append(issues, ValidationIssue{Rule: pos, Name: r.Name, Field: field, Code: code, Message: message})
	}
	if r.CurrentState == "" {
		add("currentState", ErrCodeGeneric, "current state is empty")
	}
	if r.NewState == "" {
		add("newState", ErrCodeGeneric, "new state is empty")
	}
	if r.TapeIndex < 0 {
		add("tapeIndex", string(machine.ErrCodeTapeNotFound), fmt.Sprintf("tape index %d is negative", r.TapeIndex))
	}
	if utf8.RuneCountInString(r.WriteSymbol) != 1 {
		add("writeSymbol", string(machine.ErrCodeInvalidWriteSymbol), fmt.Sprintf("write symbol %q is not a single character", r.WriteSymbol))
	}
	return issues
}

func (r ValidationResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ %s is valid: %d rule(s) kept, %d dropped, %d tape(s)", r.Program, r.Kept, r.Dropped, r.Tapes)
	if r.Hash != "" {
		fmt.Fprintf(&b, "\n  hash %s", r.Hash)
	}
	writeIssues(&b, r.Issues)
	return b.String()
}

func writeIssues(b *strings.Builder, issues []ValidationIssue) {
	for _, issue := range issues {
		label := fmt.Sprintf("rule %d", issue.Rule)
		if issue.Rule == 0 {
			label = issue.Field
		} else if issue.Name != "" {
			label += fmt.Sprintf(" (%s)", issue.Name)
		}
		fmt.Fprintf(b, "\n  %s: %s: %s", label, issue.Code, issue.Message)
	}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	return formatter.Success(result)
}

// outputValidateError outputs a single error that prevented validation.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationFailure outputs a failed validation.
func outputValidationFailure(formatter *OutputFormatter, result ValidationResult) error {
	result.Valid = false
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed: %d rule(s) kept, %d dropped", result.Kept, result.Dropped))

	if formatter.JSON() {
		code := string(machine.ErrCodeEmptyImport)
		if result.Kept > 0 {
			code = ErrCodeGeneric
		}
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    code,
				Message: exitErr.Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return exitErr
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✗ Validation failed: %d rule(s) kept, %d dropped", result.Kept, result.Dropped)
	writeIssues(&b, result.Issues)
	fmt.Fprintln(formatter.Writer, b.String())
	return exitErr
}
