package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/turingloom/internal/document"
	"github.com/roach88/turingloom/internal/machine"
	"github.com/roach88/turingloom/internal/store"
)

// Error code constants - unified across all CLI commands. Engine failures
// are reported with their own codes (NO_MATCHING_RULE, EMPTY_IMPORT, ...).
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeReadFailed  = "E002" // Program file could not be read
	ErrCodeMalformed   = "E003" // Program document is malformed
	ErrCodeStoreFailed = "E004" // Database error
	ErrCodeNotFound    = "E005" // Program path or saved name not found
	ErrCodeNoRules     = "E006" // Program has no usable rules
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeTestFailed  = "E_TEST_FAILED"
)

// Program is a loaded rule document and where it came from.
type Program struct {
	*document.Parsed

	// Ref is the argument the program was loaded from.
	Ref string

	// Saved is true if Ref named a program in the database.
	Saved bool
}

// LoadError represents an error that occurred while loading a program.
type LoadError struct {
	Code    string
	Message string
	Ref     string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("%s: %s: %s", e.Ref, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadProgram loads the program named by ref. A ref that is an existing
// file is parsed by extension (.json, .yaml/.yml, .cue). Otherwise, if st
// is not nil, ref is looked up as a saved program name.
func LoadProgram(ctx context.Context, ref string, st *store.Store) (*Program, error) {
	info, err := os.Stat(ref)
	switch {
	case err == nil && info.IsDir():
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: "program is a directory", Ref: ref}
	case err == nil:
		parsed, err := document.ParseFile(ref)
		if err != nil {
			return nil, loadErrorFrom(ref, err)
		}
		return &Program{Parsed: parsed, Ref: ref}, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: err.Error(), Ref: ref, Err: err}
	}

	if st == nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: "program file not found", Ref: ref, Err: err}
	}

	saved, err := st.LoadProgram(ctx, ref)
	if errors.Is(err, store.ErrProgramNotFound) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: "no program file or saved program with this name", Ref: ref, Err: err}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeStoreFailed, Message: err.Error(), Ref: ref, Err: err}
	}
	return &Program{Parsed: &document.Parsed{Document: saved.Document}, Ref: ref, Saved: true}, nil
}

// LoadProgramFrom loads ref as a file, or as a saved program from the
// database at dbPath. The database is only opened when ref is not a file.
func LoadProgramFrom(ctx context.Context, ref, dbPath string) (*Program, error) {
	if _, err := os.Stat(ref); err == nil || dbPath == "" {
		return LoadProgram(ctx, ref, nil)
	}
	st, err := openStore(dbPath)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeStoreFailed, Message: err.Error(), Ref: ref, Err: err}
	}
	defer st.Close()
	return LoadProgram(ctx, ref, st)
}

// loadErrorFrom classifies a document parse error.
func loadErrorFrom(ref string, err error) *LoadError {
	if errors.Is(err, machine.ErrMalformedImport) {
		return &LoadError{Code: ErrCodeMalformed, Message: err.Error(), Ref: ref, Err: err}
	}
	return &LoadError{Code: ErrCodeReadFailed, Message: err.Error(), Ref: ref, Err: err}
}

// errorCode returns the code reported for err: a load error code, an engine
// error code or ErrCodeGeneric.
func errorCode(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	if code := machine.CodeOf(err); code != "" {
		return string(code)
	}
	return ErrCodeGeneric
}

// openStore opens the database at path, creating its directory first.
func openStore(path string) (*store.Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	return st, nil
}
