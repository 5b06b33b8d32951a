package machine

import (
	"errors"
	"fmt"
)

// Error is a recoverable engine error. None of them leave the machine in an
// inconsistent state; the halting codes stop the machine on purpose.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Details contains additional context (rule id, tape index, ...).
	Details map[string]string
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeInvalidWriteSymbol indicates a write symbol that is not one character.
	ErrCodeInvalidWriteSymbol ErrorCode = "INVALID_WRITE_SYMBOL"

	// ErrCodeNoMatchingRule indicates no rule matches the current state and symbol.
	ErrCodeNoMatchingRule ErrorCode = "NO_MATCHING_RULE"

	// ErrCodeTapeNotFound indicates a rule or request references a missing tape.
	ErrCodeTapeNotFound ErrorCode = "TAPE_NOT_FOUND"

	// ErrCodeEmptyImport indicates an import with no valid rules.
	ErrCodeEmptyImport ErrorCode = "EMPTY_IMPORT"

	// ErrCodeMalformedImport indicates an import payload that is not a rule sequence.
	ErrCodeMalformedImport ErrorCode = "MALFORMED_IMPORT"

	// ErrCodeLastTapeDeletion indicates an attempt to delete the only tape.
	ErrCodeLastTapeDeletion ErrorCode = "LAST_TAPE_DELETION"

	// ErrCodeAlreadyHalted indicates a step on a halted machine.
	ErrCodeAlreadyHalted ErrorCode = "ALREADY_HALTED"

	// ErrCodeRuleNotFound indicates an update or removal of an unknown rule.
	ErrCodeRuleNotFound ErrorCode = "RULE_NOT_FOUND"

	// ErrCodeContentTooLong indicates initial tape content above the editor limit.
	ErrCodeContentTooLong ErrorCode = "CONTENT_TOO_LONG"
)

// Sentinels for errors.Is. Any *Error with the same Code matches.
var (
	ErrInvalidWriteSymbol = &Error{Code: ErrCodeInvalidWriteSymbol, Message: "write symbol must be a single character"}
	ErrNoMatchingRule     = &Error{Code: ErrCodeNoMatchingRule, Message: "no matching rule"}
	ErrTapeNotFound       = &Error{Code: ErrCodeTapeNotFound, Message: "tape not found"}
	ErrEmptyImport        = &Error{Code: ErrCodeEmptyImport, Message: "import contains no valid rules"}
	ErrMalformedImport    = &Error{Code: ErrCodeMalformedImport, Message: "import payload is malformed"}
	ErrLastTapeDeletion   = &Error{Code: ErrCodeLastTapeDeletion, Message: "at least one tape must remain"}
	ErrAlreadyHalted      = &Error{Code: ErrCodeAlreadyHalted, Message: "machine is halted"}
	ErrRuleNotFound       = &Error{Code: ErrCodeRuleNotFound, Message: "rule not found"}
	ErrContentTooLong     = &Error{Code: ErrCodeContentTooLong, Message: "initial content is too long"}
)

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// CodeOf returns the error code of err, or "" if err is not an *Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var me *Error
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

// IsHalting returns true if the error halted the machine.
func IsHalting(err error) bool {
	switch CodeOf(err) {
	case ErrCodeNoMatchingRule, ErrCodeTapeNotFound:
		return true
	}
	return false
}

// NewError creates an *Error with optional key/value details.
func NewError(code ErrorCode, message string, kv ...string) *Error {
	e := &Error{Code: code, Message: message}
	if len(kv) > 0 {
		e.Details = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			e.Details[kv[i]] = kv[i+1]
		}
	}
	return e
}

func newWriteSymbolError(symbol string) *Error {
	return NewError(ErrCodeInvalidWriteSymbol,
		fmt.Sprintf("write symbol must be a single character, got %q", symbol),
		"write_symbol", symbol)
}

func newNoMatchError(state, symbol string) *Error {
	return NewError(ErrCodeNoMatchingRule,
		fmt.Sprintf("no rule for state %q", state),
		"state", state, "symbol", symbol)
}

func newTapeNotFoundError(index int) *Error {
	return NewError(ErrCodeTapeNotFound,
		fmt.Sprintf("tape %d does not exist", index+1),
		"tape_index", fmt.Sprintf("%d", index))
}
