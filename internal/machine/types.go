package machine

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// InitialState is the state label a machine starts and resets to.
	InitialState = "q0"

	// HaltState is the new-state label that halts the machine implicitly.
	HaltState = "halt"

	// Blank is the symbol used to pad and grow tapes.
	Blank = "0"

	// MinTapeLength is the minimum number of cells a reset tape holds.
	MinTapeLength = 20

	// MaxInitialHead caps the head position after a reset.
	MaxInitialHead = 10

	// MaxTapes bounds the tape count an import may grow the machine to.
	// Candidates addressing a tape index at or above it are dropped.
	MaxTapes = 64

	// TapeType is the only tape geometry supported.
	TapeType = "1d"
)

// DefaultInitialContent is the initial tape content of a new machine.
var DefaultInitialContent = strings.Repeat(Blank, MinTapeLength)

// Direction is a head movement.
type Direction string

const (
	Left  Direction = "left"
	Right Direction = "right"
	Stay  Direction = "stay"
)

// ParseDirection parses a direction name.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Left, Right, Stay:
		return d, nil
	default:
		return "", fmt.Errorf("invalid move direction %q: must be left, right or stay", s)
	}
}

// offset returns the head delta for a direction.
func (d Direction) offset() int {
	switch d {
	case Left:
		return -1
	case Right:
		return 1
	default:
		return 0
	}
}

// Rule is a single transition: (state, symbol) -> (write, move, new state).
type Rule struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	TapeIndex    int       `json:"tapeIndex"`
	CurrentState string    `json:"currentState"`
	ReadSymbol   string    `json:"readSymbol"`
	WriteSymbol  string    `json:"writeSymbol"`
	Move         Direction `json:"moveDirection"`
	NewState     string    `json:"newState"`
	ShouldHalt   bool      `json:"shouldHalt"`

	// NextRuleID is reserved for chained rule selection. Matching ignores it.
	NextRuleID string `json:"nextRuleId,omitempty"`
}

// Halts reports whether applying the rule halts the machine.
func (r Rule) Halts() bool {
	return r.ShouldHalt || r.NewState == HaltState
}

// validWriteSymbol reports whether s is exactly one character.
func validWriteSymbol(s string) bool {
	return utf8.RuneCountInString(s) == 1
}

// Tape is a right-growing sequence of single-character cells with a head.
type Tape struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Cells []string `json:"cells"`
	Head  int      `json:"headPosition"`
}

// Symbol returns the cell under the head, or "" if the head is out of range.
func (t Tape) Symbol() string {
	if t.Head < 0 || t.Head >= len(t.Cells) {
		return ""
	}
	return t.Cells[t.Head]
}

// String returns the cells joined into one string.
func (t Tape) String() string {
	return strings.Join(t.Cells, "")
}

func (t Tape) clone() Tape {
	t.Cells = append([]string(nil), t.Cells...)
	return t
}

// State is the machine configuration shown to callers.
type State struct {
	Current string `json:"currentState"`
	Running bool   `json:"isRunning"`
	Halted  bool   `json:"isHalted"`
}

// StepResult describes the effect of one successful step.
type StepResult struct {
	// Seq is the engine-wide step sequence number (0 when nothing was applied).
	Seq int64 `json:"seq"`

	// Rule is the rule that was applied.
	Rule Rule `json:"rule"`

	FromState  string `json:"fromState"`
	ToState    string `json:"toState"`
	TapeIndex  int    `json:"tapeIndex"`
	HeadBefore int    `json:"headBefore"`
	HeadAfter  int    `json:"headAfter"`

	// Grew is true if a blank cell was appended to the tape.
	Grew bool `json:"grew"`

	// Halted is true if the rule halted the machine.
	Halted bool `json:"halted"`

	// State is the machine state after the step.
	State State `json:"state"`
}

// ImportResult summarizes a successful import.
type ImportResult struct {
	Imported   int `json:"imported"`
	Dropped    int `json:"dropped"`
	TapesAdded int `json:"tapesAdded"`
	TapeCount  int `json:"tapeCount"`
}

// Snapshot is a deep copy of a machine's rules, tapes and state.
type Snapshot struct {
	Rules          []Rule `json:"rules"`
	Tapes          []Tape `json:"tapes"`
	State          State  `json:"state"`
	InitialContent string `json:"initialContent"`
	Steps          int    `json:"steps"`
}
