package machine

import (
	"fmt"
	"log/slog"
	"sync"
)

// Machine is a Turing machine: an ordered rule set, its tapes and state.
//
// Thread-safety: all exported methods are safe for concurrent use. They
// serialize on one mutex because every operation reads and writes the
// shared rule/tape/state triple.
//
// INVARIANTS:
//   - len(tapes) >= 1
//   - 0 <= tape.Head < len(tape.Cells) for every tape
//   - state.Halted implies !state.Running
//   - rule order is insertion/import order and is never re-sorted
type Machine struct {
	mu sync.Mutex

	rules []Rule
	tapes []Tape
	state State

	initialContent string
	steps          int // steps applied since the last reset
	tapeSeq        int // last tape-N suffix handed out
	tapeCount      int // tapes to create in New

	ids    IDGenerator
	clock  Sequencer
	logger *slog.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithIDGenerator sets the rule id generator (default: UUIDv7Generator).
func WithIDGenerator(g IDGenerator) Option {
	return func(m *Machine) {
		m.ids = g
	}
}

// WithClock sets the step sequence clock (default: NewClock()).
func WithClock(c Sequencer) Option {
	return func(m *Machine) {
		m.clock = c
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = l
	}
}

// WithInitialContent sets the initial tape content used for the first tape,
// new tapes and resets.
func WithInitialContent(content string) Option {
	return func(m *Machine) {
		m.initialContent = content
	}
}

// WithTapes creates the machine with n tapes instead of one. Values below 1
// are ignored.
func WithTapes(n int) Option {
	return func(m *Machine) {
		m.tapeCount = n
	}
}

// New creates a machine in state q0 with one tape holding the initial content.
func New(opts ...Option) *Machine {
	m := &Machine{
		state:          State{Current: InitialState},
		initialContent: DefaultInitialContent,
		ids:            UUIDv7Generator{},
		clock:          NewClock(),
		logger:         slog.Default(),
		tapeCount:      1,
	}

	for _, opt := range opts {
		opt(m)
	}

	// Tapes are built after options so WithInitialContent applies to them.
	for len(m.tapes) < max(1, m.tapeCount) {
		m.tapes = append(m.tapes, m.newTape())
	}
	return m
}

// newTape builds a tape with the default content and head.
// Caller must hold mu or be constructing the machine.
func (m *Machine) newTape() Tape {
	m.tapeSeq++
	cells, head := layout(m.initialContent)
	return Tape{
		ID:    fmt.Sprintf("tape-%d", m.tapeSeq),
		Name:  fmt.Sprintf("Tape %d", len(m.tapes)+1),
		Cells: cells,
		Head:  head,
	}
}

// Rules returns a copy of the rule set in order.
func (m *Machine) Rules() []Rule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Rule(nil), m.rules...)
}

// Tapes returns deep copies of all tapes.
func (m *Machine) Tapes() []Tape {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyTapes()
}

func (m *Machine) copyTapes() []Tape {
	out := make([]Tape, len(m.tapes))
	for i, t := range m.tapes {
		out[i] = t.clone()
	}
	return out
}

// State returns the current machine state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// InitialContent returns the stored initial tape content.
func (m *Machine) InitialContent() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialContent
}

// SetInitialContent stores the initial tape content without touching tapes.
// The next reset, new tape or start-from-halted uses it.
func (m *Machine) SetInitialContent(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialContent = content
}

// Steps returns the number of steps applied since the last reset.
func (m *Machine) Steps() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.steps
}

// Snapshot returns a deep copy of the whole machine.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Rules:          append([]Rule(nil), m.rules...),
		Tapes:          m.copyTapes(),
		State:          m.state,
		InitialContent: m.initialContent,
		Steps:          m.steps,
	}
}

// AddRule validates the rule, assigns it a fresh id and appends it.
// Any id on the argument is ignored.
func (m *Machine) AddRule(r Rule) (Rule, error) {
	if !validWriteSymbol(r.WriteSymbol) {
		return Rule{}, newWriteSymbolError(r.WriteSymbol)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r.ID = m.freshID(nil)
	m.rules = append(m.rules, r)
	m.logger.Debug("rule added", "id", r.ID, "state", r.CurrentState, "read", r.ReadSymbol)
	return r, nil
}

// UpdateRule replaces the rule with the same id, keeping its position.
func (m *Machine) UpdateRule(r Rule) error {
	if !validWriteSymbol(r.WriteSymbol) {
		return newWriteSymbolError(r.WriteSymbol)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.rules {
		if m.rules[i].ID == r.ID {
			m.rules[i] = r
			return nil
		}
	}
	return NewError(ErrCodeRuleNotFound, fmt.Sprintf("rule %q not found", r.ID), "id", r.ID)
}

// RemoveRule deletes the rule with the given id.
func (m *Machine) RemoveRule(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.rules {
		if m.rules[i].ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return NewError(ErrCodeRuleNotFound, fmt.Sprintf("rule %q not found", id), "id", id)
}

// AddTape appends a tape initialized from the stored initial content.
func (m *Machine) AddTape() Tape {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.newTape()
	m.tapes = append(m.tapes, t)
	return t.clone()
}

// DeleteTape removes the tape with the given id and renames the remaining
// tapes "Tape 1".."Tape n". The last tape cannot be deleted.
//
// Rule tape indexes are not rewritten; a rule pointing past the end simply
// stops matching.
func (m *Machine) DeleteTape(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i, t := range m.tapes {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return NewError(ErrCodeTapeNotFound, fmt.Sprintf("tape %q not found", id), "id", id)
	}
	if len(m.tapes) <= 1 {
		return ErrLastTapeDeletion
	}

	m.tapes = append(m.tapes[:idx], m.tapes[idx+1:]...)
	for i := range m.tapes {
		m.tapes[i].Name = fmt.Sprintf("Tape %d", i+1)
	}
	return nil
}

// Start marks the machine running. A halted machine is fully reset with the
// stored initial content first. Returns true if a reset happened.
func (m *Machine) Start() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	reset := false
	if m.state.Halted {
		m.reset(m.initialContent)
		reset = true
	}
	m.state.Running = true
	return reset
}

// Stop clears the running flag.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Running = false
}

// Running reports whether the machine is marked running.
func (m *Machine) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Running
}

// freshID returns an id not used by any current rule nor in taken.
// Caller must hold mu.
func (m *Machine) freshID(taken map[string]bool) string {
	for {
		id := m.ids.Generate()
		if taken[id] {
			continue
		}
		clash := false
		for _, r := range m.rules {
			if r.ID == id {
				clash = true
				break
			}
		}
		if !clash {
			return id
		}
	}
}
