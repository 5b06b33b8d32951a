package machine

import "strings"

// Reset stops and un-halts the machine, returns it to q0, and rewrites every
// tape from initialContent. All tapes receive the same content; there is no
// per-tape memory of earlier content. The content becomes the stored
// initial content.
//
// Reset is idempotent.
func (m *Machine) Reset(initialContent string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset(initialContent)
}

// reset implements Reset. Caller must hold mu.
func (m *Machine) reset(initialContent string) {
	m.initialContent = initialContent
	m.state = State{Current: InitialState}
	m.steps = 0
	m.fillTapes()
	m.logger.Debug("machine reset", "tapes", len(m.tapes), "content", initialContent)
}

// ApplyInitialContent stores content and rewrites every tape from it without
// changing the machine state.
func (m *Machine) ApplyInitialContent(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialContent = content
	m.fillTapes()
}

// fillTapes rewrites all tapes from the stored initial content.
// Caller must hold mu.
func (m *Machine) fillTapes() {
	for i := range m.tapes {
		m.tapes[i].Cells, m.tapes[i].Head = layout(m.initialContent)
	}
}

// layout splits content into single-character cells, right-padded with
// blanks to at least MinTapeLength cells, and picks the head position
// min(MaxInitialHead, len(content)-1), never below 0.
func layout(content string) ([]string, int) {
	runes := []rune(content)
	n := max(len(runes), MinTapeLength)

	cells := make([]string, 0, n)
	for _, r := range runes {
		cells = append(cells, string(r))
	}
	if pad := n - len(cells); pad > 0 {
		cells = append(cells, strings.Split(strings.Repeat(Blank, pad), "")...)
	}

	head := max(0, min(MaxInitialHead, len(runes)-1))
	return cells, head
}
