package machine

import (
	"fmt"
	"unicode/utf8"
)

// Import replaces the rule set with the valid candidates.
//
// A candidate is valid when it has a non-empty current and new state, a
// tape index in [0, MaxTapes) and a one-character write symbol. Invalid
// candidates are dropped and only counted. If nothing survives the import
// is rejected with ErrEmptyImport and the machine is unchanged.
//
// Otherwise tapes are appended (with default content) until every
// referenced tape index exists, survivors get fresh ids, the rule set is
// replaced wholesale, and the state returns to q0 un-halted. The running
// flag is left as is.
//
// NextRuleID references between imported rules are rewritten to the new
// ids; references to anything else are cleared.
func (m *Machine) Import(candidates []Rule) (ImportResult, error) {
	valid := make([]Rule, 0, len(candidates))
	maxTape := -1
	for _, c := range candidates {
		if !validCandidate(c) {
			continue
		}
		valid = append(valid, c)
		maxTape = max(maxTape, c.TapeIndex)
	}

	if len(valid) == 0 {
		return ImportResult{Dropped: len(candidates)}, NewError(ErrCodeEmptyImport,
			fmt.Sprintf("none of %d candidate rules is valid", len(candidates)),
			"candidates", fmt.Sprintf("%d", len(candidates)))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	added := 0
	for len(m.tapes) < maxTape+1 {
		m.tapes = append(m.tapes, m.newTape())
		added++
	}

	taken := make(map[string]bool, len(valid))
	remap := make(map[string]string, len(valid))
	for i := range valid {
		id := m.freshID(taken)
		taken[id] = true
		if old := valid[i].ID; old != "" {
			if _, dup := remap[old]; !dup {
				remap[old] = id
			}
		}
		valid[i].ID = id
	}
	for i := range valid {
		if next, ok := remap[valid[i].NextRuleID]; ok && valid[i].NextRuleID != "" {
			valid[i].NextRuleID = next
		} else {
			valid[i].NextRuleID = ""
		}
	}

	m.rules = valid
	m.state.Current = InitialState
	m.state.Halted = false

	res := ImportResult{
		Imported:   len(valid),
		Dropped:    len(candidates) - len(valid),
		TapesAdded: added,
		TapeCount:  len(m.tapes),
	}
	m.logger.Debug("rules imported",
		"imported", res.Imported,
		"dropped", res.Dropped,
		"tapes_added", added,
	)
	return res, nil
}

func validCandidate(r Rule) bool {
	return r.CurrentState != "" &&
		r.NewState != "" &&
		r.TapeIndex >= 0 && r.TapeIndex < MaxTapes &&
		validWriteSymbol(r.WriteSymbol)
}

// WriteTape replaces the cells and head of tape index. Each character of
// content becomes one cell; head must address one of them. Unlike Reset no
// padding is applied, which lets callers set up exact tape layouts.
func (m *Machine) WriteTape(index int, content string, head int) error {
	n := utf8.RuneCountInString(content)
	if n == 0 || head < 0 || head >= n {
		return fmt.Errorf("write tape: head %d outside content of length %d", head, n)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.tapes) {
		return newTapeNotFoundError(index)
	}

	cells := make([]string, 0, n)
	for _, r := range content {
		cells = append(cells, string(r))
	}
	m.tapes[index].Cells = cells
	m.tapes[index].Head = head
	return nil
}
