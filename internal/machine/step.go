package machine

// Step applies one transition.
//
// Returns ErrAlreadyHalted (no-op) if the machine is halted. If no rule
// applies, or the selected rule's tape is missing, the machine halts and
// the corresponding error is returned; tapes and state label are left
// untouched for inspection. A rule that halts is a success: the result has
// Halted set and the error is nil.
func (m *Machine) Step() (StepResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Halted {
		return StepResult{State: m.state}, ErrAlreadyHalted
	}

	rule, ok := FindApplicableRule(m.rules, m.state.Current, m.tapes)
	if !ok {
		symbol := ""
		if len(m.tapes) > 0 {
			symbol = m.tapes[0].Symbol()
		}
		m.halt()
		m.logger.Debug("no matching rule", "state", m.state.Current, "symbol", symbol)
		return StepResult{State: m.state}, newNoMatchError(m.state.Current, symbol)
	}

	if rule.TapeIndex < 0 || rule.TapeIndex >= len(m.tapes) {
		m.halt()
		return StepResult{Rule: rule, State: m.state}, newTapeNotFoundError(rule.TapeIndex)
	}

	tape := &m.tapes[rule.TapeIndex]
	headBefore := tape.Head

	cells := append([]string(nil), tape.Cells...)
	cells[headBefore] = rule.WriteSymbol

	head := max(0, headBefore+rule.Move.offset())

	// Keep at least one free cell ahead of the head.
	grew := false
	if head >= len(cells)-1 {
		cells = append(cells, Blank)
		grew = true
	}

	tape.Cells = cells
	tape.Head = head

	from := m.state.Current
	m.state.Current = rule.NewState
	m.steps++

	halted := rule.Halts()
	if halted {
		m.halt()
	}

	res := StepResult{
		Seq:        m.clock.Next(),
		Rule:       rule,
		FromState:  from,
		ToState:    rule.NewState,
		TapeIndex:  rule.TapeIndex,
		HeadBefore: headBefore,
		HeadAfter:  head,
		Grew:       grew,
		Halted:     halted,
		State:      m.state,
	}

	m.logger.Debug("step",
		"seq", res.Seq,
		"rule", rule.ID,
		"from", from,
		"to", rule.NewState,
		"tape", rule.TapeIndex,
		"head", head,
		"halted", halted,
	)
	return res, nil
}

// halt enters the halted state. Caller must hold mu.
func (m *Machine) halt() {
	m.state.Halted = true
	m.state.Running = false
}
