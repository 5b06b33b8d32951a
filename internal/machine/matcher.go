package machine

// FindApplicableRule returns the first rule, in collection order, whose
// current state equals state, whose tape exists, and whose read symbol equals
// the cell under that tape's head.
//
// Rules referencing a missing tape are skipped, not reported; Step reports
// ErrTapeNotFound only for a rule that was actually selected.
func FindApplicableRule(rules []Rule, state string, tapes []Tape) (Rule, bool) {
	for _, rule := range rules {
		if rule.CurrentState != state {
			continue
		}
		if rule.TapeIndex < 0 || rule.TapeIndex >= len(tapes) {
			continue
		}
		if rule.ReadSymbol == tapes[rule.TapeIndex].Symbol() {
			return rule, true
		}
	}
	return Rule{}, false
}
