// Package machine implements the Turing machine transition engine.
//
// A Machine owns an ordered rule set, one or more tapes and the machine
// state (current state label, running, halted). Step resolves the
// applicable rule for the current state and applies it to its tape.
//
// RULE RESOLUTION:
//
// First-match policy. Rules are filtered by current state and scanned in
// collection order; the first rule whose tape exists and whose read symbol
// equals the cell under that tape's head wins. Collection order is
// insertion order for added rules and document order for imported rules.
// NextRuleID is stored and round-tripped but never consulted.
//
// STEP:
//
//  1. Halted machines do not step (ErrAlreadyHalted).
//  2. No applicable rule halts the machine (ErrNoMatchingRule).
//  3. A rule whose tape is gone halts the machine (ErrTapeNotFound).
//  4. The write symbol replaces the cell under the head.
//  5. The head moves left, right or stays, clamped at 0.
//  6. If the head reaches the last cell, one blank cell is appended.
//  7. The state becomes the rule's new state; ShouldHalt or new state
//     "halt" halts the machine.
//
// CONCURRENCY:
//
// Every exported Machine method locks a single mutex. Runner ticks,
// session edits and imports may arrive from different goroutines and are
// serialized against each other.
package machine
