// Package testutil provides deterministic stand-ins for the engine's clock
// and id generators so traces and golden files are byte-stable.
package testutil

import "sync"

// DeterministicClock is a resettable step sequence for tests.
//
// It satisfies machine.Sequencer. Unlike machine.Clock it can be rewound, so
// one clock can drive several scenario runs that must all number their steps
// from 1.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a clock whose first Next() returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next increments and returns the sequence number.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the sequence number without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock to 0.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
