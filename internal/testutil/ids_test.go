package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceIDs(t *testing.T) {
	gen := NewSequenceIDs("r")
	assert.Equal(t, "r-1", gen.Generate())
	assert.Equal(t, "r-2", gen.Generate())
}

func TestSequenceIDs_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "rule-1", NewSequenceIDs("").Generate())
}

func TestFixedIDs_InOrderThenPanics(t *testing.T) {
	gen := NewFixedIDs("a", "b")
	assert.Equal(t, "a", gen.Generate())
	assert.Equal(t, "b", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestFixedIDs_DuplicatesAllowed(t *testing.T) {
	gen := NewFixedIDs("same", "same", "other")
	assert.Equal(t, "same", gen.Generate())
	assert.Equal(t, "same", gen.Generate())
	assert.Equal(t, "other", gen.Generate())
}
