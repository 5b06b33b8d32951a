package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/turingloom/internal/document"
	"github.com/roach88/turingloom/internal/machine"
	"github.com/roach88/turingloom/internal/store"
)

func TestLoadProgram_Formats(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	tests := []struct {
		name    string
		file    string
		content string
		rules   int
		bare    bool
	}{
		{"json document", "mark.json", markProgram, 2, false},
		{"bare array", "walk.json", walkProgram, 1, true},
		{"yaml", "walk.yml", `- {currentState: q0, readSymbol: "0", writeSymbol: "0", moveDirection: right, newState: q0}
`, 1, true},
		{"cue", "walk.cue", `version: 1
rules: [{currentState: "q0", readSymbol: "0", writeSymbol: "1", moveDirection: "stay", newState: "halt"}]
`, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, tt.content)

			prog, err := LoadProgram(ctx, path, nil)
			require.NoError(t, err)
			assert.Equal(t, path, prog.Ref)
			assert.False(t, prog.Saved)
			assert.Equal(t, tt.bare, prog.Bare)
			assert.Len(t, prog.Rules, tt.rules)
		})
	}
}

func TestLoadProgram_Errors(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	t.Run("directory", func(t *testing.T) {
		_, err := LoadProgram(ctx, dir, nil)
		assert.Equal(t, ErrCodeReadFailed, errorCode(err))
	})

	t.Run("malformed", func(t *testing.T) {
		path := writeFile(t, dir, "scalar.json", `42`)
		_, err := LoadProgram(ctx, path, nil)
		assert.Equal(t, ErrCodeMalformed, errorCode(err))
		assert.ErrorIs(t, err, machine.ErrMalformedImport)
	})

	t.Run("missing file without store", func(t *testing.T) {
		_, err := LoadProgram(ctx, filepath.Join(dir, "nope.json"), nil)
		assert.Equal(t, ErrCodeNotFound, errorCode(err))
	})

	t.Run("unknown saved name", func(t *testing.T) {
		st, err := store.Open(":memory:")
		require.NoError(t, err)
		defer st.Close()

		_, err = LoadProgram(ctx, "ghost", st)
		assert.Equal(t, ErrCodeNotFound, errorCode(err))
		assert.ErrorIs(t, err, store.ErrProgramNotFound)
	})
}

func TestLoadProgram_SavedName(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	parsed, err := document.Parse([]byte(markProgram), document.FormatJSON, "")
	require.NoError(t, err)
	_, err = st.SaveProgram(ctx, "mark", parsed.Document, time.Now())
	require.NoError(t, err)

	prog, err := LoadProgram(ctx, "mark", st)
	require.NoError(t, err)
	assert.True(t, prog.Saved)
	assert.Equal(t, "1", prog.InitialContent)
	assert.Len(t, prog.Rules, 2)
}

func TestLoadProgramFrom_FileSkipsDatabase(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "mark.json", markProgram)
	db := filepath.Join(dir, "never", "created.db")

	_, err := LoadProgramFrom(context.Background(), path, db)
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Dir(db))
}

func TestLoadError(t *testing.T) {
	inner := errors.New("boom")
	err := &LoadError{Code: ErrCodeReadFailed, Message: "cannot read", Ref: "x.json", Err: inner}
	assert.Equal(t, "x.json: E002: cannot read", err.Error())
	assert.ErrorIs(t, err, inner)

	assert.Equal(t, "E005: gone", (&LoadError{Code: ErrCodeNotFound, Message: "gone"}).Error())
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, errorCode(fmt.Errorf("wrap: %w", &LoadError{Code: ErrCodeNotFound})))
	assert.Equal(t, "NO_MATCHING_RULE", errorCode(fmt.Errorf("wrap: %w", machine.ErrNoMatchingRule)))
	assert.Equal(t, ErrCodeGeneric, errorCode(errors.New("plain")))
}
