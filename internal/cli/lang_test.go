package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/turingloom/internal/prefs"
)

func TestLangCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "prefs.db")

	lang := func(args ...string) string {
		t.Helper()
		cmd := NewLangCommand(newTestOpts(t, "text"))
		out, _, err := executeCommand(cmd, append(args, "--db", db)...)
		require.NoError(t, err)
		return out
	}

	assert.Equal(t, "Language: zh\n", lang())
	assert.Equal(t, "Language: en\n", lang("toggle"))
	// The choice survives across invocations.
	assert.Equal(t, "Language: en\n", lang())
	assert.Equal(t, "Language: zh\n", lang("zh-TW"))
	assert.Equal(t, "Language: en\n", lang("en-GB"))
}

func TestLangCommand_JSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "prefs.db")

	cmd := NewLangCommand(newTestOpts(t, "json"))
	out, _, err := executeCommand(cmd, "toggle", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Data LangResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, prefs.English, resp.Data.Language)
	assert.True(t, resp.Data.Changed)
}

func TestLangCommand_Invalid(t *testing.T) {
	cmd := NewLangCommand(newTestOpts(t, "text"))
	out, _, err := executeCommand(cmd, "!!", "--db", filepath.Join(t.TempDir(), "prefs.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "invalid language")
}

func TestLangCommand_NotificationsFollowLanguage(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "prefs.db")
	program := writeFile(t, dir, "mark.json", markProgram)

	toggle := NewLangCommand(newTestOpts(t, "text"))
	_, _, err := executeCommand(toggle, "en", "--db", db)
	require.NoError(t, err)

	run := NewRunCommand(newTestOpts(t, "text"))
	_, errOut, err := executeCommand(run, program, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, errOut, "✓")
	assert.Contains(t, errOut, "halted")
}
