package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	err := f.Success(map[string]string{"state": "halt"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "halt", data["state"])
}

func TestOutputFormatter_JSONError(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	err := f.Error("NO_MATCHING_RULE", "no rule for state q1 reading \"0\" on tape 1", nil)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NO_MATCHING_RULE", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "state q1")
	assert.Nil(t, resp.Error.Details)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	err := f.Error(ErrCodeMalformed, "document is malformed", map[string]any{"path": "invert.json"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMalformed, resp.Error.Code)

	details, ok := resp.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "invert.json", details["path"])
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	require.NoError(t, f.Success(LangResult{Language: "zh"}))
	assert.Equal(t, "Language: zh\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	require.NoError(t, f.Error(ErrCodeNotFound, "program not found: invert", "ignored without verbose"))
	assert.Equal(t, "Error [E005]: program not found: invert\n", buf.String())
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf, Verbose: true}

	require.NoError(t, f.Error(ErrCodeNotFound, "program not found: invert", "looked in turingloom.db"))
	assert.Contains(t, buf.String(), "Error [E005]: program not found: invert")
	assert.Contains(t, buf.String(), "Details: looked in turingloom.db")
}

func TestOutputFormatter_SuccessWithRun(t *testing.T) {
	t.Run("text prints run id", func(t *testing.T) {
		var buf bytes.Buffer
		f := &OutputFormatter{Format: "text", Writer: &buf}

		require.NoError(t, f.SuccessWithRun("done", "run-1"))
		assert.Equal(t, "done\nRun: run-1\n", buf.String())
	})

	t.Run("text without run id", func(t *testing.T) {
		var buf bytes.Buffer
		f := &OutputFormatter{Format: "text", Writer: &buf}

		require.NoError(t, f.SuccessWithRun("done", ""))
		assert.Equal(t, "done\n", buf.String())
	})

	t.Run("json carries run id", func(t *testing.T) {
		var buf bytes.Buffer
		f := &OutputFormatter{Format: "json", Writer: &buf}

		require.NoError(t, f.SuccessWithRun("done", "run-1"))

		var resp CLIResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, "run-1", resp.RunID)
		assert.Equal(t, "done", resp.Data)
	})
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	t.Run("silent without verbose", func(t *testing.T) {
		var out, errOut bytes.Buffer
		f := &OutputFormatter{Format: "text", Writer: &out, ErrWriter: &errOut}

		f.VerboseLog("step %d", 3)
		assert.Empty(t, out.String())
		assert.Empty(t, errOut.String())
	})

	t.Run("writes to ErrWriter", func(t *testing.T) {
		var out, errOut bytes.Buffer
		f := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &errOut, Verbose: true}

		f.VerboseLog("step %d", 3)
		assert.Empty(t, out.String(), "verbose output must not corrupt JSON on stdout")
		assert.Equal(t, "step 3\n", errOut.String())
	})

	t.Run("falls back to Writer", func(t *testing.T) {
		var out bytes.Buffer
		f := &OutputFormatter{Format: "text", Writer: &out, Verbose: true}

		f.VerboseLog("step %d", 3)
		assert.Equal(t, "step 3\n", out.String())
	})
}

func TestCLIResponse_JSON(t *testing.T) {
	data, err := json.Marshal(CLIResponse{Status: "ok", Data: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":1}`, string(data))
}

func TestCLIError_JSON(t *testing.T) {
	data, err := json.Marshal(CLIError{Code: "TAPE_NOT_FOUND", Message: "tape 3 does not exist"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"TAPE_NOT_FOUND","message":"tape 3 does not exist"}`, string(data))
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", errors.New("boom"), ExitFailure},
		{"exit failure", NewExitError(ExitFailure, "machine halted"), ExitFailure},
		{"command error", WrapExitError(ExitCommandError, "bad flags", errors.New("x")), ExitCommandError},
		{"wrapped exit error", fmt.Errorf("outer: %w", NewExitError(ExitCommandError, "inner")), ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitError(t *testing.T) {
	inner := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "failed to open database", inner)
	assert.Equal(t, "failed to open database: disk full", err.Error())
	assert.ErrorIs(t, err, inner)

	assert.Equal(t, "plain", NewExitError(ExitFailure, "plain").Error())
}
