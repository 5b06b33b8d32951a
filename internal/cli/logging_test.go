package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger, closeLog, err := NewLogger(&buf, false, "")
	require.NoError(t, err)
	defer closeLog()

	logger.Debug("hidden")
	logger.Info("shown", "steps", 3)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "steps=3")

	buf.Reset()
	verbose, closeVerbose, err := NewLogger(&buf, true, "")
	require.NoError(t, err)
	defer closeVerbose()

	verbose.Debug("now shown")
	assert.Contains(t, buf.String(), "now shown")
}

func TestNewLogger_File(t *testing.T) {
	var buf bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "logs", "turingloom.log")

	logger, closeLog, err := NewLogger(&buf, false, logFile)
	require.NoError(t, err)

	logger.Debug("step", "seq", 1)
	logger.Info("run halted", "state", "halt")
	require.NoError(t, closeLog())

	// The debug record only reaches the file.
	assert.NotContains(t, buf.String(), "msg=step")
	assert.Contains(t, buf.String(), "run halted")

	f, err := os.Open(logFile)
	require.NoError(t, err)
	defer f.Close()

	var records []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, sc.Err())
	require.Len(t, records, 2)
	assert.Equal(t, "step", records[0]["msg"])
	assert.Equal(t, "DEBUG", records[0]["level"])
	assert.Equal(t, "halt", records[1]["state"])
}

func TestNewLogger_BadFile(t *testing.T) {
	// A regular file where the log directory should be.
	parent := writeFile(t, t.TempDir(), "blocker", "x")
	_, _, err := NewLogger(&bytes.Buffer{}, false, filepath.Join(parent, "turingloom.log"))
	require.Error(t, err)
}
