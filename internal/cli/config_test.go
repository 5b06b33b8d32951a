package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/turingloom/internal/machine"
	"github.com/roach88/turingloom/internal/runner"
)

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Dir)
	assert.Equal(t, filepath.Join(dir, "turingloom.db"), cfg.DB)
	assert.Equal(t, runner.DefaultSpeed, cfg.Speed)
	assert.Equal(t, DefaultMaxSteps, cfg.MaxSteps)
	assert.Equal(t, machine.DefaultInitialContent, cfg.InitialContent)
	assert.Empty(t, cfg.LogFile)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", `db: /var/lib/turingloom/runs.db
speed: fast
max_steps: 250
initial_content: "1011"
log_file: /tmp/turingloom.log
`)

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/turingloom/runs.db", cfg.DB)
	assert.Equal(t, runner.Fast, cfg.Speed)
	assert.Equal(t, 250, cfg.MaxSteps)
	assert.Equal(t, "1011", cfg.InitialContent)
	assert.Equal(t, "/tmp/turingloom.log", cfg.LogFile)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "speed: fast\nmax_steps: 250\n")
	t.Setenv("TURINGLOOM_SPEED", "very-fast")
	t.Setenv("TURINGLOOM_MAX_STEPS", "42")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, runner.VeryFast, cfg.Speed)
	assert.Equal(t, 42, cfg.MaxSteps)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown speed", "speed: warp\n", "config speed"},
		{"zero max steps", "max_steps: 0\n", "config max_steps"},
		{"negative max steps", "max_steps: -3\n", "config max_steps"},
		{"broken yaml", "speed: [fast\n", "read config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "config.yaml", tt.content)

			_, err := LoadConfig(dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolveConfigDir(t *testing.T) {
	t.Run("flag wins", func(t *testing.T) {
		t.Setenv("TURINGLOOM_CONFIG_DIR", "/from/env")
		dir, err := ResolveConfigDir("/from/flag")
		require.NoError(t, err)
		assert.Equal(t, "/from/flag", dir)
	})

	t.Run("env", func(t *testing.T) {
		t.Setenv("TURINGLOOM_CONFIG_DIR", "/from/env")
		dir, err := ResolveConfigDir("")
		require.NoError(t, err)
		assert.Equal(t, "/from/env", dir)
	})

	t.Run("user config dir", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("TURINGLOOM_CONFIG_DIR", "")
		t.Setenv("XDG_CONFIG_HOME", home)
		t.Setenv("HOME", home)
		dir, err := ResolveConfigDir("")
		require.NoError(t, err)
		assert.Equal(t, "turingloom", filepath.Base(dir))
	})
}
