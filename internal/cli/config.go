package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/roach88/turingloom/internal/machine"
	"github.com/roach88/turingloom/internal/runner"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	// envPrefix prefixes every environment override, e.g. TURINGLOOM_DB.
	envPrefix = "TURINGLOOM"

	// envConfigDir selects the config directory when --config-dir is unset.
	envConfigDir = "TURINGLOOM_CONFIG_DIR"

	dbFileName = "turingloom.db"

	// Config keys.
	cfgKeyDB             = "db"
	cfgKeySpeed          = "speed"
	cfgKeyMaxSteps       = "max_steps"
	cfgKeyInitialContent = "initial_content"
	cfgKeyLogFile        = "log_file"

	// DefaultMaxSteps bounds a run that never halts.
	DefaultMaxSteps = 10000
)

// Config is the resolved CLI configuration.
type Config struct {
	Dir            string
	DB             string
	Speed          runner.Speed
	MaxSteps       int
	InitialContent string
	LogFile        string
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig(dir string) *Config {
	return &Config{
		Dir:            dir,
		DB:             filepath.Join(dir, dbFileName),
		Speed:          runner.DefaultSpeed,
		MaxSteps:       DefaultMaxSteps,
		InitialContent: machine.DefaultInitialContent,
	}
}

// ResolveConfigDir returns the configuration directory:
// --config-dir flag > TURINGLOOM_CONFIG_DIR > <user config dir>/turingloom.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv(envConfigDir); env != "" {
		return env, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config dir: %w", err)
	}
	return filepath.Join(base, "turingloom"), nil
}

// LoadConfig reads config.yaml from configDir using Viper, with
// TURINGLOOM_* environment overrides. A missing config.yaml is not an error.
func LoadConfig(configDir string) (*Config, error) {
	def := DefaultConfig(configDir)

	v := viper.New()
	v.SetDefault(cfgKeyDB, def.DB)
	v.SetDefault(cfgKeySpeed, string(def.Speed))
	v.SetDefault(cfgKeyMaxSteps, def.MaxSteps)
	v.SetDefault(cfgKeyInitialContent, def.InitialContent)
	v.SetDefault(cfgKeyLogFile, "")
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	speed, err := runner.ParseSpeed(v.GetString(cfgKeySpeed))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", cfgKeySpeed, err)
	}

	maxSteps := v.GetInt(cfgKeyMaxSteps)
	if maxSteps <= 0 {
		return nil, fmt.Errorf("config %s: must be positive, got %d", cfgKeyMaxSteps, maxSteps)
	}

	return &Config{
		Dir:            configDir,
		DB:             v.GetString(cfgKeyDB),
		Speed:          speed,
		MaxSteps:       maxSteps,
		InitialContent: v.GetString(cfgKeyInitialContent),
		LogFile:        v.GetString(cfgKeyLogFile),
	}, nil
}
