// Package config loads the settings of the utg962 command from a YAML file
// and environment variables and sets up the debug logger.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/womat/debug"
	"github.com/womat/utg962/pkg/session"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v2"
)

// Config is the complete configuration
type Config struct {
	Resource string        `yaml:"resource"`
	Timeout  time.Duration `yaml:"timeout"`
	Log      LogConfig     `yaml:"log"`
}

// LogConfig holds the debug logger settings
type LogConfig struct {
	Debug      bool   `yaml:"debug"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Resource: "",
		Timeout:  session.DefaultTimeout,
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load loads the configuration. An explicit file must exist, otherwise
// $UTG962_CONFIG or $HOME/.config/utg962/config.yaml is used if present.
// Environment variables override the file. The result is not validated,
// callers apply their own overrides and call Validate.
func Load(file string) (*Config, error) {
	cfg := Default()

	switch {
	case file != "":
		if err := loadFromFile(cfg, file); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %v", file, err)
		}
	case os.Getenv("UTG962_CONFIG") != "":
		file = os.Getenv("UTG962_CONFIG")
		if err := loadFromFile(cfg, file); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %v", file, err)
		}
	default:
		if home, err := os.UserHomeDir(); err == nil {
			file = filepath.Join(home, ".config", "utg962", "config.yaml")
			if err := loadFromFile(cfg, file); err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to load config from %s: %v", file, err)
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile merges a YAML file into cfg
func loadFromFile(cfg *Config, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides applies UTG962_RESOURCE, UTG962_TIMEOUT, UTG962_DEBUG and UTG962_LOG_FILE
func applyEnvOverrides(cfg *Config) error {
	if v, ok := os.LookupEnv("UTG962_RESOURCE"); ok {
		cfg.Resource = v
	}

	if v := os.Getenv("UTG962_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid UTG962_TIMEOUT %q: %v", v, err)
		}
		cfg.Timeout = d
	}

	if v := os.Getenv("UTG962_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid UTG962_DEBUG %q: %v", v, err)
		}
		cfg.Log.Debug = b
	}

	if v := os.Getenv("UTG962_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}

	return nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if _, err := session.ParseResource(c.Resource); err != nil {
		return err
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 {
		return errors.New("log limits must not be negative")
	}
	return nil
}

// Writer returns the destination of the debug log: a rotating file or stderr
func (c *Config) Writer() io.Writer {
	if c.Log.File == "" {
		return os.Stderr
	}

	return &lumberjack.Logger{
		Filename:   c.Log.File,
		MaxSize:    c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
	}
}

// SetupLogging enables the debug logger if requested
func (c *Config) SetupLogging() {
	if !c.Log.Debug {
		return
	}

	debug.SetDebug(c.Writer(), debug.Full)
	debug.DebugLog.Printf("configuration: %+v", *c)
}
