// Package config provides configuration management for procfake.
// It handles loading and validation of configuration files, environment variables,
// and command-line parameters.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Static error variables to satisfy err113 linter
var (
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidLogFormat   = errors.New("invalid log format")
	ErrInvalidLockTimeout = errors.New("lock timeout must be positive")
	ErrInvalidStdinBuffer = errors.New("stdin buffer must be positive")
	ErrEmptyTranscriptDir = errors.New("transcript directory must be set")
)

// Config represents the application configuration
type Config struct {
	Default *DefaultConfig `mapstructure:"default" yaml:"default" json:"default"`
}

// DefaultConfig contains default settings
type DefaultConfig struct {
	LogLevel      string        `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	LogFormat     string        `mapstructure:"log_format" yaml:"log_format" json:"log_format"`
	TranscriptDir string        `mapstructure:"transcript_dir" yaml:"transcript_dir" json:"transcript_dir"`
	LockFile      string        `mapstructure:"lock_file" yaml:"lock_file" json:"lock_file"`
	LockTimeout   time.Duration `mapstructure:"lock_timeout" yaml:"lock_timeout" json:"lock_timeout"`
	StdinBuffer   int           `mapstructure:"stdin_buffer" yaml:"stdin_buffer" json:"stdin_buffer"`
}

// Load loads configuration from file and environment
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		var configNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if config.Default == nil {
		config.Default = getDefaultConfig()
	}

	if err := expandPaths(&config); err != nil {
		return nil, fmt.Errorf("failed to expand paths: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("default.log_level", "info")
	viper.SetDefault("default.log_format", "text")
	viper.SetDefault("default.lock_timeout", "5s")
	viper.SetDefault("default.stdin_buffer", 16)

	homeDir, _ := os.UserHomeDir() //nolint:errcheck // Fallback to current dir if home unavailable
	viper.SetDefault("default.transcript_dir", filepath.Join(homeDir, ".procfake", "transcripts"))
	viper.SetDefault("default.lock_file", filepath.Join(homeDir, ".procfake", "procfake.lock"))
}

// Defaults returns the built-in configuration
func Defaults() *DefaultConfig {
	return getDefaultConfig()
}

// getDefaultConfig returns the default configuration
func getDefaultConfig() *DefaultConfig {
	homeDir, _ := os.UserHomeDir() //nolint:errcheck // Fallback to current dir if home unavailable

	return &DefaultConfig{
		LogLevel:      "info",
		LogFormat:     "text",
		TranscriptDir: filepath.Join(homeDir, ".procfake", "transcripts"),
		LockFile:      filepath.Join(homeDir, ".procfake", "procfake.lock"),
		LockTimeout:   5 * time.Second,
		StdinBuffer:   16,
	}
}

// expandPaths expands relative paths to absolute paths
func expandPaths(config *Config) error {
	if config.Default == nil {
		return nil
	}

	if config.Default.TranscriptDir != "" {
		expanded, err := expandPath(config.Default.TranscriptDir)
		if err != nil {
			return fmt.Errorf("failed to expand transcript directory: %w", err)
		}
		config.Default.TranscriptDir = expanded
	}

	if config.Default.LockFile != "" {
		expanded, err := expandPath(config.Default.LockFile)
		if err != nil {
			return fmt.Errorf("failed to expand lock file path: %w", err)
		}
		config.Default.LockFile = expanded
	}

	return nil
}

// expandPath expands ~ to home directory and resolves relative paths
func expandPath(path string) (string, error) {
	if path == "" {
		return path, nil
	}

	if path[:1] == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[1:])
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return abs, nil
}

// Save saves the configuration to a file
func (c *Config) Save(filename string) error {
	viper.Set("default", c.Default)

	if err := viper.WriteConfigAs(filename); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// TranscriptPath returns where a transcript with the given name is stored
func (c *Config) TranscriptPath(name string) string {
	if filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	return filepath.Join(c.Default.TranscriptDir, name)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Default == nil {
		return nil
	}

	switch strings.ToLower(c.Default.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Default.LogLevel)
	}

	switch strings.ToLower(c.Default.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Default.LogFormat)
	}

	if c.Default.LockTimeout <= 0 {
		return ErrInvalidLockTimeout
	}
	if c.Default.StdinBuffer <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidStdinBuffer, c.Default.StdinBuffer)
	}
	if c.Default.TranscriptDir == "" {
		return ErrEmptyTranscriptDir
	}

	return nil
}
