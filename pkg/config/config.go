// Package config loads node-local configuration for an SS node from a YAML
// file, environment variables, and built-in defaults, in that precedence
// order (env overrides file overrides defaults).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/ssnode/internal/bytesize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the full node-local configuration. Most fields have sane
// defaults and a config file is optional; CLI positional args
// (ns_ip/ns_port/my_ip/my_client_port/my_repl_port) always take precedence
// over whatever a config file says about node identity.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Node      NodeConfig      `mapstructure:"node" yaml:"node"`
	Recovery  RecoveryConfig  `mapstructure:"recovery" yaml:"recovery"`
	Archival  ArchivalConfig  `mapstructure:"archival" yaml:"archival"`
	HealthAPI HealthAPIConfig `mapstructure:"health_api" yaml:"health_api"`
}

// LoggingConfig controls internal/logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // DEBUG, INFO, WARN, ERROR
	Format string `mapstructure:"format" yaml:"format"` // text, json
	Output string `mapstructure:"output" yaml:"output"` // stdout, stderr, or file path
}

// NodeConfig holds the tunables governing C4/C8/C9 timing.
type NodeConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	CheckpointInterval time.Duration `mapstructure:"checkpoint_interval" yaml:"checkpoint_interval"`
	ReplicationRetryCap int          `mapstructure:"replication_retry_cap" yaml:"replication_retry_cap"`
	DataDir             string       `mapstructure:"data_dir" yaml:"data_dir"`
}

// RecoveryConfig tunes the recovery coordinator (C6).
type RecoveryConfig struct {
	// TransferBufferSize is the chunk size used when streaming file bytes
	// during replication and recovery transfers. Accepts human-readable
	// forms ("4Ki", "1Mi") as well as plain byte counts.
	TransferBufferSize bytesize.ByteSize `mapstructure:"transfer_buffer_size" yaml:"transfer_buffer_size"`
}

// ArchivalConfig is a SPEC_FULL supplement: optional off-node archival of
// checkpoint snapshots to S3-compatible object storage, independent of the
// primary/backup replication path.
type ArchivalConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Bucket   string `mapstructure:"bucket" yaml:"bucket"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
	Region   string `mapstructure:"region" yaml:"region"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// HealthAPIConfig is a SPEC_FULL supplement: an ambient HTTP surface for
// liveness/readiness probes and Prometheus scraping, separate from the
// client/NS/peer wire protocol.
type HealthAPIConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SSNODE_*)
//  2. Configuration file
//  3. Default values
//
// Environment variables override only keys that the configuration file
// sets. When no configuration file is found, Load returns DefaultConfig()
// and environment variables are not read.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if !found {
		return cfg, nil
	}

	if err := v.Unmarshal(cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration, returning a friendly error if an explicitly
// named config path does not exist. Unlike Load, it never silently falls
// back to defaults when the caller named a specific file.
func MustLoad(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the configuration to path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures environment variable and config file search behavior.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("SSNODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	v.AddConfigPath(".")
	v.SetConfigName("ssnode")
	v.SetConfigType("yaml")
}

// readConfigFile reads the config file if present. A missing file is not an
// error: Load then returns the built-in defaults unchanged, without
// consulting environment variables.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks composes the mapstructure decode hooks needed for the
// non-primitive field types (durations, byte sizes) used in Config.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)
}
