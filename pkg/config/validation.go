package config

import "fmt"

// Validate checks field-level sanity that mapstructure/yaml decoding cannot
// enforce on its own (zero/negative durations, missing archival bucket).
func Validate(cfg *Config) error {
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", cfg.Logging.Format)
	}

	if cfg.Node.HeartbeatInterval <= 0 {
		return fmt.Errorf("node.heartbeat_interval must be positive")
	}
	if cfg.Node.CheckpointInterval <= 0 {
		return fmt.Errorf("node.checkpoint_interval must be positive")
	}
	if cfg.Node.ReplicationRetryCap < 0 {
		return fmt.Errorf("node.replication_retry_cap must not be negative")
	}
	if cfg.Recovery.TransferBufferSize <= 0 {
		return fmt.Errorf("recovery.transfer_buffer_size must be positive")
	}

	if cfg.Archival.Enabled && cfg.Archival.Bucket == "" {
		return fmt.Errorf("archival.bucket is required when archival.enabled is true")
	}

	return nil
}
