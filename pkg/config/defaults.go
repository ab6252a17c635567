package config

import (
	"time"

	"github.com/marmos91/ssnode/internal/bytesize"
)

const (
	// DefaultHeartbeatInterval matches HEARTBEAT_INTERVAL from the wire spec.
	DefaultHeartbeatInterval = 10 * time.Second
	// DefaultCheckpointInterval is the periodic C3 save cadence.
	DefaultCheckpointInterval = 60 * time.Second
	// DefaultReplicationRetryCap bounds per-filename outbound retries.
	DefaultReplicationRetryCap = 5
	// DefaultTransferBufferSize is the chunk size for file byte streaming.
	DefaultTransferBufferSize = 4 * bytesize.KiB

	// MaxFilename bounds the length of a filename accepted by the node.
	MaxFilename = 255
	// MaxUsername bounds the length of an owner username.
	MaxUsername = 64
)

// DefaultConfig returns a Config populated entirely with built-in defaults.
// Node identity fields (ss_id, ip, ports, backup target) are NOT part of
// this struct: they come from CLI args and the NS registration handshake,
// never from a config file.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		Node: NodeConfig{
			HeartbeatInterval:   DefaultHeartbeatInterval,
			CheckpointInterval:  DefaultCheckpointInterval,
			ReplicationRetryCap: DefaultReplicationRetryCap,
			DataDir:             ".",
		},
		Recovery: RecoveryConfig{
			TransferBufferSize: bytesize.ByteSize(DefaultTransferBufferSize),
		},
		Archival: ArchivalConfig{
			Enabled: false,
		},
		HealthAPI: HealthAPIConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9190",
		},
	}
}
