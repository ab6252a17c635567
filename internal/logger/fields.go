package logger

import (
	"encoding/hex"
	"log/slog"
)

// Standard field keys for structured logging across the storage server.
// Use these keys consistently so log lines can be aggregated and queried.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Node identity
	KeySSID = "ss_id"

	// File operations
	KeyFilename = "filename"
	KeyHandle   = "handle"
	KeyOwner    = "owner"
	KeySize     = "size"
	KeyIsBackup = "is_backup"

	// Connections & peers
	KeyRemoteAddr = "remote_addr"
	KeyPeerIP     = "peer_ip"
	KeyPeerPort   = "peer_port"
	KeyConnKind   = "conn_kind" // client, ns, peer

	// Replication
	KeyOperation  = "operation" // UPDATE, DELETE
	KeyRetryCount = "retry_count"
	KeyQueueDepth = "queue_depth"

	// Recovery
	KeyRecoveryPhase = "recovery_phase"
	KeyFileCount     = "file_count"

	// Message framing
	KeyMsgType    = "msg_type"
	KeyPayloadLen = "payload_len"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code"
)

// Handle formats an opaque handle/identifier as a hex string attribute.
func Handle(h []byte) slog.Attr {
	return slog.String(KeyHandle, hex.EncodeToString(h))
}

// Filename returns a filename attribute.
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// Owner returns an owner-username attribute.
func Owner(name string) slog.Attr {
	return slog.String(KeyOwner, name)
}

// SSID returns a storage-server-id attribute.
func SSID(id int32) slog.Attr {
	return slog.Int64(KeySSID, int64(id))
}

// Operation returns a replication/recovery operation-kind attribute.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// DurationMs returns a duration-in-milliseconds attribute.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err formats an error as an attribute. Returns an empty Attr for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a numeric error-code attribute.
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}

// RetryCount returns a retry-count attribute.
func RetryCount(n int) slog.Attr {
	return slog.Int(KeyRetryCount, n)
}

// QueueDepth returns a replication-queue-depth attribute.
func QueueDepth(n int) slog.Attr {
	return slog.Int(KeyQueueDepth, n)
}

// RecoveryPhase returns a recovery-phase attribute.
func RecoveryPhase(phase string) slog.Attr {
	return slog.String(KeyRecoveryPhase, phase)
}

// FileCount returns a file-count attribute.
func FileCount(n int) slog.Attr {
	return slog.Int(KeyFileCount, n)
}
