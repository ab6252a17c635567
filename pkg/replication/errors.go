package replication

import "errors"

// ErrSkippedNoBackup is returned by an outbound sender when the node has no
// configured backup target.
var ErrSkippedNoBackup = errors.New("replication: skipped, no backup target configured")

// ErrSkippedIsBackup is returned by an outbound sender when the source
// file's C3 entry is itself a backup replica (prevents backup-of-backup
// cascades).
var ErrSkippedIsBackup = errors.New("replication: skipped, source is a backup entry")

// ErrMissingMetadata is returned when an outbound sender cannot find a C3
// entry for the filename it was asked to replicate. This is a fatal skip,
// not a retryable transport failure.
var ErrMissingMetadata = errors.New("replication: no metadata entry for filename")

// ErrUnexpectedAck is returned when a peer replies with something other
// than the expected ACK frame.
var ErrUnexpectedAck = errors.New("replication: peer did not send an ack")

// isSkip reports whether err represents an intentional, non-retryable skip
// rather than a transport failure eligible for the retry path.
func isSkip(err error) bool {
	return errors.Is(err, ErrSkippedNoBackup) ||
		errors.Is(err, ErrSkippedIsBackup) ||
		errors.Is(err, ErrMissingMetadata)
}
