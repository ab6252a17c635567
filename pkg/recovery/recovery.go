// Package recovery implements the C6 recovery coordinator: the four-handler
// state machine NS drives to restore a primary or backup's files after a
// restart. Concurrency is per-file locks only; no global "is syncing" flag
// gates client requests during a sweep, per spec's explicit prohibition.
package recovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/marmos91/ssnode/internal/logger"
	"github.com/marmos91/ssnode/pkg/filelock"
	"github.com/marmos91/ssnode/pkg/metadata"
	"github.com/marmos91/ssnode/pkg/metrics"
	"github.com/marmos91/ssnode/pkg/replication"
	"github.com/marmos91/ssnode/pkg/wire"
)

const dialTimeout = 5 * time.Second

// Coordinator owns the state needed to both initiate and receive a recovery
// sweep. It shares its Store/Locks/FilesDir with the rest of the node
// (pkg/node wires the same instances into replication.Outbound/Inbound).
type Coordinator struct {
	SSID     int32
	Store    *metadata.Store
	Locks    *filelock.Map
	FilesDir string
	Target   *replication.BackupTarget
	Queue    *replication.Queue
	BufSize  int
}

// SyncFromBackup implements the SYNC_FROM_BACKUP handler: we are the
// backup, and NS asks us to push our full file set to a revived primary at
// (targetIP, targetPort).
func (c *Coordinator) SyncFromBackup(ctx context.Context, targetIP string, targetPort int) error {
	metrics.SetRecoveryInProgress(true)
	defer metrics.SetRecoveryInProgress(false)

	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", targetIP, targetPort), dialTimeout)
	if err != nil {
		return fmt.Errorf("recovery: dial recovery target %s:%d: %w", targetIP, targetPort, err)
	}
	defer conn.Close()

	startHdr := wire.NewStartRecoveryHeader(c.SSID, true)
	if err := wire.SendFrame(conn, wire.S2SStartRecovery, startHdr.Encode()); err != nil {
		return err
	}

	entries, err := c.listFilesWithMetadata(ctx)
	if err != nil {
		return err
	}

	if err := c.sendFileList(conn, entries); err != nil {
		return err
	}

	for _, rec := range entries {
		if err := c.sendOneFile(conn, rec); err != nil {
			return fmt.Errorf("recovery: sending %s: %w", rec.Filename, err)
		}
	}

	if err := wire.SendFrame(conn, wire.S2SRecoveryComplete, nil); err != nil {
		return err
	}

	logger.InfoCtx(ctx, "recovery push complete", logger.FileCount(len(entries)),
		logger.RecoveryPhase("sync_from_backup"))
	return nil
}

// SyncToPrimary implements the SYNC_TO_PRIMARY handler: we are the revived
// primary. There is no outbound action here -- we simply wait for an
// inbound START_RECOVERY on our replication-listen port, handled by
// HandleIncomingStartRecovery via pkg/dispatch.
func (c *Coordinator) SyncToPrimary(ctx context.Context) {
	logger.InfoCtx(ctx, "awaiting inbound recovery push", logger.RecoveryPhase("sync_to_primary"))
}

// ReReplicateAll implements the RE_REPLICATE_ALL handler: we are primary and
// a new backup was assigned. It updates the backup target and reschedules
// every non-backup local file through the normal replication pipeline.
func (c *Coordinator) ReReplicateAll(ctx context.Context, newBackupIP string, newBackupPort int) error {
	c.Target.Set(newBackupIP, newBackupPort)

	entries, err := os.ReadDir(c.FilesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("recovery: read %s: %w", c.FilesDir, err)
	}

	scheduled := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		rec, ok := c.Store.Get(e.Name())
		if !ok || rec.IsBackup {
			continue
		}
		c.Queue.ScheduleUpdate(e.Name())
		scheduled++
	}

	logger.InfoCtx(ctx, "re-replication scheduled", logger.FileCount(scheduled),
		logger.RecoveryPhase("re_replicate_all"))
	return nil
}

// HandleIncomingStartRecovery implements the receiving side of recovery: we
// are either primary or backup being refreshed. It clears our existing
// files/metadata, then receives the pushed file list and file bytes.
func (c *Coordinator) HandleIncomingStartRecovery(ctx context.Context, conn net.Conn, hdr wire.Header) error {
	metrics.SetRecoveryInProgress(true)
	defer metrics.SetRecoveryInProgress(false)

	payload, err := wire.RecvPayload(conn, hdr.PayloadLen)
	if err != nil {
		return err
	}
	start, err := wire.DecodeStartRecoveryHeader(payload)
	if err != nil {
		return err
	}

	if err := c.clearExistingFiles(ctx); err != nil {
		return err
	}

	listHdr, err := wire.RecvHeader(conn)
	if err != nil {
		return err
	}
	if listHdr.Type != wire.S2SFileList {
		return fmt.Errorf("recovery: expected S2S_FILE_LIST, got %s", listHdr.Type)
	}
	listPayload, err := wire.RecvPayload(conn, listHdr.PayloadLen)
	if err != nil {
		return err
	}
	if len(listPayload) < wire.FileListHeaderSize {
		return fmt.Errorf("recovery: short FILE_LIST payload")
	}
	flHdr, err := wire.DecodeFileListHeader(listPayload[:wire.FileListHeaderSize])
	if err != nil {
		return err
	}

	records := make([]wire.FileMetadataWire, 0, flHdr.Count)
	off := wire.FileListHeaderSize
	for i := uint32(0); i < flHdr.Count; i++ {
		if off+wire.FileMetadataWireSize > len(listPayload) {
			return fmt.Errorf("recovery: FILE_LIST truncated at record %d", i)
		}
		rec, err := wire.DecodeFileMetadataWire(listPayload[off : off+wire.FileMetadataWireSize])
		if err != nil {
			return err
		}
		records = append(records, rec)
		off += wire.FileMetadataWireSize
	}

	received := 0
	for i := uint32(0); i < flHdr.Count; i++ {
		fileHdr, err := wire.RecvHeader(conn)
		if err != nil {
			return fmt.Errorf("recovery: aborted after %d/%d files: %w", received, flHdr.Count, err)
		}
		if fileHdr.Type != wire.S2SReplicateFile {
			return fmt.Errorf("recovery: expected S2S_REPLICATE_FILE, got %s", fileHdr.Type)
		}
		if err := c.receiveOneFile(conn, fileHdr, records[i], !start.IsPrimary()); err != nil {
			return fmt.Errorf("recovery: aborted after %d/%d files: %w", received, flHdr.Count, err)
		}
		received++
	}

	completeHdr, err := wire.RecvHeader(conn)
	if err != nil || completeHdr.Type != wire.S2SRecoveryComplete {
		logger.WarnCtx(ctx, "recovery: missing RECOVERY_COMPLETE frame", logger.FileCount(received))
	}

	logger.InfoCtx(ctx, "recovery receive complete", logger.FileCount(received),
		logger.RecoveryPhase("incoming_start_recovery"))
	return nil
}

func (c *Coordinator) clearExistingFiles(ctx context.Context) error {
	entries, err := os.ReadDir(c.FilesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("recovery: read %s: %w", c.FilesDir, err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		lock := c.Locks.Get(name)
		lock.Lock()
		if err := os.Remove(filepath.Join(c.FilesDir, name)); err != nil && !os.IsNotExist(err) {
			lock.Unlock()
			return fmt.Errorf("recovery: unlink %s: %w", name, err)
		}
		_ = c.Store.Remove(name)
		lock.Unlock()
	}

	logger.InfoCtx(ctx, "cleared existing files before recovery receive",
		logger.FileCount(len(entries)), logger.RecoveryPhase("clear"))
	return nil
}

func (c *Coordinator) receiveOneFile(conn net.Conn, hdr wire.Header, meta wire.FileMetadataWire, isBackup bool) error {
	payload, err := wire.RecvPayload(conn, hdr.PayloadLen)
	if err != nil {
		return err
	}
	req, err := wire.DecodeReplicateFileHeader(payload)
	if err != nil {
		return err
	}

	filename := req.FilenameStr()
	lock := c.Locks.Get(filename)
	lock.Lock()
	defer lock.Unlock()

	if err := c.receiveFileBytesTo(conn, filename, req.FileSize); err != nil {
		return err
	}

	c.Store.Insert(metadata.FileMetadata{
		Filename:     filename,
		Owner:        req.OwnerStr(),
		FileSize:     req.FileSize,
		WordCount:    meta.WordCount,
		CharCount:    meta.CharCount,
		LastAccess:   meta.LastAccess,
		LastModified: meta.LastModified,
		IsBackup:     isBackup,
	})

	return wire.SendPeerAck(conn)
}

func (c *Coordinator) sendFileList(conn net.Conn, entries []metadata.FileMetadata) error {
	payload := make([]byte, 0, wire.FileListHeaderSize+len(entries)*wire.FileMetadataWireSize)
	hdr := wire.FileListHeader{Count: uint32(len(entries))}
	payload = append(payload, hdr.Encode()...)

	for _, rec := range entries {
		w, err := wire.NewFileMetadataWire(rec.Filename, rec.Owner, rec.FileSize, rec.WordCount,
			rec.CharCount, rec.LastModified, rec.LastAccess)
		if err != nil {
			return err
		}
		payload = append(payload, w.Encode()...)
	}

	return wire.SendFrame(conn, wire.S2SFileList, payload)
}

func (c *Coordinator) sendOneFile(conn net.Conn, rec metadata.FileMetadata) error {
	lock := c.Locks.Get(rec.Filename)
	lock.RLock()
	defer lock.RUnlock()

	path := filepath.Join(c.FilesDir, rec.Filename)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	hdr, err := wire.NewReplicateFileHeader(rec.Filename, rec.Owner, uint64(stat.Size()))
	if err != nil {
		return err
	}
	if err := wire.SendFrame(conn, wire.S2SReplicateFile, hdr.Encode()); err != nil {
		return err
	}

	buf := make([]byte, bufSizeOr(c.BufSize))
	remaining := stat.Size()
	for remaining > 0 {
		n, err := f.Read(buf)
		if n > 0 {
			if werr := writeAll(conn, buf[:n]); werr != nil {
				return werr
			}
			remaining -= int64(n)
		}
		if err != nil {
			break
		}
	}

	ackHdr, err := wire.RecvHeader(conn)
	if err != nil {
		return err
	}
	if ackHdr.Type != wire.S2SAck {
		return fmt.Errorf("expected S2S_ACK, got %s", ackHdr.Type)
	}
	return nil
}

func (c *Coordinator) receiveFileBytesTo(conn net.Conn, filename string, size uint64) error {
	if err := os.MkdirAll(c.FilesDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(c.FilesDir, filename)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, bufSizeOr(c.BufSize))
	remaining := size
	for remaining > 0 {
		chunk := uint64(len(buf))
		if remaining < chunk {
			chunk = remaining
		}
		n, err := readAll(conn, buf[:chunk])
		if err != nil {
			return err
		}
		if _, err := f.Write(buf[:n]); err != nil {
			return err
		}
		remaining -= uint64(n)
	}
	return nil
}

func (c *Coordinator) listFilesWithMetadata(ctx context.Context) ([]metadata.FileMetadata, error) {
	entries, err := os.ReadDir(c.FilesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("recovery: read %s: %w", c.FilesDir, err)
	}

	var out []metadata.FileMetadata
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		rec, ok := c.Store.Get(e.Name())
		if !ok {
			logger.WarnCtx(ctx, "recovery: file on disk has no metadata entry, skipping",
				logger.Filename(e.Name()))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func bufSizeOr(n int) int {
	if n <= 0 {
		return replication.DefaultTransferBufferSize
	}
	return n
}

func writeAll(conn net.Conn, buf []byte) error {
	for len(buf) > 0 {
		n, err := conn.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

func readAll(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
