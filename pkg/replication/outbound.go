package replication

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
	"github.com/marmos91/ssnode/pkg/wire"
)

// dialTimeout bounds how long an outbound sender waits to connect to the
// backup peer before treating the attempt as a transport failure eligible
// for retry.
const dialTimeout = 5 * time.Second

// Outbound implements the C5 outbound UPDATE/DELETE senders. It satisfies
// the Sender interface consumed by Queue.
type Outbound struct {
	Store    *metadata.Store
	Locks    *filelock.Map
	FilesDir string
	Target   *BackupTarget
}

var _ Sender = (*Outbound)(nil)

// SendUpdate guards on a configured backup target and a non-backup C3
// entry, then streams the file to the backup peer as a REPLICATE_FILE
// frame, awaiting an ACK.
func (o *Outbound) SendUpdate(ctx context.Context, filename string) error {
	ip, port, ok := o.Target.Get()
	if !ok {
		return ErrSkippedNoBackup
	}

	rec, found := o.Store.Get(filename)
	if !found {
		return fmt.Errorf("%w: %s", ErrMissingMetadata, filename)
	}
	if rec.IsBackup {
		return ErrSkippedIsBackup
	}

	lock := o.Locks.Get(filename)
	lock.RLock()
	defer lock.RUnlock()

	path := filepath.Join(o.FilesDir, filename)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("replication: open %s: %w", path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("replication: stat %s: %w", path, err)
	}

	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", ip, port), dialTimeout)
	if err != nil {
		return fmt.Errorf("replication: dial backup %s:%d: %w", ip, port, err)
	}
	defer conn.Close()

	hdr, err := wire.NewReplicateFileHeader(filename, rec.Owner, uint64(stat.Size()))
	if err != nil {
		return err
	}
	if err := wire.SendFrame(conn, wire.S2SReplicateFile, hdr.Encode()); err != nil {
		return err
	}
	if err := sendFileBytes(conn, f, stat.Size()); err != nil {
		return err
	}

	if err := expectAck(conn); err != nil {
		return err
	}

	logger.InfoCtx(ctx, "replicated file to backup", logger.Filename(filename),
		logger.Operation(Update.String()))
	return nil
}

// SendDelete guards on a configured backup target, then sends a DELETE_FILE
// frame to the backup peer, awaiting an ACK.
func (o *Outbound) SendDelete(ctx context.Context, filename string) error {
	ip, port, ok := o.Target.Get()
	if !ok {
		return ErrSkippedNoBackup
	}

	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", ip, port), dialTimeout)
	if err != nil {
		return fmt.Errorf("replication: dial backup %s:%d: %w", ip, port, err)
	}
	defer conn.Close()

	hdr, err := wire.NewDeleteFileHeader(filename)
	if err != nil {
		return err
	}
	if err := wire.SendFrame(conn, wire.S2SDeleteFile, hdr.Encode()); err != nil {
		return err
	}

	if err := expectAck(conn); err != nil {
		return err
	}

	logger.InfoCtx(ctx, "replicated delete to backup", logger.Filename(filename),
		logger.Operation(Delete.String()))
	return nil
}
