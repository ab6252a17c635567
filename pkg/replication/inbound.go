package replication

import (
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/marmos91/ssnode/internal/logger"
	"github.com/marmos91/ssnode/pkg/filelock"
	"github.com/marmos91/ssnode/pkg/metadata"
	"github.com/marmos91/ssnode/pkg/wire"
)

// Inbound implements the C5 inbound receiver: handle_replication_receive.
// It processes exactly one request per accepted connection and is called
// from the accept thread itself (pkg/dispatch serializes inbound
// replication deliberately, since the receiver mutates shared disk/metadata
// state for arbitrary filenames).
type Inbound struct {
	Store    *metadata.Store
	Locks    *filelock.Map
	FilesDir string
	BufSize  int
}

// Handle reads one frame from conn and dispatches it. Unknown message types
// close the socket without a reply.
func (in *Inbound) Handle(conn net.Conn) {
	hdr, err := wire.RecvHeader(conn)
	if err != nil {
		logger.Warn("replication inbound: failed to read header", logger.Err(err))
		return
	}
	in.HandleWithHeader(conn, hdr)
}

// HandleWithHeader dispatches a frame whose header a caller (pkg/dispatch)
// has already read off conn. Unknown message types close the socket without
// a reply.
func (in *Inbound) HandleWithHeader(conn net.Conn, hdr wire.Header) {
	switch hdr.Type {
	case wire.S2SReplicateFile:
		in.handleReplicateFile(conn, hdr)
	case wire.S2SDeleteFile:
		in.handleDeleteFile(conn, hdr)
	default:
		logger.Warn("replication inbound: unexpected message type", logger.KeyMsgType, hdr.Type.String())
	}
}

func (in *Inbound) handleReplicateFile(conn net.Conn, hdr wire.Header) {
	payload, err := wire.RecvPayload(conn, hdr.PayloadLen)
	if err != nil {
		logger.Warn("replication inbound: failed to read REPLICATE_FILE payload", logger.Err(err))
		return
	}
	req, err := wire.DecodeReplicateFileHeader(payload)
	if err != nil {
		logger.Warn("replication inbound: malformed REPLICATE_FILE payload", logger.Err(err))
		return
	}

	filename := req.FilenameStr()
	lock := in.Locks.Get(filename)
	lock.Lock()
	defer lock.Unlock()

	if _, err := receiveFileBytes(conn, in.FilesDir, filename, req.FileSize, in.BufSize); err != nil {
		logger.Error("replication inbound: failed to receive file", logger.Filename(filename), logger.Err(err))
		return
	}

	now := time.Now().Unix()
	in.Store.Insert(metadata.FileMetadata{
		Filename:     filename,
		Owner:        req.OwnerStr(),
		FileSize:     req.FileSize,
		WordCount:    0,
		CharCount:    0,
		LastAccess:   now,
		LastModified: now,
		IsBackup:     true,
	})

	if err := wire.SendPeerAck(conn); err != nil {
		logger.Warn("replication inbound: failed to send ack", logger.Filename(filename), logger.Err(err))
	}
}

func (in *Inbound) handleDeleteFile(conn net.Conn, hdr wire.Header) {
	payload, err := wire.RecvPayload(conn, hdr.PayloadLen)
	if err != nil {
		logger.Warn("replication inbound: failed to read DELETE_FILE payload", logger.Err(err))
		return
	}
	req, err := wire.DecodeDeleteFileHeader(payload)
	if err != nil {
		logger.Warn("replication inbound: malformed DELETE_FILE payload", logger.Err(err))
		return
	}

	filename := req.FilenameStr()
	lock := in.Locks.Get(filename)
	lock.Lock()
	defer lock.Unlock()

	path := filepath.Join(in.FilesDir, filename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Error("replication inbound: failed to unlink", logger.Filename(filename), logger.Err(err))
		return
	}
	_ = in.Store.Remove(filename)

	if err := wire.SendPeerAck(conn); err != nil {
		logger.Warn("replication inbound: failed to send ack", logger.Filename(filename), logger.Err(err))
	}
}
