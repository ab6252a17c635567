// Package dispatch implements the C7 connection dispatcher: two accept
// loops (client-facing and replication-facing) that route the first frame
// of each connection to the right handler.
package dispatch

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/ssnode/internal/logger"
	"github.com/marmos91/ssnode/pkg/recovery"
	"github.com/marmos91/ssnode/pkg/replication"
	"github.com/marmos91/ssnode/pkg/wire"
)

// acceptPollInterval bounds how long Accept blocks before the loop rechecks
// the shutdown flag, per spec's 1-second accept timeout.
const acceptPollInterval = time.Second

// FileOpHandler processes the client/NS file-operation and control message
// ranges (C2S_*, N2S_*). Local file-op semantics are out of this
// component's scope; the dispatcher only routes the already-read header and
// hands off the live connection.
type FileOpHandler interface {
	Handle(ctx context.Context, conn net.Conn, hdr wire.Header)
}

// Dispatcher owns the two accept sockets and routes accepted connections to
// C5's inbound receiver, C6's recovery handler, or a FileOpHandler.
type Dispatcher struct {
	ClientListener *net.TCPListener
	ReplListener   *net.TCPListener

	Inbound       *replication.Inbound
	Recovery      *recovery.Coordinator
	FileOpHandler FileOpHandler

	shutdown atomic.Bool
	wg       sync.WaitGroup
}

// Start spawns the client-facing and replication-facing accept loops.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(2)
	go d.serveClient(ctx)
	go d.serveReplication(ctx)
}

// Stop signals both accept loops to exit and waits for them to return.
// It does not forcibly close connections already handed off to a worker.
func (d *Dispatcher) Stop() {
	d.shutdown.Store(true)
	d.wg.Wait()
}

func (d *Dispatcher) serveClient(ctx context.Context) {
	defer d.wg.Done()

	for !d.shutdown.Load() {
		if err := d.ClientListener.SetDeadline(time.Now().Add(acceptPollInterval)); err != nil {
			logger.ErrorCtx(ctx, "dispatch: failed to set client accept deadline", logger.Err(err))
			return
		}

		conn, err := d.ClientListener.Accept()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if d.shutdown.Load() {
				return
			}
			logger.WarnCtx(ctx, "dispatch: client accept error", logger.Err(err))
			continue
		}

		d.wg.Add(1)
		go func(c net.Conn) {
			defer d.wg.Done()
			d.handleClientConn(ctx, c)
		}(conn)
	}
}

// handleClientConn reads exactly one header and routes it. Write
// transactions run their own multi-message sub-protocol inside the handler;
// the dispatcher closes the socket once the handler returns either way.
func (d *Dispatcher) handleClientConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	hdr, err := wire.RecvHeader(conn)
	if err != nil {
		logger.DebugCtx(ctx, "dispatch: client connection closed before a header arrived", logger.Err(err))
		return
	}

	switch {
	case d.FileOpHandler != nil && isFileOpOrControlRange(hdr.Type):
		d.FileOpHandler.Handle(ctx, conn, hdr)
	default:
		logger.WarnCtx(ctx, "dispatch: unroutable message on client-facing connection",
			logger.KeyMsgType, hdr.Type.String())
	}
}

// serveReplication accepts replication-facing connections and handles them
// on the accept goroutine itself: inbound replication and recovery receipt
// deliberately serialize, since both mutate shared disk/metadata state for
// arbitrary filenames.
func (d *Dispatcher) serveReplication(ctx context.Context) {
	defer d.wg.Done()

	for !d.shutdown.Load() {
		if err := d.ReplListener.SetDeadline(time.Now().Add(acceptPollInterval)); err != nil {
			logger.ErrorCtx(ctx, "dispatch: failed to set replication accept deadline", logger.Err(err))
			return
		}

		conn, err := d.ReplListener.Accept()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if d.shutdown.Load() {
				return
			}
			logger.WarnCtx(ctx, "dispatch: replication accept error", logger.Err(err))
			continue
		}

		d.handleReplicationConn(ctx, conn)
	}
}

func (d *Dispatcher) handleReplicationConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	hdr, err := wire.RecvHeader(conn)
	if err != nil {
		logger.DebugCtx(ctx, "dispatch: replication connection closed before a header arrived", logger.Err(err))
		return
	}

	switch hdr.Type {
	case wire.S2SReplicateFile, wire.S2SDeleteFile:
		d.Inbound.HandleWithHeader(conn, hdr)
	case wire.S2SStartRecovery:
		if err := d.Recovery.HandleIncomingStartRecovery(ctx, conn, hdr); err != nil {
			logger.ErrorCtx(ctx, "dispatch: incoming recovery failed", logger.Err(err))
		}
	default:
		logger.WarnCtx(ctx, "dispatch: unexpected message on replication-facing connection",
			logger.KeyMsgType, hdr.Type.String())
	}
}

// isFileOpOrControlRange reports whether t falls in the client/NS
// file-operation and control-message range the spec assigns to the
// out-of-scope FileOpHandler: every message type except the peer-to-peer
// replication and recovery kinds C7 itself routes.
func isFileOpOrControlRange(t wire.MessageType) bool {
	switch t {
	case wire.S2SReplicateFile, wire.S2SDeleteFile, wire.S2SStartRecovery,
		wire.S2SFileList, wire.S2SAck, wire.S2SRecoveryComplete:
		return false
	default:
		return true
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
