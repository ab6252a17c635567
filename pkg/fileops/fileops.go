// Package fileops is the dispatcher's default FileOpHandler. Per spec, the
// byte-level semantics of client read/write/undo/checkpoint operations and
// NS-originated create/delete/info requests are external collaborators, out
// of this core's scope -- the dispatcher only hands off the already-read
// header and the live connection. This package is the hand-off point: it
// logs the request and replies with a generic failure so a real
// implementation can be substituted without touching pkg/dispatch.
package fileops

import (
	"context"
	"net"

	"github.com/marmos91/ssnode/internal/logger"
	"github.com/marmos91/ssnode/pkg/wire"
)

// Handler implements dispatch.FileOpHandler. It is a thin placeholder: the
// actual read/write/undo/checkpoint/NS-admin byte-level logic lives outside
// this core, per spec's explicit scope boundary.
type Handler struct {
	SSID int32
}

// Handle logs the request and replies S2C_GENERIC_FAIL for client message
// kinds, or simply closes for NS-originated ones (NS does not expect a
// reply on this socket for those).
func (h *Handler) Handle(ctx context.Context, conn net.Conn, hdr wire.Header) {
	defer conn.Close()

	if hdr.PayloadLen > 0 {
		if _, err := wire.RecvPayload(conn, hdr.PayloadLen); err != nil {
			logger.WarnCtx(ctx, "fileops: failed to drain payload",
				logger.Operation(hdr.Type.String()), logger.Err(err))
			return
		}
	}

	logger.InfoCtx(ctx, "fileops: request received, no local handler wired",
		logger.Operation(hdr.Type.String()), logger.SSID(h.SSID))

	if isClientKind(hdr.Type) {
		if err := wire.SendFail(conn); err != nil {
			logger.WarnCtx(ctx, "fileops: failed to send reply", logger.Err(err))
		}
	}
}

func isClientKind(t wire.MessageType) bool {
	switch t {
	case wire.C2SRead, wire.C2SStream, wire.C2SWriteStart, wire.C2SWriteData,
		wire.C2SWriteEnd, wire.C2SUndo, wire.C2SCheckpointOp:
		return true
	default:
		return false
	}
}
