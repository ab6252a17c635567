// Package nscontrol implements C9: the persistent control connection to NS
// used for registration, heartbeat, and NS-driven recovery/backup control
// messages.
package nscontrol

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/marmos91/ssnode/internal/logger"
	"github.com/marmos91/ssnode/pkg/recovery"
	"github.com/marmos91/ssnode/pkg/replication"
	"github.com/marmos91/ssnode/pkg/wire"
)

// controlPollInterval bounds how long the control listener blocks on a read
// before rechecking the shutdown flag, per spec's 1-second receive timeout.
const controlPollInterval = time.Second

// FatalFunc is invoked when the heartbeat loop cannot reach NS. Per spec,
// heartbeat failure is fatal: the node exits so NS marks it dead. Wired to
// a real process exit by pkg/node; tests substitute a recording stub.
type FatalFunc func(err error)

// Client owns the single long-lived NS connection and its two worker
// loops.
type Client struct {
	Conn              net.Conn
	SSID              int32
	HeartbeatInterval time.Duration
	Recovery          *recovery.Coordinator
	Target            *replication.BackupTarget
	OnFatal           FatalFunc

	shutdown atomic.Bool
}

// Register performs the startup handshake: send S2N_REGISTER with this
// node's addresses, await N2S_REGISTER_ACK.
func (c *Client) Register(ip string, clientPort int32, replListenPort int32) (wire.RegisterAck, error) {
	req, err := wire.NewRegisterRequest(ip, clientPort, ip, replListenPort, 0)
	if err != nil {
		return wire.RegisterAck{}, err
	}
	if err := wire.SendFrame(c.Conn, wire.S2NRegister, req.Encode()); err != nil {
		return wire.RegisterAck{}, fmt.Errorf("nscontrol: send register: %w", err)
	}

	hdr, err := wire.RecvHeader(c.Conn)
	if err != nil {
		return wire.RegisterAck{}, fmt.Errorf("nscontrol: recv register ack header: %w", err)
	}
	if hdr.Type != wire.N2SRegisterAck {
		return wire.RegisterAck{}, fmt.Errorf("nscontrol: expected N2S_REGISTER_ACK, got %s", hdr.Type)
	}
	payload, err := wire.RecvPayload(c.Conn, hdr.PayloadLen)
	if err != nil {
		return wire.RegisterAck{}, fmt.Errorf("nscontrol: recv register ack payload: %w", err)
	}
	return wire.DecodeRegisterAck(payload)
}

// Start spawns the heartbeat and control-listener loops. Register must have
// already completed on the same connection.
func (c *Client) Start(ctx context.Context) {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 10 * time.Second
	}
	go c.heartbeatLoop(ctx)
	go c.controlListenLoop(ctx)
}

// Stop signals both loops to exit and closes the NS connection.
func (c *Client) Stop() {
	c.shutdown.Store(true)
	_ = c.Conn.Close()
}

func (c *Client) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(c.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if c.shutdown.Load() {
				return
			}
			if err := wire.SendFrame(c.Conn, wire.S2NHeartbeat, nil); err != nil {
				if c.shutdown.Load() {
					return
				}
				logger.ErrorCtx(ctx, "nscontrol: heartbeat failed, NS connection is considered lost", logger.Err(err))
				if c.OnFatal != nil {
					c.OnFatal(err)
				}
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) controlListenLoop(ctx context.Context) {
	for !c.shutdown.Load() {
		_ = c.Conn.SetReadDeadline(time.Now().Add(controlPollInterval))

		hdr, err := wire.RecvHeader(c.Conn)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if c.shutdown.Load() {
				return
			}
			logger.WarnCtx(ctx, "nscontrol: control connection read failed", logger.Err(err))
			return
		}

		c.dispatch(ctx, hdr)
	}
}

// dispatch handles one control frame. Per spec, no ACK is sent back to NS on
// this socket for any of these message kinds.
func (c *Client) dispatch(ctx context.Context, hdr wire.Header) {
	switch hdr.Type {
	case wire.N2SUpdateBackup:
		addr, err := c.recvPeerAddr(hdr)
		if err != nil {
			logger.WarnCtx(ctx, "nscontrol: malformed UPDATE_BACKUP", logger.Err(err))
			return
		}
		c.Target.Set(addr.IPStr(), int(addr.Port))
		logger.InfoCtx(ctx, "backup target updated", logger.RecoveryPhase("update_backup"))

	case wire.N2SReReplicateAll:
		addr, err := c.recvPeerAddr(hdr)
		if err != nil {
			logger.WarnCtx(ctx, "nscontrol: malformed RE_REPLICATE_ALL", logger.Err(err))
			return
		}
		if err := c.Recovery.ReReplicateAll(ctx, addr.IPStr(), int(addr.Port)); err != nil {
			logger.ErrorCtx(ctx, "nscontrol: re-replicate-all failed", logger.Err(err))
		}

	case wire.N2SSyncFromBackup:
		addr, err := c.recvPeerAddr(hdr)
		if err != nil {
			logger.WarnCtx(ctx, "nscontrol: malformed SYNC_FROM_BACKUP", logger.Err(err))
			return
		}
		if err := c.Recovery.SyncFromBackup(ctx, addr.IPStr(), int(addr.Port)); err != nil {
			logger.ErrorCtx(ctx, "nscontrol: sync-from-backup failed", logger.Err(err))
		}

	case wire.N2SSyncToPrimary:
		if hdr.PayloadLen > 0 {
			if _, err := wire.RecvPayload(c.Conn, hdr.PayloadLen); err != nil {
				logger.WarnCtx(ctx, "nscontrol: failed to drain SYNC_TO_PRIMARY payload", logger.Err(err))
				return
			}
		}
		c.Recovery.SyncToPrimary(ctx)

	default:
		logger.WarnCtx(ctx, "nscontrol: unexpected control message", logger.KeyMsgType, hdr.Type.String())
		if hdr.PayloadLen > 0 {
			_, _ = wire.RecvPayload(c.Conn, hdr.PayloadLen)
		}
	}
}

func (c *Client) recvPeerAddr(hdr wire.Header) (wire.PeerAddrHeader, error) {
	payload, err := wire.RecvPayload(c.Conn, hdr.PayloadLen)
	if err != nil {
		return wire.PeerAddrHeader{}, err
	}
	return wire.DecodePeerAddrHeader(payload)
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
