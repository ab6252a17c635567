package node

import (
	"fmt"
	"net"
	"testing"

	"github.com/marmos91/ssnode/pkg/config"
	"github.com/marmos91/ssnode/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNS accepts exactly one connection, replies to S2N_REGISTER with a
// fixed ack, then drains heartbeats until the test closes the connection.
func fakeNS(t *testing.T, ssID int32) (addr string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		hdr, err := wire.RecvHeader(conn)
		if err != nil || hdr.Type != wire.S2NRegister {
			return
		}
		if _, err := wire.RecvPayload(conn, hdr.PayloadLen); err != nil {
			return
		}

		ack, err := wire.NewRegisterAck(ssID, 0, "", 0, false)
		if err != nil {
			return
		}
		_ = wire.SendFrame(conn, wire.N2SRegisterAck, ack.Encode())

		for {
			if _, err := wire.RecvHeader(conn); err != nil {
				return
			}
		}
	}()

	return ln.Addr().String()
}

func TestNode_StartRegistersAndLaunchesSubsystems(t *testing.T) {
	host, port := splitHostPort(t, fakeNS(t, 42))

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Node.DataDir = dir

	clientPort := freePort(t)
	replPort := freePort(t)

	n := New(cfg, Identity{
		NSHost:         host,
		NSPort:         port,
		IP:             "127.0.0.1",
		ClientPort:     clientPort,
		ReplListenPort: replPort,
	})

	require.NoError(t, n.Start(t.Context()))
	assert.Equal(t, int32(42), n.SSID)
	assert.NotNil(t, n.Metadata)
	assert.NotNil(t, n.Dispatcher)

	require.NoError(t, n.Shutdown(t.Context()))
}

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	var port int
	_, err = fmt.Sscan(portStr, &port)
	require.NoError(t, err)
	return host, port
}

func freePort(t *testing.T) int32 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	var port int
	_, err = fmt.Sscan(portStr, &port)
	require.NoError(t, err)
	return int32(port)
}
