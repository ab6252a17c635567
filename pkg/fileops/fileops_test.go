package fileops

import (
	"net"
	"testing"

	"github.com/marmos91/ssnode/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_ClientKind_RepliesGenericFail(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	h := &Handler{SSID: 1}
	done := make(chan struct{})
	go func() {
		h.Handle(t.Context(), server, wire.Header{Type: wire.C2SRead, PayloadLen: 0})
		close(done)
	}()

	hdr, err := wire.RecvHeader(client)
	require.NoError(t, err)
	assert.Equal(t, wire.S2CGenericFail, hdr.Type)
	<-done
}

func TestHandle_NonClientKind_NoReply(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	h := &Handler{SSID: 1}
	done := make(chan struct{})
	go func() {
		h.Handle(t.Context(), server, wire.Header{Type: wire.N2SGetInfo, PayloadLen: 0})
		close(done)
	}()

	<-done
	// server closed its end; further reads on client should fail.
	buf := make([]byte, 1)
	_, err := client.Read(buf)
	assert.Error(t, err)
}
