package wire

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendFrame_RecvHeaderPayload_RoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	hdr, err := NewReplicateFileHeader("a.txt", "alice", 5)
	require.NoError(t, err)
	payload := hdr.Encode()

	done := make(chan error, 1)
	go func() {
		done <- SendFrame(client, S2SReplicateFile, payload)
	}()

	gotHdr, err := RecvHeader(server)
	require.NoError(t, err)
	assert.Equal(t, S2SReplicateFile, gotHdr.Type)
	assert.Equal(t, uint32(len(payload)), gotHdr.PayloadLen)

	gotPayload, err := RecvPayload(server, gotHdr.PayloadLen)
	require.NoError(t, err)
	assert.Equal(t, payload, gotPayload)

	require.NoError(t, <-done)

	decoded, err := DecodeReplicateFileHeader(gotPayload)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", decoded.FilenameStr())
	assert.Equal(t, "alice", decoded.OwnerStr())
	assert.Equal(t, uint64(5), decoded.FileSize)
}

func TestRecvHeader_PeerClosed(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	require.NoError(t, client.Close())

	_, err := RecvHeader(server)
	assert.ErrorIs(t, err, ErrPeerClosed)
}

func TestRecvPayload_ZeroLength(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		_ = SendFrame(client, S2SAck, nil)
	}()

	hdr, err := RecvHeader(server)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), hdr.PayloadLen)

	payload, err := RecvPayload(server, 0)
	require.NoError(t, err)
	assert.Empty(t, payload)
}

func TestFileMetadataWire_EncodeDecode(t *testing.T) {
	m, err := NewFileMetadataWire("report.txt", "bob", 1024, 10, 100, 111, 222)
	require.NoError(t, err)

	decoded, err := DecodeFileMetadataWire(m.Encode())
	require.NoError(t, err)
	assert.Equal(t, "report.txt", decoded.FilenameStr())
	assert.Equal(t, "bob", decoded.OwnerStr())
	assert.Equal(t, uint64(1024), decoded.FileSize)
	assert.Equal(t, uint64(10), decoded.WordCount)
	assert.Equal(t, uint64(100), decoded.CharCount)
	assert.Equal(t, int64(111), decoded.LastModified)
	assert.Equal(t, int64(222), decoded.LastAccess)
}

func TestRegisterRequestAck_EncodeDecode(t *testing.T) {
	req, err := NewRegisterRequest("127.0.0.1", 9101, "127.0.0.1", 9102, 0)
	require.NoError(t, err)
	decodedReq, err := DecodeRegisterRequest(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", decodedReq.IPStr())
	assert.Equal(t, int32(9101), decodedReq.ClientPort)

	ack, err := NewRegisterAck(1, -1, "", 0, false)
	require.NoError(t, err)
	decodedAck, err := DecodeRegisterAck(ack.Encode())
	require.NoError(t, err)
	assert.Equal(t, int32(1), decodedAck.NewSSID)
	assert.Equal(t, int32(-1), decodedAck.BackupOfSSID)
	assert.False(t, decodedAck.IsMustRecover())
}

func TestFilenameTooLong_Rejected(t *testing.T) {
	long := make([]byte, MaxFilename)
	for i := range long {
		long[i] = 'a'
	}
	_, err := NewReplicateFileHeader(string(long), "owner", 1)
	assert.Error(t, err)
}

func TestPeerAddrHeader_RoundTrip(t *testing.T) {
	h, err := NewPeerAddrHeader("10.0.0.9", 7000)
	require.NoError(t, err)

	got, err := DecodePeerAddrHeader(h.Encode())
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", got.IPStr())
	assert.Equal(t, int32(7000), got.Port)
}

func TestNetPipeDeadline_SurfacesAsIOError(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	require.NoError(t, server.SetReadDeadline(time.Now().Add(10*time.Millisecond)))
	_, err := RecvHeader(server)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrPeerClosed)
}
