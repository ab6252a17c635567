package nscontrol

import (
	"context"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/ssnode/pkg/filelock"
	"github.com/marmos91/ssnode/pkg/metadata"
	"github.com/marmos91/ssnode/pkg/recovery"
	"github.com/marmos91/ssnode/pkg/replication"
	"github.com/marmos91/ssnode/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_SendsRequestAndParsesAck(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	c := &Client{Conn: client}

	serverDone := make(chan error, 1)
	go func() {
		hdr, err := wire.RecvHeader(server)
		if err != nil {
			serverDone <- err
			return
		}
		if hdr.Type != wire.S2NRegister {
			serverDone <- assert.AnError
			return
		}
		if _, err := wire.RecvPayload(server, hdr.PayloadLen); err != nil {
			serverDone <- err
			return
		}
		ack, err := wire.NewRegisterAck(7, 0, "", 0, false)
		if err != nil {
			serverDone <- err
			return
		}
		serverDone <- wire.SendFrame(server, wire.N2SRegisterAck, ack.Encode())
	}()

	got, err := c.Register("127.0.0.1", 9000, 9001)
	require.NoError(t, err)
	require.NoError(t, <-serverDone)
	assert.Equal(t, int32(7), got.NewSSID)
	assert.False(t, got.IsMustRecover())
}

func TestControlListenLoop_UpdateBackup_UpdatesTarget(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	target := &replication.BackupTarget{}
	c := &Client{Conn: client, Target: target, Recovery: &recovery.Coordinator{}}
	c.Start(t.Context())
	defer c.Stop()

	addr, err := wire.NewPeerAddrHeader("10.1.1.1", 6000)
	require.NoError(t, err)
	require.NoError(t, wire.SendFrame(server, wire.N2SUpdateBackup, addr.Encode()))

	require.Eventually(t, func() bool {
		_, _, ok := target.Get()
		return ok
	}, time.Second, 5*time.Millisecond)

	ip, port, ok := target.Get()
	assert.True(t, ok)
	assert.Equal(t, "10.1.1.1", ip)
	assert.Equal(t, 6000, port)
}

func TestControlListenLoop_ReReplicateAll_ReschedulesFiles(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/a.txt", []byte("x"), 0644))
	store := metadata.New()
	store.Insert(metadata.FileMetadata{Filename: "a.txt", IsBackup: false})

	sender := &countingSender{}
	queue := replication.NewQueue(sender, 5)
	queue.Start(t.Context())
	defer queue.Stop()

	target := &replication.BackupTarget{}
	coord := &recovery.Coordinator{Store: store, Locks: filelock.New(), FilesDir: dir, Target: target, Queue: queue}

	c := &Client{Conn: client, Target: target, Recovery: coord}
	c.Start(t.Context())
	defer c.Stop()

	addr, err := wire.NewPeerAddrHeader("10.2.2.2", 7000)
	require.NoError(t, err)
	require.NoError(t, wire.SendFrame(server, wire.N2SReReplicateAll, addr.Encode()))

	require.Eventually(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.updates) == 1
	}, time.Second, 5*time.Millisecond)
}

type countingSender struct {
	mu      sync.Mutex
	updates []string
}

func (s *countingSender) SendUpdate(ctx context.Context, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, filename)
	return nil
}

func (s *countingSender) SendDelete(ctx context.Context, filename string) error {
	return nil
}
