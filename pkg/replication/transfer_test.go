package replication

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/ssnode/pkg/filelock"
	"github.com/marmos91/ssnode/pkg/metadata"
	"github.com/marmos91/ssnode/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listenLoopback opens a TCP listener on loopback for outbound/inbound tests
// that need a real *net.TCPConn (net.Pipe is not a *net.TCPConn, and the
// zero-copy send path only engages for genuine TCP connections).
func listenLoopback(t *testing.T) net.Listener {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestOutboundSendUpdate_NoBackupTarget_Skips(t *testing.T) {
	store := metadata.New()
	o := &Outbound{Store: store, Locks: filelock.New(), FilesDir: t.TempDir(), Target: &BackupTarget{}}

	err := o.SendUpdate(t.Context(), "a.txt")
	assert.ErrorIs(t, err, ErrSkippedNoBackup)
}

func TestOutboundSendUpdate_BackupEntry_Skips(t *testing.T) {
	store := metadata.New()
	store.Insert(metadata.FileMetadata{Filename: "a.txt", Owner: "alice", IsBackup: true})

	target := &BackupTarget{}
	target.Set("127.0.0.1", 9999)
	o := &Outbound{Store: store, Locks: filelock.New(), FilesDir: t.TempDir(), Target: target}

	err := o.SendUpdate(t.Context(), "a.txt")
	assert.ErrorIs(t, err, ErrSkippedIsBackup)
}

func TestOutboundSendUpdate_MissingMetadata_Skips(t *testing.T) {
	target := &BackupTarget{}
	target.Set("127.0.0.1", 9999)
	o := &Outbound{Store: metadata.New(), Locks: filelock.New(), FilesDir: t.TempDir(), Target: target}

	err := o.SendUpdate(t.Context(), "missing.txt")
	assert.ErrorIs(t, err, ErrMissingMetadata)
}

func TestOutboundInbound_EndToEnd_ReplicateFile(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("hello"), 0644))

	store := metadata.New()
	store.Insert(metadata.FileMetadata{Filename: "a.txt", Owner: "alice", FileSize: 5, IsBackup: false})

	destDir := t.TempDir()
	destStore := metadata.New()
	in := &Inbound{Store: destStore, Locks: filelock.New(), FilesDir: destDir, BufSize: 4096}

	listener := listenLoopback(t)
	addr := listener.Addr().(*net.TCPAddr)

	accepted := make(chan struct{})
	go func() {
		conn, err := listener.Accept()
		require.NoError(t, err)
		defer conn.Close()
		in.Handle(conn)
		close(accepted)
	}()

	target := &BackupTarget{}
	target.Set("127.0.0.1", addr.Port)
	out := &Outbound{Store: store, Locks: filelock.New(), FilesDir: srcDir, Target: target}

	require.NoError(t, out.SendUpdate(t.Context(), "a.txt"))

	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("inbound handler did not complete")
	}

	gotBytes, err := os.ReadFile(filepath.Join(destDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(gotBytes))

	got, ok := destStore.Get("a.txt")
	require.True(t, ok)
	assert.Equal(t, "alice", got.Owner)
	assert.Equal(t, uint64(5), got.FileSize)
	assert.True(t, got.IsBackup)
}

func TestInbound_DeleteFile_RemovesDiskAndMetadata(t *testing.T) {
	destDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(destDir, "gone.txt"), []byte("x"), 0644))

	store := metadata.New()
	store.Insert(metadata.FileMetadata{Filename: "gone.txt", IsBackup: true})

	in := &Inbound{Store: store, Locks: filelock.New(), FilesDir: destDir, BufSize: 4096}

	server, client := net.Pipe()
	defer server.Close()

	done := make(chan struct{})
	go func() {
		in.Handle(server)
		close(done)
	}()

	hdr, err := wire.NewDeleteFileHeader("gone.txt")
	require.NoError(t, err)
	require.NoError(t, wire.SendFrame(client, wire.S2SDeleteFile, hdr.Encode()))

	ackHdr, err := wire.RecvHeader(client)
	require.NoError(t, err)
	assert.Equal(t, wire.S2SAck, ackHdr.Type)
	client.Close()
	<-done

	_, err = os.Stat(filepath.Join(destDir, "gone.txt"))
	assert.True(t, os.IsNotExist(err))
	assert.False(t, store.Exists("gone.txt"))
}
