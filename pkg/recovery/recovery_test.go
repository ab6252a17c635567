package recovery

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/ssnode/pkg/filelock"
	"github.com/marmos91/ssnode/pkg/metadata"
	"github.com/marmos91/ssnode/pkg/replication"
	"github.com/marmos91/ssnode/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenLoopback(t *testing.T) net.Listener {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestReReplicateAll_SchedulesNonBackupFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "primary.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mirrored.txt"), []byte("y"), 0644))

	store := metadata.New()
	store.Insert(metadata.FileMetadata{Filename: "primary.txt", IsBackup: false})
	store.Insert(metadata.FileMetadata{Filename: "mirrored.txt", IsBackup: true})

	sender := &recordingSender{}
	queue := replication.NewQueue(sender, 5)
	queue.Start(t.Context())
	defer queue.Stop()

	target := &replication.BackupTarget{}
	c := &Coordinator{Store: store, Locks: filelock.New(), FilesDir: dir, Target: target, Queue: queue}

	require.NoError(t, c.ReReplicateAll(t.Context(), "10.0.0.5", 7000))

	ip, port, ok := target.Get()
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.5", ip)
	assert.Equal(t, 7000, port)

	waitForCondition(t, time.Second, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.updates) == 1
	})
	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, []string{"primary.txt"}, sender.updates)
}

func TestSyncFromBackupAndIncomingStartRecovery_EndToEnd(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("hello"), 0644))
	srcStore := metadata.New()
	srcStore.Insert(metadata.FileMetadata{
		Filename: "a.txt", Owner: "alice", FileSize: 5,
		WordCount: 1, CharCount: 5, LastModified: 100, LastAccess: 200,
		IsBackup: true,
	})
	src := &Coordinator{
		SSID: 2, Store: srcStore, Locks: filelock.New(), FilesDir: srcDir,
		Target: &replication.BackupTarget{},
	}

	destDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(destDir, "stale.txt"), []byte("old"), 0644))
	destStore := metadata.New()
	destStore.Insert(metadata.FileMetadata{Filename: "stale.txt"})
	dest := &Coordinator{
		SSID: 1, Store: destStore, Locks: filelock.New(), FilesDir: destDir,
		Target: &replication.BackupTarget{},
	}

	listener := listenLoopback(t)
	addr := listener.Addr().(*net.TCPAddr)

	done := make(chan error, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()
		hdr, err := wire.RecvHeader(conn)
		if err != nil {
			done <- err
			return
		}
		done <- dest.HandleIncomingStartRecovery(t.Context(), conn, hdr)
	}()

	require.NoError(t, src.SyncFromBackup(t.Context(), "127.0.0.1", addr.Port))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("incoming recovery handler did not complete")
	}

	_, err := os.Stat(filepath.Join(destDir, "stale.txt"))
	assert.True(t, os.IsNotExist(err), "stale file should have been cleared")
	assert.False(t, destStore.Exists("stale.txt"))

	gotBytes, err := os.ReadFile(filepath.Join(destDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(gotBytes))

	got, ok := destStore.Get("a.txt")
	require.True(t, ok)
	assert.Equal(t, "alice", got.Owner)
	assert.Equal(t, uint64(5), got.FileSize)
	assert.Equal(t, uint64(1), got.WordCount)
	assert.False(t, got.IsBackup, "receiver of a primary-recovery push installs entries as primary")
}

type recordingSender struct {
	mu      sync.Mutex
	updates []string
	deletes []string
}

func (r *recordingSender) SendUpdate(ctx context.Context, filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, filename)
	return nil
}

func (r *recordingSender) SendDelete(ctx context.Context, filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes = append(r.deletes, filename)
	return nil
}

func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}
