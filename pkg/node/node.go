// Package node wires C1-C12 into the single long-lived "Node context" the
// spec's design notes call for: one struct owning every subsystem's
// lifetime, built once at startup and torn down once at shutdown, replacing
// the teacher's scattered global state with explicit dependency wiring.
package node

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/ssnode/internal/logger"
	"github.com/marmos91/ssnode/pkg/archival"
	"github.com/marmos91/ssnode/pkg/checkpoint"
	"github.com/marmos91/ssnode/pkg/config"
	"github.com/marmos91/ssnode/pkg/dispatch"
	"github.com/marmos91/ssnode/pkg/filelock"
	"github.com/marmos91/ssnode/pkg/fileops"
	"github.com/marmos91/ssnode/pkg/healthapi"
	"github.com/marmos91/ssnode/pkg/metadata"
	"github.com/marmos91/ssnode/pkg/metrics"
	"github.com/marmos91/ssnode/pkg/nscontrol"
	"github.com/marmos91/ssnode/pkg/recovery"
	"github.com/marmos91/ssnode/pkg/replication"
)

// Identity is the addressing information supplied on the command line,
// unchanged across restarts: ss_id is not known until NS assigns it.
type Identity struct {
	NSHost       string
	NSPort       int
	IP           string
	ClientPort   int32
	ReplListenPort int32
}

// Node is the long-lived context aggregating every subsystem. Exactly one
// Node exists per process.
type Node struct {
	Config   *config.Config
	Identity Identity

	SSID int32

	Metadata *metadata.Store
	Locks    *filelock.Map

	Target       *replication.BackupTarget
	Queue        *replication.Queue
	Outbound     *replication.Outbound
	Inbound      *replication.Inbound
	Recovery     *recovery.Coordinator
	Dispatcher   *dispatch.Dispatcher
	Checkpointer *checkpoint.Checkpointer
	NS           *nscontrol.Client
	Health       *healthapi.Server
	Archiver     *archival.Archiver

	dataDir  string
	filesDir string

	shuttingDown atomic.Bool
	wg           sync.WaitGroup
}

// New constructs a Node from configuration and CLI identity. It performs no
// I/O: call Start to register with NS, reconcile on-disk state, and launch
// every subsystem's goroutines.
func New(cfg *config.Config, id Identity) *Node {
	return &Node{
		Config:   cfg,
		Identity: id,
		Locks:    filelock.New(),
		Target:   &replication.BackupTarget{},
	}
}

// Start registers with NS, loads or creates local state, and launches every
// subsystem. It blocks only for the duration of setup; long-running work
// continues on background goroutines after it returns.
func (n *Node) Start(ctx context.Context) error {
	nsConn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", n.Identity.NSHost, n.Identity.NSPort))
	if err != nil {
		return fmt.Errorf("node: dial NS: %w", err)
	}

	n.NS = &nscontrol.Client{
		Conn:              nsConn,
		HeartbeatInterval: n.Config.Node.HeartbeatInterval,
		Target:            n.Target,
		OnFatal: func(err error) {
			logger.ErrorCtx(ctx, "node: NS heartbeat failed, exiting", logger.Err(err))
			os.Exit(1)
		},
	}

	ack, err := n.NS.Register(n.Identity.IP, n.Identity.ClientPort, n.Identity.ReplListenPort)
	if err != nil {
		nsConn.Close()
		return fmt.Errorf("node: register with NS: %w", err)
	}
	n.SSID = ack.NewSSID
	n.NS.SSID = n.SSID

	if backupIP := ack.BackupSSIPStr(); backupIP != "" && ack.BackupSSPort > 0 {
		n.Target.Set(backupIP, int(ack.BackupSSPort))
	}

	n.dataDir = filepath.Join(n.Config.Node.DataDir, fmt.Sprintf("ss_data_%d", n.SSID))
	n.filesDir = filepath.Join(n.dataDir, "files")
	if err := os.MkdirAll(n.filesDir, 0755); err != nil {
		return fmt.Errorf("node: create data directory: %w", err)
	}

	checkpointPath := filepath.Join(n.dataDir, "metadata.db")
	store, err := metadata.Load(checkpointPath)
	if err != nil {
		return fmt.Errorf("node: load metadata checkpoint: %w", err)
	}
	if store == nil {
		store = metadata.New()
	}
	n.Metadata = store

	if err := n.reconcileFilesDir(ctx); err != nil {
		return fmt.Errorf("node: reconcile files directory: %w", err)
	}

	bufSize := int(n.Config.Recovery.TransferBufferSize.Uint64())

	n.Outbound = &replication.Outbound{
		Store:    n.Metadata,
		Locks:    n.Locks,
		FilesDir: n.filesDir,
		Target:   n.Target,
	}
	n.Queue = replication.NewQueue(n.Outbound, n.Config.Node.ReplicationRetryCap)

	n.Inbound = &replication.Inbound{
		Store:    n.Metadata,
		Locks:    n.Locks,
		FilesDir: n.filesDir,
		BufSize:  bufSize,
	}

	n.Recovery = &recovery.Coordinator{
		SSID:     n.SSID,
		Store:    n.Metadata,
		Locks:    n.Locks,
		FilesDir: n.filesDir,
		Target:   n.Target,
		Queue:    n.Queue,
		BufSize:  bufSize,
	}
	n.NS.Recovery = n.Recovery

	clientLn, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP(n.Identity.IP), Port: int(n.Identity.ClientPort)})
	if err != nil {
		return fmt.Errorf("node: listen client socket: %w", err)
	}
	replLn, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP(n.Identity.IP), Port: int(n.Identity.ReplListenPort)})
	if err != nil {
		clientLn.Close()
		return fmt.Errorf("node: listen replication socket: %w", err)
	}

	n.Dispatcher = &dispatch.Dispatcher{
		ClientListener: clientLn,
		ReplListener:   replLn,
		Inbound:        n.Inbound,
		Recovery:       n.Recovery,
		FileOpHandler:  &fileops.Handler{SSID: n.SSID},
	}

	if n.Config.Archival.Enabled {
		archiver, err := archival.NewFromConfig(ctx, archival.Config{
			Bucket:         n.Config.Archival.Bucket,
			Prefix:         n.Config.Archival.Prefix,
			Region:         n.Config.Archival.Region,
			Endpoint:       n.Config.Archival.Endpoint,
			ForcePathStyle: n.Config.Archival.Endpoint != "",
		})
		if err != nil {
			return fmt.Errorf("node: init archival: %w", err)
		}
		n.Archiver = archiver
	}

	n.Checkpointer = &checkpoint.Checkpointer{
		Store:    n.Metadata,
		Path:     checkpointPath,
		Interval: n.Config.Node.CheckpointInterval,
	}
	if n.Archiver != nil {
		n.Checkpointer.OnSaved = func(ctx context.Context, path string, savedAt time.Time) {
			if err := n.Archiver.UploadCheckpoint(ctx, n.SSID, path, savedAt); err != nil {
				logger.WarnCtx(ctx, "node: checkpoint archival upload failed", logger.Err(err))
			}
		}
	}

	if n.Config.HealthAPI.Enabled {
		metrics.InitRegistry()
		n.Health = healthapi.NewServer(n.Config.HealthAPI.Addr, n.Metadata)
	}

	n.Queue.Start(ctx)
	n.Dispatcher.Start(ctx)
	n.Checkpointer.Start(ctx)
	n.NS.Start(ctx)

	if n.Health != nil {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			if err := n.Health.Start(ctx); err != nil {
				logger.ErrorCtx(ctx, "node: health API server error", logger.Err(err))
			}
		}()
		// NS registration (above) and the accept loops (Dispatcher.Start,
		// above) have both succeeded by this point: the node is ready to
		// serve.
		n.Health.SetReady(true)
	}

	if ack.IsMustRecover() {
		logger.InfoCtx(ctx, "node: NS flagged this node for recovery, awaiting incoming sync",
			logger.SSID(n.SSID))
	}

	logger.InfoCtx(ctx, "node: started", logger.SSID(n.SSID), logger.FileCount(n.Metadata.Count()))
	return nil
}

// Shutdown stops every subsystem in dependency order: dispatcher first (no
// new work), then NS control channel, then the replication queue drains
// in-flight work, then a final checkpoint.
func (n *Node) Shutdown(ctx context.Context) error {
	if !n.shuttingDown.CompareAndSwap(false, true) {
		return nil
	}

	if n.Health != nil {
		n.Health.BeginShutdown()
	}
	if n.Dispatcher != nil {
		n.Dispatcher.Stop()
	}
	if n.NS != nil {
		n.NS.Stop()
	}
	if n.Queue != nil {
		n.Queue.Stop()
	}
	if n.Health != nil {
		_ = n.Health.Stop(ctx)
	}
	if n.Checkpointer != nil {
		if err := n.Checkpointer.Stop(ctx); err != nil {
			logger.ErrorCtx(ctx, "node: final checkpoint failed", logger.Err(err))
		}
	}

	n.wg.Wait()
	logger.InfoCtx(ctx, "node: shutdown complete", logger.SSID(n.SSID))
	return nil
}

// reconcileFilesDir implements spec's startup invariant: every file present
// in files/ must have a C3 entry. Orphans (present on disk, absent from the
// checkpoint) are backfilled with zeroed counters; one log line per orphan.
func (n *Node) reconcileFilesDir(ctx context.Context) error {
	entries, err := os.ReadDir(n.filesDir)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if n.Metadata.Exists(name) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			logger.WarnCtx(ctx, "node: reconcile: stat orphan file failed",
				logger.Filename(name), logger.Err(err))
			continue
		}
		n.Metadata.Insert(metadata.FileMetadata{
			Filename:     name,
			FileSize:     uint64(info.Size()),
			LastModified: info.ModTime().Unix(),
			LastAccess:   info.ModTime().Unix(),
		})
		logger.InfoCtx(ctx, "node: reconcile: backfilled orphan file", logger.Filename(name))
	}
	return nil
}
