package replication

import "sync"

// BackupTarget holds the mutable (ip, port) of this node's designated
// backup peer, guarded by a dedicated mutex per spec §3/§5
// (g_backup_config_mutex). Writers are pkg/node at registration, the
// UPDATE_BACKUP handler (pkg/nscontrol) and the RE_REPLICATE_ALL handler
// (pkg/recovery); readers are the outbound senders below.
type BackupTarget struct {
	mu   sync.RWMutex
	ip   string
	port int
	set  bool
}

// Get returns the current backup ip/port and whether one is configured.
func (b *BackupTarget) Get() (ip string, port int, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ip, b.port, b.set
}

// Set installs a new backup target.
func (b *BackupTarget) Set(ip string, port int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ip = ip
	b.port = port
	b.set = true
}

// Clear removes the backup target, so subsequent outbound sends skip.
func (b *BackupTarget) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ip = ""
	b.port = 0
	b.set = false
}
