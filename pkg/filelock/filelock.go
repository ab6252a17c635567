// Package filelock implements the per-filename reader/writer lock map (C2).
// Locks are lazily created on first reference and retained for the node's
// lifetime: the map never reclaims an entry, so a holder may safely
// re-reference a *FileLock without coordinating with a destructor.
package filelock

import "sync"

// FileLock is a reader/writer lock keyed by filename. It guards both the
// on-disk file bytes and the corresponding metadata entry as a unit: callers
// must hold the lock across both the disk operation and the metadata
// mutation for a given filename.
type FileLock struct {
	name string
	mu   sync.RWMutex
}

// Name returns the filename this lock was created for.
func (l *FileLock) Name() string { return l.name }

// RLock acquires the read lock. Used by clients reading/streaming and by the
// outbound replication sender while shipping file bytes.
func (l *FileLock) RLock() { l.mu.RLock() }

// RUnlock releases the read lock.
func (l *FileLock) RUnlock() { l.mu.RUnlock() }

// Lock acquires the write lock. Used by write transactions, undo, delete,
// create, the inbound replication receiver, and recovery's clear/receive
// phases.
func (l *FileLock) Lock() { l.mu.Lock() }

// Unlock releases the write lock.
func (l *FileLock) Unlock() { l.mu.Unlock() }

// Map is the file-lock map: filename -> *FileLock, grown lazily and never
// shrunk. Lookup and lazy insertion both happen under a single mutex, so
// concurrent first references to a name always receive the same lock.
type Map struct {
	mu    sync.Mutex
	locks map[string]*FileLock
}

// New returns an empty Map.
func New() *Map {
	return &Map{locks: make(map[string]*FileLock)}
}

// Get returns the FileLock for name, creating it if this is the first
// reference. Infallible: every filename eventually gets a lock.
func (m *Map) Get(name string) *FileLock {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.locks[name]; ok {
		return l
	}
	l := &FileLock{name: name}
	m.locks[name] = l
	return l
}

// Len returns the number of distinct filenames that have ever been
// referenced. Exposed for tests and metrics; not part of the lock contract.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
