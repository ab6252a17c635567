package filelock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet_SameNameReturnsSameLock(t *testing.T) {
	m := New()
	a := m.Get("x.txt")
	b := m.Get("x.txt")
	assert.Same(t, a, b)
	assert.Equal(t, 1, m.Len())
}

func TestGet_DistinctNamesDistinctLocks(t *testing.T) {
	m := New()
	a := m.Get("x.txt")
	b := m.Get("y.txt")
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, m.Len())
}

func TestGet_ConcurrentFirstReferenceYieldsOneLock(t *testing.T) {
	m := New()
	const n = 64
	results := make([]*FileLock, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			results[i] = m.Get("contended.txt")
		}()
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, 1, m.Len())
}

func TestRWMutexDiscipline(t *testing.T) {
	m := New()
	l := m.Get("readers.txt")

	l.RLock()
	l.RLock()
	l.RUnlock()
	l.RUnlock()

	l.Lock()
	l.Unlock()
}
