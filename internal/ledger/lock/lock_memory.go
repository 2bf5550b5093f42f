package lock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryLocker serializes holders of a key inside one process. Entries are
// reference counted so idle keys do not accumulate.
type MemoryLocker struct {
	mu          sync.Mutex
	locks       map[string]*memoryEntry
	waitTimeout time.Duration
}

type memoryEntry struct {
	sem  chan struct{}
	refs int
}

// NewMemory bounds each Acquire by waitTimeout; zero waits until ctx ends.
func NewMemory(waitTimeout time.Duration) *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*memoryEntry), waitTimeout: waitTimeout}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string) (Lease, error) {
	if l.waitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, l.waitTimeout, ErrWaitTimeout)
		defer cancel()
	}

	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &memoryEntry{sem: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
		return &memoryLease{locker: l, key: key, entry: entry}, nil
	case <-ctx.Done():
		l.unref(key, entry)
		return nil, fmt.Errorf("acquire lock %q: %w", key, context.Cause(ctx))
	}
}

func (l *MemoryLocker) unref(key string, entry *memoryEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
}

// held reports how many keys have holders or waiters.
func (l *MemoryLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	entry  *memoryEntry
	once   sync.Once
}

func (m *memoryLease) Key() string {
	return m.key
}

// Lost never fires; an in-process lease cannot expire.
func (m *memoryLease) Lost() <-chan struct{} {
	return nil
}

func (m *memoryLease) Release(context.Context) error {
	m.once.Do(func() {
		<-m.entry.sem
		m.locker.unref(m.key, m.entry)
	})
	return nil
}
