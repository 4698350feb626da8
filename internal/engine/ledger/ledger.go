// Package ledger tracks writes the application itself is about to perform
// so the filesystem watcher's echo of each write can be recognized and
// dropped instead of being re-ingested as an external change.
package ledger

import (
	"container/list"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"treeline/internal/shared/observability"
)

type entry struct {
	path string
	hash uint64
	at   time.Time
}

// Ledger is a bounded pending-write table. Entries must be registered
// before the write is issued; registering after would leave a window in
// which the watcher could observe the write unannounced. Entries are
// evicted oldest-first when the table exceeds maxEntries or an entry
// outlives maxAge, so a write whose event never arrives cannot leak.
type Ledger struct {
	mu         sync.Mutex
	maxEntries int
	maxAge     time.Duration
	order      *list.List               // front = oldest
	byPath     map[string][]*list.Element

	now func() time.Time
}

func New(maxEntries int, maxAge time.Duration) *Ledger {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if maxAge <= 0 {
		maxAge = time.Minute
	}
	return &Ledger{
		maxEntries: maxEntries,
		maxAge:     maxAge,
		order:      list.New(),
		byPath:     make(map[string][]*list.Element),
		now:        time.Now,
	}
}

// Register records a pending self-write of content to path.
func (l *Ledger) Register(path string, content []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.evictLocked()

	e := &entry{path: path, hash: xxhash.Sum64(content), at: l.now()}
	el := l.order.PushBack(e)
	l.byPath[path] = append(l.byPath[path], el)

	for l.order.Len() > l.maxEntries {
		l.removeLocked(l.order.Front())
	}
	observability.LedgerPending.Set(float64(l.order.Len()))
}

// Match reports whether an inbound filesystem event for path carrying
// content is an echo of a registered write. A matching entry is consumed;
// a hash mismatch leaves the table untouched so the entry can still
// suppress the real echo when it arrives.
func (l *Ledger) Match(path string, content []byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.evictLocked()

	hash := xxhash.Sum64(content)
	for _, el := range l.byPath[path] {
		if el.Value.(*entry).hash == hash {
			l.removeLocked(el)
			observability.LedgerPending.Set(float64(l.order.Len()))
			return true
		}
	}
	return false
}

// Len returns the number of pending entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}

func (l *Ledger) evictLocked() {
	cutoff := l.now().Add(-l.maxAge)
	for el := l.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*entry).at.After(cutoff) {
			break
		}
		l.removeLocked(el)
		el = next
	}
}

func (l *Ledger) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	l.order.Remove(el)

	els := l.byPath[e.path]
	for i, candidate := range els {
		if candidate == el {
			els = append(els[:i], els[i+1:]...)
			break
		}
	}
	if len(els) == 0 {
		delete(l.byPath, e.path)
	} else {
		l.byPath[e.path] = els
	}
}
