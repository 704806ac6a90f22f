// Package boundedlist implements BoundedList: a memory-bounded,
// append-only, nearly lock-free log. It keeps the most recent items
// subject to a memory budget, rotating exhausted segments into a
// ring of historical segments and eventually into a trash pile for
// an external cleaner to free.
package boundedlist

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/neunhoef/resource-manager/internal/alist"
)

// Sized is the constraint every item type stored in a BoundedList
// must satisfy: an estimate, in bytes, of the memory the item (and
// anything it owns) occupies. The estimate need only be positive and
// approximately right — the bound it feeds is itself approximate.
type Sized interface {
	MemoryUsage() uint64
}

// segment is one generation of the log: a single AtomicSinglyList
// plus the shared-pointer-like reference semantics BoundedList needs
// to keep a segment alive for readers after it has rotated out of
// current. Go's garbage collector is the reference count: as long as
// a segment is reachable from current, history, trash, or a
// snapshot slice handed to a reader, it stays alive, and it is
// released the moment none of those paths hold it anymore.
type segment[T Sized] struct {
	list alist.List[T]
}

// List is a BoundedList[T]. The zero value is not usable; construct
// with New.
type List[T Sized] struct {
	current atomic.Pointer[segment[T]]

	memoryUsage atomic.Uint64
	_           [64]byte // keep isRotating off memoryUsage's cache line
	isRotating  atomic.Bool

	mu      sync.Mutex
	history []*segment[T]
	ringPos int
	trash   []*segment[T]

	memoryThreshold uint64
	maxHistory      int

	rotations atomic.Uint64
}

// New constructs a List bounding the current segment's memory usage
// by memoryThreshold bytes and retaining up to maxHistory rotated
// segments beyond the current one (effective bound approximately
// memoryThreshold * maxHistory, with transient overshoot possible).
// It returns an error if memoryThreshold is 0 or maxHistory < 2.
func New[T Sized](memoryThreshold uint64, maxHistory int) (*List[T], error) {
	if memoryThreshold == 0 {
		return nil, fmt.Errorf("boundedlist: memoryThreshold must be > 0")
	}
	if maxHistory < 2 {
		return nil, fmt.Errorf("boundedlist: maxHistory must be >= 2, got %d", maxHistory)
	}

	l := &List[T]{
		history:         make([]*segment[T], maxHistory),
		memoryThreshold: memoryThreshold,
		maxHistory:      maxHistory,
	}
	l.current.Store(&segment[T]{})
	return l, nil
}

// Prepend adds value to the front of the current segment and, if
// doing so pushes the segment's tracked memory usage at or past the
// threshold, attempts to rotate it out.
func (l *List[T]) Prepend(value T) {
	m := value.MemoryUsage()

	// Acquire-ordered via atomic.Pointer's load semantics: this may
	// synchronize with a rotation's store of a fresh segment below.
	cur := l.current.Load()
	cur.list.Prepend(value)

	newUsage := l.memoryUsage.Add(m)
	if newUsage >= l.memoryThreshold {
		l.tryRotate(cur)
	}
}

// tryRotate attempts to replace the current segment with a fresh
// empty one, on behalf of a Prepend that observed expected as the
// current segment when the memory threshold was crossed. At most one
// goroutine performs the rotation for any given value of expected;
// everyone else returns immediately, including goroutines still
// prepending to expected after it has stopped being current — those
// items remain valid, live on in the rotated-out segment, and their
// memory contribution has already been folded into the counter that
// was reset for the new segment, which is the source of BoundedList's
// permitted transient overshoot.
func (l *List[T]) tryRotate(expected *segment[T]) {
	if !l.isRotating.CompareAndSwap(false, true) {
		return
	}

	if l.current.Load() != expected {
		l.isRotating.Store(false)
		return
	}

	l.memoryUsage.Store(0)

	fresh := &segment[T]{}
	l.current.Store(fresh)

	l.mu.Lock()
	evicted := l.history[l.ringPos]
	l.history[l.ringPos] = expected
	l.ringPos = (l.ringPos + 1) % l.maxHistory
	if evicted != nil {
		l.trash = append(l.trash, evicted)
	}
	l.mu.Unlock()

	l.rotations.Add(1)
	l.isRotating.Store(false)
}

// Rotations returns the number of segment rotations performed over
// this List's lifetime, for an external metrics reporter to sample.
func (l *List[T]) Rotations() uint64 {
	return l.rotations.Load()
}

// ForItems walks every retained item, newest first within a segment
// and current-then-history newest-to-oldest across segments. It
// takes a short-held lock only to snapshot which segments exist;
// walking the node chains of each segment happens outside the lock
// and is lock-free against concurrent Prepend calls, so a call to
// ForItems may or may not observe items prepended while it runs.
func (l *List[T]) ForItems(fn func(T)) {
	snapshots := l.snapshotSegments()
	for _, s := range snapshots {
		for n := s.list.Snapshot(); n != nil; n = n.Next() {
			fn(n.Value())
		}
	}
}

func (l *List[T]) snapshotSegments() []*segment[T] {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*segment[T], 0, l.maxHistory+1)
	out = append(out, l.current.Load())
	for i := 0; i < l.maxHistory; i++ {
		pos := (l.ringPos + l.maxHistory - 1 - i) % l.maxHistory
		if l.history[pos] != nil {
			out = append(out, l.history[pos])
		}
	}
	return out
}

// ClearTrash drops every segment queued for destruction and returns
// the number freed. It is idempotent on an empty trash pile.
// Destruction of the segments themselves happens whenever Go's
// garbage collector reclaims them, once this call drops BoundedList's
// last reference.
func (l *List[T]) ClearTrash() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.trash)
	l.trash = nil
	return n
}

// DrainTrash walks every item in every segment queued for
// destruction, oldest-rotated segment first, passing each to fn, then
// clears the trash pile exactly as ClearTrash does. It gives an
// external archiver (anything that wants the full history, not just
// what ForItems can still see) one chance to persist items before
// BoundedList drops its last reference to them.
func (l *List[T]) DrainTrash(fn func(T)) int {
	l.mu.Lock()
	doomed := l.trash
	l.trash = nil
	l.mu.Unlock()

	for _, s := range doomed {
		for n := s.list.Snapshot(); n != nil; n = n.Next() {
			fn(n.Value())
		}
	}
	return len(doomed)
}
