// Package resourcemanager implements ResourceManager: a
// single-writer/many-reader atomic handle to an owned resource, with
// lock-free reads and epoch-based safe reclamation of replaced
// versions.
//
// A Read never blocks a concurrent Update and vice versa; what Read
// does block is reclamation of the resource it is currently looking
// at. Update is linearized by an internal mutex — the design targets
// lock-freedom on the read path, not wait-freedom anywhere.
package resourcemanager

import (
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/neunhoef/resource-manager/internal/epoch"
)

// Manager owns exactly one T at a time, published behind a single
// atomic pointer. Value zero is not usable; construct with New.
//
// A Manager must not be copied after first use: its epoch.Table
// holds addressable slots that concurrent readers reference by
// index, and copying the struct would give two managers with
// independent reader populations pointed at the same table layout
// but diverging state.
type Manager[T any] struct {
	current     atomic.Pointer[T]
	globalEpoch atomic.Uint64
	writerMu    sync.Mutex
	slots       epoch.Table
}

// randomSlot picks a uniformly random starting slot for one Read
// call. Go has no cheap, stable goroutine-local storage to mirror
// the original's thread_local preferred-slot cache, so each Read
// draws its own starting point; correctness only requires that two
// concurrent readers rarely pick the same one, which a fresh random
// draw satisfies as well as a cached per-thread value would.
func randomSlot() int {
	return rand.Intn(epoch.Slots)
}

// New constructs a Manager publishing initial as the current
// resource. initial may be nil, in which case Read observes no
// resource until the first Update.
func New[T any](initial *T) *Manager[T] {
	m := &Manager[T]{}
	m.globalEpoch.Store(1) // 0 is reserved for "slot not reading"
	m.current.Store(initial)
	return m
}

// Read announces the calling goroutine as an active reader, loads
// the current resource, and invokes fn on it, returning fn's error.
// If the manager holds no resource (current is nil), fn is not
// called and Read returns nil.
//
// The slot announcement is seq-cst and is the correctness crux: it
// ensures that any Update whose epoch advance happens after this
// announcement will see the slot occupied and decline to reclaim
// the resource Read is about to load, while an Update that already
// advanced the epoch before this announcement publishes a resource
// whose retire epoch is >= the epoch Read announces, which again
// blocks reclamation until Read releases its slot. Weakening this
// store below seq-cst breaks that guarantee.
func (m *Manager[T]) Read(fn func(*T) error) error {
	_, err := Read(m, func(res *T) (struct{}, error) {
		return struct{}{}, fn(res)
	})
	return err
}

// acquireSlot announces the calling goroutine at epoch e, probing
// forward from a random starting slot on collision, and returns the
// slot index to later release.
func (m *Manager[T]) acquireSlot(e uint64) int {
	slot := randomSlot()
	for !m.slots.TryAcquire(slot, e) {
		slot = (slot + 1) % epoch.Slots
	}
	return slot
}

// Read is the generic-result form of ResourceManager's read
// capability: it borrows the current resource and lets fn compute
// any result type R, returning fn's result and error. If the
// manager holds no resource, fn is not invoked and Read returns the
// zero value of R with a nil error — this promotes the original
// source's "default-construct on null" behavior into a documented
// contract; callers relying on it should only do so for managers
// without a non-null invariant.
func Read[T, R any](m *Manager[T], fn func(res *T) (R, error)) (R, error) {
	e := m.globalEpoch.Load()
	slot := m.acquireSlot(e)
	defer m.slots.Release(slot)

	res := m.current.Load()
	if res == nil {
		var zero R
		return zero, nil
	}
	return fn(res)
}

// Update publishes newResource as the current resource and returns
// the resource it displaced (nil if none) along with the epoch at
// which the displaced resource was retired. The caller owns the
// returned resource and must not free it until CanReclaim(epoch) or
// WaitReclaim(epoch) confirms it is safe.
//
// Update acquires the writer mutex itself — this repository's
// reading of the "open question" the original source leaves about
// writer_mutex locking discipline (see DESIGN.md) is that Update is
// the sole locker, and callers never lock around it.
func (m *Manager[T]) Update(newResource *T) (old *T, retireEpoch uint64) {
	m.writerMu.Lock()
	defer m.writerMu.Unlock()

	old = m.current.Swap(newResource)
	retireEpoch = m.globalEpoch.Add(1) - 1
	return old, retireEpoch
}

// CanReclaim reports whether every announced reader is using an
// epoch strictly greater than e, meaning no reader can still hold a
// reference to the resource retired at that epoch.
func (m *Manager[T]) CanReclaim(e uint64) bool {
	return m.slots.CanReclaim(e)
}

// WaitReclaim spins, yielding between attempts, until
// CanReclaim(e) becomes true. Callers must ensure reader callbacks
// passed to Read are short; a reader stuck in fn stalls every
// WaitReclaim waiting on an epoch at or before it.
func (m *Manager[T]) WaitReclaim(e uint64) {
	for !m.CanReclaim(e) {
		runtime.Gosched()
	}
}

// Close retires the current resource by publishing nil, waits for
// it to become safe to reclaim, and returns it to the caller. This
// is the Go equivalent of the C++ original's destructor
// (update(nullptr) + wait_reclaim + drop); Go has no destructors, so
// callers that own the last reference must call Close explicitly
// once the reader population has quiesced.
func (m *Manager[T]) Close() *T {
	old, e := m.Update(nil)
	m.WaitReclaim(e)
	return old
}
