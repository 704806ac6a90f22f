// Package epoch implements the fixed-size epoch announcement table
// shared by resourcemanager.ResourceManager. Readers announce the
// global epoch they observed by claiming a slot; a writer retiring a
// resource at some epoch can tell it is safe to free once every slot
// is either free or holds an epoch strictly greater than the retire
// epoch.
package epoch

import "sync/atomic"

// Slots is the number of cache-line-padded reader slots. Fixed at 128
// per spec: large enough to keep expected probe length low under
// hundreds of concurrent readers, small enough to scan cheaply in
// CanReclaim.
const Slots = 128

// cacheLineSize is the padding target; 64 bytes covers essentially
// every current CPU architecture Go targets.
const cacheLineSize = 64

// slot holds one reader's announced epoch, padded so neighboring
// slots never share a cache line. A value of 0 means the slot is
// free; any positive value is an announced epoch.
type slot struct {
	epoch atomic.Uint64
	_     [cacheLineSize - 8]byte
}

// Table is the fixed array of reader slots.
type Table struct {
	slots [Slots]slot
}

// TryAcquire attempts to claim slot index i for epoch e via a
// seq-cst CAS from 0 (free) to e. The slot announcement must be
// seq-cst: relaxing to release/acquire would not prevent the
// reader's slot store from being reordered past the load of the
// current resource pointer, which is the correctness crux of
// ResourceManager.Read.
func (t *Table) TryAcquire(i int, e uint64) bool {
	return t.slots[i].epoch.CompareAndSwap(0, e)
}

// Release frees slot index i. Only the reader that successfully
// acquired the slot may release it.
func (t *Table) Release(i int) {
	t.slots[i].epoch.Store(0)
}

// CanReclaim reports whether every slot is either free or holds an
// epoch strictly greater than e, meaning no reader can still be
// looking at a resource retired at epoch e.
func (t *Table) CanReclaim(e uint64) bool {
	for i := range t.slots {
		v := t.slots[i].epoch.Load()
		if v != 0 && v <= e {
			return false
		}
	}
	return true
}
