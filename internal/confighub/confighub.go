// Package confighub holds a hot-swappable routing table behind a
// resourcemanager.Manager, giving admins a way to publish new routes
// without ever blocking a request that is mid-lookup.
package confighub

import (
	"encoding/json"
	"log"

	"github.com/neunhoef/resource-manager/internal/audit"
	"github.com/neunhoef/resource-manager/internal/errs"
	"github.com/neunhoef/resource-manager/internal/metrics"
	"github.com/neunhoef/resource-manager/internal/sequence"
	"github.com/neunhoef/resource-manager/resourcemanager"
)

// Route is one published routing entry.
type Route struct {
	Prefix  string `json:"prefix"`
	Backend string `json:"backend"`
}

// Table is the resource held under management: an immutable
// snapshot of routes, looked up by longest matching prefix.
type Table struct {
	Routes []Route `json:"routes"`
}

// Lookup returns the backend for the longest route prefix matching
// path, and whether any route matched.
func (t *Table) Lookup(path string) (string, bool) {
	best := -1
	backend := ""
	for _, r := range t.Routes {
		if len(r.Prefix) <= len(path) && path[:len(r.Prefix)] == r.Prefix && len(r.Prefix) > best {
			best = len(r.Prefix)
			backend = r.Backend
		}
	}
	return backend, best >= 0
}

// Hub owns the ResourceManager publishing the current Table.
type Hub struct {
	mgr *resourcemanager.Manager[Table]
	wal *audit.WAL
	seq *sequence.Sequencer
	met *metrics.Registry
}

// SetMetrics attaches a metrics.Registry that subsequent Updates
// report reclaims into. It is a no-op to call this with nil, which
// is also Hub's default (no metrics reported).
func (h *Hub) SetMetrics(m *metrics.Registry) {
	h.met = m
}

// New constructs a Hub publishing initial as the first table. The
// hub carries no audit trail; use NewAudited to record every Update
// durably.
func New(initial Table) *Hub {
	return &Hub{mgr: resourcemanager.New(&initial), seq: sequence.New(0)}
}

// NewAudited constructs a Hub whose every Update is appended to wal
// before taking effect, so a restart can replay the routing history.
func NewAudited(initial Table, wal *audit.WAL) *Hub {
	return &Hub{mgr: resourcemanager.New(&initial), wal: wal, seq: sequence.New(0)}
}

type lookupResult struct {
	backend string
	found   bool
}

// Lookup borrows the current table for the duration of fn without
// blocking any concurrent Update.
func (h *Hub) Lookup(path string) (string, bool) {
	res, err := resourcemanager.Read(h.mgr, func(t *Table) (lookupResult, error) {
		b, ok := t.Lookup(path)
		return lookupResult{b, ok}, nil
	})
	if err != nil {
		// Lookup's callback never returns an error; guard anyway so a
		// future change to the callback can't silently swallow one.
		log.Printf("[confighub] unexpected lookup error: %v", err)
	}
	return res.backend, res.found
}

// Current returns a copy of the currently published table.
func (h *Hub) Current() Table {
	cur, _ := resourcemanager.Read(h.mgr, func(t *Table) (Table, error) { return *t, nil })
	return cur
}

// Update publishes next as the new table and releases the table it
// displaces once every in-flight Lookup has finished with it. The
// reclaim wait runs on a background goroutine so Update itself never
// blocks on readers.
func (h *Hub) Update(next Table) {
	if h.wal != nil {
		data, err := json.Marshal(next)
		if err != nil {
			log.Printf("[confighub] failed to marshal routing table for audit: %v", err)
		} else if err := h.wal.Append(audit.NewRecord(audit.RecordConfigUpdate, h.seq.Next(), data)); err != nil {
			log.Printf("[confighub] failed to append audit record: %v", err)
		}
	}

	old, epoch := h.mgr.Update(&next)
	if old == nil {
		return
	}
	go func() {
		defer errs.RecoverAndReport()
		h.mgr.WaitReclaim(epoch)
		if h.met != nil {
			h.met.Reclaims.Inc()
		}
		log.Printf("[confighub] reclaimed routing table at epoch %d (%d routes retired)", epoch, len(old.Routes))
	}()
}

// Close retires the current table and waits for it to become safe
// to drop, for use during shutdown once readers have quiesced.
func (h *Hub) Close() {
	h.mgr.Close()
}
