// Package apilog keeps a memory-bounded log of recent API calls,
// the use case the original C++ AtomicList.h comment names
// explicitly: "used to keep the most recent API calls and to be
// able to deliver them via some API." It is a thin adapter over
// boundedlist.BoundedList, in the shape of the teacher's
// service/order_service.go (one struct owning the write path).
package apilog

import (
	"encoding/json"
	"log"
	"time"
	"unsafe"

	"github.com/neunhoef/resource-manager/boundedlist"
	"github.com/neunhoef/resource-manager/internal/archive"
	"github.com/neunhoef/resource-manager/internal/audit"
	"github.com/neunhoef/resource-manager/internal/metrics"
	"github.com/neunhoef/resource-manager/internal/sequence"
)

// CallRecord is one logged API call.
type CallRecord struct {
	Seq      uint64        `json:"seq"`
	Method   string        `json:"method"`
	Path     string        `json:"path"`
	Status   int           `json:"status"`
	Duration time.Duration `json:"duration_ns"`
	At       time.Time     `json:"at"`
}

// SeqNum satisfies archive.Seqed, keying archived batches by the
// highest sequence number a drained batch contains.
func (r CallRecord) SeqNum() uint64 { return r.Seq }

// MemoryUsage satisfies boundedlist.Sized with a rough estimate:
// the struct itself plus the two variable-length strings.
func (r CallRecord) MemoryUsage() uint64 {
	return uint64(unsafe.Sizeof(r)) + uint64(len(r.Method)) + uint64(len(r.Path))
}

// Log is the recent-call log for one service.
type Log struct {
	list *boundedlist.List[CallRecord]
	seq  *sequence.Sequencer
	wal  *audit.WAL
	met  *metrics.Registry
}

// SetMetrics attaches a metrics.Registry that Archive reports
// batch/item counts into. Nil (the default) means no metrics are
// reported.
func (g *Log) SetMetrics(m *metrics.Registry) {
	g.met = m
}

// New constructs a Log bounding memory usage by memoryThreshold
// bytes per segment, retaining maxHistory rotated segments. It keeps
// no audit trail; use NewAudited for a durable record of every call.
func New(memoryThreshold uint64, maxHistory int) (*Log, error) {
	l, err := boundedlist.New[CallRecord](memoryThreshold, maxHistory)
	if err != nil {
		return nil, err
	}
	return &Log{list: l, seq: sequence.New(0)}, nil
}

// NewAudited constructs a Log that also appends every Record to wal,
// so the in-memory bounded history (which evicts under memory
// pressure) can be reconstructed past its own horizon.
func NewAudited(memoryThreshold uint64, maxHistory int, wal *audit.WAL) (*Log, error) {
	l, err := boundedlist.New[CallRecord](memoryThreshold, maxHistory)
	if err != nil {
		return nil, err
	}
	return &Log{list: l, seq: sequence.New(0), wal: wal}, nil
}

// Record appends one call to the log, stamping it with the next
// sequence number.
func (g *Log) Record(method, path string, status int, d time.Duration) CallRecord {
	rec := CallRecord{
		Seq:      g.seq.Next(),
		Method:   method,
		Path:     path,
		Status:   status,
		Duration: d,
		At:       time.Now(),
	}
	g.list.Prepend(rec)

	if g.wal != nil {
		if data, err := json.Marshal(rec); err != nil {
			log.Printf("[apilog] failed to marshal call record for audit: %v", err)
		} else if err := g.wal.Append(audit.NewRecord(audit.RecordAPICall, rec.Seq, data)); err != nil {
			log.Printf("[apilog] failed to append audit record: %v", err)
		}
	}

	return rec
}

// Recent materializes every retained call, newest first, by driving
// a ForItems walk into a slice.
func (g *Log) Recent() []CallRecord {
	var out []CallRecord
	g.list.ForItems(func(r CallRecord) {
		out = append(out, r)
	})
	return out
}

// ClearTrash drops rotated-out segments that are no longer
// reachable from Recent, returning the count of segments freed.
func (g *Log) ClearTrash() int {
	return g.list.ClearTrash()
}

// RotationCount returns the number of BoundedList segment rotations
// performed over this Log's lifetime.
func (g *Log) RotationCount() uint64 {
	return g.list.Rotations()
}

// Archive drains every segment queued for destruction into store
// before they are dropped, so calls that have scrolled past Recent's
// horizon remain durably queryable. It returns the number of calls
// archived.
func (g *Log) Archive(store *archive.Store) (int, error) {
	var batch []CallRecord
	g.list.DrainTrash(func(r CallRecord) { batch = append(batch, r) })
	if err := archive.PutBatch(store, batch); err != nil {
		return 0, err
	}
	if g.met != nil && len(batch) > 0 {
		g.met.ArchivedBatches.Inc()
		g.met.ArchivedItems.Add(float64(len(batch)))
	}
	return len(batch), nil
}
