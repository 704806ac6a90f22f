// Package audit is a length-prefixed, CRC32-checked write-ahead
// log of calls into the demo service (config updates, recorded API
// calls) — adapted from the teacher's infra/wal/entry package frame
// layout and rotation policy. It audits the *service's* call
// history, never the core primitives' own state: ResourceManager
// and BoundedList remain in-memory-only, per spec.md's persistence
// non-goal.
package audit

import "time"

// RecordType distinguishes the kind of call being audited.
type RecordType uint8

const (
	RecordConfigUpdate RecordType = iota
	RecordAPICall
)

// Record is one audited call.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

// NewRecord stamps data with the current time.
func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{Type: t, Seq: seq, Time: time.Now().UnixNano(), Data: data}
}
