// Package archive drains BoundedList trash segments into a durable,
// compressed key-value store before they are garbage collected,
// adapted from the teacher's infra/wal/exit.ExitWAL (which durably
// tracked outbox state in Pebble rather than losing it on process
// exit). Where the teacher keyed by order ID, archive keys by the
// highest sequence number in a batch of drained items.
package archive

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/klauspost/compress/zstd"
)

// Store is the archival sink for one BoundedList's trashed history.
// Batches are stored JSON-encoded and zstd-compressed, keyed by the
// highest sequence number in the batch so lookups by "everything up
// to seq N" are a simple prefix-ordered scan.
type Store struct {
	db  *pebble.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Open creates or resumes a Store rooted at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{DisableWAL: false})
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, enc: enc, dec: dec}, nil
}

// Close releases the underlying database and codecs.
func (s *Store) Close() error {
	s.dec.Close()
	_ = s.enc.Close()
	return s.db.Close()
}

// PutBatch compresses and durably stores items, keyed by the highest
// Seq among them. It is the counterpart to a BoundedList.DrainTrash
// call: the caller accumulates one generation's worth of drained
// items and hands them here as a unit.
func PutBatch[T Seqed](s *Store, items []T) error {
	if len(items) == 0 {
		return nil
	}

	var maxSeq uint64
	for _, it := range items {
		if seq := it.SeqNum(); seq > maxSeq {
			maxSeq = seq
		}
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("archive: marshal batch: %w", err)
	}

	compressed := s.enc.EncodeAll(raw, nil)
	return s.db.Set(keyFor(maxSeq), compressed, pebble.Sync)
}

// GetBatch decompresses and decodes the batch keyed by maxSeq.
func GetBatch[T any](s *Store, maxSeq uint64) ([]T, error) {
	val, closer, err := s.db.Get(keyFor(maxSeq))
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	raw, err := s.dec.DecodeAll(val, nil)
	if err != nil {
		return nil, fmt.Errorf("archive: decompress batch: %w", err)
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("archive: unmarshal batch: %w", err)
	}
	return items, nil
}

// ScanKeys visits every stored batch's key (its maximum sequence
// number) in ascending order, oldest batch first.
func (s *Store) ScanKeys(fn func(maxSeq uint64) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("batch/"),
		UpperBound: []byte("batch/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		if err := fn(seq); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Seqed is the constraint archived item types must satisfy: a stable
// sequence number to key batches by.
type Seqed interface {
	SeqNum() uint64
}

func keyFor(maxSeq uint64) []byte {
	return []byte(fmt.Sprintf("batch/%020d", maxSeq))
}

func parseKey(b []byte) (uint64, error) {
	var id uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte("batch/"))), "%020d", &id)
	return id, err
}
