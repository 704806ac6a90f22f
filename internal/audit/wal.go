package audit

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
)

// Config controls where the audit trail lives and how segments
// rotate.
type Config struct {
	Dir         string
	SegmentSize int64
}

// WAL is an append-only, size-rotated audit trail. One WAL backs one
// confighub.Hub or apilog.Log, recording every call that mutated or
// was served by it, independent of that primitive's own (volatile)
// in-memory state.
type WAL struct {
	mu       sync.Mutex
	dir      string
	segSize  int64
	current  *segment
	segIndex int
}

// Open creates or resumes an audit trail rooted at cfg.Dir.
func Open(cfg Config) (*WAL, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	segSize := cfg.SegmentSize
	if segSize <= 0 {
		segSize = 8 << 20
	}

	seg, err := openSegment(cfg.Dir, 0)
	if err != nil {
		return nil, err
	}

	return &WAL{dir: cfg.Dir, segSize: segSize, current: seg}, nil
}

// Append writes r to the active segment file (without an fsync),
// rotating to a fresh segment if the current one has crossed the
// configured size.
//
// Frame: [type:1][seq:8][time:8][len:4][payload][crc:4]
func (w *WAL) Append(r *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	payloadLen := uint32(len(r.Data))
	buf := make([]byte, 1+8+8+4+payloadLen+4)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[21:], r.Data)

	crc := crc32sum(buf[:21+payloadLen])
	binary.BigEndian.PutUint32(buf[21+payloadLen:], crc)

	if err := w.current.append(buf); err != nil {
		return err
	}

	if w.current.offset >= w.segSize {
		return w.rotate()
	}
	return nil
}

func (w *WAL) rotate() error {
	_ = w.current.close()
	w.segIndex++

	seg, err := openSegment(w.dir, w.segIndex)
	if err != nil {
		return err
	}
	w.current = seg
	return nil
}

// Close flushes and closes the active segment.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current.close()
}

// TruncateBefore removes every rotated-out segment whose highest
// sequence number is at or below seq. It never touches the active
// segment.
func (w *WAL) TruncateBefore(seq uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(w.dir, "audit-*.log"))
	if err != nil {
		return err
	}

	for _, path := range files {
		if filepath.Base(path) == filepath.Base(w.current.file.Name()) {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			_ = os.Remove(path)
		}
	}
	return nil
}
