package apilog

import (
	"testing"

	"github.com/neunhoef/resource-manager/internal/archive"
	"github.com/neunhoef/resource-manager/internal/audit"
)

func TestRecordAndRecentOrdering(t *testing.T) {
	l, err := New(1<<20, 4)
	if err != nil {
		t.Fatal(err)
	}

	l.Record("GET", "/a", 200, 0)
	l.Record("GET", "/b", 200, 0)
	l.Record("GET", "/c", 500, 0)

	recent := l.Recent()
	if len(recent) != 3 {
		t.Fatalf("expected 3 recent calls, got %d", len(recent))
	}
	if recent[0].Path != "/c" || recent[2].Path != "/a" {
		t.Fatalf("expected newest-first ordering, got %+v", recent)
	}
	if recent[0].Seq <= recent[1].Seq {
		t.Fatalf("expected strictly decreasing sequence numbers walking backward in time")
	}
}

func TestAuditedLogReplaysToSameRecords(t *testing.T) {
	dir := t.TempDir()
	wal, err := audit.Open(audit.Config{Dir: dir, SegmentSize: 1 << 20})
	if err != nil {
		t.Fatal(err)
	}

	l, err := NewAudited(1<<20, 4, wal)
	if err != nil {
		t.Fatal(err)
	}
	l.Record("GET", "/a", 200, 0)
	l.Record("POST", "/b", 201, 0)
	if err := wal.Close(); err != nil {
		t.Fatal(err)
	}

	var replayed []string
	if _, err := audit.Replay(dir, func(r *audit.Record) error {
		replayed = append(replayed, string(r.Data))
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if len(replayed) != 2 {
		t.Fatalf("expected 2 replayed audit records, got %d", len(replayed))
	}
}

func TestArchiveDrainsTrashIntoStore(t *testing.T) {
	l, err := New(64, 2) // tiny threshold: one record already exceeds it, forcing rotation every call.
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		l.Record("GET", "/x", 200, 0)
	}

	store, err := archive.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	n, err := l.Archive(store)
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 {
		t.Fatal("expected some records to have rotated into trash and been archived")
	}
}

func TestRotationCountTracksUnderlyingList(t *testing.T) {
	l, err := New(64, 2)
	if err != nil {
		t.Fatal(err)
	}
	if l.RotationCount() != 0 {
		t.Fatalf("expected 0 rotations before any record, got %d", l.RotationCount())
	}
	for i := 0; i < 5; i++ {
		l.Record("GET", "/x", 200, 0)
	}
	if l.RotationCount() == 0 {
		t.Fatal("expected some rotations with a threshold smaller than one record")
	}
}

func TestClearTrashIdempotentOnEmptyLog(t *testing.T) {
	l, err := New(1<<20, 2)
	if err != nil {
		t.Fatal(err)
	}
	if n := l.ClearTrash(); n != 0 {
		t.Fatalf("expected 0 on empty trash, got %d", n)
	}
}
