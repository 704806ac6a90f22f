package boundedlist

import (
	"testing"

	"pgregory.net/rapid"
)

// itemsInTrash is a white-box helper (same package) that counts
// items across every segment currently queued in trash, used only
// to verify the "total items prepended == visible + trashed"
// invariant before ClearTrash discards the count.
func (l *List[T]) itemsInTrash() int {
	l.mu.Lock()
	segs := append([]*segment[T]{}, l.trash...)
	l.mu.Unlock()

	n := 0
	for _, s := range segs {
		for node := s.list.Snapshot(); node != nil; node = node.Next() {
			n++
		}
	}
	return n
}

func TestPrependCountConservedAcrossRotation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxHistory := rapid.IntRange(2, 6).Draw(rt, "maxHistory")
		threshold := uint64(rapid.IntRange(100, 1000).Draw(rt, "threshold"))
		n := rapid.IntRange(0, 200).Draw(rt, "n")

		l, err := New[payload](threshold, maxHistory)
		if err != nil {
			rt.Fatal(err)
		}

		for i := 0; i < n; i++ {
			l.Prepend(payload{a: int64(i)})
		}

		visible := 0
		l.ForItems(func(payload) { visible++ })
		trashed := l.itemsInTrash()

		if visible+trashed != n {
			rt.Fatalf("expected visible+trashed == %d, got visible=%d trashed=%d", n, visible, trashed)
		}

		// Invariant 4: never more than maxHistory+1 non-trash segments.
		l.mu.Lock()
		live := 1 // current
		for _, s := range l.history {
			if s != nil {
				live++
			}
		}
		l.mu.Unlock()
		if live > maxHistory+1 {
			rt.Fatalf("expected at most %d live segments, got %d", maxHistory+1, live)
		}
	})
}
