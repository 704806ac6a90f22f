package resourcemanager

import (
	"sync"
	"testing"
	"time"
)

type str string

func TestBasicRoundTrip(t *testing.T) {
	a := str("A")
	m := New(&a)

	n, err := Read(m, func(res *str) (int, error) { return len(*res), nil })
	if err != nil || n != 1 {
		t.Fatalf("expected length 1, nil error, got %d, %v", n, err)
	}

	bb := str("BB")
	old, e := m.Update(&bb)
	if *old != "A" {
		t.Fatalf("expected displaced resource A, got %v", *old)
	}
	if !m.CanReclaim(e) {
		t.Fatal("expected reclaim to be immediately safe with no live readers")
	}

	n, err = Read(m, func(res *str) (int, error) { return len(*res), nil })
	if err != nil || n != 2 {
		t.Fatalf("expected length 2, nil error, got %d, %v", n, err)
	}
}

func TestReaderBlocksReclaim(t *testing.T) {
	a := str("A")
	m := New(&a)

	release := make(chan struct{})
	readerEntered := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = m.Read(func(*str) error {
			close(readerEntered)
			<-release
			return nil
		})
	}()
	<-readerEntered

	x := str("X")
	_, e := m.Update(&x)

	if m.CanReclaim(e) {
		t.Fatal("expected reclaim to be blocked while reader is active")
	}

	close(release)
	wg.Wait()
	m.WaitReclaim(e)
	if !m.CanReclaim(e) {
		t.Fatal("expected reclaim to succeed once reader exits")
	}
}

func TestUpdateSequenceReturnsDisplacedValuesAndIncreasingEpochs(t *testing.T) {
	x := str("x")
	m := New(&x)

	y := str("y")
	old1, e1 := m.Update(&y)
	z := str("z")
	old2, e2 := m.Update(&z)

	if *old1 != "x" || *old2 != "y" {
		t.Fatalf("unexpected displaced values: %v, %v", *old1, *old2)
	}
	if e2-e1 != 1 {
		t.Fatalf("expected consecutive epochs to differ by 1, got %d and %d", e1, e2)
	}
}

func TestCollisionAcrossAllSlots(t *testing.T) {
	a := str("A")
	m := New(&a)

	const readers = 130
	var ready sync.WaitGroup
	var done sync.WaitGroup
	start := make(chan struct{})
	block := make(chan struct{})

	ready.Add(readers)
	done.Add(readers)
	for i := 0; i < readers; i++ {
		go func() {
			ready.Done()
			<-start
			defer done.Done()
			_ = m.Read(func(*str) error {
				<-block
				return nil
			})
		}()
	}
	ready.Wait()
	close(start)

	// Give every goroutine a chance to announce its slot before releasing.
	time.Sleep(10 * time.Millisecond)
	close(block)
	done.Wait()

	if !m.CanReclaim(^uint64(0) - 1) {
		t.Fatal("expected all slots free once every reader has completed")
	}
}

func TestCloseReturnsLastResourceAfterQuiescence(t *testing.T) {
	a := str("A")
	m := New(&a)

	got := m.Close()
	if got == nil || *got != "A" {
		t.Fatalf("expected Close to return the last published resource, got %v", got)
	}

	n, err := Read(m, func(res *str) (int, error) { return len(*res), nil })
	if err != nil || n != 0 {
		t.Fatalf("expected reads after Close to see no resource, got %d, %v", n, err)
	}
}
