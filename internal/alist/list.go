// Package alist implements AtomicSinglyList: a lock-free,
// prepend-only singly linked list with snapshot reads. It is the
// segment type boundedlist.BoundedList rotates through; nothing
// outside this module is expected to use it directly.
package alist

import "sync/atomic"

// node is privately owned by the List it belongs to; once linked, a
// node's next is never mutated again.
type node[T any] struct {
	value T
	next  *node[T]
}

// List is a lock-free prepend-only singly linked list. The zero
// value is an empty, ready-to-use list.
//
// Destroying a List (simply letting it become unreachable) is only
// safe once nothing is concurrently prepending to it or holding a
// Snapshot obtained from it — the list itself enforces none of
// this; callers (boundedlist.BoundedList) must guarantee quiescence.
type List[T any] struct {
	head atomic.Pointer[node[T]]
}

// Prepend adds value to the front of the list. It never blocks and
// never fails observably: Go's allocator either succeeds or the
// runtime terminates the process, so there is no "dropped on
// allocation failure" path to model here, unlike the C++ original.
//
// The successful CAS uses release ordering; a failed attempt reloads
// head with acquire ordering before retrying. This pairs with the
// acquire load in Snapshot so that a reader reaching a node observes
// every store the prepender performed into that node before
// publication.
func (l *List[T]) Prepend(value T) {
	n := &node[T]{value: value}
	for {
		old := l.head.Load()
		n.next = old
		if l.head.CompareAndSwap(old, n) {
			return
		}
	}
}

// Snapshot returns the current head node, observed with acquire
// ordering. The returned node, and every node reachable from it via
// Next, remain valid for as long as the owning List is reachable;
// callers must not mutate or free them.
func (l *List[T]) Snapshot() *Node[T] {
	return (*Node[T])(l.head.Load())
}

// Node is the read-only view of a list node exposed to callers.
type Node[T any] node[T]

// Value returns the value stored in n.
func (n *Node[T]) Value() T {
	return n.value
}

// Next returns the next node in the chain, or nil at the end of the
// list.
func (n *Node[T]) Next() *Node[T] {
	return (*Node[T])(n.next)
}
