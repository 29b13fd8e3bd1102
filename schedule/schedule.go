// Package schedule provides a sample accurate queue of deferred callbacks.
//
// A Scheduler belongs to a single graph node. Callbacks may be scheduled from
// any goroutine, but they are executed only by the goroutine that renders the
// node, in order of their trigger time. Callbacks with equal trigger time are
// executed in the order they were scheduled.
package schedule

import (
	"container/heap"
	"sync/atomic"
)

// Func is a deferred callback. It receives the time step it is executed at,
// which is never earlier than the requested trigger time.
type Func func(t uint64)

// Scheduler is a per-node queue of one-shot callbacks keyed by sample time.
//
// Schedule pushes into a lock-free inbox with a single compare-and-swap.
// Run drains the whole inbox with one swap and keeps the pending callbacks
// in a min-heap owned by the rendering goroutine, so both sides have bounded
// cost per callback.
type Scheduler struct {
	inbox   atomic.Pointer[callback]
	seq     atomic.Uint64
	pending callbacks
}

type callback struct {
	at   uint64
	seq  uint64
	fn   Func
	next *callback
}

// New returns an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Schedule enqueues fn to be executed at time step at. If at is not later than
// the time of the next Run, fn is executed on that Run. It is safe to call
// Schedule from any goroutine, including from a callback during Run.
func (s *Scheduler) Schedule(at uint64, fn Func) {
	c := &callback{
		at:  at,
		seq: s.seq.Add(1),
		fn:  fn,
	}
	for {
		head := s.inbox.Load()
		c.next = head
		if s.inbox.CompareAndSwap(head, c) {
			return
		}
	}
}

// Run executes, in (time, insertion) order, every callback with trigger time
// less than or equal to t. Callbacks scheduled by other callbacks for a time
// not later than t are executed within the same Run.
func (s *Scheduler) Run(t uint64) {
	for {
		s.drain()
		if len(s.pending) == 0 || s.pending[0].at > t {
			return
		}
		c := heap.Pop(&s.pending).(*callback)
		c.fn(t)
	}
}

// Next returns the earliest pending trigger time. Second value is false if
// there is nothing scheduled. It must be called from the rendering goroutine.
func (s *Scheduler) Next() (uint64, bool) {
	s.drain()
	if len(s.pending) == 0 {
		return 0, false
	}
	return s.pending[0].at, true
}

// Len returns the number of pending callbacks. It must be called from the
// rendering goroutine.
func (s *Scheduler) Len() int {
	s.drain()
	return len(s.pending)
}

// drain moves everything from the inbox into the heap.
func (s *Scheduler) drain() {
	c := s.inbox.Swap(nil)
	for c != nil {
		next := c.next
		c.next = nil
		heap.Push(&s.pending, c)
		c = next
	}
}

// callbacks implements heap.Interface as a min-heap ordered by trigger time
// with FIFO tie-breaking on seq.
type callbacks []*callback

func (h callbacks) Len() int { return len(h) }

func (h callbacks) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

func (h callbacks) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *callbacks) Push(x any) {
	*h = append(*h, x.(*callback))
}

func (h *callbacks) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return c
}
