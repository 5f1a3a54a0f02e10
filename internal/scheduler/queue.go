package scheduler

import (
	"container/heap"
	"time"
)

// Reminder is one pending firing.
type Reminder struct {
	At     time.Time
	Line   string // line text as it stands in the file; the firing key
	Source string // line text as scanned, before any stamp was added
	LineNo int
}

// queue is a min-heap on At, deduplicated by Line.
type queue struct {
	items reminderHeap
	keys  map[string]struct{}
}

func newQueue() *queue {
	return &queue{keys: map[string]struct{}{}}
}

// push adds r unless a reminder with the same line is already pending.
func (q *queue) push(r Reminder) bool {
	if _, dup := q.keys[r.Line]; dup {
		return false
	}
	q.keys[r.Line] = struct{}{}
	heap.Push(&q.items, r)
	return true
}

func (q *queue) peek() (Reminder, bool) {
	if len(q.items) == 0 {
		return Reminder{}, false
	}
	return q.items[0], true
}

func (q *queue) pop() (Reminder, bool) {
	if len(q.items) == 0 {
		return Reminder{}, false
	}
	r := heap.Pop(&q.items).(Reminder)
	delete(q.keys, r.Line)
	return r, true
}

func (q *queue) len() int { return len(q.items) }

type reminderHeap []Reminder

func (h reminderHeap) Len() int { return len(h) }

func (h reminderHeap) Less(i, j int) bool {
	if h[i].At.Equal(h[j].At) {
		return h[i].LineNo < h[j].LineNo
	}
	return h[i].At.Before(h[j].At)
}

func (h reminderHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *reminderHeap) Push(x any) { *h = append(*h, x.(Reminder)) }

func (h *reminderHeap) Pop() any {
	old := *h
	n := len(old)
	r := old[n-1]
	*h = old[:n-1]
	return r
}
