// Package persist decouples the hot ingestion path from storage I/O: archive
// records are pushed onto a bounded in-memory queue and written out by a
// dedicated drain worker.
package persist

import (
	"sync"

	"github.com/marketglass/footprintd/internal/domain"
)

// Queue is a bounded FIFO of archive records with its own lock, so Enqueue is
// safe to call while the ingestion lock is held and never blocks on I/O.
//
// When the queue is full the OLDEST record is dropped to admit the new one
// (drop-oldest policy): under sustained write failure the freshest windows
// are the ones worth keeping, and the drop is surfaced through Dropped().
type Queue struct {
	mu      sync.Mutex
	buf     []domain.ArchiveRecord
	max     int
	dropped uint64

	// signal wakes the drain worker; buffered so Enqueue never blocks.
	signal chan struct{}
}

// NewQueue creates a queue holding at most max records.
func NewQueue(max int) *Queue {
	return &Queue{
		max:    max,
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends a record without blocking. It reports false when the queue
// was full and the oldest record was evicted to make room.
func (q *Queue) Enqueue(rec domain.ArchiveRecord) bool {
	q.mu.Lock()
	ok := true
	if len(q.buf) >= q.max {
		q.buf = q.buf[1:]
		q.dropped++
		ok = false
	}
	q.buf = append(q.buf, rec)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return ok
}

// Dequeue pops the oldest record, if any.
func (q *Queue) Dequeue() (domain.ArchiveRecord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) == 0 {
		return domain.ArchiveRecord{}, false
	}
	rec := q.buf[0]
	q.buf = q.buf[1:]
	return rec, true
}

// Len returns the number of queued records.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Dropped returns how many records have been evicted due to a full queue.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// wait returns the channel signalled on enqueue.
func (q *Queue) wait() <-chan struct{} { return q.signal }
