package relay

import (
	"sync"
	"time"
)

// abandonedTTL bounds how long a timed-out command id is remembered so that
// its late result can be recognized and dropped.
const abandonedTTL = 5 * time.Minute

// Rendezvous pairs each eventual result with the caller waiting for it.
// Waiters are keyed by command id, so concurrent callers can never receive
// each other's results; a result whose waiter already gave up is dropped.
type Rendezvous struct {
	mu        sync.Mutex
	waiters   map[string]*waiter
	abandoned map[string]time.Time
	dropped   int
}

// waiter tracks one caller blocked on a command's result.
type waiter struct {
	id        string
	ch        chan *Result
	closeOnce sync.Once
}

// NewRendezvous creates an empty rendezvous table.
func NewRendezvous() *Rendezvous {
	return &Rendezvous{
		waiters:   make(map[string]*waiter),
		abandoned: make(map[string]time.Time),
	}
}

// register creates and stores a waiter for the given command id. The channel
// is buffered so delivery never blocks the executor's posting goroutine.
func (rv *Rendezvous) register(id string) *waiter {
	w := &waiter{
		id: id,
		ch: make(chan *Result, 1),
	}

	rv.mu.Lock()
	defer rv.mu.Unlock()

	rv.pruneAbandonedLocked()
	delete(rv.abandoned, id)
	rv.waiters[id] = w
	return w
}

// remove cleans up a waiter and closes its channel exactly once. Safe to
// call after Resolve already removed it.
func (rv *Rendezvous) remove(w *waiter) {
	rv.mu.Lock()
	if existing, ok := rv.waiters[w.id]; ok && existing == w {
		delete(rv.waiters, w.id)
	}
	rv.mu.Unlock()

	w.closeOnce.Do(func() {
		close(w.ch)
	})
}

// expire records that the waiter gave up (timed out or cancelled). The
// waiter is removed and the id marked abandoned in one locked step, so a
// Resolve arriving after expire always reports dropped. If a result was
// already delivered into the waiter's buffer, it is returned instead: the
// executor answered just inside the deadline and Resolve already reported
// delivered, so the caller should use it rather than a timeout outcome.
func (rv *Rendezvous) expire(w *waiter) (*Result, bool) {
	rv.mu.Lock()
	defer rv.mu.Unlock()

	if existing, ok := rv.waiters[w.id]; ok && existing == w {
		delete(rv.waiters, w.id)
	}

	select {
	case res := <-w.ch:
		return res, true
	default:
	}

	rv.pruneAbandonedLocked()
	rv.abandoned[w.id] = time.Now()
	return nil, false
}

// Resolve delivers a result to the waiter registered for its id. It returns
// true when a waiter received the result, false when the result was dropped
// (no waiter: either the wait timed out or the id is unknown).
func (rv *Rendezvous) Resolve(res *Result) bool {
	rv.mu.Lock()
	defer rv.mu.Unlock()

	w, ok := rv.waiters[res.ID]
	if !ok {
		delete(rv.abandoned, res.ID)
		rv.dropped++
		return false
	}

	// Non-blocking send: the channel is buffered size 1, but the waiter may
	// be mid-cleanup. A second result for the same id is dropped.
	select {
	case w.ch <- res:
		delete(rv.waiters, res.ID)
		return true
	default:
		rv.dropped++
		return false
	}
}

// Waiting returns the number of outstanding waiters.
func (rv *Rendezvous) Waiting() int {
	rv.mu.Lock()
	defer rv.mu.Unlock()
	return len(rv.waiters)
}

// Dropped returns how many results arrived with no waiter to receive them.
func (rv *Rendezvous) Dropped() int {
	rv.mu.Lock()
	defer rv.mu.Unlock()
	return rv.dropped
}

// pruneAbandonedLocked evicts abandoned ids older than the TTL.
// Caller must hold rv.mu.
func (rv *Rendezvous) pruneAbandonedLocked() {
	cutoff := time.Now().Add(-abandonedTTL)
	for id, at := range rv.abandoned {
		if at.Before(cutoff) {
			delete(rv.abandoned, id)
		}
	}
}
