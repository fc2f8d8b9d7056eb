package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitPollRoundTrip(t *testing.T) {
	r := New(0, nil)

	id := r.Submit(&Command{Tool: "navigate", Args: map[string]interface{}{"url": "https://example.com"}})
	require.NotEmpty(t, id, "submit must assign an id")

	cmd, ok := r.Poll()
	require.True(t, ok, "first poll must return the command")
	assert.Equal(t, id, cmd.ID)
	assert.Equal(t, "navigate", cmd.Tool)

	_, ok = r.Poll()
	assert.False(t, ok, "second poll must report empty")
}

func TestPostResultUnblocksWaiter(t *testing.T) {
	r := New(0, nil)
	id := r.Submit(&Command{Tool: "click"})

	done := make(chan *Result, 1)
	go func() {
		done <- r.WaitForResult(context.Background(), id, time.Second)
	}()

	// Let the waiter register before posting.
	waitForWaiters(t, r, 1)

	posted := &Result{
		ID:      id,
		Success: true,
		Result:  map[string]interface{}{"clicked": "#a"},
		Ref:     "ref_1",
	}
	assert.True(t, r.PostResult(posted), "result must be delivered")

	select {
	case res := <-done:
		assert.Equal(t, posted, res, "result must be delivered unchanged")
	case <-time.After(time.Second):
		t.Fatal("waiter never unblocked")
	}
}

func TestWaitForResultTimeout(t *testing.T) {
	r := New(0, nil)
	id := r.Submit(&Command{Tool: "navigate", Target: 123})

	start := time.Now()
	res := r.WaitForResult(context.Background(), id, 50*time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, res.Success)
	assert.Equal(t, "timeout", res.Error)
	assert.Equal(t, id, res.ID)
	assert.Less(t, elapsed, 500*time.Millisecond, "timeout must fire near the deadline")
}

func TestLateResultIsDropped(t *testing.T) {
	r := New(0, nil)
	id := r.Submit(&Command{Tool: "navigate"})

	res := r.WaitForResult(context.Background(), id, 20*time.Millisecond)
	require.Equal(t, "timeout", res.Error)

	// A second caller is waiting on a different command. The late result
	// must not reach it.
	otherID := r.Submit(&Command{Tool: "click"})
	otherDone := make(chan *Result, 1)
	go func() {
		otherDone <- r.WaitForResult(context.Background(), otherID, 200*time.Millisecond)
	}()
	waitForWaiters(t, r, 1)

	assert.False(t, r.PostResult(&Result{ID: id, Success: true}), "late result must be dropped")
	assert.Equal(t, 1, r.rdv.Dropped())

	other := <-otherDone
	assert.Equal(t, "timeout", other.Error, "unrelated waiter must not receive the late result")
}

func TestLocalToolBypassesMailbox(t *testing.T) {
	r := New(0, nil)

	res := r.Execute(context.Background(), &Command{Tool: "ping"}, time.Second)

	require.True(t, res.Success)
	assert.Equal(t, true, res.Result["pong"])
	assert.IsType(t, int64(0), res.Result["timestamp"])
	assert.False(t, r.mailbox.Occupied(), "local tools must never occupy the mailbox")
}

func TestRelayStatusTool(t *testing.T) {
	r := New(0, nil)
	r.Submit(&Command{Tool: "navigate"})

	res := r.Execute(context.Background(), &Command{Tool: "relay_status"}, time.Second)

	require.True(t, res.Success)
	assert.Equal(t, true, res.Result["pending"])
	assert.Equal(t, 0, res.Result["waiting"])
}

func TestExecuteRoundTrip(t *testing.T) {
	r := New(0, nil)

	// Fake executor: poll until the command appears, answer it.
	go func() {
		for i := 0; i < 100; i++ {
			if cmd, ok := r.Poll(); ok {
				r.PostResult(&Result{ID: cmd.ID, Success: true, Result: map[string]interface{}{"done": true}})
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	res := r.Execute(context.Background(), &Command{Tool: "navigate"}, 2*time.Second)
	require.True(t, res.Success)
	assert.Equal(t, true, res.Result["done"])
}

func TestConcurrentWaitersAreIndependent(t *testing.T) {
	r := New(0, nil)

	const n = 8
	ids := make([]string, n)
	for i := range ids {
		ids[i] = NewCommandID()
	}

	var wg sync.WaitGroup
	results := make([]*Result, n)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.WaitForResult(context.Background(), ids[i], time.Second)
		}(i)
	}
	waitForWaiters(t, r, n)

	// Deliver in reverse order; each waiter must get exactly its own result.
	for i := n - 1; i >= 0; i-- {
		require.True(t, r.PostResult(&Result{ID: ids[i], Success: true, Result: map[string]interface{}{"i": i}}))
	}
	wg.Wait()

	for i, res := range results {
		assert.Equal(t, ids[i], res.ID)
		assert.Equal(t, i, res.Result["i"])
	}
}

func TestWaitForResultContextCancel(t *testing.T) {
	r := New(0, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan *Result, 1)
	go func() {
		done <- r.WaitForResult(ctx, "c1", time.Second)
	}()
	waitForWaiters(t, r, 1)
	cancel()

	select {
	case res := <-done:
		assert.Equal(t, "cancelled", res.Error)
	case <-time.After(time.Second):
		t.Fatal("cancelled waiter never unblocked")
	}
}

func TestExpireThenResolveReportsDropped(t *testing.T) {
	// A result posted after the waiter expired must never report delivered:
	// expiry removes the waiter and marks the id abandoned atomically.
	rv := NewRendezvous()
	w := rv.register("c1")

	res, ok := rv.expire(w)
	assert.False(t, ok)
	assert.Nil(t, res)

	assert.False(t, rv.Resolve(&Result{ID: "c1", Success: true}), "post-expiry result must be dropped")
	assert.Equal(t, 1, rv.Dropped())
	assert.Equal(t, 0, rv.Waiting())
}

func TestExpireReturnsRacedResult(t *testing.T) {
	// Resolve landed before expiry ran (the deadline and the result raced):
	// Resolve reported delivered, so expire must surface that result rather
	// than letting it be discarded as a timeout.
	rv := NewRendezvous()
	w := rv.register("c1")

	delivered := &Result{ID: "c1", Success: true, Result: map[string]interface{}{"url": "https://example.com/"}}
	require.True(t, rv.Resolve(delivered))

	res, ok := rv.expire(w)
	require.True(t, ok)
	assert.Equal(t, delivered, res)
	assert.Equal(t, 0, rv.Dropped(), "a delivered result is not a drop")
}

func TestExtractRef(t *testing.T) {
	t.Run("explicit field wins", func(t *testing.T) {
		res := &Result{Ref: "ref_1", Result: map[string]interface{}{"ref": "ref_2"}}
		if got := res.ExtractRef(); got != "ref_1" {
			t.Errorf("expected ref_1, got %s", got)
		}
	})

	t.Run("payload key honored", func(t *testing.T) {
		res := &Result{Result: map[string]interface{}{"ref": "ref_2"}}
		if got := res.ExtractRef(); got != "ref_2" {
			t.Errorf("expected ref_2, got %s", got)
		}
	})

	t.Run("no reference", func(t *testing.T) {
		res := &Result{Result: map[string]interface{}{"ok": true}}
		if got := res.ExtractRef(); got != "" {
			t.Errorf("expected empty ref, got %s", got)
		}
	})
}

// waitForWaiters spins until the rendezvous holds n waiters, so tests don't
// race waiter registration.
func waitForWaiters(t *testing.T, r *Relay, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for r.rdv.Waiting() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d waiters, have %d", n, r.rdv.Waiting())
		}
		time.Sleep(time.Millisecond)
	}
}
