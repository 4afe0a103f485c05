package service_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestConcurrentBidWithdrawal simulates N goroutines racing to withdraw the
// same bid — protected by a mutex guarding a one-shot state flag.  This test
// verifies our idempotency guard pattern compiles and passes -race.
//
// In the real BidRepository the conditional UPDATE on {id, bidder, active}
// provides this guarantee.  Here we replicate the same guard with sync
// primitives so the race detector can confirm the pattern is sound.
func TestConcurrentBidWithdrawal(t *testing.T) {
	const workers = 50

	type bidState struct {
		mu        sync.Mutex
		withdrawn bool
	}

	var (
		b      bidState
		wins   int64
		losses int64
		wg     sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			b.mu.Lock()
			defer b.mu.Unlock()

			if b.withdrawn {
				// Late caller: conditional update matched zero rows.
				atomic.AddInt64(&losses, 1)
				return
			}
			b.withdrawn = true
			atomic.AddInt64(&wins, 1)
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("exactly 1 goroutine should have withdrawn the bid, got %d", wins)
	}
	if losses != workers-1 {
		t.Errorf("expected %d rejections, got %d", workers-1, losses)
	}
}

// TestConcurrentLifecycleTransition verifies that a withdraw and an accept
// racing on the same active listing resolve to exactly one terminal state,
// mirroring the single conditional UPDATE on {id, seller, active}.
func TestConcurrentLifecycleTransition(t *testing.T) {
	const attempts = 40

	type listingState struct {
		mu     sync.Mutex
		status string
	}

	l := listingState{status: "active"}
	var transitions int64
	var wg sync.WaitGroup

	for i := 0; i < attempts; i++ {
		target := "withdrawn"
		if i%2 == 0 {
			target = "sold"
		}
		wg.Add(1)
		go func(target string) {
			defer wg.Done()

			l.mu.Lock()
			defer l.mu.Unlock()

			if l.status != "active" {
				return
			}
			l.status = target
			atomic.AddInt64(&transitions, 1)
		}(target)
	}
	wg.Wait()

	if transitions != 1 {
		t.Errorf("exactly 1 transition should win, got %d", transitions)
	}
	if l.status == "active" {
		t.Error("listing should have reached a terminal state")
	}
}

// TestConcurrentFeedMerge replicates the projector's last-writer-wins merge:
// out-of-order applies of timestamped snapshots must converge on the snapshot
// with the greatest logical timestamp, regardless of arrival order.
func TestConcurrentFeedMerge(t *testing.T) {
	const snapshots = 30
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	type entryState struct {
		mu            sync.Mutex
		lastUpdatedAt time.Time
		title         string
	}

	var e entryState
	var wg sync.WaitGroup

	for i := 0; i < snapshots; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		title := "rev-" + ts.Format("150405")
		wg.Add(1)
		go func(ts time.Time, title string) {
			defer wg.Done()

			e.mu.Lock()
			defer e.mu.Unlock()

			// Merge rule: apply only when not older than the stored state.
			if ts.Before(e.lastUpdatedAt) {
				return
			}
			e.lastUpdatedAt = ts
			e.title = title
		}(ts, title)
	}
	wg.Wait()

	latest := base.Add((snapshots - 1) * time.Second)
	if !e.lastUpdatedAt.Equal(latest) {
		t.Errorf("merge converged on %v, want %v", e.lastUpdatedAt, latest)
	}
	if e.title != "rev-"+latest.Format("150405") {
		t.Errorf("merged title = %q does not match winning snapshot", e.title)
	}
}
