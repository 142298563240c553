package ratelimit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rommedia/internal/ratelimit"
	"rommedia/internal/services"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

func newLimiter(clock *fakeClock, perSecond float64, quota int) *ratelimit.Limiter {
	return ratelimit.New(ratelimit.Options{
		RatePerSecond: perSecond,
		DailyQuota:    quota,
		Now:           clock.Now,
		Sleep:         clock.Sleep,
	})
}

func TestAcquireNeverExceedsRateInAnyWindow(t *testing.T) {
	clock := newFakeClock()
	limiter := newLimiter(clock, 2, 100)

	var grants []time.Time
	for i := 0; i < 9; i++ {
		permit, err := limiter.Acquire(context.Background())
		if err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
		grants = append(grants, clock.Now())
		permit.Release()
	}

	for i, end := range grants {
		start := end.Add(-time.Second)
		count := 0
		for _, g := range grants[:i+1] {
			if g.After(start) {
				count++
			}
		}
		if count > 2 {
			t.Fatalf("window ending %v holds %d grants", end.Sub(grants[0]), count)
		}
	}
	if total := grants[len(grants)-1].Sub(grants[0]); total < 4*time.Second {
		t.Fatalf("9 grants at 2/s finished too quickly: %v", total)
	}
}

func TestThreadCapStartsConservative(t *testing.T) {
	clock := newFakeClock()
	limiter := newLimiter(clock, 10, 100)

	first, err := limiter.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		permit, err := limiter.Acquire(context.Background())
		if err == nil {
			permit.Release()
		}
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("second Acquire should block on the single-thread cap, returned %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	limiter.RecordResponse(ratelimit.Quota{MaxThreads: 2})
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("second Acquire: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second Acquire did not proceed after thread cap was raised")
	}
	first.Release()

	if status := limiter.Status(); status.Threads != 2 || status.Active != 0 || !status.Authoritative {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestDailyQuotaFailsFastUntilReset(t *testing.T) {
	clock := newFakeClock()
	limiter := newLimiter(clock, 100, 2)

	for i := 0; i < 2; i++ {
		permit, err := limiter.Acquire(context.Background())
		if err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
		permit.Release()
	}
	if _, err := limiter.Acquire(context.Background()); !errors.Is(err, services.ErrQuotaExhausted) {
		t.Fatalf("expected ErrQuotaExhausted, got %v", err)
	}
	if !limiter.Status().Exhausted {
		t.Fatal("expected exhausted status")
	}

	limiter.Reset()
	permit, err := limiter.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire after Reset: %v", err)
	}
	permit.Release()
}

func TestRecordResponseReconciles(t *testing.T) {
	clock := newFakeClock()
	limiter := newLimiter(clock, 5, 100)

	permit, err := limiter.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	permit.Release()

	limiter.RecordResponse(ratelimit.Quota{
		RequestsToday:     19999,
		MaxRequestsPerDay: 20000,
		MaxRequestsPerMin: 30,
		MaxThreads:        1,
	})
	status := limiter.Status()
	if status.Used != 19999 || status.Limit != 20000 {
		t.Fatalf("unexpected quota counters %+v", status)
	}
	if status.RatePerSecond != 0.5 {
		t.Fatalf("expected rate lowered to 0.5/s, got %v", status.RatePerSecond)
	}

	// Remote usage lower than the local estimate never lowers it.
	limiter.RecordResponse(ratelimit.Quota{RequestsToday: 10})
	if used := limiter.Status().Used; used != 19999 {
		t.Fatalf("used went down to %d", used)
	}

	permit, err = limiter.Acquire(context.Background())
	if err != nil {
		t.Fatalf("last Acquire: %v", err)
	}
	permit.Release()
	if _, err := limiter.Acquire(context.Background()); !errors.Is(err, services.ErrQuotaExhausted) {
		t.Fatalf("expected ErrQuotaExhausted, got %v", err)
	}
}

func TestMarkExhaustedWakesWaiters(t *testing.T) {
	clock := newFakeClock()
	limiter := newLimiter(clock, 10, 100)

	held, err := limiter.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer held.Release()

	done := make(chan error, 1)
	go func() {
		_, err := limiter.Acquire(context.Background())
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	limiter.MarkExhausted()

	select {
	case err := <-done:
		if !errors.Is(err, services.ErrQuotaExhausted) {
			t.Fatalf("expected ErrQuotaExhausted, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not woken by MarkExhausted")
	}
}

func TestAcquireHonoursCancellation(t *testing.T) {
	clock := newFakeClock()
	limiter := newLimiter(clock, 10, 100)

	held, err := limiter.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := limiter.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if used := limiter.Status().Used; used != 1 {
		t.Fatalf("cancelled acquire must not count against quota, used=%d", used)
	}
}

func TestPermitReleaseIsIdempotent(t *testing.T) {
	limiter := newLimiter(newFakeClock(), 10, 100)
	permit, err := limiter.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	permit.Release()
	permit.Release()
	if active := limiter.Status().Active; active != 0 {
		t.Fatalf("active = %d", active)
	}
}
