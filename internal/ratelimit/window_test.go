package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func TestFixedWindow_LimitSequence(t *testing.T) {
	limiter := NewFixedWindow(3, 60*time.Second)

	for i := 1; i <= 3; i++ {
		d := limiter.CheckAndConsume("client", epoch.Add(time.Duration(i)*time.Second))
		if !d.Allowed {
			t.Fatalf("call %d rejected, want admitted", i)
		}
		if d.Remaining != 3-i {
			t.Errorf("call %d remaining = %d, want %d", i, d.Remaining, 3-i)
		}
	}

	now := epoch.Add(10 * time.Second)
	d := limiter.CheckAndConsume("client", now)
	if d.Allowed {
		t.Fatal("4th call admitted, want rate limited")
	}
	// The window opened at epoch+1s and lasts 60s.
	if want := 51 * time.Second; d.RetryAfter != want {
		t.Errorf("RetryAfter = %v, want %v", d.RetryAfter, want)
	}
	if want := epoch.Add(61 * time.Second); !d.ResetAt.Equal(want) {
		t.Errorf("ResetAt = %v, want %v", d.ResetAt, want)
	}

	// Past the boundary a fresh window starts with count 1.
	d = limiter.CheckAndConsume("client", epoch.Add(62*time.Second))
	if !d.Allowed {
		t.Fatal("call after window boundary rejected")
	}
	if d.Remaining != 2 {
		t.Errorf("remaining after reset = %d, want 2 (count 1)", d.Remaining)
	}
}

func TestFixedWindow_BoundaryIsExclusive(t *testing.T) {
	limiter := NewFixedWindow(1, time.Minute)

	if d := limiter.CheckAndConsume("c", epoch); !d.Allowed {
		t.Fatal("first call rejected")
	}
	if d := limiter.CheckAndConsume("c", epoch.Add(time.Minute-time.Nanosecond)); d.Allowed {
		t.Fatal("call inside window admitted")
	} else if d.RetryAfter != time.Nanosecond {
		t.Errorf("RetryAfter = %v, want 1ns", d.RetryAfter)
	}
	if d := limiter.CheckAndConsume("c", epoch.Add(time.Minute)); !d.Allowed {
		t.Fatal("call at window end rejected; window should have reset")
	}
}

func TestFixedWindow_BurstAcrossEdge(t *testing.T) {
	limiter := NewFixedWindow(2, time.Minute)

	admitted := 0
	for _, offset := range []time.Duration{59 * time.Second, 59 * time.Second, 60 * time.Second, 121 * time.Second, 121 * time.Second} {
		if limiter.CheckAndConsume("c", epoch.Add(offset)).Allowed {
			admitted++
		}
	}
	// 59s opens a window [59s,119s): two admitted, the 60s call rejected.
	// 121s opens a new window: two admitted.
	if admitted != 4 {
		t.Errorf("admitted = %d, want 4", admitted)
	}
}

func TestFixedWindow_ClientsIndependent(t *testing.T) {
	limiter := NewFixedWindow(1, time.Minute)

	if !limiter.CheckAndConsume("a", epoch).Allowed {
		t.Fatal("a rejected")
	}
	if limiter.CheckAndConsume("a", epoch).Allowed {
		t.Fatal("a admitted twice")
	}
	if !limiter.CheckAndConsume("b", epoch).Allowed {
		t.Fatal("b rejected because of a")
	}
}

func TestFixedWindow_ConcurrentAdmissions(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		limit int
	}{
		{name: "more callers than limit", n: 200, limit: 25},
		{name: "fewer callers than limit", n: 10, limit: 25},
		{name: "equal", n: 25, limit: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := NewFixedWindow(tt.limit, time.Minute)

			var admitted atomic.Int64
			var wg sync.WaitGroup
			start := make(chan struct{})
			for i := 0; i < tt.n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					if limiter.CheckAndConsume("shared", epoch).Allowed {
						admitted.Add(1)
					}
				}()
			}
			close(start)
			wg.Wait()

			want := int64(min(tt.n, tt.limit))
			if admitted.Load() != want {
				t.Errorf("admitted = %d, want %d", admitted.Load(), want)
			}
		})
	}
}

func TestFixedWindow_Sweep(t *testing.T) {
	limiter := NewFixedWindow(1, time.Minute)

	limiter.CheckAndConsume("old", epoch)
	limiter.CheckAndConsume("new", epoch.Add(90*time.Second))

	if removed := limiter.Sweep(epoch.Add(100 * time.Second)); removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}
	if limiter.Len() != 1 {
		t.Errorf("Len() = %d, want 1", limiter.Len())
	}

	// The live window still enforces its count.
	if limiter.CheckAndConsume("new", epoch.Add(100*time.Second)).Allowed {
		t.Error("sweep reset a live window")
	}
	// The swept client starts fresh.
	if !limiter.CheckAndConsume("old", epoch.Add(100*time.Second)).Allowed {
		t.Error("swept client rejected")
	}
}

func TestFixedWindow_SweepDuringTraffic(t *testing.T) {
	limiter := NewFixedWindow(5, time.Minute)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if limiter.CheckAndConsume("c", epoch).Allowed {
				admitted.Add(1)
			}
		}()
		go func() {
			defer wg.Done()
			// Nothing has ended at epoch, so nothing may be swept.
			limiter.Sweep(epoch)
		}()
	}
	wg.Wait()

	if admitted.Load() != 5 {
		t.Errorf("admitted = %d, want 5", admitted.Load())
	}
}

func TestFixedWindow_Janitor(t *testing.T) {
	limiter := NewFixedWindow(1, time.Millisecond)
	limiter.CheckAndConsume("c", epoch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	limiter.StartJanitor(ctx, 5*time.Millisecond, ClockFunc(func() time.Time {
		return epoch.Add(time.Hour)
	}))

	deadline := time.Now().Add(2 * time.Second)
	for limiter.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("janitor did not sweep the ended window")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
