package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the outcome of a CheckAndConsume call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration // zero when Allowed
}

type window struct {
	mu      sync.Mutex
	start   time.Time
	count   int
	evicted bool
}

// FixedWindow admits at most limit requests per client per window.
type FixedWindow struct {
	limit   int
	length  time.Duration
	windows sync.Map // client id -> *window
}

// NewFixedWindow creates a limiter allowing limit requests per length.
func NewFixedWindow(limit int, length time.Duration) *FixedWindow {
	return &FixedWindow{
		limit:  limit,
		length: length,
	}
}

// Limit returns the configured per-window limit.
func (l *FixedWindow) Limit() int { return l.limit }

// Window returns the configured window length.
func (l *FixedWindow) Window() time.Duration { return l.length }

// CheckAndConsume admits or rejects one request for clientID at now.
func (l *FixedWindow) CheckAndConsume(clientID string, now time.Time) Decision {
	for {
		v, _ := l.windows.LoadOrStore(clientID, &window{})
		w := v.(*window)

		w.mu.Lock()
		if w.evicted {
			// Swept between load and lock; pick up the replacement.
			w.mu.Unlock()
			continue
		}
		d := l.consume(w, now)
		w.mu.Unlock()
		return d
	}
}

// consume must be called with w.mu held.
func (l *FixedWindow) consume(w *window, now time.Time) Decision {
	end := w.start.Add(l.length)
	if w.start.IsZero() || !now.Before(end) {
		w.start = now
		w.count = 0
		end = now.Add(l.length)
	}

	if w.count < l.limit {
		w.count++
		return Decision{
			Allowed:   true,
			Limit:     l.limit,
			Remaining: l.limit - w.count,
			ResetAt:   end,
		}
	}

	return Decision{
		Allowed:    false,
		Limit:      l.limit,
		Remaining:  0,
		ResetAt:    end,
		RetryAfter: end.Sub(now),
	}
}

// Sweep drops windows that have ended by now. A dropped window would have
// been reset by the next call anyway, so sweeping never changes a decision.
// It returns the number of windows removed.
func (l *FixedWindow) Sweep(now time.Time) int {
	removed := 0
	l.windows.Range(func(key, v any) bool {
		w := v.(*window)
		w.mu.Lock()
		if !w.evicted && !now.Before(w.start.Add(l.length)) {
			w.evicted = true
			l.windows.CompareAndDelete(key, w)
			removed++
		}
		w.mu.Unlock()
		return true
	})
	return removed
}

// Len returns the number of tracked client windows.
func (l *FixedWindow) Len() int {
	n := 0
	l.windows.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// StartJanitor sweeps ended windows every interval until ctx is cancelled.
func (l *FixedWindow) StartJanitor(ctx context.Context, every time.Duration, clock Clock) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Sweep(clock.Now())
			}
		}
	}()
}
