// Package ratelimit provides per-client fixed-window request limiting.
//
// # Algorithm
//
// Each client owns one window {start, count}. A call that lands at or after
// start+length opens a new window starting at that call; otherwise the call is
// admitted while count < limit. Admission is decided before incrementing.
//
// Fixed windows are approximate: a client can pass up to 2x the limit across
// a window edge (limit at the end of one window, limit again at the start of
// the next). This is accepted behaviour.
//
// # Thread Safety
//
// Windows live in a sync.Map and each carries its own mutex, so the
// check-then-increment is a single critical section per client and distinct
// clients never contend.
//
//	limiter := ratelimit.NewFixedWindow(60, time.Minute)
//	if d := limiter.CheckAndConsume("client-a", time.Now()); !d.Allowed {
//	    // reject, retry after d.RetryAfter
//	}
package ratelimit
