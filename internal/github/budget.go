package github

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateBudget tracks the GitHub rate limit shared by all workers of one run.
// Requests block in Wait once the remaining budget drops below the floor, until the window resets.
type RateBudget struct {
	mu        sync.Mutex
	remaining int // -1 until the first response is observed
	reset     time.Time
	floor     int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateBudget returns a budget that pauses below floor remaining requests.
func NewRateBudget(floor int) *RateBudget {
	return &RateBudget{
		remaining: -1,
		floor:     max(floor, 1),
		now:       time.Now,
		sleep:     sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Observe reads the X-RateLimit headers and the Retry-After header of a response.
func (b *RateBudget) Observe(h http.Header) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if v := h.Get("X-RateLimit-Remaining"); v != "" {
		if remaining, err := strconv.Atoi(v); err == nil {
			b.remaining = remaining
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			b.reset = time.Unix(ts, 0)
		}
	}
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			b.remaining = 0
			b.reset = b.now().Add(time.Duration(secs) * time.Second)
		}
	}
}

// Remaining returns the last observed remaining count and reset time.
// Remaining is -1 before any response was seen.
func (b *RateBudget) Remaining() (int, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining, b.reset
}

// Wait blocks until a request may be sent. It returns early only when ctx is done.
func (b *RateBudget) Wait(ctx context.Context) error {
	b.mu.Lock()
	var delay time.Duration
	if b.remaining >= 0 && b.remaining < b.floor {
		delay = b.reset.Sub(b.now())
	}
	b.mu.Unlock()

	if delay <= 0 {
		return ctx.Err()
	}
	if err := b.sleep(ctx, delay+time.Second); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	// The window has rolled over; the next response reports the fresh budget
	if !b.reset.After(b.now()) {
		b.remaining = -1
	}
	return nil
}
