package auth

import (
	"context"
	"runtime"
)

// HashLimiter bounds how many bcrypt operations run at once.
//
// bcrypt is CPU-bound by design: at cost 12 one hash takes a few hundred
// milliseconds of a full core. Without a bound, a burst of logins can pin
// every core and starve the requests that only need the database. The
// limiter hands out a fixed number of slots; a caller waits for a free slot
// or gives up when its request context is cancelled.
type HashLimiter struct {
	slots chan struct{}
}

// NewHashLimiter creates a limiter with n slots. n <= 0 means one slot per
// usable CPU.
func NewHashLimiter(n int) *HashLimiter {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return &HashLimiter{slots: make(chan struct{}, n)}
}

// Do runs fn once a slot is free. It returns ctx.Err() without running fn
// if the context ends first.
func (l *HashLimiter) Do(ctx context.Context, fn func()) error {
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.slots }()

	fn()
	return nil
}

// Size reports the number of slots.
func (l *HashLimiter) Size() int {
	return cap(l.slots)
}
