package service

import "time"

// Clock returns the current time. Services take one so tests can pin
// timestamps.
type Clock func() time.Time

// SystemClock is the production Clock: wall time in UTC, truncated to the
// microsecond precision both SQL dialects store. Truncate also drops the
// monotonic reading, so a value read back from the store compares equal
// to the one written.
func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
