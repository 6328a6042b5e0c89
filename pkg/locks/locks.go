// Package locks serializes transition execution per application. Two concurrent
// execution attempts for the same application must not both succeed; the executor
// holds an exclusive application-scoped lock for one read-evaluate-write cycle.
package locks

import (
	"context"
	"errors"
)

// ErrNotAcquired indicates the lock could not be obtained before the context
// deadline. Callers fail fast with no partial state.
var ErrNotAcquired = errors.New("application lock not acquired")

// ReleaseFunc releases a held lock. Safe to call exactly once.
type ReleaseFunc func()

// Locker grants exclusive, application-scoped locks. Lock hold time is bounded to
// one transition's read-evaluate-write cycle; no caller ever waits on another
// application's lock.
type Locker interface {
	Acquire(ctx context.Context, applicationID string) (ReleaseFunc, error)
}
