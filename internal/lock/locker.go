package lock

import (
	"context"
	"errors"

	"github.com/careops/clinicbook/internal/calendar"
)

// ErrLockTimeout is returned when an exclusive section could not be entered
// within the configured wait. Callers treat it as retryable.
var ErrLockTimeout = errors.New("resource lock not acquired within wait timeout")

// Locker guards the critical section around a set of resource calendars.
// Implementations must acquire the keys in canonical sorted order so that a
// booking touching both a doctor and a room cannot deadlock against another.
type Locker interface {
	WithResourceLocks(ctx context.Context, keys []calendar.Key, fn func(ctx context.Context) error) error
}
