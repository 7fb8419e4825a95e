package lock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/careops/clinicbook/internal/calendar"
)

// Arena is an in-process Locker: one exclusive section per resource key,
// backed by a single-slot channel so acquisition can be bounded by a timeout.
// Suitable when a single process owns the clinic's calendar state; deployments
// with several instances use the Redis locker instead.
type Arena struct {
	mu       sync.Mutex
	sections map[string]chan struct{}
	wait     time.Duration
}

// NewArena creates an arena whose acquisitions give up after wait.
func NewArena(wait time.Duration) *Arena {
	return &Arena{
		sections: make(map[string]chan struct{}),
		wait:     wait,
	}
}

func (a *Arena) section(key string) chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	ch, ok := a.sections[key]
	if !ok {
		ch = make(chan struct{}, 1)
		a.sections[key] = ch
	}
	return ch
}

// WithResourceLocks acquires every key in sorted order, runs fn, and releases
// in reverse order. A timeout or context cancellation while acquiring releases
// everything already held and returns ErrLockTimeout or the context error.
func (a *Arena) WithResourceLocks(ctx context.Context, keys []calendar.Key, fn func(ctx context.Context) error) error {
	names := SortedKeyNames(keys)

	timer := time.NewTimer(a.wait)
	defer timer.Stop()

	var held []chan struct{}
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, name := range names {
		ch := a.section(name)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-timer.C:
			release()
			return ErrLockTimeout
		case <-ctx.Done():
			release()
			return ctx.Err()
		}
	}

	defer release()
	return fn(ctx)
}

// SortedKeyNames deduplicates and orders the lock names; the fixed global
// order is what makes multi-resource acquisition deadlock-free. The Redis
// locker shares it so both backends agree on acquisition order.
func SortedKeyNames(keys []calendar.Key) []string {
	names := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		name := k.String()
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
