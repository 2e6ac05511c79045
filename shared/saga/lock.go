package saga

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

type lockEntry struct {
	sem  chan struct{}
	refs int
}

// MemoryLocker is an in-process keyed mutex. Entries are reference counted
// and dropped once no caller holds or waits for them.
type MemoryLocker struct {
	locks *xsync.MapOf[string, *lockEntry]
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		locks: xsync.NewMapOf[string, *lockEntry](),
	}
}

// Lock blocks until key is free or ctx is done. Giving up because of ctx is
// reported as ErrConcurrentUpdate since another caller owns the saga.
func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	entry, _ := l.locks.Compute(key, func(e *lockEntry, loaded bool) (*lockEntry, bool) {
		if !loaded {
			e = &lockEntry{sem: make(chan struct{}, 1)}
		}
		e.refs++
		return e, false
	})

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		l.unref(key)
		return nil, errors.Wrapf(ErrConcurrentUpdate, "lock %s: %v", key, ctx.Err())
	}

	var once sync.Once
	release := func(context.Context) error {
		once.Do(func() {
			<-entry.sem
			l.unref(key)
		})
		return nil
	}
	return release, nil
}

func (l *MemoryLocker) unref(key string) {
	l.locks.Compute(key, func(e *lockEntry, loaded bool) (*lockEntry, bool) {
		if !loaded {
			return e, true
		}
		e.refs--
		return e, e.refs <= 0
	})
}

// Held reports how many keys currently have holders or waiters.
func (l *MemoryLocker) Held() int {
	return l.locks.Size()
}
