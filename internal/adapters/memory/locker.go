package memory

import (
	"context"
	"sync"

	"github.com/example/rollout/internal/ports/secondary"
)

// CityLocker is an in-process keyed mutex. Entries are dropped once no
// goroutine holds or waits for them.
type CityLocker struct {
	mu    sync.Mutex
	locks map[int64]*cityLock
}

type cityLock struct {
	ch   chan struct{}
	refs int
}

// NewCityLocker creates an empty locker.
func NewCityLocker() *CityLocker {
	return &CityLocker{locks: make(map[int64]*cityLock)}
}

// Lock blocks until the city's lock is held or ctx is done.
func (l *CityLocker) Lock(ctx context.Context, cityID int64) (func(), error) {
	l.mu.Lock()
	cl, ok := l.locks[cityID]
	if !ok {
		cl = &cityLock{ch: make(chan struct{}, 1)}
		l.locks[cityID] = cl
	}
	cl.refs++
	l.mu.Unlock()

	select {
	case cl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(cityID, cl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-cl.ch
			l.release(cityID, cl)
		})
	}, nil
}

func (l *CityLocker) release(cityID int64, cl *cityLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cl.refs--
	if cl.refs == 0 {
		delete(l.locks, cityID)
	}
}

// held reports how many keys are tracked; used by tests.
func (l *CityLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

var _ secondary.CityLocker = (*CityLocker)(nil)
