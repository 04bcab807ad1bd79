// Package redis provides a distributed per-city lock for deployments where
// several rollout processes share one database.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/example/rollout/internal/errs"
	"github.com/example/rollout/internal/ports/secondary"
)

// Options controls lock behaviour.
type Options struct {
	Prefix string        // key prefix, default "rollout:city"
	TTL    time.Duration // how long a lock outlives a crashed holder
	Wait   time.Duration // how long Lock waits for a busy city
	Retry  time.Duration // poll interval while waiting
}

// CityLocker implements secondary.CityLocker with bsm/redislock.
type CityLocker struct {
	client *redislock.Client
	opts   Options
	log    logrus.FieldLogger
}

// Connect opens a client and verifies it answers within ctx.
func Connect(ctx context.Context, addr string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// NewCityLocker creates a locker on an existing client.
func NewCityLocker(rdb redislock.RedisClient, log logrus.FieldLogger, opts Options) *CityLocker {
	if opts.Prefix == "" {
		opts.Prefix = "rollout:city"
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.Wait <= 0 {
		opts.Wait = opts.TTL
	}
	if opts.Retry <= 0 {
		opts.Retry = 50 * time.Millisecond
	}
	return &CityLocker{
		client: redislock.New(rdb),
		opts:   opts,
		log:    log.WithField("module", "redis_lock"),
	}
}

// Lock blocks until the city's lock is obtained, Wait elapses or ctx ends.
func (l *CityLocker) Lock(ctx context.Context, cityID int64) (func(), error) {
	key := fmt.Sprintf("%s:%d", l.opts.Prefix, cityID)

	waitCtx, cancel := context.WithTimeout(ctx, l.opts.Wait)
	defer cancel()

	lock, err := l.client.Obtain(waitCtx, key, l.opts.TTL, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.opts.Retry),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("city %d is locked by another worker: %w", cityID, errs.ErrUpstreamTimeout)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock for city %d: %w", cityID, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release with a fresh context: the caller's may already be done.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := lock.Release(releaseCtx); err != nil {
				l.log.WithError(err).WithField("city_id", cityID).Warn("failed to release city lock")
			}
		})
	}, nil
}

var _ secondary.CityLocker = (*CityLocker)(nil)
