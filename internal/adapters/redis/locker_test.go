package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/example/rollout/internal/errs"
)

// newTestLocker connects to ROLLOUT_TEST_REDIS_ADDR and skips when unset.
func newTestLocker(t *testing.T, opts Options) *CityLocker {
	t.Helper()
	addr := os.Getenv("ROLLOUT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ROLLOUT_TEST_REDIS_ADDR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rdb, err := Connect(ctx, addr)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })

	logger, _ := test.NewNullLogger()
	// A unique prefix keeps parallel runs apart.
	opts.Prefix = "rollout-test:" + uuid.NewString()
	return NewCityLocker(rdb, logger, opts)
}

func TestCityLocker_ExclusiveUntilReleased(t *testing.T) {
	l := newTestLocker(t, Options{TTL: 5 * time.Second, Wait: 100 * time.Millisecond, Retry: 10 * time.Millisecond})
	ctx := context.Background()

	unlock, err := l.Lock(ctx, 5105101)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	if _, err := l.Lock(ctx, 5105101); !errors.Is(err, errs.ErrUpstreamTimeout) {
		t.Fatalf("expected ErrUpstreamTimeout while held, got %v", err)
	}

	other, err := l.Lock(ctx, 5103254)
	if err != nil {
		t.Fatalf("other city should be independent: %v", err)
	}
	other()

	unlock()
	unlock()

	again, err := l.Lock(ctx, 5105101)
	if err != nil {
		t.Fatalf("Lock after release failed: %v", err)
	}
	again()
}

func TestCityLocker_CallerCancel(t *testing.T) {
	l := newTestLocker(t, Options{TTL: 5 * time.Second, Wait: time.Second, Retry: 10 * time.Millisecond})

	unlock, err := l.Lock(context.Background(), 1)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected the caller's deadline, got %v", err)
	}
}
