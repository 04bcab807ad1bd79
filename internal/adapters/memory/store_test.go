package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/rollout/internal/core/city"
	"github.com/example/rollout/internal/core/ledger"
	"github.com/example/rollout/internal/ctxutil"
	"github.com/example/rollout/internal/errs"
	"github.com/example/rollout/internal/ports/secondary"
)

func TestTransactionFeed_Summarize(t *testing.T) {
	s := NewStore()
	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	rows := []Transaction{
		{City: "Juara", Type: secondary.TransactionCredit, Description: "Top-Up card 88", Amount: decimal.NewFromInt(100), Timestamp: jan},
		{City: "Juara", Type: secondary.TransactionCredit, Description: "top-up", Amount: decimal.NewFromInt(50), Timestamp: feb.Add(-time.Nanosecond)},
		{City: "Juara", Type: secondary.TransactionCredit, Description: "top-up", Amount: decimal.NewFromInt(999), Timestamp: feb},
		{City: "Juara", Type: secondary.TransactionDebit, Description: "top-up refund", Amount: decimal.NewFromInt(7), Timestamp: jan},
		{City: "Juara", Type: secondary.TransactionCredit, Description: "fare", Amount: decimal.NewFromInt(3), Timestamp: jan},
		{City: "Colniza", Type: secondary.TransactionCredit, Description: "top-up", Amount: decimal.NewFromInt(11), Timestamp: jan},
	}
	for _, r := range rows {
		s.AddTransaction(r)
	}

	got, err := s.Feed().Summarize(context.Background(), secondary.TransactionQuery{
		City: "Juara", Type: secondary.TransactionCredit, DescriptionContains: "TOP-UP", From: jan, To: feb,
	})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if got.Count != 2 {
		t.Errorf("Count = %d, want 2", got.Count)
	}
	if !got.Sum.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Sum = %s, want 150", got.Sum)
	}
}

func TestCityRepository_UpdateStatus_Conditional(t *testing.T) {
	s := NewStore()
	repo := s.Cities()
	ctx := context.Background()

	if err := repo.Create(ctx, &secondary.CityRecord{ID: 1, Name: "Juara"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	stamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	changed, err := repo.UpdateStatus(ctx, 1, city.StatusExpansion, city.StatusConsolidated, &stamp)
	if err != nil || changed {
		t.Fatalf("expected no change from stale status, got changed=%v err=%v", changed, err)
	}

	changed, _ = repo.UpdateStatus(ctx, 1, city.StatusPlanning, city.StatusExpansion, &stamp)
	if !changed {
		t.Fatal("expected change")
	}

	later := stamp.Add(time.Hour)
	_, _ = repo.UpdateStatus(ctx, 1, city.StatusExpansion, city.StatusConsolidated, &later)

	got, _ := repo.GetByID(ctx, 1)
	if got.Status != city.StatusConsolidated {
		t.Errorf("status = %s", got.Status)
	}
	if got.ImplementationStartDate == nil || !got.ImplementationStartDate.Equal(stamp) {
		t.Errorf("start date = %v, want %v", got.ImplementationStartDate, stamp)
	}

	if _, err := repo.GetByID(ctx, 99); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResultsRepository_MergeMonth(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_ = s.Cities().Create(ctx, &secondary.CityRecord{ID: 1, Name: "Juara"})

	v := decimal.NewFromInt(10)
	if _, err := s.Results().MergeMonth(ctx, 1, ledger.Patch{Month: "2026-02", Projected: &v}); err != nil {
		t.Fatalf("MergeMonth failed: %v", err)
	}
	if _, err := s.Results().MergeMonth(ctx, 1, ledger.Patch{Month: "2026-01", Projected: &v}); err != nil {
		t.Fatalf("MergeMonth failed: %v", err)
	}

	res, _ := s.Results().GetByCity(ctx, 1)
	if len(res.Projected) != 2 {
		t.Errorf("expected 2 months, got %d", len(res.Projected))
	}

	if _, err := s.Results().MergeMonth(ctx, 2, ledger.Patch{Month: "2026-01", Projected: &v}); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown city, got %v", err)
	}
}

func TestAuditLog_AttributesActor(t *testing.T) {
	s := NewStore()
	ctx := ctxutil.WithActorID(context.Background(), "ops@rollout")

	_ = s.Audit().LogAction(ctx, "city", "1", "force_consolidate", "pilot closed")
	_ = s.Audit().LogUpdate(context.Background(), "city", "1", "status", "PLANNING", "EXPANSION")

	entries, _ := s.Audit().List(context.Background(), "city", "1")
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ActorID != "ops@rollout" || entries[0].Action != "force_consolidate" {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
	if entries[1].ActorID != ctxutil.SystemActor {
		t.Errorf("expected system actor, got %q", entries[1].ActorID)
	}
	if entries[0].ID == "" || entries[0].ID == entries[1].ID {
		t.Error("expected unique ids")
	}
}

func TestCityLocker_Serialises(t *testing.T) {
	l := NewCityLocker()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, 7)
			if err != nil {
				t.Errorf("Lock failed: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("expected at most one holder, saw %d", maxSeen)
	}
	if l.held() != 0 {
		t.Errorf("expected lock table to drain, %d left", l.held())
	}
}

func TestCityLocker_ContextCancel(t *testing.T) {
	l := NewCityLocker()
	unlock, _ := l.Lock(context.Background(), 1)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	// Other cities are independent.
	other, err := l.Lock(context.Background(), 2)
	if err != nil {
		t.Fatalf("Lock on other city failed: %v", err)
	}
	other()
	other()
}
