package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/example/rollout/internal/adapters/memory"
	"github.com/example/rollout/internal/core/city"
	"github.com/example/rollout/internal/core/ledger"
	"github.com/example/rollout/internal/errs"
	"github.com/example/rollout/internal/ports/primary"
	"github.com/example/rollout/internal/ports/secondary"
)

func topUp(cityName string, amount int64, at time.Time) memory.Transaction {
	return memory.Transaction{
		City:        cityName,
		Type:        secondary.TransactionCredit,
		Description: "Top-up via agent",
		Amount:      decimal.NewFromInt(amount),
		Timestamp:   at,
	}
}

func TestReconcileBatch_FallbackAggregate(t *testing.T) {
	env := newTestEnv(t, envOptions{
		fallback: secondary.FallbackTable{
			"A": decimal.NewFromInt(961),
			"B": decimal.NewFromInt(1529),
			"C": decimal.NewFromInt(48),
			"D": decimal.NewFromInt(57),
		},
	})
	for i, name := range []string{"A", "B", "C", "D"} {
		env.addCity(t, int64(i+1), name, city.StatusExpansion)
	}
	// A top-up in another month must not count for January.
	env.store.AddTransaction(topUp("A", 500, time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)))

	report, err := env.reconcile.ReconcileBatch(context.Background(), primary.ReconcileBatchRequest{
		CityIDs: []int64{1, 2, 3, 4},
		Month:   "2026-01",
	})
	if err != nil {
		t.Fatalf("ReconcileBatch failed: %v", err)
	}

	if !report.Total.Equal(decimal.NewFromInt(2595)) {
		t.Errorf("Total = %s, want 2595", report.Total)
	}
	if report.Display != "2.6k" {
		t.Errorf("Display = %q, want 2.6k", report.Display)
	}
	for _, r := range report.Results {
		if r.Provenance != ledger.ProvenanceFallback {
			t.Errorf("city %s: provenance %s, want fallback", r.CityName, r.Provenance)
		}
	}

	var infos int
	for _, e := range env.entriesAt(logrus.InfoLevel) {
		if e.Data["provenance"] == ledger.ProvenanceFallback {
			infos++
		}
	}
	if infos != 4 {
		t.Errorf("expected 4 fallback log entries, got %d", infos)
	}
}

func TestReconcileMonth_UsesTransactions(t *testing.T) {
	env := newTestEnv(t, envOptions{
		fallback: secondary.FallbackTable{"Juara": decimal.NewFromInt(961)},
	})
	ctx := context.Background()
	env.addCity(t, 5105101, "Juara", city.StatusExpansion)

	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	env.store.AddTransaction(topUp("Juara", 120, jan))
	env.store.AddTransaction(topUp("Juara", 80, jan.Add(20*24*time.Hour)))
	env.store.AddTransaction(memory.Transaction{
		City: "Juara", Type: secondary.TransactionDebit, Description: "top-up reversal",
		Amount: decimal.NewFromInt(50), Timestamp: jan,
	})

	got, err := env.reconcile.ReconcileMonth(ctx, 5105101, "2026-01")
	if err != nil {
		t.Fatalf("ReconcileMonth failed: %v", err)
	}
	if !got.Amount.Equal(decimal.NewFromInt(200)) || got.Provenance != ledger.ProvenanceTransactions {
		t.Errorf("got %s (%s), want 200 (transactions)", got.Amount, got.Provenance)
	}
	if got.TransactionCount != 2 {
		t.Errorf("TransactionCount = %d, want 2", got.TransactionCount)
	}

	figures, err := env.ledger.GetMonth(ctx, 5105101, "2026-01")
	if err != nil {
		t.Fatalf("GetMonth failed: %v", err)
	}
	if figures.Realized == nil || figures.Realized.Provenance != ledger.ProvenanceTransactions {
		t.Errorf("expected stored realized entry, got %+v", figures.Realized)
	}
}

func TestReconcileMonth_Deterministic(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	env.addCity(t, 1, "Colniza", city.StatusExpansion)
	env.store.AddTransaction(topUp("Colniza", 33, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)))

	first, err := env.reconcile.ReconcileMonth(ctx, 1, "2026-03")
	if err != nil {
		t.Fatalf("ReconcileMonth failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := env.reconcile.ReconcileMonth(ctx, 1, "2026-03")
		if err != nil {
			t.Fatalf("ReconcileMonth failed: %v", err)
		}
		if !again.Amount.Equal(first.Amount) || again.Provenance != first.Provenance {
			t.Fatalf("run %d: got %s (%s), want %s (%s)", i, again.Amount, again.Provenance, first.Amount, first.Provenance)
		}
	}
}

func TestReconcileMonth_NoEvidenceNoFallback(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	env.addCity(t, 1, "Colniza", city.StatusExpansion)

	_, err := env.reconcile.ReconcileMonth(ctx, 1, "2026-01")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	results, _ := env.ledger.GetResults(ctx, 1)
	if len(results.Realized) != 0 {
		t.Errorf("nothing should be stored, got %+v", results.Realized)
	}
}

func TestReconcileMonth_KeepsRealOverFallback(t *testing.T) {
	env := newTestEnv(t, envOptions{
		fallback: secondary.FallbackTable{"Juara": decimal.NewFromInt(961)},
	})
	ctx := context.Background()
	env.addCity(t, 1, "Juara", city.StatusExpansion)

	manual := decimal.NewFromInt(1200)
	_, err := env.ledger.RecordMonth(ctx, primary.RecordMonthRequest{
		CityID: 1, Month: "2026-01", Realized: &manual, Provenance: ledger.ProvenanceManual,
	})
	if err != nil {
		t.Fatalf("RecordMonth failed: %v", err)
	}

	got, err := env.reconcile.ReconcileMonth(ctx, 1, "2026-01")
	if err != nil {
		t.Fatalf("ReconcileMonth failed: %v", err)
	}
	if got.Provenance != ledger.ProvenanceManual || !got.Amount.Equal(manual) {
		t.Errorf("got %s (%s), want stored manual figure", got.Amount, got.Provenance)
	}
	if len(got.Stored.Kept) != 1 {
		t.Errorf("expected one kept entry, got %+v", got.Stored)
	}

	figures, _ := env.ledger.GetMonth(ctx, 1, "2026-01")
	if !figures.Realized.Amount.Equal(manual) {
		t.Errorf("stored realized = %s, want %s", figures.Realized.Amount, manual)
	}
}

func TestReconcileMonth_TimeoutIsNotFallback(t *testing.T) {
	feed := &slowFeed{}
	env := newTestEnv(t, envOptions{
		feed:     feed,
		fallback: secondary.FallbackTable{"Juara": decimal.NewFromInt(961)},
		policy:   CallPolicy{Timeout: 20 * time.Millisecond, Backoff: time.Millisecond, MaxAttempts: 2},
	})
	ctx := context.Background()
	env.addCity(t, 1, "Juara", city.StatusExpansion)

	_, err := env.reconcile.ReconcileMonth(ctx, 1, "2026-01")
	if !errors.Is(err, errs.ErrUpstreamTimeout) {
		t.Fatalf("expected ErrUpstreamTimeout, got %v", err)
	}
	if n := feed.calls.Load(); n != 2 {
		t.Errorf("feed called %d times, want 2 (one retry)", n)
	}

	results, _ := env.ledger.GetResults(ctx, 1)
	if len(results.Realized) != 0 {
		t.Errorf("timeout must not store a fallback, got %+v", results.Realized)
	}

	var retries int
	for _, e := range env.entriesAt(logrus.WarnLevel) {
		if e.Data["op"] == "feed.summarize" {
			retries++
		}
	}
	if retries != 2 {
		t.Errorf("expected 2 timeout warnings, got %d", retries)
	}
}

func TestReconcileMonth_RetriesOnce(t *testing.T) {
	store := memory.NewStore()
	feed := &flakyFeed{next: store.Feed()}
	env := newTestEnv(t, envOptions{
		feed:   feed,
		policy: CallPolicy{Timeout: 20 * time.Millisecond, Backoff: time.Millisecond, MaxAttempts: 2},
	})
	env.addCity(t, 1, "Juara", city.StatusExpansion)
	store.AddTransaction(topUp("Juara", 10, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)))

	got, err := env.reconcile.ReconcileMonth(context.Background(), 1, "2026-01")
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got.Provenance != ledger.ProvenanceTransactions {
		t.Errorf("provenance = %s", got.Provenance)
	}
	if n := feed.calls.Load(); n != 2 {
		t.Errorf("feed called %d times, want 2", n)
	}
}

func TestReconcileMonth_AttemptsCappedAtOneRetry(t *testing.T) {
	feed := &slowFeed{}
	env := newTestEnv(t, envOptions{
		feed:   feed,
		policy: CallPolicy{Timeout: 20 * time.Millisecond, Backoff: time.Millisecond, MaxAttempts: 5},
	})
	env.addCity(t, 1, "Juara", city.StatusExpansion)

	_, err := env.reconcile.ReconcileMonth(context.Background(), 1, "2026-01")
	if !errors.Is(err, errs.ErrUpstreamTimeout) {
		t.Fatalf("expected ErrUpstreamTimeout, got %v", err)
	}
	if n := feed.calls.Load(); n != 2 {
		t.Errorf("feed called %d times, want 2", n)
	}
}

func TestReconcileBatch_PartialFailure(t *testing.T) {
	env := newTestEnv(t, envOptions{
		fallback: secondary.FallbackTable{"Juara": decimal.NewFromInt(961)},
	})
	env.addCity(t, 1, "Juara", city.StatusExpansion)
	env.addCity(t, 2, "Colniza", city.StatusExpansion)

	report, err := env.reconcile.ReconcileBatch(context.Background(), primary.ReconcileBatchRequest{
		CityIDs: []int64{1, 2, 2},
		Month:   "2026-01",
	})

	var partial *errs.PartialBatchFailure
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialBatchFailure, got %v", err)
	}
	if partial.Total != 2 {
		t.Errorf("Total units = %d, want 2 after dedupe", partial.Total)
	}
	if len(report.Results) != 1 || report.Results[0].CityID != 1 {
		t.Errorf("unexpected results %+v", report.Results)
	}
	if !report.Total.Equal(decimal.NewFromInt(961)) {
		t.Errorf("Total = %s, want 961", report.Total)
	}
	if report.Failures[0].Unit != "2/2026-01" {
		t.Errorf("failed unit = %q", report.Failures[0].Unit)
	}
}

func TestMonthlyRevenue_Envelope(t *testing.T) {
	env := newTestEnv(t, envOptions{
		fallback: secondary.FallbackTable{"Juara": decimal.NewFromInt(100)},
	})
	env.addCity(t, 1, "Juara", city.StatusExpansion)
	env.addCity(t, 2, "Colniza", city.StatusExpansion)
	env.store.AddTransaction(topUp("Juara", 250, time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)))
	env.store.AddTransaction(topUp("Colniza", 40, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)))

	resp, err := env.reconcile.MonthlyRevenue(context.Background(), primary.MonthlyRevenueRequest{
		CityIDs: []int64{1, 2},
		From:    "2026-01",
		To:      "2026-03",
	})
	if err != nil {
		t.Fatalf("MonthlyRevenue failed: %v", err)
	}

	if resp.Success {
		t.Error("expected Success=false when Colniza has no January figure")
	}
	if resp.Error == "" {
		t.Error("expected an error message in the envelope")
	}

	got := resp.AsMap()
	want := map[string]int64{"2026-01": 100, "2026-02": 290, "2026-03": 100}
	for month, amount := range want {
		if !got[month].Equal(decimal.NewFromInt(amount)) {
			t.Errorf("%s = %s, want %d", month, got[month], amount)
		}
	}
	// Colniza fails in January and March.
	if len(resp.Failures) != 2 {
		t.Errorf("expected 2 failures, got %d", len(resp.Failures))
	}
	for _, m := range resp.Months {
		wantPartial := m.Month != "2026-02"
		if m.Partial() != wantPartial {
			t.Errorf("%s: Partial() = %v, want %v (Failed=%d)", m.Month, m.Partial(), wantPartial, m.Failed)
		}
	}
}

func TestMonthlyRevenue_RejectsBadRange(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	_, err := env.reconcile.MonthlyRevenue(context.Background(), primary.MonthlyRevenueRequest{
		CityIDs: []int64{1},
		From:    "2026-04",
		To:      "2026-01",
	})
	if err == nil {
		t.Error("expected reversed range to be rejected")
	}

	_, err = env.reconcile.MonthlyRevenue(context.Background(), primary.MonthlyRevenueRequest{
		CityIDs: []int64{1},
		From:    "2026-4",
		To:      "2026-05",
	})
	if err == nil {
		t.Error("expected malformed month to be rejected")
	}
}
