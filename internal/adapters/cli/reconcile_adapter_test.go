package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/example/rollout/internal/core/ledger"
	"github.com/example/rollout/internal/errs"
	"github.com/example/rollout/internal/ports/primary"
)

func TestReconcileAdapter_Month(t *testing.T) {
	mock := &mockReconcileService{
		reconcileBatchFn: func(ctx context.Context, req primary.ReconcileBatchRequest) (*primary.ReconcileBatchReport, error) {
			return &primary.ReconcileBatchReport{
				Month: req.Month,
				Results: []*primary.Reconciliation{
					{CityID: 5105101, CityName: "Juara", Amount: decimal.RequireFromString("195.50"), Provenance: ledger.ProvenanceTransactions, TransactionCount: 2},
					{CityID: 5106158, CityName: "Nova Bandeirantes", Amount: decimal.NewFromInt(1529), Provenance: ledger.ProvenanceFallback},
				},
				Total:   decimal.RequireFromString("1724.50"),
				Display: "1.7k",
			}, nil
		},
	}
	var buf bytes.Buffer
	adapter := NewReconcileAdapter(mock, &buf)

	if err := adapter.Month(context.Background(), "2026-01", []int64{5105101, 5106158}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Juara", "195.50", "transactions", "fallback", "2026-01 total: 1724.50 (1.7k)"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got '%s'", want, out)
		}
	}
}

func TestReconcileAdapter_Month_Partial(t *testing.T) {
	partial := &errs.PartialBatchFailure{
		Op:       "reconcile 2026-01",
		Total:    2,
		Failures: []errs.UnitFailure{{Unit: "2/2026-01", Reason: "upstream timeout", Err: errs.ErrUpstreamTimeout}},
	}
	mock := &mockReconcileService{
		reconcileBatchFn: func(ctx context.Context, req primary.ReconcileBatchRequest) (*primary.ReconcileBatchReport, error) {
			return &primary.ReconcileBatchReport{Month: req.Month, Failures: partial.Failures, Total: decimal.NewFromInt(961), Display: "1.0k"}, partial
		},
	}
	var buf bytes.Buffer
	adapter := NewReconcileAdapter(mock, &buf)

	err := adapter.Month(context.Background(), "2026-01", []int64{1, 2})
	if !errors.Is(err, errs.ErrUpstreamTimeout) {
		t.Fatalf("expected the timeout to surface, got %v", err)
	}
	if !strings.Contains(buf.String(), "✗ 2/2026-01: upstream timeout") {
		t.Errorf("expected failure line, got '%s'", buf.String())
	}
}

func TestReconcileAdapter_Range(t *testing.T) {
	var got primary.MonthlyRevenueRequest
	mock := &mockReconcileService{
		monthlyRevenueFn: func(ctx context.Context, req primary.MonthlyRevenueRequest) (*primary.MonthlyRevenueResponse, error) {
			got = req
			return &primary.MonthlyRevenueResponse{
				Success: false,
				Months: []primary.MonthTotal{
					{Month: "2026-01", Amount: decimal.NewFromInt(100), Display: "0.1k"},
					{Month: "2026-02", Amount: decimal.NewFromInt(290), Display: "0.3k", Failed: 1},
				},
				Failures: []errs.UnitFailure{{Unit: "2/2026-02", Reason: "no fallback"}},
				Error:    "revenue 2026-01..2026-02: 1 of 4 units failed (2/2026-02)",
			}, nil
		},
	}
	var buf bytes.Buffer
	adapter := NewReconcileAdapter(mock, &buf)

	err := adapter.Range(context.Background(), "2026-01", "2026-02", []int64{1, 2})
	if err == nil || !strings.Contains(err.Error(), "1 of 4 units failed") {
		t.Fatalf("expected envelope error, got %v", err)
	}
	if got.From != "2026-01" || got.To != "2026-02" {
		t.Errorf("unexpected request %+v", got)
	}
	out := buf.String()
	if !strings.Contains(out, "290.00") || !strings.Contains(out, "0.3k") {
		t.Errorf("unexpected output '%s'", out)
	}
	if !strings.Contains(out, "partial (1 failed)") || !strings.Contains(out, "complete") {
		t.Errorf("expected per-month status in output '%s'", out)
	}
}

func TestReconcileAdapter_Range_BadMonth(t *testing.T) {
	adapter := NewReconcileAdapter(&mockReconcileService{}, &bytes.Buffer{})

	if err := adapter.Range(context.Background(), "Jan", "2026-02", []int64{1}); err == nil {
		t.Error("expected error for malformed month")
	}
}
