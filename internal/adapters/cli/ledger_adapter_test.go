package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/rollout/internal/core/ledger"
	"github.com/example/rollout/internal/ports/primary"
)

func TestParsePhase(t *testing.T) {
	tests := []struct {
		in      string
		name    string
		tasks   int
		wantErr bool
	}{
		{"Kickoff:meet mayor, sign MOU", "Kickoff", 2, false},
		{"Launch", "Launch", 0, false},
		{"Pilot: ,, ", "Pilot", 0, false},
		{":orphan", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParsePhase(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePhase(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if p.Name != tt.name || len(p.Tasks) != tt.tasks {
				t.Errorf("ParsePhase(%q) = %+v", tt.in, p)
			}
		})
	}
}

func TestLedgerAdapter_SetPlan(t *testing.T) {
	mock := &mockLedgerService{}
	var buf bytes.Buffer
	adapter := NewLedgerAdapter(mock, &buf)

	err := adapter.SetPlan(context.Background(), 5105101, "2026-01-05", []string{"Kickoff:meet mayor", "Launch"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(mock.lastUpsert.Phases) != 2 {
		t.Errorf("expected 2 phases, got %d", len(mock.lastUpsert.Phases))
	}
	if !mock.lastUpsert.StartDate.Equal(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start date %s", mock.lastUpsert.StartDate)
	}
	if !strings.Contains(buf.String(), "2 phase(s) from 2026-01-05") {
		t.Errorf("unexpected output '%s'", buf.String())
	}

	if err := adapter.SetPlan(context.Background(), 5105101, "05/01/2026", nil); err == nil {
		t.Error("expected error for malformed start date")
	}
}

func TestLedgerAdapter_Record(t *testing.T) {
	mock := &mockLedgerService{
		recordMonthFn: func(ctx context.Context, req primary.RecordMonthRequest) (*primary.RecordMonthResult, error) {
			return &primary.RecordMonthResult{
				CityID: req.CityID,
				Months: 3,
				Outcome: ledger.Outcome{
					Month: req.Month,
					Written: []ledger.Write{{
						Kind:  ledger.KindProjected,
						Entry: ledger.MonthEntry{Month: req.Month, Amount: *req.Projected},
					}},
					Kept: []ledger.Write{{
						Kind:  ledger.KindRealized,
						Entry: ledger.MonthEntry{Month: req.Month, Amount: decimal.NewFromInt(120), Provenance: ledger.ProvenanceTransactions},
					}},
				},
			}, nil
		},
	}
	var buf bytes.Buffer
	adapter := NewLedgerAdapter(mock, &buf)

	if err := adapter.Record(context.Background(), 5105101, "2026-02", "1500", ""); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if mock.lastRecord.Realized != nil {
		t.Error("empty realized flag should leave the side untouched")
	}
	if mock.lastRecord.Projected == nil || !mock.lastRecord.Projected.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("unexpected projected %v", mock.lastRecord.Projected)
	}
	out := buf.String()
	for _, want := range []string{"2026-02 projected = 1500.00", "realized kept at 120.00 (transactions)", "3 month(s)"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got '%s'", want, out)
		}
	}
}

func TestLedgerAdapter_Record_BadInput(t *testing.T) {
	adapter := NewLedgerAdapter(&mockLedgerService{}, &bytes.Buffer{})

	if err := adapter.Record(context.Background(), 1, "2026-13", "1", ""); err == nil {
		t.Error("expected error for bad month")
	}
	if err := adapter.Record(context.Background(), 1, "2026-01", "", "ten"); err == nil {
		t.Error("expected error for bad amount")
	}
}

func TestLedgerAdapter_Show_MergesSeries(t *testing.T) {
	mock := &mockLedgerService{
		getResultsFn: func(ctx context.Context, cityID int64) (*ledger.Results, error) {
			return &ledger.Results{
				CityID: cityID,
				Projected: ledger.Series{
					{Month: "2026-01", Amount: decimal.NewFromInt(1000)},
					{Month: "2026-03", Amount: decimal.NewFromInt(1200)},
				},
				Realized: ledger.Series{
					{Month: "2026-01", Amount: decimal.NewFromInt(961), Provenance: ledger.ProvenanceFallback},
					{Month: "2026-02", Amount: decimal.NewFromInt(310), Provenance: ledger.ProvenanceTransactions},
				},
			}, nil
		},
	}
	var buf bytes.Buffer
	adapter := NewLedgerAdapter(mock, &buf)

	if err := adapter.Show(context.Background(), 5105101, ""); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	out := buf.String()
	jan := strings.Index(out, "2026-01")
	feb := strings.Index(out, "2026-02")
	mar := strings.Index(out, "2026-03")
	if jan < 0 || feb < jan || mar < feb {
		t.Fatalf("expected months in order, got '%s'", out)
	}
	if !strings.Contains(out, "fallback") || !strings.Contains(out, "transactions") {
		t.Errorf("expected provenance column, got '%s'", out)
	}
}

func TestLedgerAdapter_Show_Empty(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewLedgerAdapter(&mockLedgerService{}, &buf)

	if err := adapter.Show(context.Background(), 5103254, ""); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(buf.String(), "No months recorded for city 5103254") {
		t.Errorf("unexpected output '%s'", buf.String())
	}
}
