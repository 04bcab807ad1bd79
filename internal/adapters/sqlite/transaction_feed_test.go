package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/rollout/internal/adapters/sqlite"
	"github.com/example/rollout/internal/ctxutil"
	"github.com/example/rollout/internal/ports/secondary"
)

func TestTransactionFeed_Summarize(t *testing.T) {
	database := setupTestDB(t)
	feed := sqlite.NewTransactionFeed(database)
	ctx := context.Background()

	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	seedTransaction(t, database, "T1", "Juara", "CREDIT", "Top-Up via agent", "120.10", jan)
	seedTransaction(t, database, "T2", "Juara", "CREDIT", "top-up pix", "0.20", feb.Add(-time.Second))
	seedTransaction(t, database, "T3", "Juara", "CREDIT", "top-up pix", "500", feb)
	seedTransaction(t, database, "T4", "Juara", "DEBIT", "top-up reversal", "7", jan)
	seedTransaction(t, database, "T5", "Juara", "CREDIT", "fare", "3", jan)
	seedTransaction(t, database, "T6", "Colniza", "CREDIT", "top-up", "11", jan)

	got, err := feed.Summarize(ctx, secondary.TransactionQuery{
		City:                "Juara",
		Type:                secondary.TransactionCredit,
		DescriptionContains: "TOP-UP",
		From:                jan,
		To:                  feb,
	})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if got.Count != 2 {
		t.Errorf("Count = %d, want 2", got.Count)
	}
	if !got.Sum.Equal(decimal.RequireFromString("120.30")) {
		t.Errorf("Sum = %s, want 120.30", got.Sum)
	}

	// A month with nothing matching is zero rows, not an error.
	empty, err := feed.Summarize(ctx, secondary.TransactionQuery{
		City: "Juara", Type: secondary.TransactionCredit, DescriptionContains: "top-up",
		From: feb.AddDate(0, 1, 0), To: feb.AddDate(0, 2, 0),
	})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if empty.Count != 0 || !empty.Sum.IsZero() {
		t.Errorf("expected empty summary, got %+v", empty)
	}
}

func TestTransactionFeed_Import(t *testing.T) {
	database := setupTestDB(t)
	feed := sqlite.NewTransactionFeed(database)
	ctx := context.Background()

	at := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	n, err := feed.Import(ctx, []sqlite.ImportRow{
		{City: "Colniza", Type: "credit", Description: "top-up", Amount: decimal.NewFromInt(40), Timestamp: at},
		{ID: "FIXED-1", City: "Colniza", Type: secondary.TransactionCredit, Description: "top-up", Amount: decimal.NewFromInt(2), Timestamp: at},
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if n != 2 {
		t.Errorf("imported %d rows, want 2", n)
	}

	got, _ := feed.Summarize(ctx, secondary.TransactionQuery{
		City: "Colniza", Type: secondary.TransactionCredit,
		From: at.Add(-time.Hour), To: at.Add(time.Hour),
	})
	if got.Count != 2 || !got.Sum.Equal(decimal.NewFromInt(42)) {
		t.Errorf("unexpected summary %+v", got)
	}

	// A duplicate id aborts the whole import.
	_, err = feed.Import(ctx, []sqlite.ImportRow{
		{City: "Colniza", Type: secondary.TransactionCredit, Amount: decimal.NewFromInt(1), Timestamp: at},
		{ID: "FIXED-1", City: "Colniza", Type: secondary.TransactionCredit, Amount: decimal.NewFromInt(1), Timestamp: at},
	})
	if err == nil {
		t.Fatal("expected duplicate id to fail")
	}
	got, _ = feed.Summarize(ctx, secondary.TransactionQuery{
		City: "Colniza", Type: secondary.TransactionCredit,
		From: at.Add(-time.Hour), To: at.Add(time.Hour),
	})
	if got.Count != 2 {
		t.Errorf("failed import leaked rows: count %d", got.Count)
	}
}

func TestAuditLog_WriteAndList(t *testing.T) {
	database := setupTestDB(t)
	audit := sqlite.NewAuditLog(database)
	ctx := ctxutil.WithActorID(context.Background(), "ops@rollout")

	if err := audit.LogUpdate(ctx, "city", "5105101", "status", "PLANNING", "EXPANSION"); err != nil {
		t.Fatalf("LogUpdate failed: %v", err)
	}
	if err := audit.LogAction(context.Background(), "city", "5105101", "force_consolidate", "pilot closed"); err != nil {
		t.Fatalf("LogAction failed: %v", err)
	}
	_ = audit.LogUpdate(ctx, "plan", "5105101", "phases", "", "Survey > Launch")

	entries, err := audit.List(ctx, "city", "5105101")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ActorID != "ops@rollout" || entries[0].FieldName != "status" || entries[0].NewValue != "EXPANSION" {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
	if entries[1].ActorID != ctxutil.SystemActor || entries[1].Action != "force_consolidate" || entries[1].FieldName != "" {
		t.Errorf("unexpected second entry %+v", entries[1])
	}
}
