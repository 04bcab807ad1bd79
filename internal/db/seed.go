package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SeedFixtures populates the database with development fixtures: five Mato
// Grosso cities at different rollout stages, a plan for the ones past
// PLANNING, and a few weeks of top-up transactions.
func SeedFixtures(ctx context.Context, database *sql.DB) error {
	now := time.Now().UTC()
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	cities := []struct {
		id         int64
		name       string
		status     string
		population int64
		workingAge int64
		started    bool
		mayor      string
	}{
		{5106158, "Nova Bandeirantes", "EXPANSION", 15500, 10100, true, "Valdir Pereira"},
		{5108956, "Nova Monte Verde", "EXPANSION", 9400, 6200, true, "Ana Paula Lopes"},
		{5103254, "Colniza", "PLANNING", 26000, 17200, false, "Milton Amorim"},
		{5105101, "Juara", "CONSOLIDATED", 34000, 22500, true, "Carlos Sirena"},
		{5103379, "Cotriguaçu", "PLANNING", 20000, 13000, false, "Jair Klasner"},
	}
	for _, c := range cities {
		var startDate any
		if c.started {
			startDate = start
		}
		if _, err := database.ExecContext(ctx,
			`INSERT INTO cities (id, name, status, population, working_age_population, implementation_start_date,
				region, demonym, mayor, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, 'Mato Grosso', '', ?, ?, ?)`,
			c.id, c.name, c.status, c.population, c.workingAge, startDate, c.mayor, now, now,
		); err != nil {
			return fmt.Errorf("seed cities: %w", err)
		}
	}

	// Plans
	phases := `[{"name":"Survey","tasks":["map merchants","meet city hall"]},{"name":"Launch","tasks":["onboard agents","first top-ups"]}]`
	for _, id := range []int64{5106158, 5108956, 5105101} {
		if _, err := database.ExecContext(ctx,
			"INSERT INTO plan_details (city_id, phases, start_date, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
			id, phases, start, now, now,
		); err != nil {
			return fmt.Errorf("seed plans: %w", err)
		}
		if _, err := database.ExecContext(ctx,
			"INSERT INTO planning_results (city_id, start_date, created_at, updated_at) VALUES (?, ?, ?, ?)",
			id, start, now, now,
		); err != nil {
			return fmt.Errorf("seed planning results: %w", err)
		}
	}

	// Transactions: Juara has January and February top-ups, Nova Bandeirantes
	// only February. Debits and fares never count as top-ups.
	txs := []struct {
		id, city, typ, desc, amount string
		at                          time.Time
	}{
		{"TX-0001", "Juara", "CREDIT", "Top-up via agent 014", "120.00", time.Date(2026, 1, 8, 14, 0, 0, 0, time.UTC)},
		{"TX-0002", "Juara", "CREDIT", "top-up pix", "75.50", time.Date(2026, 1, 22, 9, 30, 0, 0, time.UTC)},
		{"TX-0003", "Juara", "DEBIT", "top-up reversal", "20.00", time.Date(2026, 1, 23, 10, 0, 0, 0, time.UTC)},
		{"TX-0004", "Juara", "CREDIT", "fare 104", "4.40", time.Date(2026, 1, 24, 7, 15, 0, 0, time.UTC)},
		{"TX-0005", "Juara", "CREDIT", "Top-up via agent 014", "310.00", time.Date(2026, 2, 3, 16, 45, 0, 0, time.UTC)},
		{"TX-0006", "Nova Bandeirantes", "CREDIT", "top-up card", "88.00", time.Date(2026, 2, 11, 11, 0, 0, 0, time.UTC)},
		{"TX-0007", "Nova Bandeirantes", "CREDIT", "top-up card", "42.00", time.Date(2026, 2, 28, 23, 59, 59, 0, time.UTC)},
	}
	for _, t := range txs {
		if _, err := database.ExecContext(ctx,
			"INSERT INTO transactions (id, city, type, description, amount, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
			t.id, t.city, t.typ, t.desc, t.amount, t.at,
		); err != nil {
			return fmt.Errorf("seed transactions: %w", err)
		}
	}

	return nil
}
