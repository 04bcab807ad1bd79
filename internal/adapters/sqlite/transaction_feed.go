package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/rollout/internal/ports/secondary"
)

// TransactionFeed implements secondary.TransactionFeed over the transactions
// table. Amounts are summed in Go so no precision is lost to REAL arithmetic.
type TransactionFeed struct {
	db *sql.DB
}

// NewTransactionFeed creates a new SQLite transaction feed.
func NewTransactionFeed(db *sql.DB) *TransactionFeed {
	return &TransactionFeed{db: db}
}

// Summarize counts and sums the rows matching q over [q.From, q.To).
func (f *TransactionFeed) Summarize(ctx context.Context, q secondary.TransactionQuery) (secondary.TransactionSummary, error) {
	query := `SELECT amount FROM transactions
		WHERE city = ? AND type = ? AND timestamp >= ? AND timestamp < ?`
	args := []any{q.City, string(q.Type), utc(q.From), utc(q.To)}

	if q.DescriptionContains != "" {
		query += " AND instr(lower(description), lower(?)) > 0"
		args = append(args, q.DescriptionContains)
	}

	rows, err := f.db.QueryContext(ctx, query, args...)
	if err != nil {
		return secondary.TransactionSummary{}, wrap("query transactions", err)
	}
	defer rows.Close()

	summary := secondary.TransactionSummary{Sum: decimal.Zero}
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return secondary.TransactionSummary{}, fmt.Errorf("failed to scan transaction: %w", err)
		}
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return secondary.TransactionSummary{}, fmt.Errorf("bad transaction amount %q: %w", amount, err)
		}
		summary.Count++
		summary.Sum = summary.Sum.Add(value)
	}
	if err := rows.Err(); err != nil {
		return secondary.TransactionSummary{}, wrap("iterate transactions", err)
	}
	return summary, nil
}

// Import inserts feed rows. The feed is read-only to the reconciler; this is
// how fixtures and the CLI's import command load it.
func (f *TransactionFeed) Import(ctx context.Context, rows []ImportRow) (int, error) {
	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrap("begin import", err)
	}
	defer tx.Rollback()

	for i, r := range rows {
		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO transactions (id, city, type, description, amount, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
			id, r.City, strings.ToUpper(string(r.Type)), r.Description, r.Amount.String(), utc(r.Timestamp),
		)
		if err != nil {
			return 0, wrap(fmt.Sprintf("import row %d", i+1), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, wrap("commit import", err)
	}
	return len(rows), nil
}

// ImportRow is one transaction to load into the feed.
type ImportRow struct {
	ID          string
	City        string
	Type        secondary.TransactionType
	Description string
	Amount      decimal.Decimal
	Timestamp   time.Time
}

var _ secondary.TransactionFeed = (*TransactionFeed)(nil)
