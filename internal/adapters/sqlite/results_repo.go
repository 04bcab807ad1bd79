package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/rollout/internal/core/ledger"
	"github.com/example/rollout/internal/errs"
	"github.com/example/rollout/internal/ports/secondary"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ResultsRepository implements secondary.ResultsRepository with SQLite.
// Each month and kind is its own row, so a write to one month never
// rewrites another.
type ResultsRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewResultsRepository creates a new SQLite results repository.
func NewResultsRepository(db *sql.DB) *ResultsRepository {
	return &ResultsRepository{db: db, now: time.Now}
}

// GetByCity retrieves the monthly series for a city.
func (r *ResultsRepository) GetByCity(ctx context.Context, cityID int64) (*ledger.Results, error) {
	return loadResults(ctx, r.db, cityID)
}

// MergeMonth runs the read-merge-write inside one immediate transaction.
func (r *ResultsRepository) MergeMonth(ctx context.Context, cityID int64, patch ledger.Patch) (ledger.Outcome, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Outcome{}, wrap("begin merge", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM cities WHERE id = ?", cityID).Scan(&exists)
	if err != nil {
		return ledger.Outcome{}, wrap("check city", err)
	}
	if exists == 0 {
		return ledger.Outcome{}, errs.NotFound("city %d", cityID)
	}

	current, err := loadResults(ctx, tx, cityID)
	if err != nil {
		return ledger.Outcome{}, err
	}

	_, outcome, err := ledger.Merge(*current, patch)
	if err != nil {
		return ledger.Outcome{}, err
	}

	now := utc(r.now())
	if err := ensureHeader(ctx, tx, cityID, now); err != nil {
		return ledger.Outcome{}, err
	}

	for _, w := range outcome.Written {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO planning_result_months (city_id, month, kind, amount, provenance, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(city_id, month, kind) DO UPDATE SET
				amount = excluded.amount,
				provenance = excluded.provenance,
				updated_at = excluded.updated_at`,
			cityID, string(w.Entry.Month), string(w.Kind), w.Entry.Amount.String(), string(w.Entry.Provenance), now,
		)
		if err != nil {
			return ledger.Outcome{}, wrap(fmt.Sprintf("write %s %s", w.Kind, w.Entry.Month), err)
		}
	}

	if _, err := tx.ExecContext(ctx, "UPDATE planning_results SET updated_at = ? WHERE city_id = ?", now, cityID); err != nil {
		return ledger.Outcome{}, wrap("touch planning results", err)
	}

	if err := tx.Commit(); err != nil {
		return ledger.Outcome{}, wrap("commit merge", err)
	}
	return outcome, nil
}

// SetStartDate sets the results start date, creating the row if needed.
func (r *ResultsRepository) SetStartDate(ctx context.Context, cityID int64, start time.Time) error {
	now := utc(r.now())
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO planning_results (city_id, start_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(city_id) DO UPDATE SET
			start_date = excluded.start_date,
			updated_at = excluded.updated_at`,
		cityID, utc(start), now, now,
	)
	return wrap("set results start date", err)
}

func ensureHeader(ctx context.Context, q querier, cityID int64, now time.Time) error {
	_, err := q.ExecContext(ctx,
		"INSERT OR IGNORE INTO planning_results (city_id, created_at, updated_at) VALUES (?, ?, ?)",
		cityID, now, now,
	)
	return wrap("create planning results", err)
}

func loadResults(ctx context.Context, q querier, cityID int64) (*ledger.Results, error) {
	results := &ledger.Results{CityID: cityID}

	var start sql.NullTime
	err := q.QueryRowContext(ctx, "SELECT start_date FROM planning_results WHERE city_id = ?", cityID).Scan(&start)
	if errors.Is(err, sql.ErrNoRows) {
		return results, nil
	}
	if err != nil {
		return nil, wrap("get planning results", err)
	}
	if start.Valid {
		t := start.Time.UTC()
		results.StartDate = &t
	}

	rows, err := q.QueryContext(ctx,
		"SELECT month, kind, amount, provenance FROM planning_result_months WHERE city_id = ? ORDER BY month ASC",
		cityID,
	)
	if err != nil {
		return nil, wrap("list result months", err)
	}
	defer rows.Close()

	for rows.Next() {
		var month, kind, amount, provenance string
		if err := rows.Scan(&month, &kind, &amount, &provenance); err != nil {
			return nil, fmt.Errorf("failed to scan result month: %w", err)
		}
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("bad amount %q for city %d month %s: %w", amount, cityID, month, err)
		}
		entry := ledger.MonthEntry{
			Month:      ledger.MonthKey(month),
			Amount:     value,
			Provenance: ledger.Provenance(provenance),
		}
		switch ledger.Kind(kind) {
		case ledger.KindProjected:
			results.Projected = append(results.Projected, entry)
		case ledger.KindRealized:
			results.Realized = append(results.Realized, entry)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate result months", err)
	}
	return results, nil
}

var _ secondary.ResultsRepository = (*ResultsRepository)(nil)
