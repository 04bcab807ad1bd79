package primary

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/example/rollout/internal/core/ledger"
	"github.com/example/rollout/internal/errs"
)

// ReconcileService defines the primary port for revenue reconciliation.
type ReconcileService interface {
	// ReconcileMonth resolves and stores one city's realized revenue for a month.
	ReconcileMonth(ctx context.Context, cityID int64, month ledger.MonthKey) (*Reconciliation, error)

	// ReconcileBatch reconciles several cities for one month and aggregates them.
	// A partial failure returns the report together with *errs.PartialBatchFailure.
	ReconcileBatch(ctx context.Context, req ReconcileBatchRequest) (*ReconcileBatchReport, error)

	// MonthlyRevenue reconciles a month range for a set of cities and returns
	// per-month totals inside a success/failure envelope.
	MonthlyRevenue(ctx context.Context, req MonthlyRevenueRequest) (*MonthlyRevenueResponse, error)
}

// Reconciliation is the resolved figure for one city and month.
type Reconciliation struct {
	CityID           int64
	CityName         string
	Month            ledger.MonthKey
	Amount           decimal.Decimal
	Provenance       ledger.Provenance
	TransactionCount int64
	Stored           ledger.Outcome
}

// ReconcileBatchRequest contains parameters for a multi-city reconciliation.
type ReconcileBatchRequest struct {
	CityIDs []int64         `validate:"min=1,dive,gt=0"`
	Month   ledger.MonthKey `validate:"monthkey"`
}

// ReconcileBatchReport is the fan-in result of a batch reconciliation.
type ReconcileBatchReport struct {
	Month    ledger.MonthKey
	Results  []*Reconciliation // ordered by city id
	Failures []errs.UnitFailure
	Total    decimal.Decimal
	Display  string // e.g. "2.6k"
}

// MonthlyRevenueRequest contains parameters for a month-range revenue query.
type MonthlyRevenueRequest struct {
	CityIDs []int64         `validate:"min=1,dive,gt=0"`
	From    ledger.MonthKey `validate:"monthkey"`
	To      ledger.MonthKey `validate:"monthkey"`
}

// MonthlyRevenueResponse is the envelope returned to the service layer.
type MonthlyRevenueResponse struct {
	Success  bool
	Months   []MonthTotal // ordered by month
	Failures []errs.UnitFailure
	Error    string
}

// MonthTotal is one month's aggregated revenue. When Failed is non-zero the
// amount only covers the cities that resolved.
type MonthTotal struct {
	Month   ledger.MonthKey
	Amount  decimal.Decimal
	Display string
	Failed  int
}

// Partial reports whether some cities are missing from the total.
func (t MonthTotal) Partial() bool { return t.Failed > 0 }

// AsMap returns the totals keyed by month.
func (r *MonthlyRevenueResponse) AsMap() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(r.Months))
	for _, m := range r.Months {
		out[string(m.Month)] = m.Amount
	}
	return out
}
