package primary

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/rollout/internal/core/ledger"
)

// LedgerService defines the primary port for the planning ledger.
type LedgerService interface {
	// UpsertPlan creates or replaces a city's phase plan.
	UpsertPlan(ctx context.Context, req UpsertPlanRequest) (*Plan, error)

	// GetPlan retrieves a city's phase plan.
	GetPlan(ctx context.Context, cityID int64) (*Plan, error)

	// RecordMonth merge-writes one month's projected and/or realized figure.
	RecordMonth(ctx context.Context, req RecordMonthRequest) (*RecordMonthResult, error)

	// GetMonth returns the projected and realized entries for one month.
	GetMonth(ctx context.Context, cityID int64, month ledger.MonthKey) (*MonthFigures, error)

	// GetResults returns the full monthly series for a city.
	GetResults(ctx context.Context, cityID int64) (*ledger.Results, error)
}

// UpsertPlanRequest contains parameters for setting a plan.
type UpsertPlanRequest struct {
	CityID    int64       `validate:"gt=0"`
	Phases    []PlanPhase `validate:"dive"`
	StartDate time.Time   `validate:"required"`
}

// PlanPhase is one ordered phase of a plan.
type PlanPhase struct {
	Name  string   `validate:"required"`
	Tasks []string `validate:"dive,required"`
}

// Plan represents a city's phase plan at the port boundary.
type Plan struct {
	CityID    int64
	Phases    []PlanPhase
	StartDate time.Time
	UpdatedAt time.Time
}

// RecordMonthRequest contains parameters for a merge-write.
// Nil amounts leave the corresponding mapping untouched.
type RecordMonthRequest struct {
	CityID     int64           `validate:"gt=0"`
	Month      ledger.MonthKey `validate:"monthkey"`
	Projected  *decimal.Decimal
	Realized   *decimal.Decimal
	Provenance ledger.Provenance // realized side; defaults to manual
}

// RecordMonthResult describes what the merge wrote.
type RecordMonthResult struct {
	CityID  int64
	Outcome ledger.Outcome
	Months  int // distinct months present after the write
}

// MonthFigures holds one month's entries; either may be nil.
type MonthFigures struct {
	CityID    int64
	Month     ledger.MonthKey
	Projected *ledger.MonthEntry
	Realized  *ledger.MonthEntry
}
