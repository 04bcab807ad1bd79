// Package revenue contains the pure reconciliation rules: how a city's monthly
// figure is resolved from transaction evidence or a fallback estimate, how
// figures aggregate, and how totals are presented.
package revenue

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/example/rollout/internal/core/ledger"
)

// Evidence is what the transaction feed returned for one city and month.
type Evidence struct {
	Count int64
	Sum   decimal.Decimal
}

// Resolution is the figure chosen for one city and month.
type Resolution struct {
	Amount     decimal.Decimal
	Provenance ledger.Provenance
}

// ResolveContext provides the inputs for resolving one city/month.
type ResolveContext struct {
	CityName    string
	Month       ledger.MonthKey
	Evidence    Evidence
	Fallback    decimal.Decimal
	HasFallback bool
}

// ErrNoFigure is reported when there are no transactions and no fallback.
type ErrNoFigure struct {
	CityName string
	Month    ledger.MonthKey
}

func (e *ErrNoFigure) Error() string {
	return fmt.Sprintf("no transactions and no fallback estimate for %s in %s", e.CityName, e.Month)
}

// Resolve picks the realized figure when at least one transaction matched,
// otherwise the fallback estimate. A matched sum of zero is a real zero.
func Resolve(ctx ResolveContext) (Resolution, error) {
	if ctx.Evidence.Count > 0 {
		return Resolution{Amount: ctx.Evidence.Sum, Provenance: ledger.ProvenanceTransactions}, nil
	}
	if ctx.HasFallback {
		return Resolution{Amount: ctx.Fallback, Provenance: ledger.ProvenanceFallback}, nil
	}
	return Resolution{}, &ErrNoFigure{CityName: ctx.CityName, Month: ctx.Month}
}

// Aggregate sums one resolution per city. Keys are city ids, so a city can
// only ever contribute once.
func Aggregate(byCity map[int64]Resolution) decimal.Decimal {
	total := decimal.Zero
	for _, r := range byCity {
		total = total.Add(r.Amount)
	}
	return total
}

var thousand = decimal.NewFromInt(1000)

// FormatThousands renders amount/1000 rounded to one decimal with a "k" suffix.
func FormatThousands(amount decimal.Decimal) string {
	return amount.Div(thousand).Round(1).StringFixed(1) + "k"
}
