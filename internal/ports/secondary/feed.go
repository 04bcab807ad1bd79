package secondary

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a feed transaction.
type TransactionType string

const (
	TransactionCredit TransactionType = "CREDIT"
	TransactionDebit  TransactionType = "DEBIT"
)

// TransactionQuery is a parameterised filter over the transaction feed.
// The time range is half-open: From <= timestamp < To.
type TransactionQuery struct {
	City                string
	Type                TransactionType
	DescriptionContains string // case-insensitive
	From                time.Time
	To                  time.Time
}

// TransactionSummary is the count and sum of matching rows.
type TransactionSummary struct {
	Count int64
	Sum   decimal.Decimal
}

// TransactionFeed defines the read-only port onto the transaction log.
type TransactionFeed interface {
	// Summarize counts and sums the rows matching q.
	Summarize(ctx context.Context, q TransactionQuery) (TransactionSummary, error)
}

// FallbackSource supplies static monthly revenue estimates by city name.
type FallbackSource interface {
	// Estimate returns the estimate for a city, or false when none is configured.
	Estimate(cityName string) (decimal.Decimal, bool)
}

// FallbackTable is the map-backed FallbackSource.
type FallbackTable map[string]decimal.Decimal

// Estimate implements FallbackSource.
func (t FallbackTable) Estimate(cityName string) (decimal.Decimal, bool) {
	v, ok := t[cityName]
	return v, ok
}
