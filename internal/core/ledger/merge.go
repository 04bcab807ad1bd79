package ledger

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Provenance records where a stored monthly figure came from.
type Provenance string

const (
	// ProvenancePlan marks a projected (planned) figure.
	ProvenancePlan Provenance = "plan"
	// ProvenanceTransactions marks a realized figure summed from the transaction feed.
	ProvenanceTransactions Provenance = "transactions"
	// ProvenanceManual marks a realized figure entered by an operator.
	ProvenanceManual Provenance = "manual"
	// ProvenanceFallback marks a static estimate used when no transactions exist.
	ProvenanceFallback Provenance = "fallback"
)

// Real reports whether p stands for observed data rather than an estimate.
func (p Provenance) Real() bool {
	return p == ProvenanceTransactions || p == ProvenanceManual
}

// ParseProvenance validates a realized-side provenance name.
func ParseProvenance(s string) (Provenance, error) {
	switch p := Provenance(s); p {
	case ProvenanceTransactions, ProvenanceManual, ProvenanceFallback:
		return p, nil
	}
	return "", fmt.Errorf("unknown provenance %q", s)
}

// Kind selects one of the two monthly mappings.
type Kind string

const (
	KindProjected Kind = "projected"
	KindRealized  Kind = "realized"
)

// MonthEntry is one month's amount in a series.
type MonthEntry struct {
	Month      MonthKey
	Amount     decimal.Decimal
	Provenance Provenance
}

// Series is a month-ordered list of entries with unique months.
type Series []MonthEntry

// Get returns the entry for m, if present.
func (s Series) Get(m MonthKey) (MonthEntry, bool) {
	i := sort.Search(len(s), func(i int) bool { return s[i].Month >= m })
	if i < len(s) && s[i].Month == m {
		return s[i], true
	}
	return MonthEntry{}, false
}

// With returns a copy of s with e inserted or replaced, preserving order.
func (s Series) With(e MonthEntry) Series {
	out := make(Series, 0, len(s)+1)
	placed := false
	for _, cur := range s {
		switch {
		case cur.Month == e.Month:
			out = append(out, e)
			placed = true
			continue
		case !placed && cur.Month > e.Month:
			out = append(out, e)
			placed = true
		}
		out = append(out, cur)
	}
	if !placed {
		out = append(out, e)
	}
	return out
}

// Months lists the keys present in s.
func (s Series) Months() []MonthKey {
	out := make([]MonthKey, len(s))
	for i, e := range s {
		out[i] = e.Month
	}
	return out
}

// Results is the planning-results record for one city.
type Results struct {
	CityID    int64
	StartDate *time.Time
	Projected Series
	Realized  Series
}

// MonthCount returns the number of distinct months across both series.
func (r Results) MonthCount() int {
	seen := make(map[MonthKey]struct{}, len(r.Projected)+len(r.Realized))
	for _, e := range r.Projected {
		seen[e.Month] = struct{}{}
	}
	for _, e := range r.Realized {
		seen[e.Month] = struct{}{}
	}
	return len(seen)
}

// RealizedCounts splits the realized months into those backed by observed
// data and those filled from the fallback table.
func (r Results) RealizedCounts() (observed, fallback int) {
	for _, e := range r.Realized {
		switch {
		case e.Provenance.Real():
			observed++
		case e.Provenance == ProvenanceFallback:
			fallback++
		}
	}
	return observed, fallback
}

// Patch is a merge-write request for a single month.
type Patch struct {
	Month              MonthKey
	Projected          *decimal.Decimal
	Realized           *decimal.Decimal
	RealizedProvenance Provenance // defaults to manual
}

// Write is one key a merge decided to persist or to leave alone.
type Write struct {
	Kind  Kind
	Entry MonthEntry
}

// Outcome describes the effect of a merge.
type Outcome struct {
	Month   MonthKey
	Written []Write
	// Kept holds realized values that were refused because the stored
	// figure is real data and the incoming one is only a fallback.
	Kept []Write
}

// Changed reports whether anything was written.
func (o Outcome) Changed() bool { return len(o.Written) > 0 }

// ErrEmptyPatch is returned when neither amount is supplied.
var ErrEmptyPatch = errors.New("at least one of projected or realized amount is required")

// Merge applies p to existing, touching only p.Month.
// Rules:
// - Other months in either series are carried over untouched
// - A fallback realized value never replaces a real one
func Merge(existing Results, p Patch) (Results, Outcome, error) {
	out := Outcome{Month: p.Month}

	if !p.Month.Valid() {
		return existing, out, fmt.Errorf("invalid month %q (expected YYYY-MM)", p.Month)
	}
	if p.Projected == nil && p.Realized == nil {
		return existing, out, ErrEmptyPatch
	}

	prov := p.RealizedProvenance
	if prov == "" {
		prov = ProvenanceManual
	}
	if p.Realized != nil {
		if _, err := ParseProvenance(string(prov)); err != nil {
			return existing, out, err
		}
	}

	merged := Results{
		CityID:    existing.CityID,
		StartDate: existing.StartDate,
		Projected: existing.Projected,
		Realized:  existing.Realized,
	}

	if p.Projected != nil {
		e := MonthEntry{Month: p.Month, Amount: *p.Projected, Provenance: ProvenancePlan}
		merged.Projected = merged.Projected.With(e)
		out.Written = append(out.Written, Write{Kind: KindProjected, Entry: e})
	}

	if p.Realized != nil {
		e := MonthEntry{Month: p.Month, Amount: *p.Realized, Provenance: prov}
		if cur, ok := merged.Realized.Get(p.Month); ok && cur.Provenance.Real() && !prov.Real() {
			out.Kept = append(out.Kept, Write{Kind: KindRealized, Entry: cur})
		} else {
			merged.Realized = merged.Realized.With(e)
			out.Written = append(out.Written, Write{Kind: KindRealized, Entry: e})
		}
	}

	return merged, out, nil
}
