package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"github.com/example/rollout/internal/core/ledger"
	"github.com/example/rollout/internal/ports/primary"
)

// LedgerAdapter translates plan and ledger commands into LedgerService calls.
type LedgerAdapter struct {
	service primary.LedgerService
	out     io.Writer
}

// NewLedgerAdapter creates a new LedgerAdapter.
func NewLedgerAdapter(service primary.LedgerService, out io.Writer) *LedgerAdapter {
	return &LedgerAdapter{
		service: service,
		out:     out,
	}
}

// ParsePhase parses "Name:task1,task2" into a plan phase. A phase with no
// colon has no tasks.
func ParsePhase(s string) (primary.PlanPhase, error) {
	name, tasks, _ := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return primary.PlanPhase{}, fmt.Errorf("phase %q has no name", s)
	}
	phase := primary.PlanPhase{Name: name}
	for _, t := range strings.Split(tasks, ",") {
		if t = strings.TrimSpace(t); t != "" {
			phase.Tasks = append(phase.Tasks, t)
		}
	}
	return phase, nil
}

// SetPlan creates or replaces a city's plan.
func (a *LedgerAdapter) SetPlan(ctx context.Context, cityID int64, start string, phaseSpecs []string) error {
	startDate, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return fmt.Errorf("invalid start date %q (expected YYYY-MM-DD)", start)
	}
	phases := make([]primary.PlanPhase, 0, len(phaseSpecs))
	for _, spec := range phaseSpecs {
		p, err := ParsePhase(spec)
		if err != nil {
			return err
		}
		phases = append(phases, p)
	}

	plan, err := a.service.UpsertPlan(ctx, primary.UpsertPlanRequest{
		CityID:    cityID,
		Phases:    phases,
		StartDate: startDate,
	})
	if err != nil {
		return fmt.Errorf("failed to set plan: %w", err)
	}
	fmt.Fprintf(a.out, "✓ Plan for city %d: %d phase(s) from %s\n", plan.CityID, len(plan.Phases), plan.StartDate.Format(time.DateOnly))
	return nil
}

// ShowPlan prints a city's plan.
func (a *LedgerAdapter) ShowPlan(ctx context.Context, cityID int64) error {
	plan, err := a.service.GetPlan(ctx, cityID)
	if err != nil {
		return fmt.Errorf("failed to get plan: %w", err)
	}

	fmt.Fprintf(a.out, "\nPlan for city %d (start %s)\n", plan.CityID, plan.StartDate.Format(time.DateOnly))
	if len(plan.Phases) == 0 {
		fmt.Fprintln(a.out, "  (no phases)")
	}
	for i, p := range plan.Phases {
		fmt.Fprintf(a.out, "  %d. %s\n", i+1, p.Name)
		for _, t := range p.Tasks {
			fmt.Fprintf(a.out, "     - %s\n", t)
		}
	}
	fmt.Fprintln(a.out)
	return nil
}

// Record merge-writes one month. Empty strings leave that side untouched.
func (a *LedgerAdapter) Record(ctx context.Context, cityID int64, month, projected, realized string) error {
	key, err := ledger.ParseMonthKey(month)
	if err != nil {
		return err
	}
	req := primary.RecordMonthRequest{CityID: cityID, Month: key}
	if req.Projected, err = parseAmount("projected", projected); err != nil {
		return err
	}
	if req.Realized, err = parseAmount("realized", realized); err != nil {
		return err
	}

	res, err := a.service.RecordMonth(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to record month: %w", err)
	}
	for _, w := range res.Outcome.Written {
		fmt.Fprintf(a.out, "✓ %s %s = %s (%s)\n", key, w.Kind, w.Entry.Amount.StringFixed(2), provenanceLabel(w.Entry.Provenance))
	}
	for _, k := range res.Outcome.Kept {
		fmt.Fprintf(a.out, "- %s %s kept at %s (%s)\n", key, k.Kind, k.Entry.Amount.StringFixed(2), provenanceLabel(k.Entry.Provenance))
	}
	fmt.Fprintf(a.out, "city %d now has %d month(s)\n", res.CityID, res.Months)
	return nil
}

func parseAmount(field, s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s amount %q", field, s)
	}
	return &d, nil
}

// Show prints the monthly series for a city, or one month when month is set.
func (a *LedgerAdapter) Show(ctx context.Context, cityID int64, month string) error {
	if month != "" {
		key, err := ledger.ParseMonthKey(month)
		if err != nil {
			return err
		}
		figs, err := a.service.GetMonth(ctx, cityID, key)
		if err != nil {
			return fmt.Errorf("failed to get month: %w", err)
		}
		w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MONTH\tPROJECTED\tREALIZED\tSOURCE")
		writeMonthRow(w, key, figs.Projected, figs.Realized)
		return w.Flush()
	}

	results, err := a.service.GetResults(ctx, cityID)
	if err != nil {
		return fmt.Errorf("failed to get results: %w", err)
	}
	if results.MonthCount() == 0 {
		fmt.Fprintf(a.out, "No months recorded for city %d\n", cityID)
		return nil
	}

	months := mergedMonths(results.Projected, results.Realized)
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MONTH\tPROJECTED\tREALIZED\tSOURCE")
	fmt.Fprintln(w, "-----\t---------\t--------\t------")
	for _, m := range months {
		var projected, realized *ledger.MonthEntry
		if e, ok := results.Projected.Get(m); ok {
			projected = &e
		}
		if e, ok := results.Realized.Get(m); ok {
			realized = &e
		}
		writeMonthRow(w, m, projected, realized)
	}
	return w.Flush()
}

func writeMonthRow(w io.Writer, m ledger.MonthKey, projected, realized *ledger.MonthEntry) {
	p, r, src := "-", "-", "-"
	if projected != nil {
		p = projected.Amount.StringFixed(2)
	}
	if realized != nil {
		r = realized.Amount.StringFixed(2)
		src = provenanceLabel(realized.Provenance)
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m, p, r, src)
}

// mergedMonths returns the ordered union of both series' months.
func mergedMonths(a, b ledger.Series) []ledger.MonthKey {
	out := make([]ledger.MonthKey, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j >= len(b) || (i < len(a) && a[i].Month < b[j].Month):
			out = append(out, a[i].Month)
			i++
		case i >= len(a) || b[j].Month < a[i].Month:
			out = append(out, b[j].Month)
			j++
		default:
			out = append(out, a[i].Month)
			i++
			j++
		}
	}
	return out
}

func provenanceLabel(p ledger.Provenance) string {
	switch p {
	case ledger.ProvenanceFallback:
		return color.New(color.FgYellow).Sprint(p)
	case ledger.ProvenanceTransactions:
		return color.New(color.FgGreen).Sprint(p)
	default:
		return string(p)
	}
}
