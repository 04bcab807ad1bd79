package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/example/rollout/internal/core/ledger"
	"github.com/example/rollout/internal/errs"
	"github.com/example/rollout/internal/ports/primary"
)

// ReconcileAdapter translates reconcile commands into ReconcileService calls.
type ReconcileAdapter struct {
	service primary.ReconcileService
	out     io.Writer
}

// NewReconcileAdapter creates a new ReconcileAdapter.
func NewReconcileAdapter(service primary.ReconcileService, out io.Writer) *ReconcileAdapter {
	return &ReconcileAdapter{
		service: service,
		out:     out,
	}
}

// Month reconciles the given cities for one month and prints the report.
// A partial failure is printed and then returned.
func (a *ReconcileAdapter) Month(ctx context.Context, month string, cityIDs []int64) error {
	key, err := ledger.ParseMonthKey(month)
	if err != nil {
		return err
	}
	report, err := a.service.ReconcileBatch(ctx, primary.ReconcileBatchRequest{CityIDs: cityIDs, Month: key})
	if report == nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CITY\tNAME\tAMOUNT\tSOURCE\tTXNS")
	fmt.Fprintln(w, "----\t----\t------\t------\t----")
	for _, r := range report.Results {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", r.CityID, r.CityName, r.Amount.StringFixed(2), provenanceLabel(r.Provenance), r.TransactionCount)
	}
	w.Flush()

	a.writeFailures(report.Failures)
	fmt.Fprintf(a.out, "\n%s total: %s (%s)\n", report.Month, report.Total.StringFixed(2), report.Display)
	return err
}

// Range reconciles a month range and prints per-month totals.
func (a *ReconcileAdapter) Range(ctx context.Context, from, to string, cityIDs []int64) error {
	first, err := ledger.ParseMonthKey(from)
	if err != nil {
		return err
	}
	last, err := ledger.ParseMonthKey(to)
	if err != nil {
		return err
	}
	resp, err := a.service.MonthlyRevenue(ctx, primary.MonthlyRevenueRequest{CityIDs: cityIDs, From: first, To: last})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MONTH\tTOTAL\tDISPLAY\tSTATUS")
	fmt.Fprintln(w, "-----\t-----\t-------\t------")
	for _, m := range resp.Months {
		status := "complete"
		if m.Partial() {
			status = color.YellowString("partial (%d failed)", m.Failed)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Month, m.Amount.StringFixed(2), m.Display, status)
	}
	w.Flush()

	a.writeFailures(resp.Failures)
	if !resp.Success {
		return fmt.Errorf("monthly revenue incomplete: %s", resp.Error)
	}
	return nil
}

func (a *ReconcileAdapter) writeFailures(failures []errs.UnitFailure) {
	for _, f := range failures {
		fmt.Fprintf(a.out, "%s %s: %s\n", color.New(color.FgRed).Sprint("✗"), f.Unit, f.Reason)
	}
}
