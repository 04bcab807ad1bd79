// Package cli provides thin CLI adapters that translate between CLI concerns
// and application services. Adapters handle argument parsing, output formatting,
// but delegate business logic to services.
package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/example/rollout/internal/core/city"
	"github.com/example/rollout/internal/ports/primary"
)

// CityAdapter translates city and gate commands into CityService and
// LifecycleService calls.
type CityAdapter struct {
	cities primary.CityService
	gate   primary.LifecycleService
	out    io.Writer
}

// NewCityAdapter creates a new CityAdapter.
func NewCityAdapter(cities primary.CityService, gate primary.LifecycleService, out io.Writer) *CityAdapter {
	return &CityAdapter{
		cities: cities,
		gate:   gate,
		out:    out,
	}
}

// List lists cities with an optional status filter.
func (a *CityAdapter) List(ctx context.Context, status string) error {
	filters := primary.CityFilters{}
	if status != "" {
		s, err := city.ParseStatus(status)
		if err != nil {
			return err
		}
		filters.Status = s
	}

	cities, err := a.cities.ListCities(ctx, filters)
	if err != nil {
		return fmt.Errorf("failed to list cities: %w", err)
	}
	if len(cities) == 0 {
		fmt.Fprintln(a.out, "No cities found")
		return nil
	}
	a.writeCities(cities)
	return nil
}

// Find looks cities up by name.
func (a *CityAdapter) Find(ctx context.Context, query string, exact bool) error {
	cities, err := a.cities.FindCities(ctx, query, exact)
	if err != nil {
		return fmt.Errorf("failed to find cities: %w", err)
	}
	if len(cities) == 0 {
		fmt.Fprintf(a.out, "No cities match %q\n", query)
		return nil
	}
	a.writeCities(cities)
	return nil
}

func (a *CityAdapter) writeCities(cities []*primary.City) {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSTARTED\tPOPULATION")
	fmt.Fprintln(w, "--\t----\t------\t-------\t----------")
	for _, c := range cities {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", c.ID, c.Name, statusLabel(c.Status), dateOrDash(c.ImplementationStartDate), c.Population)
	}
	w.Flush()
}

// Show displays a single city.
func (a *CityAdapter) Show(ctx context.Context, cityID int64) (*primary.City, error) {
	c, err := a.cities.GetCity(ctx, cityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get city: %w", err)
	}

	fmt.Fprintf(a.out, "\nCity:    %s (%d)\n", c.Name, c.ID)
	fmt.Fprintf(a.out, "Status:  %s\n", statusLabel(c.Status))
	fmt.Fprintf(a.out, "Started: %s\n", dateOrDash(c.ImplementationStartDate))
	fmt.Fprintf(a.out, "Population: %d (working age %d)\n", c.Population, c.WorkingAgePopulation)
	if c.Region != "" {
		fmt.Fprintf(a.out, "Region:  %s\n", c.Region)
	}
	if c.Mayor != "" {
		fmt.Fprintf(a.out, "Mayor:   %s\n", c.Mayor)
	}
	fmt.Fprintln(a.out)
	return c, nil
}

// Advance moves a city to target. The gate is consulted unless skipGate is set.
func (a *CityAdapter) Advance(ctx context.Context, cityID int64, target string, skipGate bool) error {
	status, err := city.ParseStatus(target)
	if err != nil {
		return err
	}
	req := primary.AdvanceRequest{CityID: cityID, Target: status}

	var res *primary.AdvanceResult
	if skipGate {
		res, err = a.cities.Advance(ctx, req)
	} else {
		res, err = a.gate.AdvanceGated(ctx, req)
	}
	if err != nil {
		return err
	}
	a.writeAdvance(res)
	return nil
}

func (a *CityAdapter) writeAdvance(res *primary.AdvanceResult) {
	if !res.Changed {
		fmt.Fprintf(a.out, "- %s already %s\n", res.CityName, statusLabel(res.From))
		return
	}
	fmt.Fprintf(a.out, "✓ %s: %s → %s", res.CityName, statusLabel(res.From), statusLabel(res.To))
	if res.ImplementationStartDate != nil {
		fmt.Fprintf(a.out, " (started %s)", res.ImplementationStartDate.Format(time.DateOnly))
	}
	fmt.Fprintln(a.out)
}

// BatchAdvance advances every named city to target and prints the fan-in report.
func (a *CityAdapter) BatchAdvance(ctx context.Context, target string, names []string) error {
	status, err := city.ParseStatus(target)
	if err != nil {
		return err
	}
	report, err := a.cities.BatchAdvance(ctx, primary.BatchAdvanceRequest{Names: names, Target: status})
	if report != nil {
		a.writeBatch(report)
	}
	return err
}

// ForceConsolidate runs the administrative override for the named cities.
func (a *CityAdapter) ForceConsolidate(ctx context.Context, reason string, names []string) error {
	report, err := a.cities.ForceConsolidate(ctx, primary.ForceConsolidateRequest{Names: names, Reason: reason})
	if report != nil {
		fmt.Fprintln(a.out, color.New(color.FgYellow).Sprint("! forced consolidation: "+reason))
		a.writeBatch(report)
	}
	return err
}

func (a *CityAdapter) writeBatch(report *primary.BatchAdvanceResult) {
	for _, res := range report.Results {
		a.writeAdvance(res)
	}
	for _, f := range report.Failures {
		fmt.Fprintf(a.out, "%s %s: %s\n", color.New(color.FgRed).Sprint("✗"), f.Unit, f.Reason)
	}
	fmt.Fprintf(a.out, "\nrequested %d, matched %d, changed %d\n", report.Requested, report.Matched, report.Changed)
	if len(report.Unmatched) > 0 {
		fmt.Fprintf(a.out, "%s %v\n", color.New(color.FgYellow).Sprint("unmatched:"), report.Unmatched)
	}
}

// Demographics updates a city's population figures.
func (a *CityAdapter) Demographics(ctx context.Context, cityID, population, workingAge int64) error {
	c, err := a.cities.UpdateDemographics(ctx, primary.UpdateDemographicsRequest{
		CityID:               cityID,
		Population:           population,
		WorkingAgePopulation: workingAge,
	})
	if err != nil {
		return fmt.Errorf("failed to update demographics: %w", err)
	}
	fmt.Fprintf(a.out, "✓ %s: population %d, working age %d\n", c.Name, c.Population, c.WorkingAgePopulation)
	return nil
}

// GateCheck prints the gate decision without changing anything.
func (a *CityAdapter) GateCheck(ctx context.Context, cityID int64, target string) (*primary.GateDecision, error) {
	status, err := city.ParseStatus(target)
	if err != nil {
		return nil, err
	}
	d, err := a.gate.CanAdvance(ctx, cityID, status)
	if err != nil {
		return nil, err
	}
	if d.Allowed {
		fmt.Fprintf(a.out, "%s city %d may advance to %s\n", color.New(color.FgGreen).Sprint("✓"), d.CityID, d.Target)
		return d, nil
	}
	fmt.Fprintf(a.out, "%s city %d may not advance to %s: %s\n", color.New(color.FgRed).Sprint("✗"), d.CityID, d.Target, d.Reason)
	return d, nil
}

func statusLabel(s city.Status) string {
	switch s {
	case city.StatusPlanning:
		return color.New(color.FgBlue).Sprint(s)
	case city.StatusExpansion:
		return color.New(color.FgYellow).Sprint(s)
	case city.StatusConsolidated:
		return color.New(color.FgGreen).Sprint(s)
	default:
		return string(s)
	}
}

func dateOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}

