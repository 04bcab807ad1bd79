// Package lifecycle contains the pure policy deciding whether a city's ledger
// is mature enough for a status advance.
package lifecycle

import (
	"fmt"

	"github.com/example/rollout/internal/core/city"
)

// GateContext provides context for the advance gate.
type GateContext struct {
	CityID         int64
	CityName       string
	Target         city.Status
	PhaseCount     int
	RealMonthCount int // realized months whose provenance is not fallback
	FallbackMonths int
}

// GuardResult represents the outcome of a gate evaluation.
type GuardResult = city.GuardResult

// CanAdvance evaluates whether a city may advance to the target status.
// Rules:
// - PLANNING is always reachable (it is the initial state)
// - EXPANSION requires at least one planned phase
// - CONSOLIDATED additionally requires one realized month backed by real data
func CanAdvance(ctx GateContext) GuardResult {
	switch ctx.Target {
	case city.StatusPlanning:
		return GuardResult{Allowed: true}

	case city.StatusExpansion:
		return requirePlan(ctx)

	case city.StatusConsolidated:
		if r := requirePlan(ctx); !r.Allowed {
			return r
		}
		if ctx.RealMonthCount == 0 {
			reason := fmt.Sprintf("city %s has no realized month backed by transactions", label(ctx))
			if ctx.FallbackMonths > 0 {
				reason = fmt.Sprintf("%s (%d month(s) hold fallback estimates only)", reason, ctx.FallbackMonths)
			}
			return GuardResult{Allowed: false, Reason: reason}
		}
		return GuardResult{Allowed: true}
	}

	return GuardResult{
		Allowed: false,
		Reason:  fmt.Sprintf("unknown target status %q", ctx.Target),
	}
}

func requirePlan(ctx GateContext) GuardResult {
	if ctx.PhaseCount == 0 {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("city %s has no plan phases; set a plan first", label(ctx)),
		}
	}
	return GuardResult{Allowed: true}
}

func label(ctx GateContext) string {
	if ctx.CityName != "" {
		return fmt.Sprintf("%d (%s)", ctx.CityID, ctx.CityName)
	}
	return fmt.Sprintf("%d", ctx.CityID)
}
