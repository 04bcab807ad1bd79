// Package city contains the pure business logic for the rollout status state machine.
// Guards are pure functions that evaluate preconditions without side effects.
package city

import (
	"fmt"
	"strings"
)

// Status is a city's stage in the rollout lifecycle.
type Status string

const (
	StatusPlanning     Status = "PLANNING"
	StatusExpansion    Status = "EXPANSION"
	StatusConsolidated Status = "CONSOLIDATED"
)

// order gives the position of each status in the single progression.
var order = map[Status]int{
	StatusPlanning:     0,
	StatusExpansion:    1,
	StatusConsolidated: 2,
}

// Statuses lists every status in progression order.
func Statuses() []Status {
	return []Status{StatusPlanning, StatusExpansion, StatusConsolidated}
}

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q (expected PLANNING, EXPANSION or CONSOLIDATED)", s)
	}
	return st, nil
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := order[s]
	return ok
}

// Rank returns the position of s in the progression, or -1 if unknown.
func (s Status) Rank() int {
	if r, ok := order[s]; ok {
		return r
	}
	return -1
}

// AtOrPast reports whether s is the same as or later than other.
func (s Status) AtOrPast(other Status) bool {
	return s.Rank() >= other.Rank()
}

// Next returns the status immediately after s. CONSOLIDATED has no successor.
func (s Status) Next() (Status, bool) {
	switch s {
	case StatusPlanning:
		return StatusExpansion, true
	case StatusExpansion:
		return StatusConsolidated, true
	}
	return "", false
}

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	NoOp    bool // allowed, but nothing to change
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// TransitionContext provides context for status transition guards.
type TransitionContext struct {
	CityID  int64
	Current Status
	Target  Status
}

// CanTransition evaluates a normal (non-forced) status change.
// Rules:
// - Target must be a known status
// - Target at or before current status is an idempotent no-op
// - Target must be exactly the next status (no skipping)
func CanTransition(ctx TransitionContext) GuardResult {
	if !ctx.Target.Valid() {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("unknown target status %q for city %d", ctx.Target, ctx.CityID),
		}
	}
	if !ctx.Current.Valid() {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("city %d has unknown current status %q", ctx.CityID, ctx.Current),
		}
	}

	if ctx.Current.AtOrPast(ctx.Target) {
		return GuardResult{Allowed: true, NoOp: true}
	}

	next, _ := ctx.Current.Next()
	if next != ctx.Target {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("city %d cannot move from %s to %s (next status is %s)", ctx.CityID, ctx.Current, ctx.Target, next),
		}
	}

	return GuardResult{Allowed: true}
}

// CanForceConsolidate evaluates the administrative override.
// Only the no-op case is special: a consolidated city stays as it is.
func CanForceConsolidate(ctx TransitionContext) GuardResult {
	if !ctx.Current.Valid() {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("city %d has unknown current status %q", ctx.CityID, ctx.Current),
		}
	}
	if ctx.Current == StatusConsolidated {
		return GuardResult{Allowed: true, NoOp: true}
	}
	return GuardResult{Allowed: true}
}

// NeedsStartDate reports whether reaching target requires an implementation
// start date to be stamped.
func NeedsStartDate(target Status, hasStartDate bool) bool {
	return !hasStartDate && target.AtOrPast(StatusExpansion)
}

// DemographicsContext provides context for demographic update guards.
type DemographicsContext struct {
	CityID               int64
	Population           int64
	WorkingAgePopulation int64
}

// CanUpdateDemographics evaluates a population update.
// Rules:
// - Counts must be non-negative
// - Working-age population is a subset of the total
func CanUpdateDemographics(ctx DemographicsContext) GuardResult {
	if ctx.Population < 0 || ctx.WorkingAgePopulation < 0 {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("population figures for city %d must be non-negative", ctx.CityID),
		}
	}
	if ctx.WorkingAgePopulation > ctx.Population {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("working-age population %d exceeds population %d for city %d", ctx.WorkingAgePopulation, ctx.Population, ctx.CityID),
		}
	}
	return GuardResult{Allowed: true}
}
