package primary

import (
	"context"

	"github.com/example/rollout/internal/core/city"
)

// LifecycleService defines the primary port for the advance gate.
type LifecycleService interface {
	// CanAdvance evaluates the gate without changing anything.
	CanAdvance(ctx context.Context, cityID int64, target city.Status) (*GateDecision, error)

	// AdvanceGated evaluates the gate and, when allowed, advances the city.
	AdvanceGated(ctx context.Context, req AdvanceRequest) (*AdvanceResult, error)
}

// GateDecision is the outcome of a gate evaluation.
type GateDecision struct {
	CityID  int64
	Target  city.Status
	Allowed bool
	Reason  string
}
