package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/example/rollout/internal/core/city"
	"github.com/example/rollout/internal/core/ledger"
	"github.com/example/rollout/internal/core/lifecycle"
	"github.com/example/rollout/internal/errs"
	"github.com/example/rollout/internal/ports/primary"
	"github.com/example/rollout/internal/ports/secondary"
)

// LifecycleServiceImpl implements the LifecycleService interface.
type LifecycleServiceImpl struct {
	cityService primary.CityService
	cityRepo    secondary.CityRepository
	planRepo    secondary.PlanRepository
	resultsRepo secondary.ResultsRepository
	policy      CallPolicy
	log         logrus.FieldLogger
}

// NewLifecycleService creates a new LifecycleService with injected dependencies.
func NewLifecycleService(
	cityService primary.CityService,
	cityRepo secondary.CityRepository,
	planRepo secondary.PlanRepository,
	resultsRepo secondary.ResultsRepository,
	log logrus.FieldLogger,
	policy CallPolicy,
) *LifecycleServiceImpl {
	return &LifecycleServiceImpl{
		cityService: cityService,
		cityRepo:    cityRepo,
		planRepo:    planRepo,
		resultsRepo: resultsRepo,
		policy:      policy,
		log:         log.WithField("module", "lifecycle"),
	}
}

// CanAdvance evaluates the gate without changing anything.
func (s *LifecycleServiceImpl) CanAdvance(ctx context.Context, cityID int64, target city.Status) (*primary.GateDecision, error) {
	rec, err := call(ctx, s.policy, s.log, "city.get", func(ctx context.Context) (*secondary.CityRecord, error) {
		return s.cityRepo.GetByID(ctx, cityID)
	})
	if err != nil {
		return nil, err
	}

	gctx, err := s.buildGateContext(ctx, rec, target)
	if err != nil {
		return nil, err
	}
	result := lifecycle.CanAdvance(gctx)

	return &primary.GateDecision{
		CityID:  rec.ID,
		Target:  target,
		Allowed: result.Allowed,
		Reason:  result.Reason,
	}, nil
}

// AdvanceGated evaluates the gate and, when allowed, advances the city.
// A city already at or past the target skips the gate and reports a no-op.
func (s *LifecycleServiceImpl) AdvanceGated(ctx context.Context, req primary.AdvanceRequest) (*primary.AdvanceResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	rec, err := call(ctx, s.policy, s.log, "city.get", func(ctx context.Context) (*secondary.CityRecord, error) {
		return s.cityRepo.GetByID(ctx, req.CityID)
	})
	if err != nil {
		return nil, err
	}

	if !req.Target.Valid() || !rec.Status.AtOrPast(req.Target) {
		decision, err := s.CanAdvance(ctx, req.CityID, req.Target)
		if err != nil {
			return nil, err
		}
		if !decision.Allowed {
			s.log.WithFields(logrus.Fields{
				"op":      "advance_gated",
				"city_id": req.CityID,
				"target":  req.Target,
				"reason":  decision.Reason,
			}).Info("advance denied by gate")
			return nil, errs.InvalidTransition("%s", decision.Reason)
		}
	}

	return s.cityService.Advance(ctx, req)
}

func (s *LifecycleServiceImpl) buildGateContext(ctx context.Context, rec *secondary.CityRecord, target city.Status) (lifecycle.GateContext, error) {
	gctx := lifecycle.GateContext{
		CityID:   rec.ID,
		CityName: rec.Name,
		Target:   target,
	}

	plan, err := call(ctx, s.policy, s.log, "plan.get", func(ctx context.Context) (*secondary.PlanRecord, error) {
		return s.planRepo.GetByCity(ctx, rec.ID)
	})
	switch {
	case errors.Is(err, errs.ErrNotFound):
		// no plan yet
	case err != nil:
		return gctx, fmt.Errorf("failed to load plan for city %d: %w", rec.ID, err)
	default:
		gctx.PhaseCount = len(plan.Phases)
	}

	results, err := call(ctx, s.policy, s.log, "results.get", func(ctx context.Context) (*ledger.Results, error) {
		return s.resultsRepo.GetByCity(ctx, rec.ID)
	})
	if err != nil {
		return gctx, fmt.Errorf("failed to load results for city %d: %w", rec.ID, err)
	}
	gctx.RealMonthCount, gctx.FallbackMonths = results.RealizedCounts()
	return gctx, nil
}

// Ensure LifecycleServiceImpl implements the interface
var _ primary.LifecycleService = (*LifecycleServiceImpl)(nil)
