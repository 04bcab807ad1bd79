package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/example/rollout/internal/core/ledger"
	"github.com/example/rollout/internal/errs"
	"github.com/example/rollout/internal/ports/primary"
	"github.com/example/rollout/internal/ports/secondary"
)

// LedgerServiceImpl implements the LedgerService interface.
type LedgerServiceImpl struct {
	cityRepo    secondary.CityRepository
	planRepo    secondary.PlanRepository
	resultsRepo secondary.ResultsRepository
	audit       secondary.AuditLog
	locker      secondary.CityLocker
	policy      CallPolicy
	log         logrus.FieldLogger
}

// NewLedgerService creates a new LedgerService with injected dependencies.
func NewLedgerService(
	cityRepo secondary.CityRepository,
	planRepo secondary.PlanRepository,
	resultsRepo secondary.ResultsRepository,
	audit secondary.AuditLog,
	locker secondary.CityLocker,
	log logrus.FieldLogger,
	policy CallPolicy,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		cityRepo:    cityRepo,
		planRepo:    planRepo,
		resultsRepo: resultsRepo,
		audit:       audit,
		locker:      locker,
		policy:      policy,
		log:         log.WithField("module", "ledger"),
	}
}

// UpsertPlan creates or replaces a city's phase plan.
func (s *LedgerServiceImpl) UpsertPlan(ctx context.Context, req primary.UpsertPlanRequest) (*primary.Plan, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := s.requireCity(ctx, req.CityID); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, req.CityID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock city %d: %w", req.CityID, err)
	}
	defer unlock()

	record := &secondary.PlanRecord{
		CityID:    req.CityID,
		Phases:    make([]secondary.PhaseRecord, len(req.Phases)),
		StartDate: req.StartDate,
	}
	for i, p := range req.Phases {
		record.Phases[i] = secondary.PhaseRecord{Name: p.Name, Tasks: append([]string(nil), p.Tasks...)}
	}

	err = exec(ctx, s.policy, s.log, "plan.upsert", func(ctx context.Context) error {
		return s.planRepo.Upsert(ctx, record)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save plan: %w", err)
	}

	// The results ledger starts with the plan unless it already has a date.
	results, err := s.getResults(ctx, req.CityID)
	if err != nil {
		return nil, err
	}
	if results.StartDate == nil {
		err = exec(ctx, s.policy, s.log, "results.set_start_date", func(ctx context.Context) error {
			return s.resultsRepo.SetStartDate(ctx, req.CityID, req.StartDate)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to set results start date: %w", err)
		}
	}

	names := make([]string, len(req.Phases))
	for i, p := range req.Phases {
		names[i] = p.Name
	}
	s.auditUpdate(ctx, req.CityID, "plan", "phases", "", strings.Join(names, " > "))

	s.log.WithFields(logrus.Fields{
		"op":      "upsert_plan",
		"city_id": req.CityID,
		"phases":  len(req.Phases),
	}).Info("plan saved")

	return s.GetPlan(ctx, req.CityID)
}

// GetPlan retrieves a city's phase plan.
func (s *LedgerServiceImpl) GetPlan(ctx context.Context, cityID int64) (*primary.Plan, error) {
	record, err := call(ctx, s.policy, s.log, "plan.get", func(ctx context.Context) (*secondary.PlanRecord, error) {
		return s.planRepo.GetByCity(ctx, cityID)
	})
	if err != nil {
		return nil, err
	}
	return recordToPlan(record), nil
}

// RecordMonth merge-writes one month's figures under the city's lock.
func (s *LedgerServiceImpl) RecordMonth(ctx context.Context, req primary.RecordMonthRequest) (*primary.RecordMonthResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.Projected == nil && req.Realized == nil {
		return nil, ledger.ErrEmptyPatch
	}
	if err := s.requireCity(ctx, req.CityID); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, req.CityID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock city %d: %w", req.CityID, err)
	}
	defer unlock()

	patch := ledger.Patch{
		Month:              req.Month,
		Projected:          req.Projected,
		Realized:           req.Realized,
		RealizedProvenance: req.Provenance,
	}
	outcome, err := call(ctx, s.policy, s.log, "results.merge_month", func(ctx context.Context) (ledger.Outcome, error) {
		return s.resultsRepo.MergeMonth(ctx, req.CityID, patch)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record %s for city %d: %w", req.Month, req.CityID, err)
	}

	for _, w := range outcome.Written {
		s.auditUpdate(ctx, req.CityID, "results", string(w.Kind)+":"+string(w.Entry.Month),
			"", w.Entry.Amount.String()+" ("+string(w.Entry.Provenance)+")")
	}
	for _, k := range outcome.Kept {
		s.log.WithFields(logrus.Fields{
			"op":         "record_month",
			"city_id":    req.CityID,
			"month":      req.Month,
			"provenance": k.Entry.Provenance,
		}).Info("kept existing real figure over fallback estimate")
	}

	results, err := s.getResults(ctx, req.CityID)
	if err != nil {
		return nil, err
	}

	return &primary.RecordMonthResult{
		CityID:  req.CityID,
		Outcome: outcome,
		Months:  results.MonthCount(),
	}, nil
}

// GetMonth returns the projected and realized entries for one month.
func (s *LedgerServiceImpl) GetMonth(ctx context.Context, cityID int64, month ledger.MonthKey) (*primary.MonthFigures, error) {
	if !month.Valid() {
		return nil, fmt.Errorf("invalid month %q (expected YYYY-MM)", month)
	}
	results, err := s.GetResults(ctx, cityID)
	if err != nil {
		return nil, err
	}

	figures := &primary.MonthFigures{CityID: cityID, Month: month}
	if e, ok := results.Projected.Get(month); ok {
		figures.Projected = &e
	}
	if e, ok := results.Realized.Get(month); ok {
		figures.Realized = &e
	}
	return figures, nil
}

// GetResults returns the full monthly series for a city.
func (s *LedgerServiceImpl) GetResults(ctx context.Context, cityID int64) (*ledger.Results, error) {
	if err := s.requireCity(ctx, cityID); err != nil {
		return nil, err
	}
	return s.getResults(ctx, cityID)
}

func (s *LedgerServiceImpl) getResults(ctx context.Context, cityID int64) (*ledger.Results, error) {
	results, err := call(ctx, s.policy, s.log, "results.get", func(ctx context.Context) (*ledger.Results, error) {
		return s.resultsRepo.GetByCity(ctx, cityID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load results for city %d: %w", cityID, err)
	}
	return results, nil
}

func (s *LedgerServiceImpl) requireCity(ctx context.Context, cityID int64) error {
	_, err := call(ctx, s.policy, s.log, "city.get", func(ctx context.Context) (*secondary.CityRecord, error) {
		return s.cityRepo.GetByID(ctx, cityID)
	})
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("failed to load city %d: %w", cityID, err)
	}
	return err
}

func (s *LedgerServiceImpl) auditUpdate(ctx context.Context, cityID int64, entity, field, oldValue, newValue string) {
	if err := s.audit.LogUpdate(ctx, entity, strconv.FormatInt(cityID, 10), field, oldValue, newValue); err != nil {
		s.log.WithError(err).WithField("city_id", cityID).Warn("failed to write audit entry")
	}
}

func recordToPlan(r *secondary.PlanRecord) *primary.Plan {
	phases := make([]primary.PlanPhase, len(r.Phases))
	for i, p := range r.Phases {
		phases[i] = primary.PlanPhase{Name: p.Name, Tasks: p.Tasks}
	}
	return &primary.Plan{
		CityID:    r.CityID,
		Phases:    phases,
		StartDate: r.StartDate,
		UpdatedAt: r.UpdatedAt,
	}
}

// Ensure LedgerServiceImpl implements the interface
var _ primary.LedgerService = (*LedgerServiceImpl)(nil)
