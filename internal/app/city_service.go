package app

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/rollout/internal/core/city"
	"github.com/example/rollout/internal/errs"
	"github.com/example/rollout/internal/ports/primary"
	"github.com/example/rollout/internal/ports/secondary"
)

// CityServiceImpl implements the CityService interface.
type CityServiceImpl struct {
	cityRepo    secondary.CityRepository
	audit       secondary.AuditLog
	locker      secondary.CityLocker
	policy      CallPolicy
	concurrency int
	log         logrus.FieldLogger
	now         func() time.Time
}

// CityServiceOptions carries the tunables of the city service.
type CityServiceOptions struct {
	Policy      CallPolicy
	Concurrency int
	Now         func() time.Time
}

// NewCityService creates a new CityService with injected dependencies.
func NewCityService(
	cityRepo secondary.CityRepository,
	audit secondary.AuditLog,
	locker secondary.CityLocker,
	log logrus.FieldLogger,
	opts CityServiceOptions,
) *CityServiceImpl {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &CityServiceImpl{
		cityRepo:    cityRepo,
		audit:       audit,
		locker:      locker,
		policy:      opts.Policy,
		concurrency: opts.Concurrency,
		log:         log.WithField("module", "city"),
		now:         opts.Now,
	}
}

// CreateCity registers a city record.
func (s *CityServiceImpl) CreateCity(ctx context.Context, req primary.CreateCityRequest) (*primary.City, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = city.StatusPlanning
	}
	if !status.Valid() {
		return nil, fmt.Errorf("unknown status %q", status)
	}

	record := &secondary.CityRecord{
		ID:                   req.ID,
		Name:                 req.Name,
		Status:               status,
		Population:           req.Population,
		WorkingAgePopulation: req.WorkingAgePopulation,
		Region:               req.Region,
		Demonym:              req.Demonym,
		Mayor:                req.Mayor,
	}
	if city.NeedsStartDate(status, false) {
		now := s.now()
		record.ImplementationStartDate = &now
	}

	err := exec(ctx, s.policy, s.log, "city.create", func(ctx context.Context) error {
		return s.cityRepo.Create(ctx, record)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create city: %w", err)
	}

	return s.GetCity(ctx, req.ID)
}

// GetCity retrieves a city by id.
func (s *CityServiceImpl) GetCity(ctx context.Context, cityID int64) (*primary.City, error) {
	record, err := s.getRecord(ctx, cityID)
	if err != nil {
		return nil, err
	}
	return recordToCity(record), nil
}

// FindCities looks cities up by exact name or case-insensitive substring.
func (s *CityServiceImpl) FindCities(ctx context.Context, query string, exact bool) ([]*primary.City, error) {
	var (
		records []*secondary.CityRecord
		err     error
	)
	if exact {
		records, err = call(ctx, s.policy, s.log, "city.get_by_names", func(ctx context.Context) ([]*secondary.CityRecord, error) {
			return s.cityRepo.GetByNames(ctx, []string{query})
		})
	} else {
		records, err = call(ctx, s.policy, s.log, "city.list", func(ctx context.Context) ([]*secondary.CityRecord, error) {
			return s.cityRepo.List(ctx, secondary.CityFilters{NameContains: query})
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find cities: %w", err)
	}
	return recordsToCities(records), nil
}

// ListCities lists cities with optional filters.
func (s *CityServiceImpl) ListCities(ctx context.Context, filters primary.CityFilters) ([]*primary.City, error) {
	records, err := call(ctx, s.policy, s.log, "city.list", func(ctx context.Context) ([]*secondary.CityRecord, error) {
		return s.cityRepo.List(ctx, secondary.CityFilters{Status: filters.Status, Limit: filters.Limit})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list cities: %w", err)
	}
	return recordsToCities(records), nil
}

// Advance moves a city one step forward in the rollout.
func (s *CityServiceImpl) Advance(ctx context.Context, req primary.AdvanceRequest) (*primary.AdvanceResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, req.CityID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock city %d: %w", req.CityID, err)
	}
	defer unlock()

	record, err := s.getRecord(ctx, req.CityID)
	if err != nil {
		return nil, err
	}

	guard := city.CanTransition(city.TransitionContext{
		CityID:  record.ID,
		Current: record.Status,
		Target:  req.Target,
	})
	if !guard.Allowed {
		return nil, errs.InvalidTransition("%s", guard.Reason)
	}
	if guard.NoOp {
		return &primary.AdvanceResult{
			CityID:                  record.ID,
			CityName:                record.Name,
			From:                    record.Status,
			To:                      record.Status,
			ImplementationStartDate: record.ImplementationStartDate,
		}, nil
	}

	return s.applyTransition(ctx, record, req.Target, "advance")
}

// applyTransition writes a status change that a guard already allowed.
// Caller must hold the city's lock.
func (s *CityServiceImpl) applyTransition(ctx context.Context, record *secondary.CityRecord, target city.Status, op string) (*primary.AdvanceResult, error) {
	var stamp *time.Time
	if city.NeedsStartDate(target, record.ImplementationStartDate != nil) {
		now := s.now()
		stamp = &now
	}

	changed, err := call(ctx, s.policy, s.log, "city.update_status", func(ctx context.Context) (bool, error) {
		return s.cityRepo.UpdateStatus(ctx, record.ID, record.Status, target, stamp)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update status of city %d: %w", record.ID, err)
	}

	// A retried update may find its own earlier attempt already applied.
	current, err := s.getRecord(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	if !changed && current.Status != target {
		return nil, fmt.Errorf("city %d changed concurrently (now %s)", record.ID, current.Status)
	}

	s.auditUpdate(ctx, record.ID, "status", string(record.Status), string(target))
	if record.ImplementationStartDate == nil && current.ImplementationStartDate != nil {
		s.auditUpdate(ctx, record.ID, "implementation_start_date", "", current.ImplementationStartDate.Format(time.RFC3339))
	}

	s.log.WithFields(logrus.Fields{
		"op":      op,
		"city_id": record.ID,
		"city":    record.Name,
		"from":    record.Status,
		"to":      target,
	}).Info("city status changed")

	return &primary.AdvanceResult{
		CityID:                  record.ID,
		CityName:                record.Name,
		From:                    record.Status,
		To:                      target,
		Changed:                 true,
		ImplementationStartDate: current.ImplementationStartDate,
	}, nil
}

// BatchAdvance advances every city whose name matches. Unmatched names are
// reported, not failed; per-city failures never abort the rest.
func (s *CityServiceImpl) BatchAdvance(ctx context.Context, req primary.BatchAdvanceRequest) (*primary.BatchAdvanceResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	return s.runBatch(ctx, "batch_advance", req.Names, func(ctx context.Context, rec *secondary.CityRecord) (*primary.AdvanceResult, error) {
		return s.Advance(ctx, primary.AdvanceRequest{CityID: rec.ID, Target: req.Target})
	})
}

// ForceConsolidate consolidates matched cities regardless of adjacency or gate.
func (s *CityServiceImpl) ForceConsolidate(ctx context.Context, req primary.ForceConsolidateRequest) (*primary.BatchAdvanceResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	return s.runBatch(ctx, "force_consolidate", req.Names, func(ctx context.Context, rec *secondary.CityRecord) (*primary.AdvanceResult, error) {
		return s.forceConsolidateOne(ctx, rec.ID, req.Reason)
	})
}

func (s *CityServiceImpl) forceConsolidateOne(ctx context.Context, cityID int64, reason string) (*primary.AdvanceResult, error) {
	unlock, err := s.locker.Lock(ctx, cityID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock city %d: %w", cityID, err)
	}
	defer unlock()

	record, err := s.getRecord(ctx, cityID)
	if err != nil {
		return nil, err
	}

	guard := city.CanForceConsolidate(city.TransitionContext{
		CityID:  record.ID,
		Current: record.Status,
		Target:  city.StatusConsolidated,
	})
	if !guard.Allowed {
		return nil, errs.InvalidTransition("%s", guard.Reason)
	}
	if guard.NoOp {
		return &primary.AdvanceResult{
			CityID:                  record.ID,
			CityName:                record.Name,
			From:                    record.Status,
			To:                      record.Status,
			ImplementationStartDate: record.ImplementationStartDate,
		}, nil
	}

	s.log.WithFields(logrus.Fields{
		"op":      "force_consolidate",
		"city_id": record.ID,
		"city":    record.Name,
		"from":    record.Status,
		"reason":  reason,
	}).Warn("administrative override: forcing consolidation")

	result, err := s.applyTransition(ctx, record, city.StatusConsolidated, "force_consolidate")
	if err != nil {
		return nil, err
	}

	if err := s.audit.LogAction(ctx, "city", strconv.FormatInt(record.ID, 10), "force_consolidate", reason); err != nil {
		s.log.WithError(err).WithField("city_id", record.ID).Warn("failed to write audit entry")
	}
	return result, nil
}

// runBatch resolves names to cities, fans out fn over the matches and
// collects a report.
func (s *CityServiceImpl) runBatch(
	ctx context.Context,
	op string,
	names []string,
	fn func(ctx context.Context, rec *secondary.CityRecord) (*primary.AdvanceResult, error),
) (*primary.BatchAdvanceResult, error) {
	names = dedupe(names)

	records, err := call(ctx, s.policy, s.log, "city.get_by_names", func(ctx context.Context) ([]*secondary.CityRecord, error) {
		return s.cityRepo.GetByNames(ctx, names)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve city names: %w", err)
	}

	report := &primary.BatchAdvanceResult{
		Requested: len(names),
		Matched:   len(records),
	}

	found := make(map[string]bool, len(records))
	for _, r := range records {
		found[r.Name] = true
	}
	for _, n := range names {
		if !found[n] {
			report.Unmatched = append(report.Unmatched, n)
		}
	}
	if len(report.Unmatched) > 0 {
		s.log.WithFields(logrus.Fields{
			"op":        op,
			"requested": report.Requested,
			"matched":   report.Matched,
			"unmatched": report.Unmatched,
		}).Warn("some city names did not match")
	}

	var mu sync.Mutex
	fanOut(ctx, s.concurrency, records, func(ctx context.Context, rec *secondary.CityRecord) {
		result, err := fn(ctx, rec)

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"op": op, "city_id": rec.ID, "city": rec.Name}).Error("batch unit failed")
			report.Failures = append(report.Failures, errs.UnitFailure{Unit: rec.Name, Reason: err.Error(), Err: err})
			return
		}
		report.Results = append(report.Results, result)
		if result.Changed {
			report.Changed++
		}
	})

	sort.Slice(report.Results, func(i, j int) bool { return report.Results[i].CityName < report.Results[j].CityName })
	sort.Slice(report.Failures, func(i, j int) bool { return report.Failures[i].Unit < report.Failures[j].Unit })

	if len(report.Failures) > 0 {
		return report, &errs.PartialBatchFailure{Op: op, Total: report.Matched, Failures: report.Failures}
	}
	return report, nil
}

// UpdateDemographics sets a city's population figures.
func (s *CityServiceImpl) UpdateDemographics(ctx context.Context, req primary.UpdateDemographicsRequest) (*primary.City, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	guard := city.CanUpdateDemographics(city.DemographicsContext{
		CityID:               req.CityID,
		Population:           req.Population,
		WorkingAgePopulation: req.WorkingAgePopulation,
	})
	if err := guard.Error(); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, req.CityID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock city %d: %w", req.CityID, err)
	}
	defer unlock()

	before, err := s.getRecord(ctx, req.CityID)
	if err != nil {
		return nil, err
	}

	err = exec(ctx, s.policy, s.log, "city.update_demographics", func(ctx context.Context) error {
		return s.cityRepo.UpdateDemographics(ctx, req.CityID, req.Population, req.WorkingAgePopulation)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update demographics: %w", err)
	}

	if before.Population != req.Population {
		s.auditUpdate(ctx, req.CityID, "population", strconv.FormatInt(before.Population, 10), strconv.FormatInt(req.Population, 10))
	}
	if before.WorkingAgePopulation != req.WorkingAgePopulation {
		s.auditUpdate(ctx, req.CityID, "working_age_population", strconv.FormatInt(before.WorkingAgePopulation, 10), strconv.FormatInt(req.WorkingAgePopulation, 10))
	}

	return s.GetCity(ctx, req.CityID)
}

func (s *CityServiceImpl) getRecord(ctx context.Context, cityID int64) (*secondary.CityRecord, error) {
	return call(ctx, s.policy, s.log, "city.get", func(ctx context.Context) (*secondary.CityRecord, error) {
		return s.cityRepo.GetByID(ctx, cityID)
	})
}

func (s *CityServiceImpl) auditUpdate(ctx context.Context, cityID int64, field, oldValue, newValue string) {
	if err := s.audit.LogUpdate(ctx, "city", strconv.FormatInt(cityID, 10), field, oldValue, newValue); err != nil {
		s.log.WithError(err).WithField("city_id", cityID).Warn("failed to write audit entry")
	}
}

// Helper functions

func recordToCity(r *secondary.CityRecord) *primary.City {
	return &primary.City{
		ID:                      r.ID,
		Name:                    r.Name,
		Status:                  r.Status,
		Population:              r.Population,
		WorkingAgePopulation:    r.WorkingAgePopulation,
		ImplementationStartDate: r.ImplementationStartDate,
		Region:                  r.Region,
		Demonym:                 r.Demonym,
		Mayor:                   r.Mayor,
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
	}
}

func recordsToCities(records []*secondary.CityRecord) []*primary.City {
	out := make([]*primary.City, len(records))
	for i, r := range records {
		out[i] = recordToCity(r)
	}
	return out
}

// Ensure CityServiceImpl implements the interface
var _ primary.CityService = (*CityServiceImpl)(nil)
