package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/rollout/internal/core/ledger"
	"github.com/example/rollout/internal/core/revenue"
	"github.com/example/rollout/internal/errs"
	"github.com/example/rollout/internal/ports/primary"
	"github.com/example/rollout/internal/ports/secondary"
)

// DefaultTopUpPattern is the description fragment that marks a top-up credit.
const DefaultTopUpPattern = "top-up"

// ReconcileOptions carries the tunables of the reconciler.
type ReconcileOptions struct {
	Policy       CallPolicy
	TopUpPattern string
	Location     *time.Location
	Concurrency  int
}

// ReconcileServiceImpl implements the ReconcileService interface.
type ReconcileServiceImpl struct {
	cityRepo secondary.CityRepository
	feed     secondary.TransactionFeed
	fallback secondary.FallbackSource
	ledger   primary.LedgerService
	opts     ReconcileOptions
	log      logrus.FieldLogger
}

// NewReconcileService creates a new ReconcileService with injected dependencies.
func NewReconcileService(
	cityRepo secondary.CityRepository,
	feed secondary.TransactionFeed,
	fallback secondary.FallbackSource,
	ledgerService primary.LedgerService,
	log logrus.FieldLogger,
	opts ReconcileOptions,
) *ReconcileServiceImpl {
	if opts.TopUpPattern == "" {
		opts.TopUpPattern = DefaultTopUpPattern
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if fallback == nil {
		fallback = secondary.FallbackTable{}
	}
	return &ReconcileServiceImpl{
		cityRepo: cityRepo,
		feed:     feed,
		fallback: fallback,
		ledger:   ledgerService,
		opts:     opts,
		log:      log.WithField("module", "reconcile"),
	}
}

// ReconcileMonth resolves and stores one city's realized revenue for a month.
func (s *ReconcileServiceImpl) ReconcileMonth(ctx context.Context, cityID int64, month ledger.MonthKey) (*primary.Reconciliation, error) {
	from, to, err := month.Window(s.opts.Location)
	if err != nil {
		return nil, err
	}

	rec, err := call(ctx, s.opts.Policy, s.log, "city.get", func(ctx context.Context) (*secondary.CityRecord, error) {
		return s.cityRepo.GetByID(ctx, cityID)
	})
	if err != nil {
		return nil, err
	}

	// A timeout here must surface as a failure, never as an empty feed.
	summary, err := call(ctx, s.opts.Policy, s.log, "feed.summarize", func(ctx context.Context) (secondary.TransactionSummary, error) {
		return s.feed.Summarize(ctx, secondary.TransactionQuery{
			City:                rec.Name,
			Type:                secondary.TransactionCredit,
			DescriptionContains: s.opts.TopUpPattern,
			From:                from,
			To:                  to,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions for %s in %s: %w", rec.Name, month, err)
	}

	estimate, hasEstimate := s.fallback.Estimate(rec.Name)
	resolution, err := revenue.Resolve(revenue.ResolveContext{
		CityName:    rec.Name,
		Month:       month,
		Evidence:    revenue.Evidence{Count: summary.Count, Sum: summary.Sum},
		Fallback:    estimate,
		HasFallback: hasEstimate,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", err, errs.ErrNotFound)
	}

	fields := logrus.Fields{
		"op":         "reconcile_month",
		"city_id":    rec.ID,
		"city":       rec.Name,
		"month":      month,
		"provenance": resolution.Provenance,
		"amount":     resolution.Amount.String(),
	}
	if resolution.Provenance == ledger.ProvenanceFallback {
		s.log.WithFields(fields).Info("no matching transactions; using fallback estimate")
	}

	amount := resolution.Amount
	stored, err := s.ledger.RecordMonth(ctx, primary.RecordMonthRequest{
		CityID:     rec.ID,
		Month:      month,
		Realized:   &amount,
		Provenance: resolution.Provenance,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store reconciliation for %s in %s: %w", rec.Name, month, err)
	}

	// Real data already in the ledger outranks a fallback estimate.
	for _, k := range stored.Outcome.Kept {
		if k.Kind == ledger.KindRealized {
			resolution = revenue.Resolution{Amount: k.Entry.Amount, Provenance: k.Entry.Provenance}
		}
	}

	s.log.WithFields(fields).WithField("provenance", resolution.Provenance).Debug("month reconciled")

	return &primary.Reconciliation{
		CityID:           rec.ID,
		CityName:         rec.Name,
		Month:            month,
		Amount:           resolution.Amount,
		Provenance:       resolution.Provenance,
		TransactionCount: summary.Count,
		Stored:           stored.Outcome,
	}, nil
}

// ReconcileBatch reconciles several cities for one month and aggregates them.
func (s *ReconcileServiceImpl) ReconcileBatch(ctx context.Context, req primary.ReconcileBatchRequest) (*primary.ReconcileBatchReport, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	ids := dedupe(req.CityIDs)

	report := &primary.ReconcileBatchReport{Month: req.Month}
	byCity := make(map[int64]revenue.Resolution, len(ids))

	var mu sync.Mutex
	fanOut(ctx, s.opts.Concurrency, ids, func(ctx context.Context, id int64) {
		result, err := s.ReconcileMonth(ctx, id, req.Month)

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"op":      "reconcile_batch",
				"city_id": id,
				"month":   req.Month,
			}).Error("reconciliation failed")
			report.Failures = append(report.Failures, errs.UnitFailure{
				Unit:   strconv.FormatInt(id, 10) + "/" + string(req.Month),
				Reason: err.Error(),
				Err:    err,
			})
			return
		}
		report.Results = append(report.Results, result)
		byCity[id] = revenue.Resolution{Amount: result.Amount, Provenance: result.Provenance}
	})

	sort.Slice(report.Results, func(i, j int) bool { return report.Results[i].CityID < report.Results[j].CityID })
	sort.Slice(report.Failures, func(i, j int) bool { return report.Failures[i].Unit < report.Failures[j].Unit })

	report.Total = revenue.Aggregate(byCity)
	report.Display = revenue.FormatThousands(report.Total)

	if len(report.Failures) > 0 {
		return report, &errs.PartialBatchFailure{
			Op:       "reconcile " + string(req.Month),
			Total:    len(ids),
			Failures: report.Failures,
		}
	}
	return report, nil
}

// MonthlyRevenue reconciles every month in [From, To] for the given cities.
// Failures are reported inside the envelope; only bad input is an error.
func (s *ReconcileServiceImpl) MonthlyRevenue(ctx context.Context, req primary.MonthlyRevenueRequest) (*primary.MonthlyRevenueResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	months, err := ledger.MonthRange(req.From, req.To)
	if err != nil {
		return nil, err
	}

	resp := &primary.MonthlyRevenueResponse{Success: true}
	for _, m := range months {
		report, err := s.ReconcileBatch(ctx, primary.ReconcileBatchRequest{CityIDs: req.CityIDs, Month: m})
		var partial *errs.PartialBatchFailure
		if err != nil && !errors.As(err, &partial) {
			return nil, err
		}
		resp.Months = append(resp.Months, primary.MonthTotal{
			Month:   m,
			Amount:  report.Total,
			Display: report.Display,
			Failed:  len(report.Failures),
		})
		resp.Failures = append(resp.Failures, report.Failures...)
	}

	if len(resp.Failures) > 0 {
		resp.Success = false
		resp.Error = (&errs.PartialBatchFailure{
			Op:       fmt.Sprintf("revenue %s..%s", req.From, req.To),
			Total:    len(months) * len(dedupe(req.CityIDs)),
			Failures: resp.Failures,
		}).Error()
	}
	return resp, nil
}

// Ensure ReconcileServiceImpl implements the interface
var _ primary.ReconcileService = (*ReconcileServiceImpl)(nil)
