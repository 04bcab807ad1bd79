// Package memory contains in-process implementations of the secondary ports.
// The store backs the service tests; the city locker is the single-process default.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/rollout/internal/core/city"
	"github.com/example/rollout/internal/core/ledger"
	"github.com/example/rollout/internal/ctxutil"
	"github.com/example/rollout/internal/errs"
	"github.com/example/rollout/internal/ports/secondary"
)

// Transaction is a feed row held by the store.
type Transaction struct {
	City        string
	Type        secondary.TransactionType
	Description string
	Amount      decimal.Decimal
	Timestamp   time.Time
}

// Store holds every table in memory behind one lock.
type Store struct {
	mu      sync.RWMutex
	cities  map[int64]*secondary.CityRecord
	plans   map[int64]*secondary.PlanRecord
	results map[int64]*ledger.Results
	txs     []Transaction
	audit   []*secondary.AuditRecord
	now     func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		cities:  make(map[int64]*secondary.CityRecord),
		plans:   make(map[int64]*secondary.PlanRecord),
		results: make(map[int64]*ledger.Results),
		now:     time.Now,
	}
}

// AddTransaction appends a row to the feed.
func (s *Store) AddTransaction(tx Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, tx)
}

// ============================================================================
// Cities
// ============================================================================

// CityRepository implements secondary.CityRepository.
type CityRepository struct{ s *Store }

// Cities returns the store's city repository.
func (s *Store) Cities() *CityRepository { return &CityRepository{s: s} }

func copyCity(c *secondary.CityRecord) *secondary.CityRecord {
	cp := *c
	if c.ImplementationStartDate != nil {
		d := *c.ImplementationStartDate
		cp.ImplementationStartDate = &d
	}
	return &cp
}

// Create persists a new city.
func (r *CityRepository) Create(ctx context.Context, c *secondary.CityRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.cities[c.ID]; ok {
		return fmt.Errorf("city %d already exists", c.ID)
	}
	for _, existing := range r.s.cities {
		if existing.Name == c.Name {
			return fmt.Errorf("city name %q already exists", c.Name)
		}
	}
	cp := copyCity(c)
	if cp.Status == "" {
		cp.Status = city.StatusPlanning
	}
	now := r.s.now()
	cp.CreatedAt, cp.UpdatedAt = now, now
	r.s.cities[c.ID] = cp
	return nil
}

// GetByID retrieves a city by its id.
func (r *CityRepository) GetByID(ctx context.Context, id int64) (*secondary.CityRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.cities[id]
	if !ok {
		return nil, errs.NotFound("city %d", id)
	}
	return copyCity(c), nil
}

// GetByNames retrieves cities whose name exactly matches one of names.
func (r *CityRepository) GetByNames(ctx context.Context, names []string) ([]*secondary.CityRecord, error) {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*secondary.CityRecord
	for _, c := range r.s.cities {
		if _, ok := want[c.Name]; ok {
			out = append(out, copyCity(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// List retrieves cities matching the given filters, ordered by name.
func (r *CityRepository) List(ctx context.Context, filters secondary.CityFilters) ([]*secondary.CityRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	needle := strings.ToLower(filters.NameContains)
	var out []*secondary.CityRecord
	for _, c := range r.s.cities {
		if filters.Status != "" && c.Status != filters.Status {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(c.Name), needle) {
			continue
		}
		out = append(out, copyCity(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

// UpdateStatus moves a city from `from` to `to` if it is still at `from`.
func (r *CityRepository) UpdateStatus(ctx context.Context, id int64, from, to city.Status, startDate *time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.cities[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	if startDate != nil && c.ImplementationStartDate == nil {
		d := *startDate
		c.ImplementationStartDate = &d
	}
	c.UpdatedAt = r.s.now()
	return true, nil
}

// UpdateDemographics sets the population figures.
func (r *CityRepository) UpdateDemographics(ctx context.Context, id int64, population, workingAge int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.cities[id]
	if !ok {
		return errs.NotFound("city %d", id)
	}
	c.Population = population
	c.WorkingAgePopulation = workingAge
	c.UpdatedAt = r.s.now()
	return nil
}

// ============================================================================
// Plans
// ============================================================================

// PlanRepository implements secondary.PlanRepository.
type PlanRepository struct{ s *Store }

// Plans returns the store's plan repository.
func (s *Store) Plans() *PlanRepository { return &PlanRepository{s: s} }

func copyPlan(p *secondary.PlanRecord) *secondary.PlanRecord {
	cp := *p
	cp.Phases = make([]secondary.PhaseRecord, len(p.Phases))
	for i, ph := range p.Phases {
		cp.Phases[i] = secondary.PhaseRecord{Name: ph.Name, Tasks: append([]string(nil), ph.Tasks...)}
	}
	return &cp
}

// Upsert creates or replaces the whole plan for a city.
func (r *PlanRepository) Upsert(ctx context.Context, plan *secondary.PlanRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.cities[plan.CityID]; !ok {
		return errs.NotFound("city %d", plan.CityID)
	}
	cp := copyPlan(plan)
	cp.UpdatedAt = r.s.now()
	r.s.plans[plan.CityID] = cp
	return nil
}

// GetByCity retrieves the plan for a city.
func (r *PlanRepository) GetByCity(ctx context.Context, cityID int64) (*secondary.PlanRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.plans[cityID]
	if !ok {
		return nil, errs.NotFound("plan for city %d", cityID)
	}
	return copyPlan(p), nil
}

// ============================================================================
// Planning results
// ============================================================================

// ResultsRepository implements secondary.ResultsRepository.
type ResultsRepository struct{ s *Store }

// Results returns the store's planning-results repository.
func (s *Store) Results() *ResultsRepository { return &ResultsRepository{s: s} }

func copyResults(r *ledger.Results) *ledger.Results {
	cp := ledger.Results{
		CityID:    r.CityID,
		Projected: append(ledger.Series(nil), r.Projected...),
		Realized:  append(ledger.Series(nil), r.Realized...),
	}
	if r.StartDate != nil {
		d := *r.StartDate
		cp.StartDate = &d
	}
	return &cp
}

// GetByCity retrieves the monthly series for a city.
func (r *ResultsRepository) GetByCity(ctx context.Context, cityID int64) (*ledger.Results, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	res, ok := r.s.results[cityID]
	if !ok {
		return &ledger.Results{CityID: cityID}, nil
	}
	return copyResults(res), nil
}

// MergeMonth applies the patch under the store lock.
func (r *ResultsRepository) MergeMonth(ctx context.Context, cityID int64, patch ledger.Patch) (ledger.Outcome, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.cities[cityID]; !ok {
		return ledger.Outcome{}, errs.NotFound("city %d", cityID)
	}
	existing, ok := r.s.results[cityID]
	if !ok {
		existing = &ledger.Results{CityID: cityID}
	}

	merged, out, err := ledger.Merge(*existing, patch)
	if err != nil {
		return out, err
	}
	r.s.results[cityID] = &merged
	return out, nil
}

// SetStartDate sets the results start date, creating the record if needed.
func (r *ResultsRepository) SetStartDate(ctx context.Context, cityID int64, start time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	res, ok := r.s.results[cityID]
	if !ok {
		res = &ledger.Results{CityID: cityID}
		r.s.results[cityID] = res
	}
	res.StartDate = &start
	return nil
}

// ============================================================================
// Transaction feed
// ============================================================================

// TransactionFeed implements secondary.TransactionFeed over the store's rows.
type TransactionFeed struct{ s *Store }

// Feed returns the store's transaction feed.
func (s *Store) Feed() *TransactionFeed { return &TransactionFeed{s: s} }

// Summarize counts and sums the rows matching q.
func (f *TransactionFeed) Summarize(ctx context.Context, q secondary.TransactionQuery) (secondary.TransactionSummary, error) {
	if err := ctx.Err(); err != nil {
		return secondary.TransactionSummary{}, err
	}

	f.s.mu.RLock()
	defer f.s.mu.RUnlock()

	needle := strings.ToLower(q.DescriptionContains)
	sum := secondary.TransactionSummary{Sum: decimal.Zero}
	for _, tx := range f.s.txs {
		if tx.City != q.City || tx.Type != q.Type {
			continue
		}
		if !strings.Contains(strings.ToLower(tx.Description), needle) {
			continue
		}
		if tx.Timestamp.Before(q.From) || !tx.Timestamp.Before(q.To) {
			continue
		}
		sum.Count++
		sum.Sum = sum.Sum.Add(tx.Amount)
	}
	return sum, nil
}

// ============================================================================
// Audit log
// ============================================================================

// AuditLog implements secondary.AuditLog.
type AuditLog struct{ s *Store }

// Audit returns the store's audit log.
func (s *Store) Audit() *AuditLog { return &AuditLog{s: s} }

// LogUpdate logs a field change on an entity.
func (a *AuditLog) LogUpdate(ctx context.Context, entityType, entityID, fieldName, oldValue, newValue string) error {
	return a.write(ctx, &secondary.AuditRecord{
		EntityType: entityType, EntityID: entityID, Action: "update",
		FieldName: fieldName, OldValue: oldValue, NewValue: newValue,
	})
}

// LogAction logs a named administrative action.
func (a *AuditLog) LogAction(ctx context.Context, entityType, entityID, action, detail string) error {
	return a.write(ctx, &secondary.AuditRecord{
		EntityType: entityType, EntityID: entityID, Action: action, NewValue: detail,
	})
}

func (a *AuditLog) write(ctx context.Context, rec *secondary.AuditRecord) error {
	rec.ID = uuid.NewString()
	rec.ActorID = ctxutil.ActorFromContext(ctx)

	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	rec.CreatedAt = a.s.now()
	a.s.audit = append(a.s.audit, rec)
	return nil
}

// List returns entries for an entity, oldest first.
func (a *AuditLog) List(ctx context.Context, entityType, entityID string) ([]*secondary.AuditRecord, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	var out []*secondary.AuditRecord
	for _, rec := range a.s.audit {
		if rec.EntityType == entityType && rec.EntityID == entityID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

var (
	_ secondary.CityRepository    = (*CityRepository)(nil)
	_ secondary.PlanRepository    = (*PlanRepository)(nil)
	_ secondary.ResultsRepository = (*ResultsRepository)(nil)
	_ secondary.TransactionFeed   = (*TransactionFeed)(nil)
	_ secondary.AuditLog          = (*AuditLog)(nil)
)
