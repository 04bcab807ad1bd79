// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"time"

	"github.com/example/rollout/internal/core/city"
	"github.com/example/rollout/internal/core/ledger"
)

// CityRepository defines the secondary port for city persistence.
type CityRepository interface {
	// Create persists a new city. Used by seeding; master import is external.
	Create(ctx context.Context, c *CityRecord) error

	// GetByID retrieves a city by its id. Returns errs.ErrNotFound when absent.
	GetByID(ctx context.Context, id int64) (*CityRecord, error)

	// GetByNames retrieves cities whose name exactly matches one of names.
	GetByNames(ctx context.Context, names []string) ([]*CityRecord, error)

	// List retrieves cities matching the given filters, ordered by name.
	List(ctx context.Context, filters CityFilters) ([]*CityRecord, error)

	// UpdateStatus moves a city from `from` to `to`, stamping the implementation
	// start date when startDate is non-nil and none is set yet. The update is
	// conditional on the current status still being `from`; it reports whether
	// a row changed.
	UpdateStatus(ctx context.Context, id int64, from, to city.Status, startDate *time.Time) (bool, error)

	// UpdateDemographics sets the population figures.
	UpdateDemographics(ctx context.Context, id int64, population, workingAge int64) error
}

// CityRecord represents a city as stored in persistence.
type CityRecord struct {
	ID                      int64
	Name                    string
	Status                  city.Status
	Population              int64
	WorkingAgePopulation    int64
	ImplementationStartDate *time.Time
	Region                  string
	Demonym                 string
	Mayor                   string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// CityFilters contains filter options for querying cities.
type CityFilters struct {
	Status       city.Status
	NameContains string // case-insensitive substring
	Limit        int
}

// PlanRepository defines the secondary port for plan-details persistence.
type PlanRepository interface {
	// Upsert creates or replaces the whole plan for a city.
	Upsert(ctx context.Context, plan *PlanRecord) error

	// GetByCity retrieves the plan for a city. Returns errs.ErrNotFound when absent.
	GetByCity(ctx context.Context, cityID int64) (*PlanRecord, error)
}

// PlanRecord represents a city's phase plan as stored in persistence.
type PlanRecord struct {
	CityID    int64
	Phases    []PhaseRecord
	StartDate time.Time
	UpdatedAt time.Time
}

// PhaseRecord is one ordered phase of a plan.
type PhaseRecord struct {
	Name  string   `json:"name"`
	Tasks []string `json:"tasks"`
}

// ResultsRepository defines the secondary port for planning-results persistence.
type ResultsRepository interface {
	// GetByCity retrieves the monthly series for a city. A city without a
	// results row yields an empty record, not an error.
	GetByCity(ctx context.Context, cityID int64) (*ledger.Results, error)

	// MergeMonth atomically reads the city's results, applies the patch with
	// ledger.Merge and writes back only the keys the merge decided to write.
	MergeMonth(ctx context.Context, cityID int64, patch ledger.Patch) (ledger.Outcome, error)

	// SetStartDate sets the results start date, creating the row if needed.
	SetStartDate(ctx context.Context, cityID int64, start time.Time) error
}
