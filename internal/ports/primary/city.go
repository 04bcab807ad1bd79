package primary

import (
	"context"
	"time"

	"github.com/example/rollout/internal/core/city"
	"github.com/example/rollout/internal/errs"
)

// CityService defines the primary port for the city registry.
type CityService interface {
	// CreateCity registers a city record.
	CreateCity(ctx context.Context, req CreateCityRequest) (*City, error)

	// GetCity retrieves a city by id.
	GetCity(ctx context.Context, cityID int64) (*City, error)

	// FindCities looks cities up by exact name or by case-insensitive substring.
	FindCities(ctx context.Context, query string, exact bool) ([]*City, error)

	// ListCities lists cities with optional filters.
	ListCities(ctx context.Context, filters CityFilters) ([]*City, error)

	// Advance moves a city one step forward in the rollout.
	Advance(ctx context.Context, req AdvanceRequest) (*AdvanceResult, error)

	// BatchAdvance advances every city whose name matches.
	BatchAdvance(ctx context.Context, req BatchAdvanceRequest) (*BatchAdvanceResult, error)

	// ForceConsolidate is the administrative override that consolidates
	// matched cities without adjacency or gate checks.
	ForceConsolidate(ctx context.Context, req ForceConsolidateRequest) (*BatchAdvanceResult, error)

	// UpdateDemographics sets a city's population figures.
	UpdateDemographics(ctx context.Context, req UpdateDemographicsRequest) (*City, error)
}

// CreateCityRequest contains parameters for registering a city.
type CreateCityRequest struct {
	ID                   int64  `validate:"gt=0"`
	Name                 string `validate:"required"`
	Status               city.Status
	Population           int64 `validate:"gte=0"`
	WorkingAgePopulation int64 `validate:"gte=0,ltefield=Population"`
	Region               string
	Demonym              string
	Mayor                string
}

// AdvanceRequest contains parameters for a single status advance.
type AdvanceRequest struct {
	CityID int64       `validate:"gt=0"`
	Target city.Status `validate:"required"`
}

// AdvanceResult describes the effect of an advance.
type AdvanceResult struct {
	CityID                  int64
	CityName                string
	From                    city.Status
	To                      city.Status
	Changed                 bool
	ImplementationStartDate *time.Time
}

// BatchAdvanceRequest contains parameters for advancing cities by name.
type BatchAdvanceRequest struct {
	Names  []string    `validate:"min=1,dive,required"`
	Target city.Status `validate:"required"`
}

// ForceConsolidateRequest contains parameters for the administrative override.
type ForceConsolidateRequest struct {
	Names  []string `validate:"min=1,dive,required"`
	Reason string   `validate:"required"`
}

// BatchAdvanceResult is the fan-in report of a batch status change.
// Changed is the number of records actually modified; callers compare it
// (and Matched) against Requested to spot typos in the name list.
type BatchAdvanceResult struct {
	Requested int
	Matched   int
	Changed   int
	Unmatched []string
	Results   []*AdvanceResult
	Failures  []errs.UnitFailure
}

// UpdateDemographicsRequest contains parameters for a population update.
type UpdateDemographicsRequest struct {
	CityID               int64 `validate:"gt=0"`
	Population           int64 `validate:"gte=0"`
	WorkingAgePopulation int64 `validate:"gte=0"`
}

// City represents a city at the port boundary.
type City struct {
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

// CityFilters contains filter options for listing cities.
type CityFilters struct {
	Status city.Status
	Limit  int
}
