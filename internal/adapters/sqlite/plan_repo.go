package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/rollout/internal/errs"
	"github.com/example/rollout/internal/ports/secondary"
)

// PlanRepository implements secondary.PlanRepository with SQLite.
// Phases are stored as one JSON document per city.
type PlanRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPlanRepository creates a new SQLite plan repository.
func NewPlanRepository(db *sql.DB) *PlanRepository {
	return &PlanRepository{db: db, now: time.Now}
}

// Upsert creates or replaces the whole plan for a city.
func (r *PlanRepository) Upsert(ctx context.Context, plan *secondary.PlanRecord) error {
	phases := plan.Phases
	if phases == nil {
		phases = []secondary.PhaseRecord{}
	}
	doc, err := json.Marshal(phases)
	if err != nil {
		return fmt.Errorf("failed to encode phases: %w", err)
	}
	now := utc(r.now())

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO plan_details (city_id, phases, start_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(city_id) DO UPDATE SET
			phases = excluded.phases,
			start_date = excluded.start_date,
			updated_at = excluded.updated_at`,
		plan.CityID, string(doc), utc(plan.StartDate), now, now,
	)
	return wrap("upsert plan", err)
}

// GetByCity retrieves the plan for a city.
func (r *PlanRepository) GetByCity(ctx context.Context, cityID int64) (*secondary.PlanRecord, error) {
	var (
		doc       string
		updatedAt sql.NullTime
	)
	record := &secondary.PlanRecord{CityID: cityID}
	err := r.db.QueryRowContext(ctx,
		"SELECT phases, start_date, updated_at FROM plan_details WHERE city_id = ?",
		cityID,
	).Scan(&doc, &record.StartDate, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("plan for city %d", cityID)
	}
	if err != nil {
		return nil, wrap("get plan", err)
	}

	if err := json.Unmarshal([]byte(doc), &record.Phases); err != nil {
		return nil, fmt.Errorf("failed to decode phases of city %d: %w", cityID, err)
	}
	record.StartDate = record.StartDate.UTC()
	record.UpdatedAt = updatedAt.Time
	return record, nil
}

var _ secondary.PlanRepository = (*PlanRepository)(nil)
