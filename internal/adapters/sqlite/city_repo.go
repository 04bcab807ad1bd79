package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/rollout/internal/core/city"
	"github.com/example/rollout/internal/errs"
	"github.com/example/rollout/internal/ports/secondary"
)

const cityColumns = `id, name, status, population, working_age_population, implementation_start_date,
	region, demonym, mayor, created_at, updated_at`

// CityRepository implements secondary.CityRepository with SQLite.
type CityRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewCityRepository creates a new SQLite city repository.
func NewCityRepository(db *sql.DB) *CityRepository {
	return &CityRepository{db: db, now: time.Now}
}

// Create persists a new city.
func (r *CityRepository) Create(ctx context.Context, c *secondary.CityRecord) error {
	status := c.Status
	if status == "" {
		status = city.StatusPlanning
	}
	now := utc(r.now())

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cities (`+cityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, string(status), c.Population, c.WorkingAgePopulation, nullTime(c.ImplementationStartDate),
		nullString(c.Region), nullString(c.Demonym), nullString(c.Mayor), now, now,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("city %d (%s) already exists", c.ID, c.Name)
	}
	return wrap("create city", err)
}

// GetByID retrieves a city by its id.
func (r *CityRepository) GetByID(ctx context.Context, id int64) (*secondary.CityRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+cityColumns+" FROM cities WHERE id = ?", id)
	record, err := scanCity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("city %d", id)
	}
	if err != nil {
		return nil, wrap("get city", err)
	}
	return record, nil
}

// GetByNames retrieves cities whose name exactly matches one of names.
func (r *CityRepository) GetByNames(ctx context.Context, names []string) ([]*secondary.CityRecord, error) {
	if len(names) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+cityColumns+" FROM cities WHERE name IN ("+placeholders+") ORDER BY name ASC",
		args...,
	)
	if err != nil {
		return nil, wrap("get cities by name", err)
	}
	defer rows.Close()
	return scanCities(rows)
}

// List retrieves cities matching the given filters, ordered by name.
func (r *CityRepository) List(ctx context.Context, filters secondary.CityFilters) ([]*secondary.CityRecord, error) {
	query := "SELECT " + cityColumns + " FROM cities WHERE 1=1"
	var args []any

	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filters.Status))
	}
	if filters.NameContains != "" {
		query += " AND instr(lower(name), lower(?)) > 0"
		args = append(args, filters.NameContains)
	}

	query += " ORDER BY name ASC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("list cities", err)
	}
	defer rows.Close()
	return scanCities(rows)
}

// UpdateStatus moves a city from `from` to `to` in one conditional statement.
// The start date is only written when none is set yet.
func (r *CityRepository) UpdateStatus(ctx context.Context, id int64, from, to city.Status, startDate *time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE cities
		 SET status = ?,
		     implementation_start_date = COALESCE(implementation_start_date, ?),
		     updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(to), nullTime(startDate), utc(r.now()), id, string(from),
	)
	if err != nil {
		return false, wrap("update city status", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, wrap("read affected rows", err)
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return false, err
		}
	}
	return n > 0, nil
}

// UpdateDemographics sets the population figures.
func (r *CityRepository) UpdateDemographics(ctx context.Context, id int64, population, workingAge int64) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE cities SET population = ?, working_age_population = ?, updated_at = ? WHERE id = ?",
		population, workingAge, utc(r.now()), id,
	)
	if err != nil {
		return wrap("update demographics", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return wrap("read affected rows", err)
	}
	if n == 0 {
		return errs.NotFound("city %d", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCity(row rowScanner) (*secondary.CityRecord, error) {
	var (
		status    string
		startDate sql.NullTime
		region    sql.NullString
		demonym   sql.NullString
		mayor     sql.NullString
		createdAt sql.NullTime
		updatedAt sql.NullTime
	)

	record := &secondary.CityRecord{}
	err := row.Scan(&record.ID, &record.Name, &status, &record.Population, &record.WorkingAgePopulation,
		&startDate, &region, &demonym, &mayor, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	record.Status = city.Status(status)
	if startDate.Valid {
		t := startDate.Time.UTC()
		record.ImplementationStartDate = &t
	}
	record.Region = region.String
	record.Demonym = demonym.String
	record.Mayor = mayor.String
	record.CreatedAt = createdAt.Time
	record.UpdatedAt = updatedAt.Time
	return record, nil
}

func scanCities(rows *sql.Rows) ([]*secondary.CityRecord, error) {
	var cities []*secondary.CityRecord
	for rows.Next() {
		record, err := scanCity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan city: %w", err)
		}
		cities = append(cities, record)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate cities", err)
	}
	return cities, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ secondary.CityRepository = (*CityRepository)(nil)
