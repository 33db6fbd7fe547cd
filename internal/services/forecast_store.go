package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jstittsworth/bracket-optimizer/internal/models"
	"github.com/jstittsworth/bracket-optimizer/pkg/database"
	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

var ErrEmptyImport = errors.New("no forecast rows to import")

// ForecastStore persists forecast snapshots.
type ForecastStore struct {
	db *database.DB
}

func NewForecastStore(db *database.DB) *ForecastStore {
	return &ForecastStore{db: db}
}

// Upsert inserts rows, replacing probabilities for teams already stored for
// the same date and gender. It returns the distinct dates touched.
func (s *ForecastStore) Upsert(ctx context.Context, rows []models.TeamForecast) ([]string, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyImport
	}
	for i, row := range rows {
		if row.ForecastDate == "" || row.Gender == "" || row.TeamName == "" {
			return nil, fmt.Errorf("row %d: forecast_date, gender and team_name are required", i)
		}
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "forecast_date"}, {Name: "gender"}, {Name: "team_name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"team_region", "team_seed",
			"rd1_win", "rd2_win", "rd3_win", "rd4_win", "rd5_win", "rd6_win", "rd7_win",
			"updated_at",
		}),
	}).CreateInBatches(rows, 200).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert forecasts: %w", err)
	}

	return lo.Uniq(lo.Map(rows, func(r models.TeamForecast, _ int) string { return r.ForecastDate })), nil
}

// Snapshot returns every stored row of one date and gender in insertion order.
func (s *ForecastStore) Snapshot(ctx context.Context, date, gender string) ([]models.TeamForecast, error) {
	var rows []models.TeamForecast
	err := s.db.WithContext(ctx).
		Where("forecast_date = ? AND gender = ?", date, gender).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load forecast snapshot: %w", err)
	}
	return rows, nil
}

// Dates lists stored forecast dates for gender, newest first.
func (s *ForecastStore) Dates(ctx context.Context, gender string) ([]string, error) {
	var dates []string
	err := s.db.WithContext(ctx).
		Model(&models.TeamForecast{}).
		Where("gender = ?", gender).
		Distinct("forecast_date").
		Order("forecast_date DESC").
		Pluck("forecast_date", &dates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list forecast dates: %w", err)
	}
	return dates, nil
}

// LatestDate returns the newest stored date for gender, or "" if none.
func (s *ForecastStore) LatestDate(ctx context.Context, gender string) (string, error) {
	dates, err := s.Dates(ctx, gender)
	if err != nil || len(dates) == 0 {
		return "", err
	}
	return dates[0], nil
}
