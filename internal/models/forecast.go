package models

import (
	"time"

	"github.com/jstittsworth/bracket-optimizer/internal/bracket"
)

// TeamForecast is one team's row of a published tournament forecast. JSON
// field names follow the public forecast export.
type TeamForecast struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	ForecastDate string    `gorm:"size:10;not null;uniqueIndex:idx_forecast_team" json:"forecast_date"`
	Gender       string    `gorm:"size:10;not null;uniqueIndex:idx_forecast_team" json:"gender"`
	TeamName     string    `gorm:"size:100;not null;uniqueIndex:idx_forecast_team" json:"team_name"`
	TeamRegion   string    `gorm:"size:20;not null" json:"team_region"`
	TeamSeed     string    `gorm:"size:5;not null" json:"team_seed"`
	Rd1Win       float64   `json:"rd1_win"`
	Rd2Win       float64   `json:"rd2_win"`
	Rd3Win       float64   `json:"rd3_win"`
	Rd4Win       float64   `json:"rd4_win"`
	Rd5Win       float64   `json:"rd5_win"`
	Rd6Win       float64   `json:"rd6_win"`
	Rd7Win       float64   `json:"rd7_win"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

func (TeamForecast) TableName() string {
	return "team_forecasts"
}

// ToForecast converts the row into the search input form.
func (f TeamForecast) ToForecast() bracket.Forecast {
	return bracket.Forecast{
		Name:         f.TeamName,
		Region:       f.TeamRegion,
		Seed:         f.TeamSeed,
		Gender:       f.Gender,
		ForecastDate: f.ForecastDate,
		RoundWin: map[int]float64{
			1: f.Rd1Win,
			2: f.Rd2Win,
			3: f.Rd3Win,
			4: f.Rd4Win,
			5: f.Rd5Win,
			6: f.Rd6Win,
			7: f.Rd7Win,
		},
	}
}

func ToForecasts(rows []TeamForecast) []bracket.Forecast {
	out := make([]bracket.Forecast, len(rows))
	for i, row := range rows {
		out[i] = row.ToForecast()
	}
	return out
}
