package models

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jstittsworth/bracket-optimizer/internal/selector"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Run sources
const (
	SourceAPI       = "api"
	SourceScheduler = "scheduler"
)

// SelectionRun records one completed or interrupted search.
type SelectionRun struct {
	ID               string         `gorm:"primaryKey;size:36" json:"id"`
	ForecastDate     string         `gorm:"size:10;not null;index" json:"forecast_date"`
	Gender           string         `gorm:"size:10;not null" json:"gender"`
	MinFirstRoundWin float64        `json:"min_first_round_win"`
	MaxDay           int            `json:"max_day"`
	Slack            float64        `json:"slack"`
	Teams            int            `json:"teams"`
	Feasible         bool           `json:"feasible"`
	Complete         bool           `json:"complete"`
	Value            *float64       `json:"value"` // nil when infeasible
	Probability      float64        `json:"probability"`
	Picks            datatypes.JSON `json:"picks"`
	Bounds           datatypes.JSON `json:"bounds"`
	Nodes            int64          `json:"nodes"`
	Pruned           int64          `json:"pruned"`
	Improvements     int            `json:"improvements"`
	ElapsedMS        int64          `json:"elapsed_ms"`
	Source           string         `gorm:"size:20" json:"source"`
	CreatedAt        time.Time      `json:"created_at"`
}

func (SelectionRun) TableName() string {
	return "selection_runs"
}

func (r *SelectionRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Pick is one day's chosen team.
type Pick struct {
	Day  int    `json:"day"`
	Team string `json:"team"`
}

// PicksByDay pairs each selected team with its day. Pair days contribute two
// consecutive entries.
func PicksByDay(selection []string, maxDay int, pairDays []int) []Pick {
	pairs := make(map[int]bool, len(pairDays))
	for _, d := range pairDays {
		pairs[d] = true
	}

	picks := make([]Pick, 0, len(selection))
	i := 0
	for day := 0; day <= maxDay && i < len(selection); day++ {
		n := 1
		if pairs[day] {
			n = 2
		}
		for k := 0; k < n && i < len(selection); k++ {
			picks = append(picks, Pick{Day: day, Team: selection[i]})
			i++
		}
	}
	return picks
}

// FiniteOrNil maps infinities and NaN to nil so the value can be encoded.
func FiniteOrNil(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// ApplyResult copies a search result into the run.
func (r *SelectionRun) ApplyResult(res *selector.Result, pairDays []int) error {
	r.MaxDay = res.MaxDay
	r.Feasible = res.Feasible
	r.Complete = res.Complete
	r.Value = nil
	r.Probability = 0
	if res.Feasible {
		r.Value = FiniteOrNil(res.Value)
		r.Probability = res.Probability()
	}

	picks, err := json.Marshal(PicksByDay(res.Selection, res.MaxDay, pairDays))
	if err != nil {
		return err
	}
	r.Picks = datatypes.JSON(picks)

	bounds := make([]*float64, len(res.Bounds))
	for i, b := range res.Bounds {
		bounds[i] = FiniteOrNil(b)
	}
	encoded, err := json.Marshal(bounds)
	if err != nil {
		return err
	}
	r.Bounds = datatypes.JSON(encoded)

	r.Nodes = res.Stats.Nodes
	r.Pruned = res.Stats.Pruned
	r.Improvements = res.Stats.Improvements
	r.ElapsedMS = res.Stats.Elapsed.Milliseconds()
	return nil
}

// DecodePicks returns the stored picks.
func (r *SelectionRun) DecodePicks() ([]Pick, error) {
	var picks []Pick
	if len(r.Picks) == 0 {
		return picks, nil
	}
	err := json.Unmarshal(r.Picks, &picks)
	return picks, err
}
