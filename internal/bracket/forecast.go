package bracket

import (
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"
)

// OpeningRound is the scoring column of the first tournament day (the round of 64).
const OpeningRound = 2

// MaxRound is the last scoring column (the championship).
const MaxRound = 7

var (
	ErrNoForecasts        = errors.New("no forecasts match the filter")
	ErrDuplicateTeam      = errors.New("duplicate team in forecast snapshot")
	ErrInvalidProbability = errors.New("win probability outside [0, 1]")
)

// Forecast is one team's row of a forecast snapshot. RoundWin maps a round
// number (1..7) to the probability of winning through that round.
type Forecast struct {
	Name         string
	Region       string
	Seed         string
	Gender       string
	ForecastDate string
	RoundWin     map[int]float64
}

// Filter selects a single forecast snapshot.
type Filter struct {
	Gender       string
	ForecastDate string
	// MinFirstRoundWin drops teams whose opening round win probability is not
	// strictly above it.
	MinFirstRoundWin float64
}

// DefaultFilter keeps men's teams with better than 80% opening round odds.
func DefaultFilter(date string) Filter {
	return Filter{
		Gender:           "mens",
		ForecastDate:     date,
		MinFirstRoundWin: 0.8,
	}
}

// FilterForecasts returns the rows of one gender and date that clear the
// opening round threshold, in input order.
func FilterForecasts(forecasts []Forecast, f Filter) []Forecast {
	return lo.Filter(forecasts, func(fc Forecast, _ int) bool {
		if f.Gender != "" && fc.Gender != f.Gender {
			return false
		}
		if f.ForecastDate != "" && fc.ForecastDate != f.ForecastDate {
			return false
		}
		return fc.RoundWin[OpeningRound] > f.MinFirstRoundWin
	})
}

// LatestDate returns the most recent forecast date for gender, or "".
// Dates are ISO formatted so they compare lexically.
func LatestDate(forecasts []Forecast, gender string) string {
	latest := ""
	for _, fc := range forecasts {
		if gender != "" && fc.Gender != gender {
			continue
		}
		if fc.ForecastDate > latest {
			latest = fc.ForecastDate
		}
	}
	return latest
}

// ProbabilityTable holds natural-log win probabilities by team and round.
// It is immutable once built.
type ProbabilityTable struct {
	order []string
	logs  map[string]map[int]float64
}

// NewProbabilityTable log-transforms every round probability. A zero
// probability becomes negative infinity.
func NewProbabilityTable(forecasts []Forecast) (*ProbabilityTable, error) {
	t := &ProbabilityTable{
		order: make([]string, 0, len(forecasts)),
		logs:  make(map[string]map[int]float64, len(forecasts)),
	}
	for _, fc := range forecasts {
		if _, dup := t.logs[fc.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTeam, fc.Name)
		}
		rounds := make(map[int]float64, len(fc.RoundWin))
		for round, p := range fc.RoundWin {
			if math.IsNaN(p) || p < 0 || p > 1 {
				return nil, fmt.Errorf("%w: %s round %d = %v", ErrInvalidProbability, fc.Name, round, p)
			}
			rounds[round] = math.Log(p)
		}
		t.logs[fc.Name] = rounds
		t.order = append(t.order, fc.Name)
	}
	return t, nil
}

func (t *ProbabilityTable) Score(team string, round int) (float64, bool) {
	rounds, ok := t.logs[team]
	if !ok {
		return 0, false
	}
	v, ok := rounds[round]
	return v, ok
}

func (t *ProbabilityTable) Teams() []string {
	return append([]string(nil), t.order...)
}

// Len is the number of teams in the table.
func (t *ProbabilityTable) Len() int {
	return len(t.order)
}
