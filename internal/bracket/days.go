package bracket

import (
	"fmt"

	"github.com/jstittsworth/bracket-optimizer/internal/selector"
	"github.com/samber/lo"
)

// NumDays is the number of pick days in the tournament.
const NumDays = 10

// Seed groups that play on the same day within a region during the first
// two rounds.
var (
	seedsTopHalfLow = []string{"5", "12", "4", "13", "6", "11", "3", "14"}
	seedsTopHalf    = []string{"1", "16", "8", "9", "7", "10", "2", "15"}
	seedsEastEarly  = []string{"1", "16", "8", "9", "6", "11", "3", "14"}
)

// DefaultDayRounds maps each pick day to its scoring round. Day 0 is the first
// day of the round of 64, which is round 2 in the forecast columns.
func DefaultDayRounds() selector.DayRounds {
	return selector.DayRounds{
		0: 2, 1: 2,
		2: 3, 3: 3,
		4: 4, 5: 4,
		6: 5, 7: 5,
		8: 6,
		9: 7,
	}
}

// ParseDayRounds turns a comma list of rounds (one per day, day 0 first) into
// a DayRounds mapping.
func ParseDayRounds(rounds []int) (selector.DayRounds, error) {
	out := make(selector.DayRounds, len(rounds))
	for day, round := range rounds {
		if round < 1 || round > MaxRound {
			return nil, fmt.Errorf("day %d: round %d out of range 1..%d", day, round, MaxRound)
		}
		out[day] = round
	}
	return out, nil
}

type teamQuery func(fc Forecast) bool

func inRegions(regions ...string) teamQuery {
	return func(fc Forecast) bool { return lo.Contains(regions, fc.Region) }
}

func (q teamQuery) seedIn(seeds []string) teamQuery {
	return func(fc Forecast) bool { return q(fc) && lo.Contains(seeds, fc.Seed) }
}

func (q teamQuery) seedNotIn(seeds []string) teamQuery {
	return func(fc Forecast) bool { return q(fc) && !lo.Contains(seeds, fc.Seed) }
}

func all(Forecast) bool { return true }

// ExtractDays partitions a snapshot into the ten per-day eligibility sets
// following the bracket schedule: the first four days split regions by seed
// group, the next four alternate the two halves of the bracket, and the last
// two days allow every team.
func ExtractDays(forecasts []Forecast) selector.DayEligibility {
	southWest := inRegions("South", "West")
	midwest := inRegions("Midwest")
	east := inRegions("East")

	schedule := [NumDays][]teamQuery{
		{southWest.seedIn(seedsTopHalfLow), east.seedIn(seedsEastEarly), midwest.seedIn(seedsTopHalf)},
		{midwest.seedIn(seedsTopHalfLow), southWest.seedIn(seedsTopHalf), east.seedNotIn(seedsEastEarly)},
		{southWest.seedIn(seedsTopHalfLow), midwest.seedIn(seedsTopHalf), east.seedIn(seedsEastEarly)},
		{midwest.seedIn(seedsTopHalfLow), southWest.seedIn(seedsTopHalf), east.seedNotIn(seedsEastEarly)},
		{southWest},
		{inRegions("Midwest", "East")},
		{southWest},
		{inRegions("Midwest", "East")},
		{all},
		{all},
	}

	days := make(selector.DayEligibility, NumDays)
	for day, queries := range schedule {
		var names []string
		for _, q := range queries {
			for _, fc := range forecasts {
				if q(fc) {
					names = append(names, fc.Name)
				}
			}
		}
		days[day] = lo.Uniq(names)
	}
	return days
}

// Prepare filters a snapshot and builds both search inputs from it.
func Prepare(forecasts []Forecast, f Filter) (*ProbabilityTable, selector.DayEligibility, error) {
	snapshot := FilterForecasts(forecasts, f)
	if len(snapshot) == 0 {
		return nil, nil, fmt.Errorf("%w: gender=%q date=%q", ErrNoForecasts, f.Gender, f.ForecastDate)
	}

	table, err := NewProbabilityTable(snapshot)
	if err != nil {
		return nil, nil, err
	}
	return table, ExtractDays(snapshot), nil
}
