package bracket

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/jstittsworth/bracket-optimizer/internal/selector"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var regions = []string{"South", "West", "Midwest", "East"}

// fullField builds a 64 team snapshot named "<Region>-<Seed>".
func fullField(date string) []Forecast {
	var out []Forecast
	for _, region := range regions {
		for seed := 1; seed <= 16; seed++ {
			p := 1 - float64(seed)/17
			out = append(out, Forecast{
				Name:         fmt.Sprintf("%s-%d", region, seed),
				Region:       region,
				Seed:         fmt.Sprintf("%d", seed),
				Gender:       "mens",
				ForecastDate: date,
				RoundWin: map[int]float64{
					1: 1, 2: p, 3: p * 0.7, 4: p * 0.5,
					5: p * 0.3, 6: p * 0.2, 7: p * 0.1,
				},
			})
		}
	}
	return out
}

func TestFilterForecasts(t *testing.T) {
	forecasts := append(fullField("2018-03-13"), fullField("2018-03-15")...)
	forecasts = append(forecasts, Forecast{
		Name: "Womens-1", Region: "East", Seed: "1", Gender: "womens",
		ForecastDate: "2018-03-13", RoundWin: map[int]float64{2: 0.99},
	})

	got := FilterForecasts(forecasts, DefaultFilter("2018-03-13"))

	for _, fc := range got {
		assert.Equal(t, "mens", fc.Gender)
		assert.Equal(t, "2018-03-13", fc.ForecastDate)
		assert.Greater(t, fc.RoundWin[OpeningRound], 0.8)
	}
	// seeds 1..3 clear 0.8 in every region: 1-3/17 = 0.82
	assert.Len(t, got, 12)
	assert.Equal(t, "South-1", got[0].Name, "input order is kept")
}

func TestFilterForecasts_ThresholdIsStrict(t *testing.T) {
	forecasts := []Forecast{
		{Name: "Edge", Gender: "mens", ForecastDate: "d", RoundWin: map[int]float64{2: 0.8}},
		{Name: "Above", Gender: "mens", ForecastDate: "d", RoundWin: map[int]float64{2: 0.81}},
	}
	got := FilterForecasts(forecasts, DefaultFilter("d"))
	require.Len(t, got, 1)
	assert.Equal(t, "Above", got[0].Name)
}

func TestLatestDate(t *testing.T) {
	forecasts := append(fullField("2018-03-13"), fullField("2018-03-15")...)
	forecasts = append(forecasts, Forecast{Name: "W", Gender: "womens", ForecastDate: "2018-03-20"})

	assert.Equal(t, "2018-03-15", LatestDate(forecasts, "mens"))
	assert.Equal(t, "2018-03-20", LatestDate(forecasts, ""))
	assert.Equal(t, "", LatestDate(nil, "mens"))
}

func TestNewProbabilityTable(t *testing.T) {
	table, err := NewProbabilityTable([]Forecast{
		{Name: "A", RoundWin: map[int]float64{2: 0.9, 3: 0.5}},
		{Name: "B", RoundWin: map[int]float64{2: 0.0}},
	})
	require.NoError(t, err)

	var _ selector.ValueTable = table

	v, ok := table.Score("A", 2)
	require.True(t, ok)
	assert.InDelta(t, math.Log(0.9), v, 1e-12)

	v, ok = table.Score("B", 2)
	require.True(t, ok)
	assert.True(t, math.IsInf(v, -1))

	_, ok = table.Score("A", 4)
	assert.False(t, ok)
	_, ok = table.Score("Nobody", 2)
	assert.False(t, ok)

	assert.Equal(t, []string{"A", "B"}, table.Teams())
	assert.Equal(t, 2, table.Len())
}

func TestNewProbabilityTable_Errors(t *testing.T) {
	_, err := NewProbabilityTable([]Forecast{
		{Name: "A", RoundWin: map[int]float64{2: 0.9}},
		{Name: "A", RoundWin: map[int]float64{2: 0.8}},
	})
	assert.True(t, errors.Is(err, ErrDuplicateTeam))

	_, err = NewProbabilityTable([]Forecast{{Name: "A", RoundWin: map[int]float64{2: 1.2}}})
	assert.True(t, errors.Is(err, ErrInvalidProbability))

	_, err = NewProbabilityTable([]Forecast{{Name: "A", RoundWin: map[int]float64{2: math.NaN()}}})
	assert.True(t, errors.Is(err, ErrInvalidProbability))
}

func TestExtractDays(t *testing.T) {
	days := ExtractDays(fullField("2018-03-13"))
	require.Len(t, days, NumDays)

	for day := 0; day < 4; day++ {
		assert.Len(t, days[day], 32, "day %d", day)
	}

	// the two opening days split the field
	assert.Empty(t, lo.Intersect(days[0], days[1]))
	assert.Len(t, lo.Union(days[0], days[1]), 64)

	assert.Contains(t, days[0], "South-5")
	assert.Contains(t, days[0], "East-1")
	assert.Contains(t, days[0], "Midwest-16")
	assert.Contains(t, days[1], "Midwest-5")
	assert.Contains(t, days[1], "West-1")
	assert.Contains(t, days[1], "East-7")
	assert.NotContains(t, days[1], "East-6")

	// second round follows the same split as the first
	assert.ElementsMatch(t, days[0], days[2])
	assert.ElementsMatch(t, days[1], days[3])

	for _, day := range []int{4, 6} {
		assert.Len(t, days[day], 32)
		for _, name := range days[day] {
			assert.True(t, lo.Contains([]string{"South", "West"}, regionOf(name)), name)
		}
	}
	for _, day := range []int{5, 7} {
		assert.Len(t, days[day], 32)
		for _, name := range days[day] {
			assert.True(t, lo.Contains([]string{"Midwest", "East"}, regionOf(name)), name)
		}
	}
	assert.Len(t, days[8], 64)
	assert.Len(t, days[9], 64)
}

func TestExtractDays_UnknownSeedsAndRegions(t *testing.T) {
	days := ExtractDays([]Forecast{
		{Name: "PlayIn", Region: "East", Seed: "11a"},
		{Name: "Elsewhere", Region: "Atlantis", Seed: "1"},
	})

	// an unknown East seed is outside the early East group
	assert.Equal(t, []string{"PlayIn"}, days[1])
	assert.Empty(t, days[0])
	assert.ElementsMatch(t, []string{"PlayIn", "Elsewhere"}, days[8])
	assert.Empty(t, days[4])
}

func TestParseDayRounds(t *testing.T) {
	rounds, err := ParseDayRounds([]int{2, 2, 3, 3, 4, 4, 5, 5, 6, 7})
	require.NoError(t, err)
	assert.Equal(t, DefaultDayRounds(), rounds)

	_, err = ParseDayRounds([]int{2, 8})
	assert.Error(t, err)
}

func TestPrepare(t *testing.T) {
	table, days, err := Prepare(fullField("2018-03-13"), DefaultFilter("2018-03-13"))
	require.NoError(t, err)
	assert.Equal(t, 12, table.Len())
	assert.Len(t, days[8], 12)

	_, _, err = Prepare(fullField("2018-03-13"), DefaultFilter("2019-01-01"))
	assert.True(t, errors.Is(err, ErrNoForecasts))
}

func regionOf(name string) string {
	for _, r := range regions {
		if len(name) > len(r) && name[:len(r)] == r {
			return r
		}
	}
	return ""
}
