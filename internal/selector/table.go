package selector

import (
	"fmt"
	"sort"
)

// ValueTable is the read-only score lookup the search borrows from its caller.
// Scores are log win-probabilities in practice; they are not assumed to be
// monotonic across rounds.
type ValueTable interface {
	// Score returns the value of team in round, and false when the table has no entry.
	Score(team string, round int) (float64, bool)
	// Teams lists every team known to the table in a stable order.
	Teams() []string
}

// DayRounds maps a day index to the scoring round used for picks on that day.
type DayRounds map[int]int

// Round returns the round for day or an ErrInvalidInput error.
func (r DayRounds) Round(day int) (int, error) {
	round, ok := r[day]
	if !ok {
		return 0, fmt.Errorf("%w: no round configured for day %d", ErrInvalidInput, day)
	}
	return round, nil
}

// DayEligibility maps a day index to the teams that may be picked on that day.
// Eligibility says nothing about whether a team was already picked earlier.
type DayEligibility map[int][]string

// MaxDay returns the highest day key, or -1 for an empty mapping.
func (d DayEligibility) MaxDay() int {
	highest := -1
	for day := range d {
		if day > highest {
			highest = day
		}
	}
	return highest
}

// sorted returns a deduplicated, sorted copy of every day's eligible set so the
// search visits candidates in a reproducible order.
func (d DayEligibility) sorted() map[int][]string {
	out := make(map[int][]string, len(d))
	for day, teams := range d {
		seen := make(map[string]bool, len(teams))
		list := make([]string, 0, len(teams))
		for _, team := range teams {
			if seen[team] {
				continue
			}
			seen[team] = true
			list = append(list, team)
		}
		sort.Strings(list)
		out[day] = list
	}
	return out
}

type cacheKey struct {
	team string
	day  int
}

// valueCache memoizes ValueTable lookups per (team, day). Entries are written
// once and never invalidated; the table is immutable for the life of a search.
type valueCache struct {
	table  ValueTable
	rounds DayRounds
	values map[cacheKey]float64

	hits   int64
	misses int64
}

func newValueCache(table ValueTable, rounds DayRounds) *valueCache {
	return &valueCache{
		table:  table,
		rounds: rounds,
		values: make(map[cacheKey]float64),
	}
}

// valueOf returns the score of team on day, resolving the day's round first.
func (c *valueCache) valueOf(team string, day int) (float64, error) {
	key := cacheKey{team: team, day: day}
	if v, ok := c.values[key]; ok {
		c.hits++
		return v, nil
	}

	round, err := c.rounds.Round(day)
	if err != nil {
		return 0, err
	}
	v, ok := c.table.Score(team, round)
	if !ok {
		return 0, &LookupError{Team: team, Day: day, Round: round}
	}

	c.misses++
	c.values[key] = v
	return v, nil
}
