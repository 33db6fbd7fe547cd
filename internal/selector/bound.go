package selector

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultSlack is the margin added to every bound. It was tuned together with
// the eligibility-blind estimate below; change them together.
const DefaultSlack = 0.3

// EstimateBounds returns, for every day 0..maxDay, an optimistic estimate of
// the value still obtainable from that day through maxDay, plus a trailing
// zero for the terminal state (len = maxDay+2).
//
// Days are walked from maxDay back to 0. Each day claims the best unclaimed
// team in the whole table for that day's round, ignoring eligibility. The
// claims are private to this estimate and never touch the real selection.
// The result is an approximation, which is why slack is added on top.
func EstimateBounds(table ValueTable, rounds DayRounds, maxDay int, slack float64) ([]float64, error) {
	if maxDay < 0 {
		return nil, fmt.Errorf("%w: horizon %d", ErrInvalidInput, maxDay)
	}

	teams := table.Teams()
	claimed := make(map[string]bool, maxDay+1)

	// marginal is filled last day first, so it is in reverse day order.
	marginal := make([]float64, 0, maxDay+1)
	for day := maxDay; day >= 0; day-- {
		round, err := rounds.Round(day)
		if err != nil {
			return nil, err
		}

		best := math.Inf(-1)
		bestTeam := ""
		for _, team := range teams {
			if claimed[team] {
				continue
			}
			if v, ok := table.Score(team, round); ok && v > best {
				best = v
				bestTeam = team
			}
		}
		if bestTeam != "" {
			claimed[bestTeam] = true
		}
		marginal = append(marginal, best)
	}

	bounds := make([]float64, len(marginal), len(marginal)+1)
	floats.CumSum(bounds, marginal)
	floats.Reverse(bounds)
	floats.AddConst(slack, bounds)

	return append(bounds, 0), nil
}
