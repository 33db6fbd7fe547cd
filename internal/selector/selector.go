package selector

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// AutoMaxDay makes the horizon the highest day in the eligibility mapping.
const AutoMaxDay = -1

// Options tunes a search. Start from DefaultOptions; the zero value has no
// pair-pick days and no slack.
type Options struct {
	// MaxDay is the inclusive horizon, or AutoMaxDay.
	MaxDay int
	// PairDays are the days that take two picks instead of one.
	PairDays []int
	// Slack is added to every pruning bound.
	Slack float64
	// DisablePruning explores every branch; used to check the bound.
	DisablePruning bool
	// NodeLimit stops the search after that many visited nodes when > 0.
	NodeLimit int64
	// OnImprove is called on every strict improvement of the best result.
	OnImprove func(Improvement)
	Logger    *logrus.Entry
}

// DefaultOptions returns the tournament defaults: auto horizon, pairs on days
// 0 and 1, DefaultSlack.
func DefaultOptions() Options {
	return Options{
		MaxDay:   AutoMaxDay,
		PairDays: []int{0, 1},
		Slack:    DefaultSlack,
	}
}

// Improvement is reported each time the best complete selection improves.
type Improvement struct {
	Value       float64  `json:"value"`
	Probability float64  `json:"probability"`
	Selection   []string `json:"selection"`
	Nodes       int64    `json:"nodes"`
}

// Stats counts the work done by one search.
type Stats struct {
	Nodes        int64         `json:"nodes"`
	Pruned       int64         `json:"pruned"`
	Improvements int           `json:"improvements"`
	CacheHits    int64         `json:"cache_hits"`
	CacheMisses  int64         `json:"cache_misses"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Result is the outcome of Select. When Feasible is false, Value is negative
// infinity and Selection is empty: no complete selection exists.
// Value and Bounds may hold infinities and are not JSON safe as is.
type Result struct {
	Value     float64
	Selection []string
	Feasible  bool
	Complete  bool
	MaxDay    int
	Bounds    []float64
	Stats     Stats
}

// Probability is exp(Value), the joint win probability of the selection.
func (r *Result) Probability() float64 {
	return math.Exp(r.Value)
}

// Selector runs the branch-and-bound search over day-by-day picks. A Selector
// may be reused; each Select starts from a fresh best result and value cache.
type Selector struct {
	table  ValueTable
	days   DayEligibility
	rounds DayRounds
	opts   Options
	log    *logrus.Entry
}

// New creates a selector over caller-owned inputs. None of them are modified.
func New(table ValueTable, days DayEligibility, rounds DayRounds, opts Options) *Selector {
	log := opts.Logger
	if log == nil {
		log = logrus.WithField("component", "selector")
	}
	return &Selector{
		table:  table,
		days:   days,
		rounds: rounds,
		opts:   opts,
		log:    log,
	}
}

// Select returns the best selection found. A LookupError or invalid input
// aborts with a nil result. Cancellation of ctx, or reaching the node limit,
// returns the best result found so far together with an ErrCanceled error.
func (s *Selector) Select(ctx context.Context) (*Result, error) {
	start := time.Now()

	maxDay := s.opts.MaxDay
	if maxDay == AutoMaxDay {
		maxDay = s.days.MaxDay()
	}
	if maxDay < 0 {
		return nil, fmt.Errorf("%w: horizon %d", ErrInvalidInput, maxDay)
	}

	bounds, err := EstimateBounds(s.table, s.rounds, maxDay, s.opts.Slack)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate bounds: %w", err)
	}

	pairDays := make(map[int]bool, len(s.opts.PairDays))
	picks := maxDay + 1
	for _, d := range s.opts.PairDays {
		if d >= 0 && d <= maxDay && !pairDays[d] {
			pairDays[d] = true
			picks++
		}
	}

	st := &search{
		ctx:       ctx,
		maxDay:    maxDay,
		bounds:    bounds,
		eligible:  s.days.sorted(),
		pairDays:  pairDays,
		values:    newValueCache(s.table, s.rounds),
		prune:     !s.opts.DisablePruning,
		nodeLimit: s.opts.NodeLimit,
		onImprove: s.opts.OnImprove,
		log:       s.log,
		picked:    make(map[string]bool, picks),
		selection: make([]string, 0, picks),
		bestValue: math.Inf(-1),
	}

	searchErr := st.recurse(0, 0)
	if searchErr != nil && !isCancel(searchErr) {
		return nil, searchErr
	}

	res := &Result{
		Value:     st.bestValue,
		Selection: st.bestSelection,
		Feasible:  st.bestSelection != nil,
		Complete:  searchErr == nil,
		MaxDay:    maxDay,
		Bounds:    bounds,
		Stats: Stats{
			Nodes:        st.nodes,
			Pruned:       st.pruned,
			Improvements: st.improvements,
			CacheHits:    st.values.hits,
			CacheMisses:  st.values.misses,
			Elapsed:      time.Since(start),
		},
	}
	if res.Selection == nil {
		res.Selection = []string{}
	}

	s.log.WithFields(logrus.Fields{
		"value":    res.Value,
		"feasible": res.Feasible,
		"complete": res.Complete,
		"nodes":    res.Stats.Nodes,
		"pruned":   res.Stats.Pruned,
		"elapsed":  res.Stats.Elapsed,
	}).Info("Selection search finished")

	return res, searchErr
}

// search is the state of one Select call. The selection buffer is used as a
// stack; only the recorded best is a copy.
type search struct {
	ctx       context.Context
	maxDay    int
	bounds    []float64
	eligible  map[int][]string
	pairDays  map[int]bool
	values    *valueCache
	prune     bool
	nodeLimit int64
	onImprove func(Improvement)
	log       *logrus.Entry

	picked    map[string]bool
	selection []string

	bestValue     float64
	bestSelection []string

	nodes        int64
	pruned       int64
	improvements int
}

func (s *search) recurse(day int, value float64) error {
	if err := s.ctx.Err(); err != nil {
		return canceled(err)
	}
	s.nodes++
	if s.nodeLimit > 0 && s.nodes > s.nodeLimit {
		return canceled(ErrNodeLimit)
	}

	if s.prune && value+s.bounds[day] < s.bestValue {
		s.pruned++
		return nil
	}

	if day == s.maxDay+1 {
		if value > s.bestValue {
			s.record(value)
		}
		return nil
	}

	valid := s.validTeams(day)

	if s.pairDays[day] {
		for i, first := range valid {
			v1, err := s.values.valueOf(first, day)
			if err != nil {
				return err
			}
			for _, second := range valid[i+1:] {
				v2, err := s.values.valueOf(second, day)
				if err != nil {
					return err
				}
				s.push(first, second)
				err = s.recurse(day+1, value+v1+v2)
				s.pop(2)
				if err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, team := range valid {
		v, err := s.values.valueOf(team, day)
		if err != nil {
			return err
		}
		s.push(team)
		err = s.recurse(day+1, value+v)
		s.pop(1)
		if err != nil {
			return err
		}
	}
	return nil
}

// validTeams returns the day's eligible teams that are not yet picked.
func (s *search) validTeams(day int) []string {
	eligible := s.eligible[day]
	valid := make([]string, 0, len(eligible))
	for _, team := range eligible {
		if !s.picked[team] {
			valid = append(valid, team)
		}
	}
	return valid
}

func (s *search) push(teams ...string) {
	for _, team := range teams {
		s.picked[team] = true
		s.selection = append(s.selection, team)
	}
}

func (s *search) pop(n int) {
	for _, team := range s.selection[len(s.selection)-n:] {
		delete(s.picked, team)
	}
	s.selection = s.selection[:len(s.selection)-n]
}

func (s *search) record(value float64) {
	s.bestValue = value
	s.bestSelection = append([]string(nil), s.selection...)
	s.improvements++

	s.log.WithFields(logrus.Fields{
		"best_value":     value,
		"probability":    math.Exp(value),
		"best_selection": s.bestSelection,
	}).Debug("New best selection")

	if s.onImprove != nil {
		s.onImprove(Improvement{
			Value:       value,
			Probability: math.Exp(value),
			Selection:   append([]string(nil), s.bestSelection...),
			Nodes:       s.nodes,
		})
	}
}
