package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jstittsworth/bracket-optimizer/internal/bracket"
	"github.com/jstittsworth/bracket-optimizer/internal/models"
	"github.com/jstittsworth/bracket-optimizer/internal/selector"
	"github.com/jstittsworth/bracket-optimizer/pkg/config"
	"github.com/jstittsworth/bracket-optimizer/pkg/database"
	"github.com/jstittsworth/bracket-optimizer/pkg/logger"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrRunNotFound      = errors.New("selection run not found")
	ErrNoForecastDate   = errors.New("no forecasts stored")
	ErrInvalidParameter = errors.New("invalid selection parameter")
)

// SelectionRequest asks for a selection over one stored snapshot. Nil fields
// take the configured defaults; an empty date means the latest snapshot.
type SelectionRequest struct {
	ForecastDate     string   `json:"forecast_date"`
	Gender           string   `json:"gender"`
	MinFirstRoundWin *float64 `json:"min_first_round_win"`
	MaxDay           *int     `json:"max_day"`
	Slack            *float64 `json:"slack"`
}

type SelectionStats struct {
	Nodes        int64 `json:"nodes"`
	Pruned       int64 `json:"pruned"`
	Improvements int   `json:"improvements"`
	ElapsedMS    int64 `json:"elapsed_ms"`
}

// SelectionResponse is the JSON safe view of a run.
type SelectionResponse struct {
	RunID            string         `json:"run_id"`
	ForecastDate     string         `json:"forecast_date"`
	Gender           string         `json:"gender"`
	MinFirstRoundWin float64        `json:"min_first_round_win"`
	MaxDay           int            `json:"max_day"`
	Slack            float64        `json:"slack"`
	Teams            int            `json:"teams"`
	Feasible         bool           `json:"feasible"`
	Complete         bool           `json:"complete"`
	Value            *float64       `json:"value"`
	Probability      float64        `json:"probability"`
	Picks            []models.Pick  `json:"picks"`
	Stats            SelectionStats `json:"stats"`
	Cached           bool           `json:"cached"`
	CreatedAt        time.Time      `json:"created_at"`
}

func responseFromRun(run *models.SelectionRun) (*SelectionResponse, error) {
	picks, err := run.DecodePicks()
	if err != nil {
		return nil, fmt.Errorf("failed to decode picks of run %s: %w", run.ID, err)
	}
	if picks == nil {
		picks = []models.Pick{}
	}
	return &SelectionResponse{
		RunID:            run.ID,
		ForecastDate:     run.ForecastDate,
		Gender:           run.Gender,
		MinFirstRoundWin: run.MinFirstRoundWin,
		MaxDay:           run.MaxDay,
		Slack:            run.Slack,
		Teams:            run.Teams,
		Feasible:         run.Feasible,
		Complete:         run.Complete,
		Value:            run.Value,
		Probability:      run.Probability,
		Picks:            picks,
		Stats: SelectionStats{
			Nodes:        run.Nodes,
			Pruned:       run.Pruned,
			Improvements: run.Improvements,
			ElapsedMS:    run.ElapsedMS,
		},
		CreatedAt: run.CreatedAt,
	}, nil
}

// selectionParams is a request with every default filled in.
type selectionParams struct {
	date      string
	gender    string
	threshold float64
	opts      selector.Options
	rounds    selector.DayRounds
}

// cacheKey identifies the inputs of a search. The date leads so an import can
// drop every entry of that snapshot.
func (p selectionParams) cacheKey() string {
	days := lo.Keys(p.rounds)
	rounds := make([]string, 0, len(days))
	for d := 0; d <= lo.Max(days); d++ {
		rounds = append(rounds, fmt.Sprint(p.rounds[d]))
	}
	raw := fmt.Sprintf("%s|%.6f|%d|%.6f|%v|%d|%s",
		p.gender, p.threshold, p.opts.MaxDay, p.opts.Slack, p.opts.PairDays, p.opts.NodeLimit, strings.Join(rounds, ","))
	sum := sha256.Sum256([]byte(raw))
	return SelectionCachePrefix(p.date) + hex.EncodeToString(sum[:8])
}

// SelectionCachePrefix is shared by every cached result of one snapshot date.
func SelectionCachePrefix(date string) string {
	return "selection:" + date + ":"
}

// SelectionService runs searches over stored snapshots, caches complete
// results and records every run.
type SelectionService struct {
	db       *database.DB
	store    *ForecastStore
	cache    *CacheService
	hub      Broadcaster
	cfg      *config.Config
	cacheTTL time.Duration
}

func NewSelectionService(db *database.DB, store *ForecastStore, cache *CacheService, hub Broadcaster, cfg *config.Config) *SelectionService {
	return &SelectionService{
		db:       db,
		store:    store,
		cache:    cache,
		hub:      hub,
		cfg:      cfg,
		cacheTTL: cfg.ResultCacheTTL,
	}
}

func (s *SelectionService) resolve(ctx context.Context, req SelectionRequest) (selectionParams, error) {
	p := selectionParams{
		date:      req.ForecastDate,
		gender:    lo.Ternary(req.Gender != "", req.Gender, s.cfg.Gender),
		threshold: s.cfg.MinFirstRoundWin,
		opts:      s.cfg.SearchOptions(),
		rounds:    s.cfg.Rounds(),
	}
	if req.MinFirstRoundWin != nil {
		if *req.MinFirstRoundWin < 0 || *req.MinFirstRoundWin >= 1 {
			return p, fmt.Errorf("%w: min_first_round_win must be in [0, 1)", ErrInvalidParameter)
		}
		p.threshold = *req.MinFirstRoundWin
	}
	if req.MaxDay != nil {
		if *req.MaxDay < 0 || *req.MaxDay >= len(p.rounds) {
			return p, fmt.Errorf("%w: max_day must be in [0, %d]", ErrInvalidParameter, len(p.rounds)-1)
		}
		p.opts.MaxDay = *req.MaxDay
	}
	if req.Slack != nil {
		if *req.Slack < 0 {
			return p, fmt.Errorf("%w: slack must not be negative", ErrInvalidParameter)
		}
		p.opts.Slack = *req.Slack
	}
	if p.opts.MaxDay == selector.AutoMaxDay || p.opts.MaxDay >= len(p.rounds) {
		p.opts.MaxDay = len(p.rounds) - 1
	}

	if p.date == "" {
		latest, err := s.store.LatestDate(ctx, p.gender)
		if err != nil {
			return p, err
		}
		if latest == "" {
			return p, fmt.Errorf("%w for gender %q", ErrNoForecastDate, p.gender)
		}
		p.date = latest
	}
	return p, nil
}

// Run answers from the cache when possible, otherwise searches the snapshot,
// records the run and caches a complete result. A search cut short by its
// time budget still records and returns its best selection with Complete
// false.
func (s *SelectionService) Run(ctx context.Context, req SelectionRequest, source string) (*SelectionResponse, error) {
	params, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	key := params.cacheKey()
	var cached SelectionResponse
	switch err := s.cache.Get(ctx, key, &cached); {
	case err == nil:
		cached.Cached = true
		return &cached, nil
	case !errors.Is(err, ErrCacheMiss):
		logrus.WithError(err).Warn("Selection cache lookup failed")
	}

	rows, err := s.store.Snapshot(ctx, params.date, params.gender)
	if err != nil {
		return nil, err
	}
	table, days, err := bracket.Prepare(models.ToForecasts(rows), bracket.Filter{
		Gender:           params.gender,
		ForecastDate:     params.date,
		MinFirstRoundWin: params.threshold,
	})
	if err != nil {
		return nil, err
	}

	run := &models.SelectionRun{
		ID:               uuid.NewString(),
		ForecastDate:     params.date,
		Gender:           params.gender,
		MinFirstRoundWin: params.threshold,
		Slack:            params.opts.Slack,
		Teams:            table.Len(),
		Source:           source,
	}
	log := logger.WithForecastContext(run.ID, params.date, params.gender)
	topic := SelectionTopic(run.ID)

	s.broadcast(topic, MessageSelectionStarted, runHeader(run))

	opts := params.opts
	opts.Logger = log.WithField("component", "selector")
	opts.OnImprove = func(imp selector.Improvement) {
		s.broadcast(topic, MessageImprovement, imp)
	}

	searchCtx := ctx
	if s.cfg.SearchTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, s.cfg.SearchTimeout)
		defer cancel()
	}

	res, err := selector.New(table, days, params.rounds, opts).Select(searchCtx)
	if err != nil && !errors.Is(err, selector.ErrCanceled) {
		return nil, fmt.Errorf("selection failed: %w", err)
	}
	if err != nil {
		log.WithError(err).Warn("Selection search stopped early, keeping best so far")
	}

	if err := run.ApplyResult(res, opts.PairDays); err != nil {
		return nil, fmt.Errorf("failed to encode selection: %w", err)
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to save selection run: %w", err)
	}

	resp, err := responseFromRun(run)
	if err != nil {
		return nil, err
	}

	if resp.Complete {
		if err := s.cache.Set(ctx, key, resp, s.cacheTTL); err != nil {
			log.WithError(err).Warn("Failed to cache selection")
		}
	}

	s.broadcast(topic, MessageSelectionFinished, resp)
	s.broadcast(TopicSelections, MessageSelectionFinished, resp)

	log.WithFields(logrus.Fields{
		"feasible":    resp.Feasible,
		"complete":    resp.Complete,
		"probability": resp.Probability,
		"source":      source,
	}).Info("Selection run recorded")

	return resp, nil
}

// runHeader is the payload sent when a search starts.
func runHeader(run *models.SelectionRun) map[string]interface{} {
	return map[string]interface{}{
		"run_id":        run.ID,
		"forecast_date": run.ForecastDate,
		"gender":        run.Gender,
		"teams":         run.Teams,
	}
}

func (s *SelectionService) broadcast(topic, messageType string, data interface{}) {
	if s.hub == nil {
		return
	}
	if err := s.hub.BroadcastToTopic(topic, messageType, data); err != nil {
		logrus.WithError(err).WithField("topic", topic).Warn("Failed to broadcast selection progress")
	}
}

// Get returns a recorded run.
func (s *SelectionService) Get(ctx context.Context, id string) (*SelectionResponse, error) {
	var run models.SelectionRun
	err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load selection run: %w", err)
	}
	return responseFromRun(&run)
}

// List returns the most recent runs, newest first, optionally for one date.
func (s *SelectionService) List(ctx context.Context, date string, limit int) ([]*SelectionResponse, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := s.db.WithContext(ctx).Model(&models.SelectionRun{})
	if date != "" {
		query = query.Where("forecast_date = ?", date)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count selection runs: %w", err)
	}

	var runs []models.SelectionRun
	if err := query.Order("created_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list selection runs: %w", err)
	}

	out := make([]*SelectionResponse, 0, len(runs))
	for i := range runs {
		resp, err := responseFromRun(&runs[i])
		if err != nil {
			return nil, 0, err
		}
		out = append(out, resp)
	}
	return out, total, nil
}

// InvalidateDate drops cached results for a snapshot date.
func (s *SelectionService) InvalidateDate(ctx context.Context, date string) {
	n, err := s.cache.DeletePrefix(ctx, SelectionCachePrefix(date))
	if err != nil {
		logrus.WithError(err).WithField("forecast_date", date).Warn("Failed to invalidate cached selections")
		return
	}
	if n > 0 {
		logrus.WithFields(logrus.Fields{"forecast_date": date, "keys": n}).Info("Invalidated cached selections")
	}
}
