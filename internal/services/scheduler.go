package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jstittsworth/bracket-optimizer/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SelectionRunner is the part of SelectionService the scheduler drives.
type SelectionRunner interface {
	Run(ctx context.Context, req SelectionRequest, source string) (*SelectionResponse, error)
}

// RefreshScheduler re-runs the selection on the newest snapshot on a cron
// schedule, so the cache and run history stay current as forecasts change.
type RefreshScheduler struct {
	runner    SelectionRunner
	schedule  string
	gender    string
	timeout   time.Duration
	logger    *logrus.Entry
	cron      *cron.Cron
	mu        sync.Mutex
	isRunning bool
	refreshMu sync.Mutex
}

func NewRefreshScheduler(runner SelectionRunner, schedule, gender string, timeout time.Duration, logger *logrus.Entry) *RefreshScheduler {
	if logger == nil {
		logger = logrus.WithField("component", "refresh_scheduler")
	}
	return &RefreshScheduler{
		runner:   runner,
		schedule: schedule,
		gender:   gender,
		timeout:  timeout,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start schedules the refresh job. An empty schedule leaves it disabled.
func (s *RefreshScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("refresh scheduler is already running")
	}
	if s.schedule == "" {
		s.logger.Info("Refresh schedule not configured, scheduler disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RefreshOnce(context.Background()); err != nil {
			s.logger.WithError(err).Error("Scheduled selection refresh failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule selection refresh: %w", err)
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("schedule", s.schedule).Info("Refresh scheduler started")
	return nil
}

func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	<-s.cron.Stop().Done()
	s.isRunning = false
	s.logger.Info("Refresh scheduler stopped")
}

// RefreshOnce runs one selection on the latest snapshot. Overlapping calls
// wait for the running one.
func (s *RefreshScheduler) RefreshOnce(ctx context.Context) (*SelectionResponse, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.runner.Run(ctx, SelectionRequest{Gender: s.gender}, models.SourceScheduler)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":        resp.RunID,
		"forecast_date": resp.ForecastDate,
		"cached":        resp.Cached,
		"duration":      time.Since(start),
	}).Info("Selection refreshed")
	return resp, nil
}
