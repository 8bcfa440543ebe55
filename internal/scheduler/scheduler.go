// Package scheduler triggers the weekly accrual run and the daily referral
// expiry sweep. It only decides when and for which week; all money movement
// happens in the service layer.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/mehrbod2002/roivault/internal/service"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Config struct {
	AccrualSpec string
	ExpirySpec  string
	// CatchUpWeeks bounds how many weeks back an accrual tick looks for
	// weeks still owed to some investment. Zero means back to week 1.
	CatchUpWeeks int
	// RunTimeout bounds a single job. Zero means no bound.
	RunTimeout time.Duration
}

type Scheduler struct {
	cron      *cron.Cron
	accrual   service.AccrualService
	referrals service.ReferralService
	cfg       Config
	clock     func() time.Time
	logger    *zap.Logger
}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

func New(accrual service.AccrualService, referrals service.ReferralService, cfg Config, logger *zap.Logger) (*Scheduler, error) {
	logger = logger.Named("scheduler")
	cl := cronLogger{sugar: logger.Sugar()}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		accrual:   accrual,
		referrals: referrals,
		cfg:       cfg,
		clock:     time.Now,
		logger:    logger,
	}

	if _, err := s.cron.AddFunc(cfg.AccrualSpec, s.runAccrual); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(cfg.ExpirySpec, s.runExpiry); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("accrual", s.cfg.AccrualSpec),
		zap.String("expiry", s.cfg.ExpirySpec))
}

// Stop prevents new runs and waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		s.logger.Info("scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with jobs still running")
	}
}

func (s *Scheduler) jobContext() (context.Context, context.CancelFunc) {
	if s.cfg.RunTimeout > 0 {
		return context.WithTimeout(context.Background(), s.cfg.RunTimeout)
	}
	return context.WithCancel(context.Background())
}

// runAccrual runs every week from the oldest one some investment is still
// owed up to the most recently completed week. Weeks that failed or were
// missed earlier are retried this way; already credited pairs are no-ops.
func (s *Scheduler) runAccrual() {
	current := s.accrual.CurrentWeek(s.clock().UTC())
	if current < 1 {
		s.logger.Info("no completed accrual week yet")
		return
	}

	ctx, cancel := s.jobContext()
	defer cancel()

	from := 1
	if s.cfg.CatchUpWeeks > 0 {
		from = max(current-s.cfg.CatchUpWeeks+1, 1)
	}
	oldest, err := s.accrual.OldestPendingWeek(ctx, from, current)
	if err != nil {
		s.logger.Error("failed to find pending accrual weeks", zap.Error(err))
		oldest = current
	}
	if oldest == 0 {
		s.logger.Info("no accrual pending", zap.Int("week", current))
		return
	}
	if oldest < current {
		s.logger.Info("catching up accrual", zap.Int("from_week", oldest), zap.Int("to_week", current))
	}

	for week := oldest; week <= current; week++ {
		if ctx.Err() != nil {
			s.logger.Warn("accrual catch-up stopped", zap.Int("week", week), zap.Error(ctx.Err()))
			return
		}
		if !s.runWeek(ctx, week) {
			return
		}
	}
}

// runWeek runs one week and reports whether later weeks should still be tried.
func (s *Scheduler) runWeek(ctx context.Context, week int) bool {
	report, err := s.accrual.RunWeek(ctx, week)
	switch {
	case errors.Is(err, service.ErrAccrualRunning):
		s.logger.Info("accrual already running elsewhere", zap.Int("week", week))
	case err != nil:
		s.logger.Error("scheduled accrual failed", zap.Int("week", week), zap.Error(err))
		return false
	case report.Failed > 0 || report.Interrupted:
		s.logger.Warn("scheduled accrual finished with problems",
			zap.Int("week", week),
			zap.Int("failed", report.Failed),
			zap.Bool("interrupted", report.Interrupted))
	}
	return true
}

func (s *Scheduler) runExpiry() {
	ctx, cancel := s.jobContext()
	defer cancel()

	if _, err := s.referrals.ExpireReferrals(ctx, s.clock().UTC()); err != nil {
		s.logger.Error("referral expiry sweep failed", zap.Error(err))
	}
}
