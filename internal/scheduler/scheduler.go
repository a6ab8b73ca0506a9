// Package scheduler fires delivery batches on a cron schedule. A Redis lock
// per slot makes sure only one replica serves it.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"newsletter-agent/internal/common/config"
	"newsletter-agent/internal/common/logger"
	"newsletter-agent/internal/common/metrics"
	"newsletter-agent/internal/newsletter"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"
)

const lockPrefix = "newsletter:scheduler:"

// Batcher runs delivery batches.
type Batcher interface {
	SendToActive(ctx context.Context) (*newsletter.BatchReport, error)
	SendDue(ctx context.Context, at time.Time) (*newsletter.BatchReport, error)
}

type Config struct {
	Cron          string
	LockTTL       time.Duration
	PerSubscriber bool
	Location      *time.Location
}

// LoadConfig resolves the scheduler section. An unknown timezone is an error.
func LoadConfig(cfg *config.Config) (Config, error) {
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("scheduler timezone %q: %w", cfg.Scheduler.Timezone, err)
	}
	return Config{
		Cron:          cfg.Scheduler.Cron,
		LockTTL:       config.GetDuration(cfg.Scheduler.LockTTL),
		PerSubscriber: cfg.Scheduler.PerSubscriber,
		Location:      loc,
	}, nil
}

type Scheduler struct {
	config  Config
	expr    *cronexpr.Expression
	rdb     *redis.Client
	batcher Batcher
	owner   string
	logger  logger.Logger
	now     func() time.Time
}

// New parses the cron expression. rdb may be nil for a single replica, in
// which case every slot runs unlocked.
func New(cfg Config, rdb *redis.Client, batcher Batcher, log logger.Logger) (*Scheduler, error) {
	expr, err := cronexpr.Parse(cfg.Cron)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cfg.Cron, err)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}

	host, _ := os.Hostname()
	return &Scheduler{
		config:  cfg,
		expr:    expr,
		rdb:     rdb,
		batcher: batcher,
		owner:   fmt.Sprintf("%s-%d", host, os.Getpid()),
		logger:  log.With(map[string]interface{}{"component": "scheduler", "cron": cfg.Cron}),
		now:     time.Now,
	}, nil
}

// Next is the first slot strictly after t, or the zero time if the expression
// never fires again.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.expr.Next(t.In(s.config.Location))
}

// Run fires every slot until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", map[string]interface{}{"perSubscriber": s.config.PerSubscriber})
	for {
		next := s.Next(s.now())
		if next.IsZero() {
			s.logger.Warn("cron expression has no future slots", nil)
			return nil
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped", nil)
			return ctx.Err()
		case <-timer.C:
		}

		if _, _, err := s.Fire(ctx, next); err != nil {
			s.logger.Error("scheduled batch failed", map[string]interface{}{
				"slot":  next.Format(time.RFC3339),
				"error": err.Error(),
			})
		}
	}
}

// Fire serves one slot. It reports false without error when another replica
// holds the slot. The lock is left to expire so a late replica cannot rerun
// the slot.
func (s *Scheduler) Fire(ctx context.Context, slot time.Time) (*newsletter.BatchReport, bool, error) {
	slot = slot.In(s.config.Location).Truncate(time.Minute)
	log := s.logger.With(map[string]interface{}{"slot": slot.Format(time.RFC3339)})

	acquired, err := s.acquire(ctx, slot)
	if err != nil {
		metrics.ScheduledBatches.WithLabelValues("failed").Inc()
		return nil, false, err
	}
	if !acquired {
		metrics.ScheduledBatches.WithLabelValues("skipped").Inc()
		log.Info("slot already taken by another replica", nil)
		return nil, false, nil
	}

	var report *newsletter.BatchReport
	if s.config.PerSubscriber {
		report, err = s.batcher.SendDue(ctx, slot)
	} else {
		report, err = s.batcher.SendToActive(ctx)
	}
	if err != nil {
		metrics.ScheduledBatches.WithLabelValues("failed").Inc()
		return nil, true, err
	}

	metrics.ScheduledBatches.WithLabelValues("ran").Inc()
	log.Info("scheduled batch finished", map[string]interface{}{
		"total":  report.Total,
		"sent":   report.Sent,
		"failed": report.Failed,
	})
	return report, true, nil
}

func (s *Scheduler) acquire(ctx context.Context, slot time.Time) (bool, error) {
	if s.rdb == nil {
		return true, nil
	}
	ok, err := s.rdb.SetNX(ctx, LockKey(slot), s.owner, s.config.LockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("scheduler lock: %w", err)
	}
	return ok, nil
}

// LockKey names the lock guarding slot.
func LockKey(slot time.Time) string {
	return lockPrefix + slot.UTC().Format("200601021504")
}
