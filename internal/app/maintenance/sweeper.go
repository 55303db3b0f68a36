// Package maintenance runs the background housekeeping jobs: persisting
// expired status on stale pending invitations and pruning old access logs.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/estateflow/estateflow/internal/services"
	"github.com/estateflow/estateflow/pkg/logger"
)

const (
	defaultLogRetentionDays   = 90
	defaultInvitationSchedule = "@hourly"
	defaultAccessLogSchedule  = "@daily"
)

// Sweeper coordinates the periodic maintenance jobs. Any nil dependency
// results in the corresponding job being skipped.
type Sweeper struct {
	invitations *services.InvitationService
	logs        *services.AccessLogService
	cron        *cron.Cron
	now         func() time.Time
	log         *zap.Logger
	retention   int

	invitationSchedule string
	accessLogSchedule  string
}

// Option customises the Sweeper.
type Option func(*Sweeper)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Sweeper) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used for retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogRetentionDays adjusts how long access logs are retained.
func WithLogRetentionDays(days int) Option {
	return func(s *Sweeper) {
		if days > 0 {
			s.retention = days
		}
	}
}

// WithInvitationSchedule overrides the cron specification for the expiry sweep.
func WithInvitationSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.invitationSchedule = spec
		}
	}
}

// WithAccessLogSchedule overrides the cron specification for log pruning.
func WithAccessLogSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.accessLogSchedule = spec
		}
	}
}

// NewSweeper constructs a Sweeper with sensible defaults.
func NewSweeper(invitations *services.InvitationService, logs *services.AccessLogService, opts ...Option) *Sweeper {
	sweeper := &Sweeper{
		invitations:        invitations,
		logs:               logs,
		now:                time.Now,
		retention:          defaultLogRetentionDays,
		invitationSchedule: defaultInvitationSchedule,
		accessLogSchedule:  defaultAccessLogSchedule,
		log:                logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(sweeper)
	}

	if sweeper.cron == nil {
		sweeper.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return sweeper
}

// Start registers the jobs with the cron scheduler and launches it.
func (s *Sweeper) Start() error {
	if s.invitations != nil {
		if _, err := s.cron.AddFunc(s.invitationSchedule, func() {
			ctx := context.Background()
			count, err := s.invitations.MarkExpired(ctx)
			if err != nil {
				s.log.Warn("invitation expiry sweep failed", zap.Error(err))
				return
			}
			if count > 0 {
				s.log.Info("marked stale invitations expired", zap.Int64("count", count))
			}
		}); err != nil {
			return err
		}
	}

	if s.logs != nil && s.retention > 0 {
		if _, err := s.cron.AddFunc(s.accessLogSchedule, func() {
			ctx := context.Background()
			cutoff := s.now().AddDate(0, 0, -s.retention)
			count, err := s.logs.PruneOlderThan(ctx, cutoff)
			if err != nil {
				s.log.Warn("access log pruning failed", zap.Error(err))
				return
			}
			if count > 0 {
				s.log.Info("pruned old access logs", zap.Int64("count", count))
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (s *Sweeper) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes all configured jobs sequentially. Primarily used in
// tests and during graceful shutdown.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if s.invitations != nil {
		if _, err := s.invitations.MarkExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if s.logs != nil && s.retention > 0 {
		cutoff := s.now().AddDate(0, 0, -s.retention)
		if _, err := s.logs.PruneOlderThan(ctx, cutoff); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
