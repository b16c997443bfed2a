// Package scheduler runs the batch jobs on cron schedules. Every run holds a
// named lock so that only one instance executes a job at a time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/bjelicb/kinetix-backend-sub000/internal/lock"
	"github.com/bjelicb/kinetix-backend-sub000/internal/metrics"
	"github.com/bjelicb/kinetix-backend-sub000/internal/service"
)

// ErrJobRunning is returned by a manual run while another instance holds the job lock.
var ErrJobRunning = errors.New("job is already running")

const (
	outcomeSuccess = "success"
	outcomePartial = "partial"
	outcomeError   = "error"
	outcomeSkipped = "skipped"
)

// Scheduler manages the cron entries of the batch jobs.
type Scheduler struct {
	Cron    *cron.Cron
	Sweeper service.MissedWorkoutSweeper
	Weekly  service.WeeklyPenaltyJob
	Locker  lock.Locker
	LockTTL time.Duration
	Ctx     context.Context

	metrics *metrics.Manager
	log     *logrus.Entry
}

func NewScheduler(
	ctx context.Context,
	sweeper service.MissedWorkoutSweeper,
	weekly service.WeeklyPenaltyJob,
	locker lock.Locker,
	lockTTL time.Duration,
	m *metrics.Manager,
) *Scheduler {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &Scheduler{
		Cron:    cron.New(cron.WithSeconds()),
		Sweeper: sweeper,
		Weekly:  weekly,
		Locker:  locker,
		LockTTL: lockTTL,
		Ctx:     ctx,
		metrics: m,
		log:     logrus.WithField("component", "scheduler"),
	}
}

// RegisterAll registers the missed-workout sweep and the weekly penalty run.
func (s *Scheduler) RegisterAll(missedCron, weeklyCron string) error {
	if _, err := s.Cron.AddFunc(missedCron, s.missedTask); err != nil {
		return fmt.Errorf("register missed workouts task: %w", err)
	}
	if _, err := s.Cron.AddFunc(weeklyCron, s.weeklyTask); err != nil {
		return fmt.Errorf("register weekly penalties task: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.WithField("entries", len(s.Cron.Entries())).Info("scheduler started")
}

// Stop stops scheduling and waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.Cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out with jobs still running")
	}
}

// RunMissedNow runs the missed-workout sweep immediately.
func (s *Scheduler) RunMissedNow(ctx context.Context) (service.JobReport, error) {
	return s.run(ctx, service.JobMissedWorkouts, s.Sweeper.MarkMissedWorkouts)
}

// RunWeeklyNow runs the weekly penalty calculation immediately.
func (s *Scheduler) RunWeeklyNow(ctx context.Context) (service.JobReport, error) {
	return s.run(ctx, service.JobWeeklyPenalties, s.Weekly.CalculateWeeklyPenalties)
}

func (s *Scheduler) missedTask() {
	_, _ = s.RunMissedNow(s.Ctx)
}

func (s *Scheduler) weeklyTask() {
	_, _ = s.RunWeeklyNow(s.Ctx)
}

func (s *Scheduler) run(ctx context.Context, job string, fn func(context.Context) (service.JobReport, error)) (service.JobReport, error) {
	log := s.log.WithField("job", job)

	release, err := s.Locker.Acquire(ctx, job, s.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			s.metrics.CounterJobLockContention.WithLabelValues(job).Inc()
			s.metrics.CounterJobRuns.WithLabelValues(job, outcomeSkipped).Inc()
			log.Info("job lock held elsewhere, skipping run")
			return service.JobReport{Job: job}, ErrJobRunning
		}
		s.metrics.CounterJobRuns.WithLabelValues(job, outcomeError).Inc()
		log.WithError(err).Error("failed to acquire job lock")
		return service.JobReport{Job: job}, fmt.Errorf("acquire %s lock: %w", job, err)
	}
	defer func() {
		// Release even when the caller's context is already done.
		if err := release(context.Background()); err != nil {
			log.WithError(err).Warn("failed to release job lock")
		}
	}()

	start := time.Now()
	report, err := fn(ctx)
	s.metrics.HistJobDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		s.metrics.CounterJobRuns.WithLabelValues(job, outcomeError).Inc()
		log.WithError(err).Error("job failed")
	case report.Err != nil:
		s.metrics.CounterJobRuns.WithLabelValues(job, outcomePartial).Inc()
		log.WithFields(report.Fields()).WithError(report.Err).Warn("job finished with failures")
	default:
		s.metrics.CounterJobRuns.WithLabelValues(job, outcomeSuccess).Inc()
		log.WithFields(report.Fields()).Info("job finished")
	}
	return report, err
}
