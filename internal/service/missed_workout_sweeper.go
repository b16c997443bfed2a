package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/multierr"

	"github.com/bjelicb/kinetix-backend-sub000/internal/dateutil"
	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
	"github.com/bjelicb/kinetix-backend-sub000/internal/metrics"
	"github.com/bjelicb/kinetix-backend-sub000/internal/repository"
)

// MissedCharge is one penalty the sweeper will apply.
type MissedCharge struct {
	LogID    primitive.ObjectID
	ClientID primitive.ObjectID
	PlanID   primitive.ObjectID
	Amount   float64
}

// MissedSweepPlan is the sweeper's decision for one run.
type MissedSweepPlan struct {
	Charges []MissedCharge
	LogIDs  []primitive.ObjectID
}

type MissedWorkoutSweeper interface {
	MarkMissedWorkouts(ctx context.Context) (JobReport, error)
}

type missedWorkoutSweeper struct {
	logRepo repository.WorkoutLogRepository
	ledger  LedgerService
	clock   dateutil.Clock
	metrics *metrics.Manager
	amount  float64
	log     *logrus.Entry
}

func NewMissedWorkoutSweeper(
	logRepo repository.WorkoutLogRepository,
	ledger LedgerService,
	clock dateutil.Clock,
	m *metrics.Manager,
	penaltyAmount float64,
) MissedWorkoutSweeper {
	return &missedWorkoutSweeper{
		logRepo: logRepo,
		ledger:  ledger,
		clock:   clock,
		metrics: m,
		amount:  penaltyAmount,
		log:     logrus.WithField("component", JobMissedWorkouts),
	}
}

// PlanMissedSweep selects the logs dated before today that are still pending
// and are not rest days, with one charge per log. An amount of zero selects
// the logs without charging.
func PlanMissedSweep(now time.Time, overdue []domain.WorkoutLog, amount float64) MissedSweepPlan {
	today := dateutil.StartOfDay(now)
	var plan MissedSweepPlan
	for _, l := range overdue {
		if l.IsRestDay || !l.IsPending() || !dateutil.StartOfDay(l.WorkoutDate).Before(today) {
			continue
		}
		plan.LogIDs = append(plan.LogIDs, l.ID)
		if amount > 0 {
			plan.Charges = append(plan.Charges, MissedCharge{
				LogID:    l.ID,
				ClientID: l.ClientID,
				PlanID:   l.PlanID,
				Amount:   amount,
			})
		}
	}
	return plan
}

// MarkMissedWorkouts charges every overdue log and then flips them all to
// missed in one update. A failed charge is logged and the sweep continues.
func (s *missedWorkoutSweeper) MarkMissedWorkouts(ctx context.Context) (JobReport, error) {
	report := JobReport{Job: JobMissedWorkouts, StartedAt: s.clock.Now()}
	today := dateutil.StartOfDay(report.StartedAt)

	overdue, err := s.logRepo.FindOverdue(ctx, today)
	if err != nil {
		report.FinishedAt = s.clock.Now()
		return report, fmt.Errorf("find overdue logs: %w", err)
	}
	plan := PlanMissedSweep(report.StartedAt, overdue, s.amount)
	if len(plan.LogIDs) == 0 {
		report.FinishedAt = s.clock.Now()
		s.log.WithFields(report.Fields()).Debug("no overdue workouts")
		return report, nil
	}

	var errs error
	for _, c := range plan.Charges {
		planID := c.PlanID
		if _, err := s.ledger.ApplyPenalty(ctx, c.ClientID, c.Amount, ReasonMissedWorkout, &planID); err != nil {
			report.Failed++
			errs = multierr.Append(errs, fmt.Errorf("charge log %s: %w", c.LogID.Hex(), err))
			s.log.WithFields(logrus.Fields{
				"clientId": c.ClientID.Hex(),
				"logId":    c.LogID.Hex(),
			}).WithError(err).Error("failed to charge missed workout")
		}
	}

	marked, err := s.logRepo.MarkMissed(ctx, plan.LogIDs)
	if err != nil {
		report.FinishedAt = s.clock.Now()
		report.Err = errs
		return report, fmt.Errorf("mark logs missed: %w", err)
	}
	s.metrics.CounterLogsMarkedMissed.Add(float64(marked))

	report.Processed = marked
	report.FinishedAt = s.clock.Now()
	report.Err = errs
	s.log.WithFields(report.Fields()).WithField("selected", len(plan.LogIDs)).Info("missed workouts marked")
	return report, nil
}
