package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/multierr"

	"github.com/bjelicb/kinetix-backend-sub000/internal/dateutil"
	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
	"github.com/bjelicb/kinetix-backend-sub000/internal/repository"
)

// penaltyModeThreshold is the number of misses in a week above which a client enters penalty mode.
const penaltyModeThreshold = 2

// ClientWeekCounts is one client's adherence for the week being evaluated.
type ClientWeekCounts struct {
	ClientID  primitive.ObjectID
	TrainerID *primitive.ObjectID
	Scheduled int
	Completed int
	Missed    int
}

// WeeklyPenaltyMutation is everything the job writes for one client.
type WeeklyPenaltyMutation struct {
	Record domain.PenaltyRecord
	Update repository.WeeklyPenaltyUpdate
}

type WeeklyPenaltyJob interface {
	CalculateWeeklyPenalties(ctx context.Context) (JobReport, error)
	ListPenaltyRecords(ctx context.Context, actor Actor, clientID primitive.ObjectID) ([]domain.PenaltyRecord, error)
}

type weeklyPenaltyJob struct {
	userRepo   repository.UserRepository
	logRepo    repository.WorkoutLogRepository
	recordRepo repository.PenaltyRecordRepository
	clock      dateutil.Clock
	log        *logrus.Entry
}

func NewWeeklyPenaltyJob(
	userRepo repository.UserRepository,
	logRepo repository.WorkoutLogRepository,
	recordRepo repository.PenaltyRecordRepository,
	clock dateutil.Clock,
) WeeklyPenaltyJob {
	return &weeklyPenaltyJob{
		userRepo:   userRepo,
		logRepo:    logRepo,
		recordRepo: recordRepo,
		clock:      clock,
		log:        logrus.WithField("component", JobWeeklyPenalties),
	}
}

// ClassifyWeek maps a week's miss count to a penalty status.
func ClassifyWeek(missed int) domain.PenaltyStatus {
	switch {
	case missed > penaltyModeThreshold:
		return domain.PenaltyStatusPenaltyMode
	case missed > 0:
		return domain.PenaltyStatusWarning
	default:
		return domain.PenaltyStatusNone
	}
}

// PlanWeeklyPenalties computes the records and counter updates for week. It
// performs no I/O.
func PlanWeeklyPenalties(week dateutil.Week, snapshot []ClientWeekCounts) []WeeklyPenaltyMutation {
	mutations := make([]WeeklyPenaltyMutation, 0, len(snapshot))
	for _, c := range snapshot {
		status := ClassifyWeek(c.Missed)
		rate := 0.0
		if c.Scheduled > 0 {
			rate = float64(c.Completed) / float64(c.Scheduled) * 100
		}

		m := WeeklyPenaltyMutation{
			Record: domain.PenaltyRecord{
				ClientID:          c.ClientID,
				TrainerID:         c.TrainerID,
				WeekStart:         week.Start,
				WeekEnd:           week.End,
				ISOYear:           week.ISOYear,
				ISOWeek:           week.ISOWeek,
				ScheduledWorkouts: c.Scheduled,
				CompletedWorkouts: c.Completed,
				MissedWorkouts:    c.Missed,
				CompletionRate:    rate,
				Status:            status,
			},
		}
		if status == domain.PenaltyStatusPenaltyMode {
			m.Update = repository.WeeklyPenaltyUpdate{
				IsPenaltyMode:        true,
				AddConsecutiveMisses: c.Missed,
				ResetStreak:          true,
			}
		}
		// WARNING and NONE both leave the zero update: penalty mode off, counter reset.
		mutations = append(mutations, m)
	}
	return mutations
}

// CalculateWeeklyPenalties evaluates the ISO week before now for every client.
// A failure for one client is logged and collected; the others are still processed.
func (j *weeklyPenaltyJob) CalculateWeeklyPenalties(ctx context.Context) (JobReport, error) {
	report := JobReport{Job: JobWeeklyPenalties, StartedAt: j.clock.Now()}
	week := dateutil.PreviousISOWeek(report.StartedAt)
	log := j.log.WithFields(logrus.Fields{"isoYear": week.ISOYear, "isoWeek": week.ISOWeek})

	clients, err := j.userRepo.ListClients(ctx)
	if err != nil {
		report.FinishedAt = j.clock.Now()
		return report, fmt.Errorf("list clients: %w", err)
	}
	counts, err := j.logRepo.CountByClientBetween(ctx, week.Start, week.End)
	if err != nil {
		report.FinishedAt = j.clock.Now()
		return report, fmt.Errorf("count workout logs: %w", err)
	}
	byClient := make(map[primitive.ObjectID]repository.WeeklyAdherence, len(counts))
	for _, c := range counts {
		byClient[c.ClientID] = c
	}

	snapshot := make([]ClientWeekCounts, 0, len(clients))
	for _, c := range clients {
		a := byClient[c.ID]
		snapshot = append(snapshot, ClientWeekCounts{
			ClientID:  c.ID,
			TrainerID: c.TrainerID,
			Scheduled: a.Scheduled,
			Completed: a.Completed,
			Missed:    a.Missed,
		})
	}

	var errs error
	for _, m := range PlanWeeklyPenalties(week, snapshot) {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		if err := j.apply(ctx, m); err != nil {
			report.Failed++
			errs = multierr.Append(errs, fmt.Errorf("client %s: %w", m.Record.ClientID.Hex(), err))
			log.WithField("clientId", m.Record.ClientID.Hex()).WithError(err).Error("failed to apply weekly penalty")
			continue
		}
		report.Processed++
	}

	report.FinishedAt = j.clock.Now()
	report.Err = errs
	log.WithFields(report.Fields()).Info("weekly penalties calculated")
	return report, nil
}

func (j *weeklyPenaltyJob) apply(ctx context.Context, m WeeklyPenaltyMutation) error {
	rec := m.Record
	if err := j.recordRepo.Upsert(ctx, &rec); err != nil {
		return fmt.Errorf("upsert penalty record: %w", err)
	}
	if err := j.userRepo.ApplyWeeklyPenaltyStatus(ctx, rec.ClientID, m.Update); err != nil {
		return fmt.Errorf("update client counters: %w", err)
	}
	return nil
}

// ListPenaltyRecords returns a client's weekly records. Clients see their own,
// trainers those of their clients.
func (j *weeklyPenaltyJob) ListPenaltyRecords(ctx context.Context, actor Actor, clientID primitive.ObjectID) ([]domain.PenaltyRecord, error) {
	if actor.ID != clientID {
		client, err := j.userRepo.GetByID(ctx, clientID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrClientNotFound
			}
			return nil, err
		}
		if !actor.canManageClient(client) {
			return nil, ErrClientNotManaged
		}
	}
	return j.recordRepo.GetByClient(ctx, clientID)
}
