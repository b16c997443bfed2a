package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bjelicb/kinetix-backend-sub000/internal/dateutil"
	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
	"github.com/bjelicb/kinetix-backend-sub000/internal/lock"
	"github.com/bjelicb/kinetix-backend-sub000/internal/metrics"
	"github.com/bjelicb/kinetix-backend-sub000/internal/repository"
)

// LogStatus is a trainer's manual correction of a log's outcome.
type LogStatus string

const (
	LogStatusCompleted LogStatus = "completed"
	LogStatusMissed    LogStatus = "missed"
	LogStatusPending   LogStatus = "pending"
)

// WorkoutLogSettings are the tunables of the updater.
type WorkoutLogSettings struct {
	// LogWindowDays is how many days back a workout may still be started or completed.
	LogWindowDays int
	// SuspiciousDuration flags completions logged faster than this after start.
	SuspiciousDuration   time.Duration
	MissedWorkoutPenalty float64
}

type WorkoutLogService interface {
	GenerateWeeklyLogs(ctx context.Context, client *domain.User, plan *domain.TrainingPlan, weekStart time.Time) ([]domain.WorkoutLog, error)
	DeleteUncompletedLogs(ctx context.Context, clientID, planID primitive.ObjectID) (int, error)
	ListLogs(ctx context.Context, clientID primitive.ObjectID, from, to time.Time) ([]domain.WorkoutLog, error)
	StartWorkout(ctx context.Context, clientID primitive.ObjectID, date time.Time) (*domain.WorkoutLog, error)
	CompleteWorkout(ctx context.Context, clientID primitive.ObjectID, date time.Time, exercises []domain.ExerciseLog) (*domain.WorkoutLog, error)
	SetLogStatus(ctx context.Context, actor Actor, logID primitive.ObjectID, status LogStatus) (*domain.WorkoutLog, error)
}

type workoutLogService struct {
	logRepo  repository.WorkoutLogRepository
	userRepo repository.UserRepository
	ledger   LedgerService
	jobLock  lock.Locker
	clock    dateutil.Clock
	metrics  *metrics.Manager
	settings WorkoutLogSettings
	log      *logrus.Entry
}

func NewWorkoutLogService(
	logRepo repository.WorkoutLogRepository,
	userRepo repository.UserRepository,
	ledger LedgerService,
	jobLock lock.Locker,
	clock dateutil.Clock,
	m *metrics.Manager,
	settings WorkoutLogSettings,
) WorkoutLogService {
	if jobLock == nil {
		jobLock = lock.NewLocalLocker()
	}
	return &workoutLogService{
		logRepo:  logRepo,
		userRepo: userRepo,
		ledger:   ledger,
		jobLock:  jobLock,
		clock:    clock,
		metrics:  m,
		settings: settings,
		log:      logrus.WithField("component", "workout-logs"),
	}
}

// GenerateWeeklyLogs materialises one log per day for the seven days starting
// at weekStart. Running it twice for the same week leaves exactly seven logs:
// existing days are rewritten from the plan in place (completion state kept)
// and only the missing days are inserted.
func (s *workoutLogService) GenerateWeeklyLogs(ctx context.Context, client *domain.User, plan *domain.TrainingPlan, weekStart time.Time) ([]domain.WorkoutLog, error) {
	if client == nil || client.ID.IsZero() {
		return nil, invalidInput("client is required")
	}
	if plan == nil || plan.ID.IsZero() {
		return nil, invalidInput("plan is required")
	}
	if err := plan.ValidateDays(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if client.TrainerID == nil {
		return nil, ErrClientWithoutTrainer
	}

	start := dateutil.StartOfDay(weekStart)
	end := dateutil.AddDays(start, domain.DaysPerWeek)
	fields := logrus.Fields{"clientId": client.ID.Hex(), "planId": plan.ID.Hex(), "weekStart": start.Format(dateutil.DayLayout)}

	existing, err := s.logRepo.GetByClientBetween(ctx, client.ID, start, end)
	if err != nil {
		return nil, err
	}
	byDay := make(map[time.Time]domain.WorkoutLog, len(existing))
	for _, l := range existing {
		byDay[dateutil.StartOfDay(l.WorkoutDate)] = l
	}

	var toInsert []domain.WorkoutLog
	for offset := 0; offset < domain.DaysPerWeek; offset++ {
		day := dateutil.AddDays(start, offset)
		slot := plan.Day(offset + 1)

		log := domain.WorkoutLog{
			ClientID:    client.ID,
			TrainerID:   plan.TrainerID,
			PlanID:      plan.ID,
			WorkoutDate: day,
			DayIndex:    offset + 1,
			WorkoutName: slot.Name,
			IsRestDay:   slot.IsRestDay,
			Exercises:   domain.TemplateFromPlanDay(slot),
		}

		prev, ok := byDay[day]
		if !ok {
			toInsert = append(toInsert, log)
			continue
		}
		log.ID = prev.ID
		if err := s.logRepo.UpdateTemplate(ctx, &log); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				// Another log already owns the normalised date; it wins.
				s.log.WithFields(fields).WithField("logId", prev.ID.Hex()).Warn("duplicate day while rewriting log, keeping existing")
				continue
			}
			return nil, err
		}
	}

	if len(toInsert) > 0 {
		inserted, err := s.logRepo.InsertMany(ctx, toInsert)
		if err != nil && !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		if err != nil {
			// A concurrent generator wrote some of the same days first.
			s.log.WithFields(fields).WithError(err).Warn("some workout logs already existed")
		}
		s.metrics.CounterLogsGenerated.Add(float64(inserted))
	}

	return s.logRepo.GetByClientBetween(ctx, client.ID, start, end)
}

// DeleteUncompletedLogs removes the pair's logs that have no outcome yet.
func (s *workoutLogService) DeleteUncompletedLogs(ctx context.Context, clientID, planID primitive.ObjectID) (int, error) {
	return s.logRepo.DeletePendingForPlan(ctx, clientID, planID)
}

func (s *workoutLogService) ListLogs(ctx context.Context, clientID primitive.ObjectID, from, to time.Time) ([]domain.WorkoutLog, error) {
	from, to = dateutil.StartOfDay(from), dateutil.StartOfDay(to)
	if !to.After(from) {
		return nil, invalidInput("'to' must be after 'from'")
	}
	return s.logRepo.GetByClientBetween(ctx, clientID, from, to)
}

// loggableLog loads the client's log for date, enforcing the logging window.
func (s *workoutLogService) loggableLog(ctx context.Context, clientID primitive.ObjectID, date time.Time) (*domain.WorkoutLog, error) {
	day := dateutil.StartOfDay(date)
	today := dateutil.StartOfDay(s.clock.Now())
	if day.After(today) || day.Before(dateutil.AddDays(today, -s.settings.LogWindowDays)) {
		return nil, ErrWorkoutDateOutsideWindow
	}

	log, err := s.logRepo.GetByClientAndDate(ctx, clientID, day)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutLogNotFound
		}
		return nil, err
	}
	if log.IsRestDay {
		return nil, ErrRestDay
	}
	return log, nil
}

// StartWorkout stamps the start time. Restarting keeps the first stamp.
func (s *workoutLogService) StartWorkout(ctx context.Context, clientID primitive.ObjectID, date time.Time) (*domain.WorkoutLog, error) {
	log, err := s.loggableLog(ctx, clientID, date)
	if err != nil {
		return nil, err
	}
	if log.IsCompleted {
		return nil, fmt.Errorf("%w: workout already completed", ErrInvalidState)
	}
	if log.StartedAt != nil {
		return log, nil
	}
	now := s.clock.Now()
	log.StartedAt = &now
	if err := s.logRepo.Update(ctx, log); err != nil {
		return nil, err
	}
	return log, nil
}

// CompleteWorkout records actual performance and marks the day done. A log the
// sweeper already marked missed can still be completed inside the window; the
// missed-workout charge is not refunded.
func (s *workoutLogService) CompleteWorkout(ctx context.Context, clientID primitive.ObjectID, date time.Time, exercises []domain.ExerciseLog) (*domain.WorkoutLog, error) {
	log, err := s.loggableLog(ctx, clientID, date)
	if err != nil {
		return nil, err
	}
	if log.IsCompleted {
		return nil, fmt.Errorf("%w: workout already completed", ErrInvalidState)
	}

	now := s.clock.Now()
	log.Exercises = mergeExercisePerformance(log.Exercises, exercises)
	log.IsCompleted = true
	log.IsMissed = false
	log.CompletedAt = &now
	log.IsSuspicious = log.StartedAt != nil && now.Sub(*log.StartedAt) < s.settings.SuspiciousDuration

	if err := s.logRepo.Update(ctx, log); err != nil {
		return nil, err
	}

	fields := logrus.Fields{"clientId": clientID.Hex(), "logId": log.ID.Hex()}
	if log.IsSuspicious {
		s.log.WithFields(fields).Warn("workout completed suspiciously fast")
	}
	if err := s.userRepo.RecordCompletedWorkout(ctx, clientID); err != nil {
		// Counters are secondary; the completion itself stands.
		s.log.WithFields(fields).WithError(err).Error("failed to update completion counters")
	}
	return log, nil
}

// mergeExercisePerformance copies reported results onto the planned template.
// Entries are matched by name, falling back to position.
func mergeExercisePerformance(planned, reported []domain.ExerciseLog) []domain.ExerciseLog {
	if len(planned) == 0 {
		return reported
	}
	out := make([]domain.ExerciseLog, len(planned))
	copy(out, planned)

	used := make([]bool, len(reported))
	apply := func(dst *domain.ExerciseLog, src domain.ExerciseLog) {
		dst.ActualSets = src.ActualSets
		dst.ActualReps = src.ActualReps
		dst.WeightKg = src.WeightKg
		dst.IsCompleted = src.IsCompleted
		dst.Notes = src.Notes
	}
	for i := range out {
		for j, r := range reported {
			if !used[j] && r.Name != "" && r.Name == out[i].Name {
				apply(&out[i], r)
				used[j] = true
				break
			}
		}
	}
	for j, r := range reported {
		if used[j] {
			continue
		}
		if r.Name == "" && j < len(out) {
			apply(&out[j], r)
			continue
		}
		if r.Name != "" {
			// Unplanned extra exercise.
			out = append(out, r)
		}
	}
	return out
}

// SetLogStatus lets a trainer correct the outcome of a log. Switching to missed
// charges the missed-workout penalty once; a failed charge is logged and the
// status change still stands. Switching away from missed never refunds.
func (s *workoutLogService) SetLogStatus(ctx context.Context, actor Actor, logID primitive.ObjectID, status LogStatus) (*domain.WorkoutLog, error) {
	log, err := s.getLog(ctx, logID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && log.TrainerID != actor.ID {
		return nil, ErrLogAccessDenied
	}
	if log.IsRestDay {
		return nil, ErrRestDay
	}

	now := s.clock.Now()
	switch status {
	case LogStatusMissed:
		return s.setMissed(ctx, log)
	case LogStatusCompleted:
		log.IsCompleted, log.IsMissed = true, false
		if log.CompletedAt == nil {
			log.CompletedAt = &now
		}
	case LogStatusPending:
		log.IsCompleted, log.IsMissed = false, false
		log.CompletedAt = nil
	default:
		return nil, invalidInput("unknown status %q", status)
	}

	if err := s.logRepo.Update(ctx, log); err != nil {
		return nil, err
	}
	return log, nil
}

// setMissed flips the log under the sweep's job lock, so a log the sweeper has
// charged but not yet flipped is never charged again here.
func (s *workoutLogService) setMissed(ctx context.Context, log *domain.WorkoutLog) (*domain.WorkoutLog, error) {
	release, err := s.jobLock.Acquire(ctx, JobMissedWorkouts, time.Minute)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, ErrMissedSweepRunning
		}
		return nil, fmt.Errorf("acquire %s lock: %w", JobMissedWorkouts, err)
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			s.log.WithError(err).Warn("failed to release job lock")
		}
	}()

	flipped, err := s.logRepo.SetMissed(ctx, log.ID)
	if err != nil {
		return nil, err
	}
	if flipped && s.settings.MissedWorkoutPenalty > 0 {
		planID := log.PlanID
		if _, err := s.ledger.ApplyPenalty(ctx, log.ClientID, s.settings.MissedWorkoutPenalty, ReasonMissedWorkout, &planID); err != nil {
			s.log.WithFields(logrus.Fields{"clientId": log.ClientID.Hex(), "logId": log.ID.Hex()}).
				WithError(err).Error("failed to charge missed workout after manual correction")
		}
	}
	return s.getLog(ctx, log.ID)
}

func (s *workoutLogService) getLog(ctx context.Context, id primitive.ObjectID) (*domain.WorkoutLog, error) {
	log, err := s.logRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutLogNotFound
		}
		return nil, err
	}
	return log, nil
}
