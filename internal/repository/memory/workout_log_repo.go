package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
	"github.com/bjelicb/kinetix-backend-sub000/internal/repository"
)

type dayKey struct {
	clientID primitive.ObjectID
	day      int64
}

type workoutLogRepository struct {
	mu    sync.Mutex
	logs  map[primitive.ObjectID]*domain.WorkoutLog
	byDay map[dayKey]primitive.ObjectID // unique (clientId, workoutDate)
}

// NewWorkoutLogRepository returns an empty in-memory workout log store.
func NewWorkoutLogRepository() repository.WorkoutLogRepository {
	return &workoutLogRepository{
		logs:  map[primitive.ObjectID]*domain.WorkoutLog{},
		byDay: map[dayKey]primitive.ObjectID{},
	}
}

func keyOf(l *domain.WorkoutLog) dayKey {
	return dayKey{clientID: l.ClientID, day: l.WorkoutDate.UnixNano()}
}

func cloneLog(l *domain.WorkoutLog) *domain.WorkoutLog {
	c := *l
	c.Exercises = make([]domain.ExerciseLog, len(l.Exercises))
	for i, e := range l.Exercises {
		c.Exercises[i] = e
		c.Exercises[i].ActualReps = append([]int(nil), e.ActualReps...)
	}
	if l.StartedAt != nil {
		t := *l.StartedAt
		c.StartedAt = &t
	}
	if l.CompletedAt != nil {
		t := *l.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func (r *workoutLogRepository) InsertMany(_ context.Context, logs []domain.WorkoutLog) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	inserted, dups := 0, 0
	for i := range logs {
		l := &logs[i]
		if _, taken := r.byDay[keyOf(l)]; taken {
			dups++
			continue
		}
		if l.ID.IsZero() {
			l.ID = primitive.NewObjectID()
		}
		l.CreatedAt = now
		l.UpdatedAt = now
		if l.Exercises == nil {
			l.Exercises = []domain.ExerciseLog{}
		}
		r.logs[l.ID] = cloneLog(l)
		r.byDay[keyOf(l)] = l.ID
		inserted++
	}
	if dups > 0 {
		return inserted, fmt.Errorf("%d of %d workout logs: %w", dups, len(logs), repository.ErrDuplicate)
	}
	return inserted, nil
}

func (r *workoutLogRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.WorkoutLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneLog(l), nil
}

func (r *workoutLogRepository) GetByClientAndDate(_ context.Context, clientID primitive.ObjectID, day time.Time) (*domain.WorkoutLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byDay[dayKey{clientID: clientID, day: day.UnixNano()}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneLog(r.logs[id]), nil
}

func (r *workoutLogRepository) filter(keep func(l *domain.WorkoutLog) bool) []domain.WorkoutLog {
	out := []domain.WorkoutLog{}
	for _, l := range r.logs {
		if keep(l) {
			out = append(out, *cloneLog(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkoutDate.Before(out[j].WorkoutDate) })
	return out
}

func (r *workoutLogRepository) GetByClientBetween(_ context.Context, clientID primitive.ObjectID, from, to time.Time) ([]domain.WorkoutLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(l *domain.WorkoutLog) bool {
		return l.ClientID == clientID && !l.WorkoutDate.Before(from) && l.WorkoutDate.Before(to)
	}), nil
}

func (r *workoutLogRepository) GetByClientAndPlan(_ context.Context, clientID, planID primitive.ObjectID) ([]domain.WorkoutLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(l *domain.WorkoutLog) bool {
		return l.ClientID == clientID && l.PlanID == planID
	}), nil
}

func (r *workoutLogRepository) UpdateTemplate(_ context.Context, log *domain.WorkoutLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.logs[log.ID]
	if !ok {
		return repository.ErrNotFound
	}
	oldKey := keyOf(stored)
	newKey := dayKey{clientID: stored.ClientID, day: log.WorkoutDate.UnixNano()}
	if newKey != oldKey {
		if _, taken := r.byDay[newKey]; taken {
			return fmt.Errorf("workout log %s: %w", log.ID.Hex(), repository.ErrDuplicate)
		}
		delete(r.byDay, oldKey)
		r.byDay[newKey] = stored.ID
	}
	stored.PlanID = log.PlanID
	stored.TrainerID = log.TrainerID
	stored.WorkoutDate = log.WorkoutDate
	stored.DayIndex = log.DayIndex
	stored.WorkoutName = log.WorkoutName
	stored.IsRestDay = log.IsRestDay
	stored.Exercises = cloneLog(log).Exercises
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *workoutLogRepository) Update(_ context.Context, log *domain.WorkoutLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.logs[log.ID]
	if !ok {
		return repository.ErrNotFound
	}
	c := cloneLog(log)
	stored.Exercises = c.Exercises
	stored.IsCompleted = c.IsCompleted
	stored.IsMissed = c.IsMissed
	stored.StartedAt = c.StartedAt
	stored.CompletedAt = c.CompletedAt
	stored.IsSuspicious = c.IsSuspicious
	stored.UpdatedAt = time.Now().UTC()
	log.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *workoutLogRepository) DeletePendingForPlan(_ context.Context, clientID, planID primitive.ObjectID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, l := range r.logs {
		if l.ClientID == clientID && l.PlanID == planID && l.IsPending() {
			delete(r.byDay, keyOf(l))
			delete(r.logs, id)
			n++
		}
	}
	return n, nil
}

func (r *workoutLogRepository) FindOverdue(_ context.Context, day time.Time) ([]domain.WorkoutLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(l *domain.WorkoutLog) bool {
		return l.WorkoutDate.Before(day) && l.IsPending() && !l.IsRestDay
	}), nil
}

func (r *workoutLogRepository) MarkMissed(_ context.Context, ids []primitive.ObjectID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	now := time.Now().UTC()
	for _, id := range ids {
		l, ok := r.logs[id]
		if !ok || !l.IsPending() {
			continue
		}
		l.IsMissed = true
		l.UpdatedAt = now
		n++
	}
	return n, nil
}

func (r *workoutLogRepository) SetMissed(_ context.Context, id primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if l.IsMissed {
		return false, nil
	}
	l.IsMissed, l.IsCompleted, l.CompletedAt = true, false, nil
	l.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *workoutLogRepository) CountByClientBetween(_ context.Context, from, to time.Time) ([]repository.WeeklyAdherence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byClient := map[primitive.ObjectID]*repository.WeeklyAdherence{}
	for _, l := range r.logs {
		if l.IsRestDay || l.WorkoutDate.Before(from) || !l.WorkoutDate.Before(to) {
			continue
		}
		a, ok := byClient[l.ClientID]
		if !ok {
			a = &repository.WeeklyAdherence{ClientID: l.ClientID}
			byClient[l.ClientID] = a
		}
		a.Scheduled++
		if l.IsCompleted {
			a.Completed++
		}
		if l.IsMissed {
			a.Missed++
		}
	}
	out := make([]repository.WeeklyAdherence, 0, len(byClient))
	for _, a := range byClient {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID.Hex() < out[j].ClientID.Hex() })
	return out, nil
}
