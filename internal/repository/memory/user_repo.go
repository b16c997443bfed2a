// Package memory holds map-backed repositories used by the "memory" database
// driver and by service tests. They follow the same atomicity rules as the
// MongoDB implementations: every method is one critical section.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
	"github.com/bjelicb/kinetix-backend-sub000/internal/repository"
)

type userRepository struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*domain.User
}

// NewUserRepository returns an empty in-memory user store.
func NewUserRepository() repository.UserRepository {
	return &userRepository{users: map[primitive.ObjectID]*domain.User{}}
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.ClientIDs = append([]primitive.ObjectID(nil), u.ClientIDs...)
	c.PlanHistory = append([]domain.PlanHistoryEntry(nil), u.PlanHistory...)
	c.PenaltyHistory = make([]domain.PenaltyEntry, len(u.PenaltyHistory))
	for i, p := range u.PenaltyHistory {
		c.PenaltyHistory[i] = p
		if p.PlanID != nil {
			id := *p.PlanID
			c.PenaltyHistory[i].PlanID = &id
		}
	}
	if u.TrainerID != nil {
		id := *u.TrainerID
		c.TrainerID = &id
	}
	if u.CurrentPlanID != nil {
		id := *u.CurrentPlanID
		c.CurrentPlanID = &id
	}
	if u.LastBalanceReset != nil {
		t := *u.LastBalanceReset
		c.LastBalanceReset = &t
	}
	if u.NextWeekRequestedAt != nil {
		t := *u.NextWeekRequestedAt
		c.NextWeekRequestedAt = &t
	}
	return &c
}

func (r *userRepository) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	if user.Email == "" || user.PasswordHash == "" || user.Role == "" {
		return primitive.NilObjectID, errors.New("user email, password hash, and role are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return primitive.NilObjectID, fmt.Errorf("user with this email: %w", repository.ErrDuplicate)
		}
	}
	user.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = cloneUser(user)
	return user.ID, nil
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *userRepository) AddClientIDToTrainer(_ context.Context, trainerID, clientID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.users[trainerID]
	if !ok || t.Role != domain.RoleTrainer {
		return repository.ErrNotFound
	}
	for _, id := range t.ClientIDs {
		if id == clientID {
			return nil
		}
	}
	t.ClientIDs = append(t.ClientIDs, clientID)
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *userRepository) GetClientsByTrainerID(_ context.Context, trainerID primitive.ObjectID) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.User{}
	for _, u := range r.users {
		if u.Role == domain.RoleClient && u.IsManagedBy(trainerID) {
			out = append(out, *cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *userRepository) SetTrainerForClient(_ context.Context, clientID, trainerID primitive.ObjectID) error {
	return r.mutate(clientID, func(u *domain.User) error {
		if u.Role != domain.RoleClient {
			return repository.ErrNotFound
		}
		u.TrainerID = &trainerID
		return nil
	})
}

func (r *userRepository) ListClients(_ context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.User{}
	for _, u := range r.users {
		if u.Role == domain.RoleClient {
			out = append(out, *cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out, nil
}

// mutate runs fn on the stored user under the lock.
func (r *userRepository) mutate(id primitive.ObjectID, fn func(u *domain.User) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if err := fn(u); err != nil {
		return err
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *userRepository) AppendPlanHistory(_ context.Context, clientID primitive.ObjectID, entry domain.PlanHistoryEntry) error {
	return r.mutate(clientID, func(u *domain.User) error {
		if u.Role != domain.RoleClient {
			return repository.ErrNotFound
		}
		kept := u.PlanHistory[:0]
		for _, e := range u.PlanHistory {
			if e.PlanID != entry.PlanID {
				kept = append(kept, e)
			}
		}
		u.PlanHistory = append(kept, entry)
		return nil
	})
}

func (r *userRepository) RemovePlanHistory(_ context.Context, clientID, planID primitive.ObjectID) error {
	return r.mutate(clientID, func(u *domain.User) error {
		kept := u.PlanHistory[:0]
		for _, e := range u.PlanHistory {
			if e.PlanID != planID {
				kept = append(kept, e)
			}
		}
		u.PlanHistory = kept
		return nil
	})
}

func (r *userRepository) ClearCurrentPlanIf(_ context.Context, clientID, planID primitive.ObjectID) (bool, error) {
	cleared := false
	err := r.mutate(clientID, func(u *domain.User) error {
		if u.CurrentPlanID != nil && *u.CurrentPlanID == planID {
			u.CurrentPlanID = nil
			cleared = true
		}
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return cleared, err
}

func (r *userRepository) AdvanceCurrentPlan(_ context.Context, clientID primitive.ObjectID, expected *primitive.ObjectID, next primitive.ObjectID) (bool, error) {
	swapped := false
	err := r.mutate(clientID, func(u *domain.User) error {
		switch {
		case expected == nil && u.CurrentPlanID != nil:
			return nil
		case expected != nil && (u.CurrentPlanID == nil || *u.CurrentPlanID != *expected):
			return nil
		}
		u.CurrentPlanID = &next
		u.NextWeekRequested = false
		u.NextWeekRequestedAt = nil
		swapped = true
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return swapped, err
}

func (r *userRepository) SetNextWeekRequested(_ context.Context, clientID primitive.ObjectID, at time.Time) error {
	return r.mutate(clientID, func(u *domain.User) error {
		u.NextWeekRequested = true
		u.NextWeekRequestedAt = &at
		return nil
	})
}

func (r *userRepository) ApplyPenalty(_ context.Context, clientID primitive.ObjectID, entry domain.PenaltyEntry) (*domain.User, error) {
	var out *domain.User
	err := r.mutate(clientID, func(u *domain.User) error {
		u.Balance += entry.Amount
		u.MonthlyBalance += entry.Amount
		u.PenaltyHistory = append(u.PenaltyHistory, entry)
		out = cloneUser(u)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *userRepository) RemovePenaltiesForPlan(_ context.Context, clientID, planID primitive.ObjectID) ([]domain.PenaltyEntry, error) {
	removed := []domain.PenaltyEntry{}
	err := r.mutate(clientID, func(u *domain.User) error {
		kept := make([]domain.PenaltyEntry, 0, len(u.PenaltyHistory))
		sum := 0.0
		for _, p := range u.PenaltyHistory {
			if p.PlanID != nil && *p.PlanID == planID {
				removed = append(removed, p)
				sum += p.Amount
				continue
			}
			kept = append(kept, p)
		}
		u.PenaltyHistory = kept
		u.Balance = math.Max(0, u.Balance-sum)
		u.MonthlyBalance = math.Max(0, u.MonthlyBalance-sum)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (r *userRepository) ResetBalance(_ context.Context, clientID primitive.ObjectID, at time.Time) (*domain.User, error) {
	var out *domain.User
	err := r.mutate(clientID, func(u *domain.User) error {
		u.Balance = 0
		u.MonthlyBalance = 0
		u.LastBalanceReset = &at
		out = cloneUser(u)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *userRepository) RecordCompletedWorkout(_ context.Context, clientID primitive.ObjectID) error {
	return r.mutate(clientID, func(u *domain.User) error {
		u.TotalWorkoutsCompleted++
		u.CurrentStreak++
		u.ConsecutiveMissedWorkouts = 0
		return nil
	})
}

func (r *userRepository) ApplyWeeklyPenaltyStatus(_ context.Context, clientID primitive.ObjectID, upd repository.WeeklyPenaltyUpdate) error {
	return r.mutate(clientID, func(u *domain.User) error {
		u.IsPenaltyMode = upd.IsPenaltyMode
		if upd.AddConsecutiveMisses > 0 {
			u.ConsecutiveMissedWorkouts += upd.AddConsecutiveMisses
		} else {
			u.ConsecutiveMissedWorkouts = 0
		}
		if upd.ResetStreak {
			u.CurrentStreak = 0
		}
		return nil
	})
}
