package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
	"github.com/bjelicb/kinetix-backend-sub000/internal/repository"
)

type trainingPlanRepository struct {
	mu    sync.Mutex
	plans map[primitive.ObjectID]*domain.TrainingPlan
}

// NewTrainingPlanRepository returns an empty in-memory plan store.
func NewTrainingPlanRepository() repository.TrainingPlanRepository {
	return &trainingPlanRepository{plans: map[primitive.ObjectID]*domain.TrainingPlan{}}
}

func clonePlan(p *domain.TrainingPlan) *domain.TrainingPlan {
	c := *p
	c.Days = make([]domain.PlanDay, len(p.Days))
	for i, d := range p.Days {
		c.Days[i] = d
		c.Days[i].Exercises = append([]domain.PlanExercise(nil), d.Exercises...)
	}
	c.AssignedClientIDs = append([]primitive.ObjectID{}, p.AssignedClientIDs...)
	return &c
}

func (r *trainingPlanRepository) Create(_ context.Context, plan *domain.TrainingPlan) (primitive.ObjectID, error) {
	if plan.TrainerID == primitive.NilObjectID || plan.Name == "" {
		return primitive.NilObjectID, errors.New("plan requires trainerId and name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	plan.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	if plan.AssignedClientIDs == nil {
		plan.AssignedClientIDs = []primitive.ObjectID{}
	}
	r.plans[plan.ID] = clonePlan(plan)
	return plan.ID, nil
}

func (r *trainingPlanRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clonePlan(p), nil
}

func (r *trainingPlanRepository) GetByTrainerID(_ context.Context, trainerID primitive.ObjectID, includeArchived bool) ([]domain.TrainingPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.TrainingPlan{}
	for _, p := range r.plans {
		if p.TrainerID != trainerID || (p.IsArchived && !includeArchived) {
			continue
		}
		out = append(out, *clonePlan(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *trainingPlanRepository) mutate(id primitive.ObjectID, fn func(p *domain.TrainingPlan)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(p)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *trainingPlanRepository) AddAssignedClient(_ context.Context, planID, clientID primitive.ObjectID) error {
	return r.mutate(planID, func(p *domain.TrainingPlan) {
		if !p.HasClient(clientID) {
			p.AssignedClientIDs = append(p.AssignedClientIDs, clientID)
		}
	})
}

func (r *trainingPlanRepository) RemoveAssignedClient(_ context.Context, planID, clientID primitive.ObjectID) error {
	return r.mutate(planID, func(p *domain.TrainingPlan) {
		kept := p.AssignedClientIDs[:0]
		for _, id := range p.AssignedClientIDs {
			if id != clientID {
				kept = append(kept, id)
			}
		}
		p.AssignedClientIDs = kept
	})
}

func (r *trainingPlanRepository) SetArchived(_ context.Context, planID primitive.ObjectID, archived bool) error {
	return r.mutate(planID, func(p *domain.TrainingPlan) {
		p.IsArchived = archived
	})
}
