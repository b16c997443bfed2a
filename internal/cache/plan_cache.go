// Package cache holds read-through caches in front of repositories.
package cache

import (
	"context"
	"time"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
	"github.com/bjelicb/kinetix-backend-sub000/internal/repository"
)

const defaultPlanCacheBytes = 8 * 1024 * 1024

// PlanRepository caches plan lookups by ID. Plan content never changes after
// assignment, so the only invalidation needed is on the assigned-set and
// archive writes that go through this decorator.
type PlanRepository struct {
	repository.TrainingPlanRepository
	cache  *freecache.Cache
	ttlSec int
}

// NewPlanRepository wraps next with an in-process cache of the given size.
func NewPlanRepository(next repository.TrainingPlanRepository, sizeBytes int, ttl time.Duration) *PlanRepository {
	if sizeBytes <= 0 {
		sizeBytes = defaultPlanCacheBytes
	}
	ttlSec := int(ttl / time.Second)
	if ttlSec <= 0 {
		ttlSec = 60
	}
	return &PlanRepository{
		TrainingPlanRepository: next,
		cache:                  freecache.NewCache(sizeBytes),
		ttlSec:                 ttlSec,
	}
}

func (r *PlanRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error) {
	key := id[:]
	if raw, err := r.cache.Get(key); err == nil {
		var plan domain.TrainingPlan
		if err := bson.Unmarshal(raw, &plan); err == nil {
			return &plan, nil
		}
		log.WithField("planId", id.Hex()).Warn("dropping undecodable cached plan")
		r.cache.Del(key)
	}

	plan, err := r.TrainingPlanRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if raw, err := bson.Marshal(plan); err == nil {
		if err := r.cache.Set(key, raw, r.ttlSec); err != nil {
			// too large for the cache segment; serve uncached
			log.WithError(err).WithField("planId", id.Hex()).Debug("plan not cached")
		}
	}
	return plan, nil
}

func (r *PlanRepository) AddAssignedClient(ctx context.Context, planID, clientID primitive.ObjectID) error {
	defer r.cache.Del(planID[:])
	return r.TrainingPlanRepository.AddAssignedClient(ctx, planID, clientID)
}

func (r *PlanRepository) RemoveAssignedClient(ctx context.Context, planID, clientID primitive.ObjectID) error {
	defer r.cache.Del(planID[:])
	return r.TrainingPlanRepository.RemoveAssignedClient(ctx, planID, clientID)
}

func (r *PlanRepository) SetArchived(ctx context.Context, planID primitive.ObjectID, archived bool) error {
	defer r.cache.Del(planID[:])
	return r.TrainingPlanRepository.SetArchived(ctx, planID, archived)
}

// Stats returns hit and miss counts.
func (r *PlanRepository) Stats() (hits, misses int64) {
	return r.cache.HitCount(), r.cache.MissCount()
}
