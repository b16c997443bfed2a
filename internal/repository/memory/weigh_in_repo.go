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

type weighInRepository struct {
	mu       sync.Mutex
	weighIns map[dayKey]*domain.WeighIn
}

// NewWeighInRepository returns an empty in-memory weigh-in store.
func NewWeighInRepository() repository.WeighInRepository {
	return &weighInRepository{weighIns: map[dayKey]*domain.WeighIn{}}
}

func (r *weighInRepository) Create(_ context.Context, w *domain.WeighIn) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := dayKey{clientID: w.ClientID, day: w.Date.UnixNano()}
	if _, taken := r.weighIns[k]; taken {
		return primitive.NilObjectID, fmt.Errorf("weigh-in for %s: %w", w.Date.Format("2006-01-02"), repository.ErrDuplicate)
	}
	w.ID = primitive.NewObjectID()
	w.CreatedAt = time.Now().UTC()
	c := *w
	r.weighIns[k] = &c
	return w.ID, nil
}

func (r *weighInRepository) sorted(clientID primitive.ObjectID) []domain.WeighIn {
	out := []domain.WeighIn{}
	for k, w := range r.weighIns {
		if k.clientID == clientID {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

func (r *weighInRepository) GetLatestBefore(_ context.Context, clientID primitive.ObjectID, day time.Time) (*domain.WeighIn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.sorted(clientID) {
		if w.Date.Before(day) {
			w := w
			return &w, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *weighInRepository) GetByClient(_ context.Context, clientID primitive.ObjectID, limit int) ([]domain.WeighIn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sorted(clientID)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
