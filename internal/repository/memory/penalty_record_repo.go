package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
	"github.com/bjelicb/kinetix-backend-sub000/internal/repository"
)

type penaltyRecordRepository struct {
	mu      sync.Mutex
	records map[dayKey]*domain.PenaltyRecord
}

// NewPenaltyRecordRepository returns an empty in-memory penalty record store.
func NewPenaltyRecordRepository() repository.PenaltyRecordRepository {
	return &penaltyRecordRepository{records: map[dayKey]*domain.PenaltyRecord{}}
}

func (r *penaltyRecordRepository) Upsert(_ context.Context, rec *domain.PenaltyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	k := dayKey{clientID: rec.ClientID, day: rec.WeekStart.UnixNano()}
	if existing, ok := r.records[k]; ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	} else {
		rec.ID = primitive.NewObjectID()
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	c := *rec
	r.records[k] = &c
	return nil
}

func (r *penaltyRecordRepository) GetByClient(_ context.Context, clientID primitive.ObjectID) ([]domain.PenaltyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.PenaltyRecord{}
	for k, rec := range r.records {
		if k.clientID == clientID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart.After(out[j].WeekStart) })
	return out, nil
}

func (r *penaltyRecordRepository) GetByClientAndWeek(_ context.Context, clientID primitive.ObjectID, weekStart time.Time) (*domain.PenaltyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[dayKey{clientID: clientID, day: weekStart.UnixNano()}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *rec
	return &c, nil
}
