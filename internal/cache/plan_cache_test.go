package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
	"github.com/bjelicb/kinetix-backend-sub000/internal/repository"
	"github.com/bjelicb/kinetix-backend-sub000/internal/repository/memory"
)

type countingPlanRepo struct {
	repository.TrainingPlanRepository
	gets int
}

func (c *countingPlanRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error) {
	c.gets++
	return c.TrainingPlanRepository.GetByID(ctx, id)
}

func TestPlanRepository_CachesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	inner := &countingPlanRepo{TrainingPlanRepository: memory.NewTrainingPlanRepository()}
	repo := NewPlanRepository(inner, 0, time.Minute)

	planID, err := repo.Create(ctx, &domain.TrainingPlan{
		TrainerID:  primitive.NewObjectID(),
		Name:       "Week A",
		WeeklyCost: 10,
		Days:       []domain.PlanDay{{DayIndex: 1, Name: "Push", Exercises: []domain.PlanExercise{{Name: "Bench", Sets: 3, Reps: "8"}}}},
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		plan, err := repo.GetByID(ctx, planID)
		require.NoError(t, err)
		assert.Equal(t, "Week A", plan.Name)
		require.Len(t, plan.Days, 1)
		assert.Equal(t, "Bench", plan.Days[0].Exercises[0].Name)
	}
	assert.Equal(t, 1, inner.gets)

	clientID := primitive.NewObjectID()
	require.NoError(t, repo.AddAssignedClient(ctx, planID, clientID))

	plan, err := repo.GetByID(ctx, planID)
	require.NoError(t, err)
	assert.True(t, plan.HasClient(clientID))
	assert.Equal(t, 2, inner.gets)

	hits, misses := repo.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(2), misses)
}

func TestPlanRepository_NotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	inner := &countingPlanRepo{TrainingPlanRepository: memory.NewTrainingPlanRepository()}
	repo := NewPlanRepository(inner, 0, time.Minute)

	id := primitive.NewObjectID()
	_, err := repo.GetByID(ctx, id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetByID(ctx, id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, 2, inner.gets)
}
