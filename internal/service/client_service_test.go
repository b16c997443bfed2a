package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bjelicb/kinetix-backend-sub000/internal/dateutil"
	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
	"github.com/bjelicb/kinetix-backend-sub000/internal/metrics"
)

func TestRequestNextWeek_ChargesQueuedPlan(t *testing.T) {
	f := newFixture(t, monday)
	trainer := f.addUser(t, domain.RoleTrainer)
	trainerID := trainer.ID
	client := &domain.User{
		Name:           "client",
		Email:          "tab@example.com",
		PasswordHash:   "hash",
		Role:           domain.RoleClient,
		TrainerID:      &trainerID,
		Balance:        10,
		MonthlyBalance: 5,
	}
	_, err := f.users.Create(f.ctx, client)
	require.NoError(t, err)

	next := f.createPlan(t, trainer, 5, workoutDays(1, 2, 3))
	f.assign(t, trainer, next, client, dateutil.AddDays(monday, 7))

	res, err := f.client.RequestNextWeek(f.ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, next.ID, res.CurrentPlanID)
	assert.Equal(t, 5.0, res.Charged)
	assert.Equal(t, 15.0, res.Balance)
	assert.Equal(t, 10.0, res.MonthlyBalance)

	reloaded := f.reload(t, client.ID)
	require.NotNil(t, reloaded.CurrentPlanID)
	assert.Equal(t, next.ID, *reloaded.CurrentPlanID)
	require.Len(t, reloaded.PenaltyHistory, 1)
	assert.Equal(t, ReasonWeeklyPlanCost, reloaded.PenaltyHistory[0].Reason)
	require.NotNil(t, reloaded.PenaltyHistory[0].PlanID)
	assert.Equal(t, next.ID, *reloaded.PenaltyHistory[0].PlanID)
}

func TestCanUnlockNextWeek(t *testing.T) {
	f := newFixture(t, monday)
	trainer := f.addUser(t, domain.RoleTrainer)
	client := f.addClientOf(t, trainer)
	plan := f.createPlan(t, trainer, 0, workoutDays(1, 3))

	ok, err := f.client.CanUnlockNextWeek(f.ctx, client.ID)
	require.NoError(t, err)
	assert.True(t, ok, "no current plan")

	f.assign(t, trainer, plan, client, monday)
	_, err = f.client.RequestNextWeek(f.ctx, client.ID)
	require.NoError(t, err)

	ok, err = f.client.CanUnlockNextWeek(f.ctx, client.ID)
	require.NoError(t, err)
	assert.False(t, ok, "last workout day is still ahead")

	f.clock.T = dateutil.AddDays(monday, 2)
	ok, err = f.client.CanUnlockNextWeek(f.ctx, client.ID)
	require.NoError(t, err)
	assert.False(t, ok, "workouts not completed")

	f.completeAll(t, client.ID, monday)
	ok, err = f.client.CanUnlockNextWeek(f.ctx, client.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.client.CanUnlockNextWeek(f.ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestCanUnlockNextWeek_NoLogsBlocks(t *testing.T) {
	f := newFixture(t, monday)
	trainer := f.addUser(t, domain.RoleTrainer)
	client := f.addClientOf(t, trainer)
	plan := f.createPlan(t, trainer, 0, workoutDays(1))
	f.assign(t, trainer, plan, client, monday)
	_, err := f.client.RequestNextWeek(f.ctx, client.ID)
	require.NoError(t, err)

	f.clock.T = dateutil.AddDays(monday, 3)
	_, err = f.logSvc.DeleteUncompletedLogs(f.ctx, client.ID, plan.ID)
	require.NoError(t, err)

	ok, err := f.client.CanUnlockNextWeek(f.ctx, client.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanUnlockNextWeek_StaleMetadataAllows(t *testing.T) {
	f := newFixture(t, monday)
	trainer := f.addUser(t, domain.RoleTrainer)
	trainerID := trainer.ID

	// Pointer without a history entry.
	orphan := primitive.NewObjectID()
	c1 := &domain.User{Email: "c1@example.com", PasswordHash: "h", Role: domain.RoleClient, TrainerID: &trainerID, CurrentPlanID: &orphan}
	_, err := f.users.Create(f.ctx, c1)
	require.NoError(t, err)
	ok, err := f.client.CanUnlockNextWeek(f.ctx, c1.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// History entry whose plan no longer exists.
	gone := primitive.NewObjectID()
	c2 := &domain.User{
		Email: "c2@example.com", PasswordHash: "h", Role: domain.RoleClient, TrainerID: &trainerID,
		CurrentPlanID: &gone,
		PlanHistory: []domain.PlanHistoryEntry{{
			PlanID: gone, PlanStartDate: monday, PlanEndDate: dateutil.AddDays(monday, 7), AssignedAt: monday, TrainerID: trainerID,
		}},
	}
	_, err = f.users.Create(f.ctx, c2)
	require.NoError(t, err)
	ok, err = f.client.CanUnlockNextWeek(f.ctx, c2.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRequestNextWeek_Blocked(t *testing.T) {
	f := newFixture(t, monday)
	trainer := f.addUser(t, domain.RoleTrainer)
	client := f.addClientOf(t, trainer)
	plan := f.createPlan(t, trainer, 3, workoutDays(1))
	next := f.createPlan(t, trainer, 3, workoutDays(1))
	f.assign(t, trainer, plan, client, monday)
	f.assign(t, trainer, next, client, dateutil.AddDays(monday, 7))

	_, err := f.client.RequestNextWeek(f.ctx, client.ID)
	require.NoError(t, err)

	_, err = f.client.RequestNextWeek(f.ctx, client.ID)
	assert.ErrorIs(t, err, ErrWeekNotCompleted)
	assert.Equal(t, 3.0, f.reload(t, client.ID).Balance, "only the first week was charged")
}

func TestRequestNextWeek_NotAssignedRaisesFlag(t *testing.T) {
	f := newFixture(t, monday)
	trainer := f.addUser(t, domain.RoleTrainer)
	client := f.addClientOf(t, trainer)
	plan := f.createPlan(t, trainer, 0, workoutDays(1))
	f.assign(t, trainer, plan, client, monday)
	_, err := f.client.RequestNextWeek(f.ctx, client.ID)
	require.NoError(t, err)
	f.completeAll(t, client.ID, monday)

	_, err = f.client.RequestNextWeek(f.ctx, client.ID)
	assert.ErrorIs(t, err, ErrNextPlanNotAssigned)

	reloaded := f.reload(t, client.ID)
	assert.True(t, reloaded.NextWeekRequested)
	require.NotNil(t, reloaded.NextWeekRequestedAt)

	pending, err := f.trainer.ListPendingNextWeekRequests(f.ctx, trainer.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, client.ID, pending[0].ClientID)

	status, err := f.client.GetUnlockStatus(f.ctx, client.ID)
	require.NoError(t, err)
	assert.True(t, status.CanUnlock)
	assert.False(t, status.NextPlanAssigned)
	assert.True(t, status.NextWeekRequested)

	// Assigning and unlocking clears the request.
	next := f.createPlan(t, trainer, 0, workoutDays(1))
	f.assign(t, trainer, next, client, dateutil.AddDays(monday, 7))
	_, err = f.client.RequestNextWeek(f.ctx, client.ID)
	require.NoError(t, err)
	assert.False(t, f.reload(t, client.ID).NextWeekRequested)

	pending, err = f.trainer.ListPendingNextWeekRequests(f.ctx, trainer.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

type failingLedger struct {
	LedgerService
}

func (failingLedger) ApplyPenalty(context.Context, primitive.ObjectID, float64, string, *primitive.ObjectID) (*domain.User, error) {
	return nil, errors.New("ledger unavailable")
}

func TestRequestNextWeek_FailedChargeRestoresState(t *testing.T) {
	f := newFixture(t, monday)
	trainer := f.addUser(t, domain.RoleTrainer)
	client := f.addClientOf(t, trainer)
	plan := f.createPlan(t, trainer, 0, workoutDays(1))
	f.assign(t, trainer, plan, client, monday)
	_, err := f.client.RequestNextWeek(f.ctx, client.ID)
	require.NoError(t, err)
	f.completeAll(t, client.ID, monday)

	_, err = f.client.RequestNextWeek(f.ctx, client.ID)
	require.ErrorIs(t, err, ErrNextPlanNotAssigned)
	requestedAt := f.reload(t, client.ID).NextWeekRequestedAt
	require.NotNil(t, requestedAt)

	next := f.createPlan(t, trainer, 5, workoutDays(1))
	f.assign(t, trainer, next, client, dateutil.AddDays(monday, 7))

	svc := NewClientService(f.users, f.plans, f.logs, failingLedger{f.ledger}, f.clock, metrics.NewTestManager())
	_, err = svc.RequestNextWeek(f.ctx, client.ID)
	require.ErrorContains(t, err, "ledger unavailable")

	reloaded := f.reload(t, client.ID)
	require.NotNil(t, reloaded.CurrentPlanID)
	assert.Equal(t, plan.ID, *reloaded.CurrentPlanID)
	assert.True(t, reloaded.NextWeekRequested, "request survives a failed charge")
	require.NotNil(t, reloaded.NextWeekRequestedAt)
	assert.True(t, requestedAt.Equal(*reloaded.NextWeekRequestedAt))
	assert.Zero(t, reloaded.Balance)
}

func TestRequestNextWeek_ConcurrentRequestsChargeOnce(t *testing.T) {
	f := newFixture(t, monday)
	trainer := f.addUser(t, domain.RoleTrainer)
	client := f.addClientOf(t, trainer)
	next := f.createPlan(t, trainer, 7, workoutDays(1))
	f.assign(t, trainer, next, client, dateutil.AddDays(monday, 7))

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.client.RequestNextWeek(f.ctx, client.ID); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	reloaded := f.reload(t, client.ID)
	assert.Equal(t, 7.0, reloaded.Balance)
	assert.Len(t, reloaded.PenaltyHistory, 1)
}
