package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bjelicb/kinetix-backend-sub000/internal/dateutil"
	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
)

func TestCreatePlan_Validation(t *testing.T) {
	f := newFixture(t, monday)
	trainer := f.addUser(t, domain.RoleTrainer)
	actor := Actor{ID: trainer.ID, Role: trainer.Role}

	tests := []struct {
		name string
		in   CreatePlanInput
	}{
		{"missing name", CreatePlanInput{Name: "  ", Days: workoutDays(1)}},
		{"negative cost", CreatePlanInput{Name: "A", Days: workoutDays(1), WeeklyCost: -1}},
		{"no days", CreatePlanInput{Name: "A"}},
		{"day index out of range", CreatePlanInput{Name: "A", Days: []domain.PlanDay{{DayIndex: 8}}}},
		{"duplicate day index", CreatePlanInput{Name: "A", Days: []domain.PlanDay{{DayIndex: 2}, {DayIndex: 2}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.planSvc.CreatePlan(f.ctx, actor, tt.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestAssignPlan_GeneratesWeekWithoutMovingPointer(t *testing.T) {
	f := newFixture(t, monday)
	trainer := f.addUser(t, domain.RoleTrainer)
	client := f.addClientOf(t, trainer)
	plan := f.createPlan(t, trainer, 5, workoutDays(1, 3, 5))

	res, err := f.planSvc.AssignPlan(f.ctx, Actor{ID: trainer.ID, Role: trainer.Role}, plan.ID, []primitive.ObjectID{client.ID}, monday.Add(15*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, monday, res.StartDate)
	assert.Equal(t, dateutil.AddDays(monday, 7), res.EndDate)
	require.Len(t, res.Clients, 1)
	assert.Equal(t, 7, res.Clients[0].LogsGenerated)

	logs, err := f.logs.GetByClientBetween(f.ctx, client.ID, monday, dateutil.AddDays(monday, 7))
	require.NoError(t, err)
	require.Len(t, logs, 7)
	for i, l := range logs {
		assert.Equal(t, i+1, l.DayIndex)
		assert.Equal(t, dateutil.AddDays(monday, i), l.WorkoutDate)
		if l.IsRestDay {
			assert.Empty(t, l.Exercises)
		} else {
			assert.Len(t, l.Exercises, 2)
		}
	}

	reloaded := f.reload(t, client.ID)
	assert.Nil(t, reloaded.CurrentPlanID)
	require.Len(t, reloaded.PlanHistory, 1)
	assert.Equal(t, plan.ID, reloaded.PlanHistory[0].PlanID)
	assert.Equal(t, trainer.ID, reloaded.PlanHistory[0].TrainerID)

	stored, err := f.plans.GetByID(f.ctx, plan.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasClient(client.ID))
	assert.Zero(t, reloaded.Balance, "assignment must not charge")
}

func TestAssignPlan_Idempotent(t *testing.T) {
	f := newFixture(t, monday)
	trainer := f.addUser(t, domain.RoleTrainer)
	client := f.addClientOf(t, trainer)
	plan := f.createPlan(t, trainer, 0, workoutDays(1, 2))

	f.assign(t, trainer, plan, client, monday)
	f.completeAll(t, client.ID, monday)
	f.assign(t, trainer, plan, client, monday)

	logs, err := f.logs.GetByClientBetween(f.ctx, client.ID, monday, dateutil.AddDays(monday, 7))
	require.NoError(t, err)
	assert.Len(t, logs, 7)
	assert.True(t, logs[0].IsCompleted, "regeneration keeps completion state")
	assert.Len(t, f.reload(t, client.ID).PlanHistory, 1)
}

func TestAssignPlan_Authorization(t *testing.T) {
	f := newFixture(t, monday)
	owner := f.addUser(t, domain.RoleTrainer)
	other := f.addUser(t, domain.RoleTrainer)
	admin := f.addUser(t, domain.RoleAdmin)
	client := f.addClientOf(t, owner)
	foreignClient := f.addClientOf(t, other)
	plan := f.createPlan(t, owner, 0, workoutDays(1))

	_, err := f.planSvc.AssignPlan(f.ctx, Actor{ID: other.ID, Role: other.Role}, plan.ID, []primitive.ObjectID{client.ID}, monday)
	assert.ErrorIs(t, err, ErrPlanAccessDenied)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.planSvc.AssignPlan(f.ctx, Actor{ID: owner.ID, Role: owner.Role}, plan.ID, []primitive.ObjectID{foreignClient.ID}, monday)
	assert.ErrorIs(t, err, ErrClientNotManaged)

	_, err = f.planSvc.AssignPlan(f.ctx, Actor{ID: owner.ID, Role: owner.Role}, plan.ID, []primitive.ObjectID{primitive.NewObjectID()}, monday)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.planSvc.AssignPlan(f.ctx, Actor{ID: admin.ID, Role: admin.Role}, plan.ID, []primitive.ObjectID{client.ID}, monday)
	assert.NoError(t, err)
}

func TestAssignPlan_ArchivedPlanRejected(t *testing.T) {
	f := newFixture(t, monday)
	trainer := f.addUser(t, domain.RoleTrainer)
	client := f.addClientOf(t, trainer)
	plan := f.createPlan(t, trainer, 0, workoutDays(1))
	actor := Actor{ID: trainer.ID, Role: trainer.Role}

	require.NoError(t, f.planSvc.ArchivePlan(f.ctx, actor, plan.ID))
	_, err := f.planSvc.AssignPlan(f.ctx, actor, plan.ID, []primitive.ObjectID{client.ID}, monday)
	assert.ErrorIs(t, err, ErrInvalidState)

	plans, err := f.planSvc.ListPlans(f.ctx, actor, false)
	require.NoError(t, err)
	assert.Empty(t, plans)
	plans, err = f.planSvc.ListPlans(f.ctx, actor, true)
	require.NoError(t, err)
	assert.Len(t, plans, 1)
}

func TestCancelPlan_ReversesPenaltiesAndPendingLogs(t *testing.T) {
	f := newFixture(t, monday)
	trainer := f.addUser(t, domain.RoleTrainer)
	client := f.addClientOf(t, trainer)
	plan := f.createPlan(t, trainer, 0, workoutDays(1, 3, 5))
	other := f.createPlan(t, trainer, 0, workoutDays(1))
	actor := Actor{ID: trainer.ID, Role: trainer.Role}

	f.assign(t, trainer, plan, client, monday)
	_, err := f.client.RequestNextWeek(f.ctx, client.ID)
	require.NoError(t, err)

	// Day 1 completed, day 3 missed by the sweeper, day 5 still ahead.
	f.clock.T = dateutil.AddDays(monday, 3)
	f.completeAll(t, client.ID, monday)
	logs, err := f.logs.GetByClientBetween(f.ctx, client.ID, monday, dateutil.AddDays(monday, 7))
	require.NoError(t, err)
	for i := range logs {
		if logs[i].DayIndex >= 3 && !logs[i].IsRestDay {
			logs[i].IsCompleted = false
			require.NoError(t, f.logs.Update(f.ctx, &logs[i]))
		}
	}
	report, err := f.sweeper.MarkMissedWorkouts(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)

	// A charge for another plan must survive the cancel.
	otherID := other.ID
	_, err = f.ledger.ApplyPenalty(f.ctx, client.ID, 4, ReasonWeeklyPlanCost, &otherID)
	require.NoError(t, err)
	assert.Equal(t, missedPenalty+4, f.reload(t, client.ID).Balance)

	res, err := f.planSvc.CancelPlan(f.ctx, actor, plan.ID, client.ID)
	require.NoError(t, err)
	assert.True(t, res.WasAssigned)
	assert.True(t, res.CurrentPlanCleared)
	assert.Equal(t, 1, res.PenaltiesRemoved)
	assert.Equal(t, 5, res.LogsDeleted, "day 5 and its four pending rest days")

	reloaded := f.reload(t, client.ID)
	assert.Equal(t, 4.0, reloaded.Balance)
	assert.Equal(t, 4.0, reloaded.MonthlyBalance)
	assert.Nil(t, reloaded.CurrentPlanID)
	assert.Empty(t, reloaded.PlanHistory)

	remaining, err := f.logs.GetByClientAndPlan(f.ctx, client.ID, plan.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 2, "completed and missed logs are kept")

	// Second cancel is a no-op.
	res, err = f.planSvc.CancelPlan(f.ctx, actor, plan.ID, client.ID)
	require.NoError(t, err)
	assert.False(t, res.WasAssigned)
	assert.Zero(t, res.PenaltiesRemoved)
	assert.Zero(t, res.LogsDeleted)
	assert.False(t, res.CurrentPlanCleared)
	assert.Equal(t, 4.0, f.reload(t, client.ID).Balance)
}

func TestCancelPlan_Forbidden(t *testing.T) {
	f := newFixture(t, monday)
	owner := f.addUser(t, domain.RoleTrainer)
	other := f.addUser(t, domain.RoleTrainer)
	client := f.addClientOf(t, owner)
	plan := f.createPlan(t, owner, 0, workoutDays(1))
	f.assign(t, owner, plan, client, monday)

	_, err := f.planSvc.CancelPlan(f.ctx, Actor{ID: other.ID, Role: other.Role}, plan.ID, client.ID)
	assert.ErrorIs(t, err, ErrPlanAccessDenied)
	assert.Len(t, f.reload(t, client.ID).PlanHistory, 1)
}
