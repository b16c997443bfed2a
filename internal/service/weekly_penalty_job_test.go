package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bjelicb/kinetix-backend-sub000/internal/dateutil"
	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
)

func TestClassifyWeek(t *testing.T) {
	tests := []struct {
		missed int
		want   domain.PenaltyStatus
	}{
		{0, domain.PenaltyStatusNone},
		{1, domain.PenaltyStatusWarning},
		{2, domain.PenaltyStatusWarning},
		{3, domain.PenaltyStatusPenaltyMode},
		{6, domain.PenaltyStatusPenaltyMode},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyWeek(tt.missed), "missed=%d", tt.missed)
	}
}

func TestPlanWeeklyPenalties(t *testing.T) {
	week := dateutil.WeekOf(monday)
	heavy, light, clean := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()

	mutations := PlanWeeklyPenalties(week, []ClientWeekCounts{
		{ClientID: heavy, Missed: 6, Scheduled: 0},
		{ClientID: light, Missed: 1, Scheduled: 4, Completed: 3},
		{ClientID: clean},
	})
	require.Len(t, mutations, 3)

	m := mutations[0]
	assert.Equal(t, domain.PenaltyStatusPenaltyMode, m.Record.Status)
	assert.True(t, m.Update.IsPenaltyMode)
	assert.Equal(t, 6, m.Update.AddConsecutiveMisses)
	assert.True(t, m.Update.ResetStreak)
	assert.Zero(t, m.Record.CompletionRate)
	assert.Equal(t, monday, m.Record.WeekStart)
	assert.Equal(t, 2024, m.Record.ISOYear)
	assert.Equal(t, 10, m.Record.ISOWeek)

	m = mutations[1]
	assert.Equal(t, domain.PenaltyStatusWarning, m.Record.Status)
	assert.False(t, m.Update.IsPenaltyMode)
	assert.Zero(t, m.Update.AddConsecutiveMisses)
	assert.False(t, m.Update.ResetStreak)
	assert.Equal(t, 75.0, m.Record.CompletionRate)

	assert.Equal(t, domain.PenaltyStatusNone, mutations[2].Record.Status)
}

func TestCalculateWeeklyPenalties(t *testing.T) {
	f := newFixture(t, monday)
	trainer := f.addUser(t, domain.RoleTrainer)
	slacker := f.addClientOf(t, trainer)
	occasional := f.addClientOf(t, trainer)
	idle := f.addClientOf(t, trainer)

	plan := f.createPlan(t, trainer, 0, workoutDays(1, 2, 3, 4))
	f.assign(t, trainer, plan, slacker, monday)
	f.assign(t, trainer, plan, occasional, monday)
	f.completeAll(t, occasional.ID, monday)
	require.NoError(t, f.users.RecordCompletedWorkout(f.ctx, slacker.ID))

	// Occasional misses exactly one day.
	thursday, err := f.logs.GetByClientAndDate(f.ctx, occasional.ID, dateutil.AddDays(monday, 3))
	require.NoError(t, err)
	thursday.IsCompleted = false
	require.NoError(t, f.logs.Update(f.ctx, thursday))

	// The weekly run happens the following Monday, after the sweeper.
	f.clock.T = dateutil.AddDays(monday, 7).Add(1)
	_, err = f.sweeper.MarkMissedWorkouts(f.ctx)
	require.NoError(t, err)

	report, err := f.weekly.CalculateWeeklyPenalties(f.ctx)
	require.NoError(t, err)
	assert.NoError(t, report.Err)
	assert.Equal(t, JobWeeklyPenalties, report.Job)
	assert.Equal(t, 3, report.Processed)
	assert.Zero(t, report.Failed)

	u := f.reload(t, slacker.ID)
	assert.True(t, u.IsPenaltyMode)
	assert.Equal(t, 4, u.ConsecutiveMissedWorkouts)
	assert.Zero(t, u.CurrentStreak)

	rec, err := f.records.GetByClientAndWeek(f.ctx, slacker.ID, monday)
	require.NoError(t, err)
	assert.Equal(t, domain.PenaltyStatusPenaltyMode, rec.Status)
	assert.Equal(t, 4, rec.ScheduledWorkouts)
	assert.Equal(t, 4, rec.MissedWorkouts)
	require.NotNil(t, rec.TrainerID)
	assert.Equal(t, trainer.ID, *rec.TrainerID)

	u = f.reload(t, occasional.ID)
	assert.False(t, u.IsPenaltyMode)
	assert.Zero(t, u.ConsecutiveMissedWorkouts)
	rec, err = f.records.GetByClientAndWeek(f.ctx, occasional.ID, monday)
	require.NoError(t, err)
	assert.Equal(t, domain.PenaltyStatusWarning, rec.Status)
	assert.Equal(t, 75.0, rec.CompletionRate)

	rec, err = f.records.GetByClientAndWeek(f.ctx, idle.ID, monday)
	require.NoError(t, err)
	assert.Equal(t, domain.PenaltyStatusNone, rec.Status)
	assert.Zero(t, rec.ScheduledWorkouts)

	// Re-running the same week overwrites instead of duplicating.
	_, err = f.weekly.CalculateWeeklyPenalties(f.ctx)
	require.NoError(t, err)
	records, err := f.weekly.ListPenaltyRecords(f.ctx, Actor{ID: trainer.ID, Role: trainer.Role}, slacker.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestListPenaltyRecords_Access(t *testing.T) {
	f := newFixture(t, monday)
	trainer := f.addUser(t, domain.RoleTrainer)
	other := f.addUser(t, domain.RoleTrainer)
	client := f.addClientOf(t, trainer)

	_, err := f.weekly.ListPenaltyRecords(f.ctx, Actor{ID: client.ID, Role: client.Role}, client.ID)
	assert.NoError(t, err)
	_, err = f.weekly.ListPenaltyRecords(f.ctx, Actor{ID: other.ID, Role: other.Role}, client.ID)
	assert.ErrorIs(t, err, ErrClientNotManaged)
	_, err = f.weekly.ListPenaltyRecords(f.ctx, Actor{ID: other.ID, Role: other.Role}, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrClientNotFound)
}
