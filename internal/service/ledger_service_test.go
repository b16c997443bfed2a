package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
)

func TestPaywallAllows(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	thisMonth := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	lastMonth := time.Date(2024, time.February, 28, 9, 0, 0, 0, time.UTC)
	lastYear := time.Date(2023, time.March, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		reset   *time.Time
		balance float64
		want    bool
	}{
		{"never reset", nil, 50, true},
		{"reset this month with balance", &thisMonth, 50, true},
		{"reset last month, nothing owed", &lastMonth, 0, true},
		{"reset last month, balance owed", &lastMonth, 0.5, false},
		{"same month last year, balance owed", &lastYear, 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &domain.User{LastBalanceReset: tt.reset, Balance: tt.balance}
			assert.Equal(t, tt.want, PaywallAllows(u, now))
		})
	}
}

func TestLedger_ApplyPenalty(t *testing.T) {
	f := newFixture(t, monday)
	client := f.addUser(t, domain.RoleClient)

	_, err := f.ledger.ApplyPenalty(f.ctx, client.ID, 0, ReasonMissedWorkout, nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.ledger.ApplyPenalty(f.ctx, client.ID, 1, "", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.ledger.ApplyPenalty(f.ctx, primitive.NewObjectID(), 1, ReasonMissedWorkout, nil)
	assert.ErrorIs(t, err, ErrClientNotFound)

	u, err := f.ledger.ApplyPenalty(f.ctx, client.ID, 2.5, ReasonMissedWorkout, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.5, u.Balance)
	assert.Equal(t, 2.5, u.MonthlyBalance)
	require.Len(t, u.PenaltyHistory, 1)
	assert.Equal(t, monday, u.PenaltyHistory[0].Date)
	assert.Nil(t, u.PenaltyHistory[0].PlanID)
}

func TestLedger_ConcurrentPenaltiesAreNotLost(t *testing.T) {
	f := newFixture(t, monday)
	client := f.addUser(t, domain.RoleClient)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.ApplyPenalty(f.ctx, client.ID, 1, ReasonMissedWorkout, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	u := f.reload(t, client.ID)
	assert.Equal(t, float64(n), u.Balance)
	assert.Len(t, u.PenaltyHistory, n)
}

func TestLedger_RemovePenaltiesForPlanIsIdempotent(t *testing.T) {
	f := newFixture(t, monday)
	client := f.addUser(t, domain.RoleClient)
	planID := primitive.NewObjectID()

	for i := 0; i < 3; i++ {
		_, err := f.ledger.ApplyPenalty(f.ctx, client.ID, 2, ReasonMissedWorkout, &planID)
		require.NoError(t, err)
	}
	removed, err := f.ledger.RemovePenaltiesForPlan(f.ctx, client.ID, planID)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	removed, err = f.ledger.RemovePenaltiesForPlan(f.ctx, client.ID, planID)
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Zero(t, f.reload(t, client.ID).Balance)
}

func TestLedger_ClearBalanceAndPaywall(t *testing.T) {
	f := newFixture(t, monday)
	client := f.addUser(t, domain.RoleClient)

	_, err := f.ledger.ApplyPenalty(f.ctx, client.ID, 10, ReasonWeeklyPlanCost, nil)
	require.NoError(t, err)
	u, err := f.ledger.ClearBalance(f.ctx, client.ID)
	require.NoError(t, err)
	assert.Zero(t, u.Balance)
	assert.Zero(t, u.MonthlyBalance)
	require.NotNil(t, u.LastBalanceReset)

	// Charged again and carried into the next month unpaid.
	_, err = f.ledger.ApplyPenalty(f.ctx, client.ID, 3, ReasonMissedWorkout, nil)
	require.NoError(t, err)
	allowed, err := f.ledger.CheckMonthlyPaywall(f.ctx, client.ID)
	require.NoError(t, err)
	assert.True(t, allowed)

	f.clock.T = monday.AddDate(0, 1, 0)
	allowed, err = f.ledger.CheckMonthlyPaywall(f.ctx, client.ID)
	require.NoError(t, err)
	assert.False(t, allowed)

	summary, err := f.ledger.GetBalance(f.ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, summary.Balance)
	assert.Equal(t, "EUR", summary.Currency)
	assert.False(t, summary.PaywallAllowed)
	assert.Len(t, summary.PenaltyHistory, 2)
}
