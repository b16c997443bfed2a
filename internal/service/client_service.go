package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bjelicb/kinetix-backend-sub000/internal/dateutil"
	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
	"github.com/bjelicb/kinetix-backend-sub000/internal/metrics"
	"github.com/bjelicb/kinetix-backend-sub000/internal/repository"
)

// NextWeekResult is returned after a successful unlock.
type NextWeekResult struct {
	CurrentPlanID  primitive.ObjectID `json:"currentPlanId"`
	PlanStartDate  string             `json:"planStartDate"`
	Charged        float64            `json:"charged"`
	Balance        float64            `json:"balance"`
	MonthlyBalance float64            `json:"monthlyBalance"`
}

// UnlockStatus explains the unlock gate to the client app.
type UnlockStatus struct {
	CanUnlock         bool                `json:"canUnlock"`
	CurrentPlanID     *primitive.ObjectID `json:"currentPlanId,omitempty"`
	NextPlanAssigned  bool                `json:"nextPlanAssigned"`
	NextWeekRequested bool                `json:"nextWeekRequested"`
}

//go:generate mockgen -source=$GOFILE -destination=../api/client_service_mocks_test.go -package=api_test

// ClientService is the client-facing side of the plan lifecycle and the ledger.
type ClientService interface {
	CanUnlockNextWeek(ctx context.Context, clientID primitive.ObjectID) (bool, error)
	GetUnlockStatus(ctx context.Context, clientID primitive.ObjectID) (*UnlockStatus, error)
	RequestNextWeek(ctx context.Context, clientID primitive.ObjectID) (*NextWeekResult, error)
	GetBalance(ctx context.Context, clientID primitive.ObjectID) (*BalanceSummary, error)
	CheckMonthlyPaywall(ctx context.Context, clientID primitive.ObjectID) (bool, error)
}

type clientService struct {
	userRepo repository.UserRepository
	planRepo repository.TrainingPlanRepository
	logRepo  repository.WorkoutLogRepository
	ledger   LedgerService
	clock    dateutil.Clock
	metrics  *metrics.Manager
	log      *logrus.Entry
}

func NewClientService(
	userRepo repository.UserRepository,
	planRepo repository.TrainingPlanRepository,
	logRepo repository.WorkoutLogRepository,
	ledger LedgerService,
	clock dateutil.Clock,
	m *metrics.Manager,
) ClientService {
	return &clientService{
		userRepo: userRepo,
		planRepo: planRepo,
		logRepo:  logRepo,
		ledger:   ledger,
		clock:    clock,
		metrics:  m,
		log:      logrus.WithField("component", "client-lifecycle"),
	}
}

func (s *clientService) getClient(ctx context.Context, clientID primitive.ObjectID) (*domain.User, error) {
	client, err := s.userRepo.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return client, nil
}

func (s *clientService) CanUnlockNextWeek(ctx context.Context, clientID primitive.ObjectID) (bool, error) {
	client, err := s.getClient(ctx, clientID)
	if err != nil {
		return false, err
	}
	return s.canUnlock(ctx, client)
}

// canUnlock applies the unlock gate. Stale metadata (a pointer with no
// history entry, or a deleted plan) allows the unlock rather than blocking
// the client indefinitely.
func (s *clientService) canUnlock(ctx context.Context, client *domain.User) (bool, error) {
	if client.CurrentPlanID == nil {
		return true, nil
	}
	planID := *client.CurrentPlanID
	fields := logrus.Fields{"clientId": client.ID.Hex(), "planId": planID.Hex()}

	entry, ok := client.HistoryEntry(planID)
	if !ok {
		s.log.WithFields(fields).Warn("current plan missing from plan history, allowing unlock")
		return true, nil
	}

	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.WithFields(fields).Warn("current plan no longer exists, allowing unlock")
			return true, nil
		}
		return false, err
	}

	today := dateutil.StartOfDay(s.clock.Now())
	weekStart := dateutil.StartOfDay(entry.PlanStartDate)
	if last := plan.LastWorkoutDayIndex(); last > 0 {
		lastWorkoutDate := dateutil.AddDays(weekStart, last-1)
		if lastWorkoutDate.After(today) {
			return false, nil
		}
	}

	logs, err := s.logRepo.GetByClientBetween(ctx, client.ID, weekStart, dateutil.AddDays(weekStart, domain.DaysPerWeek))
	if err != nil {
		return false, err
	}
	found := false
	for _, l := range logs {
		if l.PlanID != planID {
			continue
		}
		found = true
		if !l.IsRestDay && !l.IsCompleted {
			return false, nil
		}
	}
	// No logs at all: the client has not done a single workout of this week.
	return found, nil
}

// nextEntry finds the history entry that follows the current plan. Without a
// current plan, the first entry that has not ended yet is next.
func nextEntry(client *domain.User, today time.Time) (domain.PlanHistoryEntry, bool) {
	history := client.SortedPlanHistory()
	if client.CurrentPlanID != nil {
		for i, e := range history {
			if e.PlanID == *client.CurrentPlanID {
				if i+1 < len(history) {
					return history[i+1], true
				}
				return domain.PlanHistoryEntry{}, false
			}
		}
	}
	for _, e := range history {
		if e.PlanEndDate.After(today) {
			return e, true
		}
	}
	return domain.PlanHistoryEntry{}, false
}

// RequestNextWeek moves the client onto the next assigned week and charges
// its cost. The pointer moves first with a compare-and-set so that two
// concurrent requests cannot both charge; if the charge then fails the
// pointer is moved back.
func (s *clientService) RequestNextWeek(ctx context.Context, clientID primitive.ObjectID) (*NextWeekResult, error) {
	client, err := s.getClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	ok, err := s.canUnlock(ctx, client)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrWeekNotCompleted
	}

	now := s.clock.Now()
	next, found := nextEntry(client, dateutil.StartOfDay(now))
	if !found {
		if err := s.userRepo.SetNextWeekRequested(ctx, clientID, now); err != nil {
			s.log.WithField("clientId", clientID.Hex()).WithError(err).Error("failed to flag next week request")
		}
		return nil, ErrNextPlanNotAssigned
	}

	previous := client.CurrentPlanID
	swapped, err := s.userRepo.AdvanceCurrentPlan(ctx, clientID, previous, next.PlanID)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, ErrCurrentPlanChanged
	}

	fields := logrus.Fields{"clientId": clientID.Hex(), "planId": next.PlanID.Hex()}
	result := &NextWeekResult{
		CurrentPlanID:  next.PlanID,
		PlanStartDate:  next.PlanStartDate.Format(dateutil.DayLayout),
		Balance:        client.Balance,
		MonthlyBalance: client.MonthlyBalance,
	}

	cost, err := s.weeklyCost(ctx, next.PlanID)
	if err != nil {
		s.revertPointer(ctx, client, next.PlanID)
		return nil, err
	}
	if cost > 0 {
		planID := next.PlanID
		updated, err := s.ledger.ApplyPenalty(ctx, clientID, cost, ReasonWeeklyPlanCost, &planID)
		if err != nil {
			s.revertPointer(ctx, client, next.PlanID)
			return nil, fmt.Errorf("charge weekly plan cost: %w", err)
		}
		result.Charged = cost
		result.Balance = updated.Balance
		result.MonthlyBalance = updated.MonthlyBalance
	}

	s.metrics.CounterWeekUnlocks.Inc()
	s.log.WithFields(fields).WithField("charged", cost).Info("next week unlocked")
	return result, nil
}

// weeklyCost reads the cost of a plan. A plan deleted since assignment costs nothing.
func (s *clientService) weeklyCost(ctx context.Context, planID primitive.ObjectID) (float64, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.WithField("planId", planID.Hex()).Warn("next plan no longer exists, not charging")
			return 0, nil
		}
		return 0, err
	}
	return plan.WeeklyCost, nil
}

// revertPointer undoes AdvanceCurrentPlan, including the pending next-week
// request it cleared, so the trainer still sees the request.
func (s *clientService) revertPointer(ctx context.Context, client *domain.User, from primitive.ObjectID) {
	var err error
	if client.CurrentPlanID == nil {
		_, err = s.userRepo.ClearCurrentPlanIf(ctx, client.ID, from)
	} else {
		_, err = s.userRepo.AdvanceCurrentPlan(ctx, client.ID, &from, *client.CurrentPlanID)
	}
	if err == nil && client.NextWeekRequested {
		at := s.clock.Now()
		if client.NextWeekRequestedAt != nil {
			at = *client.NextWeekRequestedAt
		}
		err = s.userRepo.SetNextWeekRequested(ctx, client.ID, at)
	}
	if err != nil {
		s.log.WithField("clientId", client.ID.Hex()).WithError(err).Error("failed to revert current plan after failed charge")
	}
}

func (s *clientService) GetUnlockStatus(ctx context.Context, clientID primitive.ObjectID) (*UnlockStatus, error) {
	client, err := s.getClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	canUnlock, err := s.canUnlock(ctx, client)
	if err != nil {
		return nil, err
	}
	_, hasNext := nextEntry(client, dateutil.StartOfDay(s.clock.Now()))
	return &UnlockStatus{
		CanUnlock:         canUnlock,
		CurrentPlanID:     client.CurrentPlanID,
		NextPlanAssigned:  hasNext,
		NextWeekRequested: client.NextWeekRequested,
	}, nil
}

func (s *clientService) GetBalance(ctx context.Context, clientID primitive.ObjectID) (*BalanceSummary, error) {
	return s.ledger.GetBalance(ctx, clientID)
}

func (s *clientService) CheckMonthlyPaywall(ctx context.Context, clientID primitive.ObjectID) (bool, error) {
	return s.ledger.CheckMonthlyPaywall(ctx, clientID)
}
