package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bjelicb/kinetix-backend-sub000/internal/dateutil"
	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
	"github.com/bjelicb/kinetix-backend-sub000/internal/metrics"
	"github.com/bjelicb/kinetix-backend-sub000/internal/repository"
)

// Penalty reasons written into the history.
const (
	ReasonMissedWorkout  = "missed workout"
	ReasonWeeklyPlanCost = "weekly plan cost"
)

// BalanceSummary is the client's view of the running tab.
type BalanceSummary struct {
	Balance          float64               `json:"balance"`
	MonthlyBalance   float64               `json:"monthlyBalance"`
	LastBalanceReset *time.Time            `json:"lastBalanceReset,omitempty"`
	Currency         string                `json:"currency"`
	PaywallAllowed   bool                  `json:"paywallAllowed"`
	PenaltyHistory   []domain.PenaltyEntry `json:"penaltyHistory"`
}

type LedgerService interface {
	ApplyPenalty(ctx context.Context, clientID primitive.ObjectID, amount float64, reason string, planID *primitive.ObjectID) (*domain.User, error)
	ClearBalance(ctx context.Context, clientID primitive.ObjectID) (*domain.User, error)
	RemovePenaltiesForPlan(ctx context.Context, clientID, planID primitive.ObjectID) (int, error)
	CheckMonthlyPaywall(ctx context.Context, clientID primitive.ObjectID) (bool, error)
	GetBalance(ctx context.Context, clientID primitive.ObjectID) (*BalanceSummary, error)
}

type ledgerService struct {
	userRepo repository.UserRepository
	clock    dateutil.Clock
	metrics  *metrics.Manager
	currency string
	log      *logrus.Entry
}

func NewLedgerService(userRepo repository.UserRepository, clock dateutil.Clock, m *metrics.Manager, currency string) LedgerService {
	return &ledgerService{
		userRepo: userRepo,
		clock:    clock,
		metrics:  m,
		currency: currency,
		log:      logrus.WithField("component", "ledger"),
	}
}

// ApplyPenalty adds amount to both balances and appends a history line. The
// repository does this as a single document update, so concurrent charges for
// the same client are never lost.
func (s *ledgerService) ApplyPenalty(ctx context.Context, clientID primitive.ObjectID, amount float64, reason string, planID *primitive.ObjectID) (*domain.User, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if reason == "" {
		return nil, invalidInput("penalty reason is required")
	}
	entry := domain.PenaltyEntry{
		Date:   s.clock.Now(),
		Amount: amount,
		Reason: reason,
		PlanID: planID,
	}
	user, err := s.userRepo.ApplyPenalty(ctx, clientID, entry)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	s.metrics.CounterPenaltiesApplied.WithLabelValues(reason).Inc()
	s.metrics.CounterPenaltyAmount.Add(amount)
	s.log.WithFields(logrus.Fields{
		"clientId": clientID.Hex(),
		"amount":   amount,
		"reason":   reason,
		"balance":  user.Balance,
	}).Info("penalty applied")
	return user, nil
}

// ClearBalance zeroes the tab after a billing cycle is settled.
func (s *ledgerService) ClearBalance(ctx context.Context, clientID primitive.ObjectID) (*domain.User, error) {
	user, err := s.userRepo.ResetBalance(ctx, clientID, s.clock.Now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	s.log.WithField("clientId", clientID.Hex()).Info("balance cleared")
	return user, nil
}

// RemovePenaltiesForPlan reverses every charge tagged with planID. Calling it
// again for the same plan removes nothing.
func (s *ledgerService) RemovePenaltiesForPlan(ctx context.Context, clientID, planID primitive.ObjectID) (int, error) {
	removed, err := s.userRepo.RemovePenaltiesForPlan(ctx, clientID, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrClientNotFound
		}
		return 0, err
	}
	if len(removed) > 0 {
		s.metrics.CounterPenaltiesRemoved.Add(float64(len(removed)))
		s.log.WithFields(logrus.Fields{
			"clientId": clientID.Hex(),
			"planId":   planID.Hex(),
			"removed":  len(removed),
		}).Info("penalties removed for plan")
	}
	return len(removed), nil
}

func (s *ledgerService) CheckMonthlyPaywall(ctx context.Context, clientID primitive.ObjectID) (bool, error) {
	user, err := s.getClient(ctx, clientID)
	if err != nil {
		return false, err
	}
	return PaywallAllows(user, s.clock.Now()), nil
}

func (s *ledgerService) GetBalance(ctx context.Context, clientID primitive.ObjectID) (*BalanceSummary, error) {
	user, err := s.getClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	history := user.PenaltyHistory
	if history == nil {
		history = []domain.PenaltyEntry{}
	}
	return &BalanceSummary{
		Balance:          user.Balance,
		MonthlyBalance:   user.MonthlyBalance,
		LastBalanceReset: user.LastBalanceReset,
		Currency:         s.currency,
		PaywallAllowed:   PaywallAllows(user, s.clock.Now()),
		PenaltyHistory:   history,
	}, nil
}

func (s *ledgerService) getClient(ctx context.Context, clientID primitive.ObjectID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return user, nil
}

// PaywallAllows is the monthly paywall rule: access is blocked only when the
// last reset predates the current month and a balance is still owed.
func PaywallAllows(user *domain.User, now time.Time) bool {
	if user.LastBalanceReset == nil {
		return true
	}
	if dateutil.SameMonth(*user.LastBalanceReset, now) {
		return true
	}
	return user.Balance <= 0
}
