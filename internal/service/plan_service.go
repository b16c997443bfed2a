package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/bjelicb/kinetix-backend-sub000/internal/dateutil"
	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
	"github.com/bjelicb/kinetix-backend-sub000/internal/repository"
)

// CreatePlanInput is what a trainer submits to author a plan.
type CreatePlanInput struct {
	Name        string
	Description string
	Days        []domain.PlanDay
	WeeklyCost  float64
	IsTemplate  bool
}

// AssignResult reports the per-client outcome of an assignment.
type AssignResult struct {
	PlanID    primitive.ObjectID   `json:"planId"`
	StartDate time.Time            `json:"startDate"`
	EndDate   time.Time            `json:"endDate"`
	Clients   []ClientAssignResult `json:"clients"`
}

type ClientAssignResult struct {
	ClientID      primitive.ObjectID `json:"clientId"`
	LogsGenerated int                `json:"logsGenerated"`
}

// CancelResult reports what a cancellation undid.
type CancelResult struct {
	PlanID             primitive.ObjectID `json:"planId"`
	ClientID           primitive.ObjectID `json:"clientId"`
	LogsDeleted        int                `json:"logsDeleted"`
	PenaltiesRemoved   int                `json:"penaltiesRemoved"`
	CurrentPlanCleared bool               `json:"currentPlanCleared"`
	WasAssigned        bool               `json:"wasAssigned"`
}

type PlanService interface {
	CreatePlan(ctx context.Context, actor Actor, in CreatePlanInput) (*domain.TrainingPlan, error)
	GetPlan(ctx context.Context, actor Actor, planID primitive.ObjectID) (*domain.TrainingPlan, error)
	ListPlans(ctx context.Context, actor Actor, includeArchived bool) ([]domain.TrainingPlan, error)
	ArchivePlan(ctx context.Context, actor Actor, planID primitive.ObjectID) error
	AssignPlan(ctx context.Context, actor Actor, planID primitive.ObjectID, clientIDs []primitive.ObjectID, startDate time.Time) (*AssignResult, error)
	CancelPlan(ctx context.Context, actor Actor, planID, clientID primitive.ObjectID) (*CancelResult, error)
}

type planService struct {
	planRepo repository.TrainingPlanRepository
	userRepo repository.UserRepository
	logs     WorkoutLogService
	ledger   LedgerService
	clock    dateutil.Clock
	log      *logrus.Entry
}

func NewPlanService(
	planRepo repository.TrainingPlanRepository,
	userRepo repository.UserRepository,
	logs WorkoutLogService,
	ledger LedgerService,
	clock dateutil.Clock,
) PlanService {
	return &planService{
		planRepo: planRepo,
		userRepo: userRepo,
		logs:     logs,
		ledger:   ledger,
		clock:    clock,
		log:      logrus.WithField("component", "plans"),
	}
}

func (s *planService) CreatePlan(ctx context.Context, actor Actor, in CreatePlanInput) (*domain.TrainingPlan, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, invalidInput("plan name is required")
	}
	if in.WeeklyCost < 0 {
		return nil, invalidInput("weekly cost must not be negative")
	}
	plan := &domain.TrainingPlan{
		TrainerID:   actor.ID,
		Name:        in.Name,
		Description: in.Description,
		Days:        in.Days,
		WeeklyCost:  in.WeeklyCost,
		IsTemplate:  in.IsTemplate,
	}
	if err := plan.ValidateDays(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if _, err := s.planRepo.Create(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// getOwnedPlan loads a plan and checks the actor may manage it.
func (s *planService) getOwnedPlan(ctx context.Context, actor Actor, planID primitive.ObjectID) (*domain.TrainingPlan, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if !actor.canManagePlan(plan.TrainerID) {
		return nil, ErrPlanAccessDenied
	}
	return plan, nil
}

func (s *planService) GetPlan(ctx context.Context, actor Actor, planID primitive.ObjectID) (*domain.TrainingPlan, error) {
	return s.getOwnedPlan(ctx, actor, planID)
}

func (s *planService) ListPlans(ctx context.Context, actor Actor, includeArchived bool) ([]domain.TrainingPlan, error) {
	return s.planRepo.GetByTrainerID(ctx, actor.ID, includeArchived)
}

// ArchivePlan hides a plan from listings. Assignments and history are untouched.
func (s *planService) ArchivePlan(ctx context.Context, actor Actor, planID primitive.ObjectID) error {
	if _, err := s.getOwnedPlan(ctx, actor, planID); err != nil {
		return err
	}
	return s.planRepo.SetArchived(ctx, planID, true)
}

// AssignPlan schedules the plan's week for each client starting at startDate.
// It does not move the client's current plan pointer; that only happens when
// the client unlocks the week.
func (s *planService) AssignPlan(ctx context.Context, actor Actor, planID primitive.ObjectID, clientIDs []primitive.ObjectID, startDate time.Time) (*AssignResult, error) {
	if len(clientIDs) == 0 {
		return nil, invalidInput("at least one client is required")
	}
	if startDate.IsZero() {
		return nil, invalidInput("start date is required")
	}
	plan, err := s.getOwnedPlan(ctx, actor, planID)
	if err != nil {
		return nil, err
	}
	if plan.IsArchived {
		return nil, fmt.Errorf("%w: plan is archived", ErrInvalidState)
	}

	start := dateutil.StartOfDay(startDate)
	end := dateutil.AddDays(start, domain.DaysPerWeek)

	// Resolve every client before writing anything.
	clients := make([]*domain.User, 0, len(clientIDs))
	seen := make(map[primitive.ObjectID]bool, len(clientIDs))
	for _, id := range clientIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		client, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%w (%s)", ErrClientNotFound, id.Hex())
			}
			return nil, err
		}
		if !client.IsClient() {
			return nil, ErrClientNotRole
		}
		if !actor.canManageClient(client) {
			return nil, ErrClientNotManaged
		}
		clients = append(clients, client)
	}

	result := &AssignResult{PlanID: plan.ID, StartDate: start, EndDate: end}
	now := s.clock.Now()
	for _, client := range clients {
		fields := logrus.Fields{"clientId": client.ID.Hex(), "planId": plan.ID.Hex()}

		logs, err := s.logs.GenerateWeeklyLogs(ctx, client, plan, start)
		if err != nil {
			return result, fmt.Errorf("generate logs for client %s: %w", client.ID.Hex(), err)
		}

		entry := domain.PlanHistoryEntry{
			PlanID:        plan.ID,
			PlanStartDate: start,
			PlanEndDate:   end,
			AssignedAt:    now,
			TrainerID:     plan.TrainerID,
		}
		if err := s.userRepo.AppendPlanHistory(ctx, client.ID, entry); err != nil {
			return result, fmt.Errorf("record plan history for client %s: %w", client.ID.Hex(), err)
		}
		if err := s.planRepo.AddAssignedClient(ctx, plan.ID, client.ID); err != nil {
			return result, fmt.Errorf("add client %s to plan: %w", client.ID.Hex(), err)
		}

		s.log.WithFields(fields).WithField("start", start.Format(dateutil.DayLayout)).Info("plan assigned")
		result.Clients = append(result.Clients, ClientAssignResult{ClientID: client.ID, LogsGenerated: len(logs)})
	}
	return result, nil
}

// CancelPlan unwinds an assignment for one client: pending logs are deleted,
// penalties charged against the plan are reversed, and the history entry and
// current pointer are removed. Completed and missed logs stay as a record.
// Cancelling a plan that is not (or no longer) assigned succeeds with zero counts.
func (s *planService) CancelPlan(ctx context.Context, actor Actor, planID, clientID primitive.ObjectID) (*CancelResult, error) {
	plan, err := s.getOwnedPlan(ctx, actor, planID)
	if err != nil {
		return nil, err
	}
	client, err := s.userRepo.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if !actor.canManageClient(client) {
		return nil, ErrClientNotManaged
	}

	_, inHistory := client.HistoryEntry(planID)
	result := &CancelResult{
		PlanID:      planID,
		ClientID:    clientID,
		WasAssigned: inHistory || plan.HasClient(clientID),
	}
	fields := logrus.Fields{"clientId": clientID.Hex(), "planId": planID.Hex()}

	if result.LogsDeleted, err = s.logs.DeleteUncompletedLogs(ctx, clientID, planID); err != nil {
		return nil, fmt.Errorf("delete pending logs: %w", err)
	}
	if result.PenaltiesRemoved, err = s.ledger.RemovePenaltiesForPlan(ctx, clientID, planID); err != nil {
		return nil, fmt.Errorf("remove plan penalties: %w", err)
	}
	if err = s.userRepo.RemovePlanHistory(ctx, clientID, planID); err != nil {
		return nil, fmt.Errorf("remove plan history: %w", err)
	}
	if result.CurrentPlanCleared, err = s.userRepo.ClearCurrentPlanIf(ctx, clientID, planID); err != nil {
		return nil, fmt.Errorf("clear current plan: %w", err)
	}
	if err = s.planRepo.RemoveAssignedClient(ctx, planID, clientID); err != nil {
		return nil, fmt.Errorf("remove client from plan: %w", err)
	}

	s.log.WithFields(fields).WithFields(logrus.Fields{
		"logsDeleted":      result.LogsDeleted,
		"penaltiesRemoved": result.PenaltiesRemoved,
		"currentCleared":   result.CurrentPlanCleared,
	}).Info("plan cancelled")
	return result, nil
}
