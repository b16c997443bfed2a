package repository

import (
	"context" // Standard for request-scoped deadlines, cancellation signals, etc.
	"time"

	"github.com/bjelicb/kinetix-backend-sub000/internal/domain" // Import our defined domain models

	"go.mongodb.org/mongo-driver/bson/primitive" // For using ObjectIDs
)

// Error constants for repository layer
var (
	ErrNotFound  = RepositoryError("not found")
	ErrDuplicate = RepositoryError("duplicate key")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// WeeklyAdherence is one client's workout counts over a date range.
// Rest days are never counted.
type WeeklyAdherence struct {
	ClientID  primitive.ObjectID `bson:"_id"`
	Scheduled int                `bson:"scheduled"`
	Completed int                `bson:"completed"`
	Missed    int                `bson:"missed"`
}

// WeeklyPenaltyUpdate is the set of counter changes the weekly job applies to a client.
type WeeklyPenaltyUpdate struct {
	IsPenaltyMode bool
	// AddConsecutiveMisses is added to the counter when > 0; otherwise the counter is reset to 0.
	AddConsecutiveMisses int
	ResetStreak          bool
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	AddClientIDToTrainer(ctx context.Context, trainerID, clientID primitive.ObjectID) error
	GetClientsByTrainerID(ctx context.Context, trainerID primitive.ObjectID) ([]domain.User, error)
	SetTrainerForClient(ctx context.Context, clientID, trainerID primitive.ObjectID) error
	ListClients(ctx context.Context) ([]domain.User, error)

	// --- Plan lifecycle ---

	// AppendPlanHistory adds entry, replacing any existing entry for the same plan.
	AppendPlanHistory(ctx context.Context, clientID primitive.ObjectID, entry domain.PlanHistoryEntry) error
	RemovePlanHistory(ctx context.Context, clientID, planID primitive.ObjectID) error
	// ClearCurrentPlanIf unsets currentPlanId only if it still equals planID.
	ClearCurrentPlanIf(ctx context.Context, clientID, planID primitive.ObjectID) (bool, error)
	// AdvanceCurrentPlan moves currentPlanId from expected (nil = unset) to next
	// and clears the next-week request flag. Returns false if the pointer moved underneath.
	AdvanceCurrentPlan(ctx context.Context, clientID primitive.ObjectID, expected *primitive.ObjectID, next primitive.ObjectID) (bool, error)
	SetNextWeekRequested(ctx context.Context, clientID primitive.ObjectID, at time.Time) error

	// --- Ledger ---

	// ApplyPenalty atomically adds amount to both balances and appends entry.
	ApplyPenalty(ctx context.Context, clientID primitive.ObjectID, entry domain.PenaltyEntry) (*domain.User, error)
	// RemovePenaltiesForPlan atomically drops every history line tagged planID and
	// subtracts their sum from both balances, floored at 0. Returns the lines removed.
	RemovePenaltiesForPlan(ctx context.Context, clientID, planID primitive.ObjectID) ([]domain.PenaltyEntry, error)
	// ResetBalance zeroes both balances and stamps lastBalanceReset.
	ResetBalance(ctx context.Context, clientID primitive.ObjectID, at time.Time) (*domain.User, error)

	// --- Adherence counters ---

	RecordCompletedWorkout(ctx context.Context, clientID primitive.ObjectID) error
	ApplyWeeklyPenaltyStatus(ctx context.Context, clientID primitive.ObjectID, upd WeeklyPenaltyUpdate) error
}

// TrainingPlanRepository defines the interface for interacting with training plan data.
type TrainingPlanRepository interface {
	Create(ctx context.Context, plan *domain.TrainingPlan) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error)
	GetByTrainerID(ctx context.Context, trainerID primitive.ObjectID, includeArchived bool) ([]domain.TrainingPlan, error)
	AddAssignedClient(ctx context.Context, planID, clientID primitive.ObjectID) error
	RemoveAssignedClient(ctx context.Context, planID, clientID primitive.ObjectID) error
	SetArchived(ctx context.Context, planID primitive.ObjectID, archived bool) error
}

// WorkoutLogRepository defines the interface for interacting with workout log data.
type WorkoutLogRepository interface {
	// InsertMany inserts every log it can. If some inserts collide with an
	// existing (clientId, workoutDate) the returned error wraps ErrDuplicate.
	InsertMany(ctx context.Context, logs []domain.WorkoutLog) (int, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.WorkoutLog, error)
	GetByClientAndDate(ctx context.Context, clientID primitive.ObjectID, day time.Time) (*domain.WorkoutLog, error)
	// GetByClientBetween returns logs with workoutDate in [from, to), ordered by date.
	GetByClientBetween(ctx context.Context, clientID primitive.ObjectID, from, to time.Time) ([]domain.WorkoutLog, error)
	GetByClientAndPlan(ctx context.Context, clientID, planID primitive.ObjectID) ([]domain.WorkoutLog, error)
	// UpdateTemplate rewrites the plan-derived fields of an existing log without
	// touching completion state.
	UpdateTemplate(ctx context.Context, log *domain.WorkoutLog) error
	// Update replaces the mutable completion fields of a log.
	Update(ctx context.Context, log *domain.WorkoutLog) error
	// DeletePendingForPlan removes the client's logs for planID that are neither completed nor missed.
	DeletePendingForPlan(ctx context.Context, clientID, planID primitive.ObjectID) (int, error)
	// FindOverdue returns non-rest logs dated before day that are still pending.
	FindOverdue(ctx context.Context, day time.Time) ([]domain.WorkoutLog, error)
	// MarkMissed flips pending logs to missed; logs completed meanwhile are skipped.
	MarkMissed(ctx context.Context, ids []primitive.ObjectID) (int, error)
	// SetMissed flips one log to missed, clearing any completion. It reports
	// false when the log was already missed.
	SetMissed(ctx context.Context, id primitive.ObjectID) (bool, error)
	// CountByClientBetween aggregates adherence per client over [from, to).
	CountByClientBetween(ctx context.Context, from, to time.Time) ([]WeeklyAdherence, error)
}

// PenaltyRecordRepository defines the interface for weekly penalty records.
type PenaltyRecordRepository interface {
	// Upsert creates or replaces the record keyed by (clientId, weekStart).
	Upsert(ctx context.Context, rec *domain.PenaltyRecord) error
	GetByClient(ctx context.Context, clientID primitive.ObjectID) ([]domain.PenaltyRecord, error)
	GetByClientAndWeek(ctx context.Context, clientID primitive.ObjectID, weekStart time.Time) (*domain.PenaltyRecord, error)
}

// WeighInRepository defines the interface for weigh-in data.
type WeighInRepository interface {
	// Create fails with ErrDuplicate when the client already weighed in that day.
	Create(ctx context.Context, w *domain.WeighIn) (primitive.ObjectID, error)
	// GetLatestBefore returns the most recent weigh-in strictly before day.
	GetLatestBefore(ctx context.Context, clientID primitive.ObjectID, day time.Time) (*domain.WeighIn, error)
	GetByClient(ctx context.Context, clientID primitive.ObjectID, limit int) ([]domain.WeighIn, error)
}
