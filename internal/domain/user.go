package domain

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type to distinguish between user roles
type Role string

// Define constants for roles
const (
	RoleTrainer Role = "trainer"
	RoleClient  Role = "client"
	RoleAdmin   Role = "admin"
)

// PlanHistoryEntry records one week-long assignment of a plan to a client.
// Entries are appended on assignment and only removed when the plan is cancelled.
type PlanHistoryEntry struct {
	PlanID        primitive.ObjectID `bson:"planId" json:"planId"`
	PlanStartDate time.Time          `bson:"planStartDate" json:"planStartDate"`
	PlanEndDate   time.Time          `bson:"planEndDate" json:"planEndDate"`
	AssignedAt    time.Time          `bson:"assignedAt" json:"assignedAt"`
	TrainerID     primitive.ObjectID `bson:"trainerId" json:"trainerId"`
}

// IsActiveAt reports whether t falls inside [PlanStartDate, PlanEndDate).
func (e PlanHistoryEntry) IsActiveAt(t time.Time) bool {
	return !t.Before(e.PlanStartDate) && t.Before(e.PlanEndDate)
}

// PenaltyEntry is one line of the running tab.
type PenaltyEntry struct {
	Date   time.Time           `bson:"date" json:"date"`
	Amount float64             `bson:"amount" json:"amount"`
	Reason string              `bson:"reason" json:"reason"`
	PlanID *primitive.ObjectID `bson:"planId,omitempty" json:"planId,omitempty"`
}

// User represents a user in the system (Trainer, Client or Admin).
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`    // Should be unique
	PasswordHash string             `bson:"passwordHash" json:"-"` // Never expose this via JSON
	Role         Role               `bson:"role" json:"role"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`

	// --- Trainer-specific ---
	ClientIDs []primitive.ObjectID `bson:"clientIds,omitempty" json:"clientIds,omitempty"`

	// --- Client-specific ---
	TrainerID *primitive.ObjectID `bson:"trainerId,omitempty" json:"trainerId,omitempty"`

	// Plan lifecycle. CurrentPlanID, if set, should match an entry in PlanHistory.
	CurrentPlanID       *primitive.ObjectID `bson:"currentPlanId,omitempty" json:"currentPlanId,omitempty"`
	PlanHistory         []PlanHistoryEntry  `bson:"planHistory,omitempty" json:"planHistory,omitempty"`
	NextWeekRequested   bool                `bson:"nextWeekRequested" json:"nextWeekRequested"`
	NextWeekRequestedAt *time.Time          `bson:"nextWeekRequestedAt,omitempty" json:"nextWeekRequestedAt,omitempty"`

	// Running tab. Both balances are kept >= 0 by the ledger.
	Balance          float64        `bson:"balance" json:"balance"`
	MonthlyBalance   float64        `bson:"monthlyBalance" json:"monthlyBalance"`
	LastBalanceReset *time.Time     `bson:"lastBalanceReset,omitempty" json:"lastBalanceReset,omitempty"`
	PenaltyHistory   []PenaltyEntry `bson:"penaltyHistory,omitempty" json:"penaltyHistory,omitempty"`

	// Adherence counters, maintained by workout completion and the weekly penalty job.
	ConsecutiveMissedWorkouts int  `bson:"consecutiveMissedWorkouts" json:"consecutiveMissedWorkouts"`
	CurrentStreak             int  `bson:"currentStreak" json:"currentStreak"`
	TotalWorkoutsCompleted    int  `bson:"totalWorkoutsCompleted" json:"totalWorkoutsCompleted"`
	IsPenaltyMode             bool `bson:"isPenaltyMode" json:"isPenaltyMode"`
}

func (u *User) IsTrainer() bool {
	return u.Role == RoleTrainer
}

func (u *User) IsClient() bool {
	return u.Role == RoleClient
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsManagedBy reports whether the client is on trainerID's roster.
func (u *User) IsManagedBy(trainerID primitive.ObjectID) bool {
	return u.TrainerID != nil && *u.TrainerID == trainerID
}

// HistoryEntry returns the plan history entry for planID. If a plan was
// somehow recorded twice the most recently assigned entry wins.
func (u *User) HistoryEntry(planID primitive.ObjectID) (PlanHistoryEntry, bool) {
	var (
		found PlanHistoryEntry
		ok    bool
	)
	for _, e := range u.PlanHistory {
		if e.PlanID != planID {
			continue
		}
		if !ok || e.AssignedAt.After(found.AssignedAt) {
			found, ok = e, true
		}
	}
	return found, ok
}

// ActiveEntryAt returns the history entry whose week contains t, preferring
// the current plan when several overlap.
func (u *User) ActiveEntryAt(t time.Time) (PlanHistoryEntry, bool) {
	if u.CurrentPlanID != nil {
		if e, ok := u.HistoryEntry(*u.CurrentPlanID); ok && e.IsActiveAt(t) {
			return e, true
		}
	}
	for _, e := range u.SortedPlanHistory() {
		if e.IsActiveAt(t) {
			return e, true
		}
	}
	return PlanHistoryEntry{}, false
}

// SortedPlanHistory returns a copy of the history in chronological order.
func (u *User) SortedPlanHistory() []PlanHistoryEntry {
	out := make([]PlanHistoryEntry, len(u.PlanHistory))
	copy(out, u.PlanHistory)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PlanStartDate.Equal(out[j].PlanStartDate) {
			return out[i].PlanStartDate.Before(out[j].PlanStartDate)
		}
		return out[i].AssignedAt.Before(out[j].AssignedAt)
	})
	return out
}
