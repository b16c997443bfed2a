// internal/domain/training_plan.go
package domain

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DaysPerWeek = 7

// PlanExercise is one prescribed exercise within a plan day.
type PlanExercise struct {
	Name        string `bson:"name" json:"name"`
	Sets        int    `bson:"sets,omitempty" json:"sets,omitempty"`
	Reps        string `bson:"reps,omitempty" json:"reps,omitempty"` // e.g. "8-12", "AMRAP"
	RestSeconds int    `bson:"restSeconds,omitempty" json:"restSeconds,omitempty"`
	Notes       string `bson:"notes,omitempty" json:"notes,omitempty"`
}

// PlanDay is one slot of the week. DayIndex runs 1..7 relative to the
// assignment start date, not the calendar weekday.
type PlanDay struct {
	DayIndex  int            `bson:"dayIndex" json:"dayIndex"`
	IsRestDay bool           `bson:"isRestDay" json:"isRestDay"`
	Name      string         `bson:"name,omitempty" json:"name,omitempty"` // e.g. "Upper Body"
	Exercises []PlanExercise `bson:"exercises,omitempty" json:"exercises,omitempty"`
}

// TrainingPlan is a week-long program authored by a trainer. Content is
// immutable once assigned; only AssignedClientIDs and IsArchived change.
type TrainingPlan struct {
	ID                primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	TrainerID         primitive.ObjectID   `bson:"trainerId" json:"trainerId"` // Who created the plan
	Name              string               `bson:"name" json:"name"`
	Description       string               `bson:"description,omitempty" json:"description,omitempty"`
	Days              []PlanDay            `bson:"days" json:"days"`
	WeeklyCost        float64              `bson:"weeklyCost" json:"weeklyCost"`
	IsTemplate        bool                 `bson:"isTemplate" json:"isTemplate"`
	IsArchived        bool                 `bson:"isArchived" json:"isArchived"`
	AssignedClientIDs []primitive.ObjectID `bson:"assignedClientIds,omitempty" json:"assignedClientIds,omitempty"`
	CreatedAt         time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time            `bson:"updatedAt" json:"updatedAt"`
}

var ErrPlanHasNoDays = errors.New("plan has no days")

// ValidateDays checks the day array: at least one slot, indexes within
// 1..7 and unique. Missing indexes are treated as rest days.
func (p *TrainingPlan) ValidateDays() error {
	if len(p.Days) == 0 {
		return ErrPlanHasNoDays
	}
	seen := make(map[int]bool, len(p.Days))
	for _, d := range p.Days {
		if d.DayIndex < 1 || d.DayIndex > DaysPerWeek {
			return fmt.Errorf("day index %d out of range 1..%d", d.DayIndex, DaysPerWeek)
		}
		if seen[d.DayIndex] {
			return fmt.Errorf("duplicate day index %d", d.DayIndex)
		}
		seen[d.DayIndex] = true
	}
	return nil
}

// Day returns the slot for dayIndex, or a rest day if the plan leaves it empty.
func (p *TrainingPlan) Day(dayIndex int) PlanDay {
	for _, d := range p.Days {
		if d.DayIndex == dayIndex {
			return d
		}
	}
	return PlanDay{DayIndex: dayIndex, IsRestDay: true}
}

// LastWorkoutDayIndex returns the highest day index that is not a rest day,
// or 0 when the plan is all rest.
func (p *TrainingPlan) LastWorkoutDayIndex() int {
	last := 0
	for _, d := range p.Days {
		if !d.IsRestDay && d.DayIndex > last {
			last = d.DayIndex
		}
	}
	return last
}

// HasClient reports whether clientID is in the assigned set.
func (p *TrainingPlan) HasClient(clientID primitive.ObjectID) bool {
	for _, id := range p.AssignedClientIDs {
		if id == clientID {
			return true
		}
	}
	return false
}
