package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ExerciseLog holds the prescription copied from the plan plus what the
// client actually did.
type ExerciseLog struct {
	Name        string  `bson:"name" json:"name"`
	PlannedSets int     `bson:"plannedSets,omitempty" json:"plannedSets,omitempty"`
	PlannedReps string  `bson:"plannedReps,omitempty" json:"plannedReps,omitempty"`
	ActualSets  int     `bson:"actualSets" json:"actualSets"`
	ActualReps  []int   `bson:"actualReps,omitempty" json:"actualReps,omitempty"`
	WeightKg    float64 `bson:"weightKg,omitempty" json:"weightKg,omitempty"`
	IsCompleted bool    `bson:"isCompleted" json:"isCompleted"`
	Notes       string  `bson:"notes,omitempty" json:"notes,omitempty"`
}

// WorkoutLog is the single record for one client on one calendar day.
// (ClientID, WorkoutDate) is unique; WorkoutDate is always UTC midnight.
type WorkoutLog struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ClientID    primitive.ObjectID `bson:"clientId" json:"clientId"`
	TrainerID   primitive.ObjectID `bson:"trainerId" json:"trainerId"`
	PlanID      primitive.ObjectID `bson:"planId" json:"planId"`
	WorkoutDate time.Time          `bson:"workoutDate" json:"workoutDate"`
	DayIndex    int                `bson:"dayIndex" json:"dayIndex"` // 1..7 within the plan week
	WorkoutName string             `bson:"workoutName,omitempty" json:"workoutName,omitempty"`
	IsRestDay   bool               `bson:"isRestDay" json:"isRestDay"`
	Exercises   []ExerciseLog      `bson:"exercises" json:"exercises"`

	// IsCompleted and IsMissed are mutually exclusive.
	IsCompleted bool       `bson:"isCompleted" json:"isCompleted"`
	IsMissed    bool       `bson:"isMissed" json:"isMissed"`
	StartedAt   *time.Time `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	CompletedAt *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`

	// IsSuspicious marks a completion logged implausibly fast after start.
	IsSuspicious bool `bson:"isSuspicious" json:"isSuspicious"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// IsPending reports whether the log is neither completed nor missed.
func (l *WorkoutLog) IsPending() bool {
	return !l.IsCompleted && !l.IsMissed
}

// TemplateFromPlanDay converts a plan slot into the empty per-exercise records of a log.
func TemplateFromPlanDay(day PlanDay) []ExerciseLog {
	if day.IsRestDay || len(day.Exercises) == 0 {
		return []ExerciseLog{}
	}
	out := make([]ExerciseLog, 0, len(day.Exercises))
	for _, ex := range day.Exercises {
		out = append(out, ExerciseLog{
			Name:        ex.Name,
			PlannedSets: ex.Sets,
			PlannedReps: ex.Reps,
		})
	}
	return out
}
