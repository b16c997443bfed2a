package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PenaltyStatus classifies a client's week.
type PenaltyStatus string

const (
	PenaltyStatusNone        PenaltyStatus = "NONE"
	PenaltyStatusWarning     PenaltyStatus = "WARNING"
	PenaltyStatusPenaltyMode PenaltyStatus = "PENALTY_MODE"
)

// PenaltyRecord summarises one client's adherence for one ISO week.
// Written only by the weekly penalty job, unique on (ClientID, WeekStart).
type PenaltyRecord struct {
	ID                primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ClientID          primitive.ObjectID  `bson:"clientId" json:"clientId"`
	TrainerID         *primitive.ObjectID `bson:"trainerId,omitempty" json:"trainerId,omitempty"`
	WeekStart         time.Time           `bson:"weekStart" json:"weekStart"`
	WeekEnd           time.Time           `bson:"weekEnd" json:"weekEnd"`
	ISOYear           int                 `bson:"isoYear" json:"isoYear"`
	ISOWeek           int                 `bson:"isoWeek" json:"isoWeek"`
	ScheduledWorkouts int                 `bson:"scheduledWorkouts" json:"scheduledWorkouts"`
	CompletedWorkouts int                 `bson:"completedWorkouts" json:"completedWorkouts"`
	MissedWorkouts    int                 `bson:"missedWorkouts" json:"missedWorkouts"`
	CompletionRate    float64             `bson:"completionRate" json:"completionRate"` // percent, 0..100
	Status            PenaltyStatus       `bson:"status" json:"status"`
	CreatedAt         time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time           `bson:"updatedAt" json:"updatedAt"`
}
