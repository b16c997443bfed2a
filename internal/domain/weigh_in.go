package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WeighIn is a client's body-weight entry for one calendar day. Never mutated.
type WeighIn struct {
	ID       primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ClientID primitive.ObjectID  `bson:"clientId" json:"clientId"`
	PlanID   *primitive.ObjectID `bson:"planId,omitempty" json:"planId,omitempty"`
	Date     time.Time           `bson:"date" json:"date"` // UTC midnight
	WeightKg float64             `bson:"weightKg" json:"weightKg"`

	// IsMandatory is set when the date is the Monday of the active plan week.
	IsMandatory bool `bson:"isMandatory" json:"isMandatory"`

	// Spike detection against the most recent earlier weigh-in.
	PreviousWeightKg *float64 `bson:"previousWeightKg,omitempty" json:"previousWeightKg,omitempty"`
	ChangePercent    float64  `bson:"changePercent" json:"changePercent"`
	IsWeightSpike    bool     `bson:"isWeightSpike" json:"isWeightSpike"`
	IsFlagged        bool     `bson:"isFlagged" json:"isFlagged"`
	SpikeMessage     string   `bson:"spikeMessage,omitempty" json:"spikeMessage,omitempty"`

	PhotoObjectKey string    `bson:"photoObjectKey,omitempty" json:"-"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
}
