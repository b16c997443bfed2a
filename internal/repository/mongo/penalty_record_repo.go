package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
	"github.com/bjelicb/kinetix-backend-sub000/internal/repository"
)

const penaltyRecordCollectionName = "penalty_records"

type mongoPenaltyRecordRepository struct {
	collection *mongo.Collection
}

// NewMongoPenaltyRecordRepository creates a new PenaltyRecord repository.
func NewMongoPenaltyRecordRepository(db *mongo.Database) repository.PenaltyRecordRepository {
	return &mongoPenaltyRecordRepository{
		collection: db.Collection(penaltyRecordCollectionName),
	}
}

// Upsert writes the week's record. Re-running the job for the same week
// overwrites the counts instead of creating a second record.
func (r *mongoPenaltyRecordRepository) Upsert(ctx context.Context, rec *domain.PenaltyRecord) error {
	now := time.Now().UTC()
	rec.UpdatedAt = now
	filter := bson.M{"clientId": rec.ClientID, "weekStart": rec.WeekStart}
	update := bson.M{
		"$set": bson.M{
			"trainerId":         rec.TrainerID,
			"weekEnd":           rec.WeekEnd,
			"isoYear":           rec.ISOYear,
			"isoWeek":           rec.ISOWeek,
			"scheduledWorkouts": rec.ScheduledWorkouts,
			"completedWorkouts": rec.CompletedWorkouts,
			"missedWorkouts":    rec.MissedWorkouts,
			"completionRate":    rec.CompletionRate,
			"status":            rec.Status,
			"updatedAt":         now,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var saved domain.PenaltyRecord
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&saved); err != nil {
		return err
	}
	rec.ID = saved.ID
	rec.CreatedAt = saved.CreatedAt
	return nil
}

// GetByClient returns the client's records, most recent week first.
func (r *mongoPenaltyRecordRepository) GetByClient(ctx context.Context, clientID primitive.ObjectID) ([]domain.PenaltyRecord, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "weekStart", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"clientId": clientID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []domain.PenaltyRecord{}
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *mongoPenaltyRecordRepository) GetByClientAndWeek(ctx context.Context, clientID primitive.ObjectID, weekStart time.Time) (*domain.PenaltyRecord, error) {
	var rec domain.PenaltyRecord
	filter := bson.M{"clientId": clientID, "weekStart": weekStart}
	if err := r.collection.FindOne(ctx, filter).Decode(&rec); err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// EnsurePenaltyRecordIndexes creates necessary indexes. Call during startup.
func EnsurePenaltyRecordIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "weekStart", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
