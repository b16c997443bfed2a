// internal/repository/mongo/workout_log_repo.go
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
	"github.com/bjelicb/kinetix-backend-sub000/internal/repository"
)

const workoutLogCollectionName = "workout_logs"

// duplicateKeyCode is the server error code for a unique index violation.
const duplicateKeyCode = 11000

// mongoWorkoutLogRepository implements repository.WorkoutLogRepository
type mongoWorkoutLogRepository struct {
	collection *mongo.Collection
}

// NewMongoWorkoutLogRepository creates a new WorkoutLog repository.
func NewMongoWorkoutLogRepository(db *mongo.Database) repository.WorkoutLogRepository {
	return &mongoWorkoutLogRepository{
		collection: db.Collection(workoutLogCollectionName),
	}
}

// InsertMany does an unordered insert so one colliding day does not stop the
// rest of the week from being written.
func (r *mongoWorkoutLogRepository) InsertMany(ctx context.Context, logs []domain.WorkoutLog) (int, error) {
	if len(logs) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(logs))
	for i := range logs {
		if logs[i].ID.IsZero() {
			logs[i].ID = primitive.NewObjectID()
		}
		logs[i].CreatedAt = now
		logs[i].UpdatedAt = now
		if logs[i].Exercises == nil {
			logs[i].Exercises = []domain.ExerciseLog{}
		}
		docs = append(docs, logs[i])
	}

	result, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	inserted := 0
	if result != nil {
		inserted = len(result.InsertedIDs)
	}
	if err == nil {
		return inserted, nil
	}

	var bulkErr mongo.BulkWriteException
	if errors.As(err, &bulkErr) && bulkErr.WriteConcernError == nil && len(bulkErr.WriteErrors) > 0 {
		for _, we := range bulkErr.WriteErrors {
			if we.Code != duplicateKeyCode {
				return inserted, err
			}
		}
		return len(logs) - len(bulkErr.WriteErrors), fmt.Errorf("%d of %d workout logs: %w", len(bulkErr.WriteErrors), len(logs), repository.ErrDuplicate)
	}
	return inserted, err
}

// GetByID retrieves a single workout log by its ID.
func (r *mongoWorkoutLogRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.WorkoutLog, error) {
	var log domain.WorkoutLog
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&log); err != nil {
		return nil, notFound(err)
	}
	return &log, nil
}

// GetByClientAndDate looks up the log for one calendar day.
func (r *mongoWorkoutLogRepository) GetByClientAndDate(ctx context.Context, clientID primitive.ObjectID, day time.Time) (*domain.WorkoutLog, error) {
	var log domain.WorkoutLog
	filter := bson.M{"clientId": clientID, "workoutDate": day}
	if err := r.collection.FindOne(ctx, filter).Decode(&log); err != nil {
		return nil, notFound(err)
	}
	return &log, nil
}

// GetByClientBetween returns logs for [from, to) sorted by date.
func (r *mongoWorkoutLogRepository) GetByClientBetween(ctx context.Context, clientID primitive.ObjectID, from, to time.Time) ([]domain.WorkoutLog, error) {
	filter := bson.M{
		"clientId":    clientID,
		"workoutDate": bson.M{"$gte": from, "$lt": to},
	}
	return r.find(ctx, filter)
}

// GetByClientAndPlan returns every log a plan generated for a client.
func (r *mongoWorkoutLogRepository) GetByClientAndPlan(ctx context.Context, clientID, planID primitive.ObjectID) ([]domain.WorkoutLog, error) {
	return r.find(ctx, bson.M{"clientId": clientID, "planId": planID})
}

func (r *mongoWorkoutLogRepository) find(ctx context.Context, filter bson.M) ([]domain.WorkoutLog, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "workoutDate", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	logs := []domain.WorkoutLog{}
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// UpdateTemplate rewrites the plan-derived fields only.
func (r *mongoWorkoutLogRepository) UpdateTemplate(ctx context.Context, log *domain.WorkoutLog) error {
	exercises := log.Exercises
	if exercises == nil {
		exercises = []domain.ExerciseLog{}
	}
	update := bson.M{"$set": bson.M{
		"planId":      log.PlanID,
		"trainerId":   log.TrainerID,
		"workoutDate": log.WorkoutDate,
		"dayIndex":    log.DayIndex,
		"workoutName": log.WorkoutName,
		"isRestDay":   log.IsRestDay,
		"exercises":   exercises,
		"updatedAt":   time.Now().UTC(),
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": log.ID}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("workout log %s: %w", log.ID.Hex(), repository.ErrDuplicate)
		}
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Update writes the completion state of a log.
func (r *mongoWorkoutLogRepository) Update(ctx context.Context, log *domain.WorkoutLog) error {
	log.UpdatedAt = time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"exercises":    log.Exercises,
		"isCompleted":  log.IsCompleted,
		"isMissed":     log.IsMissed,
		"startedAt":    log.StartedAt,
		"completedAt":  log.CompletedAt,
		"isSuspicious": log.IsSuspicious,
		"updatedAt":    log.UpdatedAt,
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": log.ID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeletePendingForPlan removes logs that still carry no outcome.
func (r *mongoWorkoutLogRepository) DeletePendingForPlan(ctx context.Context, clientID, planID primitive.ObjectID) (int, error) {
	filter := bson.M{
		"clientId":    clientID,
		"planId":      planID,
		"isCompleted": false,
		"isMissed":    false,
	}
	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int(result.DeletedCount), nil
}

// FindOverdue returns pending non-rest logs dated before day.
func (r *mongoWorkoutLogRepository) FindOverdue(ctx context.Context, day time.Time) ([]domain.WorkoutLog, error) {
	filter := bson.M{
		"workoutDate": bson.M{"$lt": day},
		"isCompleted": false,
		"isMissed":    false,
		"isRestDay":   bson.M{"$ne": true},
	}
	return r.find(ctx, filter)
}

// MarkMissed flips the given logs to missed unless they were resolved meanwhile.
func (r *mongoWorkoutLogRepository) MarkMissed(ctx context.Context, ids []primitive.ObjectID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	filter := bson.M{
		"_id":         bson.M{"$in": ids},
		"isCompleted": false,
		"isMissed":    false,
	}
	update := bson.M{"$set": bson.M{"isMissed": true, "updatedAt": time.Now().UTC()}}
	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return int(result.ModifiedCount), nil
}

func (r *mongoWorkoutLogRepository) SetMissed(ctx context.Context, id primitive.ObjectID) (bool, error) {
	filter := bson.M{"_id": id, "isMissed": false}
	update := bson.M{"$set": bson.M{
		"isMissed":    true,
		"isCompleted": false,
		"completedAt": nil,
		"updatedAt":   time.Now().UTC(),
	}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

// CountByClientBetween groups non-rest logs in [from, to) by client.
func (r *mongoWorkoutLogRepository) CountByClientBetween(ctx context.Context, from, to time.Time) ([]repository.WeeklyAdherence, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"workoutDate": bson.M{"$gte": from, "$lt": to},
			"isRestDay":   bson.M{"$ne": true},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$clientId",
			"scheduled": bson.M{"$sum": 1},
			"completed": bson.M{"$sum": bson.M{"$cond": bson.A{"$isCompleted", 1, 0}}},
			"missed":    bson.M{"$sum": bson.M{"$cond": bson.A{"$isMissed", 1, 0}}},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []repository.WeeklyAdherence{}
	if err = cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EnsureWorkoutLogIndexes creates necessary indexes. Call during startup.
func EnsureWorkoutLogIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// One log per client per calendar day
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "workoutDate", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "clientId", Value: 1}, {Key: "planId", Value: 1}},
		},
		{
			// Sweeper scan
			Keys: bson.D{{Key: "workoutDate", Value: 1}, {Key: "isCompleted", Value: 1}, {Key: "isMissed", Value: 1}},
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
