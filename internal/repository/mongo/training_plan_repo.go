// internal/repository/mongo/training_plan_repo.go
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bjelicb/kinetix-backend-sub000/internal/domain"
	"github.com/bjelicb/kinetix-backend-sub000/internal/repository"
)

const trainingPlanCollectionName = "training_plans"

// mongoTrainingPlanRepository implements repository.TrainingPlanRepository
type mongoTrainingPlanRepository struct {
	collection *mongo.Collection
}

// NewMongoTrainingPlanRepository creates a new TrainingPlan repository.
func NewMongoTrainingPlanRepository(db *mongo.Database) repository.TrainingPlanRepository {
	return &mongoTrainingPlanRepository{
		collection: db.Collection(trainingPlanCollectionName),
	}
}

// Create inserts a new training plan.
func (r *mongoTrainingPlanRepository) Create(ctx context.Context, plan *domain.TrainingPlan) (primitive.ObjectID, error) {
	if plan.TrainerID == primitive.NilObjectID || plan.Name == "" {
		return primitive.NilObjectID, errors.New("plan requires trainerId and name")
	}
	plan.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	if plan.AssignedClientIDs == nil {
		plan.AssignedClientIDs = []primitive.ObjectID{}
	}

	result, err := r.collection.InsertOne(ctx, plan)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted plan ID")
	}
	return insertedID, nil
}

// GetByID retrieves a single training plan by its ID.
func (r *mongoTrainingPlanRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error) {
	var plan domain.TrainingPlan
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&plan); err != nil {
		return nil, notFound(err)
	}
	return &plan, nil
}

// GetByTrainerID lists a trainer's plans, newest first.
func (r *mongoTrainingPlanRepository) GetByTrainerID(ctx context.Context, trainerID primitive.ObjectID, includeArchived bool) ([]domain.TrainingPlan, error) {
	filter := bson.M{"trainerId": trainerID}
	if !includeArchived {
		filter["isArchived"] = bson.M{"$ne": true}
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	plans := []domain.TrainingPlan{}
	if err = cursor.All(ctx, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// AddAssignedClient adds clientID to the plan's assigned set.
func (r *mongoTrainingPlanRepository) AddAssignedClient(ctx context.Context, planID, clientID primitive.ObjectID) error {
	return r.updateOne(ctx, planID, bson.M{
		"$addToSet": bson.M{"assignedClientIds": clientID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	})
}

// RemoveAssignedClient removes clientID from the plan's assigned set.
func (r *mongoTrainingPlanRepository) RemoveAssignedClient(ctx context.Context, planID, clientID primitive.ObjectID) error {
	return r.updateOne(ctx, planID, bson.M{
		"$pull": bson.M{"assignedClientIds": clientID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	})
}

// SetArchived toggles the soft-delete flag.
func (r *mongoTrainingPlanRepository) SetArchived(ctx context.Context, planID primitive.ObjectID, archived bool) error {
	return r.updateOne(ctx, planID, bson.M{
		"$set": bson.M{"isArchived": archived, "updatedAt": time.Now().UTC()},
	})
}

func (r *mongoTrainingPlanRepository) updateOne(ctx context.Context, planID primitive.ObjectID, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": planID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureTrainingPlanIndexes creates necessary indexes. Call during startup.
func EnsureTrainingPlanIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "trainerId", Value: 1}, {Key: "isArchived", Value: 1}},
		},
		{
			// Reverse lookup: which plans is a client on
			Keys: bson.D{{Key: "assignedClientIds", Value: 1}},
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
