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

const userCollectionName = "users"

// mongoUserRepository implements the repository.UserRepository interface using MongoDB.
type mongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new instance of mongoUserRepository.
// It expects a connected *mongo.Database instance.
func NewMongoUserRepository(db *mongo.Database) repository.UserRepository {
	return &mongoUserRepository{
		collection: db.Collection(userCollectionName),
	}
}

// Create inserts a new user into the database.
func (r *mongoUserRepository) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	if user.Email == "" || user.PasswordHash == "" || user.Role == "" {
		return primitive.NilObjectID, errors.New("user email, password hash, and role are required")
	}

	user.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		// email carries a unique index
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, fmt.Errorf("user with this email: %w", repository.ErrDuplicate)
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByEmail retrieves a user by their email address.
func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	if err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetByID retrieves a user by their MongoDB ObjectID.
func (r *mongoUserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	var user domain.User
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// AddClientIDToTrainer adds a client's ID to a trainer's ClientIDs array.
func (r *mongoUserRepository) AddClientIDToTrainer(ctx context.Context, trainerID, clientID primitive.ObjectID) error {
	filter := bson.M{"_id": trainerID, "role": domain.RoleTrainer}
	update := bson.M{
		"$addToSet": bson.M{"clientIds": clientID}, // $addToSet prevents duplicates
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	// ModifiedCount is 0 if the clientID was already in the set, which is okay.
	return nil
}

// GetClientsByTrainerID retrieves all client users associated with a specific trainer.
func (r *mongoUserRepository) GetClientsByTrainerID(ctx context.Context, trainerID primitive.ObjectID) ([]domain.User, error) {
	filter := bson.M{"role": domain.RoleClient, "trainerId": trainerID}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

// SetTrainerForClient sets the TrainerID field for a specific client user.
func (r *mongoUserRepository) SetTrainerForClient(ctx context.Context, clientID, trainerID primitive.ObjectID) error {
	filter := bson.M{"_id": clientID, "role": domain.RoleClient}
	update := bson.M{
		"$set": bson.M{
			"trainerId": trainerID,
			"updatedAt": time.Now().UTC(),
		},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListClients returns every user with the client role, used by batch jobs.
func (r *mongoUserRepository) ListClients(ctx context.Context) ([]domain.User, error) {
	return r.find(ctx, bson.M{"role": domain.RoleClient}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func (r *mongoUserRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.User, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []domain.User{}
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// AppendPlanHistory adds an entry to the client's plan history. An existing
// entry for the same plan is replaced so reassignment never duplicates it.
func (r *mongoUserRepository) AppendPlanHistory(ctx context.Context, clientID primitive.ObjectID, entry domain.PlanHistoryEntry) error {
	// Aggregation-pipeline update so the filter and append happen in one write.
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"planHistory": bson.M{"$concatArrays": bson.A{
				bson.M{"$filter": bson.M{
					"input": bson.M{"$ifNull": bson.A{"$planHistory", bson.A{}}},
					"as":    "h",
					"cond":  bson.M{"$ne": bson.A{"$$h.planId", entry.PlanID}},
				}},
				bson.A{bson.M{"$literal": entry}},
			}},
			"updatedAt": time.Now().UTC(),
		}}},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": clientID, "role": domain.RoleClient}, pipeline)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RemovePlanHistory pulls every history entry for planID.
func (r *mongoUserRepository) RemovePlanHistory(ctx context.Context, clientID, planID primitive.ObjectID) error {
	update := bson.M{
		"$pull": bson.M{"planHistory": bson.M{"planId": planID}},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": clientID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ClearCurrentPlanIf unsets currentPlanId only while it still points at planID.
func (r *mongoUserRepository) ClearCurrentPlanIf(ctx context.Context, clientID, planID primitive.ObjectID) (bool, error) {
	filter := bson.M{"_id": clientID, "currentPlanId": planID}
	update := bson.M{
		"$unset": bson.M{"currentPlanId": ""},
		"$set":   bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount > 0, nil
}

// AdvanceCurrentPlan is a compare-and-set on currentPlanId.
func (r *mongoUserRepository) AdvanceCurrentPlan(ctx context.Context, clientID primitive.ObjectID, expected *primitive.ObjectID, next primitive.ObjectID) (bool, error) {
	filter := bson.M{"_id": clientID}
	if expected == nil {
		// Matches both a missing field and an explicit null.
		filter["currentPlanId"] = nil
	} else {
		filter["currentPlanId"] = *expected
	}
	update := bson.M{
		"$set": bson.M{
			"currentPlanId":     next,
			"nextWeekRequested": false,
			"updatedAt":         time.Now().UTC(),
		},
		"$unset": bson.M{"nextWeekRequestedAt": ""},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}

// SetNextWeekRequested raises the flag a trainer sees when the client ran out of assigned weeks.
func (r *mongoUserRepository) SetNextWeekRequested(ctx context.Context, clientID primitive.ObjectID, at time.Time) error {
	update := bson.M{"$set": bson.M{
		"nextWeekRequested":   true,
		"nextWeekRequestedAt": at,
		"updatedAt":           time.Now().UTC(),
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": clientID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ApplyPenalty adds to both balances and appends to the history in a single
// document update, so concurrent charges never lose each other.
func (r *mongoUserRepository) ApplyPenalty(ctx context.Context, clientID primitive.ObjectID, entry domain.PenaltyEntry) (*domain.User, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"balance":        bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$balance", 0}}, entry.Amount}},
			"monthlyBalance": bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$monthlyBalance", 0}}, entry.Amount}},
			"penaltyHistory": bson.M{"$concatArrays": bson.A{
				bson.M{"$ifNull": bson.A{"$penaltyHistory", bson.A{}}},
				bson.A{bson.M{"$literal": entry}},
			}},
			"updatedAt": time.Now().UTC(),
		}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user domain.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": clientID}, pipeline, opts).Decode(&user)
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// RemovePenaltiesForPlan strips the plan's penalty lines and refunds their
// sum from both balances, floored at zero.
func (r *mongoUserRepository) RemovePenaltiesForPlan(ctx context.Context, clientID, planID primitive.ObjectID) ([]domain.PenaltyEntry, error) {
	history := bson.M{"$ifNull": bson.A{"$penaltyHistory", bson.A{}}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"_removedPenalties": bson.M{"$filter": bson.M{
				"input": history,
				"as":    "p",
				"cond":  bson.M{"$eq": bson.A{"$$p.planId", planID}},
			}},
		}}},
		{{Key: "$set", Value: bson.M{
			"balance": bson.M{"$max": bson.A{0, bson.M{"$subtract": bson.A{
				bson.M{"$ifNull": bson.A{"$balance", 0}},
				bson.M{"$sum": "$_removedPenalties.amount"},
			}}}},
			"monthlyBalance": bson.M{"$max": bson.A{0, bson.M{"$subtract": bson.A{
				bson.M{"$ifNull": bson.A{"$monthlyBalance", 0}},
				bson.M{"$sum": "$_removedPenalties.amount"},
			}}}},
			"penaltyHistory": bson.M{"$filter": bson.M{
				"input": history,
				"as":    "p",
				"cond":  bson.M{"$ne": bson.A{"$$p.planId", planID}},
			}},
			"updatedAt": time.Now().UTC(),
		}}},
		{{Key: "$unset", Value: "_removedPenalties"}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var before domain.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": clientID}, pipeline, opts).Decode(&before)
	if err != nil {
		return nil, notFound(err)
	}

	removed := []domain.PenaltyEntry{}
	for _, p := range before.PenaltyHistory {
		if p.PlanID != nil && *p.PlanID == planID {
			removed = append(removed, p)
		}
	}
	return removed, nil
}

// ResetBalance zeroes both balances and records when it happened.
func (r *mongoUserRepository) ResetBalance(ctx context.Context, clientID primitive.ObjectID, at time.Time) (*domain.User, error) {
	update := bson.M{"$set": bson.M{
		"balance":          0,
		"monthlyBalance":   0,
		"lastBalanceReset": at,
		"updatedAt":        time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user domain.User
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": clientID}, update, opts).Decode(&user); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// RecordCompletedWorkout bumps the completion counters.
func (r *mongoUserRepository) RecordCompletedWorkout(ctx context.Context, clientID primitive.ObjectID) error {
	update := bson.M{
		"$inc": bson.M{"totalWorkoutsCompleted": 1, "currentStreak": 1},
		"$set": bson.M{"consecutiveMissedWorkouts": 0, "updatedAt": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": clientID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ApplyWeeklyPenaltyStatus writes the outcome of the weekly classification.
func (r *mongoUserRepository) ApplyWeeklyPenaltyStatus(ctx context.Context, clientID primitive.ObjectID, upd repository.WeeklyPenaltyUpdate) error {
	set := bson.M{
		"isPenaltyMode": upd.IsPenaltyMode,
		"updatedAt":     time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if upd.AddConsecutiveMisses > 0 {
		update["$inc"] = bson.M{"consecutiveMissedWorkouts": upd.AddConsecutiveMisses}
	} else {
		set["consecutiveMissedWorkouts"] = 0
	}
	if upd.ResetStreak {
		set["currentStreak"] = 0
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": clientID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureUserIndexes creates necessary indexes for the users collection.
// Call this once during application startup.
func EnsureUserIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "role", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}}, // Index for finding clients by trainer
			Options: options.Index().SetSparse(true),      // Sparse because not all users have trainerId
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
