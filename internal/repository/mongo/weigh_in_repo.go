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

const weighInCollectionName = "weigh_ins"

type mongoWeighInRepository struct {
	collection *mongo.Collection
}

// NewMongoWeighInRepository creates a new WeighIn repository.
func NewMongoWeighInRepository(db *mongo.Database) repository.WeighInRepository {
	return &mongoWeighInRepository{
		collection: db.Collection(weighInCollectionName),
	}
}

func (r *mongoWeighInRepository) Create(ctx context.Context, w *domain.WeighIn) (primitive.ObjectID, error) {
	w.ID = primitive.NewObjectID()
	w.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, w)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, fmt.Errorf("weigh-in for %s: %w", w.Date.Format("2006-01-02"), repository.ErrDuplicate)
		}
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted weigh-in ID")
	}
	return insertedID, nil
}

func (r *mongoWeighInRepository) GetLatestBefore(ctx context.Context, clientID primitive.ObjectID, day time.Time) (*domain.WeighIn, error) {
	filter := bson.M{"clientId": clientID, "date": bson.M{"$lt": day}}
	opts := options.FindOne().SetSort(bson.D{{Key: "date", Value: -1}})

	var w domain.WeighIn
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&w); err != nil {
		return nil, notFound(err)
	}
	return &w, nil
}

// GetByClient returns the newest weigh-ins first. limit <= 0 means no limit.
func (r *mongoWeighInRepository) GetByClient(ctx context.Context, clientID primitive.ObjectID, limit int) ([]domain.WeighIn, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}
	cursor, err := r.collection.Find(ctx, bson.M{"clientId": clientID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []domain.WeighIn{}
	if err = cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EnsureWeighInIndexes creates necessary indexes. Call during startup.
func EnsureWeighInIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
