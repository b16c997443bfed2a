package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/multierr"

	"github.com/bjelicb/kinetix-backend-sub000/internal/repository"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// ConnectDB establishes a connection to MongoDB using the provided URI.
// It returns the mongo.Client which can be used to access databases and collections.
func ConnectDB(uri string) (*mongo.Client, error) {
	// Set context with timeout for the connection attempt
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	// Ping the primary node to verify the connection. The initial connect can
	// succeed while the server is still unresponsive.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	if err = client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}

	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes of every collection. The unique indexes
// back the per-day invariants of workout logs, weigh-ins and penalty records,
// so a failure here is returned rather than only logged.
func EnsureIndexes(ctx context.Context, db *mongo.Database, log logrus.FieldLogger) error {
	var err error
	for name, ensure := range map[string]func(context.Context, *mongo.Collection) error{
		userCollectionName:          EnsureUserIndexes,
		trainingPlanCollectionName:  EnsureTrainingPlanIndexes,
		workoutLogCollectionName:    EnsureWorkoutLogIndexes,
		penaltyRecordCollectionName: EnsurePenaltyRecordIndexes,
		weighInCollectionName:       EnsureWeighInIndexes,
	} {
		if e := ensure(ctx, db.Collection(name)); e != nil {
			log.WithError(e).WithField("collection", name).Error("failed to create indexes")
			err = multierr.Append(err, e)
		}
	}
	return err
}

// notFound maps mongo.ErrNoDocuments to the repository sentinel.
func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	return err
}
