package mongo

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// ConnectDB establishes a connection to MongoDB using the provided URI.
// It returns the mongo.Client which can be used to access databases and collections.
func ConnectDB(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	// The initial connection might succeed while the server is unresponsive.
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

// Pinger adapts a client to the health check.
type Pinger struct {
	Client *mongo.Client
}

func (p Pinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the indexes of every collection used by the app.
// The unique indexes on users and profiles back the identity resolver's
// race handling, so failures are logged loudly.
func EnsureIndexes(ctx context.Context, db *mongo.Database) {
	ensure := func(collection *mongo.Collection, indexes []mongo.IndexModel) {
		if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
			log.WithField("collection", collection.Name()).Errorf("failed to create indexes: %s", err)
		}
	}
	ensure(db.Collection(userCollectionName), userIndexes())
	ensure(db.Collection(trainerCollectionName), profileIndexes())
	ensure(db.Collection(clientCollectionName), clientIndexes())
	ensure(db.Collection(exerciseCollectionName), exerciseIndexes())
	ensure(db.Collection(workoutCollectionName), workoutIndexes())
	ensure(db.Collection(weightCollectionName), weightIndexes())
	log.Debug("index creation process completed")
}
