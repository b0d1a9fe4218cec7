package mongo

import (
	"context"
	"errors"
	"fittrainer/backend/internal/domain"
	"fittrainer/backend/internal/repository"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	trainerCollectionName = "trainers"
	clientCollectionName  = "clients"
)

// mongoProfileRepository implements repository.ProfileRepository over the
// trainers and clients collections.
type mongoProfileRepository struct {
	trainers *mongo.Collection
	clients  *mongo.Collection
}

// NewMongoProfileRepository creates a new profile repository.
func NewMongoProfileRepository(db *mongo.Database) repository.ProfileRepository {
	return &mongoProfileRepository{
		trainers: db.Collection(trainerCollectionName),
		clients:  db.Collection(clientCollectionName),
	}
}

func insertedObjectID(result *mongo.InsertOneResult) (primitive.ObjectID, error) {
	id, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return id, nil
}

// CreateTrainer inserts the trainer profile of a user.
func (r *mongoProfileRepository) CreateTrainer(ctx context.Context, trainer *domain.Trainer) (primitive.ObjectID, error) {
	if trainer.UserID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("trainer profile requires userId")
	}
	trainer.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	trainer.CreatedAt = now
	trainer.UpdatedAt = now

	result, err := r.trainers.InsertOne(ctx, trainer)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	return insertedObjectID(result)
}

// CreateClient inserts the client profile of a user.
func (r *mongoProfileRepository) CreateClient(ctx context.Context, client *domain.Client) (primitive.ObjectID, error) {
	if client.UserID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("client profile requires userId")
	}
	client.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	client.CreatedAt = now
	client.UpdatedAt = now

	result, err := r.clients.InsertOne(ctx, client)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	return insertedObjectID(result)
}

func (r *mongoProfileRepository) GetTrainerByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.Trainer, error) {
	var trainer domain.Trainer
	if err := r.trainers.FindOne(ctx, bson.M{"userId": userID}).Decode(&trainer); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &trainer, nil
}

func (r *mongoProfileRepository) findClient(ctx context.Context, filter bson.M) (*domain.Client, error) {
	var client domain.Client
	if err := r.clients.FindOne(ctx, filter).Decode(&client); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &client, nil
}

func (r *mongoProfileRepository) GetClientByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.Client, error) {
	return r.findClient(ctx, bson.M{"userId": userID})
}

func (r *mongoProfileRepository) GetClientByID(ctx context.Context, id primitive.ObjectID) (*domain.Client, error) {
	return r.findClient(ctx, bson.M{"_id": id})
}

// AssignTrainer links a client to a trainer. The filter only matches clients
// without a trainer, so two trainers racing for one client can't both win.
func (r *mongoProfileRepository) AssignTrainer(ctx context.Context, clientID, trainerID primitive.ObjectID) error {
	filter := bson.M{
		"_id": clientID,
		"$or": bson.A{
			bson.M{"trainerId": bson.M{"$exists": false}},
			bson.M{"trainerId": nil},
		},
	}
	update := bson.M{"$set": bson.M{"trainerId": trainerID, "updatedAt": time.Now().UTC()}}

	result, err := r.clients.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		if _, err := r.GetClientByID(ctx, clientID); err != nil {
			return err
		}
		return repository.ErrConflict
	}
	return nil
}

// SetClientWeight stores the latest known weight on the profile.
func (r *mongoProfileRepository) SetClientWeight(ctx context.Context, clientID primitive.ObjectID, weight float64) error {
	update := bson.M{"$set": bson.M{"weight": weight, "updatedAt": time.Now().UTC()}}
	result, err := r.clients.UpdateOne(ctx, bson.M{"_id": clientID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListClientsByTrainer returns the clients a trainer manages, oldest first.
func (r *mongoProfileRepository) ListClientsByTrainer(ctx context.Context, trainerID primitive.ObjectID) ([]domain.Client, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.clients.Find(ctx, bson.M{"trainerId": trainerID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	clients := []domain.Client{}
	if err = cursor.All(ctx, &clients); err != nil {
		return nil, err
	}
	return clients, nil
}

func (r *mongoProfileRepository) CountClientsByTrainer(ctx context.Context, trainerID primitive.ObjectID) (int64, error) {
	return r.clients.CountDocuments(ctx, bson.M{"trainerId": trainerID})
}

func profileIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			// One profile per user.
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
}

func clientIndexes() []mongo.IndexModel {
	return append(profileIndexes(), mongo.IndexModel{
		Keys:    bson.D{{Key: "trainerId", Value: 1}},
		Options: options.Index().SetSparse(true),
	})
}
