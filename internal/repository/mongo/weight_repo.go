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

const weightCollectionName = "weight_entries"

type mongoWeightRepository struct {
	collection *mongo.Collection
}

// NewMongoWeightRepository creates the weight history repository.
func NewMongoWeightRepository(db *mongo.Database) repository.WeightRepository {
	return &mongoWeightRepository{
		collection: db.Collection(weightCollectionName),
	}
}

func (r *mongoWeightRepository) Create(ctx context.Context, entry *domain.WeightEntry) (primitive.ObjectID, error) {
	if entry.ClientID == primitive.NilObjectID || entry.Value <= 0 {
		return primitive.NilObjectID, errors.New("weight entry requires clientId and a positive value")
	}
	entry.ID = primitive.NewObjectID()
	entry.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, entry)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return insertedObjectID(result)
}

func (r *mongoWeightRepository) ListByClient(ctx context.Context, clientID primitive.ObjectID) ([]domain.WeightEntry, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"clientId": clientID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	entries := []domain.WeightEntry{}
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func weightIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index(),
		},
	}
}
