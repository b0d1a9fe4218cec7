// internal/repository/mongo/workout_repo.go
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

const workoutCollectionName = "workouts"

// mongoWorkoutRepository implements repository.WorkoutRepository
type mongoWorkoutRepository struct {
	collection *mongo.Collection
}

// NewMongoWorkoutRepository creates a new Workout repository.
func NewMongoWorkoutRepository(db *mongo.Database) repository.WorkoutRepository {
	return &mongoWorkoutRepository{
		collection: db.Collection(workoutCollectionName),
	}
}

// Create inserts a new workout.
func (r *mongoWorkoutRepository) Create(ctx context.Context, workout *domain.Workout) (primitive.ObjectID, error) {
	if workout.TrainerID == primitive.NilObjectID || workout.ClientID == primitive.NilObjectID || workout.Title == "" {
		return primitive.NilObjectID, errors.New("workout requires trainerId, clientId, and title")
	}
	workout.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	workout.CreatedAt = now
	workout.UpdatedAt = now
	if workout.Status == "" {
		workout.Status = domain.WorkoutScheduled
	}

	result, err := r.collection.InsertOne(ctx, workout)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted workout ID")
	}
	return insertedID, nil
}

// GetByID retrieves a single workout by its ID.
func (r *mongoWorkoutRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Workout, error) {
	var workout domain.Workout
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&workout)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &workout, nil
}

func (r *mongoWorkoutRepository) find(ctx context.Context, filter bson.M) ([]domain.Workout, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "scheduledAt", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	workouts := []domain.Workout{}
	if err = cursor.All(ctx, &workouts); err != nil {
		return nil, err
	}
	return workouts, nil
}

// ListByClient returns every workout of a client profile, oldest schedule first.
func (r *mongoWorkoutRepository) ListByClient(ctx context.Context, clientID primitive.ObjectID) ([]domain.Workout, error) {
	return r.find(ctx, bson.M{"clientId": clientID})
}

// ListByTrainer returns every workout created by a trainer profile.
func (r *mongoWorkoutRepository) ListByTrainer(ctx context.Context, trainerID primitive.ObjectID) ([]domain.Workout, error) {
	return r.find(ctx, bson.M{"trainerId": trainerID})
}

// notStartedFilter matches a workout that is still purely scheduled.
func notStartedFilter(id primitive.ObjectID) bson.M {
	return bson.M{
		"_id":       id,
		"status":    domain.WorkoutScheduled,
		"startedAt": bson.M{"$exists": false},
	}
}

// UpdatePlan rewrites the plan of a workout that has not been started.
func (r *mongoWorkoutRepository) UpdatePlan(ctx context.Context, workout *domain.Workout) error {
	if workout.ID == primitive.NilObjectID {
		return errors.New("workout ID is required for update")
	}

	// TrainerID and ClientID are never changed here.
	updateDoc := bson.M{
		"$set": bson.M{
			"title":       workout.Title,
			"description": workout.Description,
			"scheduledAt": workout.ScheduledAt,
			"exercises":   workout.Exercises,
			"notes":       workout.Notes,
			"updatedAt":   time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, notStartedFilter(workout.ID), updateDoc)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return r.missOrConflict(ctx, workout.ID)
	}
	return nil
}

// MarkStarted sets startedAt and flips status to in_progress, once.
func (r *mongoWorkoutRepository) MarkStarted(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	update := bson.M{
		"$set": bson.M{
			"startedAt": at,
			"status":    domain.WorkoutInProgress,
			"updatedAt": time.Now().UTC(),
		},
	}
	result, err := r.collection.UpdateOne(ctx, notStartedFilter(id), update)
	if err != nil {
		return false, err
	}
	if result.MatchedCount == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// MarkCompleted writes the completion in a single conditional update so that
// concurrent completions of the same workout can only succeed once.
func (r *mongoWorkoutRepository) MarkCompleted(ctx context.Context, id primitive.ObjectID, completion domain.Completion) error {
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": bson.A{domain.WorkoutScheduled, domain.WorkoutInProgress}},
	}
	exerciseData := completion.ExerciseData
	if exerciseData == nil {
		exerciseData = []domain.ExercisePerformance{}
	}
	update := bson.M{
		"$set": bson.M{
			"completedAt":  completion.CompletedAt,
			"duration":     completion.Duration,
			"exerciseData": exerciseData,
			"status":       domain.WorkoutCompleted,
			"updatedAt":    time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

func (r *mongoWorkoutRepository) missOrConflict(ctx context.Context, id primitive.ObjectID) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return repository.ErrConflict
}

func (r *mongoWorkoutRepository) CountCompletedByClient(ctx context.Context, clientID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"clientId": clientID, "status": domain.WorkoutCompleted})
}

// Delete removes a workout regardless of its status.
func (r *mongoWorkoutRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func workoutIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			// Client schedule and history scans.
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "scheduledAt", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}, {Key: "scheduledAt", Value: 1}},
			Options: options.Index(),
		},
	}
}
