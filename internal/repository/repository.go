package repository

import (
	"context"
	"fittrainer/backend/internal/domain"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound  = RepositoryError("not found")
	ErrDuplicate = RepositoryError("duplicate key")
	ErrConflict  = RepositoryError("state conflict") // Conditional update matched nothing
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
// Username, email and telegram id are unique; Create returns ErrDuplicate.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// ProfileRepository stores the role profiles attached to users.
type ProfileRepository interface {
	CreateTrainer(ctx context.Context, trainer *domain.Trainer) (primitive.ObjectID, error)
	CreateClient(ctx context.Context, client *domain.Client) (primitive.ObjectID, error)
	GetTrainerByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.Trainer, error)
	GetClientByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.Client, error)
	GetClientByID(ctx context.Context, id primitive.ObjectID) (*domain.Client, error)
	// AssignTrainer sets trainerId only while the client has none; otherwise ErrConflict.
	AssignTrainer(ctx context.Context, clientID, trainerID primitive.ObjectID) error
	SetClientWeight(ctx context.Context, clientID primitive.ObjectID, weight float64) error
	ListClientsByTrainer(ctx context.Context, trainerID primitive.ObjectID) ([]domain.Client, error)
	CountClientsByTrainer(ctx context.Context, trainerID primitive.ObjectID) (int64, error)
}

// ExerciseRepository is read-only reference data for workouts.
type ExerciseRepository interface {
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.Exercise, error)
}

// WorkoutRepository defines the interface for interacting with workout data.
type WorkoutRepository interface {
	Create(ctx context.Context, workout *domain.Workout) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Workout, error)
	ListByClient(ctx context.Context, clientID primitive.ObjectID) ([]domain.Workout, error)   // scheduledAt ascending
	ListByTrainer(ctx context.Context, trainerID primitive.ObjectID) ([]domain.Workout, error) // scheduledAt ascending
	// UpdatePlan rewrites title, description, schedule and exercises while the
	// workout is still scheduled and not started; otherwise ErrConflict.
	UpdatePlan(ctx context.Context, workout *domain.Workout) error
	// MarkStarted sets startedAt once. It reports false when the workout was
	// already started or is no longer startable.
	MarkStarted(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error)
	// MarkCompleted applies a completion once; ErrConflict if the workout is
	// already completed or missed.
	MarkCompleted(ctx context.Context, id primitive.ObjectID, completion domain.Completion) error
	CountCompletedByClient(ctx context.Context, clientID primitive.ObjectID) (int64, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// WeightRepository keeps a client's weight history.
type WeightRepository interface {
	Create(ctx context.Context, entry *domain.WeightEntry) (primitive.ObjectID, error)
	ListByClient(ctx context.Context, clientID primitive.ObjectID) ([]domain.WeightEntry, error) // date ascending
}
