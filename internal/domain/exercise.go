// internal/domain/exercise.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Exercise represents a single exercise definition in the library.
type Exercise struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TrainerID    primitive.ObjectID `bson:"trainerId" json:"trainerId"` // Trainer profile who owns this exercise
	Name         string             `bson:"name" json:"name"`
	Description  string             `bson:"description,omitempty" json:"description,omitempty"`
	Instructions string             `bson:"instructions,omitempty" json:"instructions,omitempty"`
	MuscleGroup  string             `bson:"muscleGroup,omitempty" json:"muscleGroup,omitempty"` // e.g., "Chest", "Legs", "Back"
	Difficulty   string             `bson:"difficulty,omitempty" json:"difficulty,omitempty"`
	Equipment    string             `bson:"equipment,omitempty" json:"equipment,omitempty"`
	MediaKey     string             `bson:"mediaKey,omitempty" json:"-"` // Object key of the demo video/image in the bucket
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}
