package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FitnessLevel of a client as judged by the trainer.
type FitnessLevel string

const (
	FitnessBeginner     FitnessLevel = "beginner"
	FitnessIntermediate FitnessLevel = "intermediate"
	FitnessAdvanced     FitnessLevel = "advanced"
)

// Trainer is the role profile attached 1:1 to a trainer User.
type Trainer struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID `bson:"userId" json:"userId"`
	Bio             string             `bson:"bio,omitempty" json:"bio,omitempty"`
	Specializations string             `bson:"specializations,omitempty" json:"specializations,omitempty"`
	YearsExperience int                `bson:"yearsExperience,omitempty" json:"yearsExperience,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Client is the role profile attached 1:1 to a client User.
type Client struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID       primitive.ObjectID  `bson:"userId" json:"userId"`
	TrainerID    *primitive.ObjectID `bson:"trainerId,omitempty" json:"trainerId,omitempty"` // Trainer profile managing this client
	Height       float64             `bson:"height,omitempty" json:"height,omitempty"`
	Weight       float64             `bson:"weight,omitempty" json:"weight,omitempty"` // Latest known weight
	Age          int                 `bson:"age,omitempty" json:"age,omitempty"`
	FitnessLevel FitnessLevel        `bson:"fitnessLevel,omitempty" json:"fitnessLevel,omitempty"`
	Goals        string              `bson:"goals,omitempty" json:"goals,omitempty"`
	HealthNotes  string              `bson:"healthNotes,omitempty" json:"healthNotes,omitempty"`
	CreatedAt    time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// HasTrainer reports whether the client is already managed by some trainer.
func (c *Client) HasTrainer() bool {
	return c.TrainerID != nil && *c.TrainerID != primitive.NilObjectID
}

// WeightEntry is a single body-weight measurement of a client.
type WeightEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ClientID  primitive.ObjectID `bson:"clientId" json:"clientId"`
	Date      time.Time          `bson:"date" json:"date"`
	Value     float64            `bson:"value" json:"value"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
