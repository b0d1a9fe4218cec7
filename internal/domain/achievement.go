package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Achievement is a milestone derived from a client's workout history.
type Achievement struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Date        *time.Time `json:"date,omitempty"`
	Icon        string     `json:"icon,omitempty"`
}

// PersonalBest is the heaviest completed set of one exercise.
type PersonalBest struct {
	ExerciseID primitive.ObjectID `json:"exerciseId"`
	Exercise   string             `json:"exercise"`
	Value      float64            `json:"value"`
	Unit       string             `json:"unit"`
	Date       time.Time          `json:"date"`
}

// WeightPoint is a single point of the weight trend series.
type WeightPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}
