package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkoutStatus is the persisted status of a workout.
type WorkoutStatus string

const (
	WorkoutScheduled  WorkoutStatus = "scheduled"
	WorkoutInProgress WorkoutStatus = "in_progress"
	WorkoutCompleted  WorkoutStatus = "completed"
	WorkoutMissed     WorkoutStatus = "missed" // Set by an external scheduling sweep only
)

// DefaultRestTime is applied to planned exercises that don't set one (seconds).
const DefaultRestTime = 60

// PlannedExercise is one entry of the plan a trainer attaches to a workout.
type PlannedExercise struct {
	ExerciseID primitive.ObjectID `bson:"exercise" json:"exerciseId"`
	Sets       int                `bson:"sets" json:"sets"`
	Reps       int                `bson:"reps" json:"reps"`
	Weight     float64            `bson:"weight" json:"weight"`
	RestTime   int                `bson:"restTime" json:"restTime"`                     // seconds
	Duration   *int               `bson:"duration,omitempty" json:"duration,omitempty"` // seconds, for timed exercises (planks etc.)
}

// SetPerformance is what the client actually did for one set.
type SetPerformance struct {
	SetNumber     int      `bson:"setNumber" json:"setNumber"`
	PlannedReps   int      `bson:"plannedReps" json:"plannedReps"`
	ActualReps    *int     `bson:"actualReps,omitempty" json:"actualReps,omitempty"`
	PlannedWeight float64  `bson:"plannedWeight" json:"plannedWeight"`
	ActualWeight  *float64 `bson:"actualWeight,omitempty" json:"actualWeight,omitempty"`
	Completed     bool     `bson:"completed" json:"completed"`
	Notes         string   `bson:"notes,omitempty" json:"notes,omitempty"`
}

// ExercisePerformance groups the set log of one planned exercise.
type ExercisePerformance struct {
	ExerciseID primitive.ObjectID `bson:"exerciseId" json:"exerciseId"`
	Sets       []SetPerformance   `bson:"sets" json:"sets"`
}

// Workout is a scheduled training session of one client, created by one trainer.
type Workout struct {
	ID           primitive.ObjectID    `bson:"_id,omitempty" json:"id"`
	Title        string                `bson:"title" json:"title"`
	Description  string                `bson:"description,omitempty" json:"description,omitempty"`
	TrainerID    primitive.ObjectID    `bson:"trainerId" json:"trainerId"` // Trainer profile
	ClientID     primitive.ObjectID    `bson:"clientId" json:"clientId"`   // Client profile
	ProgramID    *primitive.ObjectID   `bson:"programId,omitempty" json:"programId,omitempty"`
	ScheduledAt  time.Time             `bson:"scheduledAt" json:"scheduledAt"`
	StartedAt    *time.Time            `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	CompletedAt  *time.Time            `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	Duration     *int                  `bson:"duration,omitempty" json:"duration,omitempty"` // seconds
	Status       WorkoutStatus         `bson:"status" json:"status"`
	Exercises    []PlannedExercise     `bson:"exercises" json:"exercises"`
	ExerciseData []ExercisePerformance `bson:"exerciseData,omitempty" json:"exerciseData,omitempty"`
	Notes        string                `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt    time.Time             `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time             `bson:"updatedAt" json:"updatedAt"`
}

// WorkoutState is the lifecycle state derived from a stored workout.
// It is one of Scheduled, Started, Completed or Missed.
type WorkoutState interface {
	workoutState()
}

type Scheduled struct{}

type Started struct {
	At time.Time
}

type Completed struct {
	At       time.Time
	Duration int
	Log      []ExercisePerformance
}

type Missed struct{}

func (Scheduled) workoutState() {}
func (Started) workoutState()   {}
func (Completed) workoutState() {}
func (Missed) workoutState()    {}

// State derives the lifecycle state. A row still marked scheduled but carrying
// startedAt is read as Started.
func (w *Workout) State() WorkoutState {
	switch w.Status {
	case WorkoutCompleted:
		c := Completed{Log: w.ExerciseData}
		if w.CompletedAt != nil {
			c.At = *w.CompletedAt
		}
		if w.Duration != nil {
			c.Duration = *w.Duration
		}
		return c
	case WorkoutMissed:
		return Missed{}
	}
	if w.StartedAt != nil {
		return Started{At: *w.StartedAt}
	}
	return Scheduled{}
}

// IsCompleted is shorthand for State() being Completed.
func (w *Workout) IsCompleted() bool {
	return w.Status == WorkoutCompleted
}

// Completion carries everything written when a workout is completed.
type Completion struct {
	CompletedAt  time.Time
	Duration     int
	ExerciseData []ExercisePerformance
}
