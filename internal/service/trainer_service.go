package service

import (
	"context"
	"errors"
	"fittrainer/backend/internal/domain"
	"fittrainer/backend/internal/progress"
	"fittrainer/backend/internal/repository"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrClientAlreadyAssigned = errors.New("client is already assigned to a trainer")
)

// ClientSummary is a managed client as the trainer's roster shows it.
type ClientSummary struct {
	ID           primitive.ObjectID  `json:"id"`
	UserID       primitive.ObjectID  `json:"userId"`
	Name         string              `json:"name"`
	Email        string              `json:"email,omitempty"`
	FitnessLevel domain.FitnessLevel `json:"fitnessLevel,omitempty"`
	Goals        string              `json:"goals,omitempty"`
	Height       float64             `json:"height,omitempty"`
	Weight       float64             `json:"weight,omitempty"`
	Age          int                 `json:"age,omitempty"`
}

// Analytics is the trainer dashboard.
type Analytics struct {
	TotalClients          int64 `json:"totalClients"`
	WorkoutsCompleted     int   `json:"workoutsCompleted"`
	AverageCompletionRate int   `json:"averageCompletionRate"`
}

type TrainerService interface {
	// AssignClient attaches an unassigned client profile to the caller.
	AssignClient(ctx context.Context, actor domain.Actor, clientID primitive.ObjectID) error
	GetManagedClients(ctx context.Context, actor domain.Actor) ([]ClientSummary, error)
	GetAnalytics(ctx context.Context, actor domain.Actor) (*Analytics, error)
}

// trainerService implements the TrainerService interface.
type trainerService struct {
	userRepo    repository.UserRepository
	profileRepo repository.ProfileRepository
	workoutRepo repository.WorkoutRepository
	now         Clock
}

// NewTrainerService creates a new instance of trainerService.
func NewTrainerService(
	userRepo repository.UserRepository,
	profileRepo repository.ProfileRepository,
	workoutRepo repository.WorkoutRepository,
	now Clock,
) TrainerService {
	if now == nil {
		now = time.Now
	}
	return &trainerService{
		userRepo:    userRepo,
		profileRepo: profileRepo,
		workoutRepo: workoutRepo,
		now:         now,
	}
}

func (s *trainerService) AssignClient(ctx context.Context, actor domain.Actor, clientID primitive.ObjectID) error {
	trainer, err := trainerProfile(ctx, s.profileRepo, actor)
	if err != nil {
		return err
	}

	// The store only assigns while trainerId is unset, so two trainers
	// racing for one client cannot both win.
	err = s.profileRepo.AssignTrainer(ctx, clientID, trainer.ID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		return ErrClientNotFound
	case errors.Is(err, repository.ErrConflict):
		return ErrClientAlreadyAssigned
	default:
		return fmt.Errorf("assign client: %w", err)
	}

	log.WithFields(log.Fields{
		"trainerId": trainer.ID.Hex(),
		"clientId":  clientID.Hex(),
	}).Info("client assigned")
	return nil
}

func (s *trainerService) GetManagedClients(ctx context.Context, actor domain.Actor) ([]ClientSummary, error) {
	trainer, err := trainerProfile(ctx, s.profileRepo, actor)
	if err != nil {
		return nil, err
	}
	clients, err := s.profileRepo.ListClientsByTrainer(ctx, trainer.ID)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}

	summaries := make([]ClientSummary, 0, len(clients))
	for _, c := range clients {
		summary := ClientSummary{
			ID:           c.ID,
			UserID:       c.UserID,
			FitnessLevel: c.FitnessLevel,
			Goals:        c.Goals,
			Height:       c.Height,
			Weight:       c.Weight,
			Age:          c.Age,
		}
		user, err := s.userRepo.GetByID(ctx, c.UserID)
		switch {
		case err == nil:
			summary.Name = user.FullName()
			summary.Email = user.Email
		case errors.Is(err, repository.ErrNotFound):
			log.WithField("clientId", c.ID.Hex()).Warn("client profile without user")
		default:
			return nil, fmt.Errorf("get client user: %w", err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *trainerService) GetAnalytics(ctx context.Context, actor domain.Actor) (*Analytics, error) {
	trainer, err := trainerProfile(ctx, s.profileRepo, actor)
	if err != nil {
		return nil, err
	}
	clientCount, err := s.profileRepo.CountClientsByTrainer(ctx, trainer.ID)
	if err != nil {
		return nil, fmt.Errorf("count clients: %w", err)
	}
	workouts, err := s.workoutRepo.ListByTrainer(ctx, trainer.ID)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}

	summary := progress.SummarizeTrainer(workouts, s.now())
	return &Analytics{
		TotalClients:          clientCount,
		WorkoutsCompleted:     summary.WorkoutsCompleted,
		AverageCompletionRate: summary.AverageCompletionRate,
	}, nil
}
