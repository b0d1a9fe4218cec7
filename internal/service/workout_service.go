package service

import (
	"context"
	"errors"
	"fittrainer/backend/internal/cache"
	"fittrainer/backend/internal/domain"
	"fittrainer/backend/internal/metrics"
	"fittrainer/backend/internal/progress"
	"fittrainer/backend/internal/repository"
	"fittrainer/backend/internal/storage"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrWorkoutNotFound         = errors.New("workout not found")
	ErrWorkoutAccessDenied     = errors.New("access denied to this workout")
	ErrWorkoutAlreadyCompleted = errors.New("workout is already completed")
	ErrWorkoutNotActive        = errors.New("workout is no longer active")
	ErrWorkoutNotStarted       = errors.New("workout was never started and no duration was given")
	ErrWorkoutNotEditable      = errors.New("only scheduled workouts that have not started can be edited")
	ErrInvalidWorkout          = errors.New("invalid workout data")
	ErrClientNotFound          = errors.New("client not found")
	ErrClientNotManaged        = errors.New("client is managed by another trainer")
)

// recentCompletedLimit is how many finished workouts the schedule shows.
const recentCompletedLimit = 5

// WorkoutInput is the trainer-editable part of a workout.
type WorkoutInput struct {
	ClientID    primitive.ObjectID // client profile; ignored on update
	Title       string
	Description string
	ScheduledAt time.Time
	Exercises   []domain.PlannedExercise
	Notes       string
}

// CompleteInput is what the client reports when finishing a workout.
type CompleteInput struct {
	Duration     *int // seconds; derived from startedAt when nil
	ExerciseData []domain.ExercisePerformance
}

// CompletionResult is returned by a successful completion.
type CompletionResult struct {
	Workout      *domain.Workout
	Points       int
	Achievements []domain.Achievement // milestones unlocked by this completion
}

// StartedExercise is a planned exercise joined with its reference data.
type StartedExercise struct {
	ExerciseID   primitive.ObjectID `json:"exerciseId"`
	Name         string             `json:"name"`
	Sets         int                `json:"sets"`
	Reps         int                `json:"reps"`
	Weight       float64            `json:"weight"`
	Instructions string             `json:"instructions,omitempty"`
	RestTime     int                `json:"restTime"`
	MuscleGroup  string             `json:"muscleGroup,omitempty"`
	MediaURL     string             `json:"mediaUrl,omitempty"`
	Duration     *int               `json:"duration,omitempty"`
}

// StartedWorkout is the workout as the client sees it while training.
type StartedWorkout struct {
	Workout   *domain.Workout
	Exercises []StartedExercise
}

// Schedule is a client's upcoming plan and latest results.
type Schedule struct {
	Upcoming []domain.Workout
	Recent   []domain.Workout
}

type WorkoutService interface {
	Create(ctx context.Context, actor domain.Actor, input WorkoutInput) (*domain.Workout, error)
	Get(ctx context.Context, actor domain.Actor, workoutID primitive.ObjectID) (*domain.Workout, error)
	List(ctx context.Context, actor domain.Actor) ([]domain.Workout, error)
	Update(ctx context.Context, actor domain.Actor, workoutID primitive.ObjectID, input WorkoutInput) (*domain.Workout, error)
	Delete(ctx context.Context, actor domain.Actor, workoutID primitive.ObjectID) error
	// Start records startedAt once; later calls return the workout unchanged.
	Start(ctx context.Context, actor domain.Actor, workoutID primitive.ObjectID) (*StartedWorkout, error)
	// Complete finishes a workout exactly once.
	Complete(ctx context.Context, actor domain.Actor, workoutID primitive.ObjectID, input CompleteInput) (*CompletionResult, error)
	Schedule(ctx context.Context, actor domain.Actor) (*Schedule, error)
}

type workoutService struct {
	workoutRepo  repository.WorkoutRepository
	profileRepo  repository.ProfileRepository
	exerciseRepo repository.ExerciseRepository
	media        storage.MediaSigner // nil when media storage is not configured
	cache        *cache.ProgressCache
	metrics      *metrics.Manager
	loc          *time.Location
	now          Clock
}

// WorkoutDeps groups the collaborators of the workout service. Media, Cache
// and Metrics are optional.
type WorkoutDeps struct {
	Workouts  repository.WorkoutRepository
	Profiles  repository.ProfileRepository
	Exercises repository.ExerciseRepository
	Media     storage.MediaSigner
	Cache     *cache.ProgressCache
	Metrics   *metrics.Manager
	Location  *time.Location
	Now       Clock
}

func NewWorkoutService(deps WorkoutDeps) WorkoutService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &workoutService{
		workoutRepo:  deps.Workouts,
		profileRepo:  deps.Profiles,
		exerciseRepo: deps.Exercises,
		media:        deps.Media,
		cache:        deps.Cache,
		metrics:      deps.Metrics,
		loc:          deps.Location,
		now:          deps.Now,
	}
}

func (s *workoutService) invalidate(clientID primitive.ObjectID) {
	if s.cache != nil {
		s.cache.Invalidate(clientID.Hex())
	}
}

func (s *workoutService) load(ctx context.Context, workoutID primitive.ObjectID) (*domain.Workout, error) {
	workout, err := s.workoutRepo.GetByID(ctx, workoutID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutNotFound
		}
		return nil, fmt.Errorf("get workout: %w", err)
	}
	return workout, nil
}

// loadOwned fetches a workout and checks the caller is its assigned client
// or its owning trainer. A missing workout is reported before ownership.
func (s *workoutService) loadOwned(ctx context.Context, actor domain.Actor, workoutID primitive.ObjectID) (*domain.Workout, error) {
	workout, err := s.load(ctx, workoutID)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case domain.RoleClient:
		client, err := clientProfile(ctx, s.profileRepo, actor)
		if err != nil {
			return nil, err
		}
		if workout.ClientID != client.ID {
			return nil, ErrWorkoutAccessDenied
		}
	case domain.RoleTrainer:
		trainer, err := trainerProfile(ctx, s.profileRepo, actor)
		if err != nil {
			return nil, err
		}
		if workout.TrainerID != trainer.ID {
			return nil, ErrWorkoutAccessDenied
		}
	default:
		return nil, ErrRoleNotAllowed
	}
	return workout, nil
}

// loadTrainerOwned is loadOwned restricted to the owning trainer.
func (s *workoutService) loadTrainerOwned(ctx context.Context, actor domain.Actor, workoutID primitive.ObjectID) (*domain.Workout, error) {
	if actor.Role != domain.RoleTrainer {
		return nil, ErrRoleNotAllowed
	}
	return s.loadOwned(ctx, actor, workoutID)
}

func validatePlan(input *WorkoutInput) error {
	if input.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidWorkout)
	}
	if input.ScheduledAt.IsZero() {
		return fmt.Errorf("%w: scheduledAt is required", ErrInvalidWorkout)
	}
	for i := range input.Exercises {
		ex := &input.Exercises[i]
		if ex.ExerciseID == primitive.NilObjectID {
			return fmt.Errorf("%w: exercise %d has no exerciseId", ErrInvalidWorkout, i)
		}
		if ex.Sets <= 0 || ex.Reps < 0 || ex.Weight < 0 || ex.RestTime < 0 {
			return fmt.Errorf("%w: exercise %d has invalid sets, reps, weight or rest", ErrInvalidWorkout, i)
		}
		if ex.RestTime == 0 {
			ex.RestTime = domain.DefaultRestTime
		}
	}
	if input.Exercises == nil {
		input.Exercises = []domain.PlannedExercise{}
	}
	return nil
}

// Create schedules a workout for a client that is unassigned or managed by the caller.
func (s *workoutService) Create(ctx context.Context, actor domain.Actor, input WorkoutInput) (*domain.Workout, error) {
	trainer, err := trainerProfile(ctx, s.profileRepo, actor)
	if err != nil {
		return nil, err
	}
	if err := validatePlan(&input); err != nil {
		return nil, err
	}

	client, err := s.profileRepo.GetClientByID(ctx, input.ClientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	if client.HasTrainer() && *client.TrainerID != trainer.ID {
		return nil, ErrClientNotManaged
	}

	workout := &domain.Workout{
		Title:       input.Title,
		Description: input.Description,
		TrainerID:   trainer.ID,
		ClientID:    client.ID,
		ScheduledAt: input.ScheduledAt.UTC(),
		Status:      domain.WorkoutScheduled,
		Exercises:   input.Exercises,
		Notes:       input.Notes,
	}
	if _, err := s.workoutRepo.Create(ctx, workout); err != nil {
		return nil, fmt.Errorf("create workout: %w", err)
	}
	s.invalidate(client.ID)

	log.WithFields(log.Fields{
		"workoutId": workout.ID.Hex(),
		"trainerId": trainer.ID.Hex(),
		"clientId":  client.ID.Hex(),
	}).Info("workout scheduled")
	return workout, nil
}

func (s *workoutService) Get(ctx context.Context, actor domain.Actor, workoutID primitive.ObjectID) (*domain.Workout, error) {
	return s.loadOwned(ctx, actor, workoutID)
}

// List returns the caller's workouts: assigned ones for clients, created ones for trainers.
func (s *workoutService) List(ctx context.Context, actor domain.Actor) ([]domain.Workout, error) {
	var (
		workouts []domain.Workout
		err      error
	)
	switch actor.Role {
	case domain.RoleClient:
		client, perr := clientProfile(ctx, s.profileRepo, actor)
		if perr != nil {
			return nil, perr
		}
		workouts, err = s.workoutRepo.ListByClient(ctx, client.ID)
	case domain.RoleTrainer:
		trainer, perr := trainerProfile(ctx, s.profileRepo, actor)
		if perr != nil {
			return nil, perr
		}
		workouts, err = s.workoutRepo.ListByTrainer(ctx, trainer.ID)
	default:
		return nil, ErrRoleNotAllowed
	}
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	return workouts, nil
}

// Update rewrites the plan while the workout is still Scheduled.
func (s *workoutService) Update(ctx context.Context, actor domain.Actor, workoutID primitive.ObjectID, input WorkoutInput) (*domain.Workout, error) {
	workout, err := s.loadTrainerOwned(ctx, actor, workoutID)
	if err != nil {
		return nil, err
	}
	if _, ok := workout.State().(domain.Scheduled); !ok {
		return nil, ErrWorkoutNotEditable
	}
	if err := validatePlan(&input); err != nil {
		return nil, err
	}

	workout.Title = input.Title
	workout.Description = input.Description
	workout.ScheduledAt = input.ScheduledAt.UTC()
	workout.Exercises = input.Exercises
	workout.Notes = input.Notes

	if err := s.workoutRepo.UpdatePlan(ctx, workout); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			// Started or finished between the read and the write.
			return nil, ErrWorkoutNotEditable
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrWorkoutNotFound
		}
		return nil, fmt.Errorf("update workout: %w", err)
	}
	s.invalidate(workout.ClientID)
	return s.load(ctx, workoutID)
}

// Delete removes a workout in any state.
func (s *workoutService) Delete(ctx context.Context, actor domain.Actor, workoutID primitive.ObjectID) error {
	workout, err := s.loadTrainerOwned(ctx, actor, workoutID)
	if err != nil {
		return err
	}
	if err := s.workoutRepo.Delete(ctx, workoutID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrWorkoutNotFound
		}
		return fmt.Errorf("delete workout: %w", err)
	}
	s.invalidate(workout.ClientID)
	log.WithField("workoutId", workoutID.Hex()).Info("workout deleted")
	return nil
}

func (s *workoutService) Start(ctx context.Context, actor domain.Actor, workoutID primitive.ObjectID) (*StartedWorkout, error) {
	workout, err := s.loadOwned(ctx, actor, workoutID)
	if err != nil {
		return nil, err
	}

	if _, ok := workout.State().(domain.Scheduled); ok {
		started, err := s.workoutRepo.MarkStarted(ctx, workoutID, s.now().UTC())
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrWorkoutNotFound
			}
			return nil, fmt.Errorf("start workout: %w", err)
		}
		if started {
			if s.metrics != nil {
				s.metrics.CounterWorkoutsStarted.Inc()
			}
			log.WithFields(log.Fields{
				"workoutId": workoutID.Hex(),
				"role":      actor.Role,
			}).Info("workout started")
		}
		// Re-read so a concurrent first start is reflected as stored.
		if workout, err = s.load(ctx, workoutID); err != nil {
			return nil, err
		}
	}

	exercises, err := s.describeExercises(ctx, workout.Exercises)
	if err != nil {
		return nil, err
	}
	return &StartedWorkout{Workout: workout, Exercises: exercises}, nil
}

func (s *workoutService) describeExercises(ctx context.Context, planned []domain.PlannedExercise) ([]StartedExercise, error) {
	ids := make([]primitive.ObjectID, 0, len(planned))
	for _, p := range planned {
		ids = append(ids, p.ExerciseID)
	}
	catalog, err := s.exerciseRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get exercises: %w", err)
	}

	described := make([]StartedExercise, 0, len(planned))
	for _, p := range planned {
		item := StartedExercise{
			ExerciseID: p.ExerciseID,
			Sets:       p.Sets,
			Reps:       p.Reps,
			Weight:     p.Weight,
			RestTime:   p.RestTime,
			Duration:   p.Duration,
		}
		if ex, ok := catalog[p.ExerciseID]; ok {
			item.Name = ex.Name
			item.Instructions = ex.Instructions
			item.MuscleGroup = ex.MuscleGroup
			if ex.MediaKey != "" && s.media != nil {
				url, err := s.media.PresignedDownloadURL(ctx, ex.MediaKey, storage.DefaultPresignedURLExpiry)
				if err != nil {
					// The workout is still usable without the video.
					log.WithError(err).WithField("exerciseId", ex.ID.Hex()).Warn("failed to sign exercise media")
				} else {
					item.MediaURL = url
				}
			}
		}
		described = append(described, item)
	}
	return described, nil
}

// Complete performs the single transition to Completed.
func (s *workoutService) Complete(ctx context.Context, actor domain.Actor, workoutID primitive.ObjectID, input CompleteInput) (*CompletionResult, error) {
	if actor.Role != domain.RoleClient {
		return nil, ErrRoleNotAllowed
	}
	workout, err := s.loadOwned(ctx, actor, workoutID)
	if err != nil {
		return nil, err
	}
	if input.Duration != nil && *input.Duration < 0 {
		return nil, fmt.Errorf("%w: duration must not be negative", ErrInvalidWorkout)
	}

	completedAt := s.now().UTC()
	var duration int
	switch state := workout.State().(type) {
	case domain.Completed:
		return nil, ErrWorkoutAlreadyCompleted
	case domain.Missed:
		return nil, ErrWorkoutNotActive
	case domain.Scheduled:
		if input.Duration == nil {
			return nil, ErrWorkoutNotStarted
		}
		duration = *input.Duration
	case domain.Started:
		if input.Duration != nil {
			duration = *input.Duration
		} else {
			duration = int(completedAt.Sub(state.At) / time.Second)
			if duration < 0 {
				duration = 0
			}
		}
	}

	completion := domain.Completion{
		CompletedAt:  completedAt,
		Duration:     duration,
		ExerciseData: input.ExerciseData,
	}
	if err := s.workoutRepo.MarkCompleted(ctx, workoutID, completion); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, s.completionConflict(ctx, workoutID)
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrWorkoutNotFound
		}
		return nil, fmt.Errorf("complete workout: %w", err)
	}
	s.invalidate(workout.ClientID)

	count, err := s.workoutRepo.CountCompletedByClient(ctx, workout.ClientID)
	if err != nil {
		// The completion is stored; only the milestone lookup failed.
		log.WithError(err).WithField("workoutId", workoutID.Hex()).Error("failed to count completed workouts")
		count = 0
	}
	points := progress.Points(duration)
	unlocked := progress.UnlockedAt(count)

	if s.metrics != nil {
		s.metrics.CounterWorkoutsCompleted.Inc()
		s.metrics.CounterPointsAwarded.Add(float64(points))
		for _, a := range unlocked {
			s.metrics.CounterAchievements.WithLabelValues(a.ID).Inc()
		}
	}
	log.WithFields(log.Fields{
		"workoutId": workoutID.Hex(),
		"clientId":  workout.ClientID.Hex(),
		"duration":  duration,
		"points":    points,
		"completed": count,
	}).Info("workout completed")

	stored, err := s.load(ctx, workoutID)
	if err != nil {
		return nil, err
	}
	return &CompletionResult{Workout: stored, Points: points, Achievements: unlocked}, nil
}

// completionConflict names why a conditional completion matched nothing.
func (s *workoutService) completionConflict(ctx context.Context, workoutID primitive.ObjectID) error {
	current, err := s.load(ctx, workoutID)
	if err != nil {
		return err
	}
	if current.IsCompleted() {
		return ErrWorkoutAlreadyCompleted
	}
	return ErrWorkoutNotActive
}

// Schedule lists the client's open workouts from the start of today and the
// most recent completions, newest first.
func (s *workoutService) Schedule(ctx context.Context, actor domain.Actor) (*Schedule, error) {
	client, err := clientProfile(ctx, s.profileRepo, actor)
	if err != nil {
		return nil, err
	}
	workouts, err := s.workoutRepo.ListByClient(ctx, client.ID)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}

	now := s.now().In(s.loc)
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	schedule := &Schedule{Upcoming: []domain.Workout{}, Recent: []domain.Workout{}}
	for _, w := range workouts {
		switch w.State().(type) {
		case domain.Scheduled, domain.Started:
			if !w.ScheduledAt.Before(startOfToday) {
				schedule.Upcoming = append(schedule.Upcoming, w)
			}
		case domain.Completed:
			schedule.Recent = append(schedule.Recent, w)
		}
	}
	sort.SliceStable(schedule.Recent, func(i, j int) bool {
		a, b := schedule.Recent[i].CompletedAt, schedule.Recent[j].CompletedAt
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.After(*b)
	})
	if len(schedule.Recent) > recentCompletedLimit {
		schedule.Recent = schedule.Recent[:recentCompletedLimit]
	}
	return schedule, nil
}
