// Package memory implements the repository interfaces in process memory.
// It enforces the same uniqueness and conditional-update rules as the Mongo
// implementation and backs the "memory" database driver and the tests.
package memory

import (
	"context"
	"errors"
	"fittrainer/backend/internal/domain"
	"fittrainer/backend/internal/repository"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store holds every collection behind one lock.
type Store struct {
	mu        sync.RWMutex
	users     map[primitive.ObjectID]domain.User
	trainers  map[primitive.ObjectID]domain.Trainer
	clients   map[primitive.ObjectID]domain.Client
	exercises map[primitive.ObjectID]domain.Exercise
	workouts  map[primitive.ObjectID]domain.Workout
	weights   map[primitive.ObjectID]domain.WeightEntry

	// FailCreateProfile makes profile creation fail, for rollback tests.
	FailCreateProfile error
}

func NewStore() *Store {
	return &Store{
		users:     map[primitive.ObjectID]domain.User{},
		trainers:  map[primitive.ObjectID]domain.Trainer{},
		clients:   map[primitive.ObjectID]domain.Client{},
		exercises: map[primitive.ObjectID]domain.Exercise{},
		workouts:  map[primitive.ObjectID]domain.Workout{},
		weights:   map[primitive.ObjectID]domain.WeightEntry{},
	}
}

func (s *Store) Users() repository.UserRepository         { return userRepo{s} }
func (s *Store) Profiles() repository.ProfileRepository   { return profileRepo{s} }
func (s *Store) Exercises() repository.ExerciseRepository { return exerciseRepo{s} }
func (s *Store) Workouts() repository.WorkoutRepository   { return workoutRepo{s} }
func (s *Store) Weights() repository.WeightRepository     { return weightRepo{s} }

// AddExercise seeds reference data; the catalog has no write API.
func (s *Store) AddExercise(ex domain.Exercise) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ex.ID == primitive.NilObjectID {
		ex.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	ex.CreatedAt, ex.UpdatedAt = now, now
	s.exercises[ex.ID] = ex
	return ex.ID
}

// --- users ---

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	if user.Username == "" || !user.Role.Valid() {
		return primitive.NilObjectID, errors.New("user username and role are required")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Username == user.Username ||
			(user.Email != "" && u.Email == user.Email) ||
			(user.TelegramID != nil && u.TelegramID != nil && *u.TelegramID == *user.TelegramID) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users[user.ID] = *user
	return user.ID, nil
}

func (r userRepo) find(match func(domain.User) bool) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.ID == id })
}

func (r userRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username })
}

func (r userRepo) GetByTelegramID(_ context.Context, telegramID int64) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.TelegramID != nil && *u.TelegramID == telegramID })
}

func (r userRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.users, id)
	return nil
}

// --- profiles ---

type profileRepo struct{ s *Store }

func (r profileRepo) CreateTrainer(_ context.Context, trainer *domain.Trainer) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailCreateProfile != nil {
		return primitive.NilObjectID, r.s.FailCreateProfile
	}
	for _, t := range r.s.trainers {
		if t.UserID == trainer.UserID {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	trainer.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	trainer.CreatedAt, trainer.UpdatedAt = now, now
	r.s.trainers[trainer.ID] = *trainer
	return trainer.ID, nil
}

func (r profileRepo) CreateClient(_ context.Context, client *domain.Client) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailCreateProfile != nil {
		return primitive.NilObjectID, r.s.FailCreateProfile
	}
	for _, c := range r.s.clients {
		if c.UserID == client.UserID {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	client.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	client.CreatedAt, client.UpdatedAt = now, now
	r.s.clients[client.ID] = *client
	return client.ID, nil
}

func (r profileRepo) GetTrainerByUserID(_ context.Context, userID primitive.ObjectID) (*domain.Trainer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, t := range r.s.trainers {
		if t.UserID == userID {
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r profileRepo) GetClientByUserID(_ context.Context, userID primitive.ObjectID) (*domain.Client, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.clients {
		if c.UserID == userID {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r profileRepo) GetClientByID(_ context.Context, id primitive.ObjectID) (*domain.Client, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.clients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r profileRepo) AssignTrainer(_ context.Context, clientID, trainerID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.clients[clientID]
	if !ok {
		return repository.ErrNotFound
	}
	if c.HasTrainer() {
		return repository.ErrConflict
	}
	c.TrainerID = &trainerID
	c.UpdatedAt = time.Now().UTC()
	r.s.clients[clientID] = c
	return nil
}

func (r profileRepo) SetClientWeight(_ context.Context, clientID primitive.ObjectID, weight float64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.clients[clientID]
	if !ok {
		return repository.ErrNotFound
	}
	c.Weight = weight
	c.UpdatedAt = time.Now().UTC()
	r.s.clients[clientID] = c
	return nil
}

func (r profileRepo) ListClientsByTrainer(_ context.Context, trainerID primitive.ObjectID) ([]domain.Client, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	clients := []domain.Client{}
	for _, c := range r.s.clients {
		if c.TrainerID != nil && *c.TrainerID == trainerID {
			clients = append(clients, c)
		}
	}
	sort.Slice(clients, func(i, j int) bool {
		if !clients[i].CreatedAt.Equal(clients[j].CreatedAt) {
			return clients[i].CreatedAt.Before(clients[j].CreatedAt)
		}
		return clients[i].ID.Hex() < clients[j].ID.Hex()
	})
	return clients, nil
}

func (r profileRepo) CountClientsByTrainer(_ context.Context, trainerID primitive.ObjectID) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, c := range r.s.clients {
		if c.TrainerID != nil && *c.TrainerID == trainerID {
			n++
		}
	}
	return n, nil
}

// --- exercises ---

type exerciseRepo struct{ s *Store }

func (r exerciseRepo) GetByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.Exercise, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := make(map[primitive.ObjectID]domain.Exercise, len(ids))
	for _, id := range ids {
		if ex, ok := r.s.exercises[id]; ok {
			result[id] = ex
		}
	}
	return result, nil
}

// --- workouts ---

type workoutRepo struct{ s *Store }

func cloneWorkout(w domain.Workout) domain.Workout {
	w.Exercises = append([]domain.PlannedExercise(nil), w.Exercises...)
	if w.ExerciseData != nil {
		data := make([]domain.ExercisePerformance, len(w.ExerciseData))
		for i, ep := range w.ExerciseData {
			ep.Sets = append([]domain.SetPerformance(nil), ep.Sets...)
			data[i] = ep
		}
		w.ExerciseData = data
	}
	return w
}

func (r workoutRepo) Create(_ context.Context, workout *domain.Workout) (primitive.ObjectID, error) {
	if workout.TrainerID == primitive.NilObjectID || workout.ClientID == primitive.NilObjectID || workout.Title == "" {
		return primitive.NilObjectID, errors.New("workout requires trainerId, clientId, and title")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	workout.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	workout.CreatedAt, workout.UpdatedAt = now, now
	if workout.Status == "" {
		workout.Status = domain.WorkoutScheduled
	}
	r.s.workouts[workout.ID] = cloneWorkout(*workout)
	return workout.ID, nil
}

func (r workoutRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Workout, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	w, ok := r.s.workouts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	w = cloneWorkout(w)
	return &w, nil
}

func (r workoutRepo) list(match func(domain.Workout) bool) []domain.Workout {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	workouts := []domain.Workout{}
	for _, w := range r.s.workouts {
		if match(w) {
			workouts = append(workouts, cloneWorkout(w))
		}
	}
	sort.Slice(workouts, func(i, j int) bool {
		if !workouts[i].ScheduledAt.Equal(workouts[j].ScheduledAt) {
			return workouts[i].ScheduledAt.Before(workouts[j].ScheduledAt)
		}
		return workouts[i].ID.Hex() < workouts[j].ID.Hex()
	})
	return workouts
}

func (r workoutRepo) ListByClient(_ context.Context, clientID primitive.ObjectID) ([]domain.Workout, error) {
	return r.list(func(w domain.Workout) bool { return w.ClientID == clientID }), nil
}

func (r workoutRepo) ListByTrainer(_ context.Context, trainerID primitive.ObjectID) ([]domain.Workout, error) {
	return r.list(func(w domain.Workout) bool { return w.TrainerID == trainerID }), nil
}

func notStarted(w domain.Workout) bool {
	return w.Status == domain.WorkoutScheduled && w.StartedAt == nil
}

func (r workoutRepo) UpdatePlan(_ context.Context, workout *domain.Workout) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.workouts[workout.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if !notStarted(w) {
		return repository.ErrConflict
	}
	w.Title = workout.Title
	w.Description = workout.Description
	w.ScheduledAt = workout.ScheduledAt
	w.Exercises = append([]domain.PlannedExercise(nil), workout.Exercises...)
	w.Notes = workout.Notes
	w.UpdatedAt = time.Now().UTC()
	r.s.workouts[w.ID] = w
	return nil
}

func (r workoutRepo) MarkStarted(_ context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.workouts[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if !notStarted(w) {
		return false, nil
	}
	w.StartedAt = &at
	w.Status = domain.WorkoutInProgress
	w.UpdatedAt = time.Now().UTC()
	r.s.workouts[id] = w
	return true, nil
}

func (r workoutRepo) MarkCompleted(_ context.Context, id primitive.ObjectID, completion domain.Completion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.workouts[id]
	if !ok {
		return repository.ErrNotFound
	}
	if w.Status != domain.WorkoutScheduled && w.Status != domain.WorkoutInProgress {
		return repository.ErrConflict
	}
	completedAt := completion.CompletedAt
	duration := completion.Duration
	w.CompletedAt = &completedAt
	w.Duration = &duration
	w.ExerciseData = completion.ExerciseData
	if w.ExerciseData == nil {
		w.ExerciseData = []domain.ExercisePerformance{}
	}
	w.Status = domain.WorkoutCompleted
	w.UpdatedAt = time.Now().UTC()
	r.s.workouts[id] = cloneWorkout(w)
	return nil
}

func (r workoutRepo) CountCompletedByClient(_ context.Context, clientID primitive.ObjectID) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, w := range r.s.workouts {
		if w.ClientID == clientID && w.Status == domain.WorkoutCompleted {
			n++
		}
	}
	return n, nil
}

func (r workoutRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.workouts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.workouts, id)
	return nil
}

// SetStatus overwrites a workout's status, standing in for the external
// missed-workout sweep.
func (s *Store) SetStatus(id primitive.ObjectID, status domain.WorkoutStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.workouts[id]; ok {
		w.Status = status
		s.workouts[id] = w
	}
}

// PutWorkout stores a workout exactly as given, timestamps included. Tests use
// it to build histories.
func (s *Store) PutWorkout(w domain.Workout) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == primitive.NilObjectID {
		w.ID = primitive.NewObjectID()
	}
	s.workouts[w.ID] = cloneWorkout(w)
	return w.ID
}

// --- weights ---

type weightRepo struct{ s *Store }

func (r weightRepo) Create(_ context.Context, entry *domain.WeightEntry) (primitive.ObjectID, error) {
	if entry.ClientID == primitive.NilObjectID || entry.Value <= 0 {
		return primitive.NilObjectID, errors.New("weight entry requires clientId and a positive value")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry.ID = primitive.NewObjectID()
	entry.CreatedAt = time.Now().UTC()
	r.s.weights[entry.ID] = *entry
	return entry.ID, nil
}

func (r weightRepo) ListByClient(_ context.Context, clientID primitive.ObjectID) ([]domain.WeightEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	entries := []domain.WeightEntry{}
	for _, e := range r.s.weights {
		if e.ClientID == clientID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].ID.Hex() < entries[j].ID.Hex()
	})
	return entries, nil
}
