package service

import (
	"context"
	"errors"
	"fittrainer/backend/internal/cache"
	"fittrainer/backend/internal/domain"
	"fittrainer/backend/internal/progress"
	"fittrainer/backend/internal/repository"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrInvalidWeight = errors.New("weight must be a positive number")

// weightUnit is the unit personal bests are reported in; plans store pounds.
const weightUnit = "lbs"

// ProgressReport is the client dashboard.
type ProgressReport struct {
	CompletionRate    int                   `json:"completionRate"`
	WorkoutsCompleted int                   `json:"workoutsCompleted"`
	TotalWorkouts     int                   `json:"totalWorkouts"`
	StreakDays        int                   `json:"streakDays"`
	PersonalBests     []domain.PersonalBest `json:"personalBests"`
	WeightData        []domain.WeightPoint  `json:"weightData"`
}

// cachedProgress is a report together with the local day its streak was
// counted on. Entries from an earlier day are misses.
type cachedProgress struct {
	Day    string         `json:"day"`
	Report ProgressReport `json:"report"`
}

const dayLayout = "2006-01-02"

type ProgressService interface {
	GetProgress(ctx context.Context, actor domain.Actor) (*ProgressReport, error)
	GetAchievements(ctx context.Context, actor domain.Actor) ([]domain.Achievement, error)
	// RecordWeight appends to the weight history and updates the profile's latest weight.
	RecordWeight(ctx context.Context, actor domain.Actor, value float64, date *time.Time) (*domain.WeightEntry, error)
}

type progressService struct {
	workoutRepo  repository.WorkoutRepository
	profileRepo  repository.ProfileRepository
	exerciseRepo repository.ExerciseRepository
	weightRepo   repository.WeightRepository
	cache        *cache.ProgressCache
	loc          *time.Location
	now          Clock
}

// ProgressDeps groups the collaborators of the progress service. Cache is optional.
type ProgressDeps struct {
	Workouts  repository.WorkoutRepository
	Profiles  repository.ProfileRepository
	Exercises repository.ExerciseRepository
	Weights   repository.WeightRepository
	Cache     *cache.ProgressCache
	Location  *time.Location
	Now       Clock
}

func NewProgressService(deps ProgressDeps) ProgressService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &progressService{
		workoutRepo:  deps.Workouts,
		profileRepo:  deps.Profiles,
		exerciseRepo: deps.Exercises,
		weightRepo:   deps.Weights,
		cache:        deps.Cache,
		loc:          deps.Location,
		now:          deps.Now,
	}
}

func (s *progressService) GetProgress(ctx context.Context, actor domain.Actor) (*ProgressReport, error) {
	client, err := clientProfile(ctx, s.profileRepo, actor)
	if err != nil {
		return nil, err
	}
	now := s.now()
	today := now.In(s.loc).Format(dayLayout)
	key := client.ID.Hex()
	var cached cachedProgress
	if s.cache != nil && s.cache.Get(cache.KindProgress, key, &cached) && cached.Day == today {
		return &cached.Report, nil
	}
	var gen uint64
	if s.cache != nil {
		gen = s.cache.Generation(key)
	}

	workouts, err := s.workoutRepo.ListByClient(ctx, client.ID)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	entries, err := s.weightRepo.ListByClient(ctx, client.ID)
	if err != nil {
		return nil, fmt.Errorf("list weight entries: %w", err)
	}
	bests, err := s.namePersonalBests(ctx, progress.PersonalBests(workouts))
	if err != nil {
		return nil, err
	}

	rate, completed, total := progress.CompletionRate(workouts)
	report := ProgressReport{
		CompletionRate:    rate,
		WorkoutsCompleted: completed,
		TotalWorkouts:     total,
		StreakDays:        progress.StreakDays(workouts, now, s.loc),
		PersonalBests:     bests,
		WeightData:        progress.WeightTrend(entries, client),
	}
	if s.cache != nil {
		s.cache.Set(cache.KindProgress, key, gen, cachedProgress{Day: today, Report: report})
	}
	return &report, nil
}

func (s *progressService) namePersonalBests(ctx context.Context, bests []progress.Best) ([]domain.PersonalBest, error) {
	named := make([]domain.PersonalBest, 0, len(bests))
	if len(bests) == 0 {
		return named, nil
	}
	ids := make([]primitive.ObjectID, 0, len(bests))
	for _, b := range bests {
		ids = append(ids, b.ExerciseID)
	}
	catalog, err := s.exerciseRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get exercises: %w", err)
	}
	for _, b := range bests {
		name := "Unknown exercise"
		if ex, ok := catalog[b.ExerciseID]; ok {
			name = ex.Name
		}
		named = append(named, domain.PersonalBest{
			ExerciseID: b.ExerciseID,
			Exercise:   name,
			Value:      b.Value,
			Unit:       weightUnit,
			Date:       b.Date,
		})
	}
	return named, nil
}

func (s *progressService) GetAchievements(ctx context.Context, actor domain.Actor) ([]domain.Achievement, error) {
	client, err := clientProfile(ctx, s.profileRepo, actor)
	if err != nil {
		return nil, err
	}
	key := client.ID.Hex()
	var achievements []domain.Achievement
	if s.cache != nil && s.cache.Get(cache.KindAchievements, key, &achievements) {
		return achievements, nil
	}
	var gen uint64
	if s.cache != nil {
		gen = s.cache.Generation(key)
	}

	workouts, err := s.workoutRepo.ListByClient(ctx, client.ID)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	achievements = progress.Achievements(workouts, s.loc)
	if s.cache != nil {
		s.cache.Set(cache.KindAchievements, key, gen, achievements)
	}
	return achievements, nil
}

func (s *progressService) RecordWeight(ctx context.Context, actor domain.Actor, value float64, date *time.Time) (*domain.WeightEntry, error) {
	client, err := clientProfile(ctx, s.profileRepo, actor)
	if err != nil {
		return nil, err
	}
	if value <= 0 {
		return nil, ErrInvalidWeight
	}

	entry := &domain.WeightEntry{ClientID: client.ID, Value: value, Date: s.now().UTC()}
	if date != nil && !date.IsZero() {
		entry.Date = date.UTC()
	}
	if _, err := s.weightRepo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("create weight entry: %w", err)
	}
	if err := s.profileRepo.SetClientWeight(ctx, client.ID, value); err != nil {
		// History is authoritative; the profile field is only the latest value.
		log.WithError(err).WithField("clientId", client.ID.Hex()).Warn("failed to update profile weight")
	}
	if s.cache != nil {
		s.cache.Invalidate(client.ID.Hex())
	}
	return entry, nil
}
