package service

import (
	"sync"
	"testing"
	"time"

	"fittrainer/backend/internal/domain"
	"fittrainer/backend/internal/progress"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type lifecycle struct {
	*fixture
	trainer       domain.Actor
	trainerRecord *domain.Trainer
	client        domain.Actor
	clientRecord  *domain.Client
}

func newLifecycle(t *testing.T) *lifecycle {
	f := newFixture(t)
	trainer, trainerRecord := f.newTrainer(t, "coach")
	client, clientRecord := f.newClient(t, "athlete", trainerRecord)
	return &lifecycle{fixture: f, trainer: trainer, trainerRecord: trainerRecord, client: client, clientRecord: clientRecord}
}

func benchPlan(exerciseID primitive.ObjectID) domain.PlannedExercise {
	return domain.PlannedExercise{ExerciseID: exerciseID, Sets: 4, Reps: 10, Weight: 135}
}

func benchLog(exerciseID primitive.ObjectID, weights ...float64) []domain.ExercisePerformance {
	sets := make([]domain.SetPerformance, 0, len(weights))
	for i, w := range weights {
		sets = append(sets, domain.SetPerformance{
			SetNumber:     i + 1,
			PlannedReps:   10,
			ActualReps:    intPtr(10),
			PlannedWeight: 135,
			ActualWeight:  floatPtr(w),
			Completed:     true,
		})
	}
	return []domain.ExercisePerformance{{ExerciseID: exerciseID, Sets: sets}}
}

func TestCreateWorkout(t *testing.T) {
	l := newLifecycle(t)
	bench := l.addExercise("Bench Press", "")

	w := l.schedule(t, l.trainer, l.clientRecord, fixtureNow.Add(24*time.Hour), benchPlan(bench))
	assert.Equal(t, domain.WorkoutScheduled, w.Status)
	assert.Equal(t, l.trainerRecord.ID, w.TrainerID)
	require.Len(t, w.Exercises, 1)
	assert.Equal(t, domain.DefaultRestTime, w.Exercises[0].RestTime)
	assert.IsType(t, domain.Scheduled{}, w.State())

	_, unassigned := l.newClient(t, "free-agent", nil)
	_, err := l.workouts.Create(l.ctx, l.trainer, WorkoutInput{ClientID: unassigned.ID, Title: "Intro", ScheduledAt: fixtureNow})
	assert.NoError(t, err, "unassigned clients can be scheduled")

	otherTrainer, _ := l.newTrainer(t, "rival")
	_, err = l.workouts.Create(l.ctx, otherTrainer, WorkoutInput{ClientID: l.clientRecord.ID, Title: "Poach", ScheduledAt: fixtureNow})
	assert.ErrorIs(t, err, ErrClientNotManaged)

	_, err = l.workouts.Create(l.ctx, l.trainer, WorkoutInput{ClientID: primitive.NewObjectID(), Title: "Ghost", ScheduledAt: fixtureNow})
	assert.ErrorIs(t, err, ErrClientNotFound)

	_, err = l.workouts.Create(l.ctx, l.trainer, WorkoutInput{ClientID: l.clientRecord.ID, ScheduledAt: fixtureNow})
	assert.ErrorIs(t, err, ErrInvalidWorkout)

	_, err = l.workouts.Create(l.ctx, l.trainer, WorkoutInput{
		ClientID: l.clientRecord.ID, Title: "Bad", ScheduledAt: fixtureNow,
		Exercises: []domain.PlannedExercise{{ExerciseID: bench, Sets: 0}},
	})
	assert.ErrorIs(t, err, ErrInvalidWorkout)

	_, err = l.workouts.Create(l.ctx, l.client, WorkoutInput{ClientID: l.clientRecord.ID, Title: "Self", ScheduledAt: fixtureNow})
	assert.ErrorIs(t, err, ErrRoleNotAllowed)
}

func TestStartIsIdempotent(t *testing.T) {
	l := newLifecycle(t)
	w := l.schedule(t, l.trainer, l.clientRecord, fixtureNow)
	t0 := l.clock.Now()

	started, err := l.workouts.Start(l.ctx, l.client, w.ID)
	require.NoError(t, err)
	require.NotNil(t, started.Workout.StartedAt)
	assert.True(t, t0.Equal(*started.Workout.StartedAt))
	assert.Equal(t, domain.WorkoutInProgress, started.Workout.Status)

	l.clock.Advance(10 * time.Minute)
	again, err := l.workouts.Start(l.ctx, l.trainer, w.ID)
	require.NoError(t, err)
	assert.True(t, t0.Equal(*again.Workout.StartedAt))

	assert.Equal(t, 1.0, testutil.ToFloat64(l.metrics.CounterWorkoutsStarted))
}

func TestStartAuthorization(t *testing.T) {
	l := newLifecycle(t)
	w := l.schedule(t, l.trainer, l.clientRecord, fixtureNow)
	stranger, _ := l.newClient(t, "stranger", l.trainerRecord)
	rival, _ := l.newTrainer(t, "rival")

	_, err := l.workouts.Start(l.ctx, stranger, w.ID)
	assert.ErrorIs(t, err, ErrWorkoutAccessDenied)
	_, err = l.workouts.Start(l.ctx, rival, w.ID)
	assert.ErrorIs(t, err, ErrWorkoutAccessDenied)
	_, err = l.workouts.Start(l.ctx, l.client, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrWorkoutNotFound)

	stored, err := l.store.Workouts().GetByID(l.ctx, w.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.StartedAt, "rejected callers must not start the workout")

	orphan := domain.Actor{UserID: primitive.NewObjectID(), Role: domain.RoleClient}
	_, err = l.workouts.Start(l.ctx, orphan, w.ID)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestStartDescribesExercises(t *testing.T) {
	l := newLifecycle(t)
	bench := l.addExercise("Bench Press", "exercises/bench.mp4")
	plank := l.addExercise("Plank", "")
	timed := domain.PlannedExercise{ExerciseID: plank, Sets: 3, Duration: intPtr(60)}
	w := l.schedule(t, l.trainer, l.clientRecord, fixtureNow, benchPlan(bench), timed)

	started, err := l.workouts.Start(l.ctx, l.client, w.ID)
	require.NoError(t, err)
	require.Len(t, started.Exercises, 2)

	assert.Equal(t, "Bench Press", started.Exercises[0].Name)
	assert.Equal(t, "Press it", started.Exercises[0].Instructions)
	assert.Equal(t, 135.0, started.Exercises[0].Weight)
	assert.Equal(t, "https://media.test/exercises/bench.mp4?expires=900", started.Exercises[0].MediaURL)

	assert.Equal(t, "Plank", started.Exercises[1].Name)
	assert.Empty(t, started.Exercises[1].MediaURL)
	require.NotNil(t, started.Exercises[1].Duration)
	assert.Equal(t, 60, *started.Exercises[1].Duration)
}

func TestCompleteBenchPressScenario(t *testing.T) {
	l := newLifecycle(t)
	bench := l.addExercise("Bench Press", "")
	w := l.schedule(t, l.trainer, l.clientRecord, fixtureNow, benchPlan(bench))

	_, err := l.workouts.Start(l.ctx, l.client, w.ID)
	require.NoError(t, err)
	l.clock.Advance(45 * time.Minute)

	result, err := l.workouts.Complete(l.ctx, l.client, w.ID, CompleteInput{
		Duration:     intPtr(2700),
		ExerciseData: benchLog(bench, 135, 140, 140, 145),
	})
	require.NoError(t, err)
	assert.Equal(t, 450, result.Points)
	require.Len(t, result.Achievements, 1)
	assert.Equal(t, progress.FirstWorkoutID, result.Achievements[0].ID)
	assert.Equal(t, "First Workout", result.Achievements[0].Name)

	stored := result.Workout
	assert.Equal(t, domain.WorkoutCompleted, stored.Status)
	require.NotNil(t, stored.Duration)
	assert.Equal(t, 2700, *stored.Duration)
	require.Len(t, stored.ExerciseData, 1)
	assert.Len(t, stored.ExerciseData[0].Sets, 4)

	report, err := l.progress.GetProgress(l.ctx, l.client)
	require.NoError(t, err)
	require.Len(t, report.PersonalBests, 1)
	assert.Equal(t, "Bench Press", report.PersonalBests[0].Exercise)
	assert.Equal(t, 145.0, report.PersonalBests[0].Value)
	assert.Equal(t, "lbs", report.PersonalBests[0].Unit)
	assert.True(t, stored.CompletedAt.Equal(report.PersonalBests[0].Date))
	assert.Equal(t, 100, report.CompletionRate)

	assert.Equal(t, 450.0, testutil.ToFloat64(l.metrics.CounterPointsAwarded))
}

func TestCompleteTwiceIsRejected(t *testing.T) {
	l := newLifecycle(t)
	w := l.schedule(t, l.trainer, l.clientRecord, fixtureNow)
	_, err := l.workouts.Start(l.ctx, l.client, w.ID)
	require.NoError(t, err)

	_, err = l.workouts.Complete(l.ctx, l.client, w.ID, CompleteInput{Duration: intPtr(600)})
	require.NoError(t, err)

	_, err = l.workouts.Complete(l.ctx, l.client, w.ID, CompleteInput{Duration: intPtr(9999)})
	assert.ErrorIs(t, err, ErrWorkoutAlreadyCompleted)

	stored, err := l.store.Workouts().GetByID(l.ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 600, *stored.Duration)
	assert.Equal(t, 100.0, testutil.ToFloat64(l.metrics.CounterPointsAwarded))
}

func TestConcurrentCompletesApplyOnce(t *testing.T) {
	l := newLifecycle(t)
	w := l.schedule(t, l.trainer, l.clientRecord, fixtureNow)
	_, err := l.workouts.Start(l.ctx, l.client, w.ID)
	require.NoError(t, err)

	const callers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(duration int) {
			defer wg.Done()
			_, err := l.workouts.Complete(l.ctx, l.client, w.ID, CompleteInput{Duration: intPtr(duration)})
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				succeeded++
			case ErrWorkoutAlreadyCompleted:
				conflicts++
			}
		}(60 * (i + 1))
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, conflicts)
	assert.Equal(t, 1.0, testutil.ToFloat64(l.metrics.CounterWorkoutsCompleted))
}

func TestCompleteDerivesDurationFromStart(t *testing.T) {
	l := newLifecycle(t)
	w := l.schedule(t, l.trainer, l.clientRecord, fixtureNow)
	_, err := l.workouts.Start(l.ctx, l.client, w.ID)
	require.NoError(t, err)

	l.clock.Advance(30*time.Minute + 5*time.Second + 900*time.Millisecond)
	result, err := l.workouts.Complete(l.ctx, l.client, w.ID, CompleteInput{})
	require.NoError(t, err)
	assert.Equal(t, 1805, *result.Workout.Duration)
	assert.Equal(t, 300, result.Points)
	assert.NotNil(t, result.Workout.ExerciseData)
}

func TestCompleteWithoutStart(t *testing.T) {
	l := newLifecycle(t)
	w := l.schedule(t, l.trainer, l.clientRecord, fixtureNow)

	_, err := l.workouts.Complete(l.ctx, l.client, w.ID, CompleteInput{})
	assert.ErrorIs(t, err, ErrWorkoutNotStarted)

	_, err = l.workouts.Complete(l.ctx, l.client, w.ID, CompleteInput{Duration: intPtr(-1)})
	assert.ErrorIs(t, err, ErrInvalidWorkout)

	result, err := l.workouts.Complete(l.ctx, l.client, w.ID, CompleteInput{Duration: intPtr(1200)})
	require.NoError(t, err)
	assert.Equal(t, 200, result.Points)
	assert.Nil(t, result.Workout.StartedAt)
}

func TestCompleteRejections(t *testing.T) {
	l := newLifecycle(t)
	w := l.schedule(t, l.trainer, l.clientRecord, fixtureNow)

	_, err := l.workouts.Complete(l.ctx, l.trainer, w.ID, CompleteInput{Duration: intPtr(60)})
	assert.ErrorIs(t, err, ErrRoleNotAllowed)

	stranger, _ := l.newClient(t, "stranger", l.trainerRecord)
	_, err = l.workouts.Complete(l.ctx, stranger, w.ID, CompleteInput{Duration: intPtr(60)})
	assert.ErrorIs(t, err, ErrWorkoutAccessDenied)

	_, err = l.workouts.Complete(l.ctx, l.client, primitive.NewObjectID(), CompleteInput{Duration: intPtr(60)})
	assert.ErrorIs(t, err, ErrWorkoutNotFound)

	l.store.SetStatus(w.ID, domain.WorkoutMissed)
	_, err = l.workouts.Complete(l.ctx, l.client, w.ID, CompleteInput{Duration: intPtr(60)})
	assert.ErrorIs(t, err, ErrWorkoutNotActive)
}

func TestMilestonesOnlyAtExactCounts(t *testing.T) {
	l := newLifecycle(t)

	var unlocked [][]domain.Achievement
	for i := 0; i < 6; i++ {
		w := l.schedule(t, l.trainer, l.clientRecord, fixtureNow.Add(time.Duration(i)*time.Hour))
		result, err := l.workouts.Complete(l.ctx, l.client, w.ID, CompleteInput{Duration: intPtr(60)})
		require.NoError(t, err)
		unlocked = append(unlocked, result.Achievements)
	}

	require.Len(t, unlocked[0], 1)
	assert.Equal(t, progress.FirstWorkoutID, unlocked[0][0].ID)
	for _, i := range []int{1, 2, 3, 5} {
		assert.Empty(t, unlocked[i], "completion %d", i+1)
	}
	require.Len(t, unlocked[4], 1)
	assert.Equal(t, progress.WorkoutWarriorID, unlocked[4][0].ID)
}

func TestLegacyStartedRow(t *testing.T) {
	l := newLifecycle(t)
	startedAt := fixtureNow.Add(-20 * time.Minute)
	id := l.store.PutWorkout(domain.Workout{
		Title:       "Legacy",
		TrainerID:   l.trainerRecord.ID,
		ClientID:    l.clientRecord.ID,
		ScheduledAt: fixtureNow.Add(-time.Hour),
		StartedAt:   &startedAt,
		Status:      domain.WorkoutScheduled,
	})

	_, err := l.workouts.Update(l.ctx, l.trainer, id, WorkoutInput{Title: "Edit", ScheduledAt: fixtureNow})
	assert.ErrorIs(t, err, ErrWorkoutNotEditable)

	again, err := l.workouts.Start(l.ctx, l.client, id)
	require.NoError(t, err)
	assert.True(t, startedAt.Equal(*again.Workout.StartedAt))

	result, err := l.workouts.Complete(l.ctx, l.client, id, CompleteInput{})
	require.NoError(t, err)
	assert.Equal(t, 1200, *result.Workout.Duration)
}

func TestUpdateWorkout(t *testing.T) {
	l := newLifecycle(t)
	bench := l.addExercise("Bench Press", "")
	w := l.schedule(t, l.trainer, l.clientRecord, fixtureNow)

	updated, err := l.workouts.Update(l.ctx, l.trainer, w.ID, WorkoutInput{
		Title:       "Heavier",
		ScheduledAt: fixtureNow.Add(2 * time.Hour),
		Exercises:   []domain.PlannedExercise{{ExerciseID: bench, Sets: 5, Reps: 5, Weight: 185, RestTime: 120}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Heavier", updated.Title)
	assert.Equal(t, 120, updated.Exercises[0].RestTime)
	assert.Equal(t, l.clientRecord.ID, updated.ClientID)

	_, err = l.workouts.Update(l.ctx, l.client, w.ID, WorkoutInput{Title: "Mine", ScheduledAt: fixtureNow})
	assert.ErrorIs(t, err, ErrRoleNotAllowed)

	rival, _ := l.newTrainer(t, "rival")
	_, err = l.workouts.Update(l.ctx, rival, w.ID, WorkoutInput{Title: "Theirs", ScheduledAt: fixtureNow})
	assert.ErrorIs(t, err, ErrWorkoutAccessDenied)

	_, err = l.workouts.Start(l.ctx, l.client, w.ID)
	require.NoError(t, err)
	_, err = l.workouts.Update(l.ctx, l.trainer, w.ID, WorkoutInput{Title: "Too late", ScheduledAt: fixtureNow})
	assert.ErrorIs(t, err, ErrWorkoutNotEditable)

	stored, err := l.store.Workouts().GetByID(l.ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "Heavier", stored.Title)
}

func TestDeleteWorkout(t *testing.T) {
	l := newLifecycle(t)
	w := l.schedule(t, l.trainer, l.clientRecord, fixtureNow)
	_, err := l.workouts.Complete(l.ctx, l.client, w.ID, CompleteInput{Duration: intPtr(60)})
	require.NoError(t, err)

	assert.ErrorIs(t, l.workouts.Delete(l.ctx, l.client, w.ID), ErrRoleNotAllowed)
	require.NoError(t, l.workouts.Delete(l.ctx, l.trainer, w.ID))

	_, err = l.workouts.Get(l.ctx, l.trainer, w.ID)
	assert.ErrorIs(t, err, ErrWorkoutNotFound)
	assert.ErrorIs(t, l.workouts.Delete(l.ctx, l.trainer, w.ID), ErrWorkoutNotFound)
}

func TestListAndGet(t *testing.T) {
	l := newLifecycle(t)
	later := l.schedule(t, l.trainer, l.clientRecord, fixtureNow.Add(48*time.Hour))
	sooner := l.schedule(t, l.trainer, l.clientRecord, fixtureNow.Add(24*time.Hour))
	_, other := l.newClient(t, "other", l.trainerRecord)
	l.schedule(t, l.trainer, other, fixtureNow)

	mine, err := l.workouts.List(l.ctx, l.client)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, sooner.ID, mine[0].ID)
	assert.Equal(t, later.ID, mine[1].ID)

	created, err := l.workouts.List(l.ctx, l.trainer)
	require.NoError(t, err)
	assert.Len(t, created, 3)

	got, err := l.workouts.Get(l.ctx, l.client, later.ID)
	require.NoError(t, err)
	assert.Equal(t, later.ID, got.ID)
}

func TestSchedule(t *testing.T) {
	l := newLifecycle(t)

	yesterday := l.schedule(t, l.trainer, l.clientRecord, fixtureNow.Add(-24*time.Hour))
	thisMorning := l.schedule(t, l.trainer, l.clientRecord, fixtureNow.Add(-5*time.Hour))
	tomorrow := l.schedule(t, l.trainer, l.clientRecord, fixtureNow.Add(24*time.Hour))
	for i := 0; i < 6; i++ {
		w := l.schedule(t, l.trainer, l.clientRecord, fixtureNow.Add(-time.Duration(72+i)*time.Hour))
		_, err := l.workouts.Complete(l.ctx, l.client, w.ID, CompleteInput{Duration: intPtr(60)})
		require.NoError(t, err)
		l.clock.Advance(time.Minute)
	}

	schedule, err := l.workouts.Schedule(l.ctx, l.client)
	require.NoError(t, err)

	require.Len(t, schedule.Upcoming, 2)
	assert.Equal(t, thisMorning.ID, schedule.Upcoming[0].ID)
	assert.Equal(t, tomorrow.ID, schedule.Upcoming[1].ID)
	for _, w := range schedule.Upcoming {
		assert.NotEqual(t, yesterday.ID, w.ID)
	}

	require.Len(t, schedule.Recent, recentCompletedLimit)
	for i := 1; i < len(schedule.Recent); i++ {
		assert.True(t, schedule.Recent[i-1].CompletedAt.After(*schedule.Recent[i].CompletedAt))
	}

	_, err = l.workouts.Schedule(l.ctx, l.trainer)
	assert.ErrorIs(t, err, ErrRoleNotAllowed)
}
