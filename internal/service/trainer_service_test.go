package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestAssignClient(t *testing.T) {
	f := newFixture(t)
	coach, _ := f.newTrainer(t, "coach")
	rival, _ := f.newTrainer(t, "rival")
	athlete, client := f.newClient(t, "athlete", nil)

	require.NoError(t, f.trainers.AssignClient(f.ctx, coach, client.ID))
	assert.ErrorIs(t, f.trainers.AssignClient(f.ctx, rival, client.ID), ErrClientAlreadyAssigned)
	assert.ErrorIs(t, f.trainers.AssignClient(f.ctx, coach, client.ID), ErrClientAlreadyAssigned)
	assert.ErrorIs(t, f.trainers.AssignClient(f.ctx, coach, primitive.NewObjectID()), ErrClientNotFound)
	assert.ErrorIs(t, f.trainers.AssignClient(f.ctx, athlete, client.ID), ErrRoleNotAllowed)

	stored, err := f.store.Profiles().GetClientByID(f.ctx, client.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.TrainerID)
}

func TestAssignClientRace(t *testing.T) {
	f := newFixture(t)
	_, client := f.newClient(t, "contested", nil)

	const trainers = 6
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < trainers; i++ {
		actor, _ := f.newTrainer(t, fmt.Sprintf("coach-%d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.trainers.AssignClient(f.ctx, actor, client.ID); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestGetManagedClients(t *testing.T) {
	f := newFixture(t)
	coach, coachRecord := f.newTrainer(t, "coach")
	rival, rivalRecord := f.newTrainer(t, "rival")
	f.newClient(t, "ann", coachRecord)
	f.newClient(t, "bob", coachRecord)
	f.newClient(t, "cyd", rivalRecord)
	f.newClient(t, "dee", nil)

	clients, err := f.trainers.GetManagedClients(f.ctx, coach)
	require.NoError(t, err)
	names := make([]string, 0, len(clients))
	for _, c := range clients {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"ann Doe", "bob Doe"}, names)

	clients, err = f.trainers.GetManagedClients(f.ctx, rival)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "cyd Doe", clients[0].Name)

	lonely, _ := f.newTrainer(t, "lonely")
	clients, err = f.trainers.GetManagedClients(f.ctx, lonely)
	require.NoError(t, err)
	assert.NotNil(t, clients)
	assert.Empty(t, clients)
}

func TestGetAnalytics(t *testing.T) {
	l := newLifecycle(t)
	secondActor, second := l.newClient(t, "second", l.trainerRecord)

	// Three due workouts, two of them completed, plus one in the future.
	for _, c := range []struct {
		at       time.Duration
		complete bool
	}{{-48 * time.Hour, true}, {-24 * time.Hour, true}, {-2 * time.Hour, false}} {
		w := l.schedule(t, l.trainer, second, fixtureNow.Add(c.at))
		if c.complete {
			_, err := l.workouts.Complete(l.ctx, secondActor, w.ID, CompleteInput{Duration: intPtr(600)})
			require.NoError(t, err)
		}
	}
	l.schedule(t, l.trainer, l.clientRecord, fixtureNow.Add(24*time.Hour))

	analytics, err := l.trainers.GetAnalytics(l.ctx, l.trainer)
	require.NoError(t, err)
	assert.Equal(t, int64(2), analytics.TotalClients)
	assert.Equal(t, 2, analytics.WorkoutsCompleted)
	assert.Equal(t, 67, analytics.AverageCompletionRate)

	_, err = l.trainers.GetAnalytics(l.ctx, l.client)
	assert.ErrorIs(t, err, ErrRoleNotAllowed)
}
