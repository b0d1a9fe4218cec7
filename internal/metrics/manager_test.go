package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerCounters(t *testing.T) {
	m, reg := NewTestManagerAndRegistry()

	m.CounterWorkoutsCompleted.Inc()
	m.CounterPointsAwarded.Add(450)
	m.CounterTelegramAuth.WithLabelValues("rejected").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterWorkoutsCompleted))
	assert.Equal(t, 450.0, testutil.ToFloat64(m.CounterPointsAwarded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterTelegramAuth.WithLabelValues("rejected")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestManagerHandlerServesOwnRegistry(t *testing.T) {
	m := NewTestManager()
	m.CounterWorkoutsStarted.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fittrainer_test_server_workouts_started 1")
}
