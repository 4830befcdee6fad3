package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/time/rate"

	"github.com/wonny/solofill/internal/api/handlers"
	"github.com/wonny/solofill/internal/contracts"
	"github.com/wonny/solofill/internal/scheduler"
	"github.com/wonny/solofill/internal/stats"
	"github.com/wonny/solofill/pkg/config"
	"github.com/wonny/solofill/pkg/logger"
	"github.com/wonny/solofill/pkg/redis"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
}

type staticJobs map[string]scheduler.JobStats

func (s staticJobs) GetJobStats() map[string]scheduler.JobStats { return s }

func seededStore(t *testing.T) stats.Store {
	t.Helper()
	store := stats.NewMemoryStore(10, zerolog.Nop())
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveSession(context.Background(), stats.SessionStats{
		Session: stats.SessionMeta{ID: "s1", SiteName: "US-Ha1", StartedAt: started},
		Records: []contracts.FitStatisticsRecord{
			{Output: "Fc_SOLO", NumPoints: 40},
			{Output: "Fe_SOLO", NumPoints: 12},
		},
	}))
	return store
}

func newTestRouter(t *testing.T, limit func() *rate.Limiter) http.Handler {
	t.Helper()
	log := testLogger()
	deps := RouterDeps{
		Sessions: handlers.NewSessionsHandler(seededStore(t), nil, log),
		Jobs: handlers.NewJobsHandler(staticJobs{
			"session:site.yaml": {JobName: "session:site.yaml", Schedule: "0 * * * *", TotalRuns: 3},
		}),
	}
	if limit != nil {
		deps.Limit = RateLimit(limit())
	}
	return NewRouter(deps, log)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	rec := get(t, newTestRouter(t, nil), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "solofill", body["service"])
}

func TestRouter_Sessions(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := get(t, h, "/api/sessions")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count    int                 `json:"count"`
		Sessions []stats.SessionMeta `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "s1", list.Sessions[0].ID)

	rec = get(t, h, "/api/sessions?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_SessionStats(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := get(t, h, "/api/sessions/s1/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var all stats.SessionStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all.Records, 2)

	rec = get(t, h, "/api/sessions/s1/stats/Fe_SOLO")
	require.Equal(t, http.StatusOK, rec.Code)
	var one stats.SessionStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	require.Len(t, one.Records, 1)
	assert.Equal(t, 12, one.Records[0].NumPoints)

	rec = get(t, h, "/api/sessions/missing/stats")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Jobs(t *testing.T) {
	rec := get(t, newTestRouter(t, nil), "/api/jobs")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int                  `json:"count"`
		Jobs  []scheduler.JobStats `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, 3, body.Jobs[0].TotalRuns)
}

func TestRouter_RateLimit(t *testing.T) {
	h := newTestRouter(t, func() *rate.Limiter { return rate.NewLimiter(rate.Every(time.Hour), 2) })

	assert.Equal(t, http.StatusOK, get(t, h, "/api/sessions").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/api/sessions").Code)
	rec := get(t, h, "/api/sessions")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// health is not limited
	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code)
}

func TestSharedRateLimit_DisabledRedisAllows(t *testing.T) {
	client, err := redis.New(context.Background(), &config.Config{Redis: config.RedisConfig{Enabled: false, Prefix: "test"}})
	require.NoError(t, err)

	log := testLogger()
	h := NewRouter(RouterDeps{
		Sessions: handlers.NewSessionsHandler(seededStore(t), nil, log),
		Jobs:     handlers.NewJobsHandler(nil),
		Limit:    SharedRateLimit(redis.NewRateLimiter(client), 1, time.Minute, log),
	}, log)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get(t, h, "/api/sessions").Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(testLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := get(t, h, "/anything")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}
