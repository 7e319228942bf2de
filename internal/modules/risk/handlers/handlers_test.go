package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/courtedge/courtedge/internal/domain"
	"github.com/courtedge/courtedge/internal/modules/risk"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStateStore struct {
	mu    sync.Mutex
	state domain.HardStopState
}

func (m *memoryStateStore) Load() (domain.HardStopState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *memoryStateStore) Update(fn func(*domain.HardStopState) error) (domain.HardStopState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.state
	if err := fn(&state); err != nil {
		return domain.HardStopState{}, err
	}
	m.state = state
	return state, nil
}

func newTestRouter(t *testing.T) (*chi.Mux, *risk.Tracker) {
	t.Helper()

	tracker := risk.NewTracker(&memoryStateStore{}, risk.Limits{
		DailyLossLimit:       1000,
		ConsecutiveLossLimit: 5,
		BankrollPercentLimit: 0.10,
	}, nil, nil, zerolog.Nop())
	require.NoError(t, tracker.Initialize())

	r := chi.NewRouter()
	NewHandler(tracker, zerolog.Nop()).RegisterRoutes(r)

	return r, tracker
}

func TestHandleGetStatus(t *testing.T) {
	router, tracker := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/hard-stop", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status risk.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.IsActive)
	assert.Equal(t, "normal operation", status.RecommendedAction)
	assert.Equal(t, 1000.0, status.Limits.DailyLossLimit)

	require.NoError(t, tracker.Activate("daily loss limit exceeded"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hard-stop", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.IsActive)
	if assert.NotNil(t, status.TriggerReason) {
		assert.Equal(t, "daily loss limit exceeded", *status.TriggerReason)
	}
	assert.NotNil(t, status.TriggeredAt)
}

func TestHandleReset(t *testing.T) {
	router, tracker := newTestRouter(t)
	require.NoError(t, tracker.Activate("consecutive loss limit reached"))

	body := `{"reason": "limits reviewed", "actor_id": "admin-1"}`
	req := httptest.NewRequest(http.MethodPost, "/hard-stop/reset", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result risk.ResetResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.False(t, tracker.IsActive())
}

func TestHandleReset_NotActive(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{"reason": "limits reviewed", "actor_id": "admin-1"}`
	req := httptest.NewRequest(http.MethodPost, "/hard-stop/reset", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)

	var result risk.ResetResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Equal(t, "hard stop is not active", result.Message)
}

func TestHandleReset_InvalidBody(t *testing.T) {
	router, tracker := newTestRouter(t)
	require.NoError(t, tracker.Activate("daily loss limit exceeded"))

	req := httptest.NewRequest(http.MethodPost, "/hard-stop/reset", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, tracker.IsActive())
}

func TestHandleReset_MissingReason(t *testing.T) {
	router, tracker := newTestRouter(t)
	require.NoError(t, tracker.Activate("daily loss limit exceeded"))

	req := httptest.NewRequest(http.MethodPost, "/hard-stop/reset", strings.NewReader(`{"actor_id": "admin-1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, tracker.IsActive())
}
