package predictions

import (
	"testing"
	"time"

	"github.com/courtedge/courtedge/internal/database"
	"github.com/courtedge/courtedge/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    t.TempDir() + "/predictions.db",
		Profile: database.ProfileStandard,
		Name:    "predictions",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate())

	return NewRepository(db.Conn(), zerolog.Nop())
}

func floatPtr(v float64) *float64 {
	return &v
}

func testPrediction(id string, createdAt time.Time) domain.PredictionInput {
	return domain.PredictionInput{
		ID:              id,
		MatchID:         "match-" + id,
		UserID:          "user-1",
		ModelVersion:    "v3_2025",
		PredictedWinner: "home",
		PredictedScore:  "102-98",
		Confidence:      0.72,
		Edge:            floatPtr(12.5),
		CreatedAt:       createdAt,
	}
}

func TestRepository_InsertAndGetByID(t *testing.T) {
	repo := newTestRepo(t)

	p := testPrediction("pred-1", time.Now())
	p.DriftScore = floatPtr(0.10)
	require.NoError(t, repo.Insert(p))

	got, err := repo.GetByID("pred-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "match-pred-1", got.MatchID)
	assert.Equal(t, domain.PredictionPending, got.Status)
	assert.Equal(t, 0.72, got.Confidence)
	if assert.NotNil(t, got.Edge) {
		assert.Equal(t, 12.5, *got.Edge)
	}
	if assert.NotNil(t, got.DriftScore) {
		assert.Equal(t, 0.10, *got.DriftScore)
	}
}

func TestRepository_InsertValidation(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.Insert(domain.PredictionInput{MatchID: "match-1"})
	assert.Error(t, err)

	err = repo.Insert(domain.PredictionInput{ID: "pred-1"})
	assert.Error(t, err)
}

func TestRepository_GetByIDUnknown(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.GetByID("missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_GetPendingFIFO(t *testing.T) {
	repo := newTestRepo(t)

	base := time.Now().Add(-time.Hour)
	// Inserted out of order on purpose
	require.NoError(t, repo.Insert(testPrediction("pred-3", base.Add(3*time.Minute))))
	require.NoError(t, repo.Insert(testPrediction("pred-1", base.Add(1*time.Minute))))
	require.NoError(t, repo.Insert(testPrediction("pred-2", base.Add(2*time.Minute))))

	pending, err := repo.GetPending()
	require.NoError(t, err)
	require.Len(t, pending, 3)

	assert.Equal(t, "pred-1", pending[0].ID)
	assert.Equal(t, "pred-2", pending[1].ID)
	assert.Equal(t, "pred-3", pending[2].ID)
}

func TestRepository_StatusTransitions(t *testing.T) {
	repo := newTestRepo(t)

	now := time.Now()
	require.NoError(t, repo.Insert(testPrediction("pred-1", now)))
	require.NoError(t, repo.Insert(testPrediction("pred-2", now)))

	require.NoError(t, repo.MarkDecided("pred-1"))
	require.NoError(t, repo.MarkCancelled("pred-2"))

	pending, err := repo.GetPending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	decided, err := repo.CountByStatus(domain.PredictionDecided)
	require.NoError(t, err)
	assert.Equal(t, 1, decided)

	cancelled, err := repo.CountByStatus(domain.PredictionCancelled)
	require.NoError(t, err)
	assert.Equal(t, 1, cancelled)
}

func TestRepository_SetStatusUnknownPrediction(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.MarkDecided("missing")
	assert.Error(t, err)
}
