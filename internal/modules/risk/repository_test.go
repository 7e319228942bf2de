package risk

import (
	"testing"

	"github.com/courtedge/courtedge/internal/database"
	"github.com/courtedge/courtedge/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStateRepo(t *testing.T) *StateRepository {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    t.TempDir() + "/state.db",
		Profile: database.ProfileStandard,
		Name:    "state",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate())

	return NewStateRepository(db.Conn(), zerolog.Nop())
}

func TestStateRepository_LoadSeedsDefault(t *testing.T) {
	repo := newTestStateRepo(t)

	state, err := repo.Load()
	require.NoError(t, err)

	assert.False(t, state.IsActive)
	assert.Equal(t, 0.0, state.DailyLoss)
	assert.Equal(t, 0, state.ConsecutiveLosses)
	assert.Nil(t, state.TriggerReason)
	assert.Nil(t, state.TriggeredAt)

	// Second load reads the seeded row
	again, err := repo.Load()
	require.NoError(t, err)
	assert.Equal(t, state.IsActive, again.IsActive)
}

func TestStateRepository_UpdateRoundTrip(t *testing.T) {
	repo := newTestStateRepo(t)

	_, err := repo.Load()
	require.NoError(t, err)

	updated, err := repo.Update(func(s *domain.HardStopState) error {
		s.IsActive = true
		reason := "daily loss limit exceeded"
		s.TriggerReason = &reason
		s.DailyLoss = 1200
		s.ConsecutiveLosses = 3
		s.BankrollPercent = 0.12
		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.IsActive)

	loaded, err := repo.Load()
	require.NoError(t, err)

	assert.True(t, loaded.IsActive)
	assert.Equal(t, 1200.0, loaded.DailyLoss)
	assert.Equal(t, 3, loaded.ConsecutiveLosses)
	assert.Equal(t, 0.12, loaded.BankrollPercent)
	if assert.NotNil(t, loaded.TriggerReason) {
		assert.Equal(t, "daily loss limit exceeded", *loaded.TriggerReason)
	}
}

func TestStateRepository_UpdateRollsBackOnError(t *testing.T) {
	repo := newTestStateRepo(t)

	_, err := repo.Load()
	require.NoError(t, err)

	_, err = repo.Update(func(s *domain.HardStopState) error {
		s.IsActive = true
		return domain.ErrNotActive
	})
	assert.ErrorIs(t, err, domain.ErrNotActive)

	loaded, err := repo.Load()
	require.NoError(t, err)
	assert.False(t, loaded.IsActive)
}
