package fallback

import (
	"testing"
	"time"

	"github.com/courtedge/courtedge/internal/database"
	"github.com/courtedge/courtedge/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStateDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    t.TempDir() + "/state.db",
		Profile: database.ProfileStandard,
		Name:    "state",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate())

	return db
}

func TestSQLRegistry_ResolveByLevel(t *testing.T) {
	db := newTestStateDB(t)
	registry := NewSQLRegistry(db.Conn(), zerolog.Nop())

	now := time.Now().Unix()
	require.NoError(t, registry.Register("v3_2025", domain.LevelPrimary, true, now))
	require.NoError(t, registry.Register("v3_global", domain.LevelSecondary, true, now))
	require.NoError(t, registry.Register("baseline", domain.LevelLastValidated, true, now))

	modelID, err := registry.ResolveByLevel(domain.LevelPrimary)
	require.NoError(t, err)
	assert.Equal(t, "v3_2025", modelID)

	modelID, err = registry.ResolveByLevel(domain.LevelLastValidated)
	require.NoError(t, err)
	assert.Equal(t, "baseline", modelID)
}

func TestSQLRegistry_UnknownLevel(t *testing.T) {
	db := newTestStateDB(t)
	registry := NewSQLRegistry(db.Conn(), zerolog.Nop())

	_, err := registry.ResolveByLevel(domain.LevelPrimary)
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestSQLRegistry_DisabledModelNotResolved(t *testing.T) {
	db := newTestStateDB(t)
	registry := NewSQLRegistry(db.Conn(), zerolog.Nop())

	require.NoError(t, registry.Register("v3_2025", domain.LevelPrimary, false, time.Now().Unix()))

	_, err := registry.ResolveByLevel(domain.LevelPrimary)
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestSQLRegistry_NewestEnabledWins(t *testing.T) {
	db := newTestStateDB(t)
	registry := NewSQLRegistry(db.Conn(), zerolog.Nop())

	base := time.Now().Unix()
	require.NoError(t, registry.Register("v3_2024", domain.LevelPrimary, true, base-100))
	require.NoError(t, registry.Register("v3_2025", domain.LevelPrimary, true, base))

	modelID, err := registry.ResolveByLevel(domain.LevelPrimary)
	require.NoError(t, err)
	assert.Equal(t, "v3_2025", modelID)
}

func TestSQLQualityProvider_RoundTrip(t *testing.T) {
	db := newTestStateDB(t)
	provider := NewSQLQualityProvider(db.Conn(), zerolog.Nop())

	metrics := QualityMetrics{SourceAvailability: 0.95, SchemaValidity: 0.99, Completeness: 0.90}
	require.NoError(t, provider.Record("match-1", "v3_2025", metrics, time.Now().Unix()))

	got, err := provider.GetMetrics("match-1", "v3_2025")
	require.NoError(t, err)
	assert.Equal(t, metrics, got)

	// Upsert replaces the previous measurement
	metrics.Completeness = 0.50
	require.NoError(t, provider.Record("match-1", "v3_2025", metrics, time.Now().Unix()))

	got, err = provider.GetMetrics("match-1", "v3_2025")
	require.NoError(t, err)
	assert.Equal(t, 0.50, got.Completeness)
}

func TestSQLQualityProvider_MissingRow(t *testing.T) {
	db := newTestStateDB(t)
	provider := NewSQLQualityProvider(db.Conn(), zerolog.Nop())

	_, err := provider.GetMetrics("match-1", "v3_2025")
	assert.ErrorIs(t, err, ErrMetricsUnavailable)
}
