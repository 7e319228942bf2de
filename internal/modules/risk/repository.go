// Package risk implements the hard-stop kill-switch state machine.
package risk

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/courtedge/courtedge/internal/database"
	"github.com/courtedge/courtedge/internal/domain"
	"github.com/rs/zerolog"
)

// StateRepository persists the singleton HardStopState row. All mutations go
// through Update, a transactional read-modify-write, so concurrent writers
// serialize at the storage layer.
type StateRepository struct {
	stateDB *sql.DB
	log     zerolog.Logger
}

// NewStateRepository creates a new hard-stop state repository
func NewStateRepository(stateDB *sql.DB, log zerolog.Logger) *StateRepository {
	return &StateRepository{
		stateDB: stateDB,
		log:     log.With().Str("repo", "hard_stop_state").Logger(),
	}
}

// Load returns the persisted state, creating the default inactive singleton
// row when absent. The row is never deleted afterwards.
func (r *StateRepository) Load() (domain.HardStopState, error) {
	state, err := r.read(r.stateDB)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.HardStopState{}, fmt.Errorf("failed to load hard-stop state: %w", err)
	}

	// First boot: seed the inactive default
	now := time.Now()
	_, err = r.stateDB.Exec(
		`INSERT INTO hard_stop_state (id, is_active, daily_loss, consecutive_losses, bankroll_percent, updated_at)
		 VALUES (1, 0, 0, 0, 0, ?)`,
		now.Unix(),
	)
	if err != nil {
		return domain.HardStopState{}, fmt.Errorf("failed to create default hard-stop state: %w", err)
	}

	r.log.Info().Msg("Created default inactive hard-stop state")

	return domain.HardStopState{UpdatedAt: now}, nil
}

// Update applies fn to the current state inside a transaction and persists
// the result.
func (r *StateRepository) Update(fn func(*domain.HardStopState) error) (domain.HardStopState, error) {
	var updated domain.HardStopState

	err := database.WithTransaction(r.stateDB, func(tx *sql.Tx) error {
		state, err := r.read(tx)
		if err != nil {
			return fmt.Errorf("failed to read hard-stop state: %w", err)
		}

		if err := fn(&state); err != nil {
			return err
		}

		state.UpdatedAt = time.Now()

		_, err = tx.Exec(
			`UPDATE hard_stop_state
			 SET is_active = ?, daily_loss = ?, consecutive_losses = ?,
			     bankroll_percent = ?, trigger_reason = ?, triggered_at = ?, updated_at = ?
			 WHERE id = 1`,
			boolToInt(state.IsActive),
			state.DailyLoss,
			state.ConsecutiveLosses,
			state.BankrollPercent,
			nullStringPtr(state.TriggerReason),
			nullTimePtr(state.TriggeredAt),
			state.UpdatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to persist hard-stop state: %w", err)
		}

		updated = state
		return nil
	})
	if err != nil {
		return domain.HardStopState{}, err
	}

	return updated, nil
}

// queryRower abstracts sql.DB and sql.Tx
type queryRower interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}

func (r *StateRepository) read(q queryRower) (domain.HardStopState, error) {
	var state domain.HardStopState
	var isActive int
	var triggerReason sql.NullString
	var triggeredAt sql.NullInt64
	var updatedAt int64

	err := q.QueryRow(
		`SELECT is_active, daily_loss, consecutive_losses, bankroll_percent,
		        trigger_reason, triggered_at, updated_at
		 FROM hard_stop_state WHERE id = 1`,
	).Scan(
		&isActive,
		&state.DailyLoss,
		&state.ConsecutiveLosses,
		&state.BankrollPercent,
		&triggerReason,
		&triggeredAt,
		&updatedAt,
	)
	if err != nil {
		return domain.HardStopState{}, err
	}

	state.IsActive = isActive != 0
	if triggerReason.Valid {
		v := triggerReason.String
		state.TriggerReason = &v
	}
	if triggeredAt.Valid {
		t := time.Unix(triggeredAt.Int64, 0)
		state.TriggeredAt = &t
	}
	state.UpdatedAt = time.Unix(updatedAt, 0)

	return state, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullStringPtr(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}
