package store

import (
	"context"
	"time"

	"galaxy-core/internal/calendar"

	"github.com/jackc/pgx/v5/pgtype"
)

const gameSessionColumns = `id, status, tick_period_ms, acceleration_factor,
	epoch_year, epoch_month, epoch_day, epoch_hour, epoch_minute,
	tick, is_paused, last_tick_time, winner_id, end_reason, created_at, updated_at`

// CreateGameSession inserts sess, assigning an id when empty. The stored date
// is always derived from the tick.
func (s *Store) CreateGameSession(ctx context.Context, sess *GameSession) error {
	PrepareSession(sess, time.Now())
	_, err := s.Pool.Exec(ctx, `INSERT INTO game_sessions (
		id, status, tick_period_ms, acceleration_factor,
		epoch_year, epoch_month, epoch_day, epoch_hour, epoch_minute,
		tick, game_date, is_paused, last_tick_time
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		sess.ID, sess.Status, sess.TickPeriodMs, sess.AccelerationFactor,
		sess.Epoch.Year, sess.Epoch.Month, sess.Epoch.Day, sess.Epoch.Hour, sess.Epoch.Minute,
		sess.Tick, sess.GameDate.String(), sess.IsPaused, timestamptzParam(sess.LastTickTime),
	)
	return err
}

func (s *Store) GetGameSession(ctx context.Context, id string) (*GameSession, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+gameSessionColumns+` FROM game_sessions WHERE id = $1`, id)
	var (
		sess      GameSession
		lastTick  pgtype.Timestamptz
		winnerID  pgtype.Text
		endReason pgtype.Text
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&sess.ID, &sess.Status, &sess.TickPeriodMs, &sess.AccelerationFactor,
		&sess.Epoch.Year, &sess.Epoch.Month, &sess.Epoch.Day, &sess.Epoch.Hour, &sess.Epoch.Minute,
		&sess.Tick, &sess.IsPaused, &lastTick, &winnerID, &endReason, &createdAt, &updatedAt,
	); err != nil {
		return nil, mapNotFound(err)
	}
	sess.LastTickTime = timeVal(lastTick)
	sess.WinnerID = textVal(winnerID)
	sess.EndReason = textVal(endReason)
	sess.CreatedAt = timeVal(createdAt)
	sess.UpdatedAt = timeVal(updatedAt)
	sess.GameDate = calendar.DateAt(sess.Epoch, sess.Tick, sess.TickPeriodMs, sess.AccelerationFactor)
	return &sess, nil
}

// SaveSessionClock writes the clock state only if it does not move the stored
// tick backwards, so a lagging process cannot overwrite a newer one.
func (s *Store) SaveSessionClock(ctx context.Context, c SessionClock) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE game_sessions
		SET tick = $2, game_date = $3, is_paused = $4, last_tick_time = $5, status = $6, updated_at = now()
		WHERE id = $1 AND tick <= $2`,
		c.SessionID, c.Tick, c.GameDate.String(), c.IsPaused, timestamptzParam(c.LastTickTime), c.Status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var one int
	if err := s.Pool.QueryRow(ctx, `SELECT 1 FROM game_sessions WHERE id = $1`, c.SessionID).Scan(&one); err != nil {
		return mapNotFound(err)
	}
	return ErrStaleClock
}

func (s *Store) RecordSessionEnd(ctx context.Context, id, winnerID, reason string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE game_sessions
		SET status = $2, winner_id = $3, end_reason = $4, updated_at = now()
		WHERE id = $1`,
		id, SessionFinished, textParam(winnerID), textParam(reason),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PrepareSession fills the defaults every adapter applies on insert.
func PrepareSession(sess *GameSession, now time.Time) {
	if sess.ID == "" {
		sess.ID = NewID()
	}
	if sess.Status == "" {
		sess.Status = SessionPreparing
	}
	if sess.LastTickTime.IsZero() {
		sess.LastTickTime = now
	}
	sess.GameDate = calendar.DateAt(sess.Epoch, sess.Tick, sess.TickPeriodMs, sess.AccelerationFactor)
}
