package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"galaxy-core/internal/calendar"
	"galaxy-core/internal/store"
)

func (s *Store) CreateGameSession(ctx context.Context, sess *store.GameSession) error {
	now := s.now()
	store.PrepareSession(sess, now)
	_, err := s.DB.ExecContext(ctx, `INSERT INTO game_sessions (
		id, status, tick_period_ms, acceleration_factor,
		epoch_year, epoch_month, epoch_day, epoch_hour, epoch_minute,
		tick, game_date, is_paused, last_tick_ms, created_ms, updated_ms
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		sess.ID, sess.Status, sess.TickPeriodMs, sess.AccelerationFactor,
		sess.Epoch.Year, sess.Epoch.Month, sess.Epoch.Day, sess.Epoch.Hour, sess.Epoch.Minute,
		sess.Tick, sess.GameDate.String(), sess.IsPaused, toMillis(sess.LastTickTime), now.UnixMilli(), now.UnixMilli(),
	)
	return err
}

func (s *Store) GetGameSession(ctx context.Context, id string) (*store.GameSession, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT id, status, tick_period_ms, acceleration_factor,
		epoch_year, epoch_month, epoch_day, epoch_hour, epoch_minute,
		tick, is_paused, last_tick_ms, winner_id, end_reason, created_ms, updated_ms
		FROM game_sessions WHERE id = ?`, id)
	var (
		sess                       store.GameSession
		lastTick, created, updated int64
	)
	if err := row.Scan(
		&sess.ID, &sess.Status, &sess.TickPeriodMs, &sess.AccelerationFactor,
		&sess.Epoch.Year, &sess.Epoch.Month, &sess.Epoch.Day, &sess.Epoch.Hour, &sess.Epoch.Minute,
		&sess.Tick, &sess.IsPaused, &lastTick, &sess.WinnerID, &sess.EndReason, &created, &updated,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sess.LastTickTime = fromMillis(lastTick)
	sess.CreatedAt = fromMillis(created)
	sess.UpdatedAt = fromMillis(updated)
	sess.GameDate = calendar.DateAt(sess.Epoch, sess.Tick, sess.TickPeriodMs, sess.AccelerationFactor)
	return &sess, nil
}

func (s *Store) SaveSessionClock(ctx context.Context, c store.SessionClock) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE game_sessions
		SET tick = ?, game_date = ?, is_paused = ?, last_tick_ms = ?, status = ?, updated_ms = ?
		WHERE id = ? AND tick <= ?`,
		c.Tick, c.GameDate.String(), c.IsPaused, toMillis(c.LastTickTime), c.Status, s.now().UnixMilli(),
		c.SessionID, c.Tick,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var one int
	if err := s.DB.QueryRowContext(ctx, `SELECT 1 FROM game_sessions WHERE id = ?`, c.SessionID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	return store.ErrStaleClock
}

func (s *Store) RecordSessionEnd(ctx context.Context, id, winnerID, reason string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE game_sessions
		SET status = ?, winner_id = ?, end_reason = ?, updated_ms = ?
		WHERE id = ?`,
		store.SessionFinished, winnerID, reason, s.now().UnixMilli(), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

var _ store.Backend = (*Store)(nil)
