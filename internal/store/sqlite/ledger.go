package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"galaxy-core/internal/store"
)

func (s *Store) EnsureActorLedger(ctx context.Context, l store.ActorLedger) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := s.now().UnixMilli()
	for name, c := range l.Counters {
		recovered := toMillis(c.LastRecoveredAt)
		if recovered == 0 {
			recovered = now
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO actor_counters
			(actor_id, session_id, counter, balance, max_balance, last_recovered_ms, updated_ms)
			VALUES (?,?,?,?,?,?,?)
			ON CONFLICT (actor_id, counter) DO NOTHING`,
			l.ActorID, l.SessionID, name, c.Balance, c.Max, recovered, now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) GetActorLedger(ctx context.Context, actorID string) (*store.ActorLedger, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT session_id, counter, balance, max_balance, last_recovered_ms
		FROM actor_counters WHERE actor_id = ? ORDER BY counter`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := &store.ActorLedger{ActorID: actorID, Counters: map[string]store.Counter{}}
	for rows.Next() {
		var (
			c         store.Counter
			recovered int64
		)
		if err := rows.Scan(&out.SessionID, &c.Name, &c.Balance, &c.Max, &recovered); err != nil {
			return nil, err
		}
		c.LastRecoveredAt = fromMillis(recovered)
		out.Counters[c.Name] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out.Counters) == 0 {
		return nil, store.ErrNotFound
	}
	return out, nil
}

// SwapCounters mirrors the Postgres adapter: every UPDATE is guarded by the
// expected balance and the whole set commits or rolls back together.
func (s *Store) SwapCounters(ctx context.Context, actorID string, swaps []store.CounterSwap, meta store.EntryMeta) (bool, error) {
	if len(swaps) == 0 {
		return false, store.ErrEmptySwap
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	now := s.now().UnixMilli()
	for _, sw := range swaps {
		res, err := tx.ExecContext(ctx, `UPDATE actor_counters
			SET balance = ?, updated_ms = ?
			WHERE actor_id = ? AND counter = ? AND balance = ? AND ? >= 0 AND ? <= max_balance`,
			sw.Next, now, actorID, sw.Counter, sw.Expected, sw.Next, sw.Next,
		)
		if err != nil {
			return false, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return false, nil
		}
		if err := insertLedgerEntry(ctx, tx, actorID, sw.Counter, sw.Next-sw.Expected, meta, now); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) CreditCounters(ctx context.Context, actorID string, credits []store.CounterCredit, meta store.EntryMeta) (map[string]int64, error) {
	for _, c := range credits {
		if c.Amount < 0 {
			return nil, store.ErrInvalidAmount
		}
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := s.now().UnixMilli()
	out := make(map[string]int64, len(credits))
	for _, c := range credits {
		var bal int64
		err := tx.QueryRowContext(ctx, `UPDATE actor_counters
			SET balance = MIN(max_balance, balance + ?), updated_ms = ?
			WHERE actor_id = ? AND counter = ?
			RETURNING balance`,
			c.Amount, now, actorID, c.Counter,
		).Scan(&bal)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, store.ErrNotFound
			}
			return nil, err
		}
		if err := insertLedgerEntry(ctx, tx, actorID, c.Counter, c.Amount, meta, now); err != nil {
			return nil, err
		}
		out[c.Counter] = bal
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) RecoverSessionCounters(ctx context.Context, sessionID string, amount int64, at time.Time) (int64, error) {
	if amount < 0 {
		return 0, store.ErrInvalidAmount
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE actor_counters
		SET balance = MIN(max_balance, balance + ?), last_recovered_ms = ?, updated_ms = ?
		WHERE session_id = ?`,
		amount, toMillis(at), s.now().UnixMilli(), sessionID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) ListLedgerEntries(ctx context.Context, actorID string, limit int) ([]store.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT id, actor_id, counter, type, amount, ref_type, ref_id, created_ms
		FROM ledger_entries WHERE actor_id = ? ORDER BY created_ms DESC, id DESC LIMIT ?`, actorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []store.LedgerEntry{}
	for rows.Next() {
		var (
			e       store.LedgerEntry
			created int64
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Counter, &e.Type, &e.Amount, &e.RefType, &e.RefID, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = fromMillis(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

func insertLedgerEntry(ctx context.Context, tx *sql.Tx, actorID, counter string, amount int64, meta store.EntryMeta, now int64) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO ledger_entries (id, actor_id, counter, type, amount, ref_type, ref_id, created_ms)
		VALUES (?,?,?,?,?,?,?,?)`,
		store.NewID(), actorID, counter, meta.Type, amount, meta.RefType, meta.RefID, now,
	)
	return err
}
