package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// EnsureActorLedger creates any counters of l that do not exist yet. Existing
// balances are left untouched.
func (s *Store) EnsureActorLedger(ctx context.Context, l ActorLedger) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for name, c := range l.Counters {
		if _, err := tx.Exec(ctx, `INSERT INTO actor_counters (actor_id, session_id, counter, balance, max_balance, last_recovered_at)
			VALUES ($1,$2,$3,$4,$5,COALESCE($6, now()))
			ON CONFLICT (actor_id, counter) DO NOTHING`,
			l.ActorID, l.SessionID, name, c.Balance, c.Max, timestamptzParam(c.LastRecoveredAt),
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) GetActorLedger(ctx context.Context, actorID string) (*ActorLedger, error) {
	rows, err := s.Pool.Query(ctx, `SELECT session_id, counter, balance, max_balance, last_recovered_at
		FROM actor_counters WHERE actor_id = $1 ORDER BY counter`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := &ActorLedger{ActorID: actorID, Counters: map[string]Counter{}}
	for rows.Next() {
		var (
			c         Counter
			recovered pgtype.Timestamptz
		)
		if err := rows.Scan(&out.SessionID, &c.Name, &c.Balance, &c.Max, &recovered); err != nil {
			return nil, err
		}
		c.LastRecoveredAt = timeVal(recovered)
		out.Counters[c.Name] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out.Counters) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// SwapCounters applies every swap or none. Each UPDATE only matches while the
// stored balance still equals Expected; Postgres re-checks that predicate
// after waiting on a concurrent writer's row lock, so the loser of a race sees
// zero rows and gets false.
func (s *Store) SwapCounters(ctx context.Context, actorID string, swaps []CounterSwap, meta EntryMeta) (bool, error) {
	if len(swaps) == 0 {
		return false, ErrEmptySwap
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	for _, sw := range swaps {
		tag, err := tx.Exec(ctx, `UPDATE actor_counters
			SET balance = $4, updated_at = now()
			WHERE actor_id = $1 AND counter = $2 AND balance = $3 AND $4 >= 0 AND $4 <= max_balance`,
			actorID, sw.Counter, sw.Expected, sw.Next,
		)
		if err != nil {
			return false, err
		}
		if tag.RowsAffected() == 0 {
			return false, nil
		}
		if err := insertLedgerEntry(ctx, tx, actorID, sw.Counter, sw.Next-sw.Expected, meta); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// CreditCounters adds each amount atomically, capped at the counter's max,
// and returns the resulting balances.
func (s *Store) CreditCounters(ctx context.Context, actorID string, credits []CounterCredit, meta EntryMeta) (map[string]int64, error) {
	for _, c := range credits {
		if c.Amount < 0 {
			return nil, ErrInvalidAmount
		}
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	out := make(map[string]int64, len(credits))
	for _, c := range credits {
		var bal int64
		err := tx.QueryRow(ctx, `UPDATE actor_counters
			SET balance = LEAST(max_balance, balance + $3), updated_at = now()
			WHERE actor_id = $1 AND counter = $2
			RETURNING balance`,
			actorID, c.Counter, c.Amount,
		).Scan(&bal)
		if err != nil {
			return nil, mapNotFound(err)
		}
		if err := insertLedgerEntry(ctx, tx, actorID, c.Counter, c.Amount, meta); err != nil {
			return nil, err
		}
		out[c.Counter] = bal
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// RecoverSessionCounters credits amount to every counter of every actor in a
// session, capped at max, and stamps last_recovered_at.
func (s *Store) RecoverSessionCounters(ctx context.Context, sessionID string, amount int64, at time.Time) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	tag, err := s.Pool.Exec(ctx, `UPDATE actor_counters
		SET balance = LEAST(max_balance, balance + $2), last_recovered_at = $3, updated_at = now()
		WHERE session_id = $1`,
		sessionID, amount, timestamptzParam(at),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ListLedgerEntries(ctx context.Context, actorID string, limit int) ([]LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `SELECT id, actor_id, counter, type, amount, ref_type, ref_id, created_at
		FROM ledger_entries WHERE actor_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`, actorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LedgerEntry{}
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Counter, &e.Type, &e.Amount, &e.RefType, &e.RefID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func insertLedgerEntry(ctx context.Context, tx pgx.Tx, actorID, counter string, amount int64, meta EntryMeta) error {
	_, err := tx.Exec(ctx, `INSERT INTO ledger_entries (id, actor_id, counter, type, amount, ref_type, ref_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		NewID(), actorID, counter, meta.Type, amount, meta.RefType, meta.RefID,
	)
	return err
}
