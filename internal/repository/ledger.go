package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"scamguard-bot/internal/model"
)

// LedgerRepository handles the append-only coin ledger. Entries are never
// mutated or deleted; idempotence comes from UNIQUE(user_id, dedup_key).
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepository instance.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// Insert appends a ledger entry inside the caller's transaction scope.
// A dedup-key replay conflicts with the unique index and inserts nothing;
// the returned bool reports whether the entry is new.
func (r *LedgerRepository) Insert(ctx context.Context, q DBTX, userID, delta int64, reason, dedupKey string) (bool, error) {
	const query = `
		INSERT INTO ledger_entries (user_id, delta, reason, dedup_key, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, dedup_key) DO NOTHING
	`

	result, err := q.Exec(ctx, query, userID, delta, reason, dedupKey)
	if err != nil {
		return false, fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// GetByUserID retrieves a user's ledger entries, newest first.
func (r *LedgerRepository) GetByUserID(ctx context.Context, userID int64, limit int) ([]*model.LedgerEntry, error) {
	const query = `
		SELECT id, user_id, delta, reason, dedup_key, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		err := rows.Scan(&e.ID, &e.UserID, &e.Delta, &e.Reason, &e.DedupKey, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}

// SumByUser returns the sum of all deltas for a user. With the dedup
// index in place this always equals the user's balance.
func (r *LedgerRepository) SumByUser(ctx context.Context, userID int64) (int64, error) {
	const query = `SELECT COALESCE(SUM(delta), 0) FROM ledger_entries WHERE user_id = $1`

	var sum int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	return sum, nil
}

// CountByUser returns the number of ledger entries for a user.
func (r *LedgerRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM ledger_entries WHERE user_id = $1`

	var count int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	return count, nil
}
