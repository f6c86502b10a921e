package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"scamguard-bot/internal/model"
)

// ScoreRepository holds the leaderboard aggregator's period-scoped view
// of accumulated scores. Rows are keyed (user_id, period, period_key);
// rank is never stored, only derived at query time.
type ScoreRepository struct {
	pool *pgxpool.Pool
}

// NewScoreRepository creates a new ScoreRepository instance.
func NewScoreRepository(pool *pgxpool.Pool) *ScoreRepository {
	return &ScoreRepository{pool: pool}
}

// ApplyDelta adds delta to the user's score in every currently open
// period, inside the caller's transaction scope. first_scored_at is set
// on the first delta of a window and kept on later ones, anchoring
// deterministic tie-breaks.
func (r *ScoreRepository) ApplyDelta(ctx context.Context, q DBTX, userID, delta int64, at time.Time) error {
	const query = `
		INSERT INTO period_scores (user_id, period, period_key, score, first_scored_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, period, period_key)
		DO UPDATE SET score = period_scores.score + EXCLUDED.score
	`

	for _, kind := range model.PeriodKinds() {
		if _, err := q.Exec(ctx, query, userID, kind, kind.Key(at), delta, at); err != nil {
			return fmt.Errorf("failed to apply score delta for %s: %w", kind, err)
		}
	}
	return nil
}

// Ranked returns the ranked view of one period window. Rank is a pure
// function of the (score, first_scored_at) snapshot: score descending,
// earliest first score wins ties, user id as the final deterministic
// tie-break.
func (r *ScoreRepository) Ranked(ctx context.Context, kind model.PeriodKind, key string, limit int) ([]*model.RankedEntry, error) {
	const query = `
		SELECT ROW_NUMBER() OVER (ORDER BY s.score DESC, s.first_scored_at ASC, s.user_id ASC) AS rank,
		       s.user_id, u.username, s.score, s.first_scored_at
		FROM period_scores s
		JOIN users u ON s.user_id = u.telegram_id
		WHERE s.period = $1 AND s.period_key = $2
		ORDER BY rank
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, kind, key, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranked view: %w", err)
	}
	defer rows.Close()

	var entries []*model.RankedEntry
	for rows.Next() {
		e := model.RankedEntry{Period: kind}
		err := rows.Scan(&e.Rank, &e.UserID, &e.Username, &e.Score, &e.FirstScoredAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ranked entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ranked view: %w", err)
	}
	return entries, nil
}

// UserRank returns a user's rank and the number of entrants within one
// period window. Rank 0 means the user has no score in the window.
func (r *ScoreRepository) UserRank(ctx context.Context, kind model.PeriodKind, key string, userID int64) (int, int, error) {
	const query = `
		SELECT COALESCE(MAX(CASE WHEN user_id = $3 THEN rank END), 0), COUNT(*)
		FROM (
			SELECT user_id,
			       ROW_NUMBER() OVER (ORDER BY score DESC, first_scored_at ASC, user_id ASC) AS rank
			FROM period_scores
			WHERE period = $1 AND period_key = $2
		) ranked
	`

	var rank, total int
	if err := r.pool.QueryRow(ctx, query, kind, key, userID).Scan(&rank, &total); err != nil {
		return 0, 0, fmt.Errorf("failed to query user rank: %w", err)
	}
	return rank, total, nil
}

// DeleteStale wipes rows of a period kind whose window key is not the
// current one. Period reset is exactly this: invoking it twice within
// the same window deletes nothing the second time, and all-time rows
// (single window) are never touched.
func (r *ScoreRepository) DeleteStale(ctx context.Context, kind model.PeriodKind, currentKey string) (int64, error) {
	const query = `DELETE FROM period_scores WHERE period = $1 AND period_key <> $2`

	result, err := r.pool.Exec(ctx, query, kind, currentKey)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale scores: %w", err)
	}
	return result.RowsAffected(), nil
}

// CountEntrants returns the number of scored users in one period window.
func (r *ScoreRepository) CountEntrants(ctx context.Context, kind model.PeriodKind, key string) (int, error) {
	const query = `SELECT COUNT(*) FROM period_scores WHERE period = $1 AND period_key = $2`

	var count int
	if err := r.pool.QueryRow(ctx, query, kind, key).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entrants: %w", err)
	}
	return count, nil
}
