package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scamguard-bot/internal/model"
)

// ErrCodeNotFound is returned when a referral code is unknown.
var ErrCodeNotFound = errors.New("referral code not found")

// ReferralRepository handles referral codes and referrer-referee edges.
type ReferralRepository struct {
	pool *pgxpool.Pool
}

// NewReferralRepository creates a new ReferralRepository instance.
func NewReferralRepository(pool *pgxpool.Pool) *ReferralRepository {
	return &ReferralRepository{pool: pool}
}

// GetCode returns the user's referral code, if one exists.
func (r *ReferralRepository) GetCode(ctx context.Context, userID int64) (string, error) {
	const query = `SELECT code FROM referral_codes WHERE user_id = $1`

	var code string
	err := r.pool.QueryRow(ctx, query, userID).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrCodeNotFound
		}
		return "", fmt.Errorf("failed to get referral code: %w", err)
	}
	return code, nil
}

// CreateCode stores a code for the user. If the user already has one
// (concurrent creation), the existing code is returned instead.
func (r *ReferralRepository) CreateCode(ctx context.Context, userID int64, code string) (string, error) {
	const query = `
		INSERT INTO referral_codes (user_id, code, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO NOTHING
	`

	if _, err := r.pool.Exec(ctx, query, userID, code); err != nil {
		return "", fmt.Errorf("failed to create referral code: %w", err)
	}
	return r.GetCode(ctx, userID)
}

// ResolveCode maps a code to its owning referrer.
func (r *ReferralRepository) ResolveCode(ctx context.Context, code string) (int64, error) {
	const query = `SELECT user_id FROM referral_codes WHERE code = $1`

	var userID int64
	err := r.pool.QueryRow(ctx, query, code).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrCodeNotFound
		}
		return 0, fmt.Errorf("failed to resolve referral code: %w", err)
	}
	return userID, nil
}

// LockReferrer takes a row lock on the referrer's code row inside the
// caller's transaction. Concurrent claims of the same code serialize on
// it, so each one counts a distinct edge total.
func (r *ReferralRepository) LockReferrer(ctx context.Context, q DBTX, referrerID int64) error {
	const query = `SELECT user_id FROM referral_codes WHERE user_id = $1 FOR UPDATE`

	var id int64
	err := q.QueryRow(ctx, query, referrerID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCodeNotFound
		}
		return fmt.Errorf("failed to lock referrer: %w", err)
	}
	return nil
}

// InsertEdge records a referrer-referee edge inside the caller's
// transaction. UNIQUE(referee_id) enforces first-claim-wins: a referee
// already claimed by any code conflicts and inserts nothing.
func (r *ReferralRepository) InsertEdge(ctx context.Context, q DBTX, referrerID, refereeID int64) (bool, error) {
	const query = `
		INSERT INTO referral_edges (referrer_id, referee_id, status, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (referee_id) DO NOTHING
	`

	result, err := q.Exec(ctx, query, referrerID, refereeID, model.ReferralPending)
	if err != nil {
		return false, fmt.Errorf("failed to insert referral edge: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// CountEdges returns the referrer's completed referral count within the
// caller's transaction, so a tier decision sees the edge just inserted.
func (r *ReferralRepository) CountEdges(ctx context.Context, q DBTX, referrerID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM referral_edges WHERE referrer_id = $1`

	var count int
	if err := q.QueryRow(ctx, query, referrerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count referral edges: %w", err)
	}
	return count, nil
}

// MarkRewarded flips the referrer's pending edges to rewarded when a
// tier payout covers them.
func (r *ReferralRepository) MarkRewarded(ctx context.Context, q DBTX, referrerID int64) error {
	const query = `UPDATE referral_edges SET status = $2 WHERE referrer_id = $1 AND status = $3`

	if _, err := q.Exec(ctx, query, referrerID, model.ReferralRewarded, model.ReferralPending); err != nil {
		return fmt.Errorf("failed to mark edges rewarded: %w", err)
	}
	return nil
}

// GetEdgeByReferee returns the edge claiming a referee, if any.
func (r *ReferralRepository) GetEdgeByReferee(ctx context.Context, refereeID int64) (*model.ReferralEdge, error) {
	const query = `
		SELECT id, referrer_id, referee_id, status, created_at
		FROM referral_edges
		WHERE referee_id = $1
	`

	var edge model.ReferralEdge
	err := r.pool.QueryRow(ctx, query, refereeID).Scan(
		&edge.ID,
		&edge.ReferrerID,
		&edge.RefereeID,
		&edge.Status,
		&edge.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get referral edge: %w", err)
	}
	return &edge, nil
}
