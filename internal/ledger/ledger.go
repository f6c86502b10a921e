// Package ledger implements the reward ledger: atomic, idempotent
// coin and badge accounting. Every successful credit appends one
// immutable entry and feeds the same delta into the leaderboard's open
// periods within a single transaction, so a credit either lands fully or
// not at all.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"scamguard-bot/internal/model"
	"scamguard-bot/internal/repository"
)

// Ledger errors.
var (
	// ErrInsufficientFunds is returned when a debit would push the
	// balance below zero. Nothing is written.
	ErrInsufficientFunds = repository.ErrInsufficientFunds
	// ErrDebitNotAllowed is returned for a negative delta under a reason
	// code that is not an enumerated debit reason.
	ErrDebitNotAllowed = errors.New("reason does not permit debits")
)

// Service is the reward ledger.
type Service struct {
	pool    *pgxpool.Pool
	users   *repository.UserRepository
	entries *repository.LedgerRepository
	scores  *repository.ScoreRepository
	now     func() time.Time
}

// NewService creates a new ledger Service.
func NewService(
	pool *pgxpool.Pool,
	users *repository.UserRepository,
	entries *repository.LedgerRepository,
	scores *repository.ScoreRepository,
) *Service {
	return &Service{
		pool:    pool,
		users:   users,
		entries: entries,
		scores:  scores,
		now:     time.Now,
	}
}

// Credit applies a coin delta to a user in its own transaction and
// returns the new balance. Replaying the same dedup key is a no-op that
// returns the balance unchanged; message redelivery and handler retries
// may replay completion events freely.
func (s *Service) Credit(ctx context.Context, userID, delta int64, reason, dedupKey string) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin credit transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	balance, err := s.CreditTx(ctx, tx, userID, delta, reason, dedupKey)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit credit transaction: %w", err)
	}
	return balance, nil
}

// CreditTx is Credit running inside the caller's transaction, so other
// components (consensus flip, referral claim) can make their state change
// and the payout atomic.
func (s *Service) CreditTx(ctx context.Context, tx pgx.Tx, userID, delta int64, reason, dedupKey string) (int64, error) {
	if delta < 0 && !debitAllowed(reason) {
		return 0, ErrDebitNotAllowed
	}

	inserted, err := s.entries.Insert(ctx, tx, userID, delta, reason, dedupKey)
	if err != nil {
		return 0, err
	}
	if !inserted {
		// Dedup replay: no entry, no balance change, no score event.
		var balance int64
		if err := tx.QueryRow(ctx, `SELECT balance FROM users WHERE telegram_id = $1`, userID).Scan(&balance); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, repository.ErrUserNotFound
			}
			return 0, fmt.Errorf("failed to read balance: %w", err)
		}
		log.Debug().
			Int64("user_id", userID).
			Str("dedup_key", dedupKey).
			Msg("Duplicate credit ignored")
		return balance, nil
	}

	balance, err := s.users.ApplyDelta(ctx, tx, userID, delta)
	if err != nil {
		// The entry insert above rolls back with the transaction, so a
		// rejected debit leaves no ledger trace.
		return 0, err
	}

	if delta > 0 && scoreBearing(reason) {
		if err := s.scores.ApplyDelta(ctx, tx, userID, delta, s.now()); err != nil {
			return 0, err
		}
	}

	log.Info().
		Int64("user_id", userID).
		Int64("delta", delta).
		Str("reason", reason).
		Int64("balance", balance).
		Msg("Ledger credit applied")
	return balance, nil
}

// AwardBadge grants a badge to a user. Re-awarding is a no-op; returns
// whether the badge was newly granted.
func (s *Service) AwardBadge(ctx context.Context, userID int64, badgeID string) (bool, error) {
	awarded, err := s.users.AwardBadge(ctx, s.pool, userID, badgeID)
	if err != nil {
		return false, err
	}
	if awarded {
		log.Info().Int64("user_id", userID).Str("badge", badgeID).Msg("Badge awarded")
	}
	return awarded, nil
}

// Balance returns a user's current coin balance.
func (s *Service) Balance(ctx context.Context, userID int64) (int64, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

// History returns the user's most recent ledger entries.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]*model.LedgerEntry, error) {
	return s.entries.GetByUserID(ctx, userID, limit)
}

func debitAllowed(reason string) bool {
	for _, r := range model.DebitReasons() {
		if r == reason {
			return true
		}
	}
	return false
}

func scoreBearing(reason string) bool {
	for _, r := range model.ScoreBearingReasons() {
		if r == reason {
			return true
		}
	}
	return false
}
