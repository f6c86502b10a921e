package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"scamguard-bot/internal/ledger"
	"scamguard-bot/internal/model"
	"scamguard-bot/internal/repository"
)

// Referral errors.
var (
	// ErrAlreadyReferred is a state conflict: the referee was claimed by
	// an earlier code. First claim wins; no trial credit is issued.
	ErrAlreadyReferred = errors.New("user already referred")
	// ErrUnknownCode is returned for a code that maps to no referrer.
	ErrUnknownCode = repository.ErrCodeNotFound
	// ErrSelfReferral is returned when a user redeems their own code.
	ErrSelfReferral = errors.New("cannot refer yourself")
)

// ReferralResult summarizes a processed referral.
type ReferralResult struct {
	ReferrerID     int64
	TrialReward    int64
	CompletedCount int
	TierPaid       int // 0 when no tier boundary was crossed
}

// ReferralService tracks referrer-referee edges and pays the trial and
// tier rewards. The edge insert, the referee's trial credit and any tier
// payout commit in one transaction.
type ReferralService struct {
	pool     *pgxpool.Pool
	refs     *repository.ReferralRepository
	ledger   *ledger.Service
	tierSize int
	trial    int64
	tier     int64
}

// NewReferralService creates a new ReferralService instance.
func NewReferralService(
	pool *pgxpool.Pool,
	refs *repository.ReferralRepository,
	ledgerSvc *ledger.Service,
	tierSize int,
	trialReward, tierReward int64,
) *ReferralService {
	return &ReferralService{
		pool:     pool,
		refs:     refs,
		ledger:   ledgerSvc,
		tierSize: tierSize,
		trial:    trialReward,
		tier:     tierReward,
	}
}

// Code returns the user's referral code, creating one on first use.
func (s *ReferralService) Code(ctx context.Context, userID int64) (string, error) {
	code, err := s.refs.GetCode(ctx, userID)
	if err == nil {
		return code, nil
	}
	if !errors.Is(err, repository.ErrCodeNotFound) {
		return "", err
	}
	return s.refs.CreateCode(ctx, userID, generateCode(userID, time.Now()))
}

// RecordReferral claims newUserID as the referee of the code's owner.
// The referee is trial-credited immediately; when the referrer's
// completed count crosses a tier boundary the referrer is credited once
// per tier, keyed by the tier index.
func (s *ReferralService) RecordReferral(ctx context.Context, code string, newUserID int64) (*ReferralResult, error) {
	referrerID, err := s.refs.ResolveCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if referrerID == newUserID {
		return nil, ErrSelfReferral
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin referral transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serialize claims of the same code so the edge count each claim
	// sees includes every committed claim before it. Without the lock
	// two concurrent claims can both straddle a tier boundary and skip
	// its payout for good.
	if err := s.refs.LockReferrer(ctx, tx, referrerID); err != nil {
		return nil, err
	}

	inserted, err := s.refs.InsertEdge(ctx, tx, referrerID, newUserID)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, ErrAlreadyReferred
	}

	if _, err := s.ledger.CreditTx(ctx, tx, newUserID, s.trial, model.ReasonReferralTrial, "referral_trial"); err != nil {
		return nil, err
	}

	count, err := s.refs.CountEdges(ctx, tx, referrerID)
	if err != nil {
		return nil, err
	}

	result := &ReferralResult{
		ReferrerID:     referrerID,
		TrialReward:    s.trial,
		CompletedCount: count,
	}
	if count%s.tierSize == 0 {
		tierIndex := count / s.tierSize
		dedupKey := fmt.Sprintf("referral_tier:%d", tierIndex)
		if _, err := s.ledger.CreditTx(ctx, tx, referrerID, s.tier, model.ReasonReferralTier, dedupKey); err != nil {
			return nil, err
		}
		if err := s.refs.MarkRewarded(ctx, tx, referrerID); err != nil {
			return nil, err
		}
		result.TierPaid = tierIndex
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit referral transaction: %w", err)
	}

	log.Info().
		Int64("referrer_id", referrerID).
		Int64("referee_id", newUserID).
		Int("completed", count).
		Int("tier_paid", result.TierPaid).
		Msg("Referral recorded")
	return result, nil
}

// generateCode derives an 8-character upper-hex code from the user id
// and the creation time.
func generateCode(userID int64, t time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d_%d", userID, t.UnixNano())))
	return strings.ToUpper(hex.EncodeToString(sum[:])[:8])
}
