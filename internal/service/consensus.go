package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"scamguard-bot/internal/ledger"
	"scamguard-bot/internal/model"
	"scamguard-bot/internal/repository"
)

// Consensus errors.
var (
	// ErrSelfVote is a state conflict: a reporter cannot vote on their
	// own report.
	ErrSelfVote = errors.New("cannot vote on own report")
	// ErrReportNotFound mirrors the repository sentinel.
	ErrReportNotFound = repository.ErrReportNotFound
)

// VoteResult describes the state of a report after a cast.
type VoteResult struct {
	ReportID    int64
	Tally       int
	Verified    bool
	JustFlipped bool
}

// ConsensusService tallies community votes on anonymous scam reports.
// Every cast runs in one transaction that locks the report row, so two
// near-simultaneous votes cannot both observe a stale tally: the flip to
// verified happens exactly once, and the reporter's payout commits
// atomically with it.
type ConsensusService struct {
	pool      *pgxpool.Pool
	reports   *repository.ReportRepository
	ledger    *ledger.Service
	threshold int
	reward    int64
}

// NewConsensusService creates a new ConsensusService instance.
func NewConsensusService(
	pool *pgxpool.Pool,
	reports *repository.ReportRepository,
	ledgerSvc *ledger.Service,
	threshold int,
	reward int64,
) *ConsensusService {
	return &ConsensusService{
		pool:      pool,
		reports:   reports,
		ledger:    ledgerSvc,
		threshold: threshold,
		reward:    reward,
	}
}

// SubmitReport stores a new anonymous report and returns its id.
func (s *ConsensusService) SubmitReport(ctx context.Context, reporterID int64, category, city, details string) (int64, error) {
	rpt, err := s.reports.Create(ctx, s.pool, reporterID, category, city, details)
	if err != nil {
		return 0, err
	}
	log.Info().
		Int64("report_id", rpt.ID).
		Str("category", category).
		Msg("Community report submitted")
	return rpt.ID, nil
}

// CastVote records a voter's judgment. A repeat cast from the same voter
// overwrites the earlier vote; the tally is recomputed from the full
// vote set under the report's row lock before the threshold decision.
func (s *ConsensusService) CastVote(ctx context.Context, voterID, reportID int64, isScam bool) (*VoteResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin vote transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rpt, err := s.reports.GetForUpdate(ctx, tx, reportID)
	if err != nil {
		return nil, err
	}
	if rpt.ReporterID == voterID {
		return nil, ErrSelfVote
	}

	if err := s.reports.UpsertVote(ctx, tx, voterID, reportID, isScam); err != nil {
		return nil, err
	}

	tally, err := s.reports.CountAffirmative(ctx, tx, reportID)
	if err != nil {
		return nil, err
	}
	if err := s.reports.UpdateTally(ctx, tx, reportID, tally); err != nil {
		return nil, err
	}

	result := &VoteResult{ReportID: reportID, Tally: tally, Verified: rpt.Verified}
	if !rpt.Verified && tally >= s.threshold {
		flipped, err := s.reports.MarkVerified(ctx, tx, reportID)
		if err != nil {
			return nil, err
		}
		if flipped {
			dedupKey := fmt.Sprintf("report_verified:%d", reportID)
			if _, err := s.ledger.CreditTx(ctx, tx, rpt.ReporterID, s.reward, model.ReasonReportVerified, dedupKey); err != nil {
				return nil, err
			}
			result.Verified = true
			result.JustFlipped = true
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit vote transaction: %w", err)
	}

	if result.JustFlipped {
		log.Info().
			Int64("report_id", reportID).
			Int("tally", tally).
			Msg("Report verified by community consensus")
	}
	return result, nil
}

// ListRecent returns the newest reports for browsing and voting.
// Reporter identity is never part of the rendered view.
func (s *ConsensusService) ListRecent(ctx context.Context, city string, limit int) ([]*model.CommunityReport, error) {
	return s.reports.ListRecent(ctx, city, limit)
}
