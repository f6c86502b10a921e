package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scamguard-bot/internal/model"
)

// ErrReportNotFound is returned when a report id does not exist.
var ErrReportNotFound = errors.New("report not found")

const reportColumns = "id, reporter_id, category, city, details, verified, vote_tally, created_at"

// ReportRepository handles community scam reports and their votes.
type ReportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository creates a new ReportRepository instance.
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

func scanReport(row pgx.Row) (*model.CommunityReport, error) {
	var rpt model.CommunityReport
	err := row.Scan(
		&rpt.ID,
		&rpt.ReporterID,
		&rpt.Category,
		&rpt.City,
		&rpt.Details,
		&rpt.Verified,
		&rpt.VoteTally,
		&rpt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return &rpt, nil
}

// Create stores a new report inside the caller's transaction scope.
func (r *ReportRepository) Create(ctx context.Context, q DBTX, reporterID int64, category, city, details string) (*model.CommunityReport, error) {
	const query = `
		INSERT INTO community_reports (reporter_id, category, city, details, verified, vote_tally, created_at)
		VALUES ($1, $2, $3, $4, FALSE, 0, NOW())
		RETURNING ` + reportColumns

	rpt, err := scanReport(q.QueryRow(ctx, query, reporterID, category, city, details))
	if err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}
	return rpt, nil
}

// GetForUpdate locks and returns a report within the caller's
// transaction. Vote casts lock the report row first so two
// near-simultaneous threshold checks serialize instead of both seeing a
// stale tally.
func (r *ReportRepository) GetForUpdate(ctx context.Context, q DBTX, reportID int64) (*model.CommunityReport, error) {
	const query = `SELECT ` + reportColumns + ` FROM community_reports WHERE id = $1 FOR UPDATE`

	rpt, err := scanReport(q.QueryRow(ctx, query, reportID))
	if err != nil {
		if errors.Is(err, ErrReportNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock report: %w", err)
	}
	return rpt, nil
}

// UpsertVote records a voter's judgment on a report. A voter has one
// vote per report; casting again overwrites the earlier judgment.
func (r *ReportRepository) UpsertVote(ctx context.Context, q DBTX, voterID, reportID int64, isScam bool) error {
	const query = `
		INSERT INTO report_votes (voter_id, report_id, is_scam, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (voter_id, report_id)
		DO UPDATE SET is_scam = EXCLUDED.is_scam, updated_at = NOW()
	`

	if _, err := q.Exec(ctx, query, voterID, reportID, isScam); err != nil {
		return fmt.Errorf("failed to upsert vote: %w", err)
	}
	return nil
}

// CountAffirmative recomputes the affirmative tally from the current
// vote set. The tally is never maintained incrementally, so vote
// overwrites cannot drift it.
func (r *ReportRepository) CountAffirmative(ctx context.Context, q DBTX, reportID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM report_votes WHERE report_id = $1 AND is_scam`

	var count int
	if err := q.QueryRow(ctx, query, reportID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count affirmative votes: %w", err)
	}
	return count, nil
}

// UpdateTally stores the recomputed tally on the report row.
func (r *ReportRepository) UpdateTally(ctx context.Context, q DBTX, reportID int64, tally int) error {
	const query = `UPDATE community_reports SET vote_tally = $2 WHERE id = $1`

	if _, err := q.Exec(ctx, query, reportID, tally); err != nil {
		return fmt.Errorf("failed to update tally: %w", err)
	}
	return nil
}

// MarkVerified flips the verified flag. The guard on verified = FALSE
// makes the flip happen exactly once; the returned bool reports whether
// this call performed it.
func (r *ReportRepository) MarkVerified(ctx context.Context, q DBTX, reportID int64) (bool, error) {
	const query = `UPDATE community_reports SET verified = TRUE WHERE id = $1 AND NOT verified`

	result, err := q.Exec(ctx, query, reportID)
	if err != nil {
		return false, fmt.Errorf("failed to mark report verified: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// ListRecent returns the newest reports, optionally filtered by city.
// Reporter identity stays in the row for internal checks; callers must
// not render it.
func (r *ReportRepository) ListRecent(ctx context.Context, city string, limit int) ([]*model.CommunityReport, error) {
	query := `SELECT ` + reportColumns + ` FROM community_reports ORDER BY created_at DESC LIMIT $1`
	args := []any{limit}
	if city != "" {
		query = `SELECT ` + reportColumns + ` FROM community_reports WHERE city = $2 ORDER BY created_at DESC LIMIT $1`
		args = append(args, city)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []*model.CommunityReport
	for rows.Next() {
		var rpt model.CommunityReport
		err := rows.Scan(
			&rpt.ID,
			&rpt.ReporterID,
			&rpt.Category,
			&rpt.City,
			&rpt.Details,
			&rpt.Verified,
			&rpt.VoteTally,
			&rpt.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, &rpt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return reports, nil
}
