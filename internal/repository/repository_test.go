// Package repository tests run against a real PostgreSQL instance
// started with testcontainers-go. They are skipped when Docker is not
// available.
package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"scamguard-bot/internal/model"
)

// checkDockerAvailable checks if Docker is available and running.
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	return cmd.Run() == nil
}

// setupTestDB creates a PostgreSQL container and returns a connection
// pool. Skips the test if Docker is not available.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, applySchema(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return pool, cleanup
}

// applySchema creates the tables the repositories run against.
func applySchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			telegram_id BIGINT PRIMARY KEY,
			username VARCHAR(255) NOT NULL DEFAULT '',
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			max_unlocked_level INT NOT NULL DEFAULT 1,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS user_badges (
			user_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
			badge_id VARCHAR(50) NOT NULL,
			awarded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, badge_id)
		);
		CREATE TABLE IF NOT EXISTS ledger_entries (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
			delta BIGINT NOT NULL,
			reason VARCHAR(50) NOT NULL,
			dedup_key VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, dedup_key)
		);
		CREATE TABLE IF NOT EXISTS period_scores (
			user_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
			period VARCHAR(20) NOT NULL,
			period_key VARCHAR(20) NOT NULL,
			score BIGINT NOT NULL DEFAULT 0,
			first_scored_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, period, period_key)
		);
		CREATE TABLE IF NOT EXISTS community_reports (
			id BIGSERIAL PRIMARY KEY,
			reporter_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
			category VARCHAR(100) NOT NULL,
			city VARCHAR(100) NOT NULL DEFAULT '',
			details TEXT NOT NULL,
			verified BOOLEAN NOT NULL DEFAULT FALSE,
			vote_tally INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS report_votes (
			voter_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
			report_id BIGINT NOT NULL REFERENCES community_reports(id) ON DELETE CASCADE,
			is_scam BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (voter_id, report_id)
		);
		CREATE TABLE IF NOT EXISTS referral_codes (
			user_id BIGINT PRIMARY KEY REFERENCES users(telegram_id) ON DELETE CASCADE,
			code VARCHAR(20) NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS referral_edges (
			id BIGSERIAL PRIMARY KEY,
			referrer_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
			referee_id BIGINT NOT NULL UNIQUE,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS user_items (
			user_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
			item_id VARCHAR(50) NOT NULL,
			quantity INT NOT NULL DEFAULT 0 CHECK (quantity >= 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, item_id)
		);
	`)
	return err
}

func mustCreateUser(t *testing.T, pool *pgxpool.Pool, id int64) *model.User {
	t.Helper()
	user, err := NewUserRepository(pool).Create(context.Background(), id, "user")
	require.NoError(t, err)
	return user
}

// ============================================================================
// UserRepository
// ============================================================================

func TestUserRepository_CreateDefaults(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	user := mustCreateUser(t, pool, 100)
	assert.Equal(t, int64(0), user.Balance)
	assert.Equal(t, 1, user.MaxUnlockedLevel)
	assert.True(t, user.Active)
	assert.False(t, user.CreatedAt.IsZero())
}

func TestUserRepository_GetOrCreate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	_, created, err := repo.GetOrCreate(ctx, 100, "first")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := repo.GetOrCreate(ctx, 100, "second")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "first", again.Username)
}

func TestUserRepository_ApplyDelta_Floor(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()
	mustCreateUser(t, pool, 100)

	balance, err := repo.ApplyDelta(ctx, pool, 100, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	// A debit past zero is rejected and changes nothing
	_, err = repo.ApplyDelta(ctx, pool, 100, -80)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	user, err := repo.GetByID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(50), user.Balance)

	// A debit down to exactly zero passes
	balance, err = repo.ApplyDelta(ctx, pool, 100, -50)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	// Missing user is told apart from an empty balance
	_, err = repo.ApplyDelta(ctx, pool, 999, -1)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_UnlockLevel_Monotonic(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()
	mustCreateUser(t, pool, 100)

	require.NoError(t, repo.UnlockLevel(ctx, 100, 3))
	// A replayed lower unlock never regresses the frontier
	require.NoError(t, repo.UnlockLevel(ctx, 100, 2))

	level, err := repo.MaxUnlockedLevel(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 3, level)
}

func TestUserRepository_AwardBadge_Idempotent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()
	mustCreateUser(t, pool, 100)

	awarded, err := repo.AwardBadge(ctx, pool, 100, model.BadgeCallDefender)
	require.NoError(t, err)
	assert.True(t, awarded)

	awarded, err = repo.AwardBadge(ctx, pool, 100, model.BadgeCallDefender)
	require.NoError(t, err)
	assert.False(t, awarded)

	badges, err := repo.ListBadges(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{model.BadgeCallDefender}, badges)
}

// ============================================================================
// LedgerRepository
// ============================================================================

func TestLedgerRepository_Insert_Dedup(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewLedgerRepository(pool)
	ctx := context.Background()
	mustCreateUser(t, pool, 100)

	inserted, err := repo.Insert(ctx, pool, 100, 10, model.ReasonQuiz, "quiz:1:attempt-a")
	require.NoError(t, err)
	assert.True(t, inserted)

	// A replay of the same dedup key is absorbed
	inserted, err = repo.Insert(ctx, pool, 100, 10, model.ReasonQuiz, "quiz:1:attempt-a")
	require.NoError(t, err)
	assert.False(t, inserted)

	// A different attempt writes a second entry
	inserted, err = repo.Insert(ctx, pool, 100, 10, model.ReasonQuiz, "quiz:1:attempt-b")
	require.NoError(t, err)
	assert.True(t, inserted)

	count, err := repo.CountByUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	sum, err := repo.SumByUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(20), sum)
}

func TestLedgerRepository_SameKeyDifferentUsers(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewLedgerRepository(pool)
	ctx := context.Background()
	mustCreateUser(t, pool, 100)
	mustCreateUser(t, pool, 200)

	inserted, err := repo.Insert(ctx, pool, 100, 10, model.ReasonWelcome, "welcome")
	require.NoError(t, err)
	assert.True(t, inserted)

	// Dedup keys are scoped per user
	inserted, err = repo.Insert(ctx, pool, 200, 10, model.ReasonWelcome, "welcome")
	require.NoError(t, err)
	assert.True(t, inserted)
}

// ============================================================================
// ScoreRepository
// ============================================================================

func TestScoreRepository_ApplyDelta_AccumulatesAllWindows(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewScoreRepository(pool)
	ctx := context.Background()
	mustCreateUser(t, pool, 100)

	at := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.ApplyDelta(ctx, pool, 100, 10, at))
	require.NoError(t, repo.ApplyDelta(ctx, pool, 100, 5, at))

	for _, kind := range model.PeriodKinds() {
		entries, err := repo.Ranked(ctx, kind, kind.Key(at), 10)
		require.NoError(t, err)
		require.Len(t, entries, 1, "period %s", kind)
		assert.Equal(t, int64(15), entries[0].Score)
		assert.Equal(t, 1, entries[0].Rank)
	}
}

func TestScoreRepository_Ranked_OrderAndTieBreak(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewScoreRepository(pool)
	ctx := context.Background()
	mustCreateUser(t, pool, 100)
	mustCreateUser(t, pool, 200)
	mustCreateUser(t, pool, 300)

	early := time.Date(2026, time.August, 31, 8, 0, 0, 0, time.UTC)
	late := early.Add(2 * time.Hour)

	require.NoError(t, repo.ApplyDelta(ctx, pool, 100, 20, late))
	require.NoError(t, repo.ApplyDelta(ctx, pool, 200, 20, early))
	require.NoError(t, repo.ApplyDelta(ctx, pool, 300, 50, late))

	entries, err := repo.Ranked(ctx, model.PeriodAllTime, "all", 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Highest score first; the 20-20 tie goes to whoever scored first
	assert.Equal(t, int64(300), entries[0].UserID)
	assert.Equal(t, int64(200), entries[1].UserID)
	assert.Equal(t, int64(100), entries[2].UserID)
	assert.Equal(t, []int{1, 2, 3}, []int{entries[0].Rank, entries[1].Rank, entries[2].Rank})

	rank, total, err := repo.UserRank(ctx, model.PeriodAllTime, "all", 100)
	require.NoError(t, err)
	assert.Equal(t, 3, rank)
	assert.Equal(t, 3, total)

	// A user with no score in the window ranks zero
	mustCreateUser(t, pool, 400)
	rank, total, err = repo.UserRank(ctx, model.PeriodAllTime, "all", 400)
	require.NoError(t, err)
	assert.Zero(t, rank)
	assert.Equal(t, 3, total)
}

func TestScoreRepository_DeleteStale_KeepsCurrentWindow(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewScoreRepository(pool)
	ctx := context.Background()
	mustCreateUser(t, pool, 100)

	lastWeek := time.Date(2026, time.August, 20, 12, 0, 0, 0, time.UTC)
	thisWeek := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.ApplyDelta(ctx, pool, 100, 10, lastWeek))
	require.NoError(t, repo.ApplyDelta(ctx, pool, 100, 7, thisWeek))

	currentKey := model.PeriodWeekly.Key(thisWeek)
	deleted, err := repo.DeleteStale(ctx, model.PeriodWeekly, currentKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	// A second reset for the same window deletes nothing
	deleted, err = repo.DeleteStale(ctx, model.PeriodWeekly, currentKey)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	// The current week and the all-time window survive
	entries, err := repo.Ranked(ctx, model.PeriodWeekly, currentKey, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(7), entries[0].Score)

	entries, err = repo.Ranked(ctx, model.PeriodAllTime, "all", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(17), entries[0].Score)
}

// ============================================================================
// ReportRepository
// ============================================================================

func TestReportRepository_VoteOverwrite(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewReportRepository(pool)
	ctx := context.Background()
	mustCreateUser(t, pool, 100)
	mustCreateUser(t, pool, 200)

	report, err := repo.Create(ctx, pool, 100, "phishing", "Riga", "fake bank email")
	require.NoError(t, err)

	require.NoError(t, repo.UpsertVote(ctx, pool, 200, report.ID, true))
	count, err := repo.CountAffirmative(ctx, pool, report.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The same voter switching sides replaces the earlier vote
	require.NoError(t, repo.UpsertVote(ctx, pool, 200, report.ID, false))
	count, err = repo.CountAffirmative(ctx, pool, report.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReportRepository_MarkVerified_FlipsOnce(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewReportRepository(pool)
	ctx := context.Background()
	mustCreateUser(t, pool, 100)

	report, err := repo.Create(ctx, pool, 100, "phishing", "", "details")
	require.NoError(t, err)

	flipped, err := repo.MarkVerified(ctx, pool, report.ID)
	require.NoError(t, err)
	assert.True(t, flipped)

	flipped, err = repo.MarkVerified(ctx, pool, report.ID)
	require.NoError(t, err)
	assert.False(t, flipped)
}

func TestReportRepository_GetForUpdate_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewReportRepository(pool)
	ctx := context.Background()

	_, err := repo.GetForUpdate(ctx, pool, 12345)
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestReportRepository_ListRecent_CityFilter(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewReportRepository(pool)
	ctx := context.Background()
	mustCreateUser(t, pool, 100)

	_, err := repo.Create(ctx, pool, 100, "phishing", "Riga", "a")
	require.NoError(t, err)
	_, err = repo.Create(ctx, pool, 100, "call", "Tallinn", "b")
	require.NoError(t, err)

	all, err := repo.ListRecent(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	riga, err := repo.ListRecent(ctx, "Riga", 10)
	require.NoError(t, err)
	require.Len(t, riga, 1)
	assert.Equal(t, "Riga", riga[0].City)
}

// ============================================================================
// ReferralRepository
// ============================================================================

func TestReferralRepository_Codes(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewReferralRepository(pool)
	ctx := context.Background()
	mustCreateUser(t, pool, 100)

	_, err := repo.GetCode(ctx, 100)
	assert.ErrorIs(t, err, ErrCodeNotFound)

	code, err := repo.CreateCode(ctx, 100, "ABCD1234")
	require.NoError(t, err)
	assert.Equal(t, "ABCD1234", code)

	// Re-creating keeps the original code
	code, err = repo.CreateCode(ctx, 100, "FFFF0000")
	require.NoError(t, err)
	assert.Equal(t, "ABCD1234", code)

	owner, err := repo.ResolveCode(ctx, "ABCD1234")
	require.NoError(t, err)
	assert.Equal(t, int64(100), owner)

	_, err = repo.ResolveCode(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestReferralRepository_EdgeUniquePerReferee(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewReferralRepository(pool)
	ctx := context.Background()
	mustCreateUser(t, pool, 100)
	mustCreateUser(t, pool, 200)
	mustCreateUser(t, pool, 300)

	inserted, err := repo.InsertEdge(ctx, pool, 100, 300)
	require.NoError(t, err)
	assert.True(t, inserted)

	// The referee is already claimed, even by a different referrer
	inserted, err = repo.InsertEdge(ctx, pool, 200, 300)
	require.NoError(t, err)
	assert.False(t, inserted)

	count, err := repo.CountEdges(ctx, pool, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	edge, err := repo.GetEdgeByReferee(ctx, 300)
	require.NoError(t, err)
	assert.Equal(t, int64(100), edge.ReferrerID)
	assert.Equal(t, model.ReferralPending, edge.Status)

	require.NoError(t, repo.MarkRewarded(ctx, pool, 100))
	edge, err = repo.GetEdgeByReferee(ctx, 300)
	require.NoError(t, err)
	assert.Equal(t, model.ReferralRewarded, edge.Status)
}

// ============================================================================
// InventoryRepository
// ============================================================================

func TestInventoryRepository_AddAndCount(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewInventoryRepository(pool)
	ctx := context.Background()
	mustCreateUser(t, pool, 100)

	count, err := repo.ItemCount(ctx, 100, "hint")
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, repo.AddItem(ctx, pool, 100, "hint", 1))
	require.NoError(t, repo.AddItem(ctx, pool, 100, "hint", 2))

	count, err = repo.ItemCount(ctx, 100, "hint")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestInventoryRepository_ConsumeGuardedAtZero(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewInventoryRepository(pool)
	ctx := context.Background()
	mustCreateUser(t, pool, 100)

	// Nothing to consume yet
	spent, err := repo.ConsumeItem(ctx, 100, "hint")
	require.NoError(t, err)
	assert.False(t, spent)

	require.NoError(t, repo.AddItem(ctx, pool, 100, "hint", 1))

	spent, err = repo.ConsumeItem(ctx, 100, "hint")
	require.NoError(t, err)
	assert.True(t, spent)

	// The stack never goes negative
	spent, err = repo.ConsumeItem(ctx, 100, "hint")
	require.NoError(t, err)
	assert.False(t, spent)

	count, err := repo.ItemCount(ctx, 100, "hint")
	require.NoError(t, err)
	assert.Zero(t, count)
}
