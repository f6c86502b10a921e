package ledger

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
	"scamguard-bot/internal/repository"
)

func TestDebitAllowed(t *testing.T) {
	assert.True(t, debitAllowed(model.ReasonAdminAdjust))
	assert.False(t, debitAllowed(model.ReasonQuiz))
	assert.False(t, debitAllowed(model.ReasonWelcome))
}

func TestScoreBearing(t *testing.T) {
	assert.True(t, scoreBearing(model.ReasonQuiz))
	assert.True(t, scoreBearing(model.ReasonReportVerified))
	assert.False(t, scoreBearing(model.ReasonWelcome))
	assert.False(t, scoreBearing(model.ReasonAdminAdjust))
}

func setupLedger(t *testing.T) (*Service, *pgxpool.Pool, func()) {
	if exec.Command("docker", "info").Run() != nil {
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

	_, err = pool.Exec(ctx, `
		CREATE TABLE users (
			telegram_id BIGINT PRIMARY KEY,
			username VARCHAR(255) NOT NULL DEFAULT '',
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			max_unlocked_level INT NOT NULL DEFAULT 1,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE user_badges (
			user_id BIGINT NOT NULL,
			badge_id VARCHAR(50) NOT NULL,
			awarded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, badge_id)
		);
		CREATE TABLE ledger_entries (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			delta BIGINT NOT NULL,
			reason VARCHAR(50) NOT NULL,
			dedup_key VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, dedup_key)
		);
		CREATE TABLE period_scores (
			user_id BIGINT NOT NULL,
			period VARCHAR(20) NOT NULL,
			period_key VARCHAR(20) NOT NULL,
			score BIGINT NOT NULL DEFAULT 0,
			first_scored_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, period, period_key)
		);
	`)
	require.NoError(t, err)

	users := repository.NewUserRepository(pool)
	svc := NewService(pool, users, repository.NewLedgerRepository(pool), repository.NewScoreRepository(pool))

	_, err = users.Create(ctx, 100, "alice")
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return svc, pool, cleanup
}

func TestService_Credit_UpdatesBalanceAndScore(t *testing.T) {
	svc, pool, cleanup := setupLedger(t)
	defer cleanup()
	ctx := context.Background()

	balance, err := svc.Credit(ctx, 100, 10, model.ReasonQuiz, "quiz:1:a")
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)

	// The score landed in every open window alongside the balance
	var score int64
	err = pool.QueryRow(ctx,
		`SELECT score FROM period_scores WHERE user_id = 100 AND period = 'all_time'`).Scan(&score)
	require.NoError(t, err)
	assert.Equal(t, int64(10), score)
}

func TestService_Credit_DedupReplayIsNoop(t *testing.T) {
	svc, _, cleanup := setupLedger(t)
	defer cleanup()
	ctx := context.Background()

	first, err := svc.Credit(ctx, 100, 10, model.ReasonQuiz, "quiz:1:a")
	require.NoError(t, err)

	replay, err := svc.Credit(ctx, 100, 10, model.ReasonQuiz, "quiz:1:a")
	require.NoError(t, err)
	assert.Equal(t, first, replay)

	entries, err := svc.History(ctx, 100, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestService_Credit_WelcomeDoesNotScore(t *testing.T) {
	svc, pool, cleanup := setupLedger(t)
	defer cleanup()
	ctx := context.Background()

	_, err := svc.Credit(ctx, 100, 10, model.ReasonWelcome, "welcome")
	require.NoError(t, err)

	var count int
	err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM period_scores WHERE user_id = 100`).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestService_Credit_DebitGuards(t *testing.T) {
	svc, pool, cleanup := setupLedger(t)
	defer cleanup()
	ctx := context.Background()

	// A negative delta under a non-debit reason is rejected outright
	_, err := svc.Credit(ctx, 100, -5, model.ReasonQuiz, "quiz:1:a")
	assert.ErrorIs(t, err, ErrDebitNotAllowed)

	_, err = svc.Credit(ctx, 100, 20, model.ReasonAdminAdjust, "admin_adjust:k1")
	require.NoError(t, err)

	// A debit past zero fails and leaves no ledger trace
	_, err = svc.Credit(ctx, 100, -50, model.ReasonAdminAdjust, "admin_adjust:k2")
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	var count int
	err = pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM ledger_entries WHERE user_id = 100 AND dedup_key = 'admin_adjust:k2'`).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)

	balance, err := svc.Balance(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(20), balance)
}

func TestService_AwardBadge_Once(t *testing.T) {
	svc, _, cleanup := setupLedger(t)
	defer cleanup()
	ctx := context.Background()

	awarded, err := svc.AwardBadge(ctx, 100, model.BadgeLinkSkeptic)
	require.NoError(t, err)
	assert.True(t, awarded)

	awarded, err = svc.AwardBadge(ctx, 100, model.BadgeLinkSkeptic)
	require.NoError(t, err)
	assert.False(t, awarded)
}
