// Package main is the entry point for the ScamGuard learning bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"scamguard-bot/internal/bot"
	"scamguard-bot/internal/config"
	"scamguard-bot/internal/content"
	"scamguard-bot/internal/ledger"
	"scamguard-bot/internal/model"
	"scamguard-bot/internal/pkg/db"
	"scamguard-bot/internal/pkg/lock"
	"scamguard-bot/internal/repository"
	"scamguard-bot/internal/service"
	"scamguard-bot/internal/session"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	// Content graphs are validated before anything else starts. A broken
	// graph is a deployment error, not a runtime condition.
	library, err := content.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Content validation failed")
	}
	log.Info().
		Int("quiz_levels", library.MaxQuizLevel()).
		Int("scenarios", len(library.Scenarios())).
		Msg("Content library loaded")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(dbPool.Pool)
	ledgerRepo := repository.NewLedgerRepository(dbPool.Pool)
	scoreRepo := repository.NewScoreRepository(dbPool.Pool)
	reportRepo := repository.NewReportRepository(dbPool.Pool)
	referralRepo := repository.NewReferralRepository(dbPool.Pool)
	inventoryRepo := repository.NewInventoryRepository(dbPool.Pool)

	// Initialize services
	ledgerService := ledger.NewService(dbPool.Pool, userRepo, ledgerRepo, scoreRepo)

	leaderboardService := service.NewLeaderboardService(scoreRepo, cfg.Leaderboard.TopSize)
	leaderboardService.StartRefreshLoop(ctx, cfg.Leaderboard.RefreshInterval, cfg.Store.MaxRetries)

	consensusService := service.NewConsensusService(
		dbPool.Pool,
		reportRepo,
		ledgerService,
		cfg.Engine.VoteThreshold,
		cfg.Rewards.ReportVerified,
	)

	referralService := service.NewReferralService(
		dbPool.Pool,
		referralRepo,
		ledgerService,
		cfg.Engine.ReferralTierSize,
		cfg.Rewards.ReferralTrial,
		cfg.Rewards.ReferralTier,
	)

	shopService := service.NewShopService(dbPool.Pool, inventoryRepo, ledgerService)

	accountService := service.NewAccountService(
		userRepo,
		ledgerService,
		referralService,
		leaderboardService,
		cfg.Rewards.Welcome,
	)

	// Initialize user lock and the session state machine
	userLock := lock.NewUserLock()
	sessionManager := session.NewManager(
		library,
		ledgerService,
		userRepo,
		consensusService,
		shopService,
		userLock,
		session.Config{
			PassThreshold: cfg.Engine.QuizPassThreshold,
			QuizBase:      cfg.Rewards.QuizBase,
			QuizPerfect:   cfg.Rewards.QuizPerfect,
			ScenarioPoint: cfg.Rewards.ScenarioPoint,
		},
	)

	// Periodic maintenance: weekly and monthly windows roll over when the
	// stored period key no longer matches the current one.
	startScheduler(ctx, leaderboardService, dbPool)

	// Create bot dependencies
	deps := &bot.Dependencies{
		Config:       cfg,
		Accounts:     accountService,
		Sessions:     sessionManager,
		Consensus:    consensusService,
		Referrals:    referralService,
		Leaderboards: leaderboardService,
		Shop:         shopService,
		Ledger:       ledgerService,
		Library:      library,
	}

	// Initialize bot
	telegramBot, err := bot.New(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start bot in a goroutine
	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	telegramBot.Stop()
	log.Info().Msg("Bot stopped gracefully")
}

// startScheduler runs period rollovers and a pool health check hourly,
// and the daily aggregation snapshot once a day. The jobs are
// idempotent, so overlapping or repeated runs after a restart are
// harmless.
func startScheduler(ctx context.Context, boards *service.LeaderboardService, pool *db.Pool) {
	go func() {
		hourly := time.NewTicker(time.Hour)
		daily := time.NewTicker(24 * time.Hour)
		defer hourly.Stop()
		defer daily.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-hourly.C:
				if err := boards.RunPeriodReset(ctx, model.PeriodWeekly); err != nil {
					log.Error().Err(err).Msg("Weekly period reset failed")
				}
				if err := boards.RunPeriodReset(ctx, model.PeriodMonthly); err != nil {
					log.Error().Err(err).Msg("Monthly period reset failed")
				}
				if err := pool.HealthCheck(ctx); err != nil {
					log.Warn().Err(err).Msg("Database health check failed")
				}
			case <-daily.C:
				if err := boards.RunDailyAggregation(ctx); err != nil {
					log.Error().Err(err).Msg("Daily aggregation failed")
				}
			}
		}
	}()
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: users and badges
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
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: users and user_badges tables created")

	// Migration 2: reward ledger
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_entries (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
			delta BIGINT NOT NULL,
			reason VARCHAR(50) NOT NULL,
			dedup_key VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, dedup_key)
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_user_time ON ledger_entries(user_id, created_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: ledger_entries table created")

	// Migration 3: period scores
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS period_scores (
			user_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
			period VARCHAR(20) NOT NULL,
			period_key VARCHAR(20) NOT NULL,
			score BIGINT NOT NULL DEFAULT 0,
			first_scored_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, period, period_key)
		);
		CREATE INDEX IF NOT EXISTS idx_period_scores_board
			ON period_scores(period, period_key, score DESC, first_scored_at ASC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: period_scores table created")

	// Migration 4: community reports and votes
	_, err = pool.Exec(ctx, `
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
		CREATE INDEX IF NOT EXISTS idx_reports_city_time ON community_reports(city, created_at DESC);
		CREATE TABLE IF NOT EXISTS report_votes (
			voter_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
			report_id BIGINT NOT NULL REFERENCES community_reports(id) ON DELETE CASCADE,
			is_scam BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (voter_id, report_id)
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: community_reports and report_votes tables created")

	// Migration 5: referral codes and edges
	_, err = pool.Exec(ctx, `
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
		CREATE INDEX IF NOT EXISTS idx_referral_edges_referrer ON referral_edges(referrer_id);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 5: referral tables created")

	// Migration 6: shop inventory
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS user_items (
			user_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
			item_id VARCHAR(50) NOT NULL,
			quantity INT NOT NULL DEFAULT 0 CHECK (quantity >= 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, item_id)
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 6: user_items table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
