// Package service provides business logic implementations.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"scamguard-bot/internal/model"
	"scamguard-bot/internal/pkg/db"
	"scamguard-bot/internal/repository"
)

// LeaderboardService is the aggregator over the period-scoped score
// view. Score deltas land in the store transactionally with their ledger
// entries; this service derives ranked views from them and serves a
// cached copy refreshed on a background cadence, so reads trade at most
// one refresh interval of staleness for write throughput.
type LeaderboardService struct {
	scores  *repository.ScoreRepository
	topSize int
	now     func() time.Time

	mu    sync.RWMutex
	cache map[model.PeriodKind][]*model.RankedEntry
}

// NewLeaderboardService creates a new LeaderboardService instance.
func NewLeaderboardService(scores *repository.ScoreRepository, topSize int) *LeaderboardService {
	return &LeaderboardService{
		scores:  scores,
		topSize: topSize,
		now:     time.Now,
		cache:   make(map[model.PeriodKind][]*model.RankedEntry),
	}
}

// Top returns the cached ranked view for a period. When no refresh has
// run yet the view is computed on demand.
func (s *LeaderboardService) Top(ctx context.Context, kind model.PeriodKind) ([]*model.RankedEntry, error) {
	s.mu.RLock()
	entries, ok := s.cache[kind]
	s.mu.RUnlock()
	if ok {
		return entries, nil
	}

	entries, err := s.recompute(ctx, kind)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache[kind] = entries
	s.mu.Unlock()
	return entries, nil
}

// UserRank returns a user's current rank and the entrant count for a
// period, computed from the live snapshot.
func (s *LeaderboardService) UserRank(ctx context.Context, kind model.PeriodKind, userID int64) (int, int, error) {
	return s.scores.UserRank(ctx, kind, kind.Key(s.now()), userID)
}

// Refresh recomputes every period's ranked view from the current
// snapshot and swaps the cache. Recomputation is deterministic: the same
// snapshot always yields the same ranks.
func (s *LeaderboardService) Refresh(ctx context.Context) error {
	fresh := make(map[model.PeriodKind][]*model.RankedEntry, len(model.PeriodKinds()))
	for _, kind := range model.PeriodKinds() {
		entries, err := s.recompute(ctx, kind)
		if err != nil {
			return err
		}
		fresh[kind] = entries
	}

	s.mu.Lock()
	s.cache = fresh
	s.mu.Unlock()
	return nil
}

func (s *LeaderboardService) recompute(ctx context.Context, kind model.PeriodKind) ([]*model.RankedEntry, error) {
	return s.scores.Ranked(ctx, kind, kind.Key(s.now()), s.topSize)
}

// StartRefreshLoop refreshes the cached views on the given interval
// until ctx is cancelled. The interval bounds rank staleness; transient
// store failures are retried up to maxRetries times per tick.
func (s *LeaderboardService) StartRefreshLoop(ctx context.Context, interval time.Duration, maxRetries uint64) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := db.Retry(ctx, maxRetries, func(ctx context.Context) error {
					return s.Refresh(ctx)
				})
				if err != nil {
					log.Warn().Err(err).Msg("Leaderboard refresh failed")
				}
			}
		}
	}()
}

// RunPeriodReset wipes the given period's stale score windows. Scores
// and first-score timestamps of closed windows go; the current window,
// all-time scores and ledger history are untouched. Safe to invoke more
// than once for the same period: the second call deletes nothing.
func (s *LeaderboardService) RunPeriodReset(ctx context.Context, kind model.PeriodKind) error {
	if kind == model.PeriodAllTime {
		return nil
	}

	deleted, err := s.scores.DeleteStale(ctx, kind, kind.Key(s.now()))
	if err != nil {
		return err
	}
	if deleted > 0 {
		log.Info().
			Str("period", string(kind)).
			Int64("rows", deleted).
			Msg("Period reset wiped stale scores")
	}
	return s.Refresh(ctx)
}

// RunDailyAggregation prunes stale windows for every resettable period,
// refreshes the cached views and logs entrant counts. Idempotent; a
// second invocation for the same day is harmless.
func (s *LeaderboardService) RunDailyAggregation(ctx context.Context) error {
	for _, kind := range []model.PeriodKind{model.PeriodWeekly, model.PeriodMonthly} {
		if err := s.RunPeriodReset(ctx, kind); err != nil {
			return err
		}
	}

	now := s.now()
	for _, kind := range model.PeriodKinds() {
		count, err := s.scores.CountEntrants(ctx, kind, kind.Key(now))
		if err != nil {
			return err
		}
		log.Info().
			Str("period", string(kind)).
			Str("window", kind.Key(now)).
			Int("entrants", count).
			Msg("Daily aggregation")
	}
	return nil
}
