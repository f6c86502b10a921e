package service

import (
	"math/rand"
	"sort"
	"testing"
	"time"

	"pgregory.net/rapid"

	"scamguard-bot/internal/model"
)

var rankBaseTime = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

// rankEntries mirrors the ranked-view ordering used by the score store:
// score descending, first-score time ascending, user id ascending. Ranks
// are dense 1..n over the snapshot.
func rankEntries(entries []*model.RankedEntry) []*model.RankedEntry {
	out := make([]*model.RankedEntry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if !out[i].FirstScoredAt.Equal(out[j].FirstScoredAt) {
			return out[i].FirstScoredAt.Before(out[j].FirstScoredAt)
		}
		return out[i].UserID < out[j].UserID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func drawEntries(t *rapid.T) []*model.RankedEntry {
	n := rapid.IntRange(1, 40).Draw(t, "n")
	seen := make(map[int64]bool, n)
	entries := make([]*model.RankedEntry, 0, n)
	for i := 0; i < n; i++ {
		id := rapid.Int64Range(1, 1_000_000).Draw(t, "userID")
		if seen[id] {
			continue
		}
		seen[id] = true
		offset := rapid.Int64Range(0, 72*3600).Draw(t, "firstAtSeconds")
		entries = append(entries, &model.RankedEntry{
			UserID:        id,
			Score:         rapid.Int64Range(0, 10_000).Draw(t, "score"),
			FirstScoredAt: rankBaseTime.Add(time.Duration(offset) * time.Second),
		})
	}
	return entries
}

// TestRanking_OrderingProperty checks that no entry ever outranks one
// with a higher score, and that equal scores break ties by who scored
// first.
func TestRanking_OrderingProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ranked := rankEntries(drawEntries(t))

		for i := 1; i < len(ranked); i++ {
			prev, cur := ranked[i-1], ranked[i]
			if cur.Score > prev.Score {
				t.Fatalf("rank %d score %d above rank %d score %d",
					cur.Rank, cur.Score, prev.Rank, prev.Score)
			}
			if cur.Score == prev.Score && cur.FirstScoredAt.Before(prev.FirstScoredAt) {
				t.Fatalf("tie at score %d broken against the earlier scorer", cur.Score)
			}
		}
	})
}

// TestRanking_DenseUniqueRanksProperty checks every entrant gets exactly
// one rank and the ranks are 1..n with no gaps.
func TestRanking_DenseUniqueRanksProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ranked := rankEntries(drawEntries(t))

		seen := make(map[int]bool, len(ranked))
		for _, e := range ranked {
			if e.Rank < 1 || e.Rank > len(ranked) {
				t.Fatalf("rank %d outside 1..%d", e.Rank, len(ranked))
			}
			if seen[e.Rank] {
				t.Fatalf("rank %d assigned twice", e.Rank)
			}
			seen[e.Rank] = true
		}
	})
}

// TestRanking_DeterministicProperty checks that the same snapshot yields
// the same ranks regardless of input order.
func TestRanking_DeterministicProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		entries := drawEntries(t)

		first := rankEntries(entries)

		shuffled := make([]*model.RankedEntry, len(entries))
		copy(shuffled, entries)
		rnd := rand.New(rand.NewSource(rapid.Int64().Draw(t, "seed")))
		rnd.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		second := rankEntries(shuffled)

		byUser := make(map[int64]int, len(second))
		for _, e := range second {
			byUser[e.UserID] = e.Rank
		}
		for _, e := range first {
			if byUser[e.UserID] != e.Rank {
				t.Fatalf("user %d ranked %d then %d for the same snapshot",
					e.UserID, e.Rank, byUser[e.UserID])
			}
		}
	})
}
