// Package model defines the data models for the scam-protection learning bot.
package model

import (
	"fmt"
	"time"
)

// User represents a Telegram user in the learning system.
// Balance is a non-negative coin count; MaxUnlockedLevel only ever grows.
type User struct {
	TelegramID       int64     `db:"telegram_id"`
	Username         string    `db:"username"`
	Balance          int64     `db:"balance"`
	MaxUnlockedLevel int       `db:"max_unlocked_level"`
	Active           bool      `db:"active"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// LedgerEntry is one immutable coin movement. The dedup key makes a
// replayed credit a no-op: entries are unique per (user_id, dedup_key).
type LedgerEntry struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Delta     int64     `db:"delta"`
	Reason    string    `db:"reason"`
	DedupKey  string    `db:"dedup_key"`
	CreatedAt time.Time `db:"created_at"`
}

// PeriodKind identifies a leaderboard scoring window.
type PeriodKind string

const (
	PeriodAllTime PeriodKind = "all_time"
	PeriodMonthly PeriodKind = "monthly"
	PeriodWeekly  PeriodKind = "weekly"
)

// PeriodKinds lists all scoring windows, all-time first.
func PeriodKinds() []PeriodKind {
	return []PeriodKind{PeriodAllTime, PeriodMonthly, PeriodWeekly}
}

// Key returns the storage key for the window containing t.
// All-time has a single window; monthly and weekly keys roll over at
// their calendar boundary, so stale rows identify themselves.
func (p PeriodKind) Key(t time.Time) string {
	switch p {
	case PeriodMonthly:
		return t.UTC().Format("2006-01")
	case PeriodWeekly:
		year, week := t.UTC().ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	default:
		return "all"
	}
}

// PeriodScore is a user's accumulated score inside one period window.
// FirstScoredAt anchors tie-breaking and is kept on later updates.
type PeriodScore struct {
	UserID        int64      `db:"user_id"`
	Period        PeriodKind `db:"period"`
	PeriodKey     string     `db:"period_key"`
	Score         int64      `db:"score"`
	FirstScoredAt time.Time  `db:"first_scored_at"`
}

// RankedEntry is a derived leaderboard row. Rank is recomputed from the
// (score, first_scored_at) snapshot and never stored.
type RankedEntry struct {
	Rank          int        `db:"rank"`
	UserID        int64      `db:"user_id"`
	Username      string     `db:"username"`
	Period        PeriodKind `db:"period"`
	Score         int64      `db:"score"`
	FirstScoredAt time.Time  `db:"first_scored_at"`
}

// CommunityReport is an anonymous scam report. ReporterID is stored for
// self-vote checks and the verification payout but never shown to voters.
type CommunityReport struct {
	ID         int64     `db:"id"`
	ReporterID int64     `db:"reporter_id"`
	Category   string    `db:"category"`
	City       string    `db:"city"`
	Details    string    `db:"details"`
	Verified   bool      `db:"verified"`
	VoteTally  int       `db:"vote_tally"`
	CreatedAt  time.Time `db:"created_at"`
}

// Vote is one voter's current judgment on a report. A later cast from the
// same voter overwrites the earlier one.
type Vote struct {
	VoterID   int64     `db:"voter_id"`
	ReportID  int64     `db:"report_id"`
	IsScam    bool      `db:"is_scam"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Referral edge statuses.
const (
	ReferralPending  = "pending"
	ReferralRewarded = "rewarded"
)

// ReferralEdge links a referrer to a referee. A referee appears in at
// most one edge.
type ReferralEdge struct {
	ID         int64     `db:"id"`
	ReferrerID int64     `db:"referrer_id"`
	RefereeID  int64     `db:"referee_id"`
	Status     string    `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
}

// Ledger reason codes for categorizing coin movements.
const (
	ReasonWelcome        = "welcome"         // First-contact bonus
	ReasonQuiz           = "quiz"            // Quiz level completion
	ReasonScenario       = "scenario"        // Scenario walkthrough completion
	ReasonReportVerified = "report_verified" // Community report reached consensus
	ReasonReferralTrial  = "referral_trial"  // Referee's join bonus
	ReasonReferralTier   = "referral_tier"   // Referrer's tier payout
	ReasonAdminAdjust    = "admin_adjust"    // Manual correction, may debit
	ReasonShopPurchase   = "shop_purchase"   // Coin spend in the shop, always a debit
)

// DebitReasons returns the reason codes allowed to carry a negative delta.
func DebitReasons() []string {
	return []string{ReasonAdminAdjust, ReasonShopPurchase}
}

// ScoreBearingReasons returns the reason codes whose credits feed the
// leaderboard. Manual corrections and the welcome bonus do not rank.
func ScoreBearingReasons() []string {
	return []string{ReasonQuiz, ReasonScenario, ReasonReportVerified, ReasonReferralTrial, ReasonReferralTier}
}

// Badge identifiers awarded by scenario endings.
const (
	BadgePhishingSpotter = "phishing_spotter"
	BadgeCallDefender    = "call_defender"
	BadgeLinkSkeptic     = "link_skeptic"
)
