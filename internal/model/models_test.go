package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestPeriodKind_Key(t *testing.T) {
	at := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "all", PeriodAllTime.Key(at))
	assert.Equal(t, "2026-08", PeriodMonthly.Key(at))
	// 2026-08-31 falls in ISO week 36
	assert.Equal(t, "2026-W36", PeriodWeekly.Key(at))
}

func TestPeriodKind_KeyRollsOverAtBoundaries(t *testing.T) {
	endOfMonth := time.Date(2026, time.July, 31, 23, 59, 59, 0, time.UTC)
	startOfNext := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	assert.NotEqual(t, PeriodMonthly.Key(endOfMonth), PeriodMonthly.Key(startOfNext))

	sunday := time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)
	monday := time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)
	assert.NotEqual(t, PeriodWeekly.Key(sunday), PeriodWeekly.Key(monday))
}

// TestPeriodKind_KeyStableWithinWindowProperty checks that any two
// instants inside the same calendar window map to the same key.
func TestPeriodKind_KeyStableWithinWindowProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := time.Date(
			rapid.IntRange(2020, 2030).Draw(t, "year"),
			time.Month(rapid.IntRange(1, 12).Draw(t, "month")),
			rapid.IntRange(1, 28).Draw(t, "day"),
			rapid.IntRange(0, 23).Draw(t, "hour"), 0, 0, 0, time.UTC,
		)
		sameDay := base.Add(time.Duration(rapid.IntRange(0, 59).Draw(t, "minutes")) * time.Minute)

		for _, kind := range PeriodKinds() {
			if kind.Key(base) != kind.Key(sameDay) {
				t.Fatalf("%s key changed within the same day: %s vs %s",
					kind, kind.Key(base), kind.Key(sameDay))
			}
		}
	})
}

func TestDebitReasons(t *testing.T) {
	assert.Equal(t, []string{ReasonAdminAdjust, ReasonShopPurchase}, DebitReasons())
}

func TestScoreBearingReasons_ExcludeWelcomeAndAdmin(t *testing.T) {
	bearing := ScoreBearingReasons()
	assert.NotContains(t, bearing, ReasonWelcome)
	assert.NotContains(t, bearing, ReasonAdminAdjust)
	assert.NotContains(t, bearing, ReasonShopPurchase)
	assert.Contains(t, bearing, ReasonQuiz)
	assert.Contains(t, bearing, ReasonScenario)
	assert.Contains(t, bearing, ReasonReportVerified)
}
