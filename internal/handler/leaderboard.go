package handler

import (
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"scamguard-bot/internal/model"
	"scamguard-bot/internal/service"
)

// LeaderboardHandler renders the ranked score boards.
type LeaderboardHandler struct {
	base
	boards *service.LeaderboardService
}

// NewLeaderboardHandler creates a new LeaderboardHandler.
func NewLeaderboardHandler(boards *service.LeaderboardService, timeout time.Duration) *LeaderboardHandler {
	return &LeaderboardHandler{base: newBase(timeout), boards: boards}
}

// HandleTop handles /top and the top|<period> callbacks.
func (h *LeaderboardHandler) HandleTop(c tele.Context, periodArg string) error {
	ctx, cancel := h.opCtx()
	defer cancel()

	kind := model.PeriodAllTime
	switch periodArg {
	case string(model.PeriodWeekly):
		kind = model.PeriodWeekly
	case string(model.PeriodMonthly):
		kind = model.PeriodMonthly
	}

	entries, err := h.boards.Top(ctx, kind)
	if err != nil {
		return c.Reply("❌ Could not load the leaderboard, please try again.")
	}

	var sb strings.Builder
	sb.WriteString(boardTitle(kind))
	sb.WriteString("\n\n")
	if len(entries) == 0 {
		sb.WriteString("Nobody has scored in this window yet.")
	}
	for _, e := range entries {
		name := e.Username
		if name == "" {
			name = fmt.Sprintf("player %d", e.UserID)
		}
		sb.WriteString(fmt.Sprintf("%s %s — %d pts\n", medal(e.Rank), name, e.Score))
	}

	if rank, total, err := h.boards.UserRank(ctx, kind, c.Sender().ID); err == nil && rank > 0 {
		sb.WriteString(fmt.Sprintf("\nYour place: %d of %d", rank, total))
	}

	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(
		markup.Data("🏆 All time", "top", string(model.PeriodAllTime)),
		markup.Data("📅 Month", "top", string(model.PeriodMonthly)),
		markup.Data("🗓 Week", "top", string(model.PeriodWeekly)),
	))
	return c.EditOrSend(sb.String(), markup)
}

func boardTitle(kind model.PeriodKind) string {
	switch kind {
	case model.PeriodWeekly:
		return "🗓 This week's defenders"
	case model.PeriodMonthly:
		return "📅 This month's defenders"
	default:
		return "🏆 All-time defenders"
	}
}

func medal(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("%d.", rank)
	}
}
