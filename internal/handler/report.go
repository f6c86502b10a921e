package handler

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v3"

	"scamguard-bot/internal/service"
)

// ReportHandler handles browsing and voting on community reports.
type ReportHandler struct {
	base
	consensus *service.ConsensusService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(consensus *service.ConsensusService, timeout time.Duration) *ReportHandler {
	return &ReportHandler{base: newBase(timeout), consensus: consensus}
}

// HandleReports handles /reports: lists recent reports with vote
// buttons. Reporter identity is never rendered.
func (h *ReportHandler) HandleReports(c tele.Context) error {
	ctx, cancel := h.opCtx()
	defer cancel()
	reports, err := h.consensus.ListRecent(ctx, "", 5)
	if err != nil {
		return c.Reply("❌ Could not load reports, please try again.")
	}
	if len(reports) == 0 {
		return c.Reply("No community reports yet. Be the first with /report.")
	}

	for _, rpt := range reports {
		status := fmt.Sprintf("🗳 %d votes", rpt.VoteTally)
		if rpt.Verified {
			status = "✅ Verified by the community"
		}
		msg := fmt.Sprintf("Report #%d · %s", rpt.ID, rpt.Category)
		if rpt.City != "" && rpt.City != "-" {
			msg += " · " + rpt.City
		}
		msg += "\n\n" + rpt.Details + "\n\n" + status

		var markup *tele.ReplyMarkup
		if !rpt.Verified {
			markup = &tele.ReplyMarkup{}
			id := strconv.FormatInt(rpt.ID, 10)
			markup.Inline(markup.Row(
				markup.Data("👍 Scam", "vote", id, "yes"),
				markup.Data("👎 Not a scam", "vote", id, "no"),
			))
		}
		if err := c.Send(msg, markup); err != nil {
			return err
		}
	}
	return nil
}

// HandleVote handles the vote|<id>|<yes/no> callback.
func (h *ReportHandler) HandleVote(c tele.Context, idArg, judgment string) error {
	ctx, cancel := h.opCtx()
	defer cancel()
	reportID, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Unknown report"})
	}

	result, err := h.consensus.CastVote(ctx, c.Sender().ID, reportID, judgment == "yes")
	switch {
	case errors.Is(err, service.ErrSelfVote):
		return c.Respond(&tele.CallbackResponse{Text: "You can't vote on your own report"})
	case errors.Is(err, service.ErrReportNotFound):
		return c.Respond(&tele.CallbackResponse{Text: "Report no longer exists"})
	case err != nil:
		return c.Respond(&tele.CallbackResponse{Text: "Something went wrong, try again"})
	}

	if result.JustFlipped {
		return c.Respond(&tele.CallbackResponse{Text: "✅ Report verified - reporter rewarded"})
	}
	return c.Respond(&tele.CallbackResponse{
		Text: fmt.Sprintf("Vote counted (%d confirmations)", result.Tally),
	})
}
