package handler

import (
	"fmt"
	"time"

	tele "gopkg.in/telebot.v3"

	"scamguard-bot/internal/service"
)

// ReferralHandler hands out invite codes and deep links.
type ReferralHandler struct {
	base
	referrals *service.ReferralService
	botName   string
}

// NewReferralHandler creates a new ReferralHandler. botName is the bot's
// public username used to build t.me deep links.
func NewReferralHandler(referrals *service.ReferralService, botName string, timeout time.Duration) *ReferralHandler {
	return &ReferralHandler{base: newBase(timeout), referrals: referrals, botName: botName}
}

// HandleInvite handles /invite.
func (h *ReferralHandler) HandleInvite(c tele.Context) error {
	ctx, cancel := h.opCtx()
	defer cancel()
	code, err := h.referrals.Code(ctx, c.Sender().ID)
	if err != nil {
		return c.Reply("❌ Could not fetch your invite code, please try again.")
	}

	msg := fmt.Sprintf(
		"🤝 Invite friends and earn coins!\n\n"+
			"Your code: %s\n"+
			"Share this link: https://t.me/%s?start=%s\n\n"+
			"Each friend who joins gets a trial bonus, and you earn a reward for every group of invites.",
		code, h.botName, code,
	)
	return c.Send(msg)
}
