// Package handler provides Telegram bot command and callback handlers.
// Handlers translate chat updates into core service calls; transport
// details never leak past this package.
package handler

import (
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"scamguard-bot/internal/service"
)

// AccountHandler handles onboarding and profile commands.
type AccountHandler struct {
	base
	accounts *service.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts *service.AccountService, timeout time.Duration) *AccountHandler {
	return &AccountHandler{base: newBase(timeout), accounts: accounts}
}

// HandleStart handles /start. A deep-link payload carries a referral
// code; redeeming it is part of onboarding.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	ctx, cancel := h.opCtx()
	defer cancel()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	code := strings.TrimSpace(c.Message().Payload)
	user, created, err := h.accounts.EnsureUser(ctx, sender.ID, sender.Username, code)
	if err != nil {
		return c.Reply("❌ Something went wrong, please try again.")
	}

	if created {
		return c.Reply(fmt.Sprintf(
			"👋 Welcome! You start with %d coins.\n\n"+
				"/quiz — test your scam radar\n"+
				"/scenario — walk through a real scam\n"+
				"/report — report a scam anonymously\n"+
				"/reports — verify community reports\n"+
				"/top — leaderboard\n"+
				"/shop — spend coins on hints\n"+
				"/invite — invite friends", user.Balance))
	}
	return c.Reply("👋 Welcome back! /quiz, /scenario, /report, /top, /invite")
}

// HandleBalance handles /balance.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	ctx, cancel := h.opCtx()
	defer cancel()
	user, err := h.accounts.GetUser(ctx, c.Sender().ID)
	if err != nil {
		return c.Reply("❌ Could not load your balance, please try again.")
	}
	return c.Reply(fmt.Sprintf("💰 Balance: %d coins", user.Balance))
}

// HandleProfile handles /my: balance, unlocked level, badges and
// all-time rank.
func (h *AccountHandler) HandleProfile(c tele.Context) error {
	ctx, cancel := h.opCtx()
	defer cancel()
	profile, err := h.accounts.GetProfile(ctx, c.Sender().ID)
	if err != nil {
		return c.Reply("❌ Could not load your profile, please try again.")
	}

	msg := fmt.Sprintf("👤 Your progress\n💰 Coins: %d\n📚 Unlocked quiz level: %d\n",
		profile.User.Balance, profile.User.MaxUnlockedLevel)
	if len(profile.Badges) > 0 {
		msg += "🏅 Badges: " + strings.Join(profile.Badges, ", ") + "\n"
	}
	if profile.Rank > 0 {
		msg += fmt.Sprintf("🏆 All-time rank: %d of %d", profile.Rank, profile.Total)
	} else {
		msg += "🏆 Not ranked yet - complete a quiz to enter the leaderboard"
	}
	return c.Reply(msg)
}
