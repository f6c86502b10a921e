package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v3"

	"scamguard-bot/internal/ledger"
	"scamguard-bot/internal/model"
)

// AdminHandler handles operator commands.
type AdminHandler struct {
	base
	ledger *ledger.Service
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(l *ledger.Service, timeout time.Duration) *AdminHandler {
	return &AdminHandler{base: newBase(timeout), ledger: l}
}

// HandleAdjust handles /admin_adjust <userID> <delta>. Positive deltas
// grant coins, negative deltas deduct them down to the zero floor.
func (h *AdminHandler) HandleAdjust(c tele.Context) error {
	ctx, cancel := h.opCtx()
	defer cancel()
	args := strings.Fields(c.Message().Payload)
	if len(args) != 2 {
		return c.Reply("Usage: /admin_adjust <userID> <delta>")
	}

	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Reply("❌ Invalid user ID")
	}
	delta, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || delta == 0 {
		return c.Reply("❌ Invalid delta")
	}

	dedupKey := fmt.Sprintf("admin_adjust:%s", uuid.NewString())
	balance, err := h.ledger.Credit(ctx, userID, delta, model.ReasonAdminAdjust, dedupKey)
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return c.Reply("❌ Adjustment would drop the balance below zero")
	case err != nil:
		return c.Reply("❌ Adjustment failed: " + err.Error())
	}

	return c.Reply(fmt.Sprintf("✅ Adjusted user %d by %+d, new balance: %d coins", userID, delta, balance))
}
