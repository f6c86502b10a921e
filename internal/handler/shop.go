package handler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"scamguard-bot/internal/ledger"
	"scamguard-bot/internal/service"
	"scamguard-bot/internal/shop"
)

// ShopHandler sells catalog items for coins.
type ShopHandler struct {
	base
	shop   *service.ShopService
	ledger *ledger.Service
}

// NewShopHandler creates a new ShopHandler.
func NewShopHandler(shopSvc *service.ShopService, ledgerSvc *ledger.Service, timeout time.Duration) *ShopHandler {
	return &ShopHandler{base: newBase(timeout), shop: shopSvc, ledger: ledgerSvc}
}

// HandleShop handles /shop: shows the catalog with the user's balance
// and hint stock.
func (h *ShopHandler) HandleShop(c tele.Context) error {
	ctx, cancel := h.opCtx()
	defer cancel()
	userID := c.Sender().ID

	balance, err := h.ledger.Balance(ctx, userID)
	if err != nil {
		return c.Reply("❌ Could not load the shop, please try again.")
	}
	hintCount, err := h.shop.HintCount(ctx, userID)
	if err != nil {
		return c.Reply("❌ Could not load the shop, please try again.")
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🛒 Shop\n💰 Your balance: %d coins\n💡 Hints in stock: %d\n\n", balance, hintCount))

	markup := &tele.ReplyMarkup{}
	var rows []tele.Row
	for _, item := range h.shop.Catalog() {
		sb.WriteString(fmt.Sprintf("%s %s — %d coins\n%s\n", item.Emoji, item.Name, item.Price, item.Description))
		label := fmt.Sprintf("%s Buy %s (%d)", item.Emoji, item.Name, item.Price)
		rows = append(rows, markup.Row(markup.Data(label, "buy", string(item.ID))))
	}
	markup.Inline(rows...)

	return c.EditOrSend(sb.String(), markup)
}

// HandleBuy handles the buy|<item> callback.
func (h *ShopHandler) HandleBuy(c tele.Context, itemArg string) error {
	ctx, cancel := h.opCtx()
	defer cancel()

	result, err := h.shop.Buy(ctx, c.Sender().ID, shop.ItemID(itemArg))
	switch {
	case errors.Is(err, service.ErrItemNotFound):
		return c.Respond(&tele.CallbackResponse{Text: "That item is no longer sold"})
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return c.Respond(&tele.CallbackResponse{Text: "Not enough coins - earn more with /quiz", ShowAlert: true})
	case err != nil:
		return c.Respond(&tele.CallbackResponse{Text: "Something went wrong, try again"})
	}

	if err := c.Respond(&tele.CallbackResponse{
		Text: fmt.Sprintf("%s %s purchased! Balance: %d", result.Item.Emoji, result.Item.Name, result.Balance),
	}); err != nil {
		return err
	}
	return h.HandleShop(c)
}
