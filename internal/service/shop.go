package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"scamguard-bot/internal/ledger"
	"scamguard-bot/internal/model"
	"scamguard-bot/internal/repository"
	"scamguard-bot/internal/shop"
)

// Shop errors.
var (
	// ErrItemNotFound is returned for an item id outside the catalog.
	ErrItemNotFound = errors.New("item not found")
)

// PurchaseResult summarizes a completed purchase.
type PurchaseResult struct {
	Item    shop.Item
	Balance int64
}

// ShopService sells catalog items for coins. The debit and the inventory
// grant commit in one transaction; an insufficient balance rejects the
// purchase before anything is written.
type ShopService struct {
	pool      *pgxpool.Pool
	inventory *repository.InventoryRepository
	ledger    *ledger.Service
}

// NewShopService creates a new ShopService instance.
func NewShopService(
	pool *pgxpool.Pool,
	inventory *repository.InventoryRepository,
	ledgerSvc *ledger.Service,
) *ShopService {
	return &ShopService{
		pool:      pool,
		inventory: inventory,
		ledger:    ledgerSvc,
	}
}

// Catalog returns all purchasable items in display order.
func (s *ShopService) Catalog() []shop.Item {
	return shop.AllItems()
}

// Buy purchases one unit of an item for the user. Each purchase is its
// own ledger entry; the zero floor surfaces as ErrInsufficientFunds.
func (s *ShopService) Buy(ctx context.Context, userID int64, itemID shop.ItemID) (*PurchaseResult, error) {
	item, ok := shop.GetItem(itemID)
	if !ok {
		return nil, ErrItemNotFound
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin purchase transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	dedupKey := fmt.Sprintf("shop:%s:%s", itemID, uuid.NewString())
	balance, err := s.ledger.CreditTx(ctx, tx, userID, -item.Price, model.ReasonShopPurchase, dedupKey)
	if err != nil {
		return nil, err
	}

	if err := s.inventory.AddItem(ctx, tx, userID, string(itemID), 1); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit purchase transaction: %w", err)
	}

	log.Info().
		Int64("user_id", userID).
		Str("item", string(itemID)).
		Int64("price", item.Price).
		Int64("balance", balance).
		Msg("Item purchased")
	return &PurchaseResult{Item: item, Balance: balance}, nil
}

// HintCount returns how many hints the user holds.
func (s *ShopService) HintCount(ctx context.Context, userID int64) (int, error) {
	return s.inventory.ItemCount(ctx, userID, string(shop.ItemHint))
}

// ConsumeHint spends one hint from the user's stock. Returns false when
// the stock is empty.
func (s *ShopService) ConsumeHint(ctx context.Context, userID int64) (bool, error) {
	return s.inventory.ConsumeItem(ctx, userID, string(shop.ItemHint))
}
