package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InventoryRepository tracks per-user stacks of consumable items.
type InventoryRepository struct {
	pool *pgxpool.Pool
}

// NewInventoryRepository creates a new InventoryRepository instance.
func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

// AddItem increments the user's stack of an item inside the caller's
// transaction, so a purchase commits together with its debit.
func (r *InventoryRepository) AddItem(ctx context.Context, q DBTX, userID int64, itemID string, quantity int) error {
	const query = `
		INSERT INTO user_items (user_id, item_id, quantity, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, item_id)
		DO UPDATE SET quantity = user_items.quantity + $3, updated_at = NOW()
	`

	if _, err := q.Exec(ctx, query, userID, itemID, quantity); err != nil {
		return fmt.Errorf("failed to add item: %w", err)
	}
	return nil
}

// ItemCount returns how many of an item the user holds.
func (r *InventoryRepository) ItemCount(ctx context.Context, userID int64, itemID string) (int, error) {
	const query = `
		SELECT COALESCE(SUM(quantity), 0) FROM user_items
		WHERE user_id = $1 AND item_id = $2
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, userID, itemID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

// ConsumeItem decrements the user's stack by one. The guarded update
// makes concurrent consumers race safely: at most stack-many succeed.
func (r *InventoryRepository) ConsumeItem(ctx context.Context, userID int64, itemID string) (bool, error) {
	const query = `
		UPDATE user_items
		SET quantity = quantity - 1, updated_at = NOW()
		WHERE user_id = $1 AND item_id = $2 AND quantity > 0
	`

	result, err := r.pool.Exec(ctx, query, userID, itemID)
	if err != nil {
		return false, fmt.Errorf("failed to consume item: %w", err)
	}
	return result.RowsAffected() == 1, nil
}
