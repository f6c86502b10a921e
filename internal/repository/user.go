package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scamguard-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
	// ErrInsufficientFunds is returned when a debit would push a balance
	// below zero. No entry is written in that case.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

const userColumns = "telegram_id, username, balance, max_unlocked_level, active, created_at, updated_at"

// UserRepository handles user data persistence.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.TelegramID,
		&user.Username,
		&user.Balance,
		&user.MaxUnlockedLevel,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Create creates a new user with zero coins and quiz level 1 unlocked.
func (r *UserRepository) Create(ctx context.Context, telegramID int64, username string) (*model.User, error) {
	const query = `
		INSERT INTO users (telegram_id, username, balance, max_unlocked_level, active, created_at, updated_at)
		VALUES ($1, $2, 0, 1, TRUE, NOW(), NOW())
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, telegramID, username))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by their Telegram ID.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, telegramID int64) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetOrCreate retrieves a user by Telegram ID, creating one if it doesn't
// exist. Returns the user and whether it was newly created.
func (r *UserRepository) GetOrCreate(ctx context.Context, telegramID int64, username string) (*model.User, bool, error) {
	user, err := r.GetByID(ctx, telegramID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	user, err = r.Create(ctx, telegramID, username)
	if err != nil {
		// Another request might have created the user concurrently.
		user, err = r.GetByID(ctx, telegramID)
		if err != nil {
			return nil, false, err
		}
		return user, false, nil
	}

	return user, true, nil
}

// UpdateUsername updates a user's username.
func (r *UserRepository) UpdateUsername(ctx context.Context, telegramID int64, username string) error {
	const query = `UPDATE users SET username = $2, updated_at = NOW() WHERE telegram_id = $1`

	result, err := r.pool.Exec(ctx, query, telegramID, username)
	if err != nil {
		return fmt.Errorf("failed to update username: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ApplyDelta adjusts a user's balance by delta inside the caller's
// transaction scope. The update is guarded so the balance can never go
// below zero; a debit past the floor returns ErrInsufficientFunds and
// changes nothing.
func (r *UserRepository) ApplyDelta(ctx context.Context, q DBTX, telegramID int64, delta int64) (int64, error) {
	const query = `
		UPDATE users
		SET balance = balance + $2, updated_at = NOW()
		WHERE telegram_id = $1 AND balance + $2 >= 0
		RETURNING balance
	`

	var balance int64
	err := q.QueryRow(ctx, query, telegramID, delta).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to apply balance delta: %w", err)
	}

	// Guard rejected the row: either the user is missing or the debit
	// would go negative.
	const existsQuery = `SELECT EXISTS(SELECT 1 FROM users WHERE telegram_id = $1)`
	var exists bool
	if err := q.QueryRow(ctx, existsQuery, telegramID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check user existence: %w", err)
	}
	if !exists {
		return 0, ErrUserNotFound
	}
	return 0, ErrInsufficientFunds
}

// MaxUnlockedLevel returns the user's highest unlocked quiz level.
func (r *UserRepository) MaxUnlockedLevel(ctx context.Context, telegramID int64) (int, error) {
	const query = `SELECT max_unlocked_level FROM users WHERE telegram_id = $1`

	var level int
	err := r.pool.QueryRow(ctx, query, telegramID).Scan(&level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to get unlocked level: %w", err)
	}
	return level, nil
}

// UnlockLevel raises the user's max unlocked level to level. The update
// uses GREATEST so the value is monotonically non-decreasing even under
// replayed unlocks.
func (r *UserRepository) UnlockLevel(ctx context.Context, telegramID int64, level int) error {
	const query = `
		UPDATE users
		SET max_unlocked_level = GREATEST(max_unlocked_level, $2), updated_at = NOW()
		WHERE telegram_id = $1
	`

	result, err := r.pool.Exec(ctx, query, telegramID, level)
	if err != nil {
		return fmt.Errorf("failed to unlock level: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Deactivate marks a user inactive. Users are never deleted.
func (r *UserRepository) Deactivate(ctx context.Context, telegramID int64) error {
	const query = `UPDATE users SET active = FALSE, updated_at = NOW() WHERE telegram_id = $1`

	result, err := r.pool.Exec(ctx, query, telegramID)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// AwardBadge grants a badge inside the caller's transaction scope.
// Re-awarding the same badge is a no-op; returns whether the badge was
// newly granted.
func (r *UserRepository) AwardBadge(ctx context.Context, q DBTX, telegramID int64, badgeID string) (bool, error) {
	const query = `
		INSERT INTO user_badges (user_id, badge_id, awarded_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, badge_id) DO NOTHING
	`

	result, err := q.Exec(ctx, query, telegramID, badgeID)
	if err != nil {
		return false, fmt.Errorf("failed to award badge: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// ListBadges returns the user's badges in award order.
func (r *UserRepository) ListBadges(ctx context.Context, telegramID int64) ([]string, error) {
	const query = `SELECT badge_id FROM user_badges WHERE user_id = $1 ORDER BY awarded_at`

	rows, err := r.pool.Query(ctx, query, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	defer rows.Close()

	var badges []string
	for rows.Next() {
		var badge string
		if err := rows.Scan(&badge); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		badges = append(badges, badge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating badges: %w", err)
	}
	return badges, nil
}
