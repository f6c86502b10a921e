package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"scamguard-bot/internal/ledger"
	"scamguard-bot/internal/model"
	"scamguard-bot/internal/repository"
)

// AccountService handles user onboarding and profile reads.
type AccountService struct {
	users     *repository.UserRepository
	ledger    *ledger.Service
	referrals *ReferralService
	boards    *LeaderboardService
	welcome   int64
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(
	users *repository.UserRepository,
	ledgerSvc *ledger.Service,
	referrals *ReferralService,
	boards *LeaderboardService,
	welcomeReward int64,
) *AccountService {
	return &AccountService{
		users:     users,
		ledger:    ledgerSvc,
		referrals: referrals,
		boards:    boards,
		welcome:   welcomeReward,
	}
}

// EnsureUser makes sure the user exists, pays the one-time welcome bonus
// and redeems a referral code carried by the start payload. Both credits
// are dedup-keyed, so redelivered /start messages change nothing.
func (s *AccountService) EnsureUser(ctx context.Context, telegramID int64, username, referralCode string) (*model.User, bool, error) {
	user, created, err := s.users.GetOrCreate(ctx, telegramID, username)
	if err != nil {
		return nil, false, err
	}

	if !created && user.Username != username && username != "" {
		if err := s.users.UpdateUsername(ctx, telegramID, username); err != nil {
			log.Warn().Err(err).Int64("user_id", telegramID).Msg("Username update failed")
		} else {
			user.Username = username
		}
	}

	if s.welcome > 0 {
		if _, err := s.ledger.Credit(ctx, telegramID, s.welcome, model.ReasonWelcome, "welcome"); err != nil {
			return nil, false, err
		}
	}

	if referralCode != "" {
		_, err := s.referrals.RecordReferral(ctx, referralCode, telegramID)
		switch {
		case err == nil:
		case errors.Is(err, ErrAlreadyReferred),
			errors.Is(err, ErrSelfReferral),
			errors.Is(err, ErrUnknownCode):
			// Rejected claims are expected on replays and bad links;
			// onboarding still succeeds.
			log.Debug().Err(err).Int64("user_id", telegramID).Msg("Referral claim rejected")
		default:
			return nil, false, err
		}
	}

	return user, created, nil
}

// Profile bundles a user's progress for display.
type Profile struct {
	User   *model.User
	Badges []string
	Rank   int
	Total  int
}

// GetProfile loads a user's profile including badges and all-time rank.
func (s *AccountService) GetProfile(ctx context.Context, telegramID int64) (*Profile, error) {
	user, err := s.users.GetByID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	badges, err := s.users.ListBadges(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	rank, total, err := s.boards.UserRank(ctx, model.PeriodAllTime, telegramID)
	if err != nil {
		return nil, err
	}
	return &Profile{User: user, Badges: badges, Rank: rank, Total: total}, nil
}

// GetUser retrieves a user by their Telegram ID.
func (s *AccountService) GetUser(ctx context.Context, telegramID int64) (*model.User, error) {
	return s.users.GetByID(ctx, telegramID)
}
