// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"scamguard-bot/internal/config"
	"scamguard-bot/internal/content"
	"scamguard-bot/internal/handler"
	"scamguard-bot/internal/ledger"
	"scamguard-bot/internal/service"
	"scamguard-bot/internal/session"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	accountHandler     *handler.AccountHandler
	flowHandler        *handler.FlowHandler
	reportHandler      *handler.ReportHandler
	leaderboardHandler *handler.LeaderboardHandler
	referralHandler    *handler.ReferralHandler
	shopHandler        *handler.ShopHandler
	adminHandler       *handler.AdminHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config       *config.Config
	Accounts     *service.AccountService
	Sessions     *session.Manager
	Consensus    *service.ConsensusService
	Referrals    *service.ReferralService
	Leaderboards *service.LeaderboardService
	Shop         *service.ShopService
	Ledger       *ledger.Service
	Library      *content.Library
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot: teleBot,
		cfg: deps.Config,
	}

	storeTimeout := deps.Config.Store.Timeout
	b.accountHandler = handler.NewAccountHandler(deps.Accounts, storeTimeout)
	b.flowHandler = handler.NewFlowHandler(deps.Sessions, deps.Accounts, deps.Library, storeTimeout)
	b.reportHandler = handler.NewReportHandler(deps.Consensus, storeTimeout)
	b.leaderboardHandler = handler.NewLeaderboardHandler(deps.Leaderboards, storeTimeout)
	b.referralHandler = handler.NewReferralHandler(deps.Referrals, teleBot.Me.Username, storeTimeout)
	b.shopHandler = handler.NewShopHandler(deps.Shop, deps.Ledger, storeTimeout)
	b.adminHandler = handler.NewAdminHandler(deps.Ledger, storeTimeout)

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	// Account handlers
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/balance", b.accountHandler.HandleBalance)
	b.bot.Handle("/my", b.accountHandler.HandleProfile)

	// Learning flows
	b.bot.Handle("/quiz", b.flowHandler.HandleQuizMenu)
	b.bot.Handle("/scenario", b.flowHandler.HandleScenarioMenu)
	b.bot.Handle("/report", b.flowHandler.HandleReportStart)
	b.bot.Handle("/hint", b.flowHandler.HandleHint)
	b.bot.Handle("/cancel", b.flowHandler.HandleCancel)

	// Community and rankings
	b.bot.Handle("/reports", b.reportHandler.HandleReports)
	b.bot.Handle("/top", func(c tele.Context) error {
		return b.leaderboardHandler.HandleTop(c, c.Message().Payload)
	})
	b.bot.Handle("/invite", b.referralHandler.HandleInvite)
	b.bot.Handle("/shop", b.shopHandler.HandleShop)

	// Admin handlers (with admin middleware)
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/admin_adjust", b.adminHandler.HandleAdjust)

	// Free text feeds the report flow
	b.bot.Handle(tele.OnText, b.flowHandler.HandleText)

	// Generic callback handler for inline keyboards
	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

// handleCallback routes callbacks to appropriate handlers.
func (b *Bot) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}

	// Telebot v3 may add a \f prefix to callback data
	data := strings.TrimPrefix(callback.Data, "\f")
	log.Debug().Str("data", data).Msg("Callback received")

	parts := strings.Split(data, "|")
	switch parts[0] {
	case "quiz":
		if len(parts) == 2 {
			return b.flowHandler.HandleQuizStart(c, parts[1])
		}
	case "scen":
		if len(parts) == 2 {
			return b.flowHandler.HandleScenarioStart(c, parts[1])
		}
	case "ans":
		if len(parts) == 2 {
			return b.flowHandler.HandleAnswer(c, parts[1])
		}
	case "vote":
		if len(parts) == 3 {
			return b.reportHandler.HandleVote(c, parts[1], parts[2])
		}
	case "top":
		if len(parts) == 2 {
			return b.leaderboardHandler.HandleTop(c, parts[1])
		}
	case "buy":
		if len(parts) == 2 {
			return b.shopHandler.HandleBuy(c, parts[1])
		}
	}

	return c.Respond(&tele.CallbackResponse{Text: "Unknown action"})
}

// Start starts the bot polling.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
