package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"scamguard-bot/internal/content"
	"scamguard-bot/internal/service"
	"scamguard-bot/internal/session"
)

// FlowHandler drives quiz, scenario and report flows through the
// session manager.
type FlowHandler struct {
	base
	sessions *session.Manager
	accounts *service.AccountService
	lib      *content.Library
}

// NewFlowHandler creates a new FlowHandler.
func NewFlowHandler(sessions *session.Manager, accounts *service.AccountService, lib *content.Library, timeout time.Duration) *FlowHandler {
	return &FlowHandler{base: newBase(timeout), sessions: sessions, accounts: accounts, lib: lib}
}

// HandleQuizMenu handles /quiz: shows levels with lock markers.
func (h *FlowHandler) HandleQuizMenu(c tele.Context) error {
	ctx, cancel := h.opCtx()
	defer cancel()
	user, err := h.accounts.GetUser(ctx, c.Sender().ID)
	if err != nil {
		return c.Reply("❌ Could not load your progress, please try again.")
	}

	markup := &tele.ReplyMarkup{}
	var rows []tele.Row
	for _, level := range h.lib.QuizLevels() {
		label := fmt.Sprintf("Level %d", level)
		if level > user.MaxUnlockedLevel {
			label = fmt.Sprintf("🔒 Level %d", level)
		}
		rows = append(rows, markup.Row(markup.Data(label, "quiz", strconv.Itoa(level))))
	}
	markup.Inline(rows...)
	return c.Reply("📚 Pick a quiz level. Pass one to unlock the next.", markup)
}

// HandleScenarioMenu handles /scenario: lists scam walkthroughs.
func (h *FlowHandler) HandleScenarioMenu(c tele.Context) error {
	markup := &tele.ReplyMarkup{}
	var rows []tele.Row
	for _, g := range h.lib.Scenarios() {
		rows = append(rows, markup.Row(markup.Data(g.Title, "scen", g.ID)))
	}
	markup.Inline(rows...)
	return c.Reply("🎭 Pick a scenario and see if the scam gets you.", markup)
}

// HandleQuizStart handles the quiz|<level> callback.
func (h *FlowHandler) HandleQuizStart(c tele.Context, arg string) error {
	ctx, cancel := h.opCtx()
	defer cancel()
	level, err := strconv.Atoi(arg)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Unknown level"})
	}

	prompt, err := h.sessions.StartQuiz(ctx, c.Sender().ID, level)
	switch {
	case errors.Is(err, session.ErrLevelLocked):
		return c.Respond(&tele.CallbackResponse{Text: "🔒 Pass the previous level first"})
	case errors.Is(err, session.ErrUnknownContent):
		return c.Respond(&tele.CallbackResponse{Text: "Unknown level"})
	case err != nil:
		return c.Respond(&tele.CallbackResponse{Text: "Something went wrong, try again"})
	}

	return h.sendPrompt(c, prompt)
}

// HandleScenarioStart handles the scen|<id> callback.
func (h *FlowHandler) HandleScenarioStart(c tele.Context, arg string) error {
	ctx, cancel := h.opCtx()
	defer cancel()
	prompt, err := h.sessions.StartScenario(ctx, c.Sender().ID, arg)
	switch {
	case errors.Is(err, session.ErrUnknownContent):
		return c.Respond(&tele.CallbackResponse{Text: "Unknown scenario"})
	case err != nil:
		return c.Respond(&tele.CallbackResponse{Text: "Something went wrong, try again"})
	}
	return h.sendPrompt(c, prompt)
}

// HandleAnswer handles the ans|<idx> callback inside an active flow.
func (h *FlowHandler) HandleAnswer(c tele.Context, arg string) error {
	ctx, cancel := h.opCtx()
	defer cancel()
	idx, err := strconv.Atoi(arg)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Pick one of the buttons"})
	}

	result, err := h.sessions.Answer(ctx, c.Sender().ID, idx)
	switch {
	case errors.Is(err, session.ErrNoActiveFlow):
		return c.Respond(&tele.CallbackResponse{Text: "No active quiz or scenario - start one with /quiz"})
	case errors.Is(err, session.ErrInvalidOption):
		return c.Respond(&tele.CallbackResponse{Text: "Pick one of the buttons"})
	case err != nil:
		return c.Respond(&tele.CallbackResponse{Text: "Something went wrong, try again"})
	}

	if !result.Done {
		return h.sendPrompt(c, result.Prompt)
	}

	switch {
	case result.Quiz != nil:
		return h.sendQuizOutcome(c, result.Quiz)
	case result.Scenario != nil:
		return h.sendScenarioOutcome(c, result.Scenario)
	}
	return nil
}

// HandleHint handles /hint: spends a purchased hint on the current quiz
// question.
func (h *FlowHandler) HandleHint(c tele.Context) error {
	ctx, cancel := h.opCtx()
	defer cancel()
	hint, err := h.sessions.Hint(ctx, c.Sender().ID)
	switch {
	case errors.Is(err, session.ErrNoActiveFlow):
		return c.Reply("Hints work inside a quiz. Start one with /quiz.")
	case errors.Is(err, session.ErrNoHints):
		return c.Reply("💡 No hints in stock. Buy one in the /shop.")
	case err != nil:
		return c.Reply("❌ Something went wrong, please try again.")
	}
	return c.Reply(fmt.Sprintf("💡 The right answer is: %s", hint.Label))
}

// HandleReportStart handles /report: begins the guided submission flow.
func (h *FlowHandler) HandleReportStart(c tele.Context) error {
	ctx, cancel := h.opCtx()
	defer cancel()
	prompt, err := h.sessions.StartReport(ctx, c.Sender().ID)
	if err != nil {
		return c.Reply("❌ Something went wrong, please try again.")
	}
	return c.Reply("📝 Anonymous scam report.\n\n" + prompt.Text)
}

// HandleText feeds free-form text into the report flow. Text outside a
// report flow is ignored.
func (h *FlowHandler) HandleText(c tele.Context) error {
	ctx, cancel := h.opCtx()
	defer cancel()
	userID := c.Sender().ID
	if h.sessions.Active(userID) != session.FlowReport {
		return nil
	}

	result, err := h.sessions.SubmitText(ctx, userID, strings.TrimSpace(c.Text()))
	switch {
	case errors.Is(err, session.ErrInvalidOption):
		return c.Reply("Please send a short text answer.")
	case errors.Is(err, session.ErrNoActiveFlow):
		return nil
	case err != nil:
		return c.Reply("❌ Could not save the report, please try again.")
	}

	if result.Done {
		return c.Reply(fmt.Sprintf(
			"✅ Report #%d submitted anonymously. Once the community confirms it, you earn coins.\n"+
				"Browse open reports with /reports.", result.Report.ReportID))
	}
	return c.Reply(result.Prompt.Text)
}

// HandleCancel handles /cancel: abandons any active flow unrewarded.
func (h *FlowHandler) HandleCancel(c tele.Context) error {
	ctx, cancel := h.opCtx()
	defer cancel()
	had, err := h.sessions.Cancel(ctx, c.Sender().ID)
	if err != nil {
		return c.Reply("❌ Something went wrong, please try again.")
	}
	if !had {
		return c.Reply("Nothing to cancel.")
	}
	return c.Reply("Flow cancelled. No rewards for unfinished runs!")
}

func (h *FlowHandler) sendPrompt(c tele.Context, prompt *session.Prompt) error {
	markup := &tele.ReplyMarkup{}
	var rows []tele.Row
	for i, opt := range prompt.Options {
		rows = append(rows, markup.Row(markup.Data(opt, "ans", strconv.Itoa(i))))
	}
	markup.Inline(rows...)

	text := prompt.Text
	if prompt.Title != "" {
		text = prompt.Title + "\n\n" + text
	}
	return c.EditOrSend(text, markup)
}

func (h *FlowHandler) sendQuizOutcome(c tele.Context, q *session.QuizOutcome) error {
	msg := fmt.Sprintf("Level %d finished: %d/%d correct.\n", q.Level, q.Correct, q.Total)
	if q.Passed {
		msg += fmt.Sprintf("✅ Passed! 💰 +%d coins\n", q.Reward)
	} else {
		msg += "❌ Not passed this time - try again with /quiz\n"
	}
	if q.UnlockedLevel > 0 {
		msg += fmt.Sprintf("🔓 Level %d unlocked!", q.UnlockedLevel)
	}
	return c.EditOrSend(msg)
}

func (h *FlowHandler) sendScenarioOutcome(c tele.Context, s *session.ScenarioOutcome) error {
	msg := s.Title + "\n\n" + s.EndingText + "\n"
	if s.Reward > 0 {
		msg += fmt.Sprintf("💰 +%d coins for safe choices\n", s.Reward)
	}
	if s.Badge != "" {
		msg += "🏅 New badge: " + s.Badge
	}
	return c.EditOrSend(msg)
}
