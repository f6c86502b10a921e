package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"scamguard-bot/internal/content"
	"scamguard-bot/internal/model"
	"scamguard-bot/internal/pkg/lock"
)

// Config holds the state machine's thresholds and reward amounts.
type Config struct {
	PassThreshold int           // correct answers needed to pass a quiz
	QuizBase      int64         // coins for passing a quiz level
	QuizPerfect   int64         // bonus for a perfect attempt
	ScenarioPoint int64         // coins per positive path-score point
	LockTimeout   time.Duration // bound on waiting for the user's lock
}

// Manager drives every user's session through the content graphs.
type Manager struct {
	lib      *content.Library
	rewards  Rewarder
	progress ProgressStore
	reports  ReportSink
	hints    HintStore
	locks    *lock.UserLock
	cfg      Config

	mu       sync.Mutex
	sessions map[int64]*Session

	newAttemptID func() string
}

// NewManager creates a session Manager.
func NewManager(
	lib *content.Library,
	rewards Rewarder,
	progress ProgressStore,
	reports ReportSink,
	hints HintStore,
	locks *lock.UserLock,
	cfg Config,
) *Manager {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 5 * time.Second
	}
	return &Manager{
		lib:          lib,
		rewards:      rewards,
		progress:     progress,
		reports:      reports,
		hints:        hints,
		locks:        locks,
		cfg:          cfg,
		sessions:     make(map[int64]*Session),
		newAttemptID: uuid.NewString,
	}
}

func (m *Manager) get(userID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[userID]
}

func (m *Manager) put(sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.UserID] = sess
}

func (m *Manager) clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// Active returns the kind of the user's current flow.
func (m *Manager) Active(userID int64) FlowKind {
	if sess := m.get(userID); sess != nil {
		return sess.Flow
	}
	return FlowNone
}

// StartQuiz begins a quiz attempt at the given level, replacing any
// active flow without rewarding it. Levels unlock strictly in sequence:
// a level above the user's max unlocked level is rejected even when the
// client requests it directly.
func (m *Manager) StartQuiz(ctx context.Context, userID int64, level int) (*Prompt, error) {
	var prompt *Prompt
	err := m.locks.WithLockTimeout(ctx, userID, m.cfg.LockTimeout, func() error {
		graph, ok := m.lib.Quiz(level)
		if !ok {
			return ErrUnknownContent
		}

		maxLevel, err := m.progress.MaxUnlockedLevel(ctx, userID)
		if err != nil {
			return err
		}
		if level > maxLevel {
			return ErrLevelLocked
		}

		m.abandonLocked(userID)
		sess := &Session{
			UserID:    userID,
			Flow:      FlowQuiz,
			GraphID:   graph.ID,
			Level:     level,
			NodeID:    graph.Start,
			AttemptID: m.newAttemptID(),
			StartedAt: time.Now(),
		}
		m.put(sess)

		prompt = promptFor(graph, graph.Start)
		return nil
	})
	return prompt, err
}

// StartScenario begins a scenario walkthrough, replacing any active flow.
func (m *Manager) StartScenario(ctx context.Context, userID int64, scenarioID string) (*Prompt, error) {
	var prompt *Prompt
	err := m.locks.WithLockTimeout(ctx, userID, m.cfg.LockTimeout, func() error {
		graph, ok := m.lib.Scenario(scenarioID)
		if !ok {
			return ErrUnknownContent
		}

		m.abandonLocked(userID)
		sess := &Session{
			UserID:    userID,
			Flow:      FlowScenario,
			GraphID:   scenarioID,
			NodeID:    graph.Start,
			AttemptID: m.newAttemptID(),
			StartedAt: time.Now(),
		}
		m.put(sess)

		prompt = promptFor(graph, graph.Start)
		prompt.Title = graph.Title
		return nil
	})
	return prompt, err
}

// StartReport begins the report submission flow.
func (m *Manager) StartReport(ctx context.Context, userID int64) (*Prompt, error) {
	var prompt *Prompt
	err := m.locks.WithLockTimeout(ctx, userID, m.cfg.LockTimeout, func() error {
		m.abandonLocked(userID)
		m.put(&Session{
			UserID:    userID,
			Flow:      FlowReport,
			Stage:     stageDescription,
			StartedAt: time.Now(),
		})
		prompt = reportPrompt(stageDescription)
		return nil
	})
	return prompt, err
}

// Answer resolves an option pick against the current node of the user's
// quiz or scenario. An out-of-range index is a validation error that
// leaves the state unchanged.
func (m *Manager) Answer(ctx context.Context, userID int64, optionIdx int) (*StepResult, error) {
	var result *StepResult
	err := m.locks.WithLockTimeout(ctx, userID, m.cfg.LockTimeout, func() error {
		sess := m.get(userID)
		if sess == nil || (sess.Flow != FlowQuiz && sess.Flow != FlowScenario) {
			return ErrNoActiveFlow
		}

		graph := m.graphFor(sess)
		node, ok := graph.Node(sess.NodeID)
		if !ok {
			// Content is validated at load; a dangling cursor means the
			// session is unrecoverable.
			m.clear(userID)
			return fmt.Errorf("session cursor at unknown node %q", sess.NodeID)
		}
		if optionIdx < 0 || optionIdx >= len(node.Options) {
			return ErrInvalidOption
		}

		// The transition runs on a copy. On a finish error the stored
		// session is untouched, so the same answer can be replayed; the
		// attempt-scoped dedup key absorbs any credit that already landed.
		updated := *sess
		opt := node.Options[optionIdx]
		switch updated.Flow {
		case FlowQuiz:
			if opt.Correct {
				updated.Correct++
			}
		case FlowScenario:
			updated.PathScore += opt.Score
		}
		updated.NodeID = opt.Next

		next, _ := graph.Node(opt.Next)
		if next.Kind == content.NodeTerminal {
			var err error
			result, err = m.finish(ctx, &updated, graph, next)
			if err != nil {
				return err
			}
			m.clear(userID)
			return nil
		}

		*sess = updated
		result = &StepResult{
			Correct: opt.Correct,
			Prompt:  promptFor(graph, opt.Next),
		}
		return nil
	})
	return result, err
}

// Hint spends one purchased hint and reveals the correct option of the
// current quiz question. Requires an active quiz flow; scenarios have no
// single right answer and take no hints.
func (m *Manager) Hint(ctx context.Context, userID int64) (*Hint, error) {
	var hint *Hint
	err := m.locks.WithLockTimeout(ctx, userID, m.cfg.LockTimeout, func() error {
		sess := m.get(userID)
		if sess == nil || sess.Flow != FlowQuiz {
			return ErrNoActiveFlow
		}

		graph := m.graphFor(sess)
		node, ok := graph.Node(sess.NodeID)
		if !ok || node.Kind != content.NodeQuestion {
			return ErrNoActiveFlow
		}

		spent, err := m.hints.ConsumeHint(ctx, userID)
		if err != nil {
			return err
		}
		if !spent {
			return ErrNoHints
		}

		for i, opt := range node.Options {
			if opt.Correct {
				hint = &Hint{OptionIdx: i, Label: opt.Label}
				break
			}
		}
		log.Debug().Int64("user_id", userID).Int("level", sess.Level).Msg("Hint consumed")
		return nil
	})
	return hint, err
}

// SubmitText advances the report flow with free-text input.
func (m *Manager) SubmitText(ctx context.Context, userID int64, text string) (*StepResult, error) {
	var result *StepResult
	err := m.locks.WithLockTimeout(ctx, userID, m.cfg.LockTimeout, func() error {
		sess := m.get(userID)
		if sess == nil || sess.Flow != FlowReport {
			return ErrNoActiveFlow
		}
		if text == "" {
			return ErrInvalidOption
		}

		switch sess.Stage {
		case stageDescription:
			sess.Draft.Details = text
			sess.Stage = stageCategory
			result = &StepResult{Prompt: reportPrompt(stageCategory)}
		case stageCategory:
			sess.Draft.Category = text
			sess.Stage = stageCity
			result = &StepResult{Prompt: reportPrompt(stageCity)}
		case stageCity:
			sess.Draft.City = text
			reportID, err := m.reports.SubmitReport(ctx, userID, sess.Draft.Category, sess.Draft.City, sess.Draft.Details)
			if err != nil {
				return err
			}
			m.clear(userID)
			result = &StepResult{Done: true, Report: &ReportOutcome{ReportID: reportID}}
		default:
			return ErrNoActiveFlow
		}
		return nil
	})
	return result, err
}

// Cancel drops the user's active flow without any reward. Returns
// whether a flow was active.
func (m *Manager) Cancel(ctx context.Context, userID int64) (bool, error) {
	var had bool
	err := m.locks.WithLockTimeout(ctx, userID, m.cfg.LockTimeout, func() error {
		had = m.get(userID) != nil
		m.abandonLocked(userID)
		return nil
	})
	return had, err
}

// abandonLocked discards any active session. Abandoned flows never
// credit the ledger. Caller must hold the user's lock.
func (m *Manager) abandonLocked(userID int64) {
	if sess := m.get(userID); sess != nil {
		log.Debug().
			Int64("user_id", userID).
			Str("flow", sess.Flow.String()).
			Msg("Abandoning active flow")
		m.clear(userID)
	}
}

func (m *Manager) graphFor(sess *Session) *content.Graph {
	if sess.Flow == FlowQuiz {
		g, _ := m.lib.Quiz(sess.Level)
		return g
	}
	g, _ := m.lib.Scenario(sess.GraphID)
	return g
}

func (m *Manager) finish(ctx context.Context, sess *Session, graph *content.Graph, terminal *content.Node) (*StepResult, error) {
	switch sess.Flow {
	case FlowQuiz:
		return m.finishQuiz(ctx, sess, graph)
	default:
		return m.finishScenario(ctx, sess, graph, terminal)
	}
}

func (m *Manager) finishQuiz(ctx context.Context, sess *Session, graph *content.Graph) (*StepResult, error) {
	total := questionCount(graph)
	outcome := &QuizOutcome{
		Level:   sess.Level,
		Correct: sess.Correct,
		Total:   total,
		Passed:  sess.Correct >= m.cfg.PassThreshold,
	}

	if outcome.Passed {
		reward := m.cfg.QuizBase
		if sess.Correct == total {
			reward += m.cfg.QuizPerfect
		}
		dedupKey := fmt.Sprintf("quiz:%d:%s", sess.Level, sess.AttemptID)
		if _, err := m.rewards.Credit(ctx, sess.UserID, reward, model.ReasonQuiz, dedupKey); err != nil {
			return nil, err
		}
		outcome.Reward = reward

		// Levels unlock strictly in sequence: passing level N unlocks
		// N+1 only when N is the current frontier.
		maxLevel, err := m.progress.MaxUnlockedLevel(ctx, sess.UserID)
		if err != nil {
			return nil, err
		}
		if maxLevel == sess.Level && sess.Level < m.lib.MaxQuizLevel() {
			if err := m.progress.UnlockLevel(ctx, sess.UserID, sess.Level+1); err != nil {
				return nil, err
			}
			outcome.UnlockedLevel = sess.Level + 1
		}
	}

	log.Info().
		Int64("user_id", sess.UserID).
		Int("level", sess.Level).
		Int("correct", sess.Correct).
		Bool("passed", outcome.Passed).
		Msg("Quiz finished")
	return &StepResult{Done: true, Quiz: outcome}, nil
}

func (m *Manager) finishScenario(ctx context.Context, sess *Session, graph *content.Graph, terminal *content.Node) (*StepResult, error) {
	outcome := &ScenarioOutcome{
		ScenarioID: sess.GraphID,
		Title:      graph.Title,
		EndingText: terminal.Text,
		Success:    terminal.Success,
		PathScore:  sess.PathScore,
	}

	if sess.PathScore > 0 {
		reward := int64(sess.PathScore) * m.cfg.ScenarioPoint
		dedupKey := fmt.Sprintf("scenario:%s:%s", sess.GraphID, sess.AttemptID)
		if _, err := m.rewards.Credit(ctx, sess.UserID, reward, model.ReasonScenario, dedupKey); err != nil {
			return nil, err
		}
		outcome.Reward = reward
	}

	if terminal.Success && terminal.Badge != "" {
		awarded, err := m.rewards.AwardBadge(ctx, sess.UserID, terminal.Badge)
		if err != nil {
			return nil, err
		}
		if awarded {
			outcome.Badge = terminal.Badge
		}
	}

	log.Info().
		Int64("user_id", sess.UserID).
		Str("scenario", sess.GraphID).
		Int("path_score", sess.PathScore).
		Bool("success", terminal.Success).
		Msg("Scenario finished")
	return &StepResult{Done: true, Scenario: outcome}, nil
}

func promptFor(graph *content.Graph, nodeID string) *Prompt {
	node, _ := graph.Node(nodeID)
	prompt := &Prompt{Text: node.Text}
	for _, opt := range node.Options {
		prompt.Options = append(prompt.Options, opt.Label)
	}
	return prompt
}

func reportPrompt(stage int) *Prompt {
	switch stage {
	case stageDescription:
		return &Prompt{Text: "Describe what happened: what was promised, how much was asked for, which channel was used."}
	case stageCategory:
		return &Prompt{Text: "What kind of scam was it? (phishing, fake call, prize, job offer, other)"}
	default:
		return &Prompt{Text: "Which city did it happen in? Send a dash if you'd rather not say."}
	}
}

func questionCount(graph *content.Graph) int {
	count := 0
	for _, n := range graph.Nodes {
		if n.Kind == content.NodeQuestion {
			count++
		}
	}
	return count
}
