// Package session holds the per-user conversational state machine. Each
// user owns at most one active flow; transitions run under the user's
// lock so duplicate submissions are sequenced, and terminal transitions
// hand off to the reward ledger with attempt-scoped dedup keys.
package session

import (
	"context"
	"errors"
	"time"
)

// FlowKind enumerates the flows a session can be in.
type FlowKind int

const (
	FlowNone FlowKind = iota
	FlowQuiz
	FlowScenario
	FlowReport
)

func (f FlowKind) String() string {
	switch f {
	case FlowQuiz:
		return "quiz"
	case FlowScenario:
		return "scenario"
	case FlowReport:
		return "report"
	default:
		return "none"
	}
}

// Report flow stages.
const (
	stageDescription = 1
	stageCategory    = 2
	stageCity        = 3
)

// Session is one user's active flow state. It is owned exclusively by
// that user's lock scope and replaced atomically on transition.
type Session struct {
	UserID    int64
	Flow      FlowKind
	GraphID   string
	Level     int    // quiz flows
	NodeID    string // cursor into the content graph
	Correct   int    // quiz flows: correct answers so far
	PathScore int    // scenario flows: accumulated path score
	AttemptID string // scopes dedup keys to one attempt
	Stage     int    // report flows
	Draft     ReportDraft
	StartedAt time.Time
}

// ReportDraft accumulates the report flow's answers.
type ReportDraft struct {
	Details  string
	Category string
	City     string
}

// Prompt is the next question or instruction to show the user.
type Prompt struct {
	Title   string
	Text    string
	Options []string // empty for free-text stages
}

// StepResult is the outcome of one answer. Exactly one of Prompt (flow
// continues) or the terminal outcome fields is set.
type StepResult struct {
	Done    bool
	Correct bool // quiz flows: whether this answer was correct
	Prompt  *Prompt

	Quiz     *QuizOutcome
	Scenario *ScenarioOutcome
	Report   *ReportOutcome
}

// QuizOutcome summarizes a finished quiz attempt.
type QuizOutcome struct {
	Level         int
	Correct       int
	Total         int
	Passed        bool
	Reward        int64
	UnlockedLevel int // 0 when nothing new unlocked
}

// ScenarioOutcome summarizes a finished scenario walkthrough.
type ScenarioOutcome struct {
	ScenarioID string
	Title      string
	EndingText string
	Success    bool
	PathScore  int
	Reward     int64
	Badge      string // non-empty when newly awarded
}

// ReportOutcome carries the id of the stored community report.
type ReportOutcome struct {
	ReportID int64
}

// Session machine errors.
var (
	// ErrNoActiveFlow is a state conflict: the action needs a flow the
	// user is not in.
	ErrNoActiveFlow = errors.New("no active flow")
	// ErrInvalidOption is a validation error: the input does not match
	// any option of the current node. State is unchanged and the user is
	// re-prompted.
	ErrInvalidOption = errors.New("invalid option")
	// ErrLevelLocked is returned when a quiz level beyond the user's max
	// unlocked level is requested.
	ErrLevelLocked = errors.New("quiz level locked")
	// ErrUnknownContent is returned for a quiz level or scenario id not
	// present in the content library.
	ErrUnknownContent = errors.New("unknown content")
	// ErrNoHints is returned when a hint is requested with none in stock.
	ErrNoHints = errors.New("no hints in stock")
)

// Rewarder is the slice of the reward ledger the session machine needs.
type Rewarder interface {
	Credit(ctx context.Context, userID, delta int64, reason, dedupKey string) (int64, error)
	AwardBadge(ctx context.Context, userID int64, badgeID string) (bool, error)
}

// ProgressStore persists quiz level unlocks.
type ProgressStore interface {
	MaxUnlockedLevel(ctx context.Context, userID int64) (int, error)
	UnlockLevel(ctx context.Context, userID int64, level int) error
}

// ReportSink receives completed report flows.
type ReportSink interface {
	SubmitReport(ctx context.Context, reporterID int64, category, city, details string) (int64, error)
}

// HintStore spends purchased hints. A false return means the stock is
// empty.
type HintStore interface {
	ConsumeHint(ctx context.Context, userID int64) (bool, error)
}

// Hint is the revealed answer for the current quiz question.
type Hint struct {
	OptionIdx int
	Label     string
}
