package content

import (
	"fmt"
	"sort"

	"scamguard-bot/internal/model"
)

// Library holds the validated content graphs, keyed for lookup by the
// session manager.
type Library struct {
	quizzes   map[int]*Graph
	scenarios map[string]*Graph
}

// Load builds the built-in catalog and validates every graph. Any
// invalid graph aborts startup.
func Load() (*Library, error) {
	lib := &Library{
		quizzes:   make(map[int]*Graph),
		scenarios: make(map[string]*Graph),
	}

	for level, qs := range quizCatalog() {
		g := buildQuizGraph(level, qs)
		if err := g.Validate(); err != nil {
			return nil, fmt.Errorf("invalid quiz content: %w", err)
		}
		lib.quizzes[level] = g
	}

	for _, g := range scenarioCatalog() {
		if err := g.Validate(); err != nil {
			return nil, fmt.Errorf("invalid scenario content: %w", err)
		}
		lib.scenarios[g.ID] = g
	}

	return lib, nil
}

// Quiz returns the graph for a quiz level.
func (l *Library) Quiz(level int) (*Graph, bool) {
	g, ok := l.quizzes[level]
	return g, ok
}

// QuizLevels returns the available quiz levels in ascending order.
func (l *Library) QuizLevels() []int {
	levels := make([]int, 0, len(l.quizzes))
	for lvl := range l.quizzes {
		levels = append(levels, lvl)
	}
	sort.Ints(levels)
	return levels
}

// MaxQuizLevel returns the highest defined quiz level.
func (l *Library) MaxQuizLevel() int {
	max := 0
	for lvl := range l.quizzes {
		if lvl > max {
			max = lvl
		}
	}
	return max
}

// Scenario returns the graph for a scenario id.
func (l *Library) Scenario(id string) (*Graph, bool) {
	g, ok := l.scenarios[id]
	return g, ok
}

// Scenarios returns all scenarios sorted by id.
func (l *Library) Scenarios() []*Graph {
	out := make([]*Graph, 0, len(l.scenarios))
	for _, g := range l.scenarios {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// question is the compact authoring form for quiz content; buildQuizGraph
// expands it into a linear graph of question nodes ending in a terminal.
type question struct {
	Text    string
	Options []string
	Answer  int // index into Options
}

func buildQuizGraph(level int, qs []question) *Graph {
	g := &Graph{
		ID:    fmt.Sprintf("quiz-l%d", level),
		Title: fmt.Sprintf("Level %d quiz", level),
		Start: "q1",
		Nodes: make(map[string]*Node, len(qs)+1),
	}

	for i, q := range qs {
		id := fmt.Sprintf("q%d", i+1)
		next := fmt.Sprintf("q%d", i+2)
		if i == len(qs)-1 {
			next = "end"
		}
		node := &Node{ID: id, Kind: NodeQuestion, Text: q.Text}
		for j, label := range q.Options {
			node.Options = append(node.Options, Option{
				Label:   label,
				Next:    next,
				Correct: j == q.Answer,
			})
		}
		g.Nodes[id] = node
	}
	g.Nodes["end"] = &Node{ID: "end", Kind: NodeTerminal, Text: "Quiz complete."}

	return g
}

func quizCatalog() map[int][]question {
	return map[int][]question{
		1: {
			{
				Text: "Which sign most often marks a phishing email?",
				Options: []string{
					"It greets you by full name",
					"It demands you follow a link urgently or lose your account",
					"The sender address matches the company domain",
					"It attaches an official contract",
				},
				Answer: 1,
			},
			{
				Text: "A friend asks you by text to send money right away. What is the safe practice?",
				Options: []string{
					"Send immediately so they are not kept waiting",
					"Transfer to the card number in the message",
					"Confirm the request through a separate channel you already trust",
					"Save the card details for later",
				},
				Answer: 2,
			},
			{
				Text: "What should you do with a suspicious link from an SMS?",
				Options: []string{
					"Open it and enter your details if the bank logo looks right",
					"Forward it to friends so they can check",
					"Verify through the bank's official support line",
					"Open it in a private browser window",
				},
				Answer: 2,
			},
		},
		2: {
			{
				Text: "How do you protect online banking on a new device?",
				Options: []string{
					"Sign in right away and save the password in the browser",
					"Enable biometrics and 2FA, remove apps you do not need",
					"Install the banking app from an APK a friend sent",
					"Disable the PIN to sign in faster",
				},
				Answer: 1,
			},
			{
				Text: "You get a push notification about a sign-in you did not make. What now?",
				Options: []string{
					"Ignore it if no money moved",
					"Tap the notification and approve the sign-in",
					"Change your password immediately and contact the bank",
					"Post the notification on social media",
				},
				Answer: 2,
			},
			{
				Text: "What is the correct way to store 2FA backup codes?",
				Options: []string{
					"Email them to yourself",
					"Keep them in the phone's notes app",
					"Keep them in an encrypted password manager",
					"Write them on a slip inside your wallet",
				},
				Answer: 2,
			},
		},
		3: {
			{
				Text: "A call shows your bank's number. How do you rule out caller-ID spoofing?",
				Options: []string{
					"Check the last digits - they always match for real calls",
					"Hang up and call back on the bank's official number",
					"Ask the operator to name your middle name",
					"Request a copy of the employee's ID",
				},
				Answer: 1,
			},
			{
				Text: "An \"investment manager\" guarantees 40% monthly returns. What gives the scheme away?",
				Options: []string{
					"The guaranteed return itself",
					"The glossy website",
					"The registered company name",
					"The referral program",
				},
				Answer: 0,
			},
			{
				Text: "A buyer on a marketplace asks to finish the deal in a different messenger. Why?",
				Options: []string{
					"The other messenger has better stickers",
					"To move you off the platform's fraud protection",
					"Marketplace chat is usually down",
					"It is faster for them to type there",
				},
				Answer: 1,
			},
		},
	}
}

func scenarioCatalog() []*Graph {
	return []*Graph{
		{
			ID:    "bank-call",
			Title: "A call from the \"bank security service\"",
			Start: "intro",
			Nodes: map[string]*Node{
				"intro": {
					ID:   "intro",
					Kind: NodeBranch,
					Text: "Your phone rings. \"This is the bank security service. Someone is withdrawing money from your account right now. We must act fast.\"",
					Options: []Option{
						{Label: "Stay on the line and listen", Next: "pressure", Score: 0},
						{Label: "Hang up and call the number on your card", Next: "good-end", Score: 3},
					},
				},
				"pressure": {
					ID:   "pressure",
					Kind: NodeBranch,
					Text: "\"To stop the transfer, read me the code we just sent you by SMS.\"",
					Options: []Option{
						{Label: "Read out the code", Next: "bad-end", Score: -2},
						{Label: "Refuse and end the call", Next: "late-good-end", Score: 2},
					},
				},
				"good-end": {
					ID:      "good-end",
					Kind:    NodeTerminal,
					Text:    "The real bank confirms: no withdrawal, no such call. You shut the scam down at the first step.",
					Success: true,
					Badge:   model.BadgeCallDefender,
				},
				"late-good-end": {
					ID:      "late-good-end",
					Kind:    NodeTerminal,
					Text:    "You kept the code to yourself. The \"urgent transfer\" never existed - banks never ask for SMS codes.",
					Success: true,
				},
				"bad-end": {
					ID:   "bad-end",
					Kind: NodeTerminal,
					Text: "The code was the confirmation for the scammer's transfer. In real life that money is gone. Never read codes to a caller.",
				},
			},
		},
		{
			ID:    "prize-link",
			Title: "You have won a prize!",
			Start: "intro",
			Nodes: map[string]*Node{
				"intro": {
					ID:   "intro",
					Kind: NodeBranch,
					Text: "An SMS says you won a phone in a store lottery. The link looks almost like the store's site: shop-prizes.example-bonus.net.",
					Options: []Option{
						{Label: "Open the link to see the prize", Next: "form", Score: -1},
						{Label: "Check the store's real site first", Next: "verify", Score: 2},
					},
				},
				"form": {
					ID:   "form",
					Kind: NodeBranch,
					Text: "The page asks for your card number and CVV \"to cover prize delivery\".",
					Options: []Option{
						{Label: "Enter the card details", Next: "bad-end", Score: -2},
						{Label: "Close the page", Next: "close-end", Score: 1},
					},
				},
				"verify": {
					ID:   "verify",
					Kind: NodeBranch,
					Text: "The store's official site has no lottery at all. The SMS sender is an unknown number.",
					Options: []Option{
						{Label: "Delete the SMS and block the sender", Next: "good-end", Score: 2},
						{Label: "Reply asking if it is real", Next: "close-end", Score: 0},
					},
				},
				"good-end": {
					ID:      "good-end",
					Kind:    NodeTerminal,
					Text:    "No lottery, no prize, no leaked card. Checking the official source first beat the bait.",
					Success: true,
					Badge:   model.BadgeLinkSkeptic,
				},
				"close-end": {
					ID:      "close-end",
					Kind:    NodeTerminal,
					Text:    "You backed out before losing anything, but the safest move is never to engage with prize links at all.",
					Success: true,
				},
				"bad-end": {
					ID:   "bad-end",
					Kind: NodeTerminal,
					Text: "A CVV \"for delivery\" is the whole scam - with it the sender can spend from your card. Prizes never cost card details.",
				},
			},
		},
		{
			ID:    "job-offer",
			Title: "Easy money, work from home",
			Start: "intro",
			Nodes: map[string]*Node{
				"intro": {
					ID:   "intro",
					Kind: NodeBranch,
					Text: "A messenger account offers a remote job: \"like products online, earn per task\". First tasks pay small amounts instantly.",
					Options: []Option{
						{Label: "Keep doing tasks, the money is real", Next: "deposit", Score: 0},
						{Label: "Search for reviews of this scheme", Next: "good-end", Score: 3},
					},
				},
				"deposit": {
					ID:   "deposit",
					Kind: NodeBranch,
					Text: "\"Premium tasks pay ten times more, but you must deposit 100 first to unlock them.\"",
					Options: []Option{
						{Label: "Deposit - earlier payouts proved it works", Next: "bad-end", Score: -2},
						{Label: "Stop here and report the account", Next: "late-good-end", Score: 2},
					},
				},
				"good-end": {
					ID:      "good-end",
					Kind:    NodeTerminal,
					Text:    "The scheme is a known task scam: small payouts build trust before the deposit trap. You spotted it early.",
					Success: true,
					Badge:   model.BadgePhishingSpotter,
				},
				"late-good-end": {
					ID:      "late-good-end",
					Kind:    NodeTerminal,
					Text:    "The first payouts were bait money. Walking away before the deposit kept you safe.",
					Success: true,
				},
				"bad-end": {
					ID:   "bad-end",
					Kind: NodeTerminal,
					Text: "After the deposit the \"employer\" vanishes. Upfront payments to unlock earnings are always a scam.",
				},
			},
		},
	}
}
