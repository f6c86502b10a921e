package content

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestLoad_BuiltinCatalogIsValid(t *testing.T) {
	lib, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, lib.QuizLevels())
	assert.Equal(t, 3, lib.MaxQuizLevel())
	assert.Len(t, lib.Scenarios(), 3)

	for _, level := range lib.QuizLevels() {
		g, ok := lib.Quiz(level)
		require.True(t, ok)
		assert.NoError(t, g.Validate())
	}
	for _, g := range lib.Scenarios() {
		assert.NoError(t, g.Validate())
	}
}

func TestLibrary_Lookups(t *testing.T) {
	lib, err := Load()
	require.NoError(t, err)

	_, ok := lib.Quiz(99)
	assert.False(t, ok)

	_, ok = lib.Scenario("bank-call")
	assert.True(t, ok)
	_, ok = lib.Scenario("no-such-scenario")
	assert.False(t, ok)
}

func TestValidate_MissingStart(t *testing.T) {
	g := &Graph{ID: "g", Nodes: map[string]*Node{}}
	assert.ErrorContains(t, g.Validate(), "missing start")

	g = &Graph{ID: "g", Start: "nowhere", Nodes: map[string]*Node{}}
	assert.ErrorContains(t, g.Validate(), "does not exist")
}

func TestValidate_DanglingOption(t *testing.T) {
	g := &Graph{
		ID:    "g",
		Start: "a",
		Nodes: map[string]*Node{
			"a": {ID: "a", Kind: NodeBranch, Options: []Option{{Label: "go", Next: "missing"}}},
		},
	}
	assert.ErrorContains(t, g.Validate(), "unknown node")
}

func TestValidate_DeadEndNonTerminal(t *testing.T) {
	g := &Graph{
		ID:    "g",
		Start: "a",
		Nodes: map[string]*Node{
			"a": {ID: "a", Kind: NodeQuestion},
		},
	}
	assert.ErrorContains(t, g.Validate(), "dead end")
}

func TestValidate_TerminalWithOptions(t *testing.T) {
	g := &Graph{
		ID:    "g",
		Start: "a",
		Nodes: map[string]*Node{
			"a": {ID: "a", Kind: NodeTerminal, Options: []Option{{Label: "go", Next: "a"}}},
		},
	}
	assert.ErrorContains(t, g.Validate(), "terminal node")
}

func TestValidate_UnknownKind(t *testing.T) {
	g := &Graph{
		ID:    "g",
		Start: "a",
		Nodes: map[string]*Node{
			"a": {ID: "a", Kind: NodeKind("mystery")},
		},
	}
	assert.ErrorContains(t, g.Validate(), "unknown kind")
}

func TestValidate_CycleRejected(t *testing.T) {
	g := &Graph{
		ID:    "g",
		Start: "a",
		Nodes: map[string]*Node{
			"a": {ID: "a", Kind: NodeBranch, Options: []Option{{Label: "on", Next: "b"}}},
			"b": {ID: "b", Kind: NodeBranch, Options: []Option{{Label: "back", Next: "a"}}},
		},
	}
	assert.ErrorContains(t, g.Validate(), "cycle")
}

func TestValidate_MismatchedNodeKey(t *testing.T) {
	g := &Graph{
		ID:    "g",
		Start: "a",
		Nodes: map[string]*Node{
			"a": {ID: "b", Kind: NodeTerminal},
		},
	}
	assert.ErrorContains(t, g.Validate(), "carries id")
}

// TestValidate_RandomChainsProperty builds random forward-only chains
// with occasional skip edges. Edges only ever point at later nodes, so
// every generated graph must validate.
func TestValidate_RandomChainsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		length := rapid.IntRange(2, 20).Draw(t, "length")

		g := &Graph{ID: "random", Start: "n0", Nodes: make(map[string]*Node, length)}
		for i := 0; i < length-1; i++ {
			id := fmt.Sprintf("n%d", i)
			node := &Node{ID: id, Kind: NodeBranch, Text: "step"}

			optCount := rapid.IntRange(1, 3).Draw(t, "optCount")
			for j := 0; j < optCount; j++ {
				// Any later node keeps the graph acyclic
				target := rapid.IntRange(i+1, length-1).Draw(t, "target")
				node.Options = append(node.Options, Option{
					Label: fmt.Sprintf("opt%d", j),
					Next:  fmt.Sprintf("n%d", target),
				})
			}
			g.Nodes[id] = node
		}
		last := fmt.Sprintf("n%d", length-1)
		g.Nodes[last] = &Node{ID: last, Kind: NodeTerminal, Text: "done"}

		if err := g.Validate(); err != nil {
			t.Fatalf("forward-only graph rejected: %v", err)
		}
	})
}

// TestValidate_BackEdgeAlwaysRejectedProperty flips one random edge of a
// valid chain into a back edge and expects validation to fail.
func TestValidate_BackEdgeAlwaysRejectedProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		length := rapid.IntRange(3, 15).Draw(t, "length")

		g := &Graph{ID: "loop", Start: "n0", Nodes: make(map[string]*Node, length)}
		for i := 0; i < length-1; i++ {
			id := fmt.Sprintf("n%d", i)
			g.Nodes[id] = &Node{
				ID:   id,
				Kind: NodeBranch,
				Text: "step",
				Options: []Option{
					{Label: "next", Next: fmt.Sprintf("n%d", i+1)},
				},
			}
		}
		last := fmt.Sprintf("n%d", length-1)
		g.Nodes[last] = &Node{ID: last, Kind: NodeTerminal, Text: "done"}

		// Redirect one edge back to an earlier or same node
		from := rapid.IntRange(1, length-2).Draw(t, "from")
		to := rapid.IntRange(0, from).Draw(t, "to")
		g.Nodes[fmt.Sprintf("n%d", from)].Options[0].Next = fmt.Sprintf("n%d", to)

		if err := g.Validate(); err == nil {
			t.Fatalf("graph with back edge n%d->n%d validated", from, to)
		}
	})
}
