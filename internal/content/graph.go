// Package content defines the declarative content graphs that drive
// quiz and scenario flows. Graphs are built once at startup, validated,
// and shared read-only across all sessions.
package content

import (
	"fmt"
)

// NodeKind tags the node variants of a content graph.
type NodeKind string

const (
	// NodeQuestion presents options with exactly one correct answer.
	NodeQuestion NodeKind = "question"
	// NodeBranch presents options that steer the path and adjust score.
	NodeBranch NodeKind = "branch"
	// NodeTerminal ends the flow.
	NodeTerminal NodeKind = "terminal"
)

// Option is one selectable answer or choice on a node.
type Option struct {
	Label   string
	Next    string // id of the next node
	Correct bool   // question nodes: whether this answer counts
	Score   int    // branch nodes: path score contribution
}

// Node is one step of a content graph.
type Node struct {
	ID      string
	Kind    NodeKind
	Text    string
	Options []Option

	// Terminal fields.
	Success bool
	Badge   string
}

// Graph is a quiz level or a scam scenario: a finite set of nodes
// starting at Start and terminating at terminal nodes on every path.
type Graph struct {
	ID    string
	Title string
	Start string
	Nodes map[string]*Node
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// Validate checks the structural invariants a graph must satisfy before
// it can drive sessions: the start node exists, every option points to an
// existing node, non-terminal nodes offer at least one option, terminal
// nodes offer none, and the graph is acyclic. A violation is a
// configuration error and fatal at startup, never a runtime fault.
func (g *Graph) Validate() error {
	if g.Start == "" {
		return fmt.Errorf("graph %s: missing start node id", g.ID)
	}
	if _, ok := g.Nodes[g.Start]; !ok {
		return fmt.Errorf("graph %s: start node %q does not exist", g.ID, g.Start)
	}

	for id, n := range g.Nodes {
		if n.ID != id {
			return fmt.Errorf("graph %s: node keyed %q carries id %q", g.ID, id, n.ID)
		}
		switch n.Kind {
		case NodeTerminal:
			if len(n.Options) > 0 {
				return fmt.Errorf("graph %s: terminal node %q has options", g.ID, id)
			}
		case NodeQuestion, NodeBranch:
			if len(n.Options) == 0 {
				return fmt.Errorf("graph %s: node %q is a dead end", g.ID, id)
			}
			for i, opt := range n.Options {
				if _, ok := g.Nodes[opt.Next]; !ok {
					return fmt.Errorf("graph %s: node %q option %d points to unknown node %q", g.ID, id, i, opt.Next)
				}
			}
		default:
			return fmt.Errorf("graph %s: node %q has unknown kind %q", g.ID, id, n.Kind)
		}
	}

	if err := g.checkAcyclic(); err != nil {
		return err
	}
	return nil
}

// checkAcyclic runs a coloring DFS from the start node. A back edge
// means a session could walk the graph forever.
func (g *Graph) checkAcyclic() error {
	const (
		white = 0 // unvisited
		grey  = 1 // on the current path
		black = 2 // fully explored
	)
	color := make(map[string]int, len(g.Nodes))

	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case grey:
			return fmt.Errorf("graph %s: cycle through node %q", g.ID, id)
		case black:
			return nil
		}
		color[id] = grey
		for _, opt := range g.Nodes[id].Options {
			if err := visit(opt.Next); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}

	return visit(g.Start)
}
